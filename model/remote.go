package model

import (
	"context"

	"github.com/rushteam/recipekit/core"
)

// RemoteClusterModel 通过 core.MLService（如 TF Serving）获取簇分数。
// Dim/Clusters 由配置声明，用于启动时的维度校验。
type RemoteClusterModel struct {
	Service   core.MLService
	ModelName string
	Dim       int
	Clusters  int

	// BatchSize 批量请求的实例数上限，默认 256
	BatchSize int
}

func (m *RemoteClusterModel) Name() string {
	if m.ModelName != "" {
		return "remote:" + m.ModelName
	}
	return "remote"
}

func (m *RemoteClusterModel) InputDim() int    { return m.Dim }
func (m *RemoteClusterModel) NumClusters() int { return m.Clusters }

func (m *RemoteClusterModel) Scores(ctx context.Context, x []float64) ([]float64, error) {
	out, err := m.ScoresBatch(ctx, [][]float64{x})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// ScoresBatch 按 BatchSize 分片调用远程服务。
func (m *RemoteClusterModel) ScoresBatch(ctx context.Context, xs [][]float64) ([][]float64, error) {
	if m.Service == nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeUnavailable, "remote model: no service configured")
	}
	size := m.BatchSize
	if size <= 0 {
		size = 256
	}
	out := make([][]float64, 0, len(xs))
	for start := 0; start < len(xs); start += size {
		end := min(start+size, len(xs))
		resp, err := m.Service.Predict(ctx, &core.MLPredictRequest{
			Instances: xs[start:end],
			ModelName: m.ModelName,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Scores) != end-start {
			return nil, core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation,
				"remote model: got %d score vectors for %d instances", len(resp.Scores), end-start)
		}
		out = append(out, resp.Scores...)
	}
	return out, nil
}

var (
	_ ClusterModel = (*RemoteClusterModel)(nil)
	_ BatchScorer  = (*RemoteClusterModel)(nil)
)
