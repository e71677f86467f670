package model

import (
	"context"
	"math"

	"github.com/rushteam/recipekit/core"
)

// ClusterModel 是簇分配的最小抽象：输入降维后的稠密向量，输出每个簇的亲和度分数。
// 具体实现可以是本地模型（SoftmaxMLP / KMeans）或远程服务（RemoteClusterModel）。
// 模型加载后只读，可并发调用。
type ClusterModel interface {
	Name() string

	// InputDim 期望的输入维度；0 表示未知（远程模型未声明时）
	InputDim() int

	// NumClusters 输出维度；0 表示未知
	NumClusters() int

	Scores(ctx context.Context, x []float64) ([]float64, error)
}

// BatchScorer 是可选的批量接口，加载目录时用于减少远程调用次数。
type BatchScorer interface {
	ScoresBatch(ctx context.Context, xs [][]float64) ([][]float64, error)
}

// Argmax 返回最大分数的下标，并列时取最小下标；含 NaN 时报错。
func Argmax(scores []float64) (int, error) {
	if len(scores) == 0 {
		return 0, core.NewDomainError(core.ModuleModel, core.ErrorCodeModelContractViolation, "model: empty score vector")
	}
	best := 0
	for i, s := range scores {
		if math.IsNaN(s) {
			return 0, core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation, "model: NaN score at index %d", i)
		}
		if s > scores[best] {
			best = i
		}
	}
	return best, nil
}

// Assign 校验输入维度后返回 arg-max 簇编号。
func Assign(ctx context.Context, m ClusterModel, x []float64) (int, error) {
	if err := checkInput(m, x); err != nil {
		return 0, err
	}
	scores, err := m.Scores(ctx, x)
	if err != nil {
		return 0, err
	}
	if err := checkOutput(m, scores); err != nil {
		return 0, err
	}
	return Argmax(scores)
}

// AssignAll 为一批向量分配簇，模型实现 BatchScorer 时走批量接口。
func AssignAll(ctx context.Context, m ClusterModel, xs [][]float64) ([]int, error) {
	for _, x := range xs {
		if err := checkInput(m, x); err != nil {
			return nil, err
		}
	}

	var all [][]float64
	if bs, ok := m.(BatchScorer); ok {
		var err error
		all, err = bs.ScoresBatch(ctx, xs)
		if err != nil {
			return nil, err
		}
		if len(all) != len(xs) {
			return nil, core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation,
				"model %s: batch returned %d score vectors for %d inputs", m.Name(), len(all), len(xs))
		}
	} else {
		all = make([][]float64, len(xs))
		for i, x := range xs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			scores, err := m.Scores(ctx, x)
			if err != nil {
				return nil, err
			}
			all[i] = scores
		}
	}

	labels := make([]int, len(xs))
	for i, scores := range all {
		if err := checkOutput(m, scores); err != nil {
			return nil, err
		}
		c, err := Argmax(scores)
		if err != nil {
			return nil, err
		}
		labels[i] = c
	}
	return labels, nil
}

// CheckClusterInput 校验簇模型的输入维度与上游投影维度一致（启动校验）。
func CheckClusterInput(m ClusterModel, dim int) error {
	if m == nil {
		return core.NewDomainError(core.ModuleModel, core.ErrorCodeModelContractViolation, "model: cluster model is required")
	}
	if d := m.InputDim(); d > 0 && d != dim {
		return core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation,
			"model %s: expects %d inputs, projector produces %d", m.Name(), d, dim)
	}
	return nil
}

func checkInput(m ClusterModel, x []float64) error {
	if d := m.InputDim(); d > 0 && len(x) != d {
		return core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation,
			"model %s: input dimension %d, expected %d", m.Name(), len(x), d)
	}
	return nil
}

func checkOutput(m ClusterModel, scores []float64) error {
	if k := m.NumClusters(); k > 0 && len(scores) != k {
		return core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation,
			"model %s: produced %d scores, expected %d", m.Name(), len(scores), k)
	}
	return nil
}
