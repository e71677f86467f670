package model

import (
	"context"

	"gonum.org/v1/gonum/floats"

	"github.com/rushteam/recipekit/core"
)

// KMeansModel 用质心表示簇，分数为到各质心欧氏距离平方的相反数，
// arg-max 即最近质心。
type KMeansModel struct {
	Centroids [][]float64
}

// NewKMeansModel 校验质心维度一致。
func NewKMeansModel(centroids [][]float64) (*KMeansModel, error) {
	if len(centroids) == 0 || len(centroids[0]) == 0 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeModelContractViolation, "kmeans: no centroids")
	}
	d := len(centroids[0])
	for i, c := range centroids {
		if len(c) != d {
			return nil, core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation,
				"kmeans: centroid %d has dimension %d, expected %d", i, len(c), d)
		}
	}
	return &KMeansModel{Centroids: centroids}, nil
}

func (m *KMeansModel) Name() string     { return "kmeans" }
func (m *KMeansModel) InputDim() int    { return len(m.Centroids[0]) }
func (m *KMeansModel) NumClusters() int { return len(m.Centroids) }

func (m *KMeansModel) Scores(_ context.Context, x []float64) ([]float64, error) {
	if len(x) != m.InputDim() {
		return nil, core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation,
			"kmeans: input dimension %d, expected %d", len(x), m.InputDim())
	}
	scores := make([]float64, len(m.Centroids))
	for i, c := range m.Centroids {
		d := floats.Distance(x, c, 2)
		scores[i] = -d * d
	}
	return scores, nil
}

var _ ClusterModel = (*KMeansModel)(nil)
