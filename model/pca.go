package model

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/recipekit/core"
)

// PCAArtifact 是 PCA 降维器的导出格式（JSON）。
// Components 形如 [n_components][n_features]。
type PCAArtifact struct {
	Mean              []float64   `json:"mean"`
	Components        [][]float64 `json:"components"`
	ExplainedVariance []float64   `json:"explained_variance"`
	Whiten            bool        `json:"whiten"`
}

// PCA 是已训练好的线性降维器：y = C·(x - mean)，可选白化。
type PCA struct {
	components *mat.Dense // k x n
	columns    []float64  // C 的转置，行主序 n x k，稀疏输入时按列累加
	meanProj   []float64  // C·mean
	scale      []float64  // 白化时为 1/sqrt(explained_variance)
	k, n       int
}

// NewPCA 从导出制品构建 PCA 并校验形状。
func NewPCA(a *PCAArtifact) (*PCA, error) {
	if a == nil || len(a.Components) == 0 || len(a.Mean) == 0 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeModelContractViolation, "pca: empty components")
	}
	k, n := len(a.Components), len(a.Mean)
	flat := make([]float64, 0, k*n)
	for i, row := range a.Components {
		if len(row) != n {
			return nil, core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation,
				"pca: component %d has %d features, mean has %d", i, len(row), n)
		}
		flat = append(flat, row...)
	}
	components := mat.NewDense(k, n, flat)

	var mp mat.VecDense
	mp.MulVec(components, mat.NewVecDense(n, append([]float64(nil), a.Mean...)))

	p := &PCA{
		components: components,
		columns:    mat.DenseCopyOf(components.T()).RawMatrix().Data,
		meanProj:   mp.RawVector().Data,
		k:          k,
		n:          n,
	}
	if a.Whiten {
		if len(a.ExplainedVariance) != k {
			return nil, core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation,
				"pca: whiten needs %d explained variances, got %d", k, len(a.ExplainedVariance))
		}
		p.scale = make([]float64, k)
		for i, ev := range a.ExplainedVariance {
			if ev <= 0 {
				return nil, core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation,
					"pca: non-positive explained variance at %d", i)
			}
			p.scale[i] = 1 / math.Sqrt(ev)
		}
	}
	return p, nil
}

// InputDim 输入维度。
func (p *PCA) InputDim() int { return p.n }

// OutputDim 输出维度。
func (p *PCA) OutputDim() int { return p.k }

// TransformSparse 对稀疏输入降维，只累加非零列。
func (p *PCA) TransformSparse(v SparseVector) ([]float64, error) {
	out := make([]float64, p.k)
	for i, j := range v.Indices {
		if j < 0 || j >= p.n {
			return nil, core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation,
				"pca: feature index %d outside [0,%d)", j, p.n)
		}
		floats.AddScaled(out, v.Values[i], p.columns[j*p.k:(j+1)*p.k])
	}
	return p.finish(out), nil
}

// Transform 对稠密输入降维。
func (p *PCA) Transform(x []float64) ([]float64, error) {
	if len(x) != p.n {
		return nil, core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation,
			"pca: input dimension %d, expected %d", len(x), p.n)
	}
	var y mat.VecDense
	y.MulVec(p.components, mat.NewVecDense(p.n, append([]float64(nil), x...)))
	return p.finish(y.RawVector().Data), nil
}

func (p *PCA) finish(out []float64) []float64 {
	floats.Sub(out, p.meanProj)
	if p.scale != nil {
		floats.Mul(out, p.scale)
	}
	return out
}
