package feature

import (
	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/model"
)

// Projector 把菜谱文本投影到降维后的稠密空间：TF-IDF → PCA。
// 目录加载与请求时使用同一个 Projector，保证变换完全一致。
type Projector struct {
	Vectorizer *model.TFIDFVectorizer
	Reducer    *model.PCA
}

// NewProjector 组装并校验 vectorizer 输出维度与 reducer 输入维度一致。
func NewProjector(v *model.TFIDFVectorizer, r *model.PCA) (*Projector, error) {
	p := &Projector{Vectorizer: v, Reducer: r}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate 校验模型链路的维度。
func (p *Projector) Validate() error {
	if p.Vectorizer == nil || p.Reducer == nil {
		return core.NewDomainError(core.ModuleFeature, core.ErrorCodeModelContractViolation, "projector: vectorizer and reducer are required")
	}
	if p.Vectorizer.Dim() != p.Reducer.InputDim() {
		return core.Errorf(core.ModuleFeature, core.ErrorCodeModelContractViolation,
			"projector: vectorizer produces %d features, reducer expects %d", p.Vectorizer.Dim(), p.Reducer.InputDim())
	}
	return nil
}

// Dim 输出维度。
func (p *Projector) Dim() int { return p.Reducer.OutputDim() }

// Project 文本 → 稠密向量。空文本或全部是词表外的词时得到 -C·mean（不报错）。
func (p *Projector) Project(text string) ([]float64, error) {
	return p.Reducer.TransformSparse(p.Vectorizer.Transform(text))
}
