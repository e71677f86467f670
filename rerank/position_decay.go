package rerank

import (
	"context"

	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/pipeline"
	"github.com/rushteam/recipekit/pkg/utils"
)

// PositionDecay 按候选在同簇列表中的位置衰减分数：score * (1 - factor * position)。
// 仅当 rctx.Diversify 为 true 时生效，factor 取 rctx.DiversityFactor；
// 配置了 Factor 时以 Factor 为准。
//
// factor 超出 [0,1] 时照常计算：位置靠后的分数可能变为负数（factor > 0），
// 或被放大（factor < 0）。
type PositionDecay struct {
	Factor *float64
}

func (n *PositionDecay) Name() string        { return "rerank.position_decay" }
func (n *PositionDecay) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *PositionDecay) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if rctx == nil || !rctx.Diversify {
		return items, nil
	}
	factor := rctx.DiversityFactor
	if n.Factor != nil {
		factor = *n.Factor
	}
	for _, it := range items {
		pos := it.MetaInt(core.MetaPosition, 0)
		it.Score *= 1 - factor*float64(pos)
		it.PutLabel("diversified", utils.Label{Value: "position_decay", Source: "rerank"})
	}
	return items, nil
}
