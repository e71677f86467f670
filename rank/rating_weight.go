package rank

import (
	"context"

	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/pipeline"
	"github.com/rushteam/recipekit/pkg/utils"
)

// FeatureWeighted 是加权后分数的特征名。
const FeatureWeighted = "weighted"

// RatingWeight 把召回分数（相似度）乘以菜谱评分：weighted = similarity * rating。
// 只更新分数，不改变顺序；排序交给 rerank.topn。
//
// - 写入 labels：rank_model
type RatingWeight struct {
	// MetaKey 评分所在的 Meta 键，默认 "rating"
	MetaKey string
}

func (n *RatingWeight) Name() string        { return "rank.rating_weight" }
func (n *RatingWeight) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *RatingWeight) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	key := n.MetaKey
	if key == "" {
		key = core.MetaRating
	}
	for _, it := range items {
		if it == nil {
			continue
		}
		it.Score *= it.MetaFloat(key, 0)
		it.Features[FeatureWeighted] = it.Score
		it.PutLabel("rank_model", utils.Label{Value: "rating_weight", Source: "rank"})
	}
	return items, nil
}
