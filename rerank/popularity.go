package rerank

import (
	"context"
	"sort"

	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/pipeline"
)

// PopularitySort 按 (rating_count desc, rating desc) 稳定重排，不改变分数。
type PopularitySort struct{}

func (n *PopularitySort) Name() string        { return "rerank.popularity_sort" }
func (n *PopularitySort) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *PopularitySort) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := items[i].MetaInt(core.MetaRatingCount, 0), items[j].MetaInt(core.MetaRatingCount, 0)
		if ci != cj {
			return ci > cj
		}
		return items[i].MetaFloat(core.MetaRating, 0) > items[j].MetaFloat(core.MetaRating, 0)
	})
	return items, nil
}
