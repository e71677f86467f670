package rerank

import (
	"context"
	"sort"

	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/pipeline"
)

// TopNNode 按分数降序选出前 N 个物品；分数相同的保持输入顺序。
//
// 示例：
//
//	pipeline := &pipeline.Pipeline{
//	    Nodes: []pipeline.Node{
//	        &rank.RatingWeight{},       // 打分
//	        &rerank.PositionDecay{},    // 位置衰减
//	        &rerank.TopNNode{},         // 取 rctx.TopN 个
//	        &rerank.PopularitySort{},   // 热度重排
//	    },
//	}
type TopNNode struct {
	// N 要保留的物品数量；N <= 0 时使用 rctx.TopN，二者都 <= 0 时不截断
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := n.N
	if limit <= 0 && rctx != nil {
		limit = rctx.TopN
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})

	if limit <= 0 || len(items) <= limit {
		return items, nil
	}
	return items[:limit], nil
}
