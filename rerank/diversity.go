package rerank

import (
	"context"

	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/pipeline"
)

// Diversity 按类别限流：同一类别最多保留 MaxPerKey 个（默认 1），保留先出现的。
// 类别来源优先级：
// - label[LabelKey].Value
// - meta[LabelKey] (string)
//
// 输入应已按分数排序，例如 rerank.topn(n: 50) -> rerank.diversity -> rerank.topn。
type Diversity struct {
	LabelKey  string // 默认 "category"
	MaxPerKey int
}

func (n *Diversity) Name() string {
	return "rerank.diversity"
}

func (n *Diversity) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	key := n.LabelKey
	if key == "" {
		key = core.MetaCategory
	}

	limit := n.MaxPerKey
	if limit <= 0 {
		limit = 1
	}
	seen := make(map[string]int, 32)
	out := make([]*core.Item, 0, len(items))

	for _, it := range items {
		if it == nil {
			continue
		}

		cate := ""
		if it.Labels != nil {
			if lbl, ok := it.Labels[key]; ok {
				cate = lbl.Value
			}
		}
		if cate == "" && it.Meta != nil {
			if v, ok := it.Meta[key]; ok {
				if s, ok := v.(string); ok {
					cate = s
				}
			}
		}

		if cate == "" {
			out = append(out, it)
			continue
		}
		if seen[cate] >= limit {
			continue
		}
		seen[cate]++
		out = append(out, it)
	}

	return out, nil
}
