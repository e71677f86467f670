package filter

import (
	"context"

	"github.com/rushteam/recipekit/core"
)

// SelfExclusionFilter 剔除目标菜谱本身，仅当 rctx.ExcludeTarget 为 true 时生效。
// 默认保留目标：同簇候选包含目标，且通常以最高相似度排在前列。
type SelfExclusionFilter struct{}

func (f *SelfExclusionFilter) Name() string { return "filter.self_exclusion" }

func (f *SelfExclusionFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	if rctx == nil || !rctx.ExcludeTarget {
		return false, nil
	}
	return item.ID == rctx.Target, nil
}
