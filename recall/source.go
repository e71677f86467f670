package recall

import (
	"context"

	"github.com/rushteam/recipekit/core"
)

// Source 表示一个可复用的召回源，既可单独调用，也可作为 Pipeline 的首个 Node。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}
