package filter

import (
	"context"

	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/pkg/dsl"
)

// ExprFilter 用 CEL 表达式描述运营规则，表达式为 true 时过滤。
//
//	item.meta.calories > 800
//	item.meta.category == "Dessert" && rctx.exclude_target
type ExprFilter struct {
	program *dsl.Program
}

// NewExprFilter 编译表达式；表达式非法时返回错误。
func NewExprFilter(expr string) (*ExprFilter, error) {
	p, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{program: p}, nil
}

func (f *ExprFilter) Name() string { return "filter.expr" }

// Expr 返回原始表达式。
func (f *ExprFilter) Expr() string { return f.program.String() }

func (f *ExprFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	return f.program.Evaluate(item, rctx)
}
