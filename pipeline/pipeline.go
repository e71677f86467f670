package pipeline

import (
	"context"
	"time"

	"github.com/rushteam/recipekit/core"
)

// Observer 在每个 Node 执行后回调，用于打点与调试。
type Observer func(node Node, in, out int, d time.Duration, err error)

// Pipeline 把推荐逻辑拆成可组合的 Node 链，按顺序执行。
type Pipeline struct {
	Nodes []Node

	// Observer 可选
	Observer Observer
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		next, err := node.Process(ctx, rctx, cur)
		if p.Observer != nil {
			p.Observer(node, len(cur), len(next), time.Since(start), err)
		}
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// Append 返回在末尾追加 nodes 的新 Pipeline。
func (p *Pipeline) Append(nodes ...Node) *Pipeline {
	out := &Pipeline{Observer: p.Observer, Nodes: make([]Node, 0, len(p.Nodes)+len(nodes))}
	out.Nodes = append(out.Nodes, p.Nodes...)
	out.Nodes = append(out.Nodes, nodes...)
	return out
}
