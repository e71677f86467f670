// Package api 提供推荐引擎的 HTTP JSON 接口。
//
//	GET  /api/v1/recommendations?recipe=...&top_n=&diversify=&diversity_factor=&exclude_target=
//	POST /api/v1/recommendations   {"target": "...", "top_n": 5}
//	GET  /api/v1/suggestions?q=...&limit=
//	GET  /api/v1/search?name=&category=&diet_type=&ingredients=&servings=one,two,crowd&quick=&limit=
//	GET  /api/v1/facets
//	GET  /api/v1/stats
//	GET  /healthz  /readyz  /metrics
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/rushteam/recipekit/metrics"
	"github.com/rushteam/recipekit/recommend"
)

// EngineProvider 提供已加载的 Engine；recommend.Loader 实现该接口。
type EngineProvider interface {
	Get(ctx context.Context) (*recommend.Engine, error)
	Ready() bool
}

// Options 路由选项。
type Options struct {
	// MaxTopN 单次推荐条数上限，<= 0 表示不限
	MaxTopN int

	// MaxSuggestions 补全条数上限，默认 20
	MaxSuggestions int

	// RateLimit 每个客户端 IP 每分钟请求数，<= 0 表示不限
	RateLimit int

	AllowedOrigins []string
	Metrics        *metrics.Metrics
}

// Router 持有 handler 依赖。
type Router struct {
	engines EngineProvider
	opts    Options
}

// NewRouter 构建 chi 路由。
func NewRouter(engines EngineProvider, opts Options) http.Handler {
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = 20
	}
	h := &Router{engines: engines, opts: opts}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(observe(opts.Metrics))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(corsHandler(opts.AllowedOrigins))
	}

	r.Get("/healthz", h.health)
	r.Get("/readyz", h.ready)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit(opts.RateLimit))
		r.Get("/recommendations", h.recommendQuery)
		r.Post("/recommendations", h.recommendBody)
		r.Get("/suggestions", h.suggest)
		r.Get("/search", h.search)
		r.Get("/facets", h.facets)
		r.Get("/stats", h.stats)
	})
	return r
}
