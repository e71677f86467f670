package main

import (
	"context"
	"fmt"

	"github.com/rushteam/recipekit/catalog"
	"github.com/rushteam/recipekit/config"
	"github.com/rushteam/recipekit/config/builders"
	"github.com/rushteam/recipekit/feature"
	"github.com/rushteam/recipekit/logging"
	"github.com/rushteam/recipekit/metrics"
	"github.com/rushteam/recipekit/pipeline"
	"github.com/rushteam/recipekit/recommend"
	"github.com/rushteam/recipekit/store"
)

// engineOptions 把配置转为 recommend.Options。返回的 cleanup 关闭缓存 Store。
func engineOptions(s *config.Settings, m *metrics.Metrics) (recommend.Options, func(), error) {
	noop := func() {}

	src, err := catalog.OpenSource(s.Catalog.Source)
	if err != nil {
		return recommend.Options{}, noop, err
	}

	cache, err := store.Open(s.Cache.Store)
	if err != nil {
		return recommend.Options{}, noop, fmt.Errorf("open cache store: %w", err)
	}
	cleanup := noop
	if cache != nil {
		builders.UseStore(cache)
		cleanup = func() {
			if err := cache.Close(); err != nil {
				logging.Warn().Err(err).Str("store", cache.Name()).Msg("close cache store")
			}
		}
	}

	stages, err := loadStages(s.Recommend.PipelineFile)
	if err != nil {
		cleanup()
		return recommend.Options{}, noop, err
	}

	opts := recommend.Options{
		Source:         src,
		CatalogOptions: catalog.Options{Strict: s.Catalog.Strict},
		ManifestSource: s.Models.Manifest,
		BundleOptions: feature.BundleOptions{
			RemoteTimeout: s.Models.RemoteTimeout,
			RemoteRPS:     s.Models.RemoteRPS,
			RemoteBurst:   s.Models.RemoteBurst,
		},
		Workers:       s.Models.Workers,
		ClusterPolicy: s.Recommend.ClusterPolicy,
		Stages:        stages,
		Cache:         cache,
		CacheTTL:      s.Cache.TTL,
		Metrics:       m,
		Defaults: recommend.Defaults{
			TopN:            s.Recommend.DefaultTopN,
			Diversify:       s.Recommend.Diversify,
			DiversityFactor: s.Recommend.DiversityFactor,
			ExcludeTarget:   s.Recommend.ExcludeTarget,
		},
	}
	return opts, cleanup, nil
}

// loadStages 读取可选的 rank/rerank 阶段定义；path 为空时使用默认阶段。
func loadStages(path string) ([]pipeline.Node, error) {
	if path == "" {
		return nil, nil
	}
	cfg, err := pipeline.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.ValidatePipelineConfig(cfg); err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", path, err)
	}
	p, err := cfg.BuildPipeline(config.DefaultFactory())
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", path, err)
	}
	logging.Info().Str("file", path).Int("nodes", len(p.Nodes)).Msg("pipeline stages loaded")
	return p.Nodes, nil
}

// openEngine 供一次性命令使用：同步构建 Engine。
func openEngine(ctx context.Context, s *config.Settings) (*recommend.Engine, func(), error) {
	opts, cleanup, err := engineOptions(s, nil)
	if err != nil {
		return nil, nil, err
	}
	e, err := recommend.New(ctx, opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return e, func() {
		if err := e.Close(ctx); err != nil {
			logging.Warn().Err(err).Msg("close engine")
		}
		cleanup()
	}, nil
}
