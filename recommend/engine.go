// Package recommend 组装目录、模型与 Pipeline，提供推荐、补全、分面检索。
//
// Engine 构建后只读，可在请求间无锁共享：
//
//	e, err := recommend.New(ctx, recommend.Options{Source: src, ManifestSource: "models/manifest.yaml"})
//	views, err := e.Recommend(ctx, recommend.Request{Target: "Garlic Chicken", TopN: 10})
package recommend

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rushteam/recipekit/catalog"
	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/feature"
	"github.com/rushteam/recipekit/filter"
	"github.com/rushteam/recipekit/logging"
	"github.com/rushteam/recipekit/metrics"
	"github.com/rushteam/recipekit/model"
	"github.com/rushteam/recipekit/pipeline"
	"github.com/rushteam/recipekit/rank"
	"github.com/rushteam/recipekit/recall"
	"github.com/rushteam/recipekit/rerank"
	"github.com/rushteam/recipekit/search"
)

// 簇标签策略。
const (
	PolicyModel   = "model"   // 以模型推断为准
	PolicyCatalog = "catalog" // 以目录自带的 cluster 列为准
	PolicyStrict  = "strict"  // 二者必须逐行一致
)

// Defaults 是请求缺省参数。
type Defaults struct {
	TopN            int
	Diversify       bool
	DiversityFactor float64
	ExcludeTarget   bool
}

// DefaultDefaults 返回缺省参数：10 条、不多样化、系数 0.1、保留目标。
func DefaultDefaults() Defaults {
	return Defaults{TopN: 10, DiversityFactor: 0.1}
}

// Options 构建 Engine 的选项。Catalog / Models 已提供时跳过对应加载。
type Options struct {
	Catalog        *catalog.Catalog
	Source         catalog.Source
	CatalogOptions catalog.Options

	Models         *feature.Models
	ManifestSource string
	BundleOptions  feature.BundleOptions

	// Workers 目录投影并发数
	Workers int

	// ClusterPolicy 默认 PolicyModel
	ClusterPolicy string

	// Stages 召回之后的阶段；为空时使用 DefaultStages
	Stages []pipeline.Node

	// Cache 可选的结果缓存，CacheTTL 单位秒
	Cache    core.Store
	CacheTTL int

	Metrics  *metrics.Metrics
	Defaults Defaults
}

// DefaultStages 是默认的召回后阶段：评分加权 -> 位置衰减 -> TopN -> 热度重排。
func DefaultStages() []pipeline.Node {
	return []pipeline.Node{
		&rank.RatingWeight{},
		&rerank.PositionDecay{},
		&rerank.TopNNode{},
		&rerank.PopularitySort{},
	}
}

// Request 是一次推荐请求。
type Request struct {
	Target          string  `json:"target"`
	TopN            int     `json:"top_n"`
	Diversify       bool    `json:"diversify"`
	DiversityFactor float64 `json:"diversity_factor"`
	ExcludeTarget   bool    `json:"exclude_target"`
}

// Engine 是加载完成的推荐引擎。
type Engine struct {
	catalog      *catalog.Catalog
	models       *feature.Models
	matrix       *feature.Matrix
	assigned     []int
	policy       string
	pipeline     *pipeline.Pipeline
	autocomplete *search.AutocompleteIndex
	defaults     Defaults

	cache    core.Store
	cacheTTL int
	flight   singleflight.Group
	metrics  *metrics.Metrics
}

// New 加载目录与模型，投影整个目录并统一赋簇，然后做启动校验。
func New(ctx context.Context, opts Options) (*Engine, error) {
	start := time.Now()
	log := logging.Ctx(ctx)

	cat := opts.Catalog
	if cat == nil {
		if opts.Source == nil {
			return nil, core.Errorf(core.ModuleRecommend, core.ErrorCodeInvalidInput, "recommend: no catalog source")
		}
		var err error
		if cat, err = catalog.Load(ctx, opts.Source, opts.CatalogOptions); err != nil {
			return nil, err
		}
	}

	models := opts.Models
	if models == nil {
		var err error
		if models, err = feature.LoadModels(ctx, opts.ManifestSource, opts.BundleOptions); err != nil {
			return nil, err
		}
	} else if err := models.Validate(); err != nil {
		return nil, err
	}

	matrix, err := feature.ProjectCatalog(ctx, models.Projector, cat.Texts(), opts.Workers)
	if err != nil {
		return nil, err
	}
	assigned, err := model.AssignAll(ctx, models.Cluster, matrix.Rows())
	if err != nil {
		return nil, err
	}

	policy := opts.ClusterPolicy
	if policy == "" {
		policy = PolicyModel
	}
	labels, err := resolveLabels(cat, assigned, policy)
	if err != nil {
		return nil, err
	}
	if cat, err = cat.WithClusters(labels); err != nil {
		return nil, err
	}

	defaults := opts.Defaults
	if defaults.TopN == 0 {
		defaults = DefaultDefaults()
	}

	stages := opts.Stages
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	cr := &recall.ClusterRecall{Catalog: cat, Matrix: matrix, Model: models.Cluster, Strict: policy == PolicyStrict}
	nodes := append([]pipeline.Node{cr, &filter.FilterNode{Filters: []filter.Filter{&filter.SelfExclusionFilter{}}}}, stages...)
	p := &pipeline.Pipeline{Nodes: nodes}
	if opts.Metrics != nil {
		p.Observer = opts.Metrics.PipelineObserver()
	}

	e := &Engine{
		catalog:      cat,
		models:       models,
		matrix:       matrix,
		assigned:     assigned,
		policy:       policy,
		pipeline:     p,
		autocomplete: search.NewAutocompleteIndex(cat),
		defaults:     defaults,
		cache:        opts.Cache,
		cacheTTL:     opts.CacheTTL,
		metrics:      opts.Metrics,
	}
	if err := e.Validate(ctx); err != nil {
		return nil, err
	}

	sizes := cat.ClusterSizes()
	if e.metrics != nil {
		e.metrics.SetCatalog(cat.Len(), len(sizes))
	}
	log.Info().Int("recipes", cat.Len()).Int("clusters", len(sizes)).Int("dim", matrix.Dim()).
		Str("model", models.Cluster.Name()).Str("policy", policy).Dur("elapsed", time.Since(start)).
		Msg("recommend engine ready")
	return e, nil
}

// resolveLabels 按策略决定目录最终使用的簇标签。
func resolveLabels(cat *catalog.Catalog, assigned []int, policy string) ([]int, error) {
	source, hasSource := cat.SourceClusters()
	switch policy {
	case PolicyModel:
		if hasSource {
			if n := countDiff(source, assigned); n > 0 {
				logging.Info().Int("rows", n).Msg("recommend: catalog cluster column differs from model, using model")
			}
		}
		return assigned, nil
	case PolicyCatalog:
		if !hasSource {
			return nil, core.Errorf(core.ModuleRecommend, core.ErrorCodeInvalidInput,
				"recommend: cluster policy %q needs a cluster column in every catalog row", policy)
		}
		if n := countDiff(source, assigned); n > 0 {
			logging.Warn().Int("rows", n).Msg("recommend: model disagrees with catalog clusters, using catalog")
		}
		return source, nil
	case PolicyStrict:
		if !hasSource {
			return nil, core.Errorf(core.ModuleRecommend, core.ErrorCodeInvalidInput,
				"recommend: cluster policy %q needs a cluster column in every catalog row", policy)
		}
		for i := range source {
			if source[i] != assigned[i] {
				return nil, core.Errorf(core.ModuleRecommend, core.ErrorCodeModelContractViolation,
					"recommend: recipe %q has cluster %d in catalog, model assigns %d",
					cat.Recipe(i).Name, source[i], assigned[i])
			}
		}
		return assigned, nil
	default:
		return nil, core.Errorf(core.ModuleRecommend, core.ErrorCodeInvalidInput, "recommend: unknown cluster policy %q", policy)
	}
}

func countDiff(a, b []int) int {
	n := 0
	for i := range a {
		if a[i] != b[i] {
			n++
		}
	}
	return n
}

// Validate 校验模型链路维度、矩阵形状以及簇标签与策略的一致性。
func (e *Engine) Validate(_ context.Context) error {
	if err := e.models.Validate(); err != nil {
		return err
	}
	if e.matrix.Len() != e.catalog.Len() {
		return core.Errorf(core.ModuleRecommend, core.ErrorCodeModelContractViolation,
			"recommend: matrix has %d rows for %d recipes", e.matrix.Len(), e.catalog.Len())
	}
	if e.matrix.Len() > 0 && e.matrix.Dim() != e.models.Projector.Dim() {
		return core.Errorf(core.ModuleRecommend, core.ErrorCodeModelContractViolation,
			"recommend: matrix dim %d, projector dim %d", e.matrix.Dim(), e.models.Projector.Dim())
	}
	if e.policy == PolicyCatalog {
		return nil
	}
	for i := 0; i < e.catalog.Len(); i++ {
		if e.catalog.Recipe(i).Cluster != e.assigned[i] {
			return core.Errorf(core.ModuleRecommend, core.ErrorCodeModelContractViolation,
				"recommend: recipe %q cluster label is stale", e.catalog.Recipe(i).Name)
		}
	}
	return nil
}

// DefaultRequest 返回以缺省参数填充的请求。
func (e *Engine) DefaultRequest(target string) Request {
	return Request{
		Target:          target,
		TopN:            e.defaults.TopN,
		Diversify:       e.defaults.Diversify,
		DiversityFactor: e.defaults.DiversityFactor,
		ExcludeTarget:   e.defaults.ExcludeTarget,
	}
}

// Recommend 返回与目标同簇、按相似度与评分选出、再按热度排序的至多 TopN 个菜谱。
func (e *Engine) Recommend(ctx context.Context, req Request) ([]core.RecipeView, error) {
	start := time.Now()
	views, err := e.recommend(ctx, req)
	if e.metrics != nil {
		e.metrics.ObserveRecommend(outcome(err), time.Since(start), len(views))
	}
	return views, err
}

func (e *Engine) recommend(ctx context.Context, req Request) ([]core.RecipeView, error) {
	if req.TopN < 1 {
		return nil, core.Errorf(core.ModuleRecommend, core.ErrorCodeInvalidInput, "top_n must be >= 1, got %d", req.TopN)
	}
	if math.IsNaN(req.DiversityFactor) || math.IsInf(req.DiversityFactor, 0) {
		return nil, core.Errorf(core.ModuleRecommend, core.ErrorCodeInvalidInput, "diversity_factor must be finite")
	}
	if _, ok := e.catalog.Lookup(req.Target); !ok {
		return nil, core.Errorf(core.ModuleRecommend, core.ErrorCodeNotFound, "recipe %q not found", req.Target)
	}

	if e.cache == nil {
		return e.compute(ctx, req)
	}

	key := cacheKey(req)
	if views, ok := e.cacheGet(ctx, key); ok {
		return views, nil
	}
	// 同一 key 的并发请求共享一次计算，计算不随首个调用方取消
	ch := e.flight.DoChan(key, func() (interface{}, error) {
		shared := context.WithoutCancel(ctx)
		views, err := e.compute(shared, req)
		if err != nil {
			return nil, err
		}
		e.cacheSet(shared, key, views)
		return views, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return append([]core.RecipeView(nil), res.Val.([]core.RecipeView)...), nil
	}
}

func (e *Engine) compute(ctx context.Context, req Request) ([]core.RecipeView, error) {
	rctx := &core.RecommendContext{
		RequestID:       logging.RequestIDFromContext(ctx),
		Target:          req.Target,
		TopN:            req.TopN,
		Diversify:       req.Diversify,
		DiversityFactor: req.DiversityFactor,
		ExcludeTarget:   req.ExcludeTarget,
	}
	items, err := e.pipeline.Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}
	if len(items) > req.TopN {
		items = items[:req.TopN]
	}

	views := make([]core.RecipeView, 0, len(items))
	for i, it := range items {
		idx := it.MetaInt(core.MetaIndex, -1)
		if idx < 0 || idx >= e.catalog.Len() {
			return nil, fmt.Errorf("recommend: item %q lost its catalog index", it.ID)
		}
		views = append(views, e.catalog.Recipe(idx).View(i+1))
	}
	logging.Ctx(ctx).Debug().Str("target", req.Target).Int("top_n", req.TopN).Bool("diversify", req.Diversify).
		Int("results", len(views)).Msg("recommend")
	return views, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case core.IsNotFound(err):
		return "not_found"
	case core.IsInvalidInput(err):
		return "invalid"
	default:
		return "error"
	}
}

// Suggest 名称自动补全。
func (e *Engine) Suggest(q string, limit int) []string {
	return e.autocomplete.Suggest(q, limit)
}

// Search 分面检索，结果带 1 起始的 rank。
func (e *Engine) Search(q search.Query) []core.RecipeView {
	rs := search.Search(e.catalog, q)
	views := make([]core.RecipeView, len(rs))
	for i, r := range rs {
		views[i] = r.View(i + 1)
	}
	return views
}

// Facets 是分面控件的候选值。
type Facets struct {
	Categories []string `json:"categories"`
	DietTypes  []string `json:"diet_types"`
}

func (e *Engine) Facets() Facets {
	return Facets{Categories: e.catalog.Categories(), DietTypes: e.catalog.DietTypes()}
}

// Stats 是引擎的静态信息。
type Stats struct {
	Recipes         int         `json:"recipes"`
	Clusters        int         `json:"clusters"`
	ClusterSizes    map[int]int `json:"cluster_sizes"`
	Dim             int         `json:"dim"`
	Model           string      `json:"model"`
	ManifestVersion string      `json:"manifest_version,omitempty"`
	Policy          string      `json:"cluster_policy"`
}

func (e *Engine) Stats() Stats {
	sizes := e.catalog.ClusterSizes()
	s := Stats{
		Recipes:      e.catalog.Len(),
		Clusters:     len(sizes),
		ClusterSizes: sizes,
		Dim:          e.models.Projector.Dim(),
		Model:        e.models.Cluster.Name(),
		Policy:       e.policy,
	}
	if e.models.Manifest != nil {
		s.ManifestVersion = e.models.Manifest.Version
	}
	return s
}

// Catalog 返回已赋簇的目录。
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Defaults 返回缺省请求参数。
func (e *Engine) Defaults() Defaults { return e.defaults }

// Close 释放远程模型连接；缓存 Store 由调用方关闭。
func (e *Engine) Close(ctx context.Context) error {
	if rm, ok := e.models.Cluster.(*model.RemoteClusterModel); ok && rm.Service != nil {
		return rm.Service.Close(ctx)
	}
	return nil
}
