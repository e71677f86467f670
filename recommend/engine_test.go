package recommend

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/recipekit/catalog"
	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/feature"
	"github.com/rushteam/recipekit/metrics"
	"github.com/rushteam/recipekit/model"
	"github.com/rushteam/recipekit/pipeline"
	"github.com/rushteam/recipekit/search"
	"github.com/rushteam/recipekit/store"
)

const fixtureHeader = "name,category,ingredients,rating,rating_count,servings,calories,diet_type,cook,combined_features"

var fixtureRows = []string{
	"Garlic Chicken,Main,chicken; garlic,4.0,500,4,420,General,30 mins,garlic chicken",
	"Chicken Rice,Main,chicken; rice,5.0,10,2,510,General,45 mins,chicken rice",
	"Garlic Rice,Side,garlic; rice,3.0,50,2,300,Vegetarian,15 mins,garlic rice",
	"Chicken Garlic Rice,Main,chicken; garlic; rice,4.5,200,6,600,General,1 hr,chicken garlic rice",
	"Chocolate Cake,Dessert,chocolate; flour,4.8,80,8,380,Vegetarian,1 hr 10 mins,chocolate cake",
	"Sugar Cake,Dessert,sugar; flour,4.2,30,8,350,Vegetarian,50 mins,sugar cake",
	"Chocolate Sugar Cake,Dessert,chocolate; sugar,3.5,100,10,450,Vegetarian,1 hr,chocolate sugar cake",
}

// fixtureCSV 生成目录 CSV；clusters 非空时追加 cluster 列。
func fixtureCSV(clusters []string) string {
	var b strings.Builder
	b.WriteString(fixtureHeader)
	if clusters != nil {
		b.WriteString(",cluster")
	}
	b.WriteByte('\n')
	for i, row := range fixtureRows {
		b.WriteString(row)
		if clusters != nil {
			b.WriteString("," + clusters[i])
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func testModels(t *testing.T) *feature.Models {
	t.Helper()
	v, err := model.DecodeVectorizer([]byte(`{"vocabulary":{"chicken":0,"garlic":1,"rice":2,"chocolate":3,"cake":4,"sugar":5},"idf":[1,1,1,1,1,1]}`))
	if err != nil {
		t.Fatalf("DecodeVectorizer 失败: %v", err)
	}
	r, err := model.DecodePCA([]byte(`{"mean":[0,0,0,0,0,0],"components":[[1,0,1,0,0,0],[0,1,0,0,0,0],[0,0,0,1,1,1]]}`))
	if err != nil {
		t.Fatalf("DecodePCA 失败: %v", err)
	}
	p, err := feature.NewProjector(v, r)
	if err != nil {
		t.Fatalf("NewProjector 失败: %v", err)
	}
	cm, err := model.DecodeClusterModel([]byte(`{"kind":"kmeans","centroids":[[0.5,0.5,0],[0,0,1]]}`))
	if err != nil {
		t.Fatalf("DecodeClusterModel 失败: %v", err)
	}
	return &feature.Models{Projector: p, Cluster: cm}
}

func newTestEngine(t *testing.T, mutate func(o *Options)) *Engine {
	t.Helper()
	opts := Options{
		Source: &catalog.CSVSource{Reader: strings.NewReader(fixtureCSV(nil))},
		Models: testModels(t),
	}
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New 失败: %v", err)
	}
	return e
}

func names(views []core.RecipeView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.Name
	}
	return out
}

func TestEngine_Recommend(t *testing.T) {
	e := newTestEngine(t, nil)

	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{
			name: "top2",
			req:  Request{Target: "Garlic Chicken", TopN: 2},
			want: []string{"Garlic Chicken", "Chicken Garlic Rice"},
		},
		{
			name: "top3 按热度排序",
			req:  Request{Target: "Garlic Chicken", TopN: 3},
			want: []string{"Garlic Chicken", "Chicken Garlic Rice", "Chicken Rice"},
		},
		{
			name: "簇内不足 TopN",
			req:  Request{Target: "Garlic Chicken", TopN: 10},
			want: []string{"Garlic Chicken", "Chicken Garlic Rice", "Garlic Rice", "Chicken Rice"},
		},
		{
			name: "多样化",
			req:  Request{Target: "Garlic Chicken", TopN: 2, Diversify: true, DiversityFactor: 0.5},
			want: []string{"Garlic Chicken", "Chicken Rice"},
		},
		{
			name: "系数为 0 等同不多样化",
			req:  Request{Target: "Garlic Chicken", TopN: 2, Diversify: true},
			want: []string{"Garlic Chicken", "Chicken Garlic Rice"},
		},
		{
			name: "剔除目标",
			req:  Request{Target: "Garlic Chicken", TopN: 2, ExcludeTarget: true},
			want: []string{"Chicken Garlic Rice", "Chicken Rice"},
		},
		{
			name: "甜点簇",
			req:  Request{Target: "Chocolate Cake", TopN: 5},
			want: []string{"Chocolate Sugar Cake", "Chocolate Cake", "Sugar Cake"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Recommend(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Recommend 失败: %v", err)
			}
			if !reflect.DeepEqual(names(got), tt.want) {
				t.Fatalf("结果 = %v, 期望 %v", names(got), tt.want)
			}
			for i, v := range got {
				if v.Rank != i+1 {
					t.Fatalf("rank 应从 1 连续递增, got %d at %d", v.Rank, i)
				}
			}
		})
	}
}

func TestEngine_RecommendSameCluster(t *testing.T) {
	e := newTestEngine(t, nil)
	c := e.Catalog()
	for _, r := range c.Recipes() {
		views, err := e.Recommend(context.Background(), e.DefaultRequest(r.Name))
		if err != nil {
			t.Fatalf("Recommend(%q) 失败: %v", r.Name, err)
		}
		if len(views) == 0 || len(views) > e.Defaults().TopN {
			t.Fatalf("Recommend(%q) 返回 %d 条", r.Name, len(views))
		}
		for _, v := range views {
			i, ok := c.Lookup(v.Name)
			if !ok || c.Recipe(i).Cluster != r.Cluster {
				t.Fatalf("%q 的推荐 %q 不在同一簇", r.Name, v.Name)
			}
		}
		for i := 1; i < len(views); i++ {
			a, b := views[i-1], views[i]
			if a.RatingCount < b.RatingCount || (a.RatingCount == b.RatingCount && a.Rating < b.Rating) {
				t.Fatalf("结果未按热度排序: %v", names(views))
			}
		}
	}
}

func TestEngine_RecommendIdempotent(t *testing.T) {
	e := newTestEngine(t, nil)
	req := Request{Target: "Chicken Rice", TopN: 3, Diversify: true, DiversityFactor: 0.2}
	first, err := e.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("Recommend 失败: %v", err)
	}
	second, _ := e.Recommend(context.Background(), req)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("同样的请求结果应一致: %v vs %v", names(first), names(second))
	}
}

func TestEngine_RecommendErrors(t *testing.T) {
	e := newTestEngine(t, nil)
	tests := []struct {
		name  string
		req   Request
		check func(error) bool
	}{
		{"未知菜谱", Request{Target: "Beef Stew", TopN: 3}, core.IsNotFound},
		{"名称大小写敏感", Request{Target: "garlic chicken", TopN: 3}, core.IsNotFound},
		{"top_n 为 0", Request{Target: "Garlic Chicken", TopN: 0}, core.IsInvalidInput},
		{"top_n 为负", Request{Target: "Garlic Chicken", TopN: -1}, core.IsInvalidInput},
		{"系数为 NaN", Request{Target: "Garlic Chicken", TopN: 3, Diversify: true, DiversityFactor: math.NaN()}, core.IsInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Recommend(context.Background(), tt.req); !tt.check(err) {
				t.Fatalf("错误类型不符: %v", err)
			}
		})
	}
}

func TestEngine_Cache(t *testing.T) {
	cache := store.NewMemoryStore()
	defer cache.Close()
	m := metrics.New()
	e := newTestEngine(t, func(o *Options) {
		o.Cache = cache
		o.CacheTTL = 60
		o.Metrics = m
	})
	ctx := context.Background()
	req := Request{Target: "Garlic Chicken", TopN: 2}

	first, err := e.Recommend(ctx, req)
	if err != nil {
		t.Fatalf("Recommend 失败: %v", err)
	}
	data, err := cache.Get(ctx, cacheKey(req))
	if err != nil {
		t.Fatalf("结果应写入缓存: %v", err)
	}
	var cached []core.RecipeView
	if err := json.Unmarshal(data, &cached); err != nil || !reflect.DeepEqual(cached, first) {
		t.Fatalf("缓存内容不符: %v", err)
	}

	// 命中时直接返回缓存内容
	stub, _ := json.Marshal([]core.RecipeView{{Rank: 1, Name: "Cached"}})
	_ = cache.Set(ctx, cacheKey(req), stub)
	got, err := e.Recommend(ctx, req)
	if err != nil || len(got) != 1 || got[0].Name != "Cached" {
		t.Fatalf("应命中缓存, got (%v, %v)", names(got), err)
	}

	// 损坏的缓存条目按未命中处理
	_ = cache.Set(ctx, cacheKey(req), []byte("{"))
	got, err = e.Recommend(ctx, req)
	if err != nil || !reflect.DeepEqual(names(got), names(first)) {
		t.Fatalf("损坏条目应重新计算, got (%v, %v)", names(got), err)
	}
}

// gateNode 首次调用时阻塞，直到 release 关闭。
type gateNode struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gateNode) Name() string        { return "test.gate" }
func (g *gateNode) Kind() pipeline.Kind { return pipeline.KindReRank }
func (g *gateNode) Process(_ context.Context, _ *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.release
	}
	return items, nil
}

func TestEngine_RecommendSharedComputeOutlivesCaller(t *testing.T) {
	cache := store.NewMemoryStore()
	defer cache.Close()
	gate := &gateNode{entered: make(chan struct{}), release: make(chan struct{})}
	e := newTestEngine(t, func(o *Options) {
		o.Cache = cache
		o.Stages = []pipeline.Node{gate}
	})
	req := Request{Target: "Garlic Chicken", TopN: 2}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := e.Recommend(ctx, req)
		first <- err
	}()
	<-gate.entered

	type result struct {
		views []core.RecipeView
		err   error
	}
	second := make(chan result, 1)
	go func() {
		views, err := e.Recommend(context.Background(), req)
		second <- result{views, err}
	}()

	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Fatalf("取消的调用方应返回 context.Canceled: %v", err)
	}
	// 等第二个调用方加入同一次计算
	time.Sleep(20 * time.Millisecond)
	close(gate.release)

	res := <-second
	if res.err != nil {
		t.Fatalf("未取消的调用方不应受影响: %v", res.err)
	}
	if len(res.views) != 2 {
		t.Fatalf("结果数量 = %d, 期望 2", len(res.views))
	}
	if _, err := cache.Get(context.Background(), cacheKey(req)); err != nil {
		t.Fatalf("共享计算完成后应写入缓存: %v", err)
	}
}

func TestCacheKey(t *testing.T) {
	base := Request{Target: "Garlic Chicken", TopN: 5}
	if cacheKey(base) != cacheKey(Request{Target: "Garlic Chicken", TopN: 5, DiversityFactor: 0.7}) {
		t.Fatal("不多样化时系数不应影响缓存键")
	}
	distinct := []Request{
		base,
		{Target: "Garlic Chicken", TopN: 6},
		{Target: "Garlic Chicken", TopN: 5, Diversify: true, DiversityFactor: 0.1},
		{Target: "Garlic Chicken", TopN: 5, Diversify: true, DiversityFactor: 0.2},
		{Target: "Garlic Chicken", TopN: 5, ExcludeTarget: true},
		{Target: "Garlic:Chicken", TopN: 5},
	}
	seen := map[string]bool{}
	for _, r := range distinct {
		k := cacheKey(r)
		if seen[k] {
			t.Fatalf("缓存键冲突: %s", k)
		}
		seen[k] = true
	}
}

func TestEngine_ClusterPolicy(t *testing.T) {
	matching := []string{"0", "0", "0", "0", "1", "1", "1"}
	// Sugar Cake 在目录中被标到簇 0
	flipped := []string{"0", "0", "0", "0", "1", "0", "1"}

	newEngine := func(csv, policy string) (*Engine, error) {
		return New(context.Background(), Options{
			Source:        &catalog.CSVSource{Reader: strings.NewReader(csv)},
			Models:        testModels(t),
			ClusterPolicy: policy,
		})
	}

	t.Run("strict 一致", func(t *testing.T) {
		if _, err := newEngine(fixtureCSV(matching), PolicyStrict); err != nil {
			t.Fatalf("标签一致时 strict 应成功: %v", err)
		}
	})
	t.Run("strict 不一致", func(t *testing.T) {
		if _, err := newEngine(fixtureCSV(flipped), PolicyStrict); !core.IsModelContractViolation(err) {
			t.Fatalf("应返回契约错误: %v", err)
		}
	})
	t.Run("strict 缺列", func(t *testing.T) {
		if _, err := newEngine(fixtureCSV(nil), PolicyStrict); !core.IsInvalidInput(err) {
			t.Fatalf("缺少 cluster 列应返回 INVALID_INPUT: %v", err)
		}
	})
	t.Run("catalog 缺列", func(t *testing.T) {
		if _, err := newEngine(fixtureCSV(nil), PolicyCatalog); !core.IsInvalidInput(err) {
			t.Fatalf("缺少 cluster 列应返回 INVALID_INPUT: %v", err)
		}
	})
	t.Run("catalog 以目录为准", func(t *testing.T) {
		e, err := newEngine(fixtureCSV(flipped), PolicyCatalog)
		if err != nil {
			t.Fatalf("New 失败: %v", err)
		}
		views, err := e.Recommend(context.Background(), Request{Target: "Garlic Chicken", TopN: 10})
		if err != nil {
			t.Fatalf("Recommend 失败: %v", err)
		}
		if len(views) != 5 || !contains(names(views), "Sugar Cake") {
			t.Fatalf("应使用目录标签, got %v", names(views))
		}
	})
	t.Run("model 忽略目录列", func(t *testing.T) {
		e, err := newEngine(fixtureCSV(flipped), PolicyModel)
		if err != nil {
			t.Fatalf("New 失败: %v", err)
		}
		views, _ := e.Recommend(context.Background(), Request{Target: "Garlic Chicken", TopN: 10})
		if len(views) != 4 || contains(names(views), "Sugar Cake") {
			t.Fatalf("应使用模型标签, got %v", names(views))
		}
	})
	t.Run("未知策略", func(t *testing.T) {
		if _, err := newEngine(fixtureCSV(nil), "vote"); !core.IsInvalidInput(err) {
			t.Fatalf("未知策略应返回 INVALID_INPUT: %v", err)
		}
	})
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func TestEngine_ModelContract(t *testing.T) {
	models := testModels(t)
	cm, _ := model.DecodeClusterModel([]byte(`{"kind":"kmeans","centroids":[[1,0],[0,1]]}`))
	models.Cluster = cm
	_, err := New(context.Background(), Options{
		Source: &catalog.CSVSource{Reader: strings.NewReader(fixtureCSV(nil))},
		Models: models,
	})
	if !core.IsModelContractViolation(err) {
		t.Fatalf("簇模型维度不符应返回契约错误: %v", err)
	}

	if _, err := New(context.Background(), Options{Models: testModels(t)}); !core.IsInvalidInput(err) {
		t.Fatalf("缺少目录来源应返回 INVALID_INPUT: %v", err)
	}
}

func TestEngine_SuggestSearchStats(t *testing.T) {
	e := newTestEngine(t, nil)

	if got := e.Suggest("cake", 2); !reflect.DeepEqual(got, []string{"Chocolate Sugar Cake", "Chocolate Cake"}) {
		t.Fatalf("Suggest = %v", got)
	}
	if got := e.Suggest("", 5); len(got) != 0 {
		t.Fatalf("空查询应返回空, got %v", got)
	}

	views := e.Search(search.Query{Category: "Main", Limit: 2})
	if !reflect.DeepEqual(names(views), []string{"Garlic Chicken", "Chicken Garlic Rice"}) || views[1].Rank != 2 {
		t.Fatalf("Search = %v", names(views))
	}

	f := e.Facets()
	if !reflect.DeepEqual(f.Categories, []string{"Dessert", "Main", "Side"}) ||
		!reflect.DeepEqual(f.DietTypes, []string{"General", "Vegetarian"}) {
		t.Fatalf("Facets = %+v", f)
	}

	s := e.Stats()
	if s.Recipes != 7 || s.Clusters != 2 || s.ClusterSizes[0] != 4 || s.ClusterSizes[1] != 3 ||
		s.Dim != 3 || s.Model != "kmeans" || s.Policy != PolicyModel {
		t.Fatalf("Stats = %+v", s)
	}
	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("Close 失败: %v", err)
	}
}

// flakySource 前 failures 次读取失败。
type flakySource struct {
	failures int32
	calls    atomic.Int32
}

func (s *flakySource) Name() string { return "flaky" }

func (s *flakySource) Rows(ctx context.Context) ([]string, [][]string, error) {
	if s.calls.Add(1) <= s.failures {
		return nil, nil, errors.New("disk on fire")
	}
	return (&catalog.CSVSource{Reader: strings.NewReader(fixtureCSV(nil))}).Rows(ctx)
}

func TestLoader(t *testing.T) {
	src := &flakySource{failures: 1}
	l := NewLoader(Options{Source: src, Models: testModels(t)})
	ctx := context.Background()

	if _, err := l.Get(ctx); !core.IsUnavailable(err) {
		t.Fatalf("首次加载应失败: %v", err)
	}
	if l.Ready() {
		t.Fatal("加载失败时不应 Ready")
	}
	e, err := l.Get(ctx)
	if err != nil {
		t.Fatalf("失败不应被缓存, 重试应成功: %v", err)
	}
	again, _ := l.Get(ctx)
	if e != again || !l.Ready() || src.calls.Load() != 2 {
		t.Fatalf("加载成功后应复用同一 Engine, calls=%d", src.calls.Load())
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := NewLoader(Options{Source: &flakySource{}, Models: testModels(t)}).Get(cancelled); err == nil {
		// 加载很快时 select 可能先拿到结果，两种情况都可接受
		t.Log("已取消的 ctx 仍拿到了结果")
	}
}
