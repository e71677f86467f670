package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/rushteam/recipekit/catalog"
	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/feature"
	"github.com/rushteam/recipekit/metrics"
	"github.com/rushteam/recipekit/model"
	"github.com/rushteam/recipekit/recommend"
)

const testCatalog = `name,category,ingredients,rating,rating_count,servings,calories,diet_type,cook,combined_features
Garlic Chicken,Main,chicken; garlic,4.0,500,4,420,General,30 mins,garlic chicken
Chicken Rice,Main,chicken; rice,5.0,10,1,510,General,45 mins,chicken rice
Garlic Rice,Side,garlic; rice,3.0,50,2,300,Vegetarian,15 mins,garlic rice
Chicken Garlic Rice,Main,chicken; garlic; rice,4.5,200,6,600,General,1 hr,chicken garlic rice
Chocolate Cake,Dessert,chocolate; flour,4.8,80,8,380,Vegetarian,1 hr 10 mins,chocolate cake
Sugar Cake,Dessert,sugar; flour,4.2,30,8,350,Vegetarian,50 mins,sugar cake
Chocolate Sugar Cake,Dessert,chocolate; sugar,3.5,100,10,450,Vegetarian,1 hr,chocolate sugar cake
`

func testModels(t *testing.T) *feature.Models {
	t.Helper()
	v, err := model.DecodeVectorizer([]byte(`{"vocabulary":{"chicken":0,"garlic":1,"rice":2,"chocolate":3,"cake":4,"sugar":5},"idf":[1,1,1,1,1,1]}`))
	if err != nil {
		t.Fatalf("DecodeVectorizer 失败: %v", err)
	}
	r, _ := model.DecodePCA([]byte(`{"mean":[0,0,0,0,0,0],"components":[[1,0,1,0,0,0],[0,1,0,0,0,0],[0,0,0,1,1,1]]}`))
	p, err := feature.NewProjector(v, r)
	if err != nil {
		t.Fatalf("NewProjector 失败: %v", err)
	}
	cm, _ := model.DecodeClusterModel([]byte(`{"kind":"kmeans","centroids":[[0.5,0.5,0],[0,0,1]]}`))
	return &feature.Models{Projector: p, Cluster: cm}
}

func newTestServer(t *testing.T, src catalog.Source) (*httptest.Server, *recommend.Loader) {
	t.Helper()
	if src == nil {
		src = &catalog.CSVSource{Reader: strings.NewReader(testCatalog)}
	}
	loader := recommend.NewLoader(recommend.Options{Source: src, Models: testModels(t)})
	srv := httptest.NewServer(NewRouter(loader, Options{MaxTopN: 5, Metrics: metrics.New()}))
	t.Cleanup(srv.Close)
	return srv, loader
}

func do(t *testing.T, method, url, body string, header http.Header) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("NewRequest 失败: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func resultNames(t *testing.T, data []byte) []string {
	t.Helper()
	var body RecommendResponse
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("解析响应失败: %v, body=%s", err, data)
	}
	out := make([]string, len(body.Results))
	for i, v := range body.Results {
		out[i] = v.Name
	}
	return out
}

func TestRecommendations(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	base := srv.URL + "/api/v1/recommendations"

	tests := []struct {
		name   string
		method string
		query  string
		body   string
		status int
		want   []string
		code   string
	}{
		{name: "top2", method: http.MethodGet, query: "?recipe=Garlic+Chicken&top_n=2", status: 200,
			want: []string{"Garlic Chicken", "Chicken Garlic Rice"}},
		{name: "多样化", method: http.MethodGet, query: "?recipe=Garlic+Chicken&top_n=2&diversify=true&diversity_factor=0.5", status: 200,
			want: []string{"Garlic Chicken", "Chicken Rice"}},
		{name: "缺省 top_n 不足 10 条", method: http.MethodGet, query: "?recipe=Chocolate+Cake", status: 200,
			want: []string{"Chocolate Sugar Cake", "Chocolate Cake", "Sugar Cake"}},
		{name: "POST 剔除目标", method: http.MethodPost, body: `{"target":"Garlic Chicken","top_n":2,"exclude_target":true}`, status: 200,
			want: []string{"Chicken Garlic Rice", "Chicken Rice"}},
		{name: "未知菜谱", method: http.MethodGet, query: "?recipe=Beef+Stew", status: 404, code: core.ErrorCodeNotFound},
		{name: "缺少 recipe", method: http.MethodGet, status: 400, code: core.ErrorCodeInvalidInput},
		{name: "top_n 为 0", method: http.MethodGet, query: "?recipe=Garlic+Chicken&top_n=0", status: 400, code: core.ErrorCodeInvalidInput},
		{name: "top_n 超过上限", method: http.MethodGet, query: "?recipe=Garlic+Chicken&top_n=6", status: 400, code: core.ErrorCodeInvalidInput},
		{name: "top_n 非整数", method: http.MethodGet, query: "?recipe=Garlic+Chicken&top_n=abc", status: 400, code: core.ErrorCodeInvalidInput},
		{name: "系数 NaN", method: http.MethodGet, query: "?recipe=Garlic+Chicken&diversify=1&diversity_factor=NaN", status: 400, code: core.ErrorCodeInvalidInput},
		{name: "非法 JSON", method: http.MethodPost, body: `{"target":`, status: 400, code: core.ErrorCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := do(t, tt.method, base+tt.query, tt.body, nil)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, 期望 %d, body=%s", resp.StatusCode, tt.status, data)
			}
			if tt.want != nil {
				if got := resultNames(t, data); !reflect.DeepEqual(got, tt.want) {
					t.Fatalf("结果 = %v, 期望 %v", got, tt.want)
				}
				return
			}
			var body ErrorBody
			if err := json.Unmarshal(data, &body); err != nil || body.Error.Code != tt.code || body.Error.RequestID == "" {
				t.Fatalf("错误响应不符: %s", data)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, _ := do(t, http.MethodGet, srv.URL+"/healthz", "", http.Header{RequestIDHeader: {"req-42"}})
	if got := resp.Header.Get(RequestIDHeader); got != "req-42" {
		t.Fatalf("应回传调用方的请求 ID, got %q", got)
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Fatal("应生成请求 ID")
	}
}

func TestSuggestions(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, data := do(t, http.MethodGet, srv.URL+"/api/v1/suggestions?q=CAKE&limit=2", "", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body SuggestResponse
	_ = json.Unmarshal(data, &body)
	if !reflect.DeepEqual(body.Suggestions, []string{"Chocolate Sugar Cake", "Chocolate Cake"}) {
		t.Fatalf("Suggestions = %v", body.Suggestions)
	}

	for _, q := range []string{"?q=", "?q=%20", "?q=cake&limit=0", "?q=cake&limit=99", "?q=cake&limit=x"} {
		if resp, _ := do(t, http.MethodGet, srv.URL+"/api/v1/suggestions"+q, "", nil); resp.StatusCode != 400 {
			t.Fatalf("%s 应返回 400, got %d", q, resp.StatusCode)
		}
	}
}

func TestSearchAndFacets(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		query string
		want  []string
	}{
		{"?category=Main&limit=2", []string{"Garlic Chicken", "Chicken Garlic Rice"}},
		{"?servings=one", []string{"Chicken Rice"}},
		{"?servings=one,two", []string{}},
		{"?ingredients=garlic,%20rice", []string{"Chicken Garlic Rice", "Garlic Rice"}},
		{"?diet_type=General&quick=true", []string{"Garlic Rice"}},
		{"?diet_type=Vegetarian&servings=crowd", []string{"Chocolate Sugar Cake", "Chocolate Cake", "Sugar Cake"}},
		{"?name=chocolate", []string{"Chocolate Sugar Cake", "Chocolate Cake"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, data := do(t, http.MethodGet, srv.URL+"/api/v1/search"+tt.query, "", nil)
			if resp.StatusCode != 200 {
				t.Fatalf("status = %d, body=%s", resp.StatusCode, data)
			}
			var body SearchResponse
			_ = json.Unmarshal(data, &body)
			got := make([]string, len(body.Results))
			for i, v := range body.Results {
				got[i] = v.Name
			}
			if body.Count != len(tt.want) || !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("结果 = %v, 期望 %v", got, tt.want)
			}
		})
	}

	if resp, _ := do(t, http.MethodGet, srv.URL+"/api/v1/search?servings=many", "", nil); resp.StatusCode != 400 {
		t.Fatalf("未知 servings 应返回 400, got %d", resp.StatusCode)
	}

	_, data := do(t, http.MethodGet, srv.URL+"/api/v1/facets", "", nil)
	var f recommend.Facets
	_ = json.Unmarshal(data, &f)
	if !reflect.DeepEqual(f.Categories, []string{"Dessert", "Main", "Side"}) {
		t.Fatalf("Facets = %+v", f)
	}
}

func TestReadinessAndMetrics(t *testing.T) {
	srv, loader := newTestServer(t, nil)

	if resp, _ := do(t, http.MethodGet, srv.URL+"/readyz", "", nil); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("加载前 readyz 应返回 503, got %d", resp.StatusCode)
	}
	if _, err := loader.Get(context.Background()); err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if resp, _ := do(t, http.MethodGet, srv.URL+"/readyz", "", nil); resp.StatusCode != 200 {
		t.Fatalf("加载后 readyz 应返回 200, got %d", resp.StatusCode)
	}

	_, data := do(t, http.MethodGet, srv.URL+"/api/v1/stats", "", nil)
	var s recommend.Stats
	if err := json.Unmarshal(data, &s); err != nil || s.Recipes != 7 || s.Clusters != 2 {
		t.Fatalf("Stats = %s", data)
	}

	_, data = do(t, http.MethodGet, srv.URL+"/metrics", "", nil)
	if !strings.Contains(string(data), `route="/api/v1/stats"`) {
		t.Fatalf("指标应按路由模式记录:\n%s", data)
	}
}

type brokenSource struct{}

func (brokenSource) Name() string { return "broken" }
func (brokenSource) Rows(context.Context) ([]string, [][]string, error) {
	return nil, nil, errors.New("connection refused")
}

func TestEngineUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, brokenSource{})
	resp, data := do(t, http.MethodGet, srv.URL+"/api/v1/recommendations?recipe=Garlic+Chicken", "", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("目录不可用应返回 503, got %d, body=%s", resp.StatusCode, data)
	}
	if resp, _ := do(t, http.MethodGet, srv.URL+"/healthz", "", nil); resp.StatusCode != 200 {
		t.Fatalf("healthz 不依赖引擎, got %d", resp.StatusCode)
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 200},
		{core.Errorf(core.ModuleRecommend, core.ErrorCodeNotFound, "x"), 404},
		{core.Errorf(core.ModuleAPI, core.ErrorCodeInvalidInput, "x"), 400},
		{core.Errorf(core.ModuleService, core.ErrorCodeUnavailable, "x"), 503},
		{core.Errorf(core.ModuleModel, core.ErrorCodeModelContractViolation, "x"), 500},
		{context.DeadlineExceeded, 503},
		{errors.New("boom"), 500},
	}
	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Fatalf("StatusCode(%v) = %d, 期望 %d", tt.err, got, tt.want)
		}
	}
}
