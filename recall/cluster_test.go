package recall

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/rushteam/recipekit/catalog"
	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/feature"
	"github.com/rushteam/recipekit/model"
)

func newRecall(t *testing.T, labels []int, strict bool) *ClusterRecall {
	t.Helper()
	recipes := []core.Recipe{
		{Name: "A", Rating: 4, RatingCount: 10, Servings: 1, Category: "Main"},
		{Name: "B", Rating: 3, RatingCount: 5, Servings: 1, Category: "Dessert"},
		{Name: "C", Rating: 5, RatingCount: 1, Servings: 2, Category: "Main"},
		{Name: "D", Rating: 2, RatingCount: 7, Servings: 4},
	}
	for i := range recipes {
		recipes[i].Cluster = labels[i]
	}
	c, err := catalog.New(recipes)
	if err != nil {
		t.Fatalf("catalog.New 失败: %v", err)
	}
	km, err := model.NewKMeansModel([][]float64{{1, 0}, {0, 1}})
	if err != nil {
		t.Fatalf("NewKMeansModel 失败: %v", err)
	}
	return &ClusterRecall{
		Catalog: c,
		Matrix:  feature.NewMatrix([][]float64{{1, 0}, {0, 1}, {1, 0.5}, {2, 0}}),
		Model:   km,
		Strict:  strict,
	}
}

func ids(items []*core.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestClusterRecall(t *testing.T) {
	r := newRecall(t, []int{0, 1, 0, 0}, false)
	items, err := r.Recall(context.Background(), &core.RecommendContext{Target: "A", TopN: 10})
	if err != nil {
		t.Fatalf("Recall 失败: %v", err)
	}
	if !reflect.DeepEqual(ids(items), []string{"A", "C", "D"}) {
		t.Fatalf("应按目录顺序返回同簇菜谱, got %v", ids(items))
	}
	for pos, it := range items {
		if it.MetaInt(core.MetaPosition, -1) != pos {
			t.Fatalf("%s position = %d, 期望 %d", it.ID, it.MetaInt(core.MetaPosition, -1), pos)
		}
	}
	if items[0].Score != 1 || math.Abs(items[1].Score-1/math.Sqrt(1.25)) > 1e-12 || items[2].Score != 1 {
		t.Fatalf("余弦分数不符: %v %v %v", items[0].Score, items[1].Score, items[2].Score)
	}
	if items[1].MetaInt(core.MetaIndex, -1) != 2 || items[1].MetaFloat(core.MetaRating, 0) != 5 {
		t.Fatalf("Meta 不符: %+v", items[1].Meta)
	}
	if _, ok := items[0].Labels["is_target"]; !ok {
		t.Fatal("目标应带 is_target 标签")
	}
	if _, ok := items[1].Labels["is_target"]; ok {
		t.Fatal("非目标不应带 is_target 标签")
	}
	if items[1].Features[FeatureSimilarity] != items[1].Score {
		t.Fatal("similarity 特征应等于召回分数")
	}
}

func TestClusterRecall_Singleton(t *testing.T) {
	r := newRecall(t, []int{0, 1, 0, 0}, false)
	items, err := r.Recall(context.Background(), &core.RecommendContext{Target: "B"})
	if err != nil || !reflect.DeepEqual(ids(items), []string{"B"}) {
		t.Fatalf("单元素簇应只返回自身, got (%v, %v)", ids(items), err)
	}
}

func TestClusterRecall_NotFound(t *testing.T) {
	r := newRecall(t, []int{0, 1, 0, 0}, false)
	if _, err := r.Recall(context.Background(), &core.RecommendContext{Target: "a"}); !core.IsNotFound(err) {
		t.Fatalf("名称大小写不符应返回 NOT_FOUND: %v", err)
	}
}

func TestClusterRecall_LabelDisagreement(t *testing.T) {
	// 目录把 C 标到簇 1，模型推断为簇 0
	labels := []int{0, 1, 1, 0}

	items, err := newRecall(t, labels, false).Recall(context.Background(), &core.RecommendContext{Target: "C"})
	if err != nil {
		t.Fatalf("非严格模式应以目录标签为准: %v", err)
	}
	if !reflect.DeepEqual(ids(items), []string{"B", "C"}) {
		t.Fatalf("应返回目录簇 1 的菜谱, got %v", ids(items))
	}

	_, err = newRecall(t, labels, true).Recall(context.Background(), &core.RecommendContext{Target: "C"})
	if !core.IsModelContractViolation(err) {
		t.Fatalf("严格模式应返回契约错误: %v", err)
	}
}

func TestClusterRecall_Process(t *testing.T) {
	r := newRecall(t, []int{0, 1, 0, 0}, false)
	stale := []*core.Item{core.NewItem("stale")}
	items, err := r.Process(context.Background(), &core.RecommendContext{Target: "D"}, stale)
	if err != nil || len(items) != 3 || items[0].ID != "A" {
		t.Fatalf("Process 应忽略上游并重新召回, got (%v, %v)", ids(items), err)
	}
}
