package catalog

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/xuri/excelize/v2"

	"github.com/rushteam/recipekit/core"
)

const testCSV = `Name,Category,Ingredients,Rating,Rating Count,Diet Type,Calories,Servings,carbohydrates_g,carbohydrates_g_dv_perc,cook,high_level_ingredients_str
Garlic Chicken,Dinner,"chicken, garlic",4.5,120,Keto,350,2,12,4,25 mins,"chicken, garlic"
Fried Rice,Dinner,"rice, egg",4.0,300,Vegetarian,420,4,60.5,22,1 hr 5 mins,"rice, egg"
Garlic Chicken,Lunch,chicken,3,10,,100,1,0,0,10,chicken
Bad Rating,Dessert,sugar,7,5,,100,1,0,0,5,sugar
Chocolate Cake,Dessert,"chocolate, sugar",4.8,80,Vegetarian,500,8,70,25,,
`

func loadTestCSV(t *testing.T, opts Options) *Catalog {
	t.Helper()
	c, err := Load(context.Background(), &CSVSource{Reader: strings.NewReader(testCSV)}, opts)
	if err != nil {
		t.Fatalf("加载目录失败: %v", err)
	}
	return c
}

func TestLoad_CSV(t *testing.T) {
	c := loadTestCSV(t, Options{})
	// 重名保留首条，评分越界的行被跳过
	if c.Len() != 3 {
		t.Fatalf("Len = %d, 期望 3", c.Len())
	}
	i, ok := c.Lookup("Garlic Chicken")
	if !ok || i != 0 {
		t.Fatalf("Lookup = (%d, %v)", i, ok)
	}
	r := c.Recipe(i)
	if r.Category != "Dinner" || r.RatingCount != 120 || r.Cook != 25 || r.Servings != 2 {
		t.Fatalf("首条记录解析不符: %+v", r)
	}
	if r.Carbohydrates != "12g (4%)" {
		t.Fatalf("展示串 = %q", r.Carbohydrates)
	}
	if r.SourceCluster != -1 {
		t.Fatalf("无 cluster 列时 SourceCluster 应为 -1, got %d", r.SourceCluster)
	}

	fried := c.Recipe(1)
	if fried.Cook != 65 || fried.Carbohydrates != "60.5g (22%)" {
		t.Fatalf("Fried Rice 解析不符: cook=%d carbs=%q", fried.Cook, fried.Carbohydrates)
	}

	cake := c.Recipe(2)
	if cake.HasCook || !r.HasCook {
		t.Fatalf("cook 为空时 HasCook 应为 false: cake=%v chicken=%v", cake.HasCook, r.HasCook)
	}
	if cake.IngredientTokens != "chocolate, sugar" {
		t.Fatalf("缺省食材串应取 ingredients 小写: %q", cake.IngredientTokens)
	}
	if cake.CombinedFeatures != "Chocolate Cake Dessert chocolate, sugar Vegetarian" {
		t.Fatalf("缺省 combined_features = %q", cake.CombinedFeatures)
	}

	if !reflect.DeepEqual(c.Categories(), []string{"Dessert", "Dinner"}) {
		t.Fatalf("Categories = %v", c.Categories())
	}
	if !reflect.DeepEqual(c.DietTypes(), []string{"Keto", "Vegetarian"}) {
		t.Fatalf("DietTypes = %v", c.DietTypes())
	}
}

func TestLoad_Strict(t *testing.T) {
	_, err := Load(context.Background(), &CSVSource{Reader: strings.NewReader(testCSV)}, Options{Strict: true})
	if !core.IsInvalidInput(err) {
		t.Fatalf("严格模式下非法行应报 INVALID_INPUT: %v", err)
	}

	_, err = Load(context.Background(), &CSVSource{Reader: strings.NewReader("name,rating\nA,1\n")}, Options{})
	if !core.IsInvalidInput(err) {
		t.Fatalf("缺少必需列应报错: %v", err)
	}
}

func TestCatalog_WithClusters(t *testing.T) {
	c := loadTestCSV(t, Options{})
	if _, err := c.WithClusters([]int{0}); !core.IsModelContractViolation(err) {
		t.Fatalf("标签数量不符应报契约错误: %v", err)
	}
	cc, err := c.WithClusters([]int{1, 0, 1})
	if err != nil {
		t.Fatalf("WithClusters 失败: %v", err)
	}
	if !reflect.DeepEqual(cc.Peers(1), []int{0, 2}) || !reflect.DeepEqual(cc.Peers(0), []int{1}) {
		t.Fatalf("Peers 不符: %v %v", cc.Peers(0), cc.Peers(1))
	}
	if len(cc.Peers(7)) != 0 {
		t.Fatal("未知簇应无成员")
	}
	// 原目录不变
	if c.Recipe(0).Cluster != 0 || len(c.Peers(0)) != 3 {
		t.Fatal("WithClusters 不应修改原目录")
	}
	if got := cc.ClusterSizes(); got[1] != 2 || got[0] != 1 {
		t.Fatalf("ClusterSizes = %v", got)
	}
}

func TestSourceClusters(t *testing.T) {
	data := "name,rating,rating_count,servings,cluster\nA,4,1,1,2\nB,3,2,1,0.0\n"
	c, err := Load(context.Background(), &CSVSource{Reader: strings.NewReader(data)}, Options{})
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	labels, ok := c.SourceClusters()
	if !ok || !reflect.DeepEqual(labels, []int{2, 0}) {
		t.Fatalf("SourceClusters = (%v, %v)", labels, ok)
	}
}

func TestParseMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"15", 15},
		{"15 mins", 15},
		{"1 hr 10 mins", 70},
		{"2h", 120},
		{"1.5 hours", 90},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMinutes(tt.in)
			if err != nil || got != tt.want {
				t.Fatalf("ParseMinutes(%q) = (%d, %v), 期望 %d", tt.in, got, err, tt.want)
			}
		})
	}
	if _, err := ParseMinutes("soon"); err == nil {
		t.Fatal("无数字的时长应报错")
	}
}

func TestSQLSource(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock 初始化失败: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"name", "category", "rating", "rating_count", "servings", "cook_time_mins", "diet_type"}).
		AddRow("Tomato Soup", "Lunch", 4.2, int64(42), int64(2), int64(20), nil).
		AddRow("Pancakes", "Breakfast", "4.9", "1,024", "4", nil, "Vegetarian")
	mock.ExpectQuery("SELECT \\* FROM recipes").WillReturnRows(rows)

	c, err := Load(context.Background(), &SQLSource{DB: db, Query: "SELECT * FROM recipes"}, Options{})
	if err != nil {
		t.Fatalf("SQL 加载失败: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d", c.Len())
	}
	soup := c.Recipe(0)
	if soup.RatingCount != 42 || soup.Cook != 20 || soup.DietType != "" {
		t.Fatalf("Tomato Soup 解析不符: %+v", soup)
	}
	if p := c.Recipe(1); p.RatingCount != 1024 || p.Rating != 4.9 {
		t.Fatalf("Pancakes 解析不符: %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("SQL 期望未满足: %v", err)
	}
}

func TestXLSXSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipes.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetSheetRow(sheet, "A1", &[]any{"Name", "Category", "Rating", "Rating Count", "Servings"})
	_ = f.SetSheetRow(sheet, "A2", &[]any{"Greek Salad", "Salad", 4.1, 15, 2})
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("写入 xlsx 失败: %v", err)
	}
	_ = f.Close()

	src, err := OpenSource(SourceConfig{Path: path})
	if err != nil {
		t.Fatalf("OpenSource 失败: %v", err)
	}
	c, err := Load(context.Background(), src, Options{})
	if err != nil {
		t.Fatalf("xlsx 加载失败: %v", err)
	}
	if r := c.Recipe(0); r.Name != "Greek Salad" || r.RatingCount != 15 {
		t.Fatalf("xlsx 记录不符: %+v", r)
	}
}

func TestOpenSource(t *testing.T) {
	if _, err := OpenSource(SourceConfig{Kind: "sqlite", Path: ":memory:", Table: "recipes; DROP TABLE x"}); err == nil {
		t.Fatal("非法表名应报错")
	}
	if _, err := OpenSource(SourceConfig{Kind: "parquet"}); err == nil {
		t.Fatal("未知类型应报错")
	}
	src, err := OpenSource(SourceConfig{Path: "data/recipes.csv"})
	if err != nil {
		t.Fatalf("OpenSource 失败: %v", err)
	}
	if _, ok := src.(*CSVSource); !ok {
		t.Fatalf("默认应为 CSV, got %T", src)
	}
}
