package core

import (
	"strconv"
	"strings"
)

// Recipe 是目录中的一行菜谱记录，加载后只读。
//
// 营养字段成对出现：克数与每日推荐摄入百分比（DV%），
// Carbohydrates/Sugars/Fat/Protein 为派生的展示字符串 "Xg (Y%)"。
type Recipe struct {
	Name        string  `json:"name" validate:"required"`
	Category    string  `json:"category"`
	Ingredients string  `json:"ingredients"`
	Directions  string  `json:"directions"`
	Rating      float64 `json:"rating" validate:"gte=0,lte=5"`
	RatingCount int     `json:"rating_count" validate:"gte=0"`
	DietType    string  `json:"diet_type"`
	Calories    float64 `json:"calories" validate:"gte=0"`
	Servings    int     `json:"servings" validate:"gt=0"`

	CarbohydratesG     float64 `json:"carbohydrates_g"`
	CarbohydratesDVPct float64 `json:"carbohydrates_g_dv_perc"`
	SugarsG            float64 `json:"sugars_g"`
	SugarsDVPct        float64 `json:"sugars_g_dv_perc"`
	FatG               float64 `json:"fat_g"`
	FatDVPct           float64 `json:"fat_g_dv_perc"`
	ProteinG           float64 `json:"protein_g"`
	ProteinDVPct       float64 `json:"protein_g_dv_perc"`

	// Cook 烹饪时长（分钟），HasCook 为 false 时无意义
	Cook    int  `json:"cook" validate:"gte=0"`
	HasCook bool `json:"has_cook"`

	// IngredientTokens 高层食材串（如 "chicken, garlic, rice"），分面检索按子串匹配
	IngredientTokens string `json:"high_level_ingredients_str"`

	// CombinedFeatures 投影用的文本
	CombinedFeatures string `json:"combined_features"`

	// SourceCluster 目录文件自带的簇标签（-1 表示没有）
	SourceCluster int `json:"-"`

	// Cluster 加载时由簇模型统一赋值
	Cluster int `json:"cluster"`

	Carbohydrates string `json:"carbohydrates"`
	Sugars        string `json:"sugars"`
	Fat           string `json:"fat"`
	Protein       string `json:"protein"`
}

// FormatMacro 生成 "Xg (Y%)" 展示串，数值按最短形式输出（12 而非 12.0）。
func FormatMacro(grams, dvPct float64) string {
	var b strings.Builder
	b.WriteString(strconv.FormatFloat(grams, 'f', -1, 64))
	b.WriteString("g (")
	b.WriteString(strconv.FormatFloat(dvPct, 'f', -1, 64))
	b.WriteString("%)")
	return b.String()
}

// DeriveDisplay 填充营养展示字段。
func (r *Recipe) DeriveDisplay() {
	r.Carbohydrates = FormatMacro(r.CarbohydratesG, r.CarbohydratesDVPct)
	r.Sugars = FormatMacro(r.SugarsG, r.SugarsDVPct)
	r.Fat = FormatMacro(r.FatG, r.FatDVPct)
	r.Protein = FormatMacro(r.ProteinG, r.ProteinDVPct)
}

// RecipeView 是对外返回的字段子集。
type RecipeView struct {
	Rank          int     `json:"rank"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Ingredients   string  `json:"ingredients"`
	Directions    string  `json:"directions"`
	Rating        float64 `json:"rating"`
	RatingCount   int     `json:"rating_count"`
	DietType      string  `json:"diet_type"`
	Calories      float64 `json:"calories"`
	Servings      int     `json:"servings"`
	Carbohydrates string  `json:"carbohydrates"`
	Sugars        string  `json:"sugars"`
	Fat           string  `json:"fat"`
	Protein       string  `json:"protein"`
	// Cook 烹饪时长未知时为 null
	Cook *int `json:"cook"`
}

// View 投影为对外字段，rank 从 1 开始。
func (r *Recipe) View(rank int) RecipeView {
	v := RecipeView{
		Rank:          rank,
		Name:          r.Name,
		Category:      r.Category,
		Ingredients:   r.Ingredients,
		Directions:    r.Directions,
		Rating:        r.Rating,
		RatingCount:   r.RatingCount,
		DietType:      r.DietType,
		Calories:      r.Calories,
		Servings:      r.Servings,
		Carbohydrates: r.Carbohydrates,
		Sugars:        r.Sugars,
		Fat:           r.Fat,
		Protein:       r.Protein,
	}
	if r.HasCook {
		cook := r.Cook
		v.Cook = &cook
	}
	return v
}

// MorePopular 是 (rating_count desc, rating desc) 的比较函数。
func MorePopular(a, b *Recipe) bool {
	if a.RatingCount != b.RatingCount {
		return a.RatingCount > b.RatingCount
	}
	return a.Rating > b.Rating
}
