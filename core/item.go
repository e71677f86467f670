package core

import "github.com/rushteam/recipekit/pkg/utils"

// Item 是推荐链路中的统一承载结构：特征、分数、元信息、标签。
// ID 为菜谱名（目录内唯一）；Labels 用于解释与策略驱动；Score 用于排序决策。
type Item struct {
	ID       string
	Score    float64
	Features map[string]float64
	Meta     map[string]any
	Labels   map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:       id,
		Score:    0,
		Features: make(map[string]float64),
		Meta:     make(map[string]any),
		Labels:   make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// MetaInt 读取整型元信息，取不到时返回 def。
func (it *Item) MetaInt(key string, def int) int {
	if it.Meta == nil {
		return def
	}
	switch v := it.Meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// MetaFloat 读取浮点元信息，取不到时返回 def。
func (it *Item) MetaFloat(key string, def float64) float64 {
	if it.Meta == nil {
		return def
	}
	switch v := it.Meta[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// 推荐链路中约定的 Meta key。
const (
	MetaIndex       = "index"        // 目录下标
	MetaPosition    = "position"     // 在同簇候选集中的位置（目录顺序）
	MetaRating      = "rating"       // 评分
	MetaRatingCount = "rating_count" // 评分人数
	MetaCategory    = "category"
	MetaDietType    = "diet_type"
	MetaCalories    = "calories"
	MetaServings    = "servings"
	MetaCook        = "cook"
	MetaCluster     = "cluster"
)
