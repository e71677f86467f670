// Package search 提供目录上的分面检索与名称自动补全。
//
// 分面是类型化的谓词列表，按 AND 组合，不解释任何查询字符串。
package search

import (
	"sort"
	"strings"

	"github.com/rushteam/recipekit/catalog"
	"github.com/rushteam/recipekit/core"
)

// DietGeneral 表示不限饮食类型。
const DietGeneral = "General"

// QuickCookMinutes 快手菜的烹饪时长上限（含）。
const QuickCookMinutes = 15

// CrowdServings 多人份的份数下限（含）。
const CrowdServings = 5

// Predicate 是单个分面条件。
type Predicate interface {
	Name() string
	Match(r *core.Recipe) bool
}

// Category 分类精确匹配。
type Category string

func (p Category) Name() string              { return "category" }
func (p Category) Match(r *core.Recipe) bool { return r.Category == string(p) }

// DietType 饮食类型精确匹配。
type DietType string

func (p DietType) Name() string              { return "diet_type" }
func (p DietType) Match(r *core.Recipe) bool { return r.DietType == string(p) }

// Ingredients 每个食材都须出现在菜谱的食材串中（大小写不敏感的子串匹配）。
type Ingredients []string

func (p Ingredients) Name() string { return "ingredients" }
func (p Ingredients) Match(r *core.Recipe) bool {
	tokens := strings.ToLower(r.IngredientTokens)
	for _, term := range p {
		if !strings.Contains(tokens, strings.ToLower(term)) {
			return false
		}
	}
	return true
}

// ParseIngredients 按逗号切分食材输入，去掉空白项。
func ParseIngredients(s string) Ingredients {
	var out Ingredients
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Servings 份数条件。
type Servings int

const (
	ServingsOne Servings = iota + 1
	ServingsTwo
	ServingsCrowd
)

func (p Servings) Name() string { return "servings" }
func (p Servings) Match(r *core.Recipe) bool {
	switch p {
	case ServingsOne:
		return r.Servings == 1
	case ServingsTwo:
		return r.Servings == 2
	case ServingsCrowd:
		return r.Servings >= CrowdServings
	}
	return false
}

// Quick 烹饪时长已知且不超过 QuickCookMinutes。
type Quick struct{}

func (Quick) Name() string { return "quick" }
func (Quick) Match(r *core.Recipe) bool {
	return r.HasCook && r.Cook <= QuickCookMinutes
}

// NameContains 名称子串匹配，大小写不敏感。
type NameContains string

func (p NameContains) Name() string { return "name" }
func (p NameContains) Match(r *core.Recipe) bool {
	return strings.Contains(strings.ToLower(r.Name), strings.ToLower(string(p)))
}

// Query 是一次分面检索的条件。空字段表示不限。
type Query struct {
	Name        string
	Category    string
	DietType    string
	Ingredients string

	// 份数条件按 AND 组合：同时勾选 One 和 Two 不会有结果
	ServingsOne   bool
	ServingsTwo   bool
	ServingsCrowd bool
	Quick         bool

	// Limit 结果上限，<= 0 表示不限
	Limit int
}

// Predicates 把 Query 转为谓词列表。
func (q Query) Predicates() []Predicate {
	var ps []Predicate
	if q.Name != "" {
		ps = append(ps, NameContains(q.Name))
	}
	if q.Category != "" {
		ps = append(ps, Category(q.Category))
	}
	if q.DietType != "" && q.DietType != DietGeneral {
		ps = append(ps, DietType(q.DietType))
	}
	if ing := ParseIngredients(q.Ingredients); len(ing) > 0 {
		ps = append(ps, ing)
	}
	if q.ServingsOne {
		ps = append(ps, ServingsOne)
	}
	if q.ServingsTwo {
		ps = append(ps, ServingsTwo)
	}
	if q.ServingsCrowd {
		ps = append(ps, ServingsCrowd)
	}
	if q.Quick {
		ps = append(ps, Quick{})
	}
	return ps
}

// Filter 返回满足全部谓词的菜谱，按 (rating_count desc, rating desc) 排序，同序保持目录顺序。
func Filter(c *catalog.Catalog, limit int, preds ...Predicate) []*core.Recipe {
	var out []*core.Recipe
	for i := 0; i < c.Len(); i++ {
		r := c.Recipe(i)
		if matchAll(r, preds) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return core.MorePopular(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Search 执行 Query。
func Search(c *catalog.Catalog, q Query) []*core.Recipe {
	return Filter(c, q.Limit, q.Predicates()...)
}

func matchAll(r *core.Recipe, preds []Predicate) bool {
	for _, p := range preds {
		if !p.Match(r) {
			return false
		}
	}
	return true
}
