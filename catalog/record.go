package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rushteam/recipekit/core"
)

// 列名别名：目录文件可能来自不同导出工具，统一为下划线小写后查表。
var columnAliases = map[string]string{
	"recipe_name":            "name",
	"title":                  "name",
	"cook_time_(minutes)":    "cook",
	"cook_time":              "cook",
	"ingredient_tokens":      "high_level_ingredients_str",
	"high_level_ingredients": "high_level_ingredients_str",
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// header 把列名映射到列下标。
type header map[string]int

func newHeader(cols []string) header {
	h := make(header, len(cols))
	for i, c := range cols {
		key := normalizeColumn(c)
		if alias, ok := columnAliases[key]; ok {
			key = alias
		}
		if _, dup := h[key]; !dup {
			h[key] = i
		}
	}
	return h
}

func normalizeColumn(c string) string {
	c = strings.TrimPrefix(c, "\ufeff")
	c = strings.ToLower(strings.TrimSpace(c))
	return strings.Join(strings.Fields(c), "_")
}

func (h header) has(col string) bool {
	_, ok := h[col]
	return ok
}

func (h header) get(rec []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (h header) floatValue(rec []string, col string) (float64, error) {
	s := strings.ReplaceAll(h.get(rec, col), ",", "")
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %q is not a number", col, s)
	}
	return f, nil
}

func (h header) intValue(rec []string, col string) (int, error) {
	f, err := h.floatValue(rec, col)
	return int(f), err
}

// requireColumns 校验必需列存在。
func (h header) requireColumns() error {
	for _, col := range []string{"name", "rating", "rating_count", "servings"} {
		if !h.has(col) {
			return fmt.Errorf("catalog: missing required column %q", col)
		}
	}
	return nil
}

// parseRecord 将一行记录转为 Recipe，并填充派生字段。
func (h header) parseRecord(rec []string) (core.Recipe, error) {
	r := core.Recipe{
		Name:             h.get(rec, "name"),
		Category:         h.get(rec, "category"),
		Ingredients:      h.get(rec, "ingredients"),
		Directions:       h.get(rec, "directions"),
		DietType:         h.get(rec, "diet_type"),
		IngredientTokens: h.get(rec, "high_level_ingredients_str"),
		CombinedFeatures: h.get(rec, "combined_features"),
		SourceCluster:    -1,
	}

	var err error
	floats := []struct {
		col string
		dst *float64
	}{
		{"rating", &r.Rating},
		{"calories", &r.Calories},
		{"carbohydrates_g", &r.CarbohydratesG},
		{"carbohydrates_g_dv_perc", &r.CarbohydratesDVPct},
		{"sugars_g", &r.SugarsG},
		{"sugars_g_dv_perc", &r.SugarsDVPct},
		{"fat_g", &r.FatG},
		{"fat_g_dv_perc", &r.FatDVPct},
		{"protein_g", &r.ProteinG},
		{"protein_g_dv_perc", &r.ProteinDVPct},
	}
	for _, f := range floats {
		if *f.dst, err = h.floatValue(rec, f.col); err != nil {
			return r, err
		}
	}
	if r.RatingCount, err = h.intValue(rec, "rating_count"); err != nil {
		return r, err
	}
	if r.Servings, err = h.intValue(rec, "servings"); err != nil {
		return r, err
	}

	// 数值分钟优先，其次解析 "1 hr 10 mins" 这类文本
	if h.has("cook_time_mins") && h.get(rec, "cook_time_mins") != "" {
		if r.Cook, err = h.intValue(rec, "cook_time_mins"); err != nil {
			return r, err
		}
		r.HasCook = true
	} else if raw := h.get(rec, "cook"); raw != "" {
		if r.Cook, err = ParseMinutes(raw); err != nil {
			return r, err
		}
		r.HasCook = true
	}

	if raw := h.get(rec, "cluster"); raw != "" {
		c, err := strconv.Atoi(strings.TrimSuffix(raw, ".0"))
		if err != nil {
			return r, fmt.Errorf("column cluster: %q is not an integer", raw)
		}
		r.SourceCluster = c
	}

	derive(&r)
	if err := validate.Struct(&r); err != nil {
		return r, err
	}
	return r, nil
}

// derive 填充展示串与缺省的派生文本。
func derive(r *core.Recipe) {
	r.DeriveDisplay()
	if r.IngredientTokens == "" {
		r.IngredientTokens = strings.ToLower(r.Ingredients)
	}
	if r.CombinedFeatures == "" {
		parts := make([]string, 0, 4)
		for _, p := range []string{r.Name, r.Category, r.Ingredients, r.DietType} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		r.CombinedFeatures = strings.Join(parts, " ")
	}
}

var durationPart = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(hours?|hrs?|h|minutes?|mins?|m)?`)

// ParseMinutes 解析时长文本为分钟数："15" / "15 mins" / "1 hr 10 mins" / "2h"。
func ParseMinutes(s string) (int, error) {
	matches := durationPart.FindAllStringSubmatch(strings.ToLower(s), -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("column cook: %q is not a duration", s)
	}
	var total float64
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("column cook: %q is not a duration", s)
		}
		if strings.HasPrefix(m[2], "h") {
			v *= 60
		}
		total += v
	}
	return int(total + 0.5), nil
}
