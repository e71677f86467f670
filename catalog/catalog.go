// Package catalog 加载菜谱目录并提供按名查找、按簇取同簇菜谱等只读访问。
//
// 目录一旦构建即不可变：WithClusters 返回新的 Catalog，原对象不受影响。
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/logging"
)

// Options 目录构建选项。
type Options struct {
	// Strict 为 true 时任一行解析或校验失败即返回错误；否则跳过该行并告警
	Strict bool
}

// Catalog 是按文件顺序排列的菜谱集合。
type Catalog struct {
	recipes []core.Recipe
	byName  map[string]int

	// clusters 簇 ID -> 目录下标（目录顺序）
	clusters map[int][]int

	categories []string
	dietTypes  []string
}

// Load 从 Source 读取全部行并构建目录。
func Load(ctx context.Context, src Source, opts Options) (*Catalog, error) {
	cols, rows, err := src.Rows(ctx)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable,
			fmt.Sprintf("catalog: read %s", src.Name()), err)
	}
	h := newHeader(cols)
	if err := h.requireColumns(); err != nil {
		return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, "catalog: bad header", err)
	}

	recipes := make([]core.Recipe, 0, len(rows))
	skipped := 0
	for i, rec := range rows {
		if isBlank(rec) {
			continue
		}
		r, err := h.parseRecord(rec)
		if err != nil {
			if opts.Strict {
				return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput,
					fmt.Sprintf("catalog: row %d", i+2), err)
			}
			skipped++
			logging.Warn().Str("source", src.Name()).Int("row", i+2).Err(err).Msg("catalog: skip invalid row")
			continue
		}
		recipes = append(recipes, r)
	}

	c, err := New(recipes)
	if err != nil {
		return nil, err
	}
	logging.Info().Str("source", src.Name()).Int("recipes", c.Len()).Int("skipped", skipped).
		Int("categories", len(c.categories)).Msg("catalog loaded")
	return c, nil
}

// New 由已解析的菜谱构建目录。重名菜谱保留首条并告警。
func New(recipes []core.Recipe) (*Catalog, error) {
	c := &Catalog{
		recipes: make([]core.Recipe, 0, len(recipes)),
		byName:  make(map[string]int, len(recipes)),
	}
	for _, r := range recipes {
		if r.Name == "" {
			return nil, core.Errorf(core.ModuleCatalog, core.ErrorCodeInvalidInput, "catalog: recipe without name")
		}
		if _, dup := c.byName[r.Name]; dup {
			logging.Warn().Str("name", r.Name).Msg("catalog: duplicate recipe name, keeping first")
			continue
		}
		c.byName[r.Name] = len(c.recipes)
		c.recipes = append(c.recipes, r)
	}
	if len(c.recipes) == 0 {
		return nil, core.Errorf(core.ModuleCatalog, core.ErrorCodeInvalidInput, "catalog: no recipes")
	}
	c.index()
	return c, nil
}

func (c *Catalog) index() {
	c.clusters = make(map[int][]int)
	cats := map[string]struct{}{}
	diets := map[string]struct{}{}
	for i := range c.recipes {
		r := &c.recipes[i]
		c.clusters[r.Cluster] = append(c.clusters[r.Cluster], i)
		if r.Category != "" {
			cats[r.Category] = struct{}{}
		}
		if r.DietType != "" {
			diets[r.DietType] = struct{}{}
		}
	}
	c.categories = sortedKeys(cats)
	c.dietTypes = sortedKeys(diets)
}

// Len 菜谱数量。
func (c *Catalog) Len() int { return len(c.recipes) }

// Recipe 按目录下标取菜谱。
func (c *Catalog) Recipe(i int) *core.Recipe { return &c.recipes[i] }

// Recipes 返回目录内全部菜谱（只读）。
func (c *Catalog) Recipes() []core.Recipe { return c.recipes }

// Lookup 按名称精确查找，返回目录下标。
func (c *Catalog) Lookup(name string) (int, bool) {
	i, ok := c.byName[name]
	return i, ok
}

// Peers 返回簇内全部菜谱下标（目录顺序）。
func (c *Catalog) Peers(cluster int) []int { return c.clusters[cluster] }

// ClusterSizes 返回各簇大小。
func (c *Catalog) ClusterSizes() map[int]int {
	out := make(map[int]int, len(c.clusters))
	for k, v := range c.clusters {
		out[k] = len(v)
	}
	return out
}

// Categories 去重排序后的分类。
func (c *Catalog) Categories() []string { return c.categories }

// DietTypes 去重排序后的饮食类型。
func (c *Catalog) DietTypes() []string { return c.dietTypes }

// Texts 返回每行用于投影的文本。
func (c *Catalog) Texts() []string {
	out := make([]string, len(c.recipes))
	for i := range c.recipes {
		out[i] = c.recipes[i].CombinedFeatures
	}
	return out
}

// WithClusters 返回按 labels 重新赋簇的副本，labels 与目录按下标对齐。
func (c *Catalog) WithClusters(labels []int) (*Catalog, error) {
	if len(labels) != len(c.recipes) {
		return nil, core.Errorf(core.ModuleCatalog, core.ErrorCodeModelContractViolation,
			"catalog: %d cluster labels for %d recipes", len(labels), len(c.recipes))
	}
	out := &Catalog{
		recipes: make([]core.Recipe, len(c.recipes)),
		byName:  c.byName,
	}
	copy(out.recipes, c.recipes)
	for i, l := range labels {
		out.recipes[i].Cluster = l
	}
	out.index()
	return out, nil
}

// SourceClusters 返回目录文件自带的簇标签；任一行缺失时 ok 为 false。
func (c *Catalog) SourceClusters() (labels []int, ok bool) {
	labels = make([]int, len(c.recipes))
	for i := range c.recipes {
		if c.recipes[i].SourceCluster < 0 {
			return nil, false
		}
		labels[i] = c.recipes[i].SourceCluster
	}
	return labels, true
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
