package search

import (
	"sort"
	"strings"

	"github.com/rushteam/recipekit/catalog"
)

// AutocompleteIndex 是名称自动补全索引：大小写不敏感的子串匹配，按 rating_count 降序。
// 构建后只读。
type AutocompleteIndex struct {
	entries []entry
}

type entry struct {
	name  string
	lower string
}

// NewAutocompleteIndex 从目录构建索引，跳过空名称。
func NewAutocompleteIndex(c *catalog.Catalog) *AutocompleteIndex {
	type ranked struct {
		entry
		count int
	}
	rs := make([]ranked, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		r := c.Recipe(i)
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		rs = append(rs, ranked{entry: entry{name: r.Name, lower: strings.ToLower(r.Name)}, count: r.RatingCount})
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].count > rs[j].count })

	idx := &AutocompleteIndex{entries: make([]entry, len(rs))}
	for i, r := range rs {
		idx.entries[i] = r.entry
	}
	return idx
}

// Suggest 返回最多 limit 个包含 q 的名称；q 为空或 limit <= 0 时返回空。
func (idx *AutocompleteIndex) Suggest(q string, limit int) []string {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" || limit <= 0 {
		return []string{}
	}
	out := make([]string, 0, limit)
	for _, e := range idx.entries {
		if strings.Contains(e.lower, q) {
			out = append(out, e.name)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

// Len 索引中的名称数。
func (idx *AutocompleteIndex) Len() int { return len(idx.entries) }
