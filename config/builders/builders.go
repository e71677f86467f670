package builders

import (
	"fmt"
	"sync"

	"github.com/rushteam/recipekit/config"
	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/filter"
	"github.com/rushteam/recipekit/pipeline"
	"github.com/rushteam/recipekit/pkg/conv"
	"github.com/rushteam/recipekit/rank"
	"github.com/rushteam/recipekit/rerank"
)

func init() {
	config.Register("rank.rating_weight", BuildRatingWeightNode)
	config.Register("rerank.position_decay", BuildPositionDecayNode)
	config.Register("rerank.topn", BuildTopNNode)
	config.Register("rerank.popularity_sort", BuildPopularitySortNode)
	config.Register("rerank.diversity", BuildDiversityNode)
	config.Register("filter", BuildFilterNode)
}

var (
	blacklistStore   core.Store
	blacklistStoreMu sync.RWMutex
)

// UseStore 设置黑名单过滤器读取的 Store；未设置时 blacklist 只使用配置中的 item_ids。
func UseStore(s core.Store) {
	blacklistStoreMu.Lock()
	defer blacklistStoreMu.Unlock()
	blacklistStore = s
}

func BuildRatingWeightNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return &rank.RatingWeight{MetaKey: conv.ConfigGet(cfg, "meta_key", "")}, nil
}

func BuildPositionDecayNode(cfg map[string]interface{}) (pipeline.Node, error) {
	node := &rerank.PositionDecay{}
	if _, ok := cfg["factor"]; ok {
		f := conv.ConfigGetFloat64(cfg, "factor", 0)
		node.Factor = &f
	}
	return node, nil
}

func BuildTopNNode(cfg map[string]interface{}) (pipeline.Node, error) {
	n := conv.ConfigGetInt64(cfg, "n", 0)
	if n < 0 {
		return nil, fmt.Errorf("n must be >= 0, got %d", n)
	}
	return &rerank.TopNNode{N: int(n)}, nil
}

func BuildPopularitySortNode(map[string]interface{}) (pipeline.Node, error) {
	return &rerank.PopularitySort{}, nil
}

func BuildDiversityNode(cfg map[string]interface{}) (pipeline.Node, error) {
	labelKey := conv.ConfigGet(cfg, "label_key", core.MetaCategory)
	if labelKey == "" {
		labelKey = core.MetaCategory
	}
	return &rerank.Diversity{
		LabelKey:  labelKey,
		MaxPerKey: int(conv.ConfigGetInt64(cfg, "max_per_key", 1)),
	}, nil
}

func BuildFilterNode(cfg map[string]interface{}) (pipeline.Node, error) {
	filtersConfig, ok := cfg["filters"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("filters not found or invalid")
	}
	filters := make([]filter.Filter, 0, len(filtersConfig))
	for _, fc := range filtersConfig {
		filterMap, ok := fc.(map[string]interface{})
		if !ok {
			continue
		}
		filterType := conv.ConfigGet(filterMap, "type", "")
		switch filterType {
		case "blacklist":
			ids := conv.SliceAnyToString(filterMap["item_ids"])
			if ids == nil {
				ids = []string{}
			}
			key := conv.ConfigGet(filterMap, "key", "")
			var adapter *filter.StoreAdapter
			blacklistStoreMu.RLock()
			if blacklistStore != nil && key != "" {
				adapter = filter.NewStoreAdapter(blacklistStore)
			}
			blacklistStoreMu.RUnlock()
			filters = append(filters, filter.NewBlacklistFilter(ids, adapter, key))
		case "expr":
			expr := conv.ConfigGet(filterMap, "expr", "")
			if expr == "" {
				return nil, fmt.Errorf("expr filter: expr is empty")
			}
			f, err := filter.NewExprFilter(expr)
			if err != nil {
				return nil, fmt.Errorf("expr filter: %w", err)
			}
			filters = append(filters, f)
		case "self_exclusion":
			filters = append(filters, &filter.SelfExclusionFilter{})
		default:
			return nil, fmt.Errorf("unknown filter type: %s", filterType)
		}
	}
	return &filter.FilterNode{Filters: filters}, nil
}
