package filter

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/recipekit/core"
)

// StoreAdapter 将 core.Store 适配为过滤器所需的存储接口。
// 黑名单以 JSON 数组形式存放，例如 ["Old Recipe","Broken Recipe"]；
// 若 Store 实现了 KeyValueStore，则优先读取同名有序集合（分数为加入时间）。
type StoreAdapter struct {
	store core.Store
}

// NewStoreAdapter 创建一个 core.Store 适配器。
func NewStoreAdapter(s core.Store) *StoreAdapter {
	return &StoreAdapter{store: s}
}

// GetBlacklist 从 Store 读取黑名单。
func (a *StoreAdapter) GetBlacklist(ctx context.Context, key string) ([]string, error) {
	if kv, ok := a.store.(core.KeyValueStore); ok {
		members, err := kv.ZRange(ctx, key, 0, -1)
		if err == nil && len(members) > 0 {
			return members, nil
		}
	}

	data, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// PutBlacklist 以 JSON 数组写入黑名单。
func (a *StoreAdapter) PutBlacklist(ctx context.Context, key string, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, key, data)
}

// AddToBlacklist 追加菜谱名。Store 支持有序集合时以当前时间为分数写入，
// 否则读出 JSON 数组去重合并后写回。
func (a *StoreAdapter) AddToBlacklist(ctx context.Context, key string, names ...string) error {
	if kv, ok := a.store.(core.KeyValueStore); ok {
		now := float64(time.Now().Unix())
		for _, name := range names {
			if err := kv.ZAdd(ctx, key, now, name); err != nil {
				return err
			}
		}
		return nil
	}

	ids, err := a.GetBlacklist(ctx, key)
	if err != nil && !core.IsStoreNotFound(err) {
		return err
	}
	seen := make(map[string]struct{}, len(ids)+len(names))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		ids = append(ids, name)
	}
	return a.PutBlacklist(ctx, key, ids)
}
