// Package store 提供 core.Store 的实现：内存、Redis、Badger。
//
// 接口定义在 core 包：
//
//	var s core.Store = store.NewMemoryStore()
//	var kv core.KeyValueStore = store.NewMemoryStore()
package store

import (
	"fmt"

	"github.com/rushteam/recipekit/core"
)

// Config 存储后端配置。
type Config struct {
	// Backend: none / memory / redis / badger
	Backend string `koanf:"backend" validate:"omitempty,oneof=none memory redis badger"`

	// Redis
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	URL      string `koanf:"url"`

	// Badger 数据目录；为空时使用内存模式
	Path string `koanf:"path"`

	// Prefix 所有 key 的前缀
	Prefix string `koanf:"prefix"`
}

// Open 按配置创建存储；Backend 为空或 none 时返回 (nil, nil)。
func Open(cfg Config) (core.Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		s, err := NewRedisStoreWithConfig(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "badger":
		s, err := NewBadgerStore(cfg.Path, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}
