package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/recipekit/catalog"
	"github.com/rushteam/recipekit/logging"
	"github.com/rushteam/recipekit/store"
)

// EnvPrefix 环境变量前缀；层级用双下划线分隔：RECIPEKIT_SERVER__ADDR -> server.addr。
const EnvPrefix = "RECIPEKIT_"

// Settings 是应用配置，优先级：环境变量 > 配置文件 > 默认值。
type Settings struct {
	Server    ServerSettings    `koanf:"server"`
	Catalog   CatalogSettings   `koanf:"catalog"`
	Models    ModelSettings     `koanf:"models"`
	Recommend RecommendSettings `koanf:"recommend"`
	Cache     CacheSettings     `koanf:"cache"`
	Log       logging.Config    `koanf:"log"`
}

type ServerSettings struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimit 每个客户端 IP 每分钟请求数，0 表示不限
	RateLimit      int      `koanf:"rate_limit" validate:"gte=0"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type CatalogSettings struct {
	Source catalog.SourceConfig `koanf:"source"`
	Strict bool                 `koanf:"strict"`
}

type ModelSettings struct {
	// Manifest 模型清单（本地路径或 http(s) URL）
	Manifest string `koanf:"manifest" validate:"required"`

	// Workers 目录投影并发数，0 表示 GOMAXPROCS
	Workers int `koanf:"workers" validate:"gte=0"`

	RemoteTimeout time.Duration `koanf:"remote_timeout"`
	RemoteRPS     float64       `koanf:"remote_rps" validate:"gte=0"`
	RemoteBurst   int           `koanf:"remote_burst" validate:"gte=0"`
}

type RecommendSettings struct {
	// ClusterPolicy: model（以模型推断为准）/ catalog（以目录自带标签为准）/ strict（二者必须一致）
	ClusterPolicy   string  `koanf:"cluster_policy" validate:"oneof=model catalog strict"`
	DefaultTopN     int     `koanf:"default_top_n" validate:"gte=1"`
	MaxTopN         int     `koanf:"max_top_n" validate:"gtefield=DefaultTopN"`
	Diversify       bool    `koanf:"diversify"`
	DiversityFactor float64 `koanf:"diversity_factor"`
	ExcludeTarget   bool    `koanf:"exclude_target"`

	// PipelineFile 可选，YAML/JSON 定义的 rank/rerank 阶段
	PipelineFile string `koanf:"pipeline_file"`
}

type CacheSettings struct {
	Store store.Config `koanf:"store"`

	// TTL 秒，0 表示不过期
	TTL int `koanf:"ttl" validate:"gte=0"`
}

// Default 返回默认配置。
func Default() Settings {
	return Settings{
		Server: ServerSettings{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       600,
			AllowedOrigins:  []string{"*"},
		},
		Catalog: CatalogSettings{
			Source: catalog.SourceConfig{Path: "data/recipes.csv"},
		},
		Models: ModelSettings{
			Manifest:      "models/manifest.yaml",
			RemoteTimeout: 5 * time.Second,
		},
		Recommend: RecommendSettings{
			ClusterPolicy:   "model",
			DefaultTopN:     10,
			MaxTopN:         100,
			DiversityFactor: 0.1,
		},
		Cache: CacheSettings{
			Store: store.Config{Backend: "memory", Prefix: "recipekit:"},
			TTL:   3600,
		},
		Log: logging.Config{Level: "info", Format: "json"},
	}
}

// Load 依次加载默认值、配置文件（path 为空则跳过）、环境变量，并校验。
func Load(path string) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	s := &Settings{}
	if err := k.Unmarshal("", s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// envKey RECIPEKIT_CACHE__STORE__BACKEND -> cache.store.backend
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验配置。
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
