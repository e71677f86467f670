package config

import (
	"sort"
	"strings"
	"sync"

	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/pipeline"
)

// 阶段文件只描述召回之后的节点：召回固定为同簇召回，由引擎放在最前面。
// 内置节点（rank.rating_weight、rerank.position_decay、rerank.topn、
// rerank.popularity_sort、rerank.diversity、filter）在 config/builders 的 init 中注册，
// 入口需 import 该包。

// NodeBuilder 与 pipeline.NodeBuilder 一致。
type NodeBuilder = pipeline.NodeBuilder

// recallPrefix 开头的类型不允许出现在阶段文件中。
const recallPrefix = "recall."

var (
	stageBuilders   = make(map[string]NodeBuilder)
	stageBuildersMu sync.RWMutex
)

// Register 注册一种阶段节点，例如 config.Register("rerank.topn", BuildTopNNode)。
// 空类型名或 nil builder 被忽略。
func Register(typeName string, builder NodeBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	stageBuildersMu.Lock()
	defer stageBuildersMu.Unlock()
	stageBuilders[typeName] = builder
}

// SupportedTypes 返回已注册的类型，按名称排序。
func SupportedTypes() []string {
	stageBuildersMu.RLock()
	defer stageBuildersMu.RUnlock()
	return sortedKeys()
}

// DefaultFactory 用当前注册表生成 NodeFactory。
func DefaultFactory() *pipeline.NodeFactory {
	stageBuildersMu.RLock()
	defer stageBuildersMu.RUnlock()
	f := pipeline.NewNodeFactory()
	for typeName, builder := range stageBuilders {
		f.Register(typeName, builder)
	}
	return f
}

// ValidatePipelineConfig 在构建前检查阶段文件：至少一个节点，类型非空、已注册且不是召回节点。
// 错误均为 INVALID_INPUT，消息里带上第几个节点与已支持的类型。
func ValidatePipelineConfig(cfg *pipeline.Config) error {
	if cfg == nil {
		return nil
	}
	if len(cfg.Pipeline.Nodes) == 0 {
		return core.Errorf(core.ModuleConfig, core.ErrorCodeInvalidInput,
			"pipeline %q has no stages", cfg.Pipeline.Name)
	}

	stageBuildersMu.RLock()
	defer stageBuildersMu.RUnlock()
	for i, nc := range cfg.Pipeline.Nodes {
		switch {
		case nc.Type == "":
			return core.Errorf(core.ModuleConfig, core.ErrorCodeInvalidInput,
				"stage %d: type is empty", i)
		case strings.HasPrefix(nc.Type, recallPrefix):
			return core.Errorf(core.ModuleConfig, core.ErrorCodeInvalidInput,
				"stage %d: %q is a recall node, recall is always the cluster recall", i, nc.Type)
		}
		if _, ok := stageBuilders[nc.Type]; !ok {
			return core.Errorf(core.ModuleConfig, core.ErrorCodeInvalidInput,
				"stage %d: unsupported node type %q (supported: %s)", i, nc.Type, strings.Join(sortedKeys(), ", "))
		}
	}
	return nil
}

// sortedKeys 调用方需持有读锁。
func sortedKeys() []string {
	types := make([]string, 0, len(stageBuilders))
	for t := range stageBuilders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
