// Package recipekit 是一个基于内容的菜谱推荐工具包。
//
// 设计要点：
// - 目录与模型在启动时加载一次，整个目录统一投影并赋簇，之后只读
// - 推荐逻辑通过 Node 串联（Recall → Filter → Rank → ReRank），阶段可由 YAML 配置
// - 模型维度链路（vectorizer → reducer → cluster model）在启动时校验，不一致即失败
package recipekit

import (
	"github.com/rushteam/recipekit/pipeline"
	"github.com/rushteam/recipekit/recommend"
)

// 轻量 facade：便于直接 import "recipekit" 使用核心抽象。
type (
	Engine   = recommend.Engine
	Options  = recommend.Options
	Request  = recommend.Request
	Loader   = recommend.Loader
	Pipeline = pipeline.Pipeline
	Node     = pipeline.Node
	Kind     = pipeline.Kind
)

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)

var (
	New       = recommend.New
	NewLoader = recommend.NewLoader
)
