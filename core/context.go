package core

// RecommendContext 承载一次推荐请求的参数，贯穿整个 Pipeline 透传。
// 每个请求独立且无状态，不携带任何用户历史。
type RecommendContext struct {
	// RequestID 用于日志关联
	RequestID string

	// Target 是目标菜谱名（精确匹配）
	Target string

	// TopN 返回数量上限，必须 >= 1
	TopN int

	// Diversify 是否启用按位置衰减的多样化
	Diversify bool

	// DiversityFactor 位置衰减系数：score * (1 - factor * position)
	DiversityFactor float64

	// ExcludeTarget 是否从结果中剔除目标菜谱本身（默认保留）
	ExcludeTarget bool
}
