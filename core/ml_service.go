package core

import "context"

// MLService 是远程模型服务的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（service）实现
//   - 领域层不依赖基础设施层
//
// 使用场景：
//   - 簇模型托管在 TensorFlow Serving 等服务上时，由 model.RemoteClusterModel 调用
type MLService interface {
	// Predict 批量预测
	Predict(ctx context.Context, req *MLPredictRequest) (*MLPredictResponse, error)

	// Health 健康检查
	Health(ctx context.Context) error

	// Close 关闭连接
	Close(ctx context.Context) error
}

// MLPredictRequest 预测请求
type MLPredictRequest struct {
	// Instances 特征实例列表（每个实例是一个稠密向量）
	// 格式：[[f1, f2, f3, ...], [f1, f2, f3, ...], ...]
	Instances [][]float64

	// ModelName 模型名称（可选，如果服务支持多模型）
	ModelName string

	// ModelVersion 模型版本（可选）
	ModelVersion string

	// SignatureName 签名名称（可选，TF Serving 使用）
	SignatureName string
}

// MLPredictResponse 预测响应
type MLPredictResponse struct {
	// Scores 每个实例的完整输出向量（与请求实例一一对应），
	// 簇模型即每个簇的亲和度
	Scores [][]float64

	// ModelVersion 模型版本（如果服务返回）
	ModelVersion string
}
