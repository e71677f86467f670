package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/logging"
)

// AuthConfig 认证信息
type AuthConfig struct {
	Type     string // basic / bearer / api_key
	Username string
	Password string
	Token    string
	APIKey   string
}

// TFServingClient 是 TensorFlow Serving 的 REST 客户端（端口 8501）。
//
// 用于托管在 TF Serving 上的簇模型：请求为降维后的稠密向量，
// 响应为每个簇的分数向量。
//
// 工程特征：
//   - 熔断：连续失败后短时间内直接返回 UNAVAILABLE，避免拖垮目录加载
//   - 限流：客户端侧令牌桶，保护共享的模型服务
type TFServingClient struct {
	// Endpoint 服务端点，如 "http://localhost:8501"
	Endpoint string

	// ModelName 模型名称
	ModelName string

	// ModelVersion 模型版本（可选，为空则使用最新版本）
	ModelVersion string

	// SignatureName 签名名称（默认 "serving_default"）
	SignatureName string

	// Timeout 单次请求超时
	Timeout time.Duration

	// Auth 认证信息
	Auth *AuthConfig

	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*core.MLPredictResponse]
	limiter    *rate.Limiter
}

// TFServingOption TF Serving 客户端配置选项
type TFServingOption func(*TFServingClient)

// NewTFServingClient 创建一个新的 TF Serving 客户端。
func NewTFServingClient(endpoint, modelName string, opts ...TFServingOption) *TFServingClient {
	client := &TFServingClient{
		Endpoint:      endpoint,
		ModelName:     modelName,
		SignatureName: "serving_default",
		Timeout:       30 * time.Second,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: client.Timeout}
	}
	if client.breaker == nil {
		client.breaker = gobreaker.NewCircuitBreaker[*core.MLPredictResponse](gobreaker.Settings{
			Name:        "tf_serving:" + modelName,
			MaxRequests: 1,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
					Msg("circuit breaker state change")
			},
		})
	}
	return client
}

// WithTFServingVersion 设置模型版本
func WithTFServingVersion(version string) TFServingOption {
	return func(c *TFServingClient) {
		c.ModelVersion = version
	}
}

// WithTFServingSignature 设置签名名称
func WithTFServingSignature(signatureName string) TFServingOption {
	return func(c *TFServingClient) {
		c.SignatureName = signatureName
	}
}

// WithTFServingTimeout 设置超时时间
func WithTFServingTimeout(timeout time.Duration) TFServingOption {
	return func(c *TFServingClient) {
		c.Timeout = timeout
	}
}

// WithTFServingAuth 设置认证信息
func WithTFServingAuth(auth *AuthConfig) TFServingOption {
	return func(c *TFServingClient) {
		c.Auth = auth
	}
}

// WithTFServingRateLimit 设置每秒请求数与突发量
func WithTFServingRateLimit(rps float64, burst int) TFServingOption {
	return func(c *TFServingClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// WithTFServingHTTPClient 使用自定义 HTTP 客户端
func WithTFServingHTTPClient(hc *http.Client) TFServingOption {
	return func(c *TFServingClient) {
		c.httpClient = hc
	}
}

// Predict 实现 core.MLService 接口
func (c *TFServingClient) Predict(ctx context.Context, req *core.MLPredictRequest) (*core.MLPredictResponse, error) {
	if req == nil || len(req.Instances) == 0 {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "tf serving: instances are required")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, core.WrapDomainError(core.ModuleService, core.ErrorCodeUnavailable, "tf serving: rate limit", err)
		}
	}
	resp, err := c.breaker.Execute(func() (*core.MLPredictResponse, error) {
		return c.predictREST(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, core.WrapDomainError(core.ModuleService, core.ErrorCodeUnavailable, "tf serving: circuit open", err)
	}
	return resp, err
}

func (c *TFServingClient) modelURL() string {
	name := c.ModelName
	if name == "" {
		name = "model"
	}
	if c.ModelVersion != "" {
		return fmt.Sprintf("%s/v1/models/%s/versions/%s", c.Endpoint, name, c.ModelVersion)
	}
	return fmt.Sprintf("%s/v1/models/%s", c.Endpoint, name)
}

func (c *TFServingClient) predictREST(ctx context.Context, req *core.MLPredictRequest) (*core.MLPredictResponse, error) {
	body := map[string]any{"instances": req.Instances}
	signature := c.SignatureName
	if req.SignatureName != "" {
		signature = req.SignatureName
	}
	if signature != "" {
		body["signature_name"] = signature
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL()+":predict", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.addAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleService, core.ErrorCodeUnavailable, "tf serving: request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		code := core.ErrorCodeInternalError
		if resp.StatusCode >= 500 {
			code = core.ErrorCodeUnavailable
		}
		return nil, core.Errorf(core.ModuleService, code, "tf serving error: status=%d, body=%s", resp.StatusCode, string(bodyBytes))
	}

	var result struct {
		Predictions []json.RawMessage `json:"predictions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// 每个实例的输出可能是向量，也可能是单个标量（二分类等）
	scores := make([][]float64, 0, len(result.Predictions))
	for i, raw := range result.Predictions {
		var vec []float64
		if err := json.Unmarshal(raw, &vec); err != nil {
			var scalar float64
			if err2 := json.Unmarshal(raw, &scalar); err2 != nil {
				return nil, fmt.Errorf("unexpected prediction %d: %s", i, string(raw))
			}
			vec = []float64{scalar}
		}
		scores = append(scores, vec)
	}

	return &core.MLPredictResponse{
		Scores:       scores,
		ModelVersion: c.ModelVersion,
	}, nil
}

// addAuth 添加认证信息到 HTTP 请求
func (c *TFServingClient) addAuth(req *http.Request) {
	if c.Auth == nil {
		return
	}
	switch c.Auth.Type {
	case "basic":
		req.SetBasicAuth(c.Auth.Username, c.Auth.Password)
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+c.Auth.Token)
	case "api_key":
		req.Header.Set("X-API-Key", c.Auth.APIKey)
	}
}

// Health 查询模型状态
func (c *TFServingClient) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelURL(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.addAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return core.WrapDomainError(core.ModuleService, core.ErrorCodeUnavailable, "tf serving: health check failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return core.Errorf(core.ModuleService, core.ErrorCodeUnavailable, "health check failed: status=%d, body=%s", resp.StatusCode, string(bodyBytes))
	}
	return nil
}

// Close 关闭空闲连接
func (c *TFServingClient) Close(context.Context) error {
	c.httpClient.CloseIdleConnections()
	return nil
}

var _ core.MLService = (*TFServingClient)(nil)
