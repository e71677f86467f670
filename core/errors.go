package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX），可穿透 fmt.Errorf("%w") 包装
//
// 使用场景：
//   - 推荐请求错误：NOT_FOUND（菜谱不存在）、INVALID_INPUT（top_n < 1 等）
//   - 模型契约错误：MODEL_CONTRACT_VIOLATION（维度不匹配，启动校验时致命）
//   - Store 错误：NOT_FOUND, NOT_SUPPORTED
//   - 远程服务错误：UNAVAILABLE
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "INVALID_INPUT"）
	Message string // 错误消息
	Module  string // 模块名称（如 "catalog", "model", "recommend"）
	Cause   error  // 底层错误（可选）
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is 按 Module + Code 比较，使 errors.Is(err, ErrStoreNotFound) 这类判断成立。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Module == t.Module
}

// IsDomainError 检查错误链中是否有 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// Errorf 创建带格式化消息的领域错误
func Errorf(module, code, format string, args ...any) *DomainError {
	return NewDomainError(module, code, fmt.Sprintf(format, args...))
}

// WrapDomainError 创建包装底层错误的领域错误
func WrapDomainError(module, code, message string, cause error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound               = "NOT_FOUND"                // 资源不存在
	ErrorCodeNotSupported           = "NOT_SUPPORTED"            // 操作不支持
	ErrorCodeUnavailable            = "UNAVAILABLE"              // 服务不可用
	ErrorCodeInvalidInput           = "INVALID_INPUT"            // 输入无效
	ErrorCodeModelContractViolation = "MODEL_CONTRACT_VIOLATION" // 模型输入输出维度不一致
	ErrorCodeInternalError          = "INTERNAL_ERROR"           // 内部错误
)

// 模块名称常量
const (
	ModuleStore     = "store"     // 存储模块
	ModuleCatalog   = "catalog"   // 菜谱目录
	ModuleModel     = "model"     // 模型制品
	ModuleFeature   = "feature"   // 特征投影
	ModuleRecommend = "recommend" // 推荐引擎
	ModuleSearch    = "search"    // 分面检索
	ModuleService   = "service"   // 远程服务
	ModuleAPI       = "api"       // HTTP 接口
	ModuleConfig    = "config"    // 配置与阶段定义
)

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	return hasCode(err, ErrorCodeNotSupported)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrorCodeInvalidInput)
}

// IsModelContractViolation 检查错误是否为 MODEL_CONTRACT_VIOLATION
func IsModelContractViolation(err error) bool {
	return hasCode(err, ErrorCodeModelContractViolation)
}
