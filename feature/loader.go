package feature

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// ArtifactLoader 模型制品加载器接口。
// 支持从不同来源加载制品原始字节（本地文件、HTTP 接口等），解码由 model 包负责。
type ArtifactLoader interface {
	// Load 加载制品
	// source 是数据源标识（文件路径、URL 等）
	Load(ctx context.Context, source string) ([]byte, error)
}

// FileLoader 本地文件制品加载器
type FileLoader struct{}

// NewFileLoader 创建本地文件制品加载器
func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// Load 从本地文件加载制品
func (l *FileLoader) Load(ctx context.Context, filePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取制品文件失败: %w", err)
	}
	return data, nil
}

// SchemeLoader 按 source 前缀分派：http(s):// 走 HTTP，其余视为本地路径。
type SchemeLoader struct {
	File ArtifactLoader
	HTTP ArtifactLoader
}

// NewSchemeLoader 使用默认的文件与 HTTP 加载器
func NewSchemeLoader() *SchemeLoader {
	return &SchemeLoader{File: NewFileLoader(), HTTP: NewHTTPLoader(0)}
}

func (l *SchemeLoader) Load(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return l.HTTP.Load(ctx, source)
	}
	return l.File.Load(ctx, source)
}
