package model

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// DecodeVectorizer 解析 JSON 格式的向量化器制品。
func DecodeVectorizer(data []byte) (*TFIDFVectorizer, error) {
	var a VectorizerArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode vectorizer: %w", err)
	}
	return NewTFIDFVectorizer(&a)
}

// DecodePCA 解析 JSON 格式的降维器制品。
func DecodePCA(data []byte) (*PCA, error) {
	var a PCAArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode pca: %w", err)
	}
	return NewPCA(&a)
}

// ClusterArtifact 是本地簇模型的导出格式，kind 决定使用哪些字段：
//
//	{"kind": "dnn", "layers": [{"weights": [[...]], "bias": [...], "activation": "relu"}, ...]}
//	{"kind": "kmeans", "centroids": [[...], ...]}
type ClusterArtifact struct {
	Kind      string          `json:"kind"`
	Layers    []LayerArtifact `json:"layers"`
	Centroids [][]float64     `json:"centroids"`
}

// DecodeClusterModel 解析 JSON 格式的本地簇模型制品。
func DecodeClusterModel(data []byte) (ClusterModel, error) {
	var a ClusterArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode cluster model: %w", err)
	}
	switch a.Kind {
	case "dnn", "mlp", "":
		return NewDNNModel(a.Layers)
	case "kmeans":
		return NewKMeansModel(a.Centroids)
	default:
		return nil, fmt.Errorf("decode cluster model: unknown kind %q", a.Kind)
	}
}

// Manifest 描述一组配套的模型制品，三者必须来自同一次训练。
//
//	vectorizer: tfidf.json
//	reducer: pca.json
//	cluster_model: cluster.json
//	# 或者使用远程簇模型：
//	remote:
//	  endpoint: http://localhost:8501
//	  model_name: recipe_cluster
//	  input_dim: 100
//	  clusters: 20
type Manifest struct {
	Version      string          `yaml:"version"`
	Vectorizer   string          `yaml:"vectorizer"`
	Reducer      string          `yaml:"reducer"`
	ClusterModel string          `yaml:"cluster_model"`
	Remote       *RemoteManifest `yaml:"remote"`
}

// RemoteManifest 远程簇模型配置。
type RemoteManifest struct {
	Endpoint  string `yaml:"endpoint"`
	ModelName string `yaml:"model_name"`
	InputDim  int    `yaml:"input_dim"`
	Clusters  int    `yaml:"clusters"`
	BatchSize int    `yaml:"batch_size"`
}

// ParseManifest 解析 YAML 清单；base 非空时把相对路径解析到 base 目录下（URL 不处理）。
func ParseManifest(data []byte, base string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Vectorizer == "" || m.Reducer == "" {
		return nil, fmt.Errorf("parse manifest: vectorizer and reducer are required")
	}
	if m.ClusterModel == "" && m.Remote == nil {
		return nil, fmt.Errorf("parse manifest: cluster_model or remote is required")
	}
	if m.Remote != nil && m.Remote.Endpoint == "" {
		return nil, fmt.Errorf("parse manifest: remote.endpoint is required")
	}
	if base != "" {
		m.Vectorizer = resolve(base, m.Vectorizer)
		m.Reducer = resolve(base, m.Reducer)
		if m.ClusterModel != "" {
			m.ClusterModel = resolve(base, m.ClusterModel)
		}
	}
	return &m, nil
}

func resolve(base, p string) string {
	if isURL(p) || filepath.IsAbs(p) {
		return p
	}
	if isURL(base) {
		return strings.TrimSuffix(base, "/") + "/" + path.Clean(p)
	}
	return filepath.Join(base, p)
}

func isURL(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}
