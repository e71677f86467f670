package feature

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rushteam/recipekit/model"
	"github.com/rushteam/recipekit/service"
)

// Models 是一组配套的只读模型：Projector（TF-IDF + PCA）与簇模型。
type Models struct {
	Manifest  *model.Manifest
	Projector *Projector
	Cluster   model.ClusterModel
}

// Validate 校验整条模型链路的维度：vectorizer → reducer → cluster model。
func (m *Models) Validate() error {
	if err := m.Projector.Validate(); err != nil {
		return err
	}
	return model.CheckClusterInput(m.Cluster, m.Projector.Dim())
}

// BundleOptions 加载选项。
type BundleOptions struct {
	// Loader 默认按 scheme 分派的文件/HTTP 加载器
	Loader ArtifactLoader

	// RemoteTimeout / RemoteRPS 仅对远程簇模型生效
	RemoteTimeout time.Duration
	RemoteRPS     float64
	RemoteBurst   int
}

// LoadModels 读取清单并加载三个制品，加载后做维度校验。
func LoadModels(ctx context.Context, manifestSource string, opts BundleOptions) (*Models, error) {
	loader := opts.Loader
	if loader == nil {
		loader = NewSchemeLoader()
	}

	data, err := loader.Load(ctx, manifestSource)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	manifest, err := model.ParseManifest(data, manifestBase(manifestSource))
	if err != nil {
		return nil, err
	}

	vecData, err := loader.Load(ctx, manifest.Vectorizer)
	if err != nil {
		return nil, fmt.Errorf("load vectorizer: %w", err)
	}
	vectorizer, err := model.DecodeVectorizer(vecData)
	if err != nil {
		return nil, err
	}

	pcaData, err := loader.Load(ctx, manifest.Reducer)
	if err != nil {
		return nil, fmt.Errorf("load reducer: %w", err)
	}
	reducer, err := model.DecodePCA(pcaData)
	if err != nil {
		return nil, err
	}

	projector, err := NewProjector(vectorizer, reducer)
	if err != nil {
		return nil, err
	}

	var cluster model.ClusterModel
	if manifest.ClusterModel != "" {
		cmData, err := loader.Load(ctx, manifest.ClusterModel)
		if err != nil {
			return nil, fmt.Errorf("load cluster model: %w", err)
		}
		cluster, err = model.DecodeClusterModel(cmData)
		if err != nil {
			return nil, err
		}
	} else {
		r := manifest.Remote
		svcOpts := []service.TFServingOption{}
		if opts.RemoteTimeout > 0 {
			svcOpts = append(svcOpts, service.WithTFServingTimeout(opts.RemoteTimeout))
		}
		if opts.RemoteRPS > 0 {
			svcOpts = append(svcOpts, service.WithTFServingRateLimit(opts.RemoteRPS, opts.RemoteBurst))
		}
		dim := r.InputDim
		if dim == 0 {
			dim = projector.Dim()
		}
		cluster = &model.RemoteClusterModel{
			Service:   service.NewTFServingClient(r.Endpoint, r.ModelName, svcOpts...),
			ModelName: r.ModelName,
			Dim:       dim,
			Clusters:  r.Clusters,
			BatchSize: r.BatchSize,
		}
	}

	m := &Models{Manifest: manifest, Projector: projector, Cluster: cluster}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func manifestBase(source string) string {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		if i := strings.LastIndex(source, "/"); i > len("https://") {
			return source[:i]
		}
		return ""
	}
	return filepath.Dir(source)
}
