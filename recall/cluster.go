package recall

import (
	"context"
	"strconv"

	"github.com/rushteam/recipekit/catalog"
	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/feature"
	"github.com/rushteam/recipekit/logging"
	"github.com/rushteam/recipekit/model"
	"github.com/rushteam/recipekit/pipeline"
	"github.com/rushteam/recipekit/pkg/utils"
)

// FeatureSimilarity 是召回时写入的余弦相似度特征名。
const FeatureSimilarity = "similarity"

// ClusterRecall 召回与目标菜谱同簇的全部菜谱，Score 为余弦相似度。
//
// 候选按目录顺序输出（含目标本身），Meta["position"] 记录其在同簇列表中的位置，
// 后续节点（位置衰减）依赖该位置，剔除目标不会改变其他候选的位置。
type ClusterRecall struct {
	Catalog *catalog.Catalog
	Matrix  *feature.Matrix
	Model   model.ClusterModel

	// Strict 为 true 时重新推断的簇与目录标签不一致即报 ModelContractViolation；
	// 否则以目录标签为准并告警
	Strict bool
}

func (r *ClusterRecall) Name() string        { return "recall.cluster" }
func (r *ClusterRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，忽略上游 items。
func (r *ClusterRecall) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *ClusterRecall) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	target, ok := r.Catalog.Lookup(rctx.Target)
	if !ok {
		return nil, core.Errorf(core.ModuleRecommend, core.ErrorCodeNotFound, "recipe %q not found", rctx.Target)
	}

	cluster, err := model.Assign(ctx, r.Model, r.Matrix.Row(target))
	if err != nil {
		return nil, err
	}
	if label := r.Catalog.Recipe(target).Cluster; cluster != label {
		if r.Strict {
			return nil, core.Errorf(core.ModuleRecommend, core.ErrorCodeModelContractViolation,
				"recipe %q: model assigns cluster %d, catalog has %d", rctx.Target, cluster, label)
		}
		logging.Ctx(ctx).Warn().Str("target", rctx.Target).Int("model", cluster).Int("catalog", label).
			Msg("recall: cluster disagreement, using catalog label")
		cluster = label
	}

	peers := r.Catalog.Peers(cluster)
	out := make([]*core.Item, 0, len(peers))
	clusterStr := strconv.Itoa(cluster)
	for pos, idx := range peers {
		rec := r.Catalog.Recipe(idx)
		sim := r.Matrix.Cosine(target, idx)

		it := core.NewItem(rec.Name)
		it.Score = sim
		it.Features[FeatureSimilarity] = sim
		it.Meta[core.MetaIndex] = idx
		it.Meta[core.MetaPosition] = pos
		it.Meta[core.MetaRating] = rec.Rating
		it.Meta[core.MetaRatingCount] = rec.RatingCount
		it.Meta[core.MetaCategory] = rec.Category
		it.Meta[core.MetaDietType] = rec.DietType
		it.Meta[core.MetaCalories] = rec.Calories
		it.Meta[core.MetaServings] = rec.Servings
		if rec.HasCook {
			it.Meta[core.MetaCook] = rec.Cook
		}
		it.Meta[core.MetaCluster] = cluster
		it.PutLabel("recall_source", utils.Label{Value: "cluster", Source: "recall"})
		it.PutLabel("cluster", utils.Label{Value: clusterStr, Source: "recall"})
		if rec.Category != "" {
			it.PutLabel(core.MetaCategory, utils.Label{Value: rec.Category, Source: "recall"})
		}
		if idx == target {
			it.PutLabel("is_target", utils.Label{Value: "true", Source: "recall"})
		}
		out = append(out, it)
	}
	return out, nil
}

var _ Source = (*ClusterRecall)(nil)
