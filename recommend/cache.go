package recommend

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/logging"
)

const cacheKeyPrefix = "rec:v1:"

// cacheKey 由请求的全部参数组成；推荐是纯函数，同样的参数结果不变。
func cacheKey(req Request) string {
	var b strings.Builder
	b.WriteString(cacheKeyPrefix)
	b.WriteString(url.QueryEscape(req.Target))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(req.TopN))
	b.WriteByte(':')
	if req.Diversify {
		b.WriteString("d")
		b.WriteString(strconv.FormatFloat(req.DiversityFactor, 'g', -1, 64))
	} else {
		// 不多样化时系数不影响结果
		b.WriteString("-")
	}
	if req.ExcludeTarget {
		b.WriteString(":x")
	}
	return b.String()
}

func (e *Engine) cacheGet(ctx context.Context, key string) ([]core.RecipeView, bool) {
	data, err := e.cache.Get(ctx, key)
	if err != nil {
		if !core.IsStoreNotFound(err) {
			logging.Ctx(ctx).Warn().Err(err).Str("store", e.cache.Name()).Msg("recommend cache read failed")
		}
		e.cacheMiss()
		return nil, false
	}
	var views []core.RecipeView
	if err := json.Unmarshal(data, &views); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("recommend cache entry corrupt")
		e.cacheMiss()
		return nil, false
	}
	if e.metrics != nil {
		e.metrics.CacheHit()
	}
	return views, true
}

func (e *Engine) cacheMiss() {
	if e.metrics != nil {
		e.metrics.CacheMiss()
	}
}

func (e *Engine) cacheSet(ctx context.Context, key string, views []core.RecipeView) {
	data, err := json.Marshal(views)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, data, e.cacheTTL); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("store", e.cache.Name()).Msg("recommend cache write failed")
	}
}
