package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/recommend"
	"github.com/rushteam/recipekit/search"
)

// RecommendResponse 推荐响应。
type RecommendResponse struct {
	Target  string            `json:"target"`
	Results []core.RecipeView `json:"results"`
}

// SuggestResponse 补全响应。
type SuggestResponse struct {
	Query       string   `json:"query"`
	Suggestions []string `json:"suggestions"`
}

// SearchResponse 分面检索响应。
type SearchResponse struct {
	Count   int               `json:"count"`
	Results []core.RecipeView `json:"results"`
}

func (h *Router) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Router) ready(w http.ResponseWriter, _ *http.Request) {
	if !h.engines.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Router) recommendQuery(w http.ResponseWriter, r *http.Request) {
	e, err := h.engines.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := parseRecommendQuery(r, e.DefaultRequest(r.URL.Query().Get("recipe")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.recommend(w, r, e, req)
}

func parseRecommendQuery(r *http.Request, req recommend.Request) (recommend.Request, error) {
	q := r.URL.Query()
	var err error
	if req.TopN, err = intParam(q.Get("top_n"), "top_n", req.TopN); err != nil {
		return req, err
	}
	if req.Diversify, err = boolParam(q.Get("diversify"), "diversify", req.Diversify); err != nil {
		return req, err
	}
	if req.DiversityFactor, err = floatParam(q.Get("diversity_factor"), "diversity_factor", req.DiversityFactor); err != nil {
		return req, err
	}
	req.ExcludeTarget, err = boolParam(q.Get("exclude_target"), "exclude_target", req.ExcludeTarget)
	return req, err
}

func (h *Router) recommendBody(w http.ResponseWriter, r *http.Request) {
	e, err := h.engines.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	// 未给出的字段取缺省值
	req := e.DefaultRequest("")
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, r, invalidParam("body", "%v", err))
		return
	}
	h.recommend(w, r, e, req)
}

func (h *Router) recommend(w http.ResponseWriter, r *http.Request, e *recommend.Engine, req recommend.Request) {
	req.Target = strings.TrimSpace(req.Target)
	if req.Target == "" {
		writeError(w, r, invalidParam("recipe", "required"))
		return
	}
	if h.opts.MaxTopN > 0 && req.TopN > h.opts.MaxTopN {
		writeError(w, r, invalidParam("top_n", "must be <= %d", h.opts.MaxTopN))
		return
	}
	views, err := e.Recommend(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RecommendResponse{Target: req.Target, Results: views})
}

func (h *Router) suggest(w http.ResponseWriter, r *http.Request) {
	e, err := h.engines.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, r, invalidParam("q", "required"))
		return
	}
	limit, err := intParam(r.URL.Query().Get("limit"), "limit", 5)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if limit < 1 || limit > h.opts.MaxSuggestions {
		writeError(w, r, invalidParam("limit", "must be in [1, %d]", h.opts.MaxSuggestions))
		return
	}
	writeJSON(w, http.StatusOK, SuggestResponse{Query: q, Suggestions: e.Suggest(q, limit)})
}

func (h *Router) search(w http.ResponseWriter, r *http.Request) {
	e, err := h.engines.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	query, err := parseSearchQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := e.Search(query)
	writeJSON(w, http.StatusOK, SearchResponse{Count: len(views), Results: views})
}

func parseSearchQuery(r *http.Request) (search.Query, error) {
	v := r.URL.Query()
	q := search.Query{
		Name:        strings.TrimSpace(v.Get("name")),
		Category:    v.Get("category"),
		DietType:    v.Get("diet_type"),
		Ingredients: v.Get("ingredients"),
	}
	for _, s := range v["servings"] {
		for _, p := range strings.Split(s, ",") {
			switch strings.ToLower(strings.TrimSpace(p)) {
			case "":
			case "one", "1":
				q.ServingsOne = true
			case "two", "2":
				q.ServingsTwo = true
			case "crowd":
				q.ServingsCrowd = true
			default:
				return q, invalidParam("servings", "unknown value %q", p)
			}
		}
	}
	var err error
	if q.Quick, err = boolParam(v.Get("quick"), "quick", false); err != nil {
		return q, err
	}
	if q.Limit, err = intParam(v.Get("limit"), "limit", 0); err != nil {
		return q, err
	}
	if q.Limit < 0 {
		return q, invalidParam("limit", "must be >= 0")
	}
	return q, nil
}

func (h *Router) facets(w http.ResponseWriter, r *http.Request) {
	e, err := h.engines.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e.Facets())
}

func (h *Router) stats(w http.ResponseWriter, r *http.Request) {
	e, err := h.engines.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e.Stats())
}

func intParam(raw, name string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam(name, "%q is not an integer", raw)
	}
	return n, nil
}

func floatParam(raw, name string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, invalidParam(name, "%q is not a number", raw)
	}
	return f, nil
}

func boolParam(raw, name string, def bool) (bool, error) {
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalidParam(name, "%q is not a boolean", raw)
	}
	return b, nil
}
