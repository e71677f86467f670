package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/rushteam/recipekit/logging"
	"github.com/rushteam/recipekit/metrics"
)

// RequestIDHeader 请求 ID 的请求/响应头。
const RequestIDHeader = "X-Request-ID"

// requestID 沿用调用方传入的 X-Request-ID，没有则生成，并写入 ctx 与响应头。
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = logging.NewRequestID()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

// observe 记录访问日志与 HTTP 指标，route 取 chi 的路由模式以控制标签基数。
func observe(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			if m != nil {
				m.RequestStarted()
				defer m.RequestFinished()
			}

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			d := time.Since(start)
			if m != nil {
				m.ObserveHTTP(r.Method, route, status, d)
			}
			logging.Ctx(r.Context()).Debug().Str("method", r.Method).Str("route", route).
				Int("status", status).Int("bytes", ww.BytesWritten()).Dur("elapsed", d).Msg("http request")
		})
	}
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         86400,
	})
}

// rateLimit 按客户端 IP 每分钟限流；requests <= 0 时不限。
func rateLimit(requests int) func(http.Handler) http.Handler {
	if requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, ErrorBody{Error: ErrorDetail{
				Code:      "RATE_LIMITED",
				Message:   "too many requests",
				RequestID: logging.RequestIDFromContext(r.Context()),
			}})
		}),
	)
}
