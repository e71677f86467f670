package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/rushteam/recipekit/core"
	"github.com/rushteam/recipekit/logging"
)

// ErrorBody 是错误响应体。
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("api: encode response")
	}
}

// StatusCode 把领域错误码映射为 HTTP 状态码。
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case core.IsNotFound(err):
		return http.StatusNotFound
	case core.IsInvalidInput(err):
		return http.StatusBadRequest
	case core.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	code := core.ErrorCodeInternalError
	msg := err.Error()
	if de := core.GetDomainError(err); de != nil {
		code = de.Code
	} else if status == http.StatusServiceUnavailable {
		code = core.ErrorCodeUnavailable
	}
	if status == http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("api: internal error")
		msg = "internal error"
	}
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{
		Code:      code,
		Message:   msg,
		RequestID: logging.RequestIDFromContext(r.Context()),
	}})
}

func invalidParam(name, format string, args ...interface{}) error {
	return core.Errorf(core.ModuleAPI, core.ErrorCodeInvalidInput, "%s: "+format, append([]interface{}{name}, args...)...)
}
