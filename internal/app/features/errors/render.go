// internal/app/features/errors/render.go
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/planhub/internal/app/system/apperr"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// errorBody is the JSON shape of every failed request:
//
//	{ "error": { "code": "not_found", "message": "plan not found" } }
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError writes an error body with an explicit code.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}

// RenderBadRequest reports a malformed request (bad JSON, bad id).
func RenderBadRequest(w http.ResponseWriter, msg string) {
	WriteError(w, http.StatusBadRequest, "bad_request", msg)
}

// RenderRateLimited reports a request rejected by a rate limiter. The
// limiter sets Retry-After.
func RenderRateLimited(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests; try again shortly")
}

// ErrorLogger renders typed errors and logs the ones that are the server's
// fault. Handlers share one instance built in bootstrap.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{Log: logger}
}

// Render maps err to a status via its apperr.Kind and writes the JSON body.
func (l *ErrorLogger) Render(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	if status >= http.StatusInternalServerError {
		l.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("kind", string(kind)),
			zap.Error(err))
	} else {
		l.Log.Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.String("kind", string(kind)),
			zap.String("message", apperr.MessageOf(err)))
	}

	WriteError(w, status, string(kind), apperr.MessageOf(err))
}
