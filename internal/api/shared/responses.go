package shared

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse defines the standard error response structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"-"` // Not serialized to JSON, used for logging
	TraceID string `json:"trace_id,omitempty"`
}

// RespondWithJSON writes a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// RespondWithError writes a JSON error response with the given status code
// and message, tagged with the request's trace ID.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	RespondWithErrorAndLog(w, r, status, message, nil)
}

// RespondWithErrorAndLog writes a JSON error response carrying only the safe
// user message and logs the underlying error. Server errors (5xx) log at
// ERROR level, client errors at DEBUG.
func RespondWithErrorAndLog(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	userMessage string,
	err error,
) {
	traceID := GetTraceID(r.Context())

	logAttrs := []slog.Attr{
		slog.String("trace_id", traceID),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Int("status_code", status),
		slog.String("user_message", userMessage),
	}
	if err != nil {
		logAttrs = append(logAttrs, slog.String("error", err.Error()))
	}

	logLevel := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		logLevel = slog.LevelError
	}
	slog.LogAttrs(r.Context(), logLevel, "API error response", logAttrs...)

	RespondWithJSON(w, r, status, ErrorResponse{
		Error:   userMessage,
		Code:    status,
		TraceID: traceID,
	})
}
