// Package respond writes JSON responses and maps service errors onto them.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ayush/library-lending/backend/internal/apperr"
)

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// Message writes {"error": msg} with the given status code.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"error": msg})
}

// Error maps err onto its HTTP status and client-safe message. Errors outside
// the apperr taxonomy are logged and reported as a generic 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	ErrorWithStatus(w, r, err, apperr.HTTPStatus(err))
}

// ErrorWithStatus is Error with the status of known errors overridden.
func ErrorWithStatus(w http.ResponseWriter, r *http.Request, err error, status int) {
	if !apperr.IsKnown(err) {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimw.GetReqID(r.Context()),
			"error", err,
		)
		status = http.StatusInternalServerError
	}
	Message(w, status, apperr.Message(err))
}

// Decode reads a JSON request body into v.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}

// PathID parses the positive integer URL parameter name. what names the
// entity in the validation message.
func PathID(r *http.Request, name, what string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s id", what)
	}
	return id, nil
}
