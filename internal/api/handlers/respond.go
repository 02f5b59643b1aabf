package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/go-marks/internal/api/dto"
	"github.com/hugh/go-marks/internal/api/middleware"
	"github.com/hugh/go-marks/internal/apperr"
	"github.com/hugh/go-marks/internal/scope"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError reports err with the status of its kind. Errors without a kind
// are logged and hidden behind a generic 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if e, ok := apperr.Public(err); ok {
		writeJSON(w, apperr.Status(e), dto.ErrorResponse{Error: e.Message, Details: e.Fields})
		return
	}

	logger.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal server error"})
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Invalid("Invalid request body")
	}
	return nil
}

// decodeOptionalJSON accepts an empty body and reports whether one was sent.
func decodeOptionalJSON(r *http.Request, v interface{}) (bool, error) {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Invalid("Invalid request body")
	}
	return true, nil
}

func urlID(r *http.Request, param, resource string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, apperr.Invalid("Invalid " + resource + " ID")
	}
	return id, nil
}

// requestScope returns the Scope resolved by middleware.Scope.
func requestScope(r *http.Request) (scope.Scope, error) {
	s := middleware.GetScope(r.Context())
	if !s.Authenticated() {
		return scope.Scope{}, apperr.Unauthenticated()
	}
	return s, nil
}

// parseOptionalID parses a client-supplied id. Empty means "none".
func parseOptionalID(raw *string, field string, errs map[string]string) *uuid.UUID {
	if raw == nil || *raw == "" {
		return nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		errs[field] = "Invalid " + field + " format"
		return nil
	}
	return &id
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func idString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
