package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"cloudboost-metrics/internal/domain"
	"cloudboost-metrics/internal/logging"
	"cloudboost-metrics/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// statusFor maps domain and storage errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownMetric):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidRecord),
		errors.Is(err, domain.ErrEmptyWindow),
		errors.Is(err, storage.ErrInvalidInput),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	var invalid *domain.InvalidRecordError
	if errors.As(err, &invalid) {
		resp.Field = invalid.Field
	}
	if code == http.StatusInternalServerError {
		logging.FromContext(r.Context(), s.log).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		resp.Error = "internal error"
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
