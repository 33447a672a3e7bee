package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dom/cardclash/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// retryAfterSeconds is advertised on 503 responses.
const retryAfterSeconds = 1

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error to its HTTP status and a JSON body.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindValidation:
		status = http.StatusBadRequest
		if domain.CodeOf(err) == domain.CodeUnauthorized {
			status = http.StatusUnauthorized
		}
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindConflict:
		status = http.StatusConflict
	case domain.KindTransient:
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}

	code := string(domain.CodeOf(err))
	if code == "" {
		code = "INTERNAL"
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("code", code), zap.Error(err))
	}

	writeJSON(w, status, ErrorResponse{
		Code:      code,
		Message:   domain.UserMessage(err),
		Retryable: domain.IsRetryable(err),
	})
}

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}
