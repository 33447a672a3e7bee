package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dom/cardclash/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const UserIDKey contextKey = "userID"

// TokenVerifier resolves a bearer token to the player it was issued to.
type TokenVerifier interface {
	PlayerID(token string) (uuid.UUID, error)
}

// Auth rejects requests without a valid bearer token and stores the
// player id in the request context.
func Auth(verifier TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				unauthorized(w, "bearer token required")
				return
			}

			playerID, err := verifier.PlayerID(token)
			if err != nil {
				logger.Debug("token rejected", zap.String("path", r.URL.Path), zap.Error(err))
				unauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserIDKey, playerID)))
		})
	}
}

func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":      domain.CodeUnauthorized,
		"message":   msg,
		"retryable": false,
	})
}
