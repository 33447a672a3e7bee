package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dom/cardclash/internal/api/middleware"
	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *service.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

type RegisterRequest struct {
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type LoginRequest struct {
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type RefreshRequest struct {
	UserID       uuid.UUID `json:"userId"`
	RefreshToken string    `json:"refreshToken"`
}

type AuthResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type UserResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.ErrInvalidRequest.WithMessage("invalid request body"))
		return
	}

	result, err := h.authService.Register(r.Context(), service.RegisterInput{
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newAuthResponse(result))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.ErrInvalidRequest.WithMessage("invalid request body"))
		return
	}

	result, err := h.authService.Login(r.Context(), service.LoginInput{
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newAuthResponse(result))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.ErrInvalidRequest.WithMessage("invalid request body"))
		return
	}

	result, err := h.authService.Refresh(r.Context(), req.UserID, req.RefreshToken)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newAuthResponse(result))
}

func newAuthResponse(result *service.AuthResult) AuthResponse {
	return AuthResponse{
		User: UserResponse{
			ID:          result.User.ID.String(),
			DisplayName: result.User.DisplayName,
		},
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, h.logger, domain.ErrUnauthorized)
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{
		ID:          user.ID.String(),
		DisplayName: user.DisplayName,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, h.logger, domain.ErrUnauthorized)
		return
	}

	if err := h.authService.Logout(r.Context(), userID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
