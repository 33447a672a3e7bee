package service

import (
	"context"
	"errors"
	"time"

	"github.com/dom/cardclash/internal/config"
	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const refreshTokenTTL = 7 * 24 * time.Hour

var (
	ErrInvalidCredentials = domain.ErrUnauthorized.WithMessage("invalid credentials")
	ErrDisplayNameExists  = domain.ErrDisplayNameTaken
	ErrInvalidToken       = domain.ErrUnauthorized.WithMessage("invalid token")
)

type AuthService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	cfg         *config.Config
}

func NewAuthService(userRepo repository.UserRepository, sessionRepo repository.SessionRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		cfg:         cfg,
	}
}

type RegisterInput struct {
	Password    string
	DisplayName string
}

type LoginInput struct {
	DisplayName string
	Password    string
}

type AuthResult struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if err := domain.ValidateDisplayName(input.DisplayName); err != nil {
		return nil, err
	}
	if input.Password == "" {
		return nil, domain.ErrInvalidRequest.WithMessage("password is required")
	}

	existing, err := s.userRepo.GetByDisplayName(ctx, input.DisplayName)
	if err == nil && existing != nil {
		return nil, ErrDisplayNameExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.New(),
		PasswordHash: string(hashedPassword),
		DisplayName:  input.DisplayName,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDisplayNameExists
		}
		return nil, err
	}

	return s.generateTokens(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	if input.DisplayName == "" || input.Password == "" {
		return nil, domain.ErrInvalidRequest.WithMessage("display name and password are required")
	}

	user, err := s.userRepo.GetByDisplayName(ctx, input.DisplayName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.generateTokens(ctx, user)
}

// Refresh trades a live refresh token for a new token pair. The old session
// is consumed even when issuing the new pair fails.
func (s *AuthService) Refresh(ctx context.Context, userID uuid.UUID, refreshToken string) (*AuthResult, error) {
	if userID == uuid.Nil || refreshToken == "" {
		return nil, domain.ErrInvalidRequest.WithMessage("player id and refresh token are required")
	}

	session, err := s.sessionRepo.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if session.Expired(time.Now()) {
		_ = s.sessionRepo.Delete(ctx, session.ID)
		return nil, ErrInvalidToken.WithMessage("refresh token expired")
	}
	if bcrypt.CompareHashAndPassword([]byte(session.RefreshTokenHash), []byte(refreshToken)) != nil {
		return nil, ErrInvalidToken
	}
	if err := s.sessionRepo.Delete(ctx, session.ID); err != nil {
		return nil, err
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.generateTokens(ctx, user)
}

func (s *AuthService) generateTokens(ctx context.Context, user *domain.User) (*AuthResult, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken := uuid.New().String()
	hashedRefresh, err := bcrypt.GenerateFromPassword([]byte(refreshToken), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	// One live session per player.
	_ = s.sessionRepo.DeleteByUserID(ctx, user.ID)

	session := &domain.UserSession{
		ID:               uuid.New(),
		UserID:           user.ID,
		RefreshTokenHash: string(hashedRefresh),
		ExpiresAt:        time.Now().Add(refreshTokenTTL),
		CreatedAt:        time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	return &AuthResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// PlayerClaims is the access token payload. Subject holds the player id.
type PlayerClaims struct {
	DisplayName string `json:"name"`
	jwt.RegisteredClaims
}

func (s *AuthService) generateAccessToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := PlayerClaims{
		DisplayName: user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.cfg.JWTExpirationHours) * time.Hour)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
}

// ValidateToken checks the signature and expiry of an access token.
func (s *AuthService) ValidateToken(tokenString string) (*PlayerClaims, error) {
	claims := &PlayerClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken.WithCause(err)
	}
	return claims, nil
}

// PlayerID validates tokenString and returns the player id in its subject.
func (s *AuthService) PlayerID(tokenString string) (uuid.UUID, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken.WithCause(err)
	}
	return id, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.ErrUserNotFound
	}
	return user, err
}

func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.sessionRepo.DeleteByUserID(ctx, userID)
}
