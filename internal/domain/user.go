package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxDisplayNameLen = 32

// User is a player account. Cards reference it through OwnerID.
type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	DisplayName  string    `json:"displayName" gorm:"type:varchar(32);uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ValidateDisplayName rejects names that are blank, padded, or too long.
func ValidateDisplayName(name string) error {
	switch {
	case name == "":
		return ErrInvalidRequest.WithMessage("display name is required")
	case strings.TrimSpace(name) != name:
		return ErrInvalidRequest.WithMessage("display name must not start or end with spaces")
	case utf8.RuneCountInString(name) > maxDisplayNameLen:
		return ErrInvalidRequest.WithMessage("display name must be at most %d characters", maxDisplayNameLen)
	}
	return nil
}

// UserSession holds the hash of the single live refresh token for a player.
type UserSession struct {
	ID               uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID           uuid.UUID `json:"userId" gorm:"type:uuid;not null;index"`
	RefreshTokenHash string    `json:"-" gorm:"not null"`
	ExpiresAt        time.Time `json:"expiresAt" gorm:"not null"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (s *UserSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
