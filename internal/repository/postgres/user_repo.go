package postgres

import (
	"context"

	"github.com/dom/cardclash/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *userRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) GetByDisplayName(ctx context.Context, displayName string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "display_name = ?", displayName).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	return translate(r.db.WithContext(ctx).Save(user).Error)
}
