package postgres

import (
	"context"

	"github.com/dom/cardclash/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type resultRepository struct {
	db *gorm.DB
}

func NewResultRepository(db *gorm.DB) *resultRepository {
	return &resultRepository{db: db}
}

func (r *resultRepository) Create(ctx context.Context, result *domain.BattleResult) error {
	return translate(r.db.WithContext(ctx).Create(result).Error)
}

func (r *resultRepository) GetByBattleID(ctx context.Context, battleID uuid.UUID) (*domain.BattleResult, error) {
	var result domain.BattleResult
	if err := r.db.WithContext(ctx).First(&result, "battle_id = ?", battleID).Error; err != nil {
		return nil, translate(err)
	}
	return &result, nil
}
