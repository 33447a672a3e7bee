package postgres

import (
	"context"

	"github.com/dom/cardclash/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type selectionRepository struct {
	db *gorm.DB
}

func NewSelectionRepository(db *gorm.DB) *selectionRepository {
	return &selectionRepository{db: db}
}

// Create relies on idx_selection_battle_player; a concurrent duplicate
// loses at the index, not at a prior read.
func (r *selectionRepository) Create(ctx context.Context, selection *domain.CardSelection) error {
	return translate(r.db.WithContext(ctx).Create(selection).Error)
}

func (r *selectionRepository) GetByBattleID(ctx context.Context, battleID uuid.UUID) ([]*domain.CardSelection, error) {
	var selections []*domain.CardSelection
	err := r.db.WithContext(ctx).
		Where("battle_id = ?", battleID).
		Order("submitted_at ASC").
		Find(&selections).Error
	if err != nil {
		return nil, translate(err)
	}
	return selections, nil
}

func (r *selectionRepository) GetByBattleAndPlayer(ctx context.Context, battleID, playerID uuid.UUID) (*domain.CardSelection, error) {
	var selection domain.CardSelection
	err := r.db.WithContext(ctx).
		First(&selection, "battle_id = ? AND player_id = ?", battleID, playerID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &selection, nil
}
