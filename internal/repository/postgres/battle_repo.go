package postgres

import (
	"context"
	"time"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type battleRepository struct {
	db *gorm.DB
}

func NewBattleRepository(db *gorm.DB) *battleRepository {
	return &battleRepository{db: db}
}

func (r *battleRepository) Create(ctx context.Context, battle *domain.BattleInstance) error {
	return translate(r.db.WithContext(ctx).Omit("Challenger", "Opponent").Create(battle).Error)
}

func (r *battleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.BattleInstance, error) {
	var battle domain.BattleInstance
	err := r.db.WithContext(ctx).
		Preload("Challenger").
		Preload("Opponent").
		First(&battle, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &battle, nil
}

func (r *battleRepository) List(ctx context.Context, filter repository.BattleListFilter) ([]*domain.BattleInstance, error) {
	q := r.db.WithContext(ctx).
		Preload("Challenger").
		Preload("Opponent").
		Where("challenger_id = ? OR opponent_id = ?", filter.PlayerID, filter.PlayerID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var battles []*domain.BattleInstance
	err := q.Order("created_at DESC").Offset(filter.Offset).Find(&battles).Error
	if err != nil {
		return nil, translate(err)
	}
	return battles, nil
}

func (r *battleRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next domain.BattleStatus, update domain.BattleUpdate) error {
	values := map[string]any{
		"status":     next,
		"updated_at": time.Now(),
	}
	if update.WinnerID != nil {
		values["winner_id"] = *update.WinnerID
	}
	if update.Explanation != nil {
		values["explanation"] = *update.Explanation
	}
	if update.AcceptedAt != nil {
		values["accepted_at"] = *update.AcceptedAt
	}
	if update.RevealedAt != nil {
		values["revealed_at"] = *update.RevealedAt
	}
	if update.CompletedAt != nil {
		values["completed_at"] = *update.CompletedAt
	}

	res := r.db.WithContext(ctx).
		Model(&domain.BattleInstance{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(values)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrStaleStatus
	}
	return nil
}

func (r *battleRepository) ListStale(ctx context.Context, status domain.BattleStatus, before time.Time, limit int) ([]*domain.BattleInstance, error) {
	column := "updated_at"
	switch status {
	case domain.BattleStatusPending:
		column = "created_at"
	case domain.BattleStatusCardsRevealed:
		column = "revealed_at"
	}

	var battles []*domain.BattleInstance
	err := r.db.WithContext(ctx).
		Where("status = ? AND "+column+" < ?", status, before).
		Order(column + " ASC").
		Limit(limit).
		Find(&battles).Error
	if err != nil {
		return nil, translate(err)
	}
	return battles, nil
}
