package postgres

import (
	"context"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type cardRepository struct {
	db *gorm.DB
}

func NewCardRepository(db *gorm.DB) *cardRepository {
	return &cardRepository{db: db}
}

func (r *cardRepository) Create(ctx context.Context, card *domain.Card) error {
	return translate(r.db.WithContext(ctx).Create(card).Error)
}

func (r *cardRepository) CreateMany(ctx context.Context, cards []*domain.Card) error {
	if len(cards) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).Create(cards).Error)
}

func (r *cardRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	var card domain.Card
	if err := r.db.WithContext(ctx).First(&card, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &card, nil
}

func (r *cardRepository) GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Card, error) {
	var cards []*domain.Card
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("obtained_at DESC, id").
		Find(&cards).Error
	if err != nil {
		return nil, translate(err)
	}
	return cards, nil
}

func (r *cardRepository) TransferOwnership(ctx context.Context, cardID, fromOwner, toOwner uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Card{}).
		Where("id = ? AND owner_id = ?", cardID, fromOwner).
		Updates(map[string]any{"owner_id": toOwner})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrOwnerMismatch
	}
	return nil
}

func (r *cardRepository) Stake(ctx context.Context, cardID, owner, battleID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Card{}).
		Where("id = ? AND owner_id = ? AND (staked_battle_id IS NULL OR staked_battle_id = ?)", cardID, owner, battleID).
		Update("staked_battle_id", battleID)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	card, err := r.GetByID(ctx, cardID)
	if err != nil {
		return err
	}
	if card.OwnerID != owner {
		return repository.ErrOwnerMismatch
	}
	return repository.ErrCardStaked
}

func (r *cardRepository) Unstake(ctx context.Context, cardID, battleID uuid.UUID) error {
	return translate(r.db.WithContext(ctx).
		Model(&domain.Card{}).
		Where("id = ? AND staked_battle_id = ?", cardID, battleID).
		Update("staked_battle_id", nil).Error)
}

func (r *cardRepository) ReleaseStakes(ctx context.Context, battleID uuid.UUID) error {
	return translate(r.db.WithContext(ctx).
		Model(&domain.Card{}).
		Where("staked_battle_id = ?", battleID).
		Update("staked_battle_id", nil).Error)
}
