package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dom/cardclash/internal/domain"
	"github.com/google/uuid"
)

// Store errors. Anything else returned by a repository is an infrastructure
// failure and should be treated as retryable by callers.
var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStaleStatus is returned when a conditional status update matched no row.
	ErrStaleStatus = errors.New("battle status does not match expected status")
	// ErrOwnerMismatch is returned when a conditional ownership transfer matched no row.
	ErrOwnerMismatch = errors.New("card owner does not match expected owner")
	// ErrCardStaked is returned when a card is already staked in a different battle.
	ErrCardStaked = errors.New("card is staked in another battle")
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByDisplayName(ctx context.Context, displayName string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.UserSession) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

type CardRepository interface {
	Create(ctx context.Context, card *domain.Card) error
	CreateMany(ctx context.Context, cards []*domain.Card) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Card, error)
	// TransferOwnership moves a card only if it is still owned by fromOwner.
	TransferOwnership(ctx context.Context, cardID, fromOwner, toOwner uuid.UUID) error
	// Stake marks the card as riding on battleID in a single conditional
	// write. It fails with ErrOwnerMismatch when owner no longer holds the
	// card and ErrCardStaked when another battle holds the stake. Staking
	// again for the same battle succeeds.
	Stake(ctx context.Context, cardID, owner, battleID uuid.UUID) error
	// Unstake clears the stake only while battleID still holds it.
	Unstake(ctx context.Context, cardID, battleID uuid.UUID) error
	// ReleaseStakes clears every stake held by battleID.
	ReleaseStakes(ctx context.Context, battleID uuid.UUID) error
}

type BattleListFilter struct {
	PlayerID uuid.UUID
	Status   domain.BattleStatus
	Limit    int
	Offset   int
}

type BattleRepository interface {
	Create(ctx context.Context, battle *domain.BattleInstance) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BattleInstance, error)
	List(ctx context.Context, filter BattleListFilter) ([]*domain.BattleInstance, error)
	// UpdateStatus is a compare-and-swap on status: it writes next and the
	// non-nil fields of update only while the row still has expected.
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, next domain.BattleStatus, update domain.BattleUpdate) error
	// ListStale returns battles in status whose reference timestamp is older
	// than before. Pending battles use created_at, cards_revealed uses
	// revealed_at, everything else updated_at.
	ListStale(ctx context.Context, status domain.BattleStatus, before time.Time, limit int) ([]*domain.BattleInstance, error)
}

type SelectionRepository interface {
	// Create fails with ErrDuplicate when the player already has a selection.
	Create(ctx context.Context, selection *domain.CardSelection) error
	GetByBattleID(ctx context.Context, battleID uuid.UUID) ([]*domain.CardSelection, error)
	GetByBattleAndPlayer(ctx context.Context, battleID, playerID uuid.UUID) (*domain.CardSelection, error)
}

type ResultRepository interface {
	// Create fails with ErrDuplicate when the battle already has a result.
	Create(ctx context.Context, result *domain.BattleResult) error
	GetByBattleID(ctx context.Context, battleID uuid.UUID) (*domain.BattleResult, error)
}

type Repositories struct {
	User      UserRepository
	Session   SessionRepository
	Card      CardRepository
	Battle    BattleRepository
	Selection SelectionRepository
	Result    ResultRepository
}
