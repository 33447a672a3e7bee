package service

import (
	"context"
	"errors"
	"time"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultListLimit = 50

// SelectionView is a selection as shown to one viewer. Card is nil while the
// opponent's pick is still hidden.
type SelectionView struct {
	PlayerID    uuid.UUID    `json:"playerId"`
	SubmittedAt time.Time    `json:"submittedAt"`
	Card        *domain.Card `json:"card,omitempty"`
	Hidden      bool         `json:"hidden"`
}

type BattleView struct {
	Battle     *domain.BattleInstance `json:"battle"`
	Selections []SelectionView        `json:"selections"`
	Result     *domain.BattleResult   `json:"result,omitempty"`
}

// BattleService owns the challenge lifecycle: create, accept, decline,
// cancel and expiry. Card selection and resolution live elsewhere.
type BattleService struct {
	battleRepo    repository.BattleRepository
	userRepo      repository.UserRepository
	selectionRepo repository.SelectionRepository
	cardRepo      repository.CardRepository
	resultRepo    repository.ResultRepository
	notifier      Notifier
	logger        *zap.Logger
	now           func() time.Time
}

func NewBattleService(repos *repository.Repositories, notifier Notifier, logger *zap.Logger) *BattleService {
	return &BattleService{
		battleRepo:    repos.Battle,
		userRepo:      repos.User,
		selectionRepo: repos.Selection,
		cardRepo:      repos.Card,
		resultRepo:    repos.Result,
		notifier:      notifier,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *BattleService) CreateChallenge(ctx context.Context, challengerID, opponentID uuid.UUID) (*domain.BattleInstance, error) {
	if challengerID == opponentID {
		return nil, domain.ErrInvalidChallenge.WithMessage("cannot challenge yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, opponentID); err != nil {
		return nil, storeErr(err, domain.ErrUserNotFound)
	}

	now := s.now()
	battle := &domain.BattleInstance{
		ID:           uuid.New(),
		ChallengerID: challengerID,
		OpponentID:   opponentID,
		Status:       domain.BattleStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.battleRepo.Create(ctx, battle); err != nil {
		return nil, storeErr(err, nil)
	}

	s.logger.Info("challenge created",
		zap.String("battle_id", battle.ID.String()),
		zap.String("challenger_id", challengerID.String()),
		zap.String("opponent_id", opponentID.String()))
	s.notifier.StatusChanged(ctx, battle, battle.Status)
	return battle, nil
}

func (s *BattleService) Accept(ctx context.Context, battleID, playerID uuid.UUID) (*domain.BattleInstance, error) {
	now := s.now()
	return s.respond(ctx, battleID, playerID, false, domain.BattleStatusActive, domain.BattleUpdate{AcceptedAt: &now})
}

func (s *BattleService) Decline(ctx context.Context, battleID, playerID uuid.UUID) (*domain.BattleInstance, error) {
	return s.respond(ctx, battleID, playerID, false, domain.BattleStatusDeclined, domain.BattleUpdate{})
}

func (s *BattleService) Cancel(ctx context.Context, battleID, playerID uuid.UUID) (*domain.BattleInstance, error) {
	return s.respond(ctx, battleID, playerID, true, domain.BattleStatusCancelled, domain.BattleUpdate{})
}

// Expire declines a pending challenge nobody answered. A challenge that moved
// on in the meantime is left alone.
func (s *BattleService) Expire(ctx context.Context, battleID uuid.UUID) error {
	battle, err := s.battleRepo.GetByID(ctx, battleID)
	if err != nil {
		return storeErr(err, domain.ErrBattleNotFound)
	}
	if battle.Status != domain.BattleStatusPending {
		return nil
	}
	explanation := "challenge expired"
	err = s.transition(ctx, battle, domain.BattleStatusDeclined, domain.BattleUpdate{Explanation: &explanation})
	if errors.Is(err, domain.ErrStaleStatus) {
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("challenge expired", zap.String("battle_id", battleID.String()))
	return nil
}

// respond applies a pending-state transition. Only the opponent may accept or
// decline; only the challenger may cancel.
func (s *BattleService) respond(ctx context.Context, battleID, playerID uuid.UUID, challenger bool, next domain.BattleStatus, update domain.BattleUpdate) (*domain.BattleInstance, error) {
	battle, err := s.battleRepo.GetByID(ctx, battleID)
	if err != nil {
		return nil, storeErr(err, domain.ErrBattleNotFound)
	}
	if !battle.Status.IsValid() {
		return nil, domain.ErrUnknownStatus.WithMessage("battle %s has unknown status %q", battleID, battle.Status)
	}

	allowed := battle.OpponentID
	if challenger {
		allowed = battle.ChallengerID
	}
	if playerID != allowed {
		if !battle.IsParticipant(playerID) {
			return nil, domain.ErrNotAParticipant
		}
		return nil, domain.ErrInvalidChallenge.WithMessage("player cannot move this challenge to %s", next)
	}

	if err := s.transition(ctx, battle, next, update); err != nil {
		return nil, err
	}
	return s.battleRepo.GetByID(ctx, battleID)
}

func (s *BattleService) transition(ctx context.Context, battle *domain.BattleInstance, next domain.BattleStatus, update domain.BattleUpdate) error {
	if !domain.CanTransition(battle.Status, next) {
		return domain.ErrInvalidBattleStatus.WithMessage("cannot move battle from %s to %s", battle.Status, next)
	}
	if err := s.battleRepo.UpdateStatus(ctx, battle.ID, battle.Status, next, update); err != nil {
		return storeErr(err, domain.ErrBattleNotFound)
	}
	battle.Status = next
	s.notifier.StatusChanged(ctx, battle, next)
	return nil
}

// GetBattle returns the battle as seen by viewer. The other player's card
// stays hidden until both cards are revealed.
func (s *BattleService) GetBattle(ctx context.Context, battleID, viewer uuid.UUID) (*BattleView, error) {
	battle, err := s.battleRepo.GetByID(ctx, battleID)
	if err != nil {
		return nil, storeErr(err, domain.ErrBattleNotFound)
	}
	if !battle.IsParticipant(viewer) {
		return nil, domain.ErrNotAParticipant
	}

	selections, err := s.selectionRepo.GetByBattleID(ctx, battleID)
	if err != nil {
		return nil, storeErr(err, nil)
	}

	view := &BattleView{Battle: battle, Selections: make([]SelectionView, 0, len(selections))}
	for _, sel := range selections {
		sv := SelectionView{PlayerID: sel.PlayerID, SubmittedAt: sel.SubmittedAt}
		if sel.PlayerID != viewer && !battle.Status.CardsVisible() {
			sv.Hidden = true
		} else {
			card, err := s.cardRepo.GetByID(ctx, sel.CardID)
			if err != nil {
				return nil, storeErr(err, domain.ErrCardNotFound)
			}
			sv.Card = card
		}
		view.Selections = append(view.Selections, sv)
	}

	if battle.Status == domain.BattleStatusInProgress || battle.Status == domain.BattleStatusCompleted {
		result, err := s.resultRepo.GetByBattleID(ctx, battleID)
		switch {
		case err == nil:
			view.Result = result
		case !errors.Is(err, repository.ErrNotFound):
			return nil, storeErr(err, nil)
		}
	}
	return view, nil
}

func (s *BattleService) ListBattles(ctx context.Context, playerID uuid.UUID, status domain.BattleStatus, limit, offset int) ([]*domain.BattleInstance, error) {
	if status != "" && !status.IsValid() {
		return nil, domain.ErrInvalidBattleStatus.WithMessage("unknown status filter %q", status)
	}
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	battles, err := s.battleRepo.List(ctx, repository.BattleListFilter{
		PlayerID: playerID,
		Status:   status,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return battles, nil
}
