package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/repository"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type SelectionResult struct {
	Selection *domain.CardSelection
	Battle    *domain.BattleInstance
	// CompletedPair is true only for the call that moved the battle to
	// cards_revealed.
	CompletedPair bool
}

type SelectionService struct {
	battleRepo      repository.BattleRepository
	selectionRepo   repository.SelectionRepository
	cardRepo        repository.CardRepository
	notifier        Notifier
	revealCountdown time.Duration
	logger          *zap.Logger
	now             func() time.Time

	mu        sync.RWMutex
	scheduler RevealScheduler
}

func NewSelectionService(repos *repository.Repositories, notifier Notifier, revealCountdown time.Duration, logger *zap.Logger) *SelectionService {
	return &SelectionService{
		battleRepo:      repos.Battle,
		selectionRepo:   repos.Selection,
		cardRepo:        repos.Card,
		notifier:        notifier,
		revealCountdown: revealCountdown,
		logger:          logger,
		now:             time.Now,
		scheduler:       noopScheduler{},
	}
}

// SetRevealScheduler installs the scheduler that resolves battles once the
// reveal countdown ends.
func (s *SelectionService) SetRevealScheduler(rs RevealScheduler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rs == nil {
		rs = noopScheduler{}
	}
	s.scheduler = rs
}

func (s *SelectionService) revealScheduler() RevealScheduler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scheduler
}

// SelectCard stakes cardID for playerID in an active battle. Each player gets
// exactly one selection; the second selection reveals both cards.
func (s *SelectionService) SelectCard(ctx context.Context, battleID, playerID, cardID uuid.UUID) (res *SelectionResult, err error) {
	ctx, span := startSpan(ctx, "battle.select_card", battleID)
	span.SetAttributes(attribute.String("player.id", playerID.String()), attribute.String("card.id", cardID.String()))
	defer func() { endSpan(span, err) }()

	battle, err := s.battleRepo.GetByID(ctx, battleID)
	if err != nil {
		return nil, storeErr(err, domain.ErrBattleNotFound)
	}
	if !battle.Status.IsValid() {
		return nil, domain.ErrUnknownStatus.WithMessage("battle %s has unknown status %q", battleID, battle.Status)
	}
	if !battle.IsParticipant(playerID) {
		return nil, domain.ErrNotAParticipant
	}

	// A repeat submission is a conflict regardless of how far the battle has
	// moved, so the client can refresh instead of showing a status error.
	if _, err := s.selectionRepo.GetByBattleAndPlayer(ctx, battleID, playerID); err == nil {
		return nil, domain.ErrCardAlreadySelected
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeErr(err, nil)
	}

	if battle.Status != domain.BattleStatusActive {
		return nil, domain.ErrInvalidBattleStatus.WithMessage("cannot select a card while battle is %s", battle.Status)
	}

	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		return nil, storeErr(err, domain.ErrCardNotFound)
	}
	if card.OwnerID != playerID {
		return nil, domain.ErrCardNotOwned
	}
	if !card.CardType.BattleEligible() {
		return nil, domain.ErrInvalidCardType.WithMessage("%s cards cannot battle", card.CardType)
	}
	if err := s.stake(ctx, battleID, playerID, cardID); err != nil {
		return nil, err
	}

	selection := &domain.CardSelection{
		ID:          uuid.New(),
		BattleID:    battleID,
		PlayerID:    playerID,
		CardID:      cardID,
		SubmittedAt: s.now(),
	}
	if err := s.selectionRepo.Create(ctx, selection); err != nil {
		s.rollbackStake(ctx, battleID, playerID, cardID)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.ErrCardAlreadySelected
		}
		return nil, storeErr(err, nil)
	}

	s.logger.Info("card selected",
		zap.String("battle_id", battleID.String()),
		zap.String("player_id", playerID.String()),
		zap.String("card_id", cardID.String()))
	s.notifier.CardSelected(ctx, battle, playerID)

	completed, err := s.AdvanceIfReady(ctx, battle)
	if err != nil {
		// The selection is stored; the sweeper retries the reveal.
		s.logger.Warn("reveal deferred", zap.String("battle_id", battleID.String()), zap.Error(err))
	}
	return &SelectionResult{Selection: selection, Battle: battle, CompletedPair: completed}, nil
}

// stake claims the card for battleID at the store. Two battles racing for
// the same card cannot both win the conditional write. A stake left behind
// by a battle that has already finished is cleared and claimed once more.
func (s *SelectionService) stake(ctx context.Context, battleID, playerID, cardID uuid.UUID) error {
	err := s.cardRepo.Stake(ctx, cardID, playerID, battleID)
	if errors.Is(err, repository.ErrCardStaked) {
		var repaired bool
		if repaired, err = s.clearStaleStake(ctx, cardID); err == nil {
			err = repository.ErrCardStaked
			if repaired {
				err = s.cardRepo.Stake(ctx, cardID, playerID, battleID)
			}
		}
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrCardStaked):
		return domain.ErrCardAlreadyStaked
	case errors.Is(err, repository.ErrOwnerMismatch):
		return domain.ErrCardNotOwned
	}
	return storeErr(err, domain.ErrCardNotFound)
}

// clearStaleStake releases the card when the battle holding it is over.
func (s *SelectionService) clearStaleStake(ctx context.Context, cardID uuid.UUID) (bool, error) {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		return false, err
	}
	if card.StakedBattleID == nil {
		return true, nil
	}
	holder, err := s.battleRepo.GetByID(ctx, *card.StakedBattleID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	if err == nil && !holder.Status.IsTerminal() {
		return false, nil
	}
	s.logger.Warn("clearing stale stake",
		zap.String("card_id", cardID.String()),
		zap.String("battle_id", card.StakedBattleID.String()))
	return true, s.cardRepo.Unstake(ctx, cardID, *card.StakedBattleID)
}

// rollbackStake undoes a stake whose selection was not stored, unless a
// concurrent identical submission already stored it against the same card.
func (s *SelectionService) rollbackStake(ctx context.Context, battleID, playerID, cardID uuid.UUID) {
	if sel, err := s.selectionRepo.GetByBattleAndPlayer(ctx, battleID, playerID); err == nil && sel.CardID == cardID {
		return
	}
	if err := s.cardRepo.Unstake(ctx, cardID, battleID); err != nil {
		s.logger.Warn("stake rollback failed", zap.String("battle_id", battleID.String()),
			zap.String("card_id", cardID.String()), zap.Error(err))
	}
}

// AdvanceIfReady moves an active battle with both selections to
// cards_revealed. It reports true only for the caller that won the swap.
func (s *SelectionService) AdvanceIfReady(ctx context.Context, battle *domain.BattleInstance) (bool, error) {
	if battle.Status != domain.BattleStatusActive {
		return false, nil
	}
	selections, err := s.selectionRepo.GetByBattleID(ctx, battle.ID)
	if err != nil {
		return false, storeErr(err, nil)
	}
	if len(selections) < 2 {
		return false, nil
	}

	now := s.now()
	err = s.battleRepo.UpdateStatus(ctx, battle.ID, domain.BattleStatusActive, domain.BattleStatusCardsRevealed,
		domain.BattleUpdate{RevealedAt: &now})
	if errors.Is(err, repository.ErrStaleStatus) {
		return false, nil
	}
	if err != nil {
		return false, storeErr(err, domain.ErrBattleNotFound)
	}

	battle.Status = domain.BattleStatusCardsRevealed
	battle.RevealedAt = &now
	s.logger.Info("cards revealed", zap.String("battle_id", battle.ID.String()))
	s.notifier.StatusChanged(ctx, battle, battle.Status)
	s.revealScheduler().ScheduleResolution(battle.ID, now.Add(s.revealCountdown))
	return true, nil
}
