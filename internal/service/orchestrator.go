package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/repository"
	"github.com/dom/cardclash/internal/resolution"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Orchestrator takes a revealed battle to completed. Resolve is idempotent:
// the countdown job, the manual trigger and the sweeper all call it, and any
// number of concurrent calls produce one result and at most one transfer.
type Orchestrator struct {
	battleRepo    repository.BattleRepository
	selectionRepo repository.SelectionRepository
	cardRepo      repository.CardRepository
	resultRepo    repository.ResultRepository
	policy        resolution.Policy
	notifier      Notifier
	logger        *zap.Logger
	now           func() time.Time
}

func NewOrchestrator(repos *repository.Repositories, policy resolution.Policy, notifier Notifier, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		battleRepo:    repos.Battle,
		selectionRepo: repos.Selection,
		cardRepo:      repos.Card,
		resultRepo:    repos.Result,
		policy:        policy,
		notifier:      notifier,
		logger:        logger,
		now:           time.Now,
	}
}

// TriggerResolution is the player-initiated path into Resolve.
func (o *Orchestrator) TriggerResolution(ctx context.Context, battleID, playerID uuid.UUID) (*domain.BattleResult, error) {
	battle, err := o.battleRepo.GetByID(ctx, battleID)
	if err != nil {
		return nil, storeErr(err, domain.ErrBattleNotFound)
	}
	if !battle.IsParticipant(playerID) {
		return nil, domain.ErrNotAParticipant
	}
	return o.Resolve(ctx, battleID)
}

func (o *Orchestrator) Resolve(ctx context.Context, battleID uuid.UUID) (result *domain.BattleResult, err error) {
	ctx, span := startSpan(ctx, "battle.resolve", battleID)
	defer func() { endSpan(span, err) }()

	battle, err := o.battleRepo.GetByID(ctx, battleID)
	if err != nil {
		return nil, storeErr(err, domain.ErrBattleNotFound)
	}
	span.SetAttributes(attribute.String("battle.status", string(battle.Status)))

	switch battle.Status {
	case domain.BattleStatusCompleted:
		return o.loadResult(ctx, battleID)

	case domain.BattleStatusCardsRevealed:
		result, err = o.ensureResult(ctx, battle)
		if err != nil {
			o.reportTransient(ctx, battleID, err)
			return nil, err
		}
		err = o.battleRepo.UpdateStatus(ctx, battleID, domain.BattleStatusCardsRevealed, domain.BattleStatusInProgress, domain.BattleUpdate{})
		switch {
		case err == nil:
			battle.Status = domain.BattleStatusInProgress
			o.notifier.StatusChanged(ctx, battle, battle.Status)
		case errors.Is(err, repository.ErrStaleStatus):
			// Lost the race; continue from whatever state the winner left.
			battle, err = o.battleRepo.GetByID(ctx, battleID)
			if err != nil {
				return nil, storeErr(err, domain.ErrBattleNotFound)
			}
			if battle.Status == domain.BattleStatusCompleted {
				return result, nil
			}
			if battle.Status != domain.BattleStatusInProgress {
				return nil, domain.ErrStaleStatus
			}
		default:
			err = storeErr(err, domain.ErrBattleNotFound)
			o.reportTransient(ctx, battleID, err)
			return nil, err
		}
		return o.finish(ctx, battle, result)

	case domain.BattleStatusInProgress:
		result, err = o.ensureResult(ctx, battle)
		if err != nil {
			o.reportTransient(ctx, battleID, err)
			return nil, err
		}
		return o.finish(ctx, battle, result)

	case domain.BattleStatusPending, domain.BattleStatusActive, domain.BattleStatusDeclined, domain.BattleStatusCancelled:
		return nil, domain.ErrInvalidBattleStatus.WithMessage("cannot resolve a battle that is %s", battle.Status)
	}
	return nil, domain.ErrUnknownStatus.WithMessage("battle %s has unknown status %q", battleID, battle.Status)
}

// reportTransient tells both players a retryable failure stopped resolution.
// The scheduled path has no caller to hand the error to.
func (o *Orchestrator) reportTransient(ctx context.Context, battleID uuid.UUID, err error) {
	if domain.IsRetryable(err) {
		o.notifier.ResolutionError(ctx, battleID, err)
	}
}

func (o *Orchestrator) loadResult(ctx context.Context, battleID uuid.UUID) (*domain.BattleResult, error) {
	result, err := o.resultRepo.GetByBattleID(ctx, battleID)
	if err != nil {
		return nil, storeErr(err, domain.ErrBattleNotFound.WithMessage("battle %s has no result", battleID))
	}
	return result, nil
}

// ensureResult returns the stored result, computing and persisting it first
// if needed. Once written the result is never recomputed, so a retry after a
// failed transfer cannot change the winner.
func (o *Orchestrator) ensureResult(ctx context.Context, battle *domain.BattleInstance) (*domain.BattleResult, error) {
	existing, err := o.resultRepo.GetByBattleID(ctx, battle.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeErr(err, nil)
	}

	selections, err := o.selectionRepo.GetByBattleID(ctx, battle.ID)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	var challengerSel, opponentSel *domain.CardSelection
	for _, sel := range selections {
		switch sel.PlayerID {
		case battle.ChallengerID:
			challengerSel = sel
		case battle.OpponentID:
			opponentSel = sel
		}
	}
	if challengerSel == nil || opponentSel == nil {
		return nil, domain.ErrMissingSelection.WithMessage("battle %s has %d of 2 selections", battle.ID, len(selections))
	}

	challengerCard, err := o.cardRepo.GetByID(ctx, challengerSel.CardID)
	if err != nil {
		return nil, storeErr(err, domain.ErrCardNotFound)
	}
	opponentCard, err := o.cardRepo.GetByID(ctx, opponentSel.CardID)
	if err != nil {
		return nil, storeErr(err, domain.ErrCardNotFound)
	}

	outcome := o.policy.Resolve(*challengerCard, *opponentCard)
	breakdown, err := json.Marshal(outcome)
	if err != nil {
		return nil, domain.ErrResolutionFailed.WithCause(err)
	}

	result := &domain.BattleResult{
		ID:              uuid.New(),
		BattleID:        battle.ID,
		Explanation:     outcome.Explanation,
		ScoreChallenger: outcome.ScoreA,
		ScoreOpponent:   outcome.ScoreB,
		Policy:          o.policy.Name(),
		Breakdown:       breakdown,
		CreatedAt:       o.now(),
	}
	switch outcome.Winner {
	case resolution.WinnerA:
		result.WinnerID, result.LoserID = ptr(battle.ChallengerID), ptr(battle.OpponentID)
		result.TransferredCardID = ptr(opponentCard.ID)
	case resolution.WinnerB:
		result.WinnerID, result.LoserID = ptr(battle.OpponentID), ptr(battle.ChallengerID)
		result.TransferredCardID = ptr(challengerCard.ID)
	}

	if err := o.resultRepo.Create(ctx, result); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return o.loadResult(ctx, battle.ID)
		}
		return nil, storeErr(err, nil)
	}
	o.logger.Info("battle result recorded",
		zap.String("battle_id", battle.ID.String()),
		zap.String("policy", result.Policy),
		zap.Bool("draw", result.IsDraw()))
	return result, nil
}

// finish moves the prize card and completes the battle. A failed transfer
// leaves the battle in_progress so the next Resolve call retries it.
func (o *Orchestrator) finish(ctx context.Context, battle *domain.BattleInstance, result *domain.BattleResult) (*domain.BattleResult, error) {
	if !result.IsDraw() && result.TransferredCardID != nil {
		if err := o.transferPrize(ctx, result); err != nil {
			o.logger.Error("prize transfer failed", zap.String("battle_id", battle.ID.String()), zap.Error(err))
			o.notifier.ResolutionError(ctx, battle.ID, err)
			return nil, err
		}
	}

	now := o.now()
	explanation := result.Explanation
	err := o.battleRepo.UpdateStatus(ctx, battle.ID, domain.BattleStatusInProgress, domain.BattleStatusCompleted, domain.BattleUpdate{
		WinnerID:    result.WinnerID,
		Explanation: &explanation,
		CompletedAt: &now,
	})
	if errors.Is(err, repository.ErrStaleStatus) {
		current, getErr := o.battleRepo.GetByID(ctx, battle.ID)
		if getErr != nil {
			return nil, storeErr(getErr, domain.ErrBattleNotFound)
		}
		if current.Status == domain.BattleStatusCompleted {
			o.releaseStakes(ctx, battle.ID)
			return result, nil
		}
		return nil, domain.ErrStaleStatus
	}
	if err != nil {
		o.notifier.ResolutionError(ctx, battle.ID, err)
		return nil, storeErr(err, domain.ErrBattleNotFound)
	}

	battle.Status = domain.BattleStatusCompleted
	battle.WinnerID = result.WinnerID
	battle.Explanation = &explanation
	battle.CompletedAt = &now
	o.logger.Info("battle completed", zap.String("battle_id", battle.ID.String()), zap.String("explanation", explanation))
	o.releaseStakes(ctx, battle.ID)
	o.notifier.StatusChanged(ctx, battle, battle.Status)
	return result, nil
}

// releaseStakes frees both cards for other battles. A failure here is
// repaired by SelectionService when it next meets the stale stake.
func (o *Orchestrator) releaseStakes(ctx context.Context, battleID uuid.UUID) {
	if err := o.cardRepo.ReleaseStakes(ctx, battleID); err != nil {
		o.logger.Warn("stake release failed", zap.String("battle_id", battleID.String()), zap.Error(err))
	}
}

// transferPrize moves the loser's card to the winner. A card that already
// belongs to the winner means an earlier attempt got this far.
func (o *Orchestrator) transferPrize(ctx context.Context, result *domain.BattleResult) error {
	cardID, from, to := *result.TransferredCardID, *result.LoserID, *result.WinnerID
	err := o.cardRepo.TransferOwnership(ctx, cardID, from, to)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrOwnerMismatch) {
		return domain.ErrResolutionFailed.WithCause(err)
	}

	card, getErr := o.cardRepo.GetByID(ctx, cardID)
	if getErr != nil {
		return domain.ErrResolutionFailed.WithCause(getErr)
	}
	if card.OwnerID != to {
		// The loser no longer holds the card; the prize is forfeited.
		o.logger.Warn("prize card changed hands before transfer",
			zap.String("battle_id", result.BattleID.String()),
			zap.String("card_id", cardID.String()),
			zap.String("owner_id", card.OwnerID.String()))
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
