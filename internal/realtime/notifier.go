package realtime

import (
	"context"
	"time"

	"github.com/dom/cardclash/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier publishes battle lifecycle events. Publishing never fails the
// caller: a dropped event is recovered by the client's next store read.
type Notifier struct {
	pub    Publisher
	logger *zap.Logger
	now    func() time.Time
}

func NewNotifier(pub Publisher, logger *zap.Logger) *Notifier {
	return &Notifier{pub: pub, logger: logger, now: time.Now}
}

func (n *Notifier) CardSelected(ctx context.Context, battle *domain.BattleInstance, playerID uuid.UUID) {
	e := Event{
		Name:       EventCardSelected,
		BattleID:   battle.ID,
		Status:     battle.Status,
		PlayerID:   &playerID,
		OccurredAt: n.now(),
	}
	n.publish(ctx, BattleChannel(battle.ID), e)
	n.publish(ctx, PlayerChannel(battle.OtherPlayer(playerID)), e)
}

func (n *Notifier) StatusChanged(ctx context.Context, battle *domain.BattleInstance, status domain.BattleStatus) {
	e := Event{
		Name:       EventBattleStatusChanged,
		BattleID:   battle.ID,
		Status:     status,
		OccurredAt: n.now(),
	}
	n.publish(ctx, BattleChannel(battle.ID), e)
	n.publish(ctx, PlayerChannel(battle.ChallengerID), e)
	n.publish(ctx, PlayerChannel(battle.OpponentID), e)
}

func (n *Notifier) ResolutionError(ctx context.Context, battleID uuid.UUID, err error) {
	n.publish(ctx, BattleChannel(battleID), Event{
		Name:       EventBattleResolutionError,
		BattleID:   battleID,
		ErrorCode:  domain.CodeOf(err),
		Retryable:  domain.IsRetryable(err),
		OccurredAt: n.now(),
	})
}

func (n *Notifier) publish(ctx context.Context, channel string, e Event) {
	if err := n.pub.Publish(ctx, channel, e); err != nil {
		n.logger.Warn("failed to publish event",
			zap.String("channel", channel),
			zap.String("event", string(e.Name)),
			zap.Error(err))
	}
}
