package service

import (
	"context"
	"errors"
	"time"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/repository"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/dom/cardclash/internal/service")

// Notifier receives battle lifecycle events. Implementations must not block.
type Notifier interface {
	CardSelected(ctx context.Context, battle *domain.BattleInstance, playerID uuid.UUID)
	StatusChanged(ctx context.Context, battle *domain.BattleInstance, status domain.BattleStatus)
	ResolutionError(ctx context.Context, battleID uuid.UUID, err error)
}

// RevealScheduler runs the automatic resolution once the reveal countdown ends.
type RevealScheduler interface {
	ScheduleResolution(battleID uuid.UUID, at time.Time)
}

type noopScheduler struct{}

func (noopScheduler) ScheduleResolution(uuid.UUID, time.Time) {}

// storeErr maps a repository error to a domain error. Not-found becomes
// notFound; anything unexpected is treated as a transient outage.
func storeErr(err error, notFound *domain.Error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, repository.ErrStaleStatus):
		return domain.ErrStaleStatus
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.ErrStoreUnavailable.WithCause(err)
}

func startSpan(ctx context.Context, name string, battleID uuid.UUID) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("battle.id", battleID.String())))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.CodeOf(err)))
	}
	span.End()
}
