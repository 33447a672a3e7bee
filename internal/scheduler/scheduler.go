// Package scheduler runs the server-side timers of a battle: the reveal
// countdown that resolves a battle without any client involvement, and a
// periodic sweep that expires stale challenges and retries stuck resolutions.
package scheduler

import (
	"context"
	"time"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/repository"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	sweepBatchSize = 100
	jobTimeout     = 30 * time.Second
)

type Resolver interface {
	Resolve(ctx context.Context, battleID uuid.UUID) (*domain.BattleResult, error)
}

type Expirer interface {
	Expire(ctx context.Context, battleID uuid.UUID) error
}

type Advancer interface {
	AdvanceIfReady(ctx context.Context, battle *domain.BattleInstance) (bool, error)
}

type Options struct {
	RevealCountdown      time.Duration
	ChallengeTTL         time.Duration
	SweepInterval        time.Duration
	StuckResolutionAfter time.Duration
}

type Scheduler struct {
	sched    gocron.Scheduler
	battles  repository.BattleRepository
	resolver Resolver
	expirer  Expirer
	advancer Advancer
	opts     Options
	logger   *zap.Logger
}

func New(battles repository.BattleRepository, resolver Resolver, expirer Expirer, advancer Advancer, opts Options, logger *zap.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLogger(gocronLogger{logger.Sugar()}))
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		sched:    sched,
		battles:  battles,
		resolver: resolver,
		expirer:  expirer,
		advancer: advancer,
		opts:     opts,
		logger:   logger,
	}, nil
}

// Start registers the sweep and starts running jobs.
func (s *Scheduler) Start() error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(s.opts.SweepInterval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if err := s.Sweep(ctx, time.Now()); err != nil {
				s.logger.Error("sweep failed", zap.Error(err))
			}
		}),
		gocron.WithName("sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	s.sched.Start()
	return nil
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

// ScheduleResolution replaces any pending resolution job for battleID with one
// that fires at at. A failure to schedule is logged; the sweep picks the
// battle up once the countdown has passed.
func (s *Scheduler) ScheduleResolution(battleID uuid.UUID, at time.Time) {
	tag := battleID.String()
	s.sched.RemoveByTags(tag)

	start := gocron.OneTimeJobStartImmediately()
	if at.After(time.Now()) {
		start = gocron.OneTimeJobStartDateTime(at)
	}
	_, err := s.sched.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(s.resolve, battleID),
		gocron.WithName("resolve "+tag),
		gocron.WithTags(tag),
	)
	if err != nil {
		s.logger.Error("failed to schedule resolution", zap.String("battle_id", tag), zap.Error(err))
		return
	}
	s.logger.Debug("resolution scheduled", zap.String("battle_id", tag), zap.Time("at", at))
}

func (s *Scheduler) resolve(battleID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	s.resolveBattle(ctx, battleID)
}

func (s *Scheduler) resolveBattle(ctx context.Context, battleID uuid.UUID) {
	if _, err := s.resolver.Resolve(ctx, battleID); err != nil {
		fields := []zap.Field{zap.String("battle_id", battleID.String()), zap.Error(err)}
		switch domain.KindOf(err) {
		case domain.KindConflict, domain.KindValidation:
			s.logger.Debug("scheduled resolution skipped", fields...)
		case domain.KindTransient:
			s.logger.Warn("scheduled resolution will be retried", fields...)
		default:
			s.logger.Error("scheduled resolution failed", fields...)
		}
	}
}

// Sweep handles every battle that has waited too long in its current status,
// as of now. Per-battle failures are logged; only listing errors are returned.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.each(ctx, domain.BattleStatusPending, now.Add(-s.opts.ChallengeTTL), func(b *domain.BattleInstance) {
			if err := s.expirer.Expire(ctx, b.ID); err != nil {
				s.logger.Warn("failed to expire challenge", zap.String("battle_id", b.ID.String()), zap.Error(err))
			}
		})
	})
	g.Go(func() error {
		return s.each(ctx, domain.BattleStatusActive, now.Add(-s.opts.StuckResolutionAfter), func(b *domain.BattleInstance) {
			if _, err := s.advancer.AdvanceIfReady(ctx, b); err != nil {
				s.logger.Warn("failed to reveal battle", zap.String("battle_id", b.ID.String()), zap.Error(err))
			}
		})
	})
	g.Go(func() error {
		return s.each(ctx, domain.BattleStatusCardsRevealed, now.Add(-s.opts.RevealCountdown), func(b *domain.BattleInstance) {
			s.resolveBattle(ctx, b.ID)
		})
	})
	g.Go(func() error {
		return s.each(ctx, domain.BattleStatusInProgress, now.Add(-s.opts.StuckResolutionAfter), func(b *domain.BattleInstance) {
			s.resolveBattle(ctx, b.ID)
		})
	})

	return g.Wait()
}

func (s *Scheduler) each(ctx context.Context, status domain.BattleStatus, before time.Time, fn func(*domain.BattleInstance)) error {
	battles, err := s.battles.ListStale(ctx, status, before, sweepBatchSize)
	if err != nil {
		return err
	}
	for _, b := range battles {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fn(b)
	}
	if len(battles) > 0 {
		s.logger.Info("swept battles", zap.String("status", string(status)), zap.Int("count", len(battles)))
	}
	return nil
}

// gocronLogger routes scheduler logs through zap.
type gocronLogger struct {
	l *zap.SugaredLogger
}

func (g gocronLogger) Debug(msg string, args ...any) { g.l.Debugw(msg, args...) }
func (g gocronLogger) Error(msg string, args ...any) { g.l.Errorw(msg, args...) }
func (g gocronLogger) Info(msg string, args ...any)  { g.l.Infow(msg, args...) }
func (g gocronLogger) Warn(msg string, args ...any)  { g.l.Warnw(msg, args...) }
