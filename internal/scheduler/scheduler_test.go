package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/repository"
	"github.com/dom/cardclash/internal/repository/memory"
	"github.com/dom/cardclash/internal/resolution"
	"github.com/dom/cardclash/internal/scheduler"
	"github.com/dom/cardclash/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopNotifier struct{}

func (nopNotifier) CardSelected(context.Context, *domain.BattleInstance, uuid.UUID)            {}
func (nopNotifier) StatusChanged(context.Context, *domain.BattleInstance, domain.BattleStatus) {}
func (nopNotifier) ResolutionError(context.Context, uuid.UUID, error)                          {}

type harness struct {
	store     *memory.Store
	repos     *repository.Repositories
	battles   *service.BattleService
	selection *service.SelectionService
	sched     *scheduler.Scheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()
	logger := zap.NewNop()

	battles := service.NewBattleService(repos, nopNotifier{}, logger)
	selection := service.NewSelectionService(repos, nopNotifier{}, 50*time.Millisecond, logger)
	orch := service.NewOrchestrator(repos, resolution.AttributeSum{}, nopNotifier{}, logger)

	sched, err := scheduler.New(repos.Battle, orch, battles, selection, scheduler.Options{
		RevealCountdown:      50 * time.Millisecond,
		ChallengeTTL:         time.Minute,
		SweepInterval:        time.Hour,
		StuckResolutionAfter: time.Minute,
	}, logger)
	require.NoError(t, err)
	selection.SetRevealScheduler(sched)
	t.Cleanup(func() { _ = sched.Shutdown() })

	return &harness{store: store, repos: repos, battles: battles, selection: selection, sched: sched}
}

func (h *harness) player(t *testing.T, name string) (*domain.User, *domain.Card) {
	t.Helper()
	ctx := context.Background()
	u := &domain.User{ID: uuid.New(), DisplayName: name, PasswordHash: "x", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, h.repos.User.Create(ctx, u))
	c := &domain.Card{
		ID:         uuid.New(),
		OwnerID:    u.ID,
		CardType:   domain.CardTypeHumanoid,
		Name:       name + " champion",
		Rarity:     domain.RaritySilver,
		Archetype:  domain.ArchetypeFinesse,
		Attributes: domain.Attributes{Str: 4, Dex: len(name) + 3, Int: 4},
		ObtainedAt: time.Now(),
	}
	require.NoError(t, h.repos.Card.Create(ctx, c))
	return u, c
}

func (h *harness) activeBattle(t *testing.T, a, b string) (*domain.BattleInstance, *domain.Card, *domain.Card) {
	t.Helper()
	ctx := context.Background()
	challenger, cc := h.player(t, a)
	opponent, oc := h.player(t, b)
	battle, err := h.battles.CreateChallenge(ctx, challenger.ID, opponent.ID)
	require.NoError(t, err)
	battle, err = h.battles.Accept(ctx, battle.ID, opponent.ID)
	require.NoError(t, err)
	return battle, cc, oc
}

func (h *harness) status(t *testing.T, id uuid.UUID) domain.BattleStatus {
	t.Helper()
	b, err := h.repos.Battle.GetByID(context.Background(), id)
	require.NoError(t, err)
	return b.Status
}

func TestScheduler_RevealCountdownResolvesBattle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.sched.Start())

	battle, cc, oc := h.activeBattle(t, "ana", "bartholomew")
	_, err := h.selection.SelectCard(ctx, battle.ID, battle.ChallengerID, cc.ID)
	require.NoError(t, err)
	_, err = h.selection.SelectCard(ctx, battle.ID, battle.OpponentID, oc.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.status(t, battle.ID) == domain.BattleStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	card, err := h.repos.Card.GetByID(ctx, cc.ID)
	require.NoError(t, err)
	assert.Equal(t, battle.OpponentID, card.OwnerID)
	assert.Equal(t, 1, h.store.Transfers())
}

func TestScheduler_RescheduleReplacesJob(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sched.Start())

	battle, cc, oc := h.activeBattle(t, "cy", "dorothea")
	ctx := context.Background()
	_, err := h.selection.SelectCard(ctx, battle.ID, battle.ChallengerID, cc.ID)
	require.NoError(t, err)
	_, err = h.selection.SelectCard(ctx, battle.ID, battle.OpponentID, oc.ID)
	require.NoError(t, err)

	// Pushing the job out keeps the battle revealed past the original countdown.
	h.sched.ScheduleResolution(battle.ID, time.Now().Add(time.Hour))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, domain.BattleStatusCardsRevealed, h.status(t, battle.ID))

	h.sched.ScheduleResolution(battle.ID, time.Now())
	require.Eventually(t, func() bool {
		return h.status(t, battle.ID) == domain.BattleStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)
}

func TestScheduler_Sweep(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	challenger, _ := h.player(t, "eve")
	opponent, _ := h.player(t, "fitzgerald")
	pending, err := h.battles.CreateChallenge(ctx, challenger.ID, opponent.ID)
	require.NoError(t, err)

	revealed, rc, ro := h.activeBattle(t, "gil", "henrietta")
	_, err = h.selection.SelectCard(ctx, revealed.ID, revealed.ChallengerID, rc.ID)
	require.NoError(t, err)
	_, err = h.selection.SelectCard(ctx, revealed.ID, revealed.OpponentID, ro.ID)
	require.NoError(t, err)

	// Reveal write fails, leaving a fully selected battle stuck in active.
	stuck, sc, so := h.activeBattle(t, "ivo", "josephine")
	_, err = h.selection.SelectCard(ctx, stuck.ID, stuck.ChallengerID, sc.ID)
	require.NoError(t, err)
	h.store.FailNext(memory.OpBattleUpdateStatus, 1, nil)
	_, err = h.selection.SelectCard(ctx, stuck.ID, stuck.OpponentID, so.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BattleStatusActive, h.status(t, stuck.ID))

	waiting, _, _ := h.activeBattle(t, "kit", "leopold")

	require.NoError(t, h.sched.Sweep(ctx, time.Now().Add(time.Hour)))

	assert.Equal(t, domain.BattleStatusDeclined, h.status(t, pending.ID))
	assert.Equal(t, domain.BattleStatusCompleted, h.status(t, revealed.ID))
	assert.NotEqual(t, domain.BattleStatusActive, h.status(t, stuck.ID))
	assert.Equal(t, domain.BattleStatusActive, h.status(t, waiting.ID))

	// A battle revealed by the sweep is resolved by the next pass at the latest.
	require.NoError(t, h.sched.Sweep(ctx, time.Now().Add(2*time.Hour)))
	assert.Equal(t, domain.BattleStatusCompleted, h.status(t, stuck.ID))
}

func TestScheduler_SweepRetriesStuckResolution(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	battle, cc, oc := h.activeBattle(t, "mo", "nathaniel")
	_, err := h.selection.SelectCard(ctx, battle.ID, battle.ChallengerID, cc.ID)
	require.NoError(t, err)
	_, err = h.selection.SelectCard(ctx, battle.ID, battle.OpponentID, oc.ID)
	require.NoError(t, err)

	h.store.FailNext(memory.OpCardTransfer, 1, nil)
	require.NoError(t, h.sched.Sweep(ctx, time.Now().Add(time.Hour)))
	assert.Contains(t, []domain.BattleStatus{domain.BattleStatusInProgress, domain.BattleStatusCompleted}, h.status(t, battle.ID))

	require.NoError(t, h.sched.Sweep(ctx, time.Now().Add(2*time.Hour)))
	assert.Equal(t, domain.BattleStatusCompleted, h.status(t, battle.ID))
	assert.Equal(t, 1, h.store.Transfers())
}
