package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/repository"
	"github.com/dom/cardclash/internal/repository/memory"
	"github.com/dom/cardclash/internal/resolution"
	"github.com/dom/cardclash/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedEvent struct {
	kind     string
	battleID uuid.UUID
	status   domain.BattleStatus
	playerID uuid.UUID
	err      error
}

// recordingNotifier captures every notification for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) CardSelected(_ context.Context, battle *domain.BattleInstance, playerID uuid.UUID) {
	n.add(recordedEvent{kind: "card_selected", battleID: battle.ID, playerID: playerID})
}

func (n *recordingNotifier) StatusChanged(_ context.Context, battle *domain.BattleInstance, status domain.BattleStatus) {
	n.add(recordedEvent{kind: "status_changed", battleID: battle.ID, status: status})
}

func (n *recordingNotifier) ResolutionError(_ context.Context, battleID uuid.UUID, err error) {
	n.add(recordedEvent{kind: "resolution_error", battleID: battleID, err: err})
}

func (n *recordingNotifier) add(e recordedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

// statusCount counts status_changed notifications for status.
func (n *recordingNotifier) statusCount(status domain.BattleStatus) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, e := range n.events {
		if e.kind == "status_changed" && e.status == status {
			count++
		}
	}
	return count
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, e := range n.events {
		if e.kind == kind {
			count++
		}
	}
	return count
}

type scheduledReveal struct {
	battleID uuid.UUID
	at       time.Time
}

type recordingScheduler struct {
	mu    sync.Mutex
	calls []scheduledReveal
}

func (s *recordingScheduler) ScheduleResolution(battleID uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, scheduledReveal{battleID: battleID, at: at})
}

func (s *recordingScheduler) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fixture struct {
	store     *memory.Store
	repos     *repository.Repositories
	notifier  *recordingNotifier
	scheduler *recordingScheduler
	battles   *service.BattleService
	selection *service.SelectionService
	orch      *service.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithPolicy(t, resolution.AttributeSum{})
}

func newFixtureWithPolicy(t *testing.T, policy resolution.Policy) *fixture {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()
	notifier := &recordingNotifier{}
	scheduler := &recordingScheduler{}
	logger := zap.NewNop()

	selection := service.NewSelectionService(repos, notifier, 10*time.Second, logger)
	selection.SetRevealScheduler(scheduler)

	return &fixture{
		store:     store,
		repos:     repos,
		notifier:  notifier,
		scheduler: scheduler,
		battles:   service.NewBattleService(repos, notifier, logger),
		selection: selection,
		orch:      service.NewOrchestrator(repos, policy, notifier, logger),
	}
}

func (f *fixture) user(t *testing.T, name string) *domain.User {
	t.Helper()
	u := &domain.User{ID: uuid.New(), DisplayName: name, PasswordHash: "x", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, f.repos.User.Create(context.Background(), u))
	return u
}

func (f *fixture) card(t *testing.T, owner uuid.UUID, name string, cardType domain.CardType, attrs domain.Attributes) *domain.Card {
	t.Helper()
	c := &domain.Card{
		ID:         uuid.New(),
		OwnerID:    owner,
		CardType:   cardType,
		Name:       name,
		Rarity:     domain.RarityBronze,
		Archetype:  domain.ArchetypeMight,
		Attributes: attrs,
		ObtainedAt: time.Now(),
	}
	require.NoError(t, f.repos.Card.Create(context.Background(), c))
	return c
}

// activeBattle returns an accepted battle between two fresh players, each
// holding one humanoid card.
func (f *fixture) activeBattle(t *testing.T) (battle *domain.BattleInstance, challengerCard, opponentCard *domain.Card) {
	t.Helper()
	ctx := context.Background()
	challenger := f.user(t, "challenger-"+uuid.NewString()[:8])
	opponent := f.user(t, "opponent-"+uuid.NewString()[:8])
	challengerCard = f.card(t, challenger.ID, "Ironclad", domain.CardTypeHumanoid, domain.Attributes{Str: 10, Dex: 5, Int: 5})
	opponentCard = f.card(t, opponent.ID, "Skirmisher", domain.CardTypeHumanoid, domain.Attributes{Str: 5, Dex: 10, Int: 5})

	battle, err := f.battles.CreateChallenge(ctx, challenger.ID, opponent.ID)
	require.NoError(t, err)
	battle, err = f.battles.Accept(ctx, battle.ID, opponent.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BattleStatusActive, battle.Status)
	return battle, challengerCard, opponentCard
}

// revealedBattle returns a battle with both cards selected.
func (f *fixture) revealedBattle(t *testing.T) (battle *domain.BattleInstance, challengerCard, opponentCard *domain.Card) {
	t.Helper()
	ctx := context.Background()
	battle, challengerCard, opponentCard = f.activeBattle(t)
	_, err := f.selection.SelectCard(ctx, battle.ID, battle.ChallengerID, challengerCard.ID)
	require.NoError(t, err)
	res, err := f.selection.SelectCard(ctx, battle.ID, battle.OpponentID, opponentCard.ID)
	require.NoError(t, err)
	require.True(t, res.CompletedPair)
	return res.Battle, challengerCard, opponentCard
}

func (f *fixture) status(t *testing.T, battleID uuid.UUID) domain.BattleStatus {
	t.Helper()
	b, err := f.repos.Battle.GetByID(context.Background(), battleID)
	require.NoError(t, err)
	return b.Status
}
