package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/repository"
	"github.com/dom/cardclash/internal/repository/postgres"
	"github.com/dom/cardclash/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBattleRepository_GetByID(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewBattleRepository(testDB.DB)
	ctx := context.Background()

	battle := testutil.NewBattleBuilder().Build(t, testDB.DB)

	got, err := repo.GetByID(ctx, battle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BattleStatusPending, got.Status)
	require.NotNil(t, got.Challenger)
	assert.Equal(t, battle.ChallengerID, got.Challenger.ID)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestBattleRepository_UpdateStatus(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewBattleRepository(testDB.DB)
	ctx := context.Background()

	battle := testutil.NewBattleBuilder().WithStatus(domain.BattleStatusInProgress).Build(t, testDB.DB)

	winner := battle.ChallengerID
	explanation := "Brute defeats Scout on total attributes (19 vs 12)"
	now := time.Now()

	err := repo.UpdateStatus(ctx, battle.ID, domain.BattleStatusInProgress, domain.BattleStatusCompleted, domain.BattleUpdate{
		WinnerID:    &winner,
		Explanation: &explanation,
		CompletedAt: &now,
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, battle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BattleStatusCompleted, got.Status)
	require.NotNil(t, got.WinnerID)
	assert.Equal(t, winner, *got.WinnerID)
	assert.Equal(t, explanation, *got.Explanation)
	assert.NotNil(t, got.CompletedAt)

	err = repo.UpdateStatus(ctx, battle.ID, domain.BattleStatusInProgress, domain.BattleStatusCompleted, domain.BattleUpdate{})
	assert.ErrorIs(t, err, repository.ErrStaleStatus)
}

func TestBattleRepository_UpdateStatusSingleWinner(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewBattleRepository(testDB.DB)
	ctx := context.Background()

	battle := testutil.NewBattleBuilder().WithStatus(domain.BattleStatusCardsRevealed).Build(t, testDB.DB)

	const workers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.UpdateStatus(ctx, battle.ID, domain.BattleStatusCardsRevealed, domain.BattleStatusInProgress, domain.BattleUpdate{})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, repository.ErrStaleStatus)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestBattleRepository_List(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewBattleRepository(testDB.DB)
	ctx := context.Background()

	player, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	testutil.NewBattleBuilder().WithChallenger(player).Build(t, testDB.DB)
	testutil.NewBattleBuilder().WithOpponent(player).WithStatus(domain.BattleStatusActive).Build(t, testDB.DB)
	testutil.NewBattleBuilder().Build(t, testDB.DB)

	all, err := repo.List(ctx, repository.BattleListFilter{PlayerID: player.ID, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := repo.List(ctx, repository.BattleListFilter{PlayerID: player.ID, Status: domain.BattleStatusActive, Limit: 10})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, player.ID, active[0].OpponentID)
}

func TestBattleRepository_ListStale(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewBattleRepository(testDB.DB)
	ctx := context.Background()

	old := time.Now().Add(-time.Hour)
	stale := testutil.NewBattleBuilder().WithCreatedAt(old).Build(t, testDB.DB)
	testutil.NewBattleBuilder().Build(t, testDB.DB)

	revealed := testutil.NewBattleBuilder().
		WithStatus(domain.BattleStatusCardsRevealed).
		WithRevealedAt(old).
		Build(t, testDB.DB)

	pending, err := repo.ListStale(ctx, domain.BattleStatusPending, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, stale.ID, pending[0].ID)

	overdue, err := repo.ListStale(ctx, domain.BattleStatusCardsRevealed, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, revealed.ID, overdue[0].ID)
}
