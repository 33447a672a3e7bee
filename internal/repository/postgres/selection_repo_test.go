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

func TestSelectionRepository_UniquePerPlayer(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewSelectionRepository(testDB.DB)
	ctx := context.Background()

	battle := testutil.NewBattleBuilder().WithStatus(domain.BattleStatusActive).Build(t, testDB.DB)

	first := &domain.CardSelection{
		ID:          uuid.New(),
		BattleID:    battle.ID,
		PlayerID:    battle.ChallengerID,
		CardID:      uuid.New(),
		SubmittedAt: time.Now(),
	}
	require.NoError(t, repo.Create(ctx, first))

	second := *first
	second.ID = uuid.New()
	second.CardID = uuid.New()
	assert.ErrorIs(t, repo.Create(ctx, &second), repository.ErrDuplicate)

	got, err := repo.GetByBattleAndPlayer(ctx, battle.ID, battle.ChallengerID)
	require.NoError(t, err)
	assert.Equal(t, first.CardID, got.CardID)

	_, err = repo.GetByBattleAndPlayer(ctx, battle.ID, battle.OpponentID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSelectionRepository_ConcurrentDuplicates(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewSelectionRepository(testDB.DB)
	ctx := context.Background()

	battle := testutil.NewBattleBuilder().WithStatus(domain.BattleStatusActive).Build(t, testDB.DB)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Create(ctx, &domain.CardSelection{
				ID:          uuid.New(),
				BattleID:    battle.ID,
				PlayerID:    battle.OpponentID,
				CardID:      uuid.New(),
				SubmittedAt: time.Now(),
			})
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, repository.ErrDuplicate)
	}
	assert.Equal(t, 1, created)

	selections, err := repo.GetByBattleID(ctx, battle.ID)
	require.NoError(t, err)
	assert.Len(t, selections, 1)
}

func TestResultRepository_CreateOnce(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewResultRepository(testDB.DB)
	ctx := context.Background()

	battle := testutil.NewBattleBuilder().WithStatus(domain.BattleStatusCardsRevealed).Build(t, testDB.DB)
	winner, loser := battle.ChallengerID, battle.OpponentID
	stake := uuid.New()

	result := &domain.BattleResult{
		ID:                uuid.New(),
		BattleID:          battle.ID,
		WinnerID:          &winner,
		LoserID:           &loser,
		TransferredCardID: &stake,
		Explanation:       "Knight defeats Scout on total attributes (20 vs 12)",
		Policy:            "attribute_sum",
		Breakdown:         []byte(`{"winner":"a"}`),
		CreatedAt:         time.Now(),
	}
	require.NoError(t, repo.Create(ctx, result))

	dup := *result
	dup.ID = uuid.New()
	assert.ErrorIs(t, repo.Create(ctx, &dup), repository.ErrDuplicate)

	got, err := repo.GetByBattleID(ctx, battle.ID)
	require.NoError(t, err)
	assert.Equal(t, result.ID, got.ID)
	require.NotNil(t, got.TransferredCardID)
	assert.Equal(t, *result.TransferredCardID, *got.TransferredCardID)
	assert.JSONEq(t, `{"winner":"a"}`, string(got.Breakdown))
}
