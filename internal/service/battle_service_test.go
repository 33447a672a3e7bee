package service_test

import (
	"context"
	"testing"

	"github.com/dom/cardclash/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBattleService_ChallengeLifecycle(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		act        func(f *fixture, b *domain.BattleInstance) (*domain.BattleInstance, error)
		wantStatus domain.BattleStatus
		wantErr    error
	}{
		{
			name: "opponent accepts",
			act: func(f *fixture, b *domain.BattleInstance) (*domain.BattleInstance, error) {
				return f.battles.Accept(ctx, b.ID, b.OpponentID)
			},
			wantStatus: domain.BattleStatusActive,
		},
		{
			name: "opponent declines",
			act: func(f *fixture, b *domain.BattleInstance) (*domain.BattleInstance, error) {
				return f.battles.Decline(ctx, b.ID, b.OpponentID)
			},
			wantStatus: domain.BattleStatusDeclined,
		},
		{
			name: "challenger cancels",
			act: func(f *fixture, b *domain.BattleInstance) (*domain.BattleInstance, error) {
				return f.battles.Cancel(ctx, b.ID, b.ChallengerID)
			},
			wantStatus: domain.BattleStatusCancelled,
		},
		{
			name: "challenger cannot accept",
			act: func(f *fixture, b *domain.BattleInstance) (*domain.BattleInstance, error) {
				return f.battles.Accept(ctx, b.ID, b.ChallengerID)
			},
			wantStatus: domain.BattleStatusPending,
			wantErr:    domain.ErrInvalidChallenge,
		},
		{
			name: "outsider cannot decline",
			act: func(f *fixture, b *domain.BattleInstance) (*domain.BattleInstance, error) {
				return f.battles.Decline(ctx, b.ID, uuid.New())
			},
			wantStatus: domain.BattleStatusPending,
			wantErr:    domain.ErrNotAParticipant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			challenger := f.user(t, "challenger")
			opponent := f.user(t, "opponent")
			battle, err := f.battles.CreateChallenge(ctx, challenger.ID, opponent.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.BattleStatusPending, battle.Status)

			got, err := tt.act(f, battle)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantStatus, got.Status)
			}
			assert.Equal(t, tt.wantStatus, f.status(t, battle.ID))
		})
	}
}

func TestBattleService_CreateChallengeValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	challenger := f.user(t, "challenger")

	_, err := f.battles.CreateChallenge(ctx, challenger.ID, challenger.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidChallenge)

	_, err = f.battles.CreateChallenge(ctx, challenger.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestBattleService_AcceptTwiceIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	battle, _, _ := f.activeBattle(t)

	_, err := f.battles.Accept(ctx, battle.ID, battle.OpponentID)
	assert.ErrorIs(t, err, domain.ErrInvalidBattleStatus)
}

func TestBattleService_Expire(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	challenger := f.user(t, "challenger")
	opponent := f.user(t, "opponent")
	battle, err := f.battles.CreateChallenge(ctx, challenger.ID, opponent.ID)
	require.NoError(t, err)

	require.NoError(t, f.battles.Expire(ctx, battle.ID))
	expired, err := f.repos.Battle.GetByID(ctx, battle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BattleStatusDeclined, expired.Status)
	require.NotNil(t, expired.Explanation)
	assert.Equal(t, "challenge expired", *expired.Explanation)

	// Already terminal: nothing to do.
	require.NoError(t, f.battles.Expire(ctx, battle.ID))
}

func TestBattleService_GetBattleHidesOpponentCard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	battle, challengerCard, opponentCard := f.activeBattle(t)

	_, err := f.selection.SelectCard(ctx, battle.ID, battle.ChallengerID, challengerCard.ID)
	require.NoError(t, err)

	asOpponent, err := f.battles.GetBattle(ctx, battle.ID, battle.OpponentID)
	require.NoError(t, err)
	require.Len(t, asOpponent.Selections, 1)
	assert.True(t, asOpponent.Selections[0].Hidden)
	assert.Nil(t, asOpponent.Selections[0].Card)

	asChallenger, err := f.battles.GetBattle(ctx, battle.ID, battle.ChallengerID)
	require.NoError(t, err)
	require.Len(t, asChallenger.Selections, 1)
	require.NotNil(t, asChallenger.Selections[0].Card)
	assert.Equal(t, challengerCard.ID, asChallenger.Selections[0].Card.ID)

	_, err = f.selection.SelectCard(ctx, battle.ID, battle.OpponentID, opponentCard.ID)
	require.NoError(t, err)
	revealed, err := f.battles.GetBattle(ctx, battle.ID, battle.OpponentID)
	require.NoError(t, err)
	require.Len(t, revealed.Selections, 2)
	for _, sel := range revealed.Selections {
		assert.False(t, sel.Hidden)
		assert.NotNil(t, sel.Card)
	}

	_, err = f.orch.Resolve(ctx, battle.ID)
	require.NoError(t, err)
	completed, err := f.battles.GetBattle(ctx, battle.ID, battle.ChallengerID)
	require.NoError(t, err)
	require.NotNil(t, completed.Result)
	assert.Equal(t, battle.ChallengerID, *completed.Result.WinnerID)

	_, err = f.battles.GetBattle(ctx, battle.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotAParticipant)
}

func TestBattleService_ListBattles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	battle, _, _ := f.activeBattle(t)

	all, err := f.battles.ListBattles(ctx, battle.ChallengerID, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, battle.ID, all[0].ID)

	pending, err := f.battles.ListBattles(ctx, battle.ChallengerID, domain.BattleStatusPending, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.battles.ListBattles(ctx, battle.ChallengerID, "bogus", 10, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidBattleStatus)
}
