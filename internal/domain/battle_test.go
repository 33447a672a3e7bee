package domain_test

import (
	"testing"

	"github.com/dom/cardclash/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from domain.BattleStatus
		to   domain.BattleStatus
		want bool
	}{
		{domain.BattleStatusPending, domain.BattleStatusActive, true},
		{domain.BattleStatusPending, domain.BattleStatusDeclined, true},
		{domain.BattleStatusPending, domain.BattleStatusCancelled, true},
		{domain.BattleStatusActive, domain.BattleStatusCardsRevealed, true},
		{domain.BattleStatusCardsRevealed, domain.BattleStatusInProgress, true},
		{domain.BattleStatusInProgress, domain.BattleStatusCompleted, true},

		{domain.BattleStatusCompleted, domain.BattleStatusActive, false},
		{domain.BattleStatusCompleted, domain.BattleStatusInProgress, false},
		{domain.BattleStatusCardsRevealed, domain.BattleStatusActive, false},
		{domain.BattleStatusActive, domain.BattleStatusPending, false},
		{domain.BattleStatusActive, domain.BattleStatusCompleted, false},
		{domain.BattleStatusActive, domain.BattleStatusDeclined, false},
		{domain.BattleStatusDeclined, domain.BattleStatusActive, false},
		{domain.BattleStatusCancelled, domain.BattleStatusPending, false},
		{domain.BattleStatusInProgress, domain.BattleStatusInProgress, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, domain.CanTransition(tt.from, tt.to))
		})
	}
}

func TestCanTransition_TerminalStatesHaveNoExits(t *testing.T) {
	all := []domain.BattleStatus{
		domain.BattleStatusPending, domain.BattleStatusActive, domain.BattleStatusCardsRevealed,
		domain.BattleStatusInProgress, domain.BattleStatusCompleted, domain.BattleStatusDeclined,
		domain.BattleStatusCancelled,
	}
	for _, from := range all {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range all {
			assert.False(t, domain.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestBattleStatus_CardsVisible(t *testing.T) {
	assert.False(t, domain.BattleStatusPending.CardsVisible())
	assert.False(t, domain.BattleStatusActive.CardsVisible())
	assert.True(t, domain.BattleStatusCardsRevealed.CardsVisible())
	assert.True(t, domain.BattleStatusInProgress.CardsVisible())
	assert.True(t, domain.BattleStatusCompleted.CardsVisible())
}

func TestBattleInstance_Participants(t *testing.T) {
	challenger, opponent := uuid.New(), uuid.New()
	b := &domain.BattleInstance{ChallengerID: challenger, OpponentID: opponent}

	assert.True(t, b.IsParticipant(challenger))
	assert.True(t, b.IsParticipant(opponent))
	assert.False(t, b.IsParticipant(uuid.New()))
	assert.Equal(t, opponent, b.OtherPlayer(challenger))
	assert.Equal(t, challenger, b.OtherPlayer(opponent))
}
