package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type BattleStatus string

const (
	BattleStatusPending       BattleStatus = "pending"
	BattleStatusActive        BattleStatus = "active"
	BattleStatusCardsRevealed BattleStatus = "cards_revealed"
	BattleStatusInProgress    BattleStatus = "in_progress"
	BattleStatusCompleted     BattleStatus = "completed"
	BattleStatusDeclined      BattleStatus = "declined"
	BattleStatusCancelled     BattleStatus = "cancelled"
)

// transitions lists every legal edge. Anything missing is rejected, which
// keeps the lifecycle monotonic.
var transitions = map[BattleStatus][]BattleStatus{
	BattleStatusPending:       {BattleStatusActive, BattleStatusDeclined, BattleStatusCancelled},
	BattleStatusActive:        {BattleStatusCardsRevealed},
	BattleStatusCardsRevealed: {BattleStatusInProgress},
	BattleStatusInProgress:    {BattleStatusCompleted},
}

func (s BattleStatus) IsValid() bool {
	switch s {
	case BattleStatusPending, BattleStatusActive, BattleStatusCardsRevealed,
		BattleStatusInProgress, BattleStatusCompleted, BattleStatusDeclined, BattleStatusCancelled:
		return true
	}
	return false
}

func (s BattleStatus) IsTerminal() bool {
	return s == BattleStatusCompleted || s == BattleStatusDeclined || s == BattleStatusCancelled
}

// CardsVisible reports whether both staked cards may be shown to both players.
func (s BattleStatus) CardsVisible() bool {
	switch s {
	case BattleStatusCardsRevealed, BattleStatusInProgress, BattleStatusCompleted:
		return true
	}
	return false
}

func CanTransition(from, to BattleStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type BattleInstance struct {
	ID           uuid.UUID    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ChallengerID uuid.UUID    `json:"challengerId" gorm:"type:uuid;not null;index"`
	OpponentID   uuid.UUID    `json:"opponentId" gorm:"type:uuid;not null;index"`
	Status       BattleStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	WinnerID     *uuid.UUID   `json:"winnerId,omitempty" gorm:"type:uuid"`
	Explanation  *string      `json:"explanation,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	AcceptedAt   *time.Time   `json:"acceptedAt,omitempty"`
	RevealedAt   *time.Time   `json:"revealedAt,omitempty"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty"`

	Challenger *User `json:"challenger,omitempty" gorm:"foreignKey:ChallengerID"`
	Opponent   *User `json:"opponent,omitempty" gorm:"foreignKey:OpponentID"`
}

func (BattleInstance) TableName() string {
	return "battles"
}

func (b *BattleInstance) IsParticipant(playerID uuid.UUID) bool {
	return b.ChallengerID == playerID || b.OpponentID == playerID
}

// OtherPlayer returns the participant that is not playerID.
func (b *BattleInstance) OtherPlayer(playerID uuid.UUID) uuid.UUID {
	if b.ChallengerID == playerID {
		return b.OpponentID
	}
	return b.ChallengerID
}

// BattleUpdate carries the columns written alongside a status transition.
type BattleUpdate struct {
	WinnerID    *uuid.UUID
	Explanation *string
	AcceptedAt  *time.Time
	RevealedAt  *time.Time
	CompletedAt *time.Time
}

// CardSelection is unique per (battle, player) at the store level.
type CardSelection struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	BattleID    uuid.UUID `json:"battleId" gorm:"type:uuid;not null;uniqueIndex:idx_selection_battle_player"`
	PlayerID    uuid.UUID `json:"playerId" gorm:"type:uuid;not null;uniqueIndex:idx_selection_battle_player"`
	CardID      uuid.UUID `json:"cardId" gorm:"type:uuid;not null;index"`
	SubmittedAt time.Time `json:"submittedAt" gorm:"not null"`
}

// BattleResult is written once per battle, before the prize transfer, so a
// retried resolution reuses the stored outcome instead of recomputing it.
type BattleResult struct {
	ID                uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	BattleID          uuid.UUID      `json:"battleId" gorm:"type:uuid;not null;uniqueIndex"`
	WinnerID          *uuid.UUID     `json:"winnerId,omitempty" gorm:"type:uuid"`
	LoserID           *uuid.UUID     `json:"loserId,omitempty" gorm:"type:uuid"`
	Explanation       string         `json:"explanation" gorm:"not null"`
	TransferredCardID *uuid.UUID     `json:"transferredCardId,omitempty" gorm:"type:uuid"`
	ScoreChallenger   int            `json:"scoreChallenger"`
	ScoreOpponent     int            `json:"scoreOpponent"`
	Policy            string         `json:"policy" gorm:"type:varchar(32);not null"`
	Breakdown         datatypes.JSON `json:"breakdown,omitempty" gorm:"type:jsonb"`
	CreatedAt         time.Time      `json:"createdAt"`
}

func (r *BattleResult) IsDraw() bool {
	return r.WinnerID == nil
}
