package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dom/cardclash/internal/domain"
	"github.com/google/uuid"
)

// SchemaVersion is the version stamped on every event this server emits.
const SchemaVersion = 2

type EventName string

const (
	EventCardSelected          EventName = "card_selected"
	EventBattleStatusChanged   EventName = "battle_status_changed"
	EventBattleResolutionError EventName = "battle_resolution_error"
)

// Event is a notification, not state. Consumers re-read the battle from the
// store rather than trusting these fields.
type Event struct {
	Version    int                 `json:"v"`
	Name       EventName           `json:"name"`
	BattleID   uuid.UUID           `json:"battle_id"`
	Status     domain.BattleStatus `json:"status,omitempty"`
	PlayerID   *uuid.UUID          `json:"player_id,omitempty"`
	ErrorCode  domain.ErrorCode    `json:"error_code,omitempty"`
	Retryable  bool                `json:"retryable,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

var ErrUnsupportedVersion = errors.New("unsupported event schema version")

func BattleChannel(battleID uuid.UUID) string {
	return "battle:" + battleID.String()
}

func PlayerChannel(playerID uuid.UUID) string {
	return "player:" + playerID.String()
}

func Encode(e Event) ([]byte, error) {
	e.Version = SchemaVersion
	return json.Marshal(e)
}

// legacyEvent is the v1 payload: camelCase ids and a "newStatus" field.
type legacyEvent struct {
	Event     string `json:"event"`
	BattleID  string `json:"battleId"`
	NewStatus string `json:"newStatus"`
	Status    string `json:"status"`
	UserID    string `json:"userId"`
	ErrorCode string `json:"errorCode"`
	Timestamp int64  `json:"timestamp"`
}

// Decode parses any supported schema version into the current Event shape.
func Decode(data []byte) (Event, error) {
	var header struct {
		Version int `json:"v"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}

	switch header.Version {
	case 0, 1:
		return decodeV1(data)
	case SchemaVersion:
		var e Event
		if err := json.Unmarshal(data, &e); err != nil {
			return Event{}, fmt.Errorf("decode event: %w", err)
		}
		return e, nil
	}
	return Event{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, header.Version)
}

func decodeV1(data []byte) (Event, error) {
	var old legacyEvent
	if err := json.Unmarshal(data, &old); err != nil {
		return Event{}, fmt.Errorf("decode v1 event: %w", err)
	}
	battleID, err := uuid.Parse(old.BattleID)
	if err != nil {
		return Event{}, fmt.Errorf("decode v1 event: battleId: %w", err)
	}

	e := Event{
		Version:   SchemaVersion,
		Name:      EventName(old.Event),
		BattleID:  battleID,
		Status:    domain.BattleStatus(old.NewStatus),
		ErrorCode: domain.ErrorCode(old.ErrorCode),
	}
	if e.Status == "" {
		e.Status = domain.BattleStatus(old.Status)
	}
	if old.UserID != "" {
		playerID, err := uuid.Parse(old.UserID)
		if err != nil {
			return Event{}, fmt.Errorf("decode v1 event: userId: %w", err)
		}
		e.PlayerID = &playerID
	}
	if old.Timestamp > 0 {
		e.OccurredAt = time.UnixMilli(old.Timestamp).UTC()
	}
	return e, nil
}
