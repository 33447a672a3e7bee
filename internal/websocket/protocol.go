package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type MsgType string

const (
	// Client → Server
	MsgTypeCommand MsgType = "COMMAND"
	MsgTypeQuery   MsgType = "QUERY"

	// Server → Client
	MsgTypeEvent MsgType = "EVENT"
	MsgTypeState MsgType = "STATE"
	MsgTypeErr   MsgType = "ERR"
)

// Msg is the envelope for every frame in both directions.
type Msg struct {
	Type      MsgType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
	Seq       int             `json:"seq,omitempty"`
}

func NewMsg(msgType MsgType, payload any) (*Msg, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Msg{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

type CommandAction string

const (
	CmdSubscribeBattle   CommandAction = "subscribe_battle"
	CmdUnsubscribeBattle CommandAction = "unsubscribe_battle"
	CmdSelectCard        CommandAction = "select_card"
	CmdTriggerResolution CommandAction = "trigger_resolution"
)

type Command struct {
	Action  CommandAction   `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type CmdBattlePayload struct {
	BattleID uuid.UUID `json:"battleId"`
}

type CmdSelectCardPayload struct {
	BattleID uuid.UUID `json:"battleId"`
	CardID   uuid.UUID `json:"cardId"`
}

type QueryType string

const (
	QuerySyncBattle QueryType = "sync_battle"
)

type Query struct {
	Query    QueryType `json:"query"`
	BattleID uuid.UUID `json:"battleId"`
}

// ErrPayload is sent with ERR frames. Retryable tells the client whether
// repeating the same request can succeed.
type ErrPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

const (
	ErrCodeInvalidCommand = "INVALID_COMMAND"
	ErrCodeInvalidQuery   = "INVALID_QUERY"
	ErrCodeInvalidPayload = "INVALID_PAYLOAD"
	ErrCodeUnknownCommand = "UNKNOWN_COMMAND"
	ErrCodeUnknownQuery   = "UNKNOWN_QUERY"
	ErrCodeInternal       = "INTERNAL"
)
