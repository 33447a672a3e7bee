package websocket

import (
	"context"
	"encoding/json"

	"github.com/dom/cardclash/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CommandHandler routes COMMAND and QUERY frames from one client to the
// battle services. Every successful command is answered with a fresh STATE.
type CommandHandler struct {
	client *Client
}

func NewCommandHandler(client *Client) *CommandHandler {
	return &CommandHandler{client: client}
}

func (ch *CommandHandler) HandleCommand(msg *Msg) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
		ch.client.sendError(ErrCodeInvalidCommand, "Invalid command format", false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch cmd.Action {
	case CmdSubscribeBattle:
		ch.handleSubscribe(ctx, cmd.Payload)
	case CmdUnsubscribeBattle:
		ch.handleUnsubscribe(cmd.Payload)
	case CmdSelectCard:
		ch.handleSelectCard(ctx, cmd.Payload)
	case CmdTriggerResolution:
		ch.handleTriggerResolution(ctx, cmd.Payload)
	default:
		ch.client.logger.Debug("unknown command action", zap.String("action", string(cmd.Action)))
		ch.client.sendError(ErrCodeUnknownCommand, "Unknown command action", false)
	}
}

func (ch *CommandHandler) HandleQuery(msg *Msg) {
	var query Query
	if err := json.Unmarshal(msg.Payload, &query); err != nil {
		ch.client.sendError(ErrCodeInvalidQuery, "Invalid query format", false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch query.Query {
	case QuerySyncBattle:
		ch.sendState(ctx, query.BattleID)
	default:
		ch.client.sendError(ErrCodeUnknownQuery, "Unknown query type", false)
	}
}

// handleSubscribe checks access, subscribes, then reads the snapshot, so no
// event emitted after the snapshot can be missed.
func (ch *CommandHandler) handleSubscribe(ctx context.Context, payload json.RawMessage) {
	var p CmdBattlePayload
	if !ch.decode(payload, &p) {
		return
	}
	if _, err := ch.client.hub.services.Battles.GetBattle(ctx, p.BattleID, ch.client.userID); err != nil {
		ch.client.sendDomainError(err)
		return
	}
	if !ch.client.watch(p.BattleID) {
		return
	}
	ch.sendState(ctx, p.BattleID)
}

func (ch *CommandHandler) handleUnsubscribe(payload json.RawMessage) {
	var p CmdBattlePayload
	if !ch.decode(payload, &p) {
		return
	}
	ch.client.unwatch(p.BattleID)
}

func (ch *CommandHandler) handleSelectCard(ctx context.Context, payload json.RawMessage) {
	var p CmdSelectCardPayload
	if !ch.decode(payload, &p) {
		return
	}
	if _, err := ch.client.hub.services.Selection.SelectCard(ctx, p.BattleID, ch.client.userID, p.CardID); err != nil {
		ch.client.sendDomainError(err)
		// A conflict means the client's view is stale.
		if domain.KindOf(err) == domain.KindConflict {
			ch.sendState(ctx, p.BattleID)
		}
		return
	}
	ch.sendState(ctx, p.BattleID)
}

func (ch *CommandHandler) handleTriggerResolution(ctx context.Context, payload json.RawMessage) {
	var p CmdBattlePayload
	if !ch.decode(payload, &p) {
		return
	}
	if _, err := ch.client.hub.services.Resolution.TriggerResolution(ctx, p.BattleID, ch.client.userID); err != nil {
		ch.client.sendDomainError(err)
		return
	}
	ch.sendState(ctx, p.BattleID)
}

// sendState always reads the battle from the store.
func (ch *CommandHandler) sendState(ctx context.Context, battleID uuid.UUID) {
	view, err := ch.client.hub.services.Battles.GetBattle(ctx, battleID, ch.client.userID)
	if err != nil {
		ch.client.sendDomainError(err)
		return
	}
	msg, err := NewMsg(MsgTypeState, view)
	if err != nil {
		ch.client.logger.Error("failed to build state", zap.Error(err))
		return
	}
	ch.client.Send(msg)
}

func (ch *CommandHandler) decode(payload json.RawMessage, v any) bool {
	if err := json.Unmarshal(payload, v); err != nil {
		ch.client.sendError(ErrCodeInvalidPayload, "Invalid command payload", false)
		return false
	}
	return true
}
