package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/realtime"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	commandTimeout = 10 * time.Second
)

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID
	logger *zap.Logger

	mu         sync.Mutex
	closed     bool
	playerSub  *realtime.Subscription
	battleSubs map[uuid.UUID]*realtime.Subscription
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 256),
		userID:     userID,
		logger:     hub.logger.With(zap.String("player_id", userID.String())),
		battleSubs: make(map[uuid.UUID]*realtime.Subscription),
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	handler := NewCommandHandler(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			break
		}

		var msg Msg
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError(ErrCodeInvalidPayload, "Invalid message format", false)
			continue
		}

		switch msg.Type {
		case MsgTypeCommand:
			handler.HandleCommand(&msg)
		case MsgTypeQuery:
			handler.HandleQuery(&msg)
		default:
			c.sendError(ErrCodeInvalidCommand, "Unsupported message type", false)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close releases every subscription and closes the send channel. It is safe
// to call more than once and from any goroutine.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.playerSub != nil {
		c.playerSub.Close()
	}
	for id, sub := range c.battleSubs {
		sub.Close()
		delete(c.battleSubs, id)
	}
	close(c.send)
}

// subscribePlayer delivers events addressed to this player, such as new
// challenges, for battles the client is not watching.
func (c *Client) subscribePlayer() {
	sub := c.hub.broker.Subscribe(realtime.PlayerChannel(c.userID), "", func(e realtime.Event) {
		c.mu.Lock()
		_, watching := c.battleSubs[e.BattleID]
		c.mu.Unlock()
		if !watching {
			c.sendEvent(e)
		}
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		sub.Close()
		return
	}
	c.playerSub = sub
}

// watch subscribes to battleID, replacing an existing subscription.
func (c *Client) watch(battleID uuid.UUID) bool {
	sub := c.hub.broker.Subscribe(realtime.BattleChannel(battleID), "", c.sendEvent)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		sub.Close()
		return false
	}
	if old, ok := c.battleSubs[battleID]; ok {
		old.Close()
	}
	c.battleSubs[battleID] = sub
	return true
}

func (c *Client) unwatch(battleID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sub, ok := c.battleSubs[battleID]; ok {
		sub.Close()
		delete(c.battleSubs, battleID)
	}
}

func (c *Client) sendEvent(e realtime.Event) {
	payload, err := realtime.Encode(e)
	if err != nil {
		c.logger.Error("failed to encode event", zap.Error(err))
		return
	}
	c.Send(&Msg{Type: MsgTypeEvent, Payload: payload, Timestamp: time.Now().UnixMilli()})
}

func (c *Client) sendError(code, message string, retryable bool) {
	msg, _ := NewMsg(MsgTypeErr, ErrPayload{
		Code:      code,
		Message:   message,
		Retryable: retryable,
	})
	c.Send(msg)
}

// sendDomainError reports err with its domain code, or as an internal error
// when it carries none.
func (c *Client) sendDomainError(err error) {
	code := domain.CodeOf(err)
	if code == "" {
		c.logger.Error("command failed", zap.Error(err))
		c.sendError(ErrCodeInternal, "Internal error", false)
		return
	}
	c.sendError(string(code), domain.UserMessage(err), domain.IsRetryable(err))
}

// Send queues msg without blocking. Messages to a client whose buffer is full
// are dropped; the client recovers with a sync_battle query.
func (c *Client) Send(msg *Msg) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal message", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("dropping message for slow client", zap.String("type", string(msg.Type)))
	}
}
