package testutil

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/realtime"
	"github.com/dom/cardclash/internal/service"
	"github.com/dom/cardclash/internal/websocket"
	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// WSClient speaks the battle protocol against a TestServer.
type WSClient struct {
	t     *testing.T
	conn  *gorillaWS.Conn
	inbox chan websocket.Msg
	done  chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once

	// readErr is set before inbox is closed.
	readErr error
}

// NewWSClient dials url and starts reading frames. The connection is
// closed when the test ends.
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()

	dialer := gorillaWS.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	require.NoError(t, err, "websocket dial")

	c := &WSClient{t: t, conn: conn, inbox: make(chan websocket.Msg, 128), done: make(chan struct{})}
	go c.read()
	t.Cleanup(c.Close)
	return c
}

func (c *WSClient) read() {
	defer close(c.inbox)
	for {
		var msg websocket.Msg
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.readErr = err
			return
		}
		select {
		case c.inbox <- msg:
		case <-c.done:
			return
		}
	}
}

// Close sends a normal closure frame and drops the connection.
func (c *WSClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(gorillaWS.CloseMessage,
			gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
}

// SendRaw writes an arbitrary text frame.
func (c *WSClient) SendRaw(data []byte) {
	c.t.Helper()
	c.writeMu.Lock()
	err := c.conn.WriteMessage(gorillaWS.TextMessage, data)
	c.writeMu.Unlock()
	require.NoError(c.t, err, "websocket write")
}

func (c *WSClient) send(msgType websocket.MsgType, payload any) {
	c.t.Helper()
	msg, err := websocket.NewMsg(msgType, payload)
	require.NoError(c.t, err)
	data, err := json.Marshal(msg)
	require.NoError(c.t, err)
	c.SendRaw(data)
}

func (c *WSClient) command(action websocket.CommandAction, payload any) {
	c.t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(c.t, err)
	c.send(websocket.MsgTypeCommand, websocket.Command{Action: action, Payload: raw})
}

func (c *WSClient) SubscribeBattle(battleID uuid.UUID) {
	c.command(websocket.CmdSubscribeBattle, websocket.CmdBattlePayload{BattleID: battleID})
}

func (c *WSClient) UnsubscribeBattle(battleID uuid.UUID) {
	c.command(websocket.CmdUnsubscribeBattle, websocket.CmdBattlePayload{BattleID: battleID})
}

func (c *WSClient) SelectCard(battleID, cardID uuid.UUID) {
	c.command(websocket.CmdSelectCard, websocket.CmdSelectCardPayload{BattleID: battleID, CardID: cardID})
}

func (c *WSClient) TriggerResolution(battleID uuid.UUID) {
	c.command(websocket.CmdTriggerResolution, websocket.CmdBattlePayload{BattleID: battleID})
}

// SyncBattle asks for a fresh snapshot; the answer is a STATE message.
func (c *WSClient) SyncBattle(battleID uuid.UUID) {
	c.t.Helper()
	c.send(websocket.MsgTypeQuery, websocket.Query{Query: websocket.QuerySyncBattle, BattleID: battleID})
}

// next returns the first message accepted by match, discarding the rest.
func (c *WSClient) next(what string, timeout time.Duration, match func(websocket.Msg) bool) websocket.Msg {
	c.t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case msg, ok := <-c.inbox:
			if !ok {
				c.t.Fatalf("connection closed waiting for %s: %v", what, c.readErr)
			}
			if match(msg) {
				return msg
			}
		case <-timer.C:
			c.t.Fatalf("timed out after %s waiting for %s", timeout, what)
		}
	}
}

func decodePayload[T any](t *testing.T, msg websocket.Msg) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Payload, &v), "decode %s payload: %s", msg.Type, msg.Payload)
	return v
}

// ExpectMessage waits for the next message of msgType.
func (c *WSClient) ExpectMessage(msgType websocket.MsgType, timeout time.Duration) websocket.Msg {
	c.t.Helper()
	return c.next(string(msgType), timeout, func(m websocket.Msg) bool { return m.Type == msgType })
}

func (c *WSClient) ExpectState(timeout time.Duration) *service.BattleView {
	c.t.Helper()
	view := decodePayload[service.BattleView](c.t, c.ExpectMessage(websocket.MsgTypeState, timeout))
	return &view
}

// ExpectStateWithStatus skips snapshots until one reports status.
func (c *WSClient) ExpectStateWithStatus(status domain.BattleStatus, timeout time.Duration) *service.BattleView {
	c.t.Helper()
	var view service.BattleView
	c.next("state "+string(status), timeout, func(m websocket.Msg) bool {
		if m.Type != websocket.MsgTypeState {
			return false
		}
		view = decodePayload[service.BattleView](c.t, m)
		return view.Battle.Status == status
	})
	return &view
}

// ExpectEventNamed skips pushes until an event called name arrives.
func (c *WSClient) ExpectEventNamed(name realtime.EventName, timeout time.Duration) realtime.Event {
	c.t.Helper()
	var e realtime.Event
	c.next("event "+string(name), timeout, func(m websocket.Msg) bool {
		if m.Type != websocket.MsgTypeEvent {
			return false
		}
		var err error
		e, err = realtime.Decode(m.Payload)
		require.NoError(c.t, err)
		return e.Name == name
	})
	return e
}

func (c *WSClient) ExpectError(timeout time.Duration) *websocket.ErrPayload {
	c.t.Helper()
	p := decodePayload[websocket.ErrPayload](c.t, c.ExpectMessage(websocket.MsgTypeErr, timeout))
	return &p
}

// ExpectErrorWithCode fails unless the next ERR carries code.
func (c *WSClient) ExpectErrorWithCode(code string, timeout time.Duration) *websocket.ErrPayload {
	c.t.Helper()
	p := c.ExpectError(timeout)
	require.Equal(c.t, code, p.Code, "error message: %s", p.Message)
	return p
}
