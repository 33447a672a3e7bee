package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// NotifyChannel is the Postgres channel events are relayed on.
const NotifyChannel = "cardclash_events"

type envelope struct {
	Origin  string          `json:"origin"`
	Channel string          `json:"channel"`
	Event   json.RawMessage `json:"event"`
}

// PGBridge relays broker events between server instances with Postgres
// NOTIFY/LISTEN. Events originating from this instance are not re-delivered.
type PGBridge struct {
	pool     *pgxpool.Pool
	broker   *Broker
	instance string
	logger   *zap.Logger

	retryInitial time.Duration
	retryMax     time.Duration
}

type BridgeOption func(*PGBridge)

// WithReconnectBackoff bounds the exponential wait between LISTEN attempts.
func WithReconnectBackoff(initial, max time.Duration) BridgeOption {
	return func(b *PGBridge) {
		b.retryInitial, b.retryMax = initial, max
	}
}

func NewPGBridge(pool *pgxpool.Pool, broker *Broker, logger *zap.Logger, opts ...BridgeOption) *PGBridge {
	b := &PGBridge{
		pool:         pool,
		broker:       broker,
		instance:     uuid.NewString(),
		logger:       logger,
		retryInitial: 500 * time.Millisecond,
		retryMax:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *PGBridge) Forward(ctx context.Context, channel string, e Event) error {
	payload, err := marshalEnvelope(b.instance, channel, e)
	if err != nil {
		return err
	}
	if _, err := b.pool.Exec(ctx, "SELECT pg_notify($1, $2)", NotifyChannel, payload); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

// Run listens until ctx is cancelled, holding one pooled connection. A lost
// connection is logged and re-established with backoff; events published
// while disconnected are not replayed.
func (b *PGBridge) Run(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.retryInitial
	bo.MaxInterval = b.retryMax
	bo.MaxElapsedTime = 0
	bo.Reset()

	for {
		err := b.listen(ctx, bo.Reset)
		if ctx.Err() != nil {
			return
		}
		wait := bo.NextBackOff()
		b.logger.Warn("realtime bridge lost its listen connection",
			zap.Error(err), zap.Duration("retry_in", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// listen runs one LISTEN session. onListening is called once LISTEN succeeds.
func (b *PGBridge) listen(ctx context.Context, onListening func()) error {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	onListening()
	b.logger.Info("realtime bridge listening", zap.String("instance", b.instance))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				// Closed connections are destroyed on release rather than
				// handed back to the pool still subscribed.
				_ = conn.Conn().Close(context.Background())
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		b.handle([]byte(n.Payload))
	}
}

func (b *PGBridge) handle(payload []byte) {
	channel, e, origin, err := unmarshalEnvelope(payload)
	if err != nil {
		b.logger.Warn("dropping malformed relay payload", zap.Error(err))
		return
	}
	if origin == b.instance {
		return
	}
	b.broker.Deliver(channel, e)
}

func marshalEnvelope(origin, channel string, e Event) (string, error) {
	raw, err := Encode(e)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(envelope{Origin: origin, Channel: channel, Event: raw})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalEnvelope(payload []byte) (channel string, e Event, origin string, err error) {
	var env envelope
	if err = json.Unmarshal(payload, &env); err != nil {
		return "", Event{}, "", err
	}
	e, err = Decode(env.Event)
	if err != nil {
		return "", Event{}, "", err
	}
	return env.Channel, e, env.Origin, nil
}
