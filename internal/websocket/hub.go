package websocket

import (
	"context"
	"sync"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/realtime"
	"github.com/dom/cardclash/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BattleReader interface {
	GetBattle(ctx context.Context, battleID, viewer uuid.UUID) (*service.BattleView, error)
}

type CardSelector interface {
	SelectCard(ctx context.Context, battleID, playerID, cardID uuid.UUID) (*service.SelectionResult, error)
}

type ResolutionTrigger interface {
	TriggerResolution(ctx context.Context, battleID, playerID uuid.UUID) (*domain.BattleResult, error)
}

// Services is what clients call into when handling commands and queries.
type Services struct {
	Battles    BattleReader
	Selection  CardSelector
	Resolution ResolutionTrigger
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	done       chan struct{} // closed when Run() exits
	stopOnce   sync.Once
	stopped    bool
	broker     *realtime.Broker
	services   Services
	logger     *zap.Logger
	mu         sync.RWMutex
}

func NewHub(broker *realtime.Broker, services Services, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		broker:     broker,
		services:   services,
		logger:     logger,
	}
}

func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			h.stopped = true
			for client := range h.clients {
				client.Close()
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.stopped {
				h.mu.Unlock()
				client.Close()
				continue
			}
			h.clients[client] = true
			h.mu.Unlock()
			client.subscribePlayer()
			h.logger.Debug("client registered", zap.String("player_id", client.userID.String()))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mu.Unlock()
		}
	}
}

// Stop closes every client and blocks until Run has exited.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister is safe to call after the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
