package handlers

import (
	"net/http"

	"github.com/dom/cardclash/internal/api/middleware"
	"github.com/dom/cardclash/internal/websocket"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

type WebSocketHandler struct {
	hub      *websocket.Hub
	verifier middleware.TokenVerifier
	logger   *zap.Logger
}

func NewWebSocketHandler(hub *websocket.Hub, verifier middleware.TokenVerifier, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		verifier: verifier,
		logger:   logger,
	}
}

// Handle authenticates with the token query parameter, since browsers cannot
// set headers on a websocket handshake.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Token required", http.StatusUnauthorized)
		return
	}

	userID, err := h.verifier.PlayerID(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := websocket.NewClient(h.hub, conn, userID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
