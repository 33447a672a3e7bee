package handlers

import (
	"net/http"

	"github.com/dom/cardclash/internal/api/middleware"
	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/service"
	"go.uber.org/zap"
)

type CardHandler struct {
	collection *service.CollectionService
	logger     *zap.Logger
}

func NewCardHandler(collection *service.CollectionService, logger *zap.Logger) *CardHandler {
	return &CardHandler{collection: collection, logger: logger}
}

// List returns the caller's collection.
func (h *CardHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, h.logger, domain.ErrUnauthorized)
		return
	}

	cards, err := h.collection.ListCards(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *CardHandler) Get(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, h.logger, domain.ErrInvalidRequest.WithMessage("invalid card ID"))
		return
	}

	card, err := h.collection.GetCard(r.Context(), cardID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *CardHandler) OpenPack(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, h.logger, domain.ErrUnauthorized)
		return
	}

	cards, err := h.collection.OpenPack(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, cards)
}
