package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dom/cardclash/internal/api/middleware"
	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BattleHandler struct {
	battles      *service.BattleService
	selection    *service.SelectionService
	orchestrator *service.Orchestrator
	logger       *zap.Logger
}

func NewBattleHandler(battles *service.BattleService, selection *service.SelectionService, orchestrator *service.Orchestrator, logger *zap.Logger) *BattleHandler {
	return &BattleHandler{
		battles:      battles,
		selection:    selection,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

type CreateBattleRequest struct {
	OpponentID uuid.UUID `json:"opponentId"`
}

type SelectCardRequest struct {
	CardID uuid.UUID `json:"cardId"`
}

type SelectCardResponse struct {
	Selection     *domain.CardSelection  `json:"selection"`
	Battle        *domain.BattleInstance `json:"battle"`
	CompletedPair bool                   `json:"completedPair"`
}

func (h *BattleHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, h.logger, domain.ErrUnauthorized)
		return
	}

	var req CreateBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OpponentID == uuid.Nil {
		writeError(w, h.logger, domain.ErrInvalidRequest.WithMessage("invalid request body"))
		return
	}

	battle, err := h.battles.CreateChallenge(r.Context(), userID, req.OpponentID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, battle)
}

func (h *BattleHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, h.logger, domain.ErrUnauthorized)
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	battles, err := h.battles.ListBattles(r.Context(), userID, domain.BattleStatus(q.Get("status")), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, battles)
}

func (h *BattleHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, battleID, ok := h.battleRequest(w, r)
	if !ok {
		return
	}

	view, err := h.battles.GetBattle(r.Context(), battleID, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *BattleHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.battles.Accept)
}

func (h *BattleHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.battles.Decline)
}

func (h *BattleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.battles.Cancel)
}

func (h *BattleHandler) respond(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, battleID, playerID uuid.UUID) (*domain.BattleInstance, error)) {
	userID, battleID, ok := h.battleRequest(w, r)
	if !ok {
		return
	}

	battle, err := fn(r.Context(), battleID, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, battle)
}

func (h *BattleHandler) SelectCard(w http.ResponseWriter, r *http.Request) {
	userID, battleID, ok := h.battleRequest(w, r)
	if !ok {
		return
	}

	var req SelectCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CardID == uuid.Nil {
		writeError(w, h.logger, domain.ErrInvalidRequest.WithMessage("invalid request body"))
		return
	}

	res, err := h.selection.SelectCard(r.Context(), battleID, userID, req.CardID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, SelectCardResponse{
		Selection:     res.Selection,
		Battle:        res.Battle,
		CompletedPair: res.CompletedPair,
	})
}

// Resolve lets either player skip the remaining reveal countdown.
func (h *BattleHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	userID, battleID, ok := h.battleRequest(w, r)
	if !ok {
		return
	}

	result, err := h.orchestrator.TriggerResolution(r.Context(), battleID, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *BattleHandler) battleRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, h.logger, domain.ErrUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}
	battleID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, h.logger, domain.ErrInvalidRequest.WithMessage("invalid battle ID"))
		return uuid.Nil, uuid.Nil, false
	}
	return userID, battleID, true
}
