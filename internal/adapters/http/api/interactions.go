package api

import (
	"context"
	"net/http"

	"github.com/okian/repdao/internal/domain/model"
	"github.com/okian/repdao/internal/domain/reputation"
	"github.com/okian/repdao/internal/domain/store"
	"github.com/okian/repdao/internal/domain/types"
)

// InteractionsDependencies defines the interaction operations the handler needs.
type InteractionsDependencies interface {
	RecordInteraction(ctx context.Context, from types.Identity, req reputation.InteractionRequest) (*reputation.InteractionResult, error)
	Events(ctx context.Context, q store.EventQuery) ([]model.InteractionEvent, error)
}

// InteractionsHandler handles interaction requests.
type InteractionsHandler struct {
	deps     InteractionsDependencies
	maxLimit int
}

// NewInteractionsHandler creates a new interactions handler.
func NewInteractionsHandler(deps InteractionsDependencies, maxLimit int) *InteractionsHandler {
	return &InteractionsHandler{deps: deps, maxLimit: maxLimit}
}

type interactionRequest struct {
	To         string `json:"to"`
	Type       uint8  `json:"type"`
	BasePoints uint32 `json:"base_points"`
	Note       string `json:"note"`
	Realm      string `json:"realm"`
}

type interactionResponse struct {
	Event model.InteractionEvent `json:"event"`
	From  profileResponse        `json:"from"`
	To    profileResponse        `json:"to"`
}

// HandlePost handles POST /v1/interactions from the calling identity.
func (h *InteractionsHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_interaction"
	from, ok := caller(w, r, op)
	if !ok {
		return
	}
	var req interactionRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, op, err)
		return
	}
	res, err := h.deps.RecordInteraction(r.Context(), from, reputation.InteractionRequest{
		To:         types.Identity(req.To),
		Type:       types.InteractionType(req.Type),
		BasePoints: req.BasePoints,
		Note:       req.Note,
		Realm:      req.Realm,
	})
	if err != nil {
		writeEngineError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, interactionResponse{
		Event: res.Event,
		From:  newProfileResponse(res.From),
		To:    newProfileResponse(res.To),
	})
}

// HandleList handles GET /v1/interactions?owner=&limit=, newest first.
func (h *InteractionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_interactions"
	limit, err := limitParam(r, h.maxLimit)
	if err != nil {
		writeBadRequest(w, op, err)
		return
	}
	events, err := h.deps.Events(r.Context(), store.EventQuery{
		Owner: types.Identity(r.URL.Query().Get("owner")),
		Limit: limit,
	})
	if err != nil {
		writeEngineError(w, op, err)
		return
	}
	if events == nil {
		events = []model.InteractionEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
