package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/okian/repdao/internal/domain/model"
	"github.com/okian/repdao/internal/domain/reputation"
	"github.com/okian/repdao/internal/domain/scoring"
	"github.com/okian/repdao/internal/domain/types"
)

// RealmsDependencies defines the realm and governance operations the handler needs.
type RealmsDependencies interface {
	CreateRealm(ctx context.Context, admin types.Identity, name string, weights scoring.Weights) (*model.GovernanceRealm, error)
	Realm(ctx context.Context, name string) (*model.GovernanceRealm, error)
	UpdateAlgorithm(ctx context.Context, caller types.Identity, name string, upd reputation.AlgorithmUpdate) (*model.GovernanceRealm, error)
	CastVote(ctx context.Context, voter types.Identity, realm string, voteType uint8, justification string) (*reputation.VoteReceipt, error)
	ApplyDecay(ctx context.Context, owner types.Identity, realm string) (*reputation.DecayResult, error)
}

// RealmsHandler handles realm requests.
type RealmsHandler struct {
	deps RealmsDependencies
}

// NewRealmsHandler creates a new realms handler.
func NewRealmsHandler(deps RealmsDependencies) *RealmsHandler {
	return &RealmsHandler{deps: deps}
}

type createRealmRequest struct {
	Name    string          `json:"name"`
	Weights scoring.Weights `json:"weights"`
}

type algorithmRequest struct {
	Weights       scoring.Weights `json:"weights"`
	FocusCategory types.Category  `json:"focus_category"`
	DecayEnabled  bool            `json:"decay_enabled"`
	DecayPeriod   string          `json:"decay_period"`
}

func (a algorithmRequest) update() (reputation.AlgorithmUpdate, error) {
	upd := reputation.AlgorithmUpdate{
		Weights:       a.Weights,
		FocusCategory: a.FocusCategory,
		DecayEnabled:  a.DecayEnabled,
	}
	if a.DecayPeriod != "" {
		d, err := time.ParseDuration(a.DecayPeriod)
		if err != nil {
			return upd, fmt.Errorf("invalid decay_period: %w", err)
		}
		upd.DecayPeriod = d
	}
	return upd, nil
}

type voteRequest struct {
	VoteType      uint8  `json:"vote_type"`
	Justification string `json:"justification"`
}

// HandleCreate handles POST /v1/realms. The caller becomes the admin.
func (h *RealmsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_realm"
	admin, ok := caller(w, r, op)
	if !ok {
		return
	}
	var req createRealmRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, op, err)
		return
	}
	realm, err := h.deps.CreateRealm(r.Context(), admin, req.Name, req.Weights)
	if err != nil {
		writeEngineError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, realm)
}

// HandleGet handles GET /v1/realms/{name}.
func (h *RealmsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_realm"
	realm, err := h.deps.Realm(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeEngineError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, realm)
}

// HandleUpdateAlgorithm handles PUT /v1/realms/{name}/algorithm.
func (h *RealmsHandler) HandleUpdateAlgorithm(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_algorithm"
	id, ok := caller(w, r, op)
	if !ok {
		return
	}
	var req algorithmRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, op, err)
		return
	}
	upd, err := req.update()
	if err != nil {
		writeBadRequest(w, op, err)
		return
	}
	realm, err := h.deps.UpdateAlgorithm(r.Context(), id, chi.URLParam(r, "name"), upd)
	if err != nil {
		writeEngineError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, realm)
}

// HandleVote handles POST /v1/realms/{name}/votes.
func (h *RealmsHandler) HandleVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.cast_vote"
	voter, ok := caller(w, r, op)
	if !ok {
		return
	}
	var req voteRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, op, err)
		return
	}
	rcpt, err := h.deps.CastVote(r.Context(), voter, chi.URLParam(r, "name"), req.VoteType, req.Justification)
	if err != nil {
		writeEngineError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, rcpt)
}

// HandleDecay handles POST /v1/realms/{name}/decay/{identity}.
func (h *RealmsHandler) HandleDecay(w http.ResponseWriter, r *http.Request) {
	const op = "api.apply_decay"
	if _, ok := caller(w, r, op); !ok {
		return
	}
	res, err := h.deps.ApplyDecay(r.Context(), types.Identity(chi.URLParam(r, "identity")), chi.URLParam(r, "name"))
	if err != nil {
		writeEngineError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
