package api

import (
	"context"
	"net/http"

	"github.com/okian/repdao/internal/domain/reputation"
	"github.com/okian/repdao/internal/domain/types"
)

// DelegationsDependencies defines the delegation operations the handler needs.
type DelegationsDependencies interface {
	DelegateReputation(ctx context.Context, delegator, delegatee types.Identity, percentage uint8) (*reputation.DelegationResult, error)
	RevokeDelegation(ctx context.Context, delegator types.Identity) (*reputation.DelegationResult, error)
}

// DelegationsHandler handles delegation requests.
type DelegationsHandler struct {
	deps DelegationsDependencies
}

// NewDelegationsHandler creates a new delegations handler.
func NewDelegationsHandler(deps DelegationsDependencies) *DelegationsHandler {
	return &DelegationsHandler{deps: deps}
}

type delegationRequest struct {
	Delegatee  string `json:"delegatee"`
	Percentage uint8  `json:"percentage"`
}

// HandleDelegate handles POST /v1/delegations.
func (h *DelegationsHandler) HandleDelegate(w http.ResponseWriter, r *http.Request) {
	const op = "api.delegate"
	delegator, ok := caller(w, r, op)
	if !ok {
		return
	}
	var req delegationRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, op, err)
		return
	}
	res, err := h.deps.DelegateReputation(r.Context(), delegator, types.Identity(req.Delegatee), req.Percentage)
	if err != nil {
		writeEngineError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleRevoke handles DELETE /v1/delegations.
func (h *DelegationsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	const op = "api.revoke_delegation"
	delegator, ok := caller(w, r, op)
	if !ok {
		return
	}
	res, err := h.deps.RevokeDelegation(r.Context(), delegator)
	if err != nil {
		writeEngineError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
