package api

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/repdao/internal/domain/model"
	"github.com/okian/repdao/internal/domain/types"
)

// BadgesDependencies defines the badge operations the handler needs.
type BadgesDependencies interface {
	ClaimBadge(ctx context.Context, owner types.Identity, badge types.BadgeType, proof [32]byte) (*model.ReputationProfile, error)
}

// BadgesHandler handles badge requests.
type BadgesHandler struct {
	deps BadgesDependencies
}

// NewBadgesHandler creates a new badges handler.
func NewBadgesHandler(deps BadgesDependencies) *BadgesHandler {
	return &BadgesHandler{deps: deps}
}

type badgeRequest struct {
	BadgeType uint8  `json:"badge_type"`
	Proof     string `json:"proof"`
}

// proof decodes 64 hex characters, with or without a 0x prefix.
func (b badgeRequest) proof() ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(b.Proof, "0x"))
	if err != nil || len(raw) != len(out) {
		return out, errors.New("proof must be 64 hex characters")
	}
	copy(out[:], raw)
	return out, nil
}

// HandleClaim handles POST /v1/badges for the calling identity.
func (h *BadgesHandler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	const op = "api.claim_badge"
	owner, ok := caller(w, r, op)
	if !ok {
		return
	}
	var req badgeRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, op, err)
		return
	}
	proof, err := req.proof()
	if err != nil {
		writeBadRequest(w, op, err)
		return
	}
	p, err := h.deps.ClaimBadge(r.Context(), owner, types.BadgeType(req.BadgeType), proof)
	if err != nil {
		writeEngineError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, newProfileResponse(p))
}
