package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/okian/repdao/internal/domain/model"
	"github.com/okian/repdao/internal/domain/types"
)

// ProfilesDependencies defines the profile operations the handler needs.
type ProfilesDependencies interface {
	InitializeProfile(ctx context.Context, id types.Identity) (*model.ReputationProfile, error)
	Profile(ctx context.Context, id types.Identity) (*model.ReputationProfile, error)
}

// ProfilesHandler handles profile requests.
type ProfilesHandler struct {
	deps ProfilesDependencies
}

// NewProfilesHandler creates a new profiles handler.
func NewProfilesHandler(deps ProfilesDependencies) *ProfilesHandler {
	return &ProfilesHandler{deps: deps}
}

// profileResponse adds derived fields to the stored profile.
type profileResponse struct {
	*model.ReputationProfile
	VotingPower uint64 `json:"voting_power"`
}

func newProfileResponse(p *model.ReputationProfile) profileResponse {
	return profileResponse{ReputationProfile: p, VotingPower: p.VotingPower()}
}

// HandleCreate handles POST /v1/profiles for the calling identity.
func (h *ProfilesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_profile"
	id, ok := caller(w, r, op)
	if !ok {
		return
	}
	p, err := h.deps.InitializeProfile(r.Context(), id)
	if err != nil {
		writeEngineError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, newProfileResponse(p))
}

// HandleGet handles GET /v1/profiles/{identity}.
func (h *ProfilesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile"
	p, err := h.deps.Profile(r.Context(), types.Identity(chi.URLParam(r, "identity")))
	if err != nil {
		writeEngineError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(p))
}
