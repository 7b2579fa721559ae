// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/okian/repdao/internal/adapters/http/swagger"
	"github.com/okian/repdao/internal/domain/model"
	"github.com/okian/repdao/internal/domain/reputation"
	"github.com/okian/repdao/internal/domain/scoring"
	"github.com/okian/repdao/internal/domain/store"
	"github.com/okian/repdao/internal/domain/types"
)

// IdentityHeader carries the caller identity set by the authenticating proxy.
const IdentityHeader = "X-Identity"

// Default limits for list endpoints.
const (
	defaultListLimit = 10
	defaultMaxLimit  = 100
)

// Engine is the reputation surface the handlers drive.
type Engine interface {
	InitializeProfile(ctx context.Context, id types.Identity) (*model.ReputationProfile, error)
	Profile(ctx context.Context, id types.Identity) (*model.ReputationProfile, error)
	CreateRealm(ctx context.Context, admin types.Identity, name string, weights scoring.Weights) (*model.GovernanceRealm, error)
	Realm(ctx context.Context, name string) (*model.GovernanceRealm, error)
	UpdateAlgorithm(ctx context.Context, caller types.Identity, name string, upd reputation.AlgorithmUpdate) (*model.GovernanceRealm, error)
	RecordInteraction(ctx context.Context, from types.Identity, req reputation.InteractionRequest) (*reputation.InteractionResult, error)
	Events(ctx context.Context, q store.EventQuery) ([]model.InteractionEvent, error)
	DelegateReputation(ctx context.Context, delegator, delegatee types.Identity, percentage uint8) (*reputation.DelegationResult, error)
	RevokeDelegation(ctx context.Context, delegator types.Identity) (*reputation.DelegationResult, error)
	ClaimBadge(ctx context.Context, owner types.Identity, badge types.BadgeType, proof [32]byte) (*model.ReputationProfile, error)
	CastVote(ctx context.Context, voter types.Identity, realm string, voteType uint8, justification string) (*reputation.VoteReceipt, error)
	ApplyDecay(ctx context.Context, owner types.Identity, realm string) (*reputation.DecayResult, error)
}

// Leaderboard serves ranked reads.
type Leaderboard interface {
	TopN(ctx context.Context, n int) ([]Entry, error)
	Rank(ctx context.Context, id types.Identity) (Entry, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Engine
	Leaderboard
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	profilesHandler     *ProfilesHandler
	realmsHandler       *RealmsHandler
	interactionsHandler *InteractionsHandler
	delegationsHandler  *DelegationsHandler
	badgesHandler       *BadgesHandler
	leaderboardHandler  *LeaderboardHandler
	rankHandler         *RankHandler
}

// NewServer creates a new API server with all handlers. maxLimit caps list
// endpoints; values below one fall back to the default.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	if maxLimit < 1 {
		maxLimit = defaultMaxLimit
	}
	return &Server{
		healthHandler:       NewHealthHandler(),
		statsHandler:        NewStatsHandler(statsProvider),
		profilesHandler:     NewProfilesHandler(deps),
		realmsHandler:       NewRealmsHandler(deps),
		interactionsHandler: NewInteractionsHandler(deps, maxLimit),
		delegationsHandler:  NewDelegationsHandler(deps),
		badgesHandler:       NewBadgesHandler(deps),
		leaderboardHandler:  NewLeaderboardHandler(deps, maxLimit),
		rankHandler:         NewRankHandler(deps),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/profiles", MetricsMiddleware(s.profilesHandler.HandleCreate, "profiles"))
		r.Get("/profiles/{identity}", MetricsMiddleware(s.profilesHandler.HandleGet, "profiles"))

		r.Post("/realms", MetricsMiddleware(s.realmsHandler.HandleCreate, "realms"))
		r.Get("/realms/{name}", MetricsMiddleware(s.realmsHandler.HandleGet, "realms"))
		r.Put("/realms/{name}/algorithm", MetricsMiddleware(s.realmsHandler.HandleUpdateAlgorithm, "algorithm"))
		r.Post("/realms/{name}/votes", MetricsMiddleware(s.realmsHandler.HandleVote, "votes"))
		r.Post("/realms/{name}/decay/{identity}", MetricsMiddleware(s.realmsHandler.HandleDecay, "decay"))

		r.Post("/interactions", MetricsMiddleware(s.interactionsHandler.HandlePost, "interactions"))
		r.Get("/interactions", MetricsMiddleware(s.interactionsHandler.HandleList, "interactions"))

		r.Post("/delegations", MetricsMiddleware(s.delegationsHandler.HandleDelegate, "delegations"))
		r.Delete("/delegations", MetricsMiddleware(s.delegationsHandler.HandleRevoke, "delegations"))

		r.Post("/badges", MetricsMiddleware(s.badgesHandler.HandleClaim, "badges"))

		r.Get("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
		r.Get("/rank/{identity}", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	})
}

// Handler returns a router with every route, the OpenAPI document and the
// shared middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})
	s.Register(r)
	swagger.Register(r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusFor maps an engine error kind to an HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "already_initialized", "duplicate_realm", "duplicate_badge", "badge_slot_full", "decay_disabled", "conflict":
		return http.StatusConflict
	case "unauthorized", "insufficient_reputation":
		return http.StatusForbidden
	case "cooldown_active":
		return http.StatusTooManyRequests
	case "not_implemented":
		return http.StatusNotImplemented
	case reputation.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// writeEngineError reports an engine failure under its stable kind.
func writeEngineError(w http.ResponseWriter, op string, err error) {
	kind := reputation.Kind(err)
	if kind == reputation.KindInternal {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeError(w, statusFor(kind), kind, Wrap(op, err))
}

func writeBadRequest(w http.ResponseWriter, op string, err error) {
	writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
}

// caller returns the identity of a mutating request or writes 401.
func caller(w http.ResponseWriter, r *http.Request, op string) (types.Identity, bool) {
	id := strings.TrimSpace(r.Header.Get(IdentityHeader))
	if id == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", NewKind(op, ErrUnauthenticated))
		return "", false
	}
	return types.Identity(id), true
}

// decode reads a JSON body, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}

// limitParam parses ?limit= with a default and an upper bound.
func limitParam(r *http.Request, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return min(defaultListLimit, maxLimit), nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > maxLimit {
		return 0, fmt.Errorf("limit exceeds %d", maxLimit)
	}
	return n, nil
}
