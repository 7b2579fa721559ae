// Package reputation implements the profile, realm, interaction, delegation
// and badge operations on top of a store.Store.
//
// Every operation is one store transaction over the keys it touches, so a
// failed operation leaves every record unchanged. Committed transitions are
// announced to an optional Publisher after the commit.
package reputation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/okian/repdao/internal/domain/cooldown"
	"github.com/okian/repdao/internal/domain/model"
	"github.com/okian/repdao/internal/domain/scoring"
	"github.com/okian/repdao/internal/domain/store"
	"github.com/okian/repdao/internal/domain/types"
	"github.com/okian/repdao/pkg/logger"
	"github.com/okian/repdao/pkg/metrics"
)

// Engine defaults.
const (
	DefaultBadgeBonus uint64 = 25
	DefaultDecayRate  uint64 = 2
)

// Operation names used for metrics and logs.
const (
	opInitializeProfile = "initialize_profile"
	opCreateRealm       = "create_realm"
	opUpdateAlgorithm   = "update_algorithm"
	opRecordInteraction = "record_interaction"
	opDelegate          = "delegate_reputation"
	opRevokeDelegation  = "revoke_delegation"
	opClaimBadge        = "claim_badge"
	opCastVote          = "cast_vote"
	opApplyDecay        = "apply_decay"
	opBridge            = "bridge_reputation"

	outcomeOK = "ok"
)

// Publisher receives committed changes. Publish must not block; it reports
// whether the change was accepted.
type Publisher interface {
	Publish(ctx context.Context, c model.Change) bool
}

// ProofVerifier checks a badge proof digest for owner.
type ProofVerifier interface {
	VerifyProof(ctx context.Context, owner types.Identity, badge types.BadgeType, digest [32]byte) error
}

// Engine applies reputation operations against a store.
type Engine struct {
	store     store.Store
	now       func() time.Time
	publisher Publisher
	verifier  ProofVerifier
	log       logger.Logger
	newID     func() (uuid.UUID, error)

	tiers           scoring.Tiers
	witnessCapacity int
	badgeBonus      uint64
	decayRate       uint64
}

// New creates an engine over s with configuration options.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:           s,
		now:             time.Now,
		log:             logger.Nop(),
		newID:           uuid.NewRandom,
		tiers:           scoring.DefaultTiers(),
		witnessCapacity: cooldown.DefaultCapacity,
		badgeBonus:      DefaultBadgeBonus,
		decayRate:       DefaultDecayRate,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Events returns interaction events, newest first.
func (e *Engine) Events(ctx context.Context, q store.EventQuery) ([]model.InteractionEvent, error) {
	return e.store.Events(ctx, q)
}

// observe records the outcome of one operation. errp is read at return time.
func (e *Engine) observe(ctx context.Context, op string, start time.Time, errp *error) {
	metrics.RecordOperationLatency(op, float64(time.Since(start).Milliseconds()))
	if errp == nil || *errp == nil {
		metrics.RecordOperation(op, outcomeOK)
		return
	}
	kind := Kind(*errp)
	metrics.RecordOperation(op, kind)
	if kind == KindInternal {
		metrics.RecordErrorByComponent("engine", op)
		e.log.Error(ctx, "operation failed", logger.String("op", op), logger.Error(*errp))
		return
	}
	e.log.Debug(ctx, "operation rejected", logger.String("op", op), logger.String("kind", kind), logger.Error(*errp))
}

func (e *Engine) publish(ctx context.Context, c model.Change) {
	if e.publisher == nil {
		return
	}
	if !e.publisher.Publish(ctx, c) {
		metrics.RecordChangeDropped(string(c.Kind))
		e.log.Warn(ctx, "change dropped", logger.String("kind", string(c.Kind)), logger.String("key", c.Key()))
	}
}

func snapshots(ps ...*model.ReputationProfile) []*model.ReputationProfile {
	out := make([]*model.ReputationProfile, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			out = append(out, p.Clone())
		}
	}
	return out
}

func loadProfile(tx store.Tx, id types.Identity) (*model.ReputationProfile, error) {
	p, err := tx.Profile(id)
	if err != nil {
		return nil, profileNotFound(id, err)
	}
	return p, nil
}

func loadRealm(tx store.Tx, name string) (*model.GovernanceRealm, error) {
	r, err := tx.Realm(name)
	if err != nil {
		return nil, realmNotFound(name, err)
	}
	return r, nil
}
