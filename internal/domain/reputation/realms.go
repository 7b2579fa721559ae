package reputation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/repdao/internal/domain/model"
	"github.com/okian/repdao/internal/domain/scoring"
	"github.com/okian/repdao/internal/domain/store"
	"github.com/okian/repdao/internal/domain/types"
)

// AlgorithmUpdate replaces the configurable fields of a realm algorithm.
type AlgorithmUpdate struct {
	Weights       scoring.Weights
	FocusCategory types.Category
	DecayEnabled  bool
	DecayPeriod   time.Duration
}

func validateRealmName(name string) error {
	if len(name) == 0 || len(name) > model.MaxRealmNameLen {
		return fmt.Errorf("%w: got %d bytes", ErrRealmNameTooLong, len(name))
	}
	return nil
}

func validateWeights(w scoring.Weights) error {
	if err := scoring.ValidateWeights(w); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWeight, err)
	}
	return nil
}

// CreateRealm registers a realm administered by admin.
func (e *Engine) CreateRealm(ctx context.Context, admin types.Identity, name string, weights scoring.Weights) (out *model.GovernanceRealm, err error) {
	defer e.observe(ctx, opCreateRealm, time.Now(), &err)

	if admin == "" {
		return nil, ErrInvalidIdentity
	}
	if err := validateRealmName(name); err != nil {
		return nil, err
	}
	if err := validateWeights(weights); err != nil {
		return nil, err
	}

	now := e.now()
	err = e.store.Update(ctx, []string{store.RealmKey(name)}, func(tx store.Tx) error {
		r := &model.GovernanceRealm{
			Name:                   name,
			Admin:                  admin,
			Algorithm:              model.ReputationAlgorithm{Weights: weights, FocusCategory: types.Development},
			MinReputationThreshold: model.DefaultMinReputationThreshold,
			CreatedAt:              now,
		}
		if err := tx.CreateRealm(r); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return fmt.Errorf("%w: %q", ErrDuplicateRealm, name)
			}
			return err
		}
		out = r.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, model.Change{Kind: model.ChangeRealmCreated, Realm: out.Clone(), At: now})
	return out, nil
}

// UpdateAlgorithm replaces a realm's algorithm and bumps its version.
// Only the realm admin may call it.
func (e *Engine) UpdateAlgorithm(ctx context.Context, caller types.Identity, name string, upd AlgorithmUpdate) (out *model.GovernanceRealm, err error) {
	defer e.observe(ctx, opUpdateAlgorithm, time.Now(), &err)

	now := e.now()
	err = e.store.Update(ctx, []string{store.RealmKey(name)}, func(tx store.Tx) error {
		r, err := loadRealm(tx, name)
		if err != nil {
			return err
		}
		if caller == "" || r.Admin != caller {
			return fmt.Errorf("%w: %q on realm %q", ErrUnauthorized, caller, name)
		}
		if err := validateWeights(upd.Weights); err != nil {
			return err
		}
		if !upd.FocusCategory.Valid() {
			return fmt.Errorf("%w: %d", ErrInvalidCategory, upd.FocusCategory)
		}
		if upd.DecayEnabled && upd.DecayPeriod <= 0 {
			return fmt.Errorf("%w: %s", ErrInvalidDecayPeriod, upd.DecayPeriod)
		}

		r.Algorithm.Weights = upd.Weights
		r.Algorithm.FocusCategory = upd.FocusCategory
		r.Algorithm.DecayEnabled = upd.DecayEnabled
		r.Algorithm.DecayPeriod = upd.DecayPeriod
		r.Algorithm.Version++
		out = r.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, model.Change{Kind: model.ChangeAlgorithmUpdated, Realm: out.Clone(), At: now})
	return out, nil
}

// Realm returns the committed realm called name.
func (e *Engine) Realm(ctx context.Context, name string) (*model.GovernanceRealm, error) {
	r, err := e.store.Realm(ctx, name)
	if err != nil {
		return nil, realmNotFound(name, err)
	}
	return r, nil
}
