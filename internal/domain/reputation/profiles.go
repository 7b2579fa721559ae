package reputation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/repdao/internal/domain/model"
	"github.com/okian/repdao/internal/domain/store"
	"github.com/okian/repdao/internal/domain/types"
)

// InitializeProfile creates the zero-valued profile of id.
func (e *Engine) InitializeProfile(ctx context.Context, id types.Identity) (out *model.ReputationProfile, err error) {
	defer e.observe(ctx, opInitializeProfile, time.Now(), &err)

	if id == "" {
		return nil, ErrInvalidIdentity
	}

	now := e.now()
	err = e.store.Update(ctx, []string{store.ProfileKey(id)}, func(tx store.Tx) error {
		p := model.NewProfile(id, now, e.witnessCapacity)
		if err := tx.CreateProfile(p); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return fmt.Errorf("%w: %q", ErrAlreadyInitialized, id)
			}
			return err
		}
		out = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, model.Change{
		Kind:     model.ChangeProfileInitialized,
		Profiles: snapshots(out),
		At:       now,
	})
	return out, nil
}

// Profile returns the committed profile of id.
func (e *Engine) Profile(ctx context.Context, id types.Identity) (*model.ReputationProfile, error) {
	if id == "" {
		return nil, ErrInvalidIdentity
	}
	p, err := e.store.Profile(ctx, id)
	if err != nil {
		return nil, profileNotFound(id, err)
	}
	return p, nil
}
