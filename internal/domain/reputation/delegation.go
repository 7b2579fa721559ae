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

const (
	percentScale        = 100
	maxDelegationReruns = 4
)

// errStaleDelegation aborts a transaction whose delegatee moved between the
// key-set read and the lock.
var errStaleDelegation = errors.New("delegatee changed before lock")

// DelegationResult reports the profiles touched by a delegation change.
type DelegationResult struct {
	Delegator *model.ReputationProfile `json:"delegator"`
	Delegatee *model.ReputationProfile `json:"delegatee,omitempty"`
	// Previous is the prior delegatee when it differs from Delegatee.
	Previous  *model.ReputationProfile `json:"previous,omitempty"`
	Amount    uint64                   `json:"amount"`
}

// withDelegator runs fn in a transaction that holds the delegator, its
// current delegatee (if any) and extra. The current delegatee is read before
// locking, so fn only runs when it is still the same once the locks are held.
func (e *Engine) withDelegator(ctx context.Context, delegator types.Identity, extra []string, fn func(tx store.Tx, d *model.ReputationProfile) error) error {
	for attempt := 1; ; attempt++ {
		committed, err := e.store.Profile(ctx, delegator)
		if err != nil {
			return profileNotFound(delegator, err)
		}
		prior := committed.DelegatedTo

		keys := append([]string{store.ProfileKey(delegator)}, extra...)
		if prior != "" {
			keys = append(keys, store.ProfileKey(prior))
		}

		err = e.store.Update(ctx, keys, func(tx store.Tx) error {
			d, err := loadProfile(tx, delegator)
			if err != nil {
				return err
			}
			if d.DelegatedTo != prior {
				return errStaleDelegation
			}
			return fn(tx, d)
		})
		if !errors.Is(err, errStaleDelegation) {
			return err
		}
		if attempt >= maxDelegationReruns {
			return fmt.Errorf("%w: delegation of %q kept moving", ErrConflict, delegator)
		}
	}
}

// releaseDelegation removes d's current delegation from its delegatee and
// returns that delegatee, or nil when d had none.
func releaseDelegation(tx store.Tx, d *model.ReputationProfile) (*model.ReputationProfile, error) {
	if d.DelegatedTo == "" {
		return nil, nil
	}
	prev, err := loadProfile(tx, d.DelegatedTo)
	if err != nil {
		return nil, err
	}
	prev.DelegationReceived = scoring.SaturatingSub(prev.DelegationReceived, d.DelegatedPower)
	d.DelegatedPower = 0
	d.DelegatedTo = ""
	return prev, nil
}

// DelegateReputation hands percentage of delegator's total score to
// delegatee as voting power, replacing any previous delegation.
func (e *Engine) DelegateReputation(ctx context.Context, delegator, delegatee types.Identity, percentage uint8) (res *DelegationResult, err error) {
	defer e.observe(ctx, opDelegate, time.Now(), &err)

	if percentage < 1 || percentage > percentScale {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPercentage, percentage)
	}
	if delegator == delegatee {
		return nil, fmt.Errorf("%w: %q", ErrSelfDelegationForbidden, delegator)
	}
	if delegator == "" || delegatee == "" {
		return nil, ErrInvalidIdentity
	}

	now := e.now()
	err = e.withDelegator(ctx, delegator, []string{store.ProfileKey(delegatee)}, func(tx store.Tx, d *model.ReputationProfile) error {
		target, err := loadProfile(tx, delegatee)
		if err != nil {
			return err
		}
		prev, err := releaseDelegation(tx, d)
		if err != nil {
			return err
		}

		amount := scoring.MulDiv(d.TotalScore, uint64(percentage), percentScale)
		d.DelegatedPower = amount
		d.DelegatedTo = delegatee
		d.Version++
		target.DelegationReceived = scoring.SaturatingAdd(target.DelegationReceived, amount)
		target.Version++

		res = &DelegationResult{Delegator: d.Clone(), Delegatee: target.Clone(), Amount: amount}
		if prev != nil && prev.Owner != delegatee {
			prev.Version++
			res.Previous = prev.Clone()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, model.Change{
		Kind:     model.ChangeDelegation,
		Profiles: snapshots(res.Delegator, res.Delegatee, res.Previous),
		At:       now,
	})
	return res, nil
}

// RevokeDelegation cancels delegator's active delegation. It is a no-op when
// there is none.
func (e *Engine) RevokeDelegation(ctx context.Context, delegator types.Identity) (res *DelegationResult, err error) {
	defer e.observe(ctx, opRevokeDelegation, time.Now(), &err)

	if delegator == "" {
		return nil, ErrInvalidIdentity
	}

	now := e.now()
	changed := false
	err = e.withDelegator(ctx, delegator, nil, func(tx store.Tx, d *model.ReputationProfile) error {
		prev, err := releaseDelegation(tx, d)
		if err != nil {
			return err
		}
		res = &DelegationResult{Delegator: d.Clone()}
		if prev == nil {
			return nil
		}
		changed = true
		d.Version++
		prev.Version++
		res.Delegator = d.Clone()
		res.Previous = prev.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		e.publish(ctx, model.Change{
			Kind:     model.ChangeDelegation,
			Profiles: snapshots(res.Delegator, res.Previous),
			At:       now,
		})
	}
	return res, nil
}
