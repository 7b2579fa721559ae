package reputation

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/repdao/internal/domain/model"
	"github.com/okian/repdao/internal/domain/scoring"
	"github.com/okian/repdao/internal/domain/store"
	"github.com/okian/repdao/internal/domain/types"
)

// ClaimBadge places badge into owner's first free slot and credits the
// badge bonus. The proof digest must be non-zero and, when a verifier is
// configured, accepted by it.
func (e *Engine) ClaimBadge(ctx context.Context, owner types.Identity, badge types.BadgeType, proof [32]byte) (out *model.ReputationProfile, err error) {
	defer e.observe(ctx, opClaimBadge, time.Now(), &err)

	if owner == "" {
		return nil, ErrInvalidIdentity
	}
	cat, ok := scoring.BadgeCategory(badge)
	if !badge.Valid() || !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBadgeType, badge)
	}
	if proof == ([32]byte{}) {
		return nil, fmt.Errorf("%w: empty digest", ErrInvalidProof)
	}
	if e.verifier != nil {
		if err := e.verifier.VerifyProof(ctx, owner, badge, proof); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidProof, err)
		}
	}

	now := e.now()
	err = e.store.Update(ctx, []string{store.ProfileKey(owner)}, func(tx store.Tx) error {
		p, err := loadProfile(tx, owner)
		if err != nil {
			return err
		}
		if p.HasBadge(badge) {
			return fmt.Errorf("%w: %d", ErrDuplicateBadge, badge)
		}
		slot := p.FreeBadgeSlot()
		if slot < 0 {
			return fmt.Errorf("%w: %d slots in use", ErrBadgeSlotFull, model.BadgeCapacity)
		}

		p.Badges[slot] = model.Badge{Type: badge, ProofDigest: proof, ClaimedAt: now}
		if e.badgeBonus > 0 {
			p.Credit(cat, e.badgeBonus)
		}
		p.Version++
		out = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, model.Change{Kind: model.ChangeBadgeClaimed, Profiles: snapshots(out), At: now})
	return out, nil
}
