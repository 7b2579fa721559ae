// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/repdao/internal/domain/cooldown"
	"github.com/okian/repdao/internal/domain/scoring"
	"github.com/okian/repdao/internal/domain/types"
)

// BadgeCapacity is the fixed number of badge slots on a profile.
const BadgeCapacity = 10

// Badge is one slot of a profile's badge list. Type zero marks an empty slot.
type Badge struct {
	Type        types.BadgeType `json:"type"`
	ProofDigest [32]byte        `json:"proof_digest"`
	ClaimedAt   time.Time       `json:"claimed_at"`
}

// Empty reports whether the slot is free.
func (b Badge) Empty() bool { return b.Type == types.BadgeNone }

// ReputationProfile is the per-identity reputation record.
type ReputationProfile struct {
	Owner              types.Identity              `json:"owner"`
	TotalScore         uint64                      `json:"total_score"`
	CategoryScores     [types.CategoryCount]uint64 `json:"category_scores"`
	InteractionCount   uint32                      `json:"interaction_count"`
	Cooldowns          *cooldown.Witness           `json:"cooldowns"`
	DelegatedPower     uint64                      `json:"delegated_power"`
	DelegatedTo        types.Identity              `json:"delegated_to,omitempty"`
	DelegationReceived uint64                      `json:"delegation_received"`
	Badges             [BadgeCapacity]Badge        `json:"badges"`
	AIValidationScore  uint32                      `json:"ai_validation_score"`
	CreatedAt          time.Time                   `json:"created_at"`
	LastActivityAt     time.Time                   `json:"last_activity_at"`
	Version            uint64                      `json:"version"`
}

// NewProfile returns a zero-valued profile for owner.
func NewProfile(owner types.Identity, now time.Time, witnessCapacity int) *ReputationProfile {
	return &ReputationProfile{
		Owner:          owner,
		Cooldowns:      cooldown.NewWitness(cooldown.WithCapacity(witnessCapacity)),
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Clone returns a deep copy safe to mutate.
func (p *ReputationProfile) Clone() *ReputationProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.Cooldowns = p.Cooldowns.Clone()
	return &c
}

// Credit adds delta to category c and to the total, saturating.
func (p *ReputationProfile) Credit(c types.Category, delta uint64) {
	p.CategoryScores[c] = scoring.SaturatingAdd(p.CategoryScores[c], delta)
	p.TotalScore = scoring.SaturatingAdd(p.TotalScore, delta)
}

// RecomputeTotal resets TotalScore to the saturating sum of the categories.
func (p *ReputationProfile) RecomputeTotal() {
	p.TotalScore = scoring.SaturatingSum(p.CategoryScores[:]...)
}

// VotingPower is own score not delegated away plus power received.
func (p *ReputationProfile) VotingPower() uint64 {
	own := scoring.SaturatingSub(p.TotalScore, p.DelegatedPower)
	return scoring.SaturatingAdd(own, p.DelegationReceived)
}

// HasBadge reports whether a slot already holds badge type t.
func (p *ReputationProfile) HasBadge(t types.BadgeType) bool {
	for _, b := range p.Badges {
		if b.Type == t {
			return true
		}
	}
	return false
}

// FreeBadgeSlot returns the index of the first empty slot, or -1.
func (p *ReputationProfile) FreeBadgeSlot() int {
	for i, b := range p.Badges {
		if b.Empty() {
			return i
		}
	}
	return -1
}

// BadgeCount returns the number of occupied slots.
func (p *ReputationProfile) BadgeCount() int {
	n := 0
	for _, b := range p.Badges {
		if !b.Empty() {
			n++
		}
	}
	return n
}
