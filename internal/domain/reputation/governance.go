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

// Vote constants.
const (
	MaxJustificationLen = 280

	// voteThresholdCap caps the realm threshold a voter must reach.
	voteThresholdCap uint64 = 100
)

// Vote types.
const (
	VoteStandard uint8 = iota
	VoteEndorse
	VoteChallenge
)

// VoteReceipt describes an accepted vote.
type VoteReceipt struct {
	Realm               string                   `json:"realm"`
	Voter               types.Identity           `json:"voter"`
	VoteType            uint8                    `json:"vote_type"`
	Reward              uint64                   `json:"reward"`
	VotingPower         uint64                   `json:"voting_power"`
	JustificationDigest [32]byte                 `json:"justification_digest"`
	CastAt              time.Time                `json:"cast_at"`
	Profile             *model.ReputationProfile `json:"profile"`
}

// DecayResult describes one ApplyDecay call.
type DecayResult struct {
	Profile *model.ReputationProfile `json:"profile"`
	Periods uint64                   `json:"periods"`
	Removed uint64                   `json:"removed"`
}

func voteReward(voteType uint8) (uint64, bool) {
	switch voteType {
	case VoteStandard:
		return 5, true
	case VoteEndorse, VoteChallenge:
		return 15, true
	default:
		return 0, false
	}
}

// CastVote records a vote by voter in realm and rewards participation in
// the Quality category.
func (e *Engine) CastVote(ctx context.Context, voter types.Identity, realm string, voteType uint8, justification string) (rcpt *VoteReceipt, err error) {
	defer e.observe(ctx, opCastVote, time.Now(), &err)

	if voter == "" {
		return nil, ErrInvalidIdentity
	}
	if len(justification) > MaxJustificationLen {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrNoteTooLong, len(justification), MaxJustificationLen)
	}
	reward, ok := voteReward(voteType)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVoteType, voteType)
	}

	now := e.now()
	err = e.store.Update(ctx, []string{store.ProfileKey(voter), store.RealmKey(realm)}, func(tx store.Tx) error {
		r, err := loadRealm(tx, realm)
		if err != nil {
			return err
		}
		p, err := loadProfile(tx, voter)
		if err != nil {
			return err
		}

		required := min(r.MinReputationThreshold, voteThresholdCap)
		if p.TotalScore < required {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientReputation, p.TotalScore, required)
		}

		p.Credit(types.Quality, reward)
		p.LastActivityAt = now
		p.Version++

		rcpt = &VoteReceipt{
			Realm:               realm,
			Voter:               voter,
			VoteType:            voteType,
			Reward:              reward,
			VotingPower:         p.VotingPower(),
			JustificationDigest: model.NoteDigest(justification),
			CastAt:              now,
			Profile:             p.Clone(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, model.Change{Kind: model.ChangeVoteCast, Profiles: snapshots(rcpt.Profile), At: now})
	return rcpt, nil
}

// ApplyDecay reduces owner's category scores for every full decay period of
// realm that passed since the owner's last activity. Delegated power is
// clamped to the decayed total and the delegatee loses the difference.
func (e *Engine) ApplyDecay(ctx context.Context, owner types.Identity, realm string) (res *DecayResult, err error) {
	defer e.observe(ctx, opApplyDecay, time.Now(), &err)

	if owner == "" {
		return nil, ErrInvalidIdentity
	}

	now := e.now()
	var touched []*model.ReputationProfile
	err = e.withDelegator(ctx, owner, []string{store.RealmKey(realm)}, func(tx store.Tx, p *model.ReputationProfile) error {
		r, err := loadRealm(tx, realm)
		if err != nil {
			return err
		}
		algo := r.Algorithm
		if !algo.DecayEnabled || algo.DecayPeriod <= 0 {
			return fmt.Errorf("%w: %q", ErrDecayDisabled, realm)
		}

		res = &DecayResult{}
		touched = nil
		idle := now.Sub(p.LastActivityAt)
		if idle < algo.DecayPeriod {
			res.Profile = p.Clone()
			return nil
		}
		periods := uint64(idle / algo.DecayPeriod)

		before := p.TotalScore
		for i, score := range p.CategoryScores {
			p.CategoryScores[i] = score - scoring.DecayAmount(score, e.decayRate, periods)
		}
		p.RecomputeTotal()

		if p.DelegatedPower > p.TotalScore {
			excess := p.DelegatedPower - p.TotalScore
			p.DelegatedPower = p.TotalScore
			if p.DelegatedTo != "" {
				d, err := loadProfile(tx, p.DelegatedTo)
				if err != nil {
					return err
				}
				d.DelegationReceived = scoring.SaturatingSub(d.DelegationReceived, excess)
				d.Version++
				touched = append(touched, d)
			}
		}
		p.LastActivityAt = p.LastActivityAt.Add(time.Duration(periods) * algo.DecayPeriod)
		p.Version++

		res.Periods = periods
		res.Removed = scoring.SaturatingSub(before, p.TotalScore)
		res.Profile = p.Clone()
		touched = append([]*model.ReputationProfile{p}, touched...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Periods > 0 {
		e.publish(ctx, model.Change{Kind: model.ChangeDecayApplied, Profiles: snapshots(touched...), At: now})
	}
	return res, nil
}

// BridgeReputation is reserved for cross-realm transfer and has no effect.
func (e *Engine) BridgeReputation(ctx context.Context, owner types.Identity, targetRealm string, amount uint64) (err error) {
	defer e.observe(ctx, opBridge, time.Now(), &err)
	return fmt.Errorf("%w: bridge %q -> %q", ErrNotImplemented, owner, targetRealm)
}
