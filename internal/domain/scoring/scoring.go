// Package scoring converts interaction points into weighted category deltas.
//
// Everything here is a pure function of its inputs. Arithmetic never wraps:
// products are computed in 256 bits and clamped back into uint64.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/holiman/uint256"
	"github.com/okian/repdao/internal/domain/types"
)

// Scoring constants.
const (
	WeightScale   uint64 = 100
	NeutralWeight uint16 = 100
	MaxWeight     uint16 = 10_000
	MinBasePoints uint32 = 1
	MaxBasePoints uint32 = 1000

	percentScale uint64 = 100
)

// Default cooldown tiers.
const (
	defaultCooldownLow  = 5 * time.Minute
	defaultCooldownMid  = 30 * time.Minute
	defaultCooldownHigh = 2 * time.Hour
)

// Weights holds one multiplier per category, scaled by WeightScale.
type Weights [types.CategoryCount]uint16

// DefaultWeights returns the neutral weight vector used when no realm is named.
func DefaultWeights() Weights {
	var w Weights
	for i := range w {
		w[i] = NeutralWeight
	}
	return w
}

// ValidateWeights rejects vectors that are out of range or entirely zero.
func ValidateWeights(w Weights) error {
	var nonZero bool
	for i, v := range w {
		if v > MaxWeight {
			return fmt.Errorf("%w: %s=%d exceeds %d", ErrWeightOutOfRange, types.Category(i), v, MaxWeight)
		}
		if v > 0 {
			nonZero = true
		}
	}
	if !nonZero {
		return ErrZeroWeights
	}
	return nil
}

// categoryTable maps every interaction type to the category it credits.
var categoryTable = [types.InteractionTypeCount]types.Category{
	types.Endorsement:            types.Community,
	types.Comment:                types.Community,
	types.CodeReview:             types.Community,
	types.BugFix:                 types.Development,
	types.FeatureDelivery:        types.Development,
	types.Mentorship:             types.Community,
	types.SecurityFinding:        types.Leadership,
	types.MajorInnovation:        types.Innovation,
	types.CommunityEvent:         types.Community,
	types.GovernanceContribution: types.Quality,
}

// CategoryFor resolves the category credited by an interaction type.
func CategoryFor(t types.InteractionType) (types.Category, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidInteractionType, t)
	}
	return categoryTable[t], nil
}

// badgeTable maps every claimable badge to the category its bonus credits.
var badgeTable = map[types.BadgeType]types.Category{
	types.BadgeDeveloper:             types.Development,
	types.BadgeGovernanceParticipant: types.Quality,
	types.BadgeCommunityBuilder:      types.Community,
	types.BadgeSecurityAuditor:       types.Leadership,
	types.BadgeInnovation:            types.Innovation,
	types.BadgeMentor:                types.Community,
	types.BadgeEarlyAdopter:          types.Community,
	types.BadgeCrossChainBridge:      types.Community,
	types.BadgeAIValidator:           types.Innovation,
	types.BadgeCustom:                types.Community,
}

// BadgeCategory resolves the category credited by a badge bonus.
func BadgeCategory(b types.BadgeType) (types.Category, bool) {
	c, ok := badgeTable[b]
	return c, ok
}

// Input abstracts the interaction fields needed for scoring.
type Input struct {
	Type       types.InteractionType
	BasePoints uint32
	Weights    Weights
}

// Result contains the credited category and its delta.
type Result struct {
	Category types.Category
	Delta    uint64
}

// Score validates in and computes basePoints * weight / WeightScale.
func Score(in Input) (Result, error) {
	cat, err := CategoryFor(in.Type)
	if err != nil {
		return Result{}, err
	}
	if in.BasePoints < MinBasePoints || in.BasePoints > MaxBasePoints {
		return Result{}, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidPoints, in.BasePoints, MinBasePoints, MaxBasePoints)
	}
	return Result{
		Category: cat,
		Delta:    Delta(uint64(in.BasePoints), in.Weights[cat]),
	}, nil
}

// Delta returns basePoints * weight / WeightScale, saturating.
func Delta(basePoints uint64, weight uint16) uint64 {
	return MulDiv(basePoints, uint64(weight), WeightScale)
}

// MulDiv returns floor(a*b/d) using a 256-bit intermediate.
// Results that do not fit uint64, and d == 0, saturate at math.MaxUint64.
func MulDiv(a, b, d uint64) uint64 {
	if d == 0 {
		if a == 0 || b == 0 {
			return 0
		}
		return math.MaxUint64
	}
	var z uint256.Int
	z.Mul(uint256.NewInt(a), uint256.NewInt(b))
	z.Div(&z, uint256.NewInt(d))
	if !z.IsUint64() {
		return math.MaxUint64
	}
	return z.Uint64()
}

// SaturatingAdd returns a+b clamped at math.MaxUint64.
func SaturatingAdd(a, b uint64) uint64 {
	if s := a + b; s >= a {
		return s
	}
	return math.MaxUint64
}

// SaturatingSub returns a-b clamped at zero.
func SaturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

// SaturatingSum folds SaturatingAdd over vals.
func SaturatingSum(vals ...uint64) uint64 {
	var total uint64
	for _, v := range vals {
		total = SaturatingAdd(total, v)
	}
	return total
}

// SaturatingInc32 returns n+1 clamped at math.MaxUint32.
func SaturatingInc32(n uint32) uint32 {
	if n == math.MaxUint32 {
		return n
	}
	return n + 1
}

// DecayAmount returns score*ratePercent*periods/100, never more than score.
func DecayAmount(score, ratePercent, periods uint64) uint64 {
	if score == 0 || ratePercent == 0 || periods == 0 {
		return 0
	}
	factor := MulDiv(ratePercent, periods, 1)
	if factor >= percentScale {
		return score
	}
	return MulDiv(score, factor, percentScale)
}

// Tiers are the cooldown intervals per interaction weight class.
type Tiers struct {
	Low  time.Duration // types 0-2
	Mid  time.Duration // types 3-6
	High time.Duration // types 7-9
}

// DefaultTiers returns the 5m / 30m / 2h cooldown ladder.
func DefaultTiers() Tiers {
	return Tiers{Low: defaultCooldownLow, Mid: defaultCooldownMid, High: defaultCooldownHigh}
}

// For returns the cooldown interval that applies to t.
func (t Tiers) For(it types.InteractionType) time.Duration {
	switch {
	case it <= types.CodeReview:
		return t.Low
	case it <= types.SecurityFinding:
		return t.Mid
	default:
		return t.High
	}
}
