package model

import (
	"time"

	"github.com/okian/repdao/internal/domain/scoring"
	"github.com/okian/repdao/internal/domain/types"
)

// Realm constraints.
const (
	MaxRealmNameLen               = 32
	DefaultMinReputationThreshold = 50
)

// ReputationAlgorithm is a realm's weighting and decay configuration.
type ReputationAlgorithm struct {
	Weights scoring.Weights `json:"weights"`
	// FocusCategory is stored and versioned; scoring does not read it.
	FocusCategory types.Category `json:"focus_category"`
	DecayEnabled  bool           `json:"decay_enabled"`
	DecayPeriod   time.Duration  `json:"decay_period"`
	Version       uint64         `json:"version"`
}

// DefaultAlgorithm is used for interactions that name no realm.
func DefaultAlgorithm() ReputationAlgorithm {
	return ReputationAlgorithm{Weights: scoring.DefaultWeights()}
}

// GovernanceRealm is a named realm owning one algorithm.
type GovernanceRealm struct {
	Name                   string              `json:"name"`
	Admin                  types.Identity      `json:"admin"`
	Algorithm              ReputationAlgorithm `json:"algorithm"`
	MinReputationThreshold uint64              `json:"min_reputation_threshold"`
	CreatedAt              time.Time           `json:"created_at"`
}

// Clone returns a copy safe to mutate.
func (r *GovernanceRealm) Clone() *GovernanceRealm {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
