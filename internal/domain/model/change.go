package model

import "time"

// ChangeKind names the operation that produced a Change.
type ChangeKind string

// Change kinds.
const (
	ChangeProfileInitialized ChangeKind = "profile_initialized"
	ChangeRealmCreated       ChangeKind = "realm_created"
	ChangeAlgorithmUpdated   ChangeKind = "algorithm_updated"
	ChangeInteraction        ChangeKind = "interaction_recorded"
	ChangeDelegation         ChangeKind = "delegation_changed"
	ChangeBadgeClaimed       ChangeKind = "badge_claimed"
	ChangeVoteCast           ChangeKind = "vote_cast"
	ChangeDecayApplied       ChangeKind = "decay_applied"
)

// Change describes one committed transition. It flows through the outbox.
type Change struct {
	Kind     ChangeKind           `json:"kind"`
	Event    *InteractionEvent    `json:"event,omitempty"`
	Profiles []*ReputationProfile `json:"profiles,omitempty"`
	Realm    *GovernanceRealm     `json:"realm,omitempty"`
	At       time.Time            `json:"at"`
}

// Key returns a stable partition key for the change.
func (c *Change) Key() string {
	switch {
	case c.Event != nil:
		return string(c.Event.From)
	case len(c.Profiles) > 0:
		return string(c.Profiles[0].Owner)
	case c.Realm != nil:
		return "realm:" + c.Realm.Name
	default:
		return string(c.Kind)
	}
}
