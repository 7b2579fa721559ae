// Package types contains common types used across the application
package types

import "fmt"

// Identity is an authenticated caller handle.
type Identity string

// Category is one of the five fixed reputation dimensions.
type Category uint8

const (
	Development Category = iota
	Quality
	Community
	Innovation
	Leadership

	// CategoryCount is the size of the closed category set.
	CategoryCount = 5
)

var categoryNames = [CategoryCount]string{"development", "quality", "community", "innovation", "leadership"}

// Valid reports whether c is inside the closed set.
func (c Category) Valid() bool { return c < CategoryCount }

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", uint8(c))
	}
	return categoryNames[c]
}

// InteractionType selects a category through the scoring table.
type InteractionType uint8

const (
	Endorsement InteractionType = iota
	Comment
	CodeReview
	BugFix
	FeatureDelivery
	Mentorship
	SecurityFinding
	MajorInnovation
	CommunityEvent
	GovernanceContribution

	// InteractionTypeCount bounds the accepted interaction types.
	InteractionTypeCount = 10
)

// Valid reports whether t is a known interaction type.
func (t InteractionType) Valid() bool { return t < InteractionTypeCount }

// BadgeType identifies an achievement. Zero marks an empty slot.
type BadgeType uint8

const (
	BadgeNone BadgeType = iota
	BadgeDeveloper
	BadgeGovernanceParticipant
	BadgeCommunityBuilder
	BadgeSecurityAuditor
	BadgeInnovation
	BadgeMentor
	BadgeEarlyAdopter
	BadgeCrossChainBridge
	BadgeAIValidator
	BadgeCustom
)

// Valid reports whether b can be claimed.
func (b BadgeType) Valid() bool { return b >= BadgeDeveloper && b <= BadgeCustom }

// Entry represents a leaderboard entry
type Entry struct {
	Rank     int      `json:"rank"`
	Identity Identity `json:"identity"`
	Score    uint64   `json:"score"`
}
