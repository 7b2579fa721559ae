package reputation

import (
	"errors"
	"fmt"

	"github.com/okian/repdao/internal/domain/store"
	"github.com/okian/repdao/internal/domain/types"
)

// Sentinel kinds for engine errors.
var (
	ErrAlreadyInitialized       = errors.New("profile already initialized")
	ErrNotFound                 = errors.New("not found")
	ErrDuplicateRealm           = errors.New("realm already exists")
	ErrUnauthorized             = errors.New("caller is not the realm admin")
	ErrInvalidWeight            = errors.New("invalid weight vector")
	ErrSelfInteractionForbidden = errors.New("self interaction forbidden")
	ErrCooldownActive           = errors.New("cooldown active")
	ErrInvalidPercentage        = errors.New("percentage must be between 1 and 100")
	ErrSelfDelegationForbidden  = errors.New("self delegation forbidden")
	ErrDuplicateBadge           = errors.New("badge already claimed")
	ErrBadgeSlotFull            = errors.New("no free badge slot")
	ErrInvalidProof             = errors.New("invalid badge proof")
	ErrOverflow                 = errors.New("arithmetic overflow")
	ErrInvalidIdentity          = errors.New("invalid identity")
	ErrInvalidInteractionType   = errors.New("invalid interaction type")
	ErrInvalidPoints            = errors.New("invalid base points")
	ErrNoteTooLong              = errors.New("note too long")
	ErrRealmNameTooLong         = errors.New("realm name must be 1 to 32 bytes")
	ErrInvalidCategory          = errors.New("invalid category")
	ErrInvalidDecayPeriod       = errors.New("invalid decay period")
	ErrInvalidBadgeType         = errors.New("invalid badge type")
	ErrInsufficientReputation   = errors.New("insufficient reputation")
	ErrInvalidVoteType          = errors.New("invalid vote type")
	ErrDecayDisabled            = errors.New("decay disabled for realm")
	ErrNotImplemented           = errors.New("not implemented")
	ErrConflict                 = errors.New("concurrent update conflict")
)

// KindInternal is reported for errors outside the sentinel set.
const KindInternal = "internal"

var kinds = []struct {
	err  error
	kind string
}{
	{ErrAlreadyInitialized, "already_initialized"},
	{ErrNotFound, "not_found"},
	{ErrDuplicateRealm, "duplicate_realm"},
	{ErrUnauthorized, "unauthorized"},
	{ErrInvalidWeight, "invalid_weight"},
	{ErrSelfInteractionForbidden, "self_interaction_forbidden"},
	{ErrCooldownActive, "cooldown_active"},
	{ErrInvalidPercentage, "invalid_percentage"},
	{ErrSelfDelegationForbidden, "self_delegation_forbidden"},
	{ErrDuplicateBadge, "duplicate_badge"},
	{ErrBadgeSlotFull, "badge_slot_full"},
	{ErrInvalidProof, "invalid_proof"},
	{ErrOverflow, "overflow"},
	{ErrInvalidIdentity, "invalid_identity"},
	{ErrInvalidInteractionType, "invalid_interaction_type"},
	{ErrInvalidPoints, "invalid_points"},
	{ErrNoteTooLong, "note_too_long"},
	{ErrRealmNameTooLong, "realm_name_too_long"},
	{ErrInvalidCategory, "invalid_category"},
	{ErrInvalidDecayPeriod, "invalid_decay_period"},
	{ErrInvalidBadgeType, "invalid_badge_type"},
	{ErrInsufficientReputation, "insufficient_reputation"},
	{ErrInvalidVoteType, "invalid_vote_type"},
	{ErrDecayDisabled, "decay_disabled"},
	{ErrNotImplemented, "not_implemented"},
	{ErrConflict, "conflict"},
}

// Kind returns the stable code of err, "" for nil and KindInternal for
// anything that does not wrap an engine sentinel.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

func profileNotFound(id types.Identity, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: profile %q", ErrNotFound, id)
	}
	return err
}

func realmNotFound(name string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: realm %q", ErrNotFound, name)
	}
	return err
}
