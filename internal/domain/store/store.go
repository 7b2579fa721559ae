// Package store declares the keyed-record ports the reputation engine runs on.
//
// A Store applies each operation as one atomic read-modify-write over an
// explicit key set. Implementations live under internal/adapters.
package store

import (
	"context"
	"time"

	"github.com/okian/repdao/internal/domain/model"
	"github.com/okian/repdao/internal/domain/types"
)

// Key prefixes.
const (
	profilePrefix = "profile:"
	realmPrefix   = "realm:"
)

// ProfileKey returns the lock key of a profile record.
func ProfileKey(id types.Identity) string { return profilePrefix + string(id) }

// RealmKey returns the lock key of a realm record.
func RealmKey(name string) string { return realmPrefix + name }

// Store provides atomic multi-key updates and committed reads.
type Store interface {
	// Update locks keys, runs fn against working copies, and commits every
	// write fn made only when fn returns nil. fn may only touch declared keys.
	Update(ctx context.Context, keys []string, fn func(Tx) error) error

	// Profile returns a committed copy of a profile or ErrNotFound.
	Profile(ctx context.Context, id types.Identity) (*model.ReputationProfile, error)
	// Realm returns a committed copy of a realm or ErrNotFound.
	Realm(ctx context.Context, name string) (*model.GovernanceRealm, error)
	// Events returns interaction events, newest first.
	Events(ctx context.Context, q EventQuery) ([]model.InteractionEvent, error)
}

// Tx is the view a Store.Update callback works against.
type Tx interface {
	// Profile returns the working copy of a profile or ErrNotFound.
	// Mutations to the returned value are committed with the transaction.
	Profile(id types.Identity) (*model.ReputationProfile, error)
	// CreateProfile stages a new profile or returns ErrAlreadyExists.
	CreateProfile(p *model.ReputationProfile) error
	// Realm returns the working copy of a realm or ErrNotFound.
	Realm(name string) (*model.GovernanceRealm, error)
	// CreateRealm stages a new realm or returns ErrAlreadyExists.
	CreateRealm(r *model.GovernanceRealm) error
	// LastInteraction returns the newest committed event time for the ordered pair.
	LastInteraction(from, to types.Identity) (time.Time, bool)
	// AppendEvent stages an immutable event.
	AppendEvent(e model.InteractionEvent) error
}

// EventQuery filters Store.Events.
type EventQuery struct {
	// Owner restricts to events where the identity is sender or recipient.
	Owner types.Identity
	// Limit caps the result; zero means no cap.
	Limit int
}
