// Package cooldown tracks when a profile last interacted with each counterparty.
package cooldown

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"
	"github.com/okian/repdao/internal/domain/types"
	"github.com/okian/repdao/pkg/metrics"
)

// DefaultCapacity bounds the number of counterparties a witness remembers.
const DefaultCapacity = 64

// Witness records the last outgoing interaction time per counterparty.
// It is bounded: recording a new counterparty at capacity evicts the least
// recently recorded one. Timestamps only move forward for a given owner, so
// that is also the oldest timestamp. A Witness is not safe for concurrent
// use; it lives inside a profile record guarded by the store.
type Witness struct {
	entries  *simplelru.LRU
	capacity int

	// set by the eviction callback during Record
	evicted  types.Identity
	didEvict bool
}

// NewWitness creates an empty witness with configuration options.
func NewWitness(opts ...Option) *Witness {
	w := &Witness{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(w)
	}
	w.init()
	return w
}

func (w *Witness) init() {
	if w.capacity <= 0 {
		w.capacity = DefaultCapacity
	}
	l, err := simplelru.NewLRU(w.capacity, w.onEvict)
	if err != nil {
		// unreachable: capacity is positive
		panic(fmt.Sprintf("cooldown: %v", err))
	}
	w.entries = l
}

func (w *Witness) onEvict(key, _ interface{}) {
	w.evicted = key.(types.Identity)
	w.didEvict = true
	metrics.RecordCooldownEviction()
}

// Last returns the recorded timestamp for peer.
func (w *Witness) Last(peer types.Identity) (time.Time, bool) {
	if w == nil || w.entries == nil {
		return time.Time{}, false
	}
	v, ok := w.entries.Peek(peer)
	if !ok {
		return time.Time{}, false
	}
	return v.(time.Time), true
}

// Record stores at as the last interaction with peer.
// It returns the evicted counterparty, if any.
func (w *Witness) Record(peer types.Identity, at time.Time) (types.Identity, bool) {
	if w.entries == nil {
		w.init()
	}
	w.evicted, w.didEvict = "", false
	w.entries.Add(peer, at)
	evicted, ok := w.evicted, w.didEvict
	w.evicted, w.didEvict = "", false
	return evicted, ok
}

// Peers returns the remembered counterparties, least recently recorded first.
func (w *Witness) Peers() []types.Identity {
	if w == nil || w.entries == nil {
		return nil
	}
	keys := w.entries.Keys()
	out := make([]types.Identity, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.(types.Identity))
	}
	return out
}

// Len returns the number of remembered counterparties.
func (w *Witness) Len() int {
	if w == nil || w.entries == nil {
		return 0
	}
	return w.entries.Len()
}

// Capacity returns the configured bound.
func (w *Witness) Capacity() int {
	if w == nil || w.capacity <= 0 {
		return DefaultCapacity
	}
	return w.capacity
}

// Clone returns a deep copy that keeps the recording order.
func (w *Witness) Clone() *Witness {
	if w == nil {
		return nil
	}
	c := &Witness{capacity: w.capacity}
	c.init()
	for _, peer := range w.Peers() {
		at, _ := w.Last(peer)
		c.entries.Add(peer, at)
	}
	return c
}

// Active reports whether an interaction at now still falls inside the
// cooldown that started at last. A now earlier than last counts as active.
func Active(last, now time.Time, interval time.Duration) bool {
	if now.Before(last) {
		return true
	}
	return now.Sub(last) < interval
}

type entryJSON struct {
	Peer types.Identity `json:"peer"`
	At   time.Time      `json:"at"`
}

type witnessJSON struct {
	Capacity int         `json:"capacity"`
	Entries  []entryJSON `json:"entries"`
}

// MarshalJSON encodes the witness for snapshots, oldest entry first.
func (w *Witness) MarshalJSON() ([]byte, error) {
	raw := witnessJSON{Capacity: w.Capacity(), Entries: []entryJSON{}}
	for _, peer := range w.Peers() {
		at, _ := w.Last(peer)
		raw.Entries = append(raw.Entries, entryJSON{Peer: peer, At: at})
	}
	return json.Marshal(raw)
}

// UnmarshalJSON restores a witness from a snapshot.
func (w *Witness) UnmarshalJSON(b []byte) error {
	var raw witnessJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	w.capacity = raw.Capacity
	w.init()
	for _, e := range raw.Entries {
		w.entries.Add(e.Peer, e.At)
	}
	w.evicted, w.didEvict = "", false
	return nil
}
