// Package repository implements the keyed record store and the scoreboard.
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/okian/repdao/internal/domain/model"
	"github.com/okian/repdao/internal/domain/store"
	"github.com/okian/repdao/internal/domain/types"
	"github.com/okian/repdao/pkg/metrics"
)

// Default store configuration constants.
const (
	defaultShardCount = 64
)

type pairKey struct {
	from types.Identity
	to   types.Identity
}

// MemoryStore is an in-memory store.Store.
//
// Writers lock a stripe per key (xxhash of the key modulo the shard count),
// always in ascending stripe order, so overlapping key sets serialize and
// disjoint ones run in parallel. Committed maps sit behind one RWMutex that
// is only held for the copy in or out.
type MemoryStore struct {
	shards     []sync.Mutex
	shardCount int

	mu       sync.RWMutex
	profiles map[types.Identity]*model.ReputationProfile
	realms   map[string]*model.GovernanceRealm
	events   []model.InteractionEvent
	pairLast map[pairKey]time.Time
	byOwner  map[types.Identity][]int

	board *Scoreboard
}

var _ store.Store = (*MemoryStore)(nil)

// NewMemoryStore constructs a store with configuration options.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		shardCount: defaultShardCount,
		profiles:   make(map[types.Identity]*model.ReputationProfile),
		realms:     make(map[string]*model.GovernanceRealm),
		pairLast:   make(map[pairKey]time.Time),
		byOwner:    make(map[types.Identity][]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.shards = make([]sync.Mutex, s.shardCount)
	if s.board == nil {
		s.board = NewScoreboard()
	}

	metrics.UpdateRepositoryShardCount(s.shardCount)
	return s
}

// shardsFor returns the distinct stripes for keys in ascending order.
func (s *MemoryStore) shardsFor(keys []string) []int {
	seen := make(map[int]struct{}, len(keys))
	out := make([]int, 0, len(keys))
	for _, k := range keys {
		idx := int(xxhash.Sum64String(k) % uint64(s.shardCount))
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// Update implements store.Store.Update.
func (s *MemoryStore) Update(ctx context.Context, keys []string, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("update aborted: %w", err)
	}

	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	stripes := s.shardsFor(keys)
	for _, idx := range stripes {
		s.shards[idx].Lock()
	}
	defer func() {
		for i := len(stripes) - 1; i >= 0; i-- {
			s.shards[stripes[i]].Unlock()
		}
	}()

	tx := newMemTx(s, keys)
	if err := fn(tx); err != nil {
		metrics.RecordRepositoryRollback()
		return err
	}
	s.commit(tx)
	return nil
}

// commit publishes the transaction's working set. Stripes are still held.
func (s *MemoryStore) commit(tx *memTx) {
	s.mu.Lock()
	for id, p := range tx.profiles {
		s.profiles[id] = p
	}
	for name, r := range tx.realms {
		s.realms[name] = r
	}
	for _, e := range tx.events {
		idx := len(s.events)
		s.events = append(s.events, e)
		s.pairLast[pairKey{from: e.From, to: e.To}] = e.Timestamp
		s.byOwner[e.From] = append(s.byOwner[e.From], idx)
		s.byOwner[e.To] = append(s.byOwner[e.To], idx)
	}
	profileCount := len(s.profiles)
	s.mu.Unlock()

	for id, p := range tx.profiles {
		s.board.Upsert(id, p.TotalScore)
	}
	metrics.UpdateRepositoryRecordsTotal(profileCount)
}

// Profile implements store.Store.Profile.
func (s *MemoryStore) Profile(ctx context.Context, id types.Identity) (*model.ReputationProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p.Clone(), nil
}

// Realm implements store.Store.Realm.
func (s *MemoryStore) Realm(ctx context.Context, name string) (*model.GovernanceRealm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.realms[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r.Clone(), nil
}

// Events implements store.Store.Events.
func (s *MemoryStore) Events(ctx context.Context, q store.EventQuery) ([]model.InteractionEvent, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.InteractionEvent
	full := func() bool { return q.Limit > 0 && len(out) >= q.Limit }

	if q.Owner != "" {
		idxs := s.byOwner[q.Owner]
		for i := len(idxs) - 1; i >= 0 && !full(); i-- {
			out = append(out, s.events[idxs[i]])
		}
		return out, nil
	}
	for i := len(s.events) - 1; i >= 0 && !full(); i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

// TopN returns the scoreboard head.
func (s *MemoryStore) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	return s.board.TopN(ctx, n)
}

// Rank returns the scoreboard position of id.
func (s *MemoryStore) Rank(ctx context.Context, id types.Identity) (types.Entry, error) {
	return s.board.Rank(ctx, id)
}

// Counts reports the number of stored records by kind.
func (s *MemoryStore) Counts(ctx context.Context) (profiles, realms, events int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles), len(s.realms), len(s.events)
}

// memTx is the working set of one Update call.
type memTx struct {
	s        *MemoryStore
	declared map[string]struct{}
	profiles map[types.Identity]*model.ReputationProfile
	realms   map[string]*model.GovernanceRealm
	events   []model.InteractionEvent
}

func newMemTx(s *MemoryStore, keys []string) *memTx {
	declared := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		declared[k] = struct{}{}
	}
	return &memTx{
		s:        s,
		declared: declared,
		profiles: make(map[types.Identity]*model.ReputationProfile),
		realms:   make(map[string]*model.GovernanceRealm),
	}
}

func (t *memTx) require(key string) error {
	if _, ok := t.declared[key]; !ok {
		return fmt.Errorf("%w: %s", store.ErrUndeclaredKey, key)
	}
	return nil
}

func (t *memTx) Profile(id types.Identity) (*model.ReputationProfile, error) {
	if err := t.require(store.ProfileKey(id)); err != nil {
		return nil, err
	}
	if p, ok := t.profiles[id]; ok {
		return p, nil
	}
	t.s.mu.RLock()
	p, ok := t.s.profiles[id]
	t.s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	working := p.Clone()
	t.profiles[id] = working
	return working, nil
}

func (t *memTx) CreateProfile(p *model.ReputationProfile) error {
	if err := t.require(store.ProfileKey(p.Owner)); err != nil {
		return err
	}
	if _, ok := t.profiles[p.Owner]; ok {
		return store.ErrAlreadyExists
	}
	t.s.mu.RLock()
	_, exists := t.s.profiles[p.Owner]
	t.s.mu.RUnlock()
	if exists {
		return store.ErrAlreadyExists
	}
	t.profiles[p.Owner] = p
	return nil
}

func (t *memTx) Realm(name string) (*model.GovernanceRealm, error) {
	if err := t.require(store.RealmKey(name)); err != nil {
		return nil, err
	}
	if r, ok := t.realms[name]; ok {
		return r, nil
	}
	t.s.mu.RLock()
	r, ok := t.s.realms[name]
	t.s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	working := r.Clone()
	t.realms[name] = working
	return working, nil
}

func (t *memTx) CreateRealm(r *model.GovernanceRealm) error {
	if err := t.require(store.RealmKey(r.Name)); err != nil {
		return err
	}
	if _, ok := t.realms[r.Name]; ok {
		return store.ErrAlreadyExists
	}
	t.s.mu.RLock()
	_, exists := t.s.realms[r.Name]
	t.s.mu.RUnlock()
	if exists {
		return store.ErrAlreadyExists
	}
	t.realms[r.Name] = r
	return nil
}

func (t *memTx) LastInteraction(from, to types.Identity) (time.Time, bool) {
	for i := len(t.events) - 1; i >= 0; i-- {
		if t.events[i].From == from && t.events[i].To == to {
			return t.events[i].Timestamp, true
		}
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	at, ok := t.s.pairLast[pairKey{from: from, to: to}]
	return at, ok
}

func (t *memTx) AppendEvent(e model.InteractionEvent) error {
	if err := t.require(store.ProfileKey(e.From)); err != nil {
		return err
	}
	if err := t.require(store.ProfileKey(e.To)); err != nil {
		return err
	}
	t.events = append(t.events, e)
	return nil
}
