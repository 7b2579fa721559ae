package repository

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/okian/repdao/internal/domain/types"
	"github.com/okian/repdao/pkg/metrics"
)

// Treap-based, in-memory scoreboard.
//
// Ordering: score DESC, then identity ASC (deterministic).
// "less" means ranks earlier, so in-order traversal yields the
// leaderboard from best to worst. Node priorities come from a hash of
// the identity, which keeps the tree balanced in expectation regardless
// of score distribution.

type node struct {
	id    types.Identity
	score uint64
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aID) should appear before (bScore, bID).
func less(aScore uint64, aID types.Identity, bScore uint64, bID types.Identity) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func priorityFor(id types.Identity) uint64 {
	return xxhash.Sum64String(string(id))
}

func insert(n *node, id types.Identity, score uint64) *node {
	if n == nil {
		return &node{id: id, score: score, prio: priorityFor(id), size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id types.Identity, score uint64) *node {
	if n == nil {
		return nil
	}
	if score == n.score && id == n.id {
		// Rotate the higher-priority child up until the node is a leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	} else if less(score, id, n.score, n.id) {
		n.left = deleteNode(n.left, id, score)
	} else {
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, out *[]types.Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, types.Entry{Identity: n.id, Score: n.score})
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// walkUntil visits nodes in rank order until visit returns false.
func walkUntil(n *node, visit func(*node) bool) bool {
	if n == nil {
		return true
	}
	if !walkUntil(n.left, visit) {
		return false
	}
	if !visit(n) {
		return false
	}
	return walkUntil(n.right, visit)
}

// assignRanksWithTies assigns dense ranks: equal scores share a rank and
// the next distinct score takes the next consecutive rank.
func assignRanksWithTies(entries []types.Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Score != entries[i-1].Score {
			rank++
		}
		entries[i].Rank = rank
	}
}

// Scoreboard ranks identities by total score.
type Scoreboard struct {
	mu   sync.RWMutex
	root *node
	byID map[types.Identity]uint64
}

// NewScoreboard creates an empty scoreboard.
func NewScoreboard() *Scoreboard {
	return &Scoreboard{byID: make(map[types.Identity]uint64)}
}

// Upsert sets the score of id in O(log n) expected time.
func (b *Scoreboard) Upsert(id types.Identity, score uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.byID[id]; ok {
		if old == score {
			return
		}
		b.root = deleteNode(b.root, id, old)
	}
	b.byID[id] = score
	b.root = insert(b.root, id, score)
}

// TopN returns the top n entries with dense ranks.
func (b *Scoreboard) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]types.Entry, 0, min(n, len(b.byID)))
	collectTopN(b.root, n, &out)
	assignRanksWithTies(out)
	return out, nil
}

// Rank returns the dense rank and score of id.
func (b *Scoreboard) Rank(ctx context.Context, id types.Identity) (types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	b.mu.RLock()
	defer b.mu.RUnlock()

	score, ok := b.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return types.Entry{}, ErrNotFound
	}

	// Count distinct scores strictly above ours.
	rank := 1
	var prev uint64
	seen := false
	walkUntil(b.root, func(n *node) bool {
		if n.score <= score {
			return false
		}
		if !seen || n.score != prev {
			if seen {
				rank++
			}
			prev, seen = n.score, true
		}
		return true
	})
	if seen {
		rank++
	}
	return types.Entry{Rank: rank, Identity: id, Score: score}, nil
}

// Count returns the number of ranked identities.
func (b *Scoreboard) Count(ctx context.Context) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}
