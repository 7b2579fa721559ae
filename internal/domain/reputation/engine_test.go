package reputation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/repdao/internal/adapters/repository"
	"github.com/okian/repdao/internal/domain/model"
	"github.com/okian/repdao/internal/domain/reputation"
	"github.com/okian/repdao/internal/domain/store"
	"github.com/okian/repdao/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Set(at time.Time) {
	c.mu.Lock()
	c.now = at
	c.mu.Unlock()
}

type recorder struct {
	mu      sync.Mutex
	changes []model.Change
	refuse  bool
}

func (r *recorder) Publish(_ context.Context, c model.Change) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refuse {
		return false
	}
	r.changes = append(r.changes, c)
	return true
}

func (r *recorder) kinds() []model.ChangeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ChangeKind, 0, len(r.changes))
	for _, c := range r.changes {
		out = append(out, c.Kind)
	}
	return out
}

type harness struct {
	ctx    context.Context
	store  *repository.MemoryStore
	clock  *fakeClock
	pub    *recorder
	engine *reputation.Engine
}

func newHarness(opts ...reputation.Option) *harness {
	h := &harness{
		ctx:   context.Background(),
		store: repository.NewMemoryStore(repository.WithShardCount(8)),
		clock: &fakeClock{now: t0},
		pub:   &recorder{},
	}
	base := []reputation.Option{
		reputation.WithClock(h.clock.Now),
		reputation.WithPublisher(h.pub),
	}
	h.engine = reputation.New(h.store, append(base, opts...)...)
	return h
}

func (h *harness) init(ids ...types.Identity) {
	for _, id := range ids {
		_, err := h.engine.InitializeProfile(h.ctx, id)
		So(err, ShouldBeNil)
	}
}

// mutate edits a committed profile directly through the store.
func (h *harness) mutate(id types.Identity, fn func(p *model.ReputationProfile)) {
	err := h.store.Update(h.ctx, []string{store.ProfileKey(id)}, func(tx store.Tx) error {
		p, err := tx.Profile(id)
		if err != nil {
			return err
		}
		fn(p)
		return nil
	})
	So(err, ShouldBeNil)
}

func (h *harness) seedScore(id types.Identity, c types.Category, score uint64) {
	h.mutate(id, func(p *model.ReputationProfile) {
		p.CategoryScores[c] = score
		p.RecomputeTotal()
	})
}

func (h *harness) profile(id types.Identity) *model.ReputationProfile {
	p, err := h.engine.Profile(h.ctx, id)
	So(err, ShouldBeNil)
	return p
}

func TestInitializeProfile(t *testing.T) {
	Convey("Given an empty engine", t, func() {
		h := newHarness()

		Convey("When a profile is initialized", func() {
			p, err := h.engine.InitializeProfile(h.ctx, "alice")

			Convey("Then it starts at zero", func() {
				So(err, ShouldBeNil)
				So(p.Owner, ShouldEqual, types.Identity("alice"))
				So(p.TotalScore, ShouldEqual, 0)
				So(p.InteractionCount, ShouldEqual, 0)
				So(p.DelegatedTo, ShouldEqual, types.Identity(""))
				So(p.BadgeCount(), ShouldEqual, 0)
				So(p.AIValidationScore, ShouldEqual, 0)
				So(p.CreatedAt.Equal(t0), ShouldBeTrue)
				So(h.pub.kinds(), ShouldResemble, []model.ChangeKind{model.ChangeProfileInitialized})
			})

			Convey("Then initializing again fails and leaves it unchanged", func() {
				h.clock.Advance(time.Hour)
				_, err := h.engine.InitializeProfile(h.ctx, "alice")
				So(errors.Is(err, reputation.ErrAlreadyInitialized), ShouldBeTrue)
				So(h.profile("alice").CreatedAt.Equal(t0), ShouldBeTrue)
			})
		})

		Convey("When the identity is empty", func() {
			_, err := h.engine.InitializeProfile(h.ctx, "")

			Convey("Then it is rejected", func() {
				So(errors.Is(err, reputation.ErrInvalidIdentity), ShouldBeTrue)
			})
		})

		Convey("When reading a missing profile", func() {
			_, err := h.engine.Profile(h.ctx, "ghost")

			Convey("Then it is not found", func() {
				So(errors.Is(err, reputation.ErrNotFound), ShouldBeTrue)
				So(reputation.Kind(err), ShouldEqual, "not_found")
			})
		})

		Convey("When many goroutines race to initialize one identity", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			wins := 0
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := h.engine.InitializeProfile(h.ctx, "racer"); err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one succeeds", func() {
				So(wins, ShouldEqual, 1)
			})
		})
	})
}

func TestKind(t *testing.T) {
	Convey("Given engine errors", t, func() {
		So(reputation.Kind(nil), ShouldEqual, "")
		So(reputation.Kind(errors.New("disk on fire")), ShouldEqual, reputation.KindInternal)
		So(reputation.Kind(reputation.ErrCooldownActive), ShouldEqual, "cooldown_active")

		h := newHarness()
		h.init("alice")
		_, err := h.engine.InitializeProfile(h.ctx, "alice")
		So(reputation.Kind(err), ShouldEqual, "already_initialized")
	})
}

func TestBridgeReputation(t *testing.T) {
	Convey("Given a profile", t, func() {
		h := newHarness()
		h.init("alice")
		before := h.profile("alice")

		Convey("When bridging", func() {
			err := h.engine.BridgeReputation(h.ctx, "alice", "other-realm", 10)

			Convey("Then it is not implemented and nothing changes", func() {
				So(errors.Is(err, reputation.ErrNotImplemented), ShouldBeTrue)
				So(h.profile("alice"), ShouldResemble, before)
			})
		})
	})
}
