package cooldown_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/okian/repdao/internal/domain/cooldown"
	"github.com/okian/repdao/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWitness(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	Convey("Given a new Witness", t, func() {
		Convey("When creating with default options", func() {
			w := cooldown.NewWitness()

			Convey("Then it is empty with the default capacity", func() {
				So(w.Len(), ShouldEqual, 0)
				So(w.Capacity(), ShouldEqual, cooldown.DefaultCapacity)
				_, ok := w.Last("bob")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When recording a counterparty twice", func() {
			w := cooldown.NewWitness()
			w.Record("bob", base)
			_, evicted := w.Record("bob", base.Add(time.Minute))

			Convey("Then the timestamp is replaced without eviction", func() {
				So(evicted, ShouldBeFalse)
				So(w.Len(), ShouldEqual, 1)
				at, ok := w.Last("bob")
				So(ok, ShouldBeTrue)
				So(at, ShouldEqual, base.Add(time.Minute))
			})
		})

		Convey("When the witness is at capacity", func() {
			w := cooldown.NewWitness(cooldown.WithCapacity(3))
			w.Record("bob", base)
			w.Record("carol", base.Add(time.Minute))
			w.Record("dave", base.Add(2*time.Minute))
			victim, evicted := w.Record("erin", base.Add(3*time.Minute))

			Convey("Then the oldest timestamp is dropped", func() {
				So(evicted, ShouldBeTrue)
				So(victim, ShouldEqual, types.Identity("bob"))
				So(w.Len(), ShouldEqual, 3)
				_, ok := w.Last("bob")
				So(ok, ShouldBeFalse)
				_, ok = w.Last("erin")
				So(ok, ShouldBeTrue)
				So(w.Peers(), ShouldResemble, []types.Identity{"carol", "dave", "erin"})
			})
		})

		Convey("When an existing counterparty is recorded again at capacity", func() {
			w := cooldown.NewWitness(cooldown.WithCapacity(3))
			w.Record("bob", base)
			w.Record("carol", base.Add(time.Minute))
			w.Record("dave", base.Add(2*time.Minute))
			_, evicted := w.Record("bob", base.Add(3*time.Minute))
			victim, evictedNext := w.Record("erin", base.Add(4*time.Minute))

			Convey("Then the refreshed entry survives and the next oldest goes", func() {
				So(evicted, ShouldBeFalse)
				So(evictedNext, ShouldBeTrue)
				So(victim, ShouldEqual, types.Identity("carol"))
				at, ok := w.Last("bob")
				So(ok, ShouldBeTrue)
				So(at, ShouldEqual, base.Add(3*time.Minute))
			})
		})

		Convey("When cloning", func() {
			w := cooldown.NewWitness(cooldown.WithCapacity(4))
			w.Record("bob", base)
			c := w.Clone()
			c.Record("carol", base)

			Convey("Then the copy is independent", func() {
				So(w.Len(), ShouldEqual, 1)
				So(c.Len(), ShouldEqual, 2)
				So(c.Capacity(), ShouldEqual, 4)
			})
		})

		Convey("When cloning a full witness", func() {
			w := cooldown.NewWitness(cooldown.WithCapacity(2))
			w.Record("bob", base)
			w.Record("carol", base.Add(time.Minute))
			c := w.Clone()
			victim, evicted := c.Record("dave", base.Add(2*time.Minute))

			Convey("Then the copy keeps the recording order", func() {
				So(evicted, ShouldBeTrue)
				So(victim, ShouldEqual, types.Identity("bob"))
				So(w.Peers(), ShouldResemble, []types.Identity{"bob", "carol"})
			})
		})

		Convey("When round-tripping through JSON", func() {
			w := cooldown.NewWitness(cooldown.WithCapacity(8))
			for i := 0; i < 3; i++ {
				w.Record(types.Identity(fmt.Sprintf("peer-%d", i)), base.Add(time.Duration(i)*time.Second))
			}
			b, err := json.Marshal(w)
			So(err, ShouldBeNil)

			var restored cooldown.Witness
			So(json.Unmarshal(b, &restored), ShouldBeNil)

			Convey("Then entries and capacity survive", func() {
				So(restored.Len(), ShouldEqual, 3)
				So(restored.Capacity(), ShouldEqual, 8)
				at, ok := restored.Last("peer-2")
				So(ok, ShouldBeTrue)
				So(at.Equal(base.Add(2*time.Second)), ShouldBeTrue)
			})

			Convey("Then the recording order survives and drives eviction", func() {
				So(restored.Peers(), ShouldResemble, []types.Identity{"peer-0", "peer-1", "peer-2"})
				full := cooldown.NewWitness(cooldown.WithCapacity(3))
				for _, peer := range restored.Peers() {
					at, _ := restored.Last(peer)
					full.Record(peer, at)
				}
				fb, err := json.Marshal(full)
				So(err, ShouldBeNil)
				var again cooldown.Witness
				So(json.Unmarshal(fb, &again), ShouldBeNil)
				victim, evicted := again.Record("peer-3", base.Add(time.Hour))
				So(evicted, ShouldBeTrue)
				So(victim, ShouldEqual, types.Identity("peer-0"))
			})
		})
	})
}

func TestActive(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	Convey("Given a five minute cooldown", t, func() {
		interval := 5 * time.Minute

		So(cooldown.Active(base, base.Add(time.Minute), interval), ShouldBeTrue)
		So(cooldown.Active(base, base.Add(interval), interval), ShouldBeFalse)
		So(cooldown.Active(base, base.Add(time.Hour), interval), ShouldBeFalse)

		Convey("Then a clock that moved backwards is still active", func() {
			So(cooldown.Active(base, base.Add(-time.Hour), interval), ShouldBeTrue)
		})
	})
}
