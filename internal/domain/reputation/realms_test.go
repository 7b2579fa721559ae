package reputation_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/okian/repdao/internal/domain/model"
	"github.com/okian/repdao/internal/domain/reputation"
	"github.com/okian/repdao/internal/domain/scoring"
	"github.com/okian/repdao/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var r1Weights = scoring.Weights{200, 150, 100, 175, 125}

func TestCreateRealm(t *testing.T) {
	Convey("Given an engine", t, func() {
		h := newHarness()

		Convey("When creating r1", func() {
			r, err := h.engine.CreateRealm(h.ctx, "admin", "r1", r1Weights)

			Convey("Then the realm carries the defaults", func() {
				So(err, ShouldBeNil)
				So(r.Admin, ShouldEqual, types.Identity("admin"))
				So(r.Algorithm.Weights, ShouldResemble, r1Weights)
				So(r.Algorithm.Version, ShouldEqual, 0)
				So(r.Algorithm.DecayEnabled, ShouldBeFalse)
				So(r.Algorithm.FocusCategory, ShouldEqual, types.Development)
				So(r.MinReputationThreshold, ShouldEqual, model.DefaultMinReputationThreshold)

				got, err := h.engine.Realm(h.ctx, "r1")
				So(err, ShouldBeNil)
				So(got, ShouldResemble, r)
			})

			Convey("Then the name cannot be reused", func() {
				_, err := h.engine.CreateRealm(h.ctx, "other", "r1", scoring.DefaultWeights())
				So(errors.Is(err, reputation.ErrDuplicateRealm), ShouldBeTrue)

				got, _ := h.engine.Realm(h.ctx, "r1")
				So(got.Admin, ShouldEqual, types.Identity("admin"))
			})
		})

		Convey("When the name is out of range", func() {
			_, errLong := h.engine.CreateRealm(h.ctx, "admin", strings.Repeat("x", model.MaxRealmNameLen+1), r1Weights)
			_, errEmpty := h.engine.CreateRealm(h.ctx, "admin", "", r1Weights)
			_, errMax := h.engine.CreateRealm(h.ctx, "admin", strings.Repeat("x", model.MaxRealmNameLen), r1Weights)

			Convey("Then only the 32-byte name is accepted", func() {
				So(errors.Is(errLong, reputation.ErrRealmNameTooLong), ShouldBeTrue)
				So(errors.Is(errEmpty, reputation.ErrRealmNameTooLong), ShouldBeTrue)
				So(errMax, ShouldBeNil)
			})
		})

		Convey("When the weights are invalid", func() {
			_, errZero := h.engine.CreateRealm(h.ctx, "admin", "zero", scoring.Weights{})
			_, errHigh := h.engine.CreateRealm(h.ctx, "admin", "high", scoring.Weights{scoring.MaxWeight + 1, 100, 100, 100, 100})

			Convey("Then the realm is refused", func() {
				So(errors.Is(errZero, reputation.ErrInvalidWeight), ShouldBeTrue)
				So(errors.Is(errZero, scoring.ErrZeroWeights), ShouldBeTrue)
				So(errors.Is(errHigh, reputation.ErrInvalidWeight), ShouldBeTrue)

				_, err := h.engine.Realm(h.ctx, "zero")
				So(errors.Is(err, reputation.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestUpdateAlgorithm(t *testing.T) {
	Convey("Given realm r1 administered by admin", t, func() {
		h := newHarness()
		_, err := h.engine.CreateRealm(h.ctx, "admin", "r1", r1Weights)
		So(err, ShouldBeNil)

		upd := reputation.AlgorithmUpdate{
			Weights:       scoring.Weights{100, 100, 300, 100, 100},
			FocusCategory: types.Community,
			DecayEnabled:  true,
			DecayPeriod:   24 * time.Hour,
		}

		Convey("When a non-admin updates it", func() {
			_, err := h.engine.UpdateAlgorithm(h.ctx, "mallory", "r1", upd)

			Convey("Then it is unauthorized and the version is unchanged", func() {
				So(errors.Is(err, reputation.ErrUnauthorized), ShouldBeTrue)
				r, _ := h.engine.Realm(h.ctx, "r1")
				So(r.Algorithm.Version, ShouldEqual, 0)
				So(r.Algorithm.Weights, ShouldResemble, r1Weights)
			})
		})

		Convey("When a non-admin sends invalid weights", func() {
			bad := upd
			bad.Weights = scoring.Weights{}
			_, err := h.engine.UpdateAlgorithm(h.ctx, "mallory", "r1", bad)

			Convey("Then authorization is reported first", func() {
				So(errors.Is(err, reputation.ErrUnauthorized), ShouldBeTrue)
			})
		})

		Convey("When the admin updates it", func() {
			r, err := h.engine.UpdateAlgorithm(h.ctx, "admin", "r1", upd)

			Convey("Then every field is replaced and the version increments", func() {
				So(err, ShouldBeNil)
				So(r.Algorithm.Version, ShouldEqual, 1)
				So(r.Algorithm.Weights, ShouldResemble, upd.Weights)
				So(r.Algorithm.FocusCategory, ShouldEqual, types.Community)
				So(r.Algorithm.DecayEnabled, ShouldBeTrue)
				So(r.Algorithm.DecayPeriod, ShouldEqual, 24*time.Hour)
			})

			Convey("Then a second update increments again", func() {
				r, err := h.engine.UpdateAlgorithm(h.ctx, "admin", "r1", upd)
				So(err, ShouldBeNil)
				So(r.Algorithm.Version, ShouldEqual, 2)
			})
		})

		Convey("When the admin sends invalid values", func() {
			focus := upd
			focus.FocusCategory = types.Category(5)
			_, errFocus := h.engine.UpdateAlgorithm(h.ctx, "admin", "r1", focus)

			decay := upd
			decay.DecayPeriod = 0
			_, errDecay := h.engine.UpdateAlgorithm(h.ctx, "admin", "r1", decay)

			weights := upd
			weights.Weights = scoring.Weights{}
			_, errWeights := h.engine.UpdateAlgorithm(h.ctx, "admin", "r1", weights)

			Convey("Then each is rejected and nothing changes", func() {
				So(errors.Is(errFocus, reputation.ErrInvalidCategory), ShouldBeTrue)
				So(errors.Is(errDecay, reputation.ErrInvalidDecayPeriod), ShouldBeTrue)
				So(errors.Is(errWeights, reputation.ErrInvalidWeight), ShouldBeTrue)

				r, _ := h.engine.Realm(h.ctx, "r1")
				So(r.Algorithm.Version, ShouldEqual, 0)
			})
		})

		Convey("When decay is disabled the period may be zero", func() {
			off := upd
			off.DecayEnabled = false
			off.DecayPeriod = 0
			r, err := h.engine.UpdateAlgorithm(h.ctx, "admin", "r1", off)

			Convey("Then the update succeeds", func() {
				So(err, ShouldBeNil)
				So(r.Algorithm.DecayEnabled, ShouldBeFalse)
			})
		})

		Convey("When the realm does not exist", func() {
			_, err := h.engine.UpdateAlgorithm(h.ctx, "admin", "r2", upd)

			Convey("Then it is not found", func() {
				So(errors.Is(err, reputation.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}
