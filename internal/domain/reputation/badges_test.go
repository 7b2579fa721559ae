package reputation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/repdao/internal/domain/model"
	"github.com/okian/repdao/internal/domain/reputation"
	"github.com/okian/repdao/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var proof = [32]byte{0xde, 0xad, 0xbe, 0xef}

type rejectingVerifier struct{ calls int }

func (v *rejectingVerifier) VerifyProof(context.Context, types.Identity, types.BadgeType, [32]byte) error {
	v.calls++
	return errors.New("signature mismatch")
}

func TestClaimBadge(t *testing.T) {
	Convey("Given alice", t, func() {
		h := newHarness()
		h.init("alice")

		Convey("When she claims the developer badge", func() {
			p, err := h.engine.ClaimBadge(h.ctx, "alice", types.BadgeDeveloper, proof)

			Convey("Then the first slot holds it and the bonus is credited", func() {
				So(err, ShouldBeNil)
				So(p.Badges[0].Type, ShouldEqual, types.BadgeDeveloper)
				So(p.Badges[0].ProofDigest, ShouldResemble, proof)
				So(p.Badges[0].ClaimedAt.Equal(t0), ShouldBeTrue)
				So(p.CategoryScores[types.Development], ShouldEqual, reputation.DefaultBadgeBonus)
				So(p.TotalScore, ShouldEqual, reputation.DefaultBadgeBonus)
				So(p.BadgeCount(), ShouldEqual, 1)
			})

			Convey("Then claiming it again is a duplicate", func() {
				_, err := h.engine.ClaimBadge(h.ctx, "alice", types.BadgeDeveloper, proof)
				So(errors.Is(err, reputation.ErrDuplicateBadge), ShouldBeTrue)
				So(h.profile("alice").BadgeCount(), ShouldEqual, 1)
			})

			Convey("Then another badge takes the next slot and its own category", func() {
				p, err := h.engine.ClaimBadge(h.ctx, "alice", types.BadgeSecurityAuditor, proof)
				So(err, ShouldBeNil)
				So(p.Badges[1].Type, ShouldEqual, types.BadgeSecurityAuditor)
				So(p.CategoryScores[types.Leadership], ShouldEqual, reputation.DefaultBadgeBonus)
				So(p.TotalScore, ShouldEqual, 2*reputation.DefaultBadgeBonus)
			})
		})

		Convey("When every badge type is claimed", func() {
			for b := types.BadgeDeveloper; b <= types.BadgeCustom; b++ {
				_, err := h.engine.ClaimBadge(h.ctx, "alice", b, proof)
				So(err, ShouldBeNil)
			}

			Convey("Then all ten slots are in use", func() {
				p := h.profile("alice")
				So(p.BadgeCount(), ShouldEqual, model.BadgeCapacity)
				So(p.FreeBadgeSlot(), ShouldEqual, -1)
			})
		})

		Convey("When the slots are full of other badges", func() {
			h.mutate("alice", func(p *model.ReputationProfile) {
				for i := range p.Badges {
					p.Badges[i] = model.Badge{Type: types.BadgeCustom, ProofDigest: proof}
				}
			})
			_, err := h.engine.ClaimBadge(h.ctx, "alice", types.BadgeMentor, proof)

			Convey("Then the claim fails with no free slot", func() {
				So(errors.Is(err, reputation.ErrBadgeSlotFull), ShouldBeTrue)
				So(h.profile("alice").TotalScore, ShouldEqual, 0)
			})
		})

		Convey("When the input is invalid", func() {
			_, errNone := h.engine.ClaimBadge(h.ctx, "alice", types.BadgeNone, proof)
			_, errHigh := h.engine.ClaimBadge(h.ctx, "alice", types.BadgeType(11), proof)
			_, errProof := h.engine.ClaimBadge(h.ctx, "alice", types.BadgeMentor, [32]byte{})
			_, errGhost := h.engine.ClaimBadge(h.ctx, "ghost", types.BadgeMentor, proof)

			Convey("Then each is rejected", func() {
				So(errors.Is(errNone, reputation.ErrInvalidBadgeType), ShouldBeTrue)
				So(errors.Is(errHigh, reputation.ErrInvalidBadgeType), ShouldBeTrue)
				So(errors.Is(errProof, reputation.ErrInvalidProof), ShouldBeTrue)
				So(errors.Is(errGhost, reputation.ErrNotFound), ShouldBeTrue)
				So(h.profile("alice").BadgeCount(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a verifier that rejects every proof", t, func() {
		v := &rejectingVerifier{}
		h := newHarness(reputation.WithProofVerifier(v))
		h.init("alice")

		Convey("When alice claims a badge", func() {
			_, err := h.engine.ClaimBadge(h.ctx, "alice", types.BadgeMentor, proof)

			Convey("Then the proof is invalid", func() {
				So(errors.Is(err, reputation.ErrInvalidProof), ShouldBeTrue)
				So(v.calls, ShouldEqual, 1)
				So(h.profile("alice").BadgeCount(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a zero badge bonus", t, func() {
		h := newHarness(reputation.WithBadgeBonus(0))
		h.init("alice")

		Convey("When alice claims a badge", func() {
			p, err := h.engine.ClaimBadge(h.ctx, "alice", types.BadgeInnovation, proof)

			Convey("Then no score is credited", func() {
				So(err, ShouldBeNil)
				So(p.TotalScore, ShouldEqual, 0)
				So(p.HasBadge(types.BadgeInnovation), ShouldBeTrue)
			})
		})
	})
}
