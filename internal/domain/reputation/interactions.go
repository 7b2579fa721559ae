package reputation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/repdao/internal/domain/cooldown"
	"github.com/okian/repdao/internal/domain/model"
	"github.com/okian/repdao/internal/domain/scoring"
	"github.com/okian/repdao/internal/domain/store"
	"github.com/okian/repdao/internal/domain/types"
	"github.com/okian/repdao/pkg/logger"
	"github.com/okian/repdao/pkg/metrics"
)

// MaxNoteLen bounds an interaction note in bytes.
const MaxNoteLen = 256

// InteractionRequest is the caller-supplied part of an interaction.
type InteractionRequest struct {
	To         types.Identity
	Type       types.InteractionType
	BasePoints uint32
	Note       string
	// Realm selects the algorithm; empty uses the neutral default.
	Realm string
}

// InteractionResult is the committed event and both updated profiles.
type InteractionResult struct {
	Event model.InteractionEvent     `json:"event"`
	From  *model.ReputationProfile `json:"from"`
	To    *model.ReputationProfile `json:"to"`
}

func validateInteraction(from types.Identity, req InteractionRequest) error {
	if from == req.To {
		return fmt.Errorf("%w: %q", ErrSelfInteractionForbidden, from)
	}
	if from == "" || req.To == "" {
		return ErrInvalidIdentity
	}
	if !req.Type.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidInteractionType, req.Type)
	}
	if req.BasePoints < scoring.MinBasePoints || req.BasePoints > scoring.MaxBasePoints {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidPoints, req.BasePoints, scoring.MinBasePoints, scoring.MaxBasePoints)
	}
	if len(req.Note) > MaxNoteLen {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrNoteTooLong, len(req.Note), MaxNoteLen)
	}
	return nil
}

// RecordInteraction credits req.To for an interaction sent by from.
//
// The ordered pair (from, to) is rate limited by a cooldown that depends on
// the interaction type. The sender's witness answers the common case; when
// it has no entry for the recipient the event log is consulted.
func (e *Engine) RecordInteraction(ctx context.Context, from types.Identity, req InteractionRequest) (res *InteractionResult, err error) {
	defer e.observe(ctx, opRecordInteraction, time.Now(), &err)

	if err := validateInteraction(from, req); err != nil {
		return nil, err
	}
	id, err := e.newID()
	if err != nil {
		return nil, fmt.Errorf("generate event id: %w", err)
	}

	keys := []string{store.ProfileKey(from), store.ProfileKey(req.To)}
	if req.Realm != "" {
		keys = append(keys, store.RealmKey(req.Realm))
	}

	now := e.now()
	var saturated bool
	err = e.store.Update(ctx, keys, func(tx store.Tx) error {
		algo := model.DefaultAlgorithm()
		if req.Realm != "" {
			realm, err := loadRealm(tx, req.Realm)
			if err != nil {
				return err
			}
			algo = realm.Algorithm
		}

		sender, err := loadProfile(tx, from)
		if err != nil {
			return err
		}
		recipient, err := loadProfile(tx, req.To)
		if err != nil {
			return err
		}

		interval := e.tiers.For(req.Type)
		last, seen := sender.Cooldowns.Last(req.To)
		if !seen {
			last, seen = tx.LastInteraction(from, req.To)
		}
		if seen && cooldown.Active(last, now, interval) {
			return fmt.Errorf("%w: %q -> %q until %s", ErrCooldownActive, from, req.To, last.Add(interval).Format(time.RFC3339))
		}

		scored, err := scoring.Score(scoring.Input{Type: req.Type, BasePoints: req.BasePoints, Weights: algo.Weights})
		if err != nil {
			return err
		}

		saturated = recipient.TotalScore > math.MaxUint64-scored.Delta ||
			recipient.CategoryScores[scored.Category] > math.MaxUint64-scored.Delta
		recipient.Credit(scored.Category, scored.Delta)
		recipient.InteractionCount = scoring.SaturatingInc32(recipient.InteractionCount)
		recipient.LastActivityAt = now
		recipient.Version++

		if sender.Cooldowns == nil {
			sender.Cooldowns = cooldown.NewWitness(cooldown.WithCapacity(e.witnessCapacity))
		}
		if evicted, ok := sender.Cooldowns.Record(req.To, now); ok {
			e.log.Debug(ctx, "cooldown witness evicted", logger.String("owner", string(from)), logger.String("peer", string(evicted)))
		}
		sender.InteractionCount = scoring.SaturatingInc32(sender.InteractionCount)
		sender.LastActivityAt = now
		sender.Version++

		event := model.InteractionEvent{
			ID:               id,
			From:             from,
			To:               req.To,
			Type:             req.Type,
			BasePoints:       req.BasePoints,
			Note:             req.Note,
			NoteDigest:       model.NoteDigest(req.Note),
			Category:         scored.Category,
			Delta:            scored.Delta,
			Realm:            req.Realm,
			AlgorithmVersion: algo.Version,
			Timestamp:        now,
		}
		if err := tx.AppendEvent(event); err != nil {
			return err
		}
		res = &InteractionResult{Event: event, From: sender.Clone(), To: recipient.Clone()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordScoreDelta(res.Event.Category.String(), float64(res.Event.Delta))
	if saturated {
		metrics.RecordScoreSaturation()
		e.log.Warn(ctx, "score saturated", logger.String("owner", string(req.To)))
	}

	event := res.Event
	e.publish(ctx, model.Change{
		Kind:     model.ChangeInteraction,
		Event:    &event,
		Profiles: snapshots(res.From, res.To),
		At:       now,
	})
	return res, nil
}
