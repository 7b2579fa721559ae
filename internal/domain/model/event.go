package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/okian/repdao/internal/domain/types"
	"golang.org/x/crypto/sha3"
)

// InteractionEvent is the immutable record of one accepted interaction.
type InteractionEvent struct {
	ID               uuid.UUID             `json:"id"`
	From             types.Identity        `json:"from"`
	To               types.Identity        `json:"to"`
	Type             types.InteractionType `json:"type"`
	BasePoints       uint32                `json:"base_points"`
	Note             string                `json:"note"`
	NoteDigest       [32]byte              `json:"note_digest"` // keccak-256 of Note
	Category         types.Category        `json:"category"`
	Delta            uint64                `json:"delta"`
	Realm            string                `json:"realm,omitempty"` // empty for the default algorithm
	AlgorithmVersion uint64                `json:"algorithm_version"`
	Timestamp        time.Time             `json:"timestamp"`
}

// NoteDigest hashes a note with Keccak-256.
func NoteDigest(note string) [32]byte {
	var out [32]byte
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(note))
	copy(out[:], h.Sum(nil))
	return out
}
