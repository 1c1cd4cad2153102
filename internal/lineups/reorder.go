package lineups

import (
	"errors"

	"github.com/google/uuid"
)

// Reorder validation errors. A reorder that would drop a song is a
// correctness bug, not a best-effort UI action, so stale or partial
// client state is rejected outright.
var (
	ErrUnknownSongInLineup  = errors.New("order contains a song that is not in the lineup")
	ErrDuplicateSongInOrder = errors.New("order contains the same song twice")
	ErrIncompleteOrder      = errors.New("order does not include every song in the lineup")
)

// validateOrder checks that proposed is exactly a permutation of
// current. Order of checks matters for error precision: duplicates
// first, then unknown entries, then missing entries.
func validateOrder(current, proposed []uuid.UUID) error {
	known := make(map[uuid.UUID]struct{}, len(current))
	for _, id := range current {
		known[id] = struct{}{}
	}
	seen := make(map[uuid.UUID]struct{}, len(proposed))
	for _, id := range proposed {
		if _, dup := seen[id]; dup {
			return ErrDuplicateSongInOrder
		}
		seen[id] = struct{}{}
		if _, ok := known[id]; !ok {
			return ErrUnknownSongInLineup
		}
	}
	if len(proposed) < len(current) {
		return ErrIncompleteOrder
	}
	return nil
}
