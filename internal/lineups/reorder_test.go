package lineups

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func TestValidateOrderAcceptsPermutation(t *testing.T) {
	t.Parallel()
	current := ids(4)

	proposed := []uuid.UUID{current[2], current[0], current[3], current[1]}
	if err := validateOrder(current, proposed); err != nil {
		t.Errorf("permutation rejected: %v", err)
	}
}

func TestValidateOrderAcceptsIdentity(t *testing.T) {
	t.Parallel()
	current := ids(3)
	if err := validateOrder(current, current); err != nil {
		t.Errorf("identity order rejected: %v", err)
	}
}

func TestValidateOrderEmptyLineup(t *testing.T) {
	t.Parallel()
	if err := validateOrder(nil, nil); err != nil {
		t.Errorf("empty order on empty lineup rejected: %v", err)
	}
}

func TestValidateOrderRejectsDuplicate(t *testing.T) {
	t.Parallel()
	current := ids(3)

	proposed := []uuid.UUID{current[0], current[1], current[1]}
	if err := validateOrder(current, proposed); !errors.Is(err, ErrDuplicateSongInOrder) {
		t.Errorf("got %v, want ErrDuplicateSongInOrder", err)
	}
}

func TestValidateOrderRejectsUnknown(t *testing.T) {
	t.Parallel()
	current := ids(2)

	proposed := []uuid.UUID{current[0], current[1], uuid.New()}
	if err := validateOrder(current, proposed); !errors.Is(err, ErrUnknownSongInLineup) {
		t.Errorf("got %v, want ErrUnknownSongInLineup", err)
	}
}

func TestValidateOrderRejectsIncomplete(t *testing.T) {
	t.Parallel()
	current := ids(3)

	proposed := []uuid.UUID{current[0], current[2]}
	if err := validateOrder(current, proposed); !errors.Is(err, ErrIncompleteOrder) {
		t.Errorf("got %v, want ErrIncompleteOrder", err)
	}
}

// A duplicated entry can make the proposal the right length while still
// dropping a song. The duplicate check must win over the length check.
func TestValidateOrderDuplicateMasksMissing(t *testing.T) {
	t.Parallel()
	current := ids(3)

	proposed := []uuid.UUID{current[0], current[1], current[1]}
	if err := validateOrder(current, proposed); !errors.Is(err, ErrDuplicateSongInOrder) {
		t.Errorf("got %v, want ErrDuplicateSongInOrder", err)
	}
}

// An unknown id reported before the incomplete check: stale client
// state referencing a removed song should say so, not report a count
// mismatch.
func TestValidateOrderUnknownBeforeIncomplete(t *testing.T) {
	t.Parallel()
	current := ids(3)

	proposed := []uuid.UUID{current[0], uuid.New()}
	if err := validateOrder(current, proposed); !errors.Is(err, ErrUnknownSongInLineup) {
		t.Errorf("got %v, want ErrUnknownSongInLineup", err)
	}
}
