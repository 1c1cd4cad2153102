package rooms

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type fakeSource struct {
	hostsWithGuests map[uuid.UUID]bool
	acceptedHosts   map[uuid.UUID][]uuid.UUID
	err             error
}

func (f *fakeSource) HasAcceptedGuests(_ context.Context, hostID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.hostsWithGuests[hostID], nil
}

func (f *fakeSource) ListAcceptedHosts(_ context.Context, guestID uuid.UUID) ([]uuid.UUID, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.acceptedHosts[guestID], nil
}

func TestResolveZeroRelationships(t *testing.T) {
	t.Parallel()
	userID := uuid.New()
	r := NewResolver(&fakeSource{})

	set, err := r.Resolve(context.Background(), userID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if set.UserRoom != UserRoom(userID) {
		t.Errorf("UserRoom: got %q, want %q", set.UserRoom, UserRoom(userID))
	}
	if set.HostRoomAsHost != "" {
		t.Errorf("HostRoomAsHost: got %q, want empty", set.HostRoomAsHost)
	}
	if len(set.HostRoomsAsGuest) != 0 {
		t.Errorf("HostRoomsAsGuest: got %v, want none", set.HostRoomsAsGuest)
	}
	if all := set.All(); len(all) != 1 || all[0] != UserRoom(userID) {
		t.Errorf("All: got %v, want just the user room", all)
	}
}

func TestResolveHostWithAcceptedGuests(t *testing.T) {
	t.Parallel()
	hostID := uuid.New()
	r := NewResolver(&fakeSource{
		hostsWithGuests: map[uuid.UUID]bool{hostID: true},
	})

	set, err := r.Resolve(context.Background(), hostID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if set.HostRoomAsHost != HostRoom(hostID) {
		t.Errorf("HostRoomAsHost: got %q, want %q", set.HostRoomAsHost, HostRoom(hostID))
	}
}

func TestResolveGuestOfSeveralHosts(t *testing.T) {
	t.Parallel()
	guestID := uuid.New()
	hostA, hostB := uuid.New(), uuid.New()
	r := NewResolver(&fakeSource{
		acceptedHosts: map[uuid.UUID][]uuid.UUID{
			guestID: {hostA, hostB},
		},
	})

	set, err := r.Resolve(context.Background(), guestID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := map[string]bool{HostRoom(hostA): true, HostRoom(hostB): true}
	if len(set.HostRoomsAsGuest) != 2 {
		t.Fatalf("HostRoomsAsGuest: got %v, want 2 rooms", set.HostRoomsAsGuest)
	}
	for _, room := range set.HostRoomsAsGuest {
		if !want[room] {
			t.Errorf("unexpected guest room %q", room)
		}
	}
}

// A user can simultaneously host their own collection and play in
// someone else's. Both memberships must resolve together.
func TestResolveHostAndGuestAtOnce(t *testing.T) {
	t.Parallel()
	userID := uuid.New()
	otherHost := uuid.New()
	r := NewResolver(&fakeSource{
		hostsWithGuests: map[uuid.UUID]bool{userID: true},
		acceptedHosts: map[uuid.UUID][]uuid.UUID{
			userID: {otherHost},
		},
	})

	set, err := r.Resolve(context.Background(), userID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	all := set.All()
	if len(all) != 3 {
		t.Fatalf("All: got %v, want 3 rooms", all)
	}
}

func TestResolvePropagatesSourceError(t *testing.T) {
	t.Parallel()
	srcErr := errors.New("db down")
	r := NewResolver(&fakeSource{err: srcErr})

	if _, err := r.Resolve(context.Background(), uuid.New()); !errors.Is(err, srcErr) {
		t.Errorf("got %v, want source error", err)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	t.Parallel()
	guestID := uuid.New()
	hostID := uuid.New()
	r := NewResolver(&fakeSource{
		acceptedHosts: map[uuid.UUID][]uuid.UUID{guestID: {hostID}},
	})

	first, err := r.Resolve(context.Background(), guestID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := r.Resolve(context.Background(), guestID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(first.All()) != len(second.All()) {
		t.Errorf("repeated resolve differs: %v vs %v", first.All(), second.All())
	}
}
