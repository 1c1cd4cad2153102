// Package rooms derives broadcast-room membership from access-control
// state. Rooms are logical channel names, never persisted; staleness is
// resolved whenever a connection re-announces itself.
package rooms

import (
	"context"

	"github.com/google/uuid"
)

// Room name scheme. The hub treats room names as opaque strings; this
// package owns the scheme.
const (
	userPrefix   = "user:"
	hostPrefix   = "host:"
	lineupPrefix = "lineup:"
)

// UserRoom is the room addressed to one specific account.
func UserRoom(userID uuid.UUID) string { return userPrefix + userID.String() }

// HostRoom is the room for everyone viewing a host's shared catalog.
func HostRoom(hostID uuid.UUID) string { return hostPrefix + hostID.String() }

// LineupRoom is the room for one lineup's open-detail viewers.
func LineupRoom(lineupID uuid.UUID) string { return lineupPrefix + lineupID.String() }

// MembershipSource is the slice of access-control state the resolver reads.
type MembershipSource interface {
	HasAcceptedGuests(ctx context.Context, hostID uuid.UUID) (bool, error)
	ListAcceptedHosts(ctx context.Context, guestID uuid.UUID) ([]uuid.UUID, error)
}

// Set is the rooms a connection should join at announce time. Lineup
// rooms are not part of the set; clients join those on demand when they
// open a lineup view.
type Set struct {
	UserRoom         string
	HostRoomAsHost   string // empty when the user hosts no accepted guests
	HostRoomsAsGuest []string
}

// All returns every room in the set.
func (s Set) All() []string {
	out := make([]string, 0, 2+len(s.HostRoomsAsGuest))
	out = append(out, s.UserRoom)
	if s.HostRoomAsHost != "" {
		out = append(out, s.HostRoomAsHost)
	}
	out = append(out, s.HostRoomsAsGuest...)
	return out
}

// Resolver computes room membership for a user id. Resolve is a pure
// read with no side effects, safe to call on every reconnect.
type Resolver struct {
	source MembershipSource
}

// NewResolver creates a room membership resolver.
func NewResolver(source MembershipSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the rooms the user's connection should join: always
// the user room, the own host room when the user has at least one
// accepted guest, and one host room per accepted guest link. Pending
// links grant nothing. A user with zero relationships resolves to just
// their user room, never an error.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) (Set, error) {
	set := Set{UserRoom: UserRoom(userID)}

	isHost, err := r.source.HasAcceptedGuests(ctx, userID)
	if err != nil {
		return Set{}, err
	}
	if isHost {
		set.HostRoomAsHost = HostRoom(userID)
	}

	hosts, err := r.source.ListAcceptedHosts(ctx, userID)
	if err != nil {
		return Set{}, err
	}
	for _, h := range hosts {
		set.HostRoomsAsGuest = append(set.HostRoomsAsGuest, HostRoom(h))
	}
	return set, nil
}
