package models

import (
	"time"

	"github.com/google/uuid"
)

// LinkStatus is the lifecycle state of a host/guest relationship.
type LinkStatus string

const (
	LinkPending  LinkStatus = "pending"
	LinkAccepted LinkStatus = "accepted"
	LinkRemoved  LinkStatus = "removed"
)

// HostGuestLink connects a host (catalog owner) to a guest. At most one
// active (pending or accepted) link exists per (host, guest) pair; a
// removed link is never revived, a fresh invite inserts a new row.
type HostGuestLink struct {
	ID        uuid.UUID  `json:"id"`
	HostID    uuid.UUID  `json:"host_id"`
	GuestID   uuid.UUID  `json:"guest_id"`
	Status    LinkStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// PendingInvitation is a pending link joined with the host's public
// profile, for the guest-facing notification list.
type PendingInvitation struct {
	HostID          uuid.UUID `json:"host_id"`
	HostDisplayName string    `json:"host_display_name"`
	HostEmail       string    `json:"host_email"`
	InvitedAt       time.Time `json:"invited_at"`
}

// InvitationToken is a single-use, time-limited credential that admits
// a not-yet-registered email into a host's collection.
type InvitationToken struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	HostID    uuid.UUID `json:"host_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired returns true if the token has passed its expiration time.
// Expiry is checked at redemption; expired rows are inert, not swept.
func (t *InvitationToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}
