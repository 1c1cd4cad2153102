package access

import "errors"

// Domain errors for the host/guest admission rules. Handlers map these
// to 4xx responses; they are never retried automatically.
var (
	ErrSelfInvite            = errors.New("cannot invite yourself")
	ErrAlreadyLinked         = errors.New("artist is already invited or connected")
	ErrArtistNotFound        = errors.New("artist not found")
	ErrNotLinked             = errors.New("no active link with this artist")
	ErrNotAGuest             = errors.New("not a guest of any collection")
	ErrNotAGuestOfHost       = errors.New("not a guest of this host")
	ErrNoPendingInvitation   = errors.New("no pending invitation from this host")
	ErrInvalidEmail          = errors.New("invalid email address")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired invitation token")
)
