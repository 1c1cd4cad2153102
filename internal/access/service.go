package access

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aria-setlist/backend/internal/models"
	"github.com/aria-setlist/backend/pkg/queue"
	"github.com/aria-setlist/backend/pkg/utils"
)

// UserDirectory resolves users by id or email. Find* return nil (not an
// error) when no user matches.
type UserDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// EmailEnqueuer dispatches invitation email jobs. Delivery is
// best-effort relative to the already-committed token.
type EmailEnqueuer interface {
	EnqueueInvitationEmail(ctx context.Context, payload queue.InvitationEmailPayload) error
}

// RedemptionStatus tells the client what to do after probing a token.
type RedemptionStatus string

const (
	// RedemptionPendingApproval: the email maps to an existing account, a
	// pending link now exists, the invitee logs in and accepts.
	RedemptionPendingApproval RedemptionStatus = "pending_approval"
	// RedemptionNeedsRegistration: no account for this email yet; the
	// client pre-fills registration with the carried email and host.
	RedemptionNeedsRegistration RedemptionStatus = "needs_registration"
)

// RedemptionResult is the outcome of redeeming an invitation token.
type RedemptionResult struct {
	Status RedemptionStatus `json:"status"`
	Email  string           `json:"email"`
	HostID uuid.UUID        `json:"host_id"`
}

// EmailInviteResult is the outcome of an invite-by-email request.
type EmailInviteResult struct {
	// InvitedDirectly is true when the email matched an existing account
	// and a pending link was created without a token.
	InvitedDirectly bool       `json:"invited_directly"`
	GuestID         *uuid.UUID `json:"guest_id,omitempty"`
}

// Service enforces the admission rules around host/guest links and
// invitation tokens. It is the only gate between room-membership
// computation and raw relationship rows.
type Service struct {
	store    Store
	users    UserDirectory
	emails   EmailEnqueuer
	tokenTTL time.Duration
	logger   *zap.Logger
}

// NewService creates the access-control service. emails may be nil when
// no mail dispatch is configured; invite-by-email then still persists
// the token.
func NewService(store Store, users UserDirectory, emails EmailEnqueuer, tokenTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, users: users, emails: emails, tokenTTL: tokenTTL, logger: logger}
}

// Invite creates a fresh pending link from host to artist.
func (s *Service) Invite(ctx context.Context, hostID, artistID uuid.UUID) (*models.HostGuestLink, error) {
	if hostID == artistID {
		return nil, ErrSelfInvite
	}
	artist, err := s.users.FindByID(ctx, artistID)
	if err != nil {
		return nil, err
	}
	if artist == nil {
		return nil, ErrArtistNotFound
	}
	// CreateLink is atomic against concurrent invites: the store's
	// uniqueness enforcement reports ErrAlreadyLinked for an active pair.
	return s.store.CreateLink(ctx, hostID, artistID)
}

// Uninvite severs the host's active link to the artist.
func (s *Service) Uninvite(ctx context.Context, hostID, artistID uuid.UUID) error {
	removed, err := s.store.RemoveActiveLink(ctx, hostID, artistID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotLinked
	}
	return nil
}

// LeaveCollection is guest-initiated severance. With a host id it
// removes only that link; with nil it removes every active link where
// the caller is guest. Returns the host ids whose links were severed so
// the caller can notify them.
func (s *Service) LeaveCollection(ctx context.Context, guestID uuid.UUID, hostID *uuid.UUID) ([]uuid.UUID, error) {
	if hostID != nil {
		removed, err := s.store.RemoveActiveLink(ctx, *hostID, guestID)
		if err != nil {
			return nil, err
		}
		if !removed {
			return nil, ErrNotAGuestOfHost
		}
		return []uuid.UUID{*hostID}, nil
	}
	hosts, err := s.store.ListActiveHosts(ctx, guestID)
	if err != nil {
		return nil, err
	}
	n, err := s.store.RemoveAllGuestLinks(ctx, guestID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotAGuest
	}
	return hosts, nil
}

// ListPendingForGuest returns the caller's pending invitations.
func (s *Service) ListPendingForGuest(ctx context.Context, guestID uuid.UUID) ([]models.PendingInvitation, error) {
	return s.store.ListPendingForGuest(ctx, guestID)
}

// AcceptInvitation transitions the exact (host, guest) pending link to
// accepted. Exact-match only: with several invitations pending, a guest
// must name which host they are accepting.
func (s *Service) AcceptInvitation(ctx context.Context, guestID, hostID uuid.UUID) error {
	return s.transitionPending(ctx, guestID, hostID, models.LinkAccepted)
}

// RejectInvitation transitions the exact (host, guest) pending link to removed.
func (s *Service) RejectInvitation(ctx context.Context, guestID, hostID uuid.UUID) error {
	return s.transitionPending(ctx, guestID, hostID, models.LinkRemoved)
}

func (s *Service) transitionPending(ctx context.Context, guestID, hostID uuid.UUID, status models.LinkStatus) error {
	ok, err := s.store.SetPendingStatus(ctx, hostID, guestID, status)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoPendingInvitation
	}
	return nil
}

// SendInvitationByEmail invites by email address. An existing account
// is invited directly; an unknown email gets a single-use token and an
// invitation mail. The token is persisted before the mail job is
// enqueued, and a dispatch failure does not roll it back.
func (s *Service) SendInvitationByEmail(ctx context.Context, hostID uuid.UUID, email string) (*EmailInviteResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	host, err := s.users.FindByID(ctx, hostID)
	if err != nil {
		return nil, err
	}
	if host != nil && strings.EqualFold(host.Email, email) {
		return nil, ErrSelfInvite
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if _, err := s.Invite(ctx, hostID, existing.ID); err != nil {
			return nil, err
		}
		id := existing.ID
		return &EmailInviteResult{InvitedDirectly: true, GuestID: &id}, nil
	}

	raw, err := utils.GenerateURLToken(32)
	if err != nil {
		return nil, err
	}
	token := &models.InvitationToken{
		Token:     raw,
		Email:     email,
		HostID:    hostID,
		ExpiresAt: time.Now().Add(s.tokenTTL),
	}
	if err := s.store.CreateToken(ctx, token); err != nil {
		return nil, err
	}

	if s.emails != nil {
		hostName := ""
		if host != nil {
			hostName = host.DisplayName
		}
		payload := queue.InvitationEmailPayload{
			Token:          raw,
			HostID:         hostID,
			HostName:       hostName,
			RecipientEmail: email,
		}
		if err := s.emails.EnqueueInvitationEmail(ctx, payload); err != nil {
			// Persist first, notify best-effort: the token stays valid.
			s.logger.Error("invitation email enqueue failed",
				zap.String("recipient", email), zap.Error(err))
		}
	}
	return &EmailInviteResult{InvitedDirectly: false}, nil
}

// RedeemInvitation resolves a token. For an existing account it marks
// the token used and creates the pending link; for an unknown email it
// leaves the token live and tells the client to register first (the
// post-registration flow redeems the same token again).
func (s *Service) RedeemInvitation(ctx context.Context, token string) (*RedemptionResult, error) {
	t, err := s.store.GetToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if t == nil || t.Used || t.IsExpired() {
		return nil, ErrInvalidOrExpiredToken
	}

	user, err := s.users.FindByEmail(ctx, t.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return &RedemptionResult{
			Status: RedemptionNeedsRegistration,
			Email:  t.Email,
			HostID: t.HostID,
		}, nil
	}

	if err := s.store.MarkTokenUsed(ctx, t.Token); err != nil {
		return nil, err
	}
	if _, err := s.store.CreateLink(ctx, t.HostID, user.ID); err != nil && err != ErrAlreadyLinked {
		return nil, err
	}
	return &RedemptionResult{
		Status: RedemptionPendingApproval,
		Email:  t.Email,
		HostID: t.HostID,
	}, nil
}

// CheckIfGuest returns the host ids the user is an accepted guest of.
func (s *Service) CheckIfGuest(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return s.store.ListAcceptedHosts(ctx, userID)
}

// CheckIfHost reports whether the user hosts at least one accepted guest.
func (s *Service) CheckIfHost(ctx context.Context, userID uuid.UUID) (bool, error) {
	return s.store.HasAcceptedGuests(ctx, userID)
}

// ConnectedToMe returns the caller's accepted guests.
func (s *Service) ConnectedToMe(ctx context.Context, hostID uuid.UUID) ([]models.UserPublic, error) {
	return s.store.ListAcceptedGuests(ctx, hostID)
}

// MyCollection returns the hosts the caller is an accepted guest of.
func (s *Service) MyCollection(ctx context.Context, guestID uuid.UUID) ([]models.UserPublic, error) {
	return s.store.ListAcceptedHostUsers(ctx, guestID)
}
