package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aria-setlist/backend/internal/models"
)

const testTokenTTL = 7 * 24 * time.Hour

func newTestService(store *memoryStore, emails EmailEnqueuer) *Service {
	return NewService(store, store, emails, testTokenTTL, nil)
}

func TestInviteCreatesPendingLink(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	host := store.addUser("host@example.com", "Host")
	artist := store.addUser("artist@example.com", "Artist")
	svc := newTestService(store, nil)

	link, err := svc.Invite(context.Background(), host.ID, artist.ID)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if link.Status != models.LinkPending {
		t.Errorf("status: got %s, want pending", link.Status)
	}

	pending, err := svc.ListPendingForGuest(context.Background(), artist.ID)
	if err != nil {
		t.Fatalf("ListPendingForGuest: %v", err)
	}
	if len(pending) != 1 || pending[0].HostID != host.ID {
		t.Errorf("pending list: got %v, want the host's invitation", pending)
	}
}

func TestInviteSelfRejected(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	host := store.addUser("host@example.com", "Host")
	svc := newTestService(store, nil)

	if _, err := svc.Invite(context.Background(), host.ID, host.ID); !errors.Is(err, ErrSelfInvite) {
		t.Errorf("got %v, want ErrSelfInvite", err)
	}
}

func TestInviteUnknownArtist(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	host := store.addUser("host@example.com", "Host")
	svc := newTestService(store, nil)

	if _, err := svc.Invite(context.Background(), host.ID, uuid.New()); !errors.Is(err, ErrArtistNotFound) {
		t.Errorf("got %v, want ErrArtistNotFound", err)
	}
}

func TestInviteWhileActiveLinkExists(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	host := store.addUser("host@example.com", "Host")
	artist := store.addUser("artist@example.com", "Artist")
	svc := newTestService(store, nil)
	ctx := context.Background()

	if _, err := svc.Invite(ctx, host.ID, artist.ID); err != nil {
		t.Fatalf("first invite: %v", err)
	}
	if _, err := svc.Invite(ctx, host.ID, artist.ID); !errors.Is(err, ErrAlreadyLinked) {
		t.Errorf("pending duplicate: got %v, want ErrAlreadyLinked", err)
	}

	if err := svc.AcceptInvitation(ctx, artist.ID, host.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.Invite(ctx, host.ID, artist.ID); !errors.Is(err, ErrAlreadyLinked) {
		t.Errorf("accepted duplicate: got %v, want ErrAlreadyLinked", err)
	}
}

func TestUninviteThenReinvite(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	host := store.addUser("host@example.com", "Host")
	artist := store.addUser("artist@example.com", "Artist")
	svc := newTestService(store, nil)
	ctx := context.Background()

	if _, err := svc.Invite(ctx, host.ID, artist.ID); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := svc.AcceptInvitation(ctx, artist.ID, host.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := svc.Uninvite(ctx, host.ID, artist.ID); err != nil {
		t.Fatalf("uninvite: %v", err)
	}

	hosts, err := svc.CheckIfGuest(ctx, artist.ID)
	if err != nil {
		t.Fatalf("CheckIfGuest: %v", err)
	}
	if len(hosts) != 0 {
		t.Errorf("still a guest after uninvite: %v", hosts)
	}

	// A removed link does not block a fresh invitation.
	link, err := svc.Invite(ctx, host.ID, artist.ID)
	if err != nil {
		t.Fatalf("reinvite: %v", err)
	}
	if link.Status != models.LinkPending {
		t.Errorf("reinvite status: got %s, want pending", link.Status)
	}
}

func TestUninviteWithoutLink(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	host := store.addUser("host@example.com", "Host")
	artist := store.addUser("artist@example.com", "Artist")
	svc := newTestService(store, nil)

	if err := svc.Uninvite(context.Background(), host.ID, artist.ID); !errors.Is(err, ErrNotLinked) {
		t.Errorf("got %v, want ErrNotLinked", err)
	}
}

func TestAcceptRequiresExactHost(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	hostA := store.addUser("a@example.com", "A")
	hostB := store.addUser("b@example.com", "B")
	artist := store.addUser("artist@example.com", "Artist")
	svc := newTestService(store, nil)
	ctx := context.Background()

	if _, err := svc.Invite(ctx, hostA.ID, artist.ID); err != nil {
		t.Fatalf("invite: %v", err)
	}

	// Accepting against a host with no pending invitation fails and
	// leaves host A's invitation untouched.
	if err := svc.AcceptInvitation(ctx, artist.ID, hostB.ID); !errors.Is(err, ErrNoPendingInvitation) {
		t.Errorf("got %v, want ErrNoPendingInvitation", err)
	}
	pending, _ := svc.ListPendingForGuest(ctx, artist.ID)
	if len(pending) != 1 {
		t.Errorf("pending after wrong accept: got %d, want 1", len(pending))
	}

	if err := svc.AcceptInvitation(ctx, artist.ID, hostA.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	hosts, _ := svc.CheckIfGuest(ctx, artist.ID)
	if len(hosts) != 1 || hosts[0] != hostA.ID {
		t.Errorf("accepted hosts: got %v, want [%s]", hosts, hostA.ID)
	}
}

func TestRejectInvitation(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	host := store.addUser("host@example.com", "Host")
	artist := store.addUser("artist@example.com", "Artist")
	svc := newTestService(store, nil)
	ctx := context.Background()

	if _, err := svc.Invite(ctx, host.ID, artist.ID); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := svc.RejectInvitation(ctx, artist.ID, host.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	// Rejection is not acceptance: no membership, and a second
	// transition on the same invitation finds nothing pending.
	hosts, _ := svc.CheckIfGuest(ctx, artist.ID)
	if len(hosts) != 0 {
		t.Errorf("guest after reject: %v", hosts)
	}
	if err := svc.AcceptInvitation(ctx, artist.ID, host.ID); !errors.Is(err, ErrNoPendingInvitation) {
		t.Errorf("accept after reject: got %v, want ErrNoPendingInvitation", err)
	}
}

func TestLeaveCollectionSingleHost(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	hostA := store.addUser("a@example.com", "A")
	hostB := store.addUser("b@example.com", "B")
	artist := store.addUser("artist@example.com", "Artist")
	svc := newTestService(store, nil)
	ctx := context.Background()

	for _, h := range []uuid.UUID{hostA.ID, hostB.ID} {
		if _, err := svc.Invite(ctx, h, artist.ID); err != nil {
			t.Fatalf("invite: %v", err)
		}
		if err := svc.AcceptInvitation(ctx, artist.ID, h); err != nil {
			t.Fatalf("accept: %v", err)
		}
	}

	affected, err := svc.LeaveCollection(ctx, artist.ID, &hostA.ID)
	if err != nil {
		t.Fatalf("LeaveCollection: %v", err)
	}
	if len(affected) != 1 || affected[0] != hostA.ID {
		t.Errorf("affected: got %v, want [%s]", affected, hostA.ID)
	}

	hosts, _ := svc.CheckIfGuest(ctx, artist.ID)
	if len(hosts) != 1 || hosts[0] != hostB.ID {
		t.Errorf("remaining hosts: got %v, want [%s]", hosts, hostB.ID)
	}
}

func TestLeaveCollectionAll(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	hostA := store.addUser("a@example.com", "A")
	hostB := store.addUser("b@example.com", "B")
	artist := store.addUser("artist@example.com", "Artist")
	svc := newTestService(store, nil)
	ctx := context.Background()

	for _, h := range []uuid.UUID{hostA.ID, hostB.ID} {
		if _, err := svc.Invite(ctx, h, artist.ID); err != nil {
			t.Fatalf("invite: %v", err)
		}
	}
	if err := svc.AcceptInvitation(ctx, artist.ID, hostA.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Leave-all severs accepted and pending links alike.
	affected, err := svc.LeaveCollection(ctx, artist.ID, nil)
	if err != nil {
		t.Fatalf("LeaveCollection: %v", err)
	}
	if len(affected) != 2 {
		t.Errorf("affected: got %v, want both hosts", affected)
	}
	if hosts, _ := svc.CheckIfGuest(ctx, artist.ID); len(hosts) != 0 {
		t.Errorf("hosts after leave-all: %v", hosts)
	}
	if pending, _ := svc.ListPendingForGuest(ctx, artist.ID); len(pending) != 0 {
		t.Errorf("pending after leave-all: %v", pending)
	}
}

func TestLeaveCollectionNotAGuest(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	artist := store.addUser("artist@example.com", "Artist")
	svc := newTestService(store, nil)

	if _, err := svc.LeaveCollection(context.Background(), artist.ID, nil); !errors.Is(err, ErrNotAGuest) {
		t.Errorf("got %v, want ErrNotAGuest", err)
	}
}

func TestSendInvitationExistingAccount(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	host := store.addUser("host@example.com", "Host")
	artist := store.addUser("artist@example.com", "Artist")
	emails := &captureEnqueuer{}
	svc := newTestService(store, emails)

	res, err := svc.SendInvitationByEmail(context.Background(), host.ID, "Artist@Example.com")
	if err != nil {
		t.Fatalf("SendInvitationByEmail: %v", err)
	}
	if !res.InvitedDirectly || res.GuestID == nil || *res.GuestID != artist.ID {
		t.Errorf("result: got %+v, want direct invite of %s", res, artist.ID)
	}
	if len(emails.jobs) != 0 {
		t.Errorf("mail enqueued for an existing account: %v", emails.jobs)
	}
	if pending, _ := svc.ListPendingForGuest(context.Background(), artist.ID); len(pending) != 1 {
		t.Errorf("pending: got %d, want 1", len(pending))
	}
}

func TestSendInvitationUnknownEmail(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	host := store.addUser("host@example.com", "Host")
	emails := &captureEnqueuer{}
	svc := newTestService(store, emails)

	res, err := svc.SendInvitationByEmail(context.Background(), host.ID, "new@example.com")
	if err != nil {
		t.Fatalf("SendInvitationByEmail: %v", err)
	}
	if res.InvitedDirectly {
		t.Error("unknown email reported as direct invite")
	}
	if len(emails.jobs) != 1 {
		t.Fatalf("jobs: got %d, want 1", len(emails.jobs))
	}
	job := emails.jobs[0]
	if job.RecipientEmail != "new@example.com" || job.HostID != host.ID || job.HostName != "Host" {
		t.Errorf("job payload: %+v", job)
	}
	if job.Token == "" {
		t.Error("job carries no token")
	}
	tok, err := store.GetToken(context.Background(), job.Token)
	if err != nil || tok == nil {
		t.Fatalf("token not persisted: %v", err)
	}
	if tok.Used {
		t.Error("fresh token already marked used")
	}
}

func TestSendInvitationPersistsDespiteEnqueueFailure(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	host := store.addUser("host@example.com", "Host")
	emails := &captureEnqueuer{err: errors.New("redis down")}
	svc := newTestService(store, emails)

	res, err := svc.SendInvitationByEmail(context.Background(), host.ID, "new@example.com")
	if err != nil {
		t.Fatalf("SendInvitationByEmail: %v", err)
	}
	if res.InvitedDirectly {
		t.Error("unexpected direct invite")
	}
	if len(store.tokens) != 1 {
		t.Errorf("tokens persisted: got %d, want 1", len(store.tokens))
	}
}

func TestSendInvitationInvalidEmail(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	host := store.addUser("host@example.com", "Host")
	svc := newTestService(store, nil)

	if _, err := svc.SendInvitationByEmail(context.Background(), host.ID, "not-an-email"); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("got %v, want ErrInvalidEmail", err)
	}
}

func TestSendInvitationToOwnEmail(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	host := store.addUser("host@example.com", "Host")
	svc := newTestService(store, nil)

	if _, err := svc.SendInvitationByEmail(context.Background(), host.ID, "host@example.com"); !errors.Is(err, ErrSelfInvite) {
		t.Errorf("got %v, want ErrSelfInvite", err)
	}
}

func TestRedeemForExistingAccount(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	host := store.addUser("host@example.com", "Host")
	emails := &captureEnqueuer{}
	svc := newTestService(store, emails)
	ctx := context.Background()

	if _, err := svc.SendInvitationByEmail(ctx, host.ID, "new@example.com"); err != nil {
		t.Fatalf("send: %v", err)
	}
	token := emails.jobs[0].Token

	// The invitee registers between send and redeem.
	invitee := store.addUser("new@example.com", "New Artist")

	res, err := svc.RedeemInvitation(ctx, token)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.Status != RedemptionPendingApproval {
		t.Errorf("status: got %s, want pending_approval", res.Status)
	}
	if res.HostID != host.ID {
		t.Errorf("host: got %s, want %s", res.HostID, host.ID)
	}
	if pending, _ := svc.ListPendingForGuest(ctx, invitee.ID); len(pending) != 1 {
		t.Errorf("pending after redeem: got %d, want 1", len(pending))
	}

	// Single use: the same token cannot be redeemed twice.
	if _, err := svc.RedeemInvitation(ctx, token); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Errorf("second redeem: got %v, want ErrInvalidOrExpiredToken", err)
	}
}

func TestRedeemForUnknownEmailLeavesTokenLive(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	host := store.addUser("host@example.com", "Host")
	emails := &captureEnqueuer{}
	svc := newTestService(store, emails)
	ctx := context.Background()

	if _, err := svc.SendInvitationByEmail(ctx, host.ID, "new@example.com"); err != nil {
		t.Fatalf("send: %v", err)
	}
	token := emails.jobs[0].Token

	res, err := svc.RedeemInvitation(ctx, token)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.Status != RedemptionNeedsRegistration {
		t.Errorf("status: got %s, want needs_registration", res.Status)
	}
	if res.Email != "new@example.com" {
		t.Errorf("email: got %s", res.Email)
	}

	// The probe does not consume the token; after registration the same
	// token still admits the new account.
	store.addUser("new@example.com", "New Artist")
	res, err = svc.RedeemInvitation(ctx, token)
	if err != nil {
		t.Fatalf("redeem after registration: %v", err)
	}
	if res.Status != RedemptionPendingApproval {
		t.Errorf("status after registration: got %s, want pending_approval", res.Status)
	}
}

func TestRedeemUnknownToken(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	svc := newTestService(store, nil)

	if _, err := svc.RedeemInvitation(context.Background(), "no-such-token"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Errorf("got %v, want ErrInvalidOrExpiredToken", err)
	}
}

func TestRedeemExpiredToken(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	host := store.addUser("host@example.com", "Host")
	svc := newTestService(store, nil)
	ctx := context.Background()

	tok := &models.InvitationToken{
		Token:     "expired-token",
		Email:     "new@example.com",
		HostID:    host.ID,
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	if err := store.CreateToken(ctx, tok); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	if _, err := svc.RedeemInvitation(ctx, "expired-token"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Errorf("got %v, want ErrInvalidOrExpiredToken", err)
	}
}

func TestRedeemTokenWhenAlreadyLinked(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	host := store.addUser("host@example.com", "Host")
	artist := store.addUser("artist@example.com", "Artist")
	svc := newTestService(store, nil)
	ctx := context.Background()

	if _, err := svc.Invite(ctx, host.ID, artist.ID); err != nil {
		t.Fatalf("invite: %v", err)
	}
	tok := &models.InvitationToken{
		Token:     "dup-token",
		Email:     artist.Email,
		HostID:    host.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := store.CreateToken(ctx, tok); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	// An existing active link makes the redeem a no-op, not an error.
	res, err := svc.RedeemInvitation(ctx, "dup-token")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.Status != RedemptionPendingApproval {
		t.Errorf("status: got %s, want pending_approval", res.Status)
	}
	if pending, _ := svc.ListPendingForGuest(ctx, artist.ID); len(pending) != 1 {
		t.Errorf("pending: got %d, want 1", len(pending))
	}
}

func TestConnectedToMeAndMyCollection(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	host := store.addUser("host@example.com", "Host")
	artist := store.addUser("artist@example.com", "Artist")
	svc := newTestService(store, nil)
	ctx := context.Background()

	if _, err := svc.Invite(ctx, host.ID, artist.ID); err != nil {
		t.Fatalf("invite: %v", err)
	}

	// Pending links are invisible to both views.
	if guests, _ := svc.ConnectedToMe(ctx, host.ID); len(guests) != 0 {
		t.Errorf("guests while pending: %v", guests)
	}
	if hosts, _ := svc.MyCollection(ctx, artist.ID); len(hosts) != 0 {
		t.Errorf("collection while pending: %v", hosts)
	}

	if err := svc.AcceptInvitation(ctx, artist.ID, host.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	guests, err := svc.ConnectedToMe(ctx, host.ID)
	if err != nil {
		t.Fatalf("ConnectedToMe: %v", err)
	}
	if len(guests) != 1 || guests[0].ID != artist.ID {
		t.Errorf("guests: got %v, want the artist", guests)
	}
	hosts, err := svc.MyCollection(ctx, artist.ID)
	if err != nil {
		t.Fatalf("MyCollection: %v", err)
	}
	if len(hosts) != 1 || hosts[0].ID != host.ID {
		t.Errorf("collection: got %v, want the host", hosts)
	}

	isHost, err := svc.CheckIfHost(ctx, host.ID)
	if err != nil || !isHost {
		t.Errorf("CheckIfHost: got %v, %v, want true", isHost, err)
	}
}
