package access

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aria-setlist/backend/internal/models"
)

// Store is the persistence contract for host/guest links and invitation
// tokens. Repository is the PostgreSQL implementation; tests use an
// in-memory fake.
type Store interface {
	CreateLink(ctx context.Context, hostID, guestID uuid.UUID) (*models.HostGuestLink, error)
	GetActiveLink(ctx context.Context, hostID, guestID uuid.UUID) (*models.HostGuestLink, error)
	SetPendingStatus(ctx context.Context, hostID, guestID uuid.UUID, status models.LinkStatus) (bool, error)
	RemoveActiveLink(ctx context.Context, hostID, guestID uuid.UUID) (bool, error)
	RemoveAllGuestLinks(ctx context.Context, guestID uuid.UUID) (int64, error)
	ListPendingForGuest(ctx context.Context, guestID uuid.UUID) ([]models.PendingInvitation, error)
	ListAcceptedHosts(ctx context.Context, guestID uuid.UUID) ([]uuid.UUID, error)
	ListActiveHosts(ctx context.Context, guestID uuid.UUID) ([]uuid.UUID, error)
	HasAcceptedGuests(ctx context.Context, hostID uuid.UUID) (bool, error)
	ListAcceptedGuests(ctx context.Context, hostID uuid.UUID) ([]models.UserPublic, error)
	ListAcceptedHostUsers(ctx context.Context, guestID uuid.UUID) ([]models.UserPublic, error)
	CreateToken(ctx context.Context, t *models.InvitationToken) error
	GetToken(ctx context.Context, token string) (*models.InvitationToken, error)
	MarkTokenUsed(ctx context.Context, token string) error
}

// Repository persists host/guest links and invitation tokens in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an access-control repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const linkColumns = `id, host_id, guest_id, status, created_at, updated_at`

// CreateLink inserts a fresh pending link. The partial unique index on
// active rows makes the uniqueness check and the insert one atomic
// statement; a conflicting active link surfaces as ErrAlreadyLinked.
func (r *Repository) CreateLink(ctx context.Context, hostID, guestID uuid.UUID) (*models.HostGuestLink, error) {
	const q = `INSERT INTO host_guest_links (host_id, guest_id, status)
		VALUES ($1, $2, 'pending')
		RETURNING ` + linkColumns
	var l models.HostGuestLink
	err := r.pool.QueryRow(ctx, q, hostID, guestID).
		Scan(&l.ID, &l.HostID, &l.GuestID, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyLinked
		}
		return nil, err
	}
	return &l, nil
}

// GetActiveLink returns the pending or accepted link for the pair, or nil.
func (r *Repository) GetActiveLink(ctx context.Context, hostID, guestID uuid.UUID) (*models.HostGuestLink, error) {
	const q = `SELECT ` + linkColumns + ` FROM host_guest_links
		WHERE host_id = $1 AND guest_id = $2 AND status IN ('pending', 'accepted')`
	var l models.HostGuestLink
	err := r.pool.QueryRow(ctx, q, hostID, guestID).
		Scan(&l.ID, &l.HostID, &l.GuestID, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// SetPendingStatus transitions the pair's pending link to status.
// Returns false when no pending link exists for that exact pair.
func (r *Repository) SetPendingStatus(ctx context.Context, hostID, guestID uuid.UUID, status models.LinkStatus) (bool, error) {
	const q = `UPDATE host_guest_links SET status = $3, updated_at = now()
		WHERE host_id = $1 AND guest_id = $2 AND status = 'pending'`
	tag, err := r.pool.Exec(ctx, q, hostID, guestID, string(status))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveActiveLink marks the pair's active link removed. Returns false
// when the pair has no active link.
func (r *Repository) RemoveActiveLink(ctx context.Context, hostID, guestID uuid.UUID) (bool, error) {
	const q = `UPDATE host_guest_links SET status = 'removed', updated_at = now()
		WHERE host_id = $1 AND guest_id = $2 AND status IN ('pending', 'accepted')`
	tag, err := r.pool.Exec(ctx, q, hostID, guestID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveAllGuestLinks marks every active link where guestID is guest as
// removed and returns how many were affected.
func (r *Repository) RemoveAllGuestLinks(ctx context.Context, guestID uuid.UUID) (int64, error) {
	const q = `UPDATE host_guest_links SET status = 'removed', updated_at = now()
		WHERE guest_id = $1 AND status IN ('pending', 'accepted')`
	tag, err := r.pool.Exec(ctx, q, guestID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListPendingForGuest returns pending invitations with host profiles,
// newest first. Drives the guest's notification badge.
func (r *Repository) ListPendingForGuest(ctx context.Context, guestID uuid.UUID) ([]models.PendingInvitation, error) {
	const q = `SELECT l.host_id, u.display_name, u.email, l.created_at
		FROM host_guest_links l JOIN users u ON u.id = l.host_id
		WHERE l.guest_id = $1 AND l.status = 'pending'
		ORDER BY l.created_at DESC`
	rows, err := r.pool.Query(ctx, q, guestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.PendingInvitation
	for rows.Next() {
		var p models.PendingInvitation
		if err := rows.Scan(&p.HostID, &p.HostDisplayName, &p.HostEmail, &p.InvitedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// ListAcceptedHosts returns the host ids the guest has accepted links with.
func (r *Repository) ListAcceptedHosts(ctx context.Context, guestID uuid.UUID) ([]uuid.UUID, error) {
	const q = `SELECT host_id FROM host_guest_links
		WHERE guest_id = $1 AND status = 'accepted' ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, guestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hosts []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		hosts = append(hosts, id)
	}
	return hosts, rows.Err()
}

// ListActiveHosts returns the host ids the guest has pending or
// accepted links with. Used to notify hosts on a leave-all.
func (r *Repository) ListActiveHosts(ctx context.Context, guestID uuid.UUID) ([]uuid.UUID, error) {
	const q = `SELECT host_id FROM host_guest_links
		WHERE guest_id = $1 AND status IN ('pending', 'accepted') ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, guestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hosts []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		hosts = append(hosts, id)
	}
	return hosts, rows.Err()
}

// HasAcceptedGuests reports whether the user hosts at least one accepted guest.
func (r *Repository) HasAcceptedGuests(ctx context.Context, hostID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM host_guest_links WHERE host_id = $1 AND status = 'accepted')`
	var exists bool
	if err := r.pool.QueryRow(ctx, q, hostID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ListAcceptedGuests returns the public profiles of the host's accepted guests.
func (r *Repository) ListAcceptedGuests(ctx context.Context, hostID uuid.UUID) ([]models.UserPublic, error) {
	const q = `SELECT u.id, u.email, u.display_name, u.role, u.created_at
		FROM host_guest_links l JOIN users u ON u.id = l.guest_id
		WHERE l.host_id = $1 AND l.status = 'accepted'
		ORDER BY u.display_name, u.email`
	return r.queryUsers(ctx, q, hostID)
}

// ListAcceptedHostUsers returns the public profiles of the hosts the
// guest is connected to (the guest's "my collection" view).
func (r *Repository) ListAcceptedHostUsers(ctx context.Context, guestID uuid.UUID) ([]models.UserPublic, error) {
	const q = `SELECT u.id, u.email, u.display_name, u.role, u.created_at
		FROM host_guest_links l JOIN users u ON u.id = l.host_id
		WHERE l.guest_id = $1 AND l.status = 'accepted'
		ORDER BY u.display_name, u.email`
	return r.queryUsers(ctx, q, guestID)
}

func (r *Repository) queryUsers(ctx context.Context, q string, arg any) ([]models.UserPublic, error) {
	rows, err := r.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserPublic
	for rows.Next() {
		var u models.UserPublic
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// CreateToken persists an invitation token.
func (r *Repository) CreateToken(ctx context.Context, t *models.InvitationToken) error {
	const q = `INSERT INTO invitation_tokens (token, email, host_id, expires_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, q, t.Token, t.Email, t.HostID, t.ExpiresAt)
	return err
}

// GetToken returns an invitation token, or nil when unknown.
func (r *Repository) GetToken(ctx context.Context, token string) (*models.InvitationToken, error) {
	const q = `SELECT token, email, host_id, expires_at, used, created_at
		FROM invitation_tokens WHERE token = $1`
	var t models.InvitationToken
	err := r.pool.QueryRow(ctx, q, token).
		Scan(&t.Token, &t.Email, &t.HostID, &t.ExpiresAt, &t.Used, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkTokenUsed flips the single-use flag. Rows are never deleted.
func (r *Repository) MarkTokenUsed(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `UPDATE invitation_tokens SET used = TRUE WHERE token = $1`, token)
	return err
}
