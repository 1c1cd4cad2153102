package access

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aria-setlist/backend/internal/models"
	"github.com/aria-setlist/backend/pkg/queue"
)

// memoryStore is an in-memory Store for service tests. It enforces the
// same single-active-link rule the database index does.
type memoryStore struct {
	mu     sync.Mutex
	links  []models.HostGuestLink
	tokens map[string]*models.InvitationToken
	users  map[uuid.UUID]*models.User
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		tokens: make(map[string]*models.InvitationToken),
		users:  make(map[uuid.UUID]*models.User),
	}
}

func (m *memoryStore) addUser(email, displayName string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &models.User{
		ID:          uuid.New(),
		Email:       strings.ToLower(email),
		DisplayName: displayName,
		Role:        models.RoleUser,
		CreatedAt:   time.Now(),
	}
	m.users[u.ID] = u
	return u
}

// FindByID implements UserDirectory.
func (m *memoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

// FindByEmail implements UserDirectory.
func (m *memoryStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) CreateLink(_ context.Context, hostID, guestID uuid.UUID) (*models.HostGuestLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.HostID == hostID && l.GuestID == guestID && l.Status != models.LinkRemoved {
			return nil, ErrAlreadyLinked
		}
	}
	now := time.Now()
	l := models.HostGuestLink{
		ID: uuid.New(), HostID: hostID, GuestID: guestID,
		Status: models.LinkPending, CreatedAt: now, UpdatedAt: now,
	}
	m.links = append(m.links, l)
	return &l, nil
}

func (m *memoryStore) GetActiveLink(_ context.Context, hostID, guestID uuid.UUID) (*models.HostGuestLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.links {
		l := &m.links[i]
		if l.HostID == hostID && l.GuestID == guestID && l.Status != models.LinkRemoved {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) SetPendingStatus(_ context.Context, hostID, guestID uuid.UUID, status models.LinkStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.links {
		l := &m.links[i]
		if l.HostID == hostID && l.GuestID == guestID && l.Status == models.LinkPending {
			l.Status = status
			l.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) RemoveActiveLink(_ context.Context, hostID, guestID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.links {
		l := &m.links[i]
		if l.HostID == hostID && l.GuestID == guestID && l.Status != models.LinkRemoved {
			l.Status = models.LinkRemoved
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) RemoveAllGuestLinks(_ context.Context, guestID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.links {
		l := &m.links[i]
		if l.GuestID == guestID && l.Status != models.LinkRemoved {
			l.Status = models.LinkRemoved
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) ListPendingForGuest(_ context.Context, guestID uuid.UUID) ([]models.PendingInvitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PendingInvitation
	for _, l := range m.links {
		if l.GuestID == guestID && l.Status == models.LinkPending {
			p := models.PendingInvitation{HostID: l.HostID, InvitedAt: l.CreatedAt}
			if u := m.users[l.HostID]; u != nil {
				p.HostDisplayName = u.DisplayName
				p.HostEmail = u.Email
			}
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryStore) ListAcceptedHosts(_ context.Context, guestID uuid.UUID) ([]uuid.UUID, error) {
	return m.listHosts(guestID, models.LinkAccepted)
}

func (m *memoryStore) ListActiveHosts(_ context.Context, guestID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for _, l := range m.links {
		if l.GuestID == guestID && l.Status != models.LinkRemoved {
			out = append(out, l.HostID)
		}
	}
	return out, nil
}

func (m *memoryStore) listHosts(guestID uuid.UUID, status models.LinkStatus) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for _, l := range m.links {
		if l.GuestID == guestID && l.Status == status {
			out = append(out, l.HostID)
		}
	}
	return out, nil
}

func (m *memoryStore) HasAcceptedGuests(_ context.Context, hostID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.HostID == hostID && l.Status == models.LinkAccepted {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) ListAcceptedGuests(_ context.Context, hostID uuid.UUID) ([]models.UserPublic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.UserPublic
	for _, l := range m.links {
		if l.HostID == hostID && l.Status == models.LinkAccepted {
			if u := m.users[l.GuestID]; u != nil {
				out = append(out, u.ToPublic())
			}
		}
	}
	return out, nil
}

func (m *memoryStore) ListAcceptedHostUsers(_ context.Context, guestID uuid.UUID) ([]models.UserPublic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.UserPublic
	for _, l := range m.links {
		if l.GuestID == guestID && l.Status == models.LinkAccepted {
			if u := m.users[l.HostID]; u != nil {
				out = append(out, u.ToPublic())
			}
		}
	}
	return out, nil
}

func (m *memoryStore) CreateToken(_ context.Context, t *models.InvitationToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.tokens[t.Token] = &cp
	return nil
}

func (m *memoryStore) GetToken(_ context.Context, token string) (*models.InvitationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memoryStore) MarkTokenUsed(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[token]; ok {
		t.Used = true
	}
	return nil
}

// captureEnqueuer records invitation email jobs instead of dispatching.
type captureEnqueuer struct {
	mu   sync.Mutex
	jobs []queue.InvitationEmailPayload
	err  error
}

func (c *captureEnqueuer) EnqueueInvitationEmail(_ context.Context, payload queue.InvitationEmailPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.jobs = append(c.jobs, payload)
	return nil
}
