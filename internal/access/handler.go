package access

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aria-setlist/backend/internal/middleware"
	"github.com/aria-setlist/backend/internal/realtime"
	"github.com/aria-setlist/backend/internal/rooms"
	"github.com/aria-setlist/backend/pkg/response"
)

// InviteArtistRequest is the body for POST /users/invite-artist.
type InviteArtistRequest struct {
	ArtistID uuid.UUID `json:"artist_id" binding:"required"`
}

// HostRequest names a host for accept/reject/uninvite style endpoints.
type HostRequest struct {
	HostID uuid.UUID `json:"host_id" binding:"required"`
}

// LeaveRequest is the body for POST /users/leave-collection. HostID is
// optional; absent means leave every collection.
type LeaveRequest struct {
	HostID *uuid.UUID `json:"host_id"`
}

// SendInvitationRequest is the body for POST /users/send-invitation.
type SendInvitationRequest struct {
	Email string `json:"email" binding:"required"`
}

// Handler handles host/guest admission HTTP endpoints and emits the
// resulting domain events after each commit.
type Handler struct {
	service *Service
	hub     *realtime.Hub
	logger  *zap.Logger
}

// NewHandler creates an access handler.
func NewHandler(service *Service, hub *realtime.Hub, logger *zap.Logger) *Handler {
	return &Handler{service: service, hub: hub, logger: logger}
}

// InviteArtist handles POST /users/invite-artist.
func (h *Handler) InviteArtist(c *gin.Context) {
	var req InviteArtistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	hostID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	link, err := h.service.Invite(c.Request.Context(), hostID, req.ArtistID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.hub.Emit(rooms.UserRoom(req.ArtistID), realtime.EventInvitationPending, gin.H{"host_id": hostID})
	response.Created(c, link)
}

// UninviteArtist handles POST /users/uninvite-artist.
func (h *Handler) UninviteArtist(c *gin.Context) {
	var req InviteArtistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	hostID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if err := h.service.Uninvite(c.Request.Context(), hostID, req.ArtistID); err != nil {
		h.writeError(c, err)
		return
	}

	h.hub.Emit(rooms.UserRoom(req.ArtistID), realtime.EventUninvited, gin.H{"host_id": hostID})
	response.OK(c, gin.H{"removed": true})
}

// LeaveCollection handles POST /users/leave-collection.
func (h *Handler) LeaveCollection(c *gin.Context) {
	var req LeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	guestID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	hosts, err := h.service.LeaveCollection(c.Request.Context(), guestID, req.HostID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	for _, hostID := range hosts {
		h.hub.Emit(rooms.UserRoom(hostID), realtime.EventLeftCollection, gin.H{"guest_id": guestID})
	}
	response.OK(c, gin.H{"left": len(hosts)})
}

// PendingInvitations handles GET /users/pending-invitation.
func (h *Handler) PendingInvitations(c *gin.Context) {
	guestID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.service.ListPendingForGuest(c.Request.Context(), guestID)
	if err != nil {
		response.Internal(c, "failed to list pending invitations")
		return
	}
	response.OK(c, list)
}

// AcceptInvitation handles POST /users/accept-invitation.
func (h *Handler) AcceptInvitation(c *gin.Context) {
	var req HostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	guestID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if err := h.service.AcceptInvitation(c.Request.Context(), guestID, req.HostID); err != nil {
		h.writeError(c, err)
		return
	}

	payload := gin.H{"guest_id": guestID, "host_id": req.HostID}
	h.hub.EmitToRooms([]string{
		rooms.UserRoom(req.HostID),
		rooms.HostRoom(req.HostID),
	}, realtime.EventInvitationAccepted, payload)
	response.OK(c, gin.H{"accepted": true})
}

// RejectInvitation handles POST /users/reject-invitation.
func (h *Handler) RejectInvitation(c *gin.Context) {
	var req HostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	guestID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if err := h.service.RejectInvitation(c.Request.Context(), guestID, req.HostID); err != nil {
		h.writeError(c, err)
		return
	}

	h.hub.Emit(rooms.UserRoom(req.HostID), realtime.EventInvitationRejected, gin.H{"guest_id": guestID})
	response.OK(c, gin.H{"rejected": true})
}

// SendInvitation handles POST /users/send-invitation.
func (h *Handler) SendInvitation(c *gin.Context) {
	var req SendInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	hostID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	result, err := h.service.SendInvitationByEmail(c.Request.Context(), hostID, req.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if result.InvitedDirectly && result.GuestID != nil {
		h.hub.Emit(rooms.UserRoom(*result.GuestID), realtime.EventInvitationPending, gin.H{"host_id": hostID})
	}
	response.OK(c, result)
}

// RedeemInvitation handles GET /users/invite/:token. Public endpoint.
func (h *Handler) RedeemInvitation(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		response.BadRequest(c, "token required")
		return
	}

	result, err := h.service.RedeemInvitation(c.Request.Context(), token)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if result.Status == RedemptionPendingApproval {
		// The invitee's other sessions learn about the new pending link.
		if user, uerr := h.service.users.FindByEmail(c.Request.Context(), result.Email); uerr == nil && user != nil {
			h.hub.Emit(rooms.UserRoom(user.ID), realtime.EventInvitationPending, gin.H{"host_id": result.HostID})
		}
	}
	response.OK(c, result)
}

// CheckGuest handles GET /users/check-guest.
func (h *Handler) CheckGuest(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	hosts, err := h.service.CheckIfGuest(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to check guest status")
		return
	}
	if hosts == nil {
		hosts = []uuid.UUID{}
	}
	response.OK(c, gin.H{"hosts": hosts, "is_guest": len(hosts) > 0})
}

// ConnectedToMe handles GET /users/connected-to-me.
func (h *Handler) ConnectedToMe(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	guests, err := h.service.ConnectedToMe(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list guests")
		return
	}
	response.OK(c, guests)
}

// MyCollection handles GET /users/my-collection.
func (h *Handler) MyCollection(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	hosts, err := h.service.MyCollection(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list collection")
		return
	}
	response.OK(c, hosts)
}

// writeError maps domain errors to stable 4xx responses; anything else
// is a 500 for the one failed request.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrAlreadyLinked):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrArtistNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrSelfInvite),
		errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrNotLinked),
		errors.Is(err, ErrNotAGuest),
		errors.Is(err, ErrNotAGuestOfHost),
		errors.Is(err, ErrNoPendingInvitation),
		errors.Is(err, ErrInvalidOrExpiredToken):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error("access operation failed", zap.Error(err))
		response.Internal(c, "operation failed")
	}
}
