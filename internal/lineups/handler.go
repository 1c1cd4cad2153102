package lineups

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aria-setlist/backend/internal/access"
	"github.com/aria-setlist/backend/internal/middleware"
	"github.com/aria-setlist/backend/internal/models"
	"github.com/aria-setlist/backend/internal/realtime"
	"github.com/aria-setlist/backend/internal/rooms"
	"github.com/aria-setlist/backend/internal/songs"
	"github.com/aria-setlist/backend/pkg/response"
	"github.com/aria-setlist/backend/pkg/storage"
)

// CreateRequest is the body for POST /lineups.
type CreateRequest struct {
	Name      string     `json:"name" binding:"required"`
	EventDate *time.Time `json:"event_date"`
}

// UpdateRequest is the body for PATCH /lineups/:id.
type UpdateRequest struct {
	Name      *string    `json:"name"`
	EventDate *time.Time `json:"event_date"`
}

// AddSongRequest is the body for POST /lineups/:id/songs.
type AddSongRequest struct {
	SongID uuid.UUID `json:"song_id" binding:"required"`
}

// ReorderRequest is the body for PUT /lineups/:id/order. SongIDs is the
// full desired sequence; the server rewrites positions to match it.
type ReorderRequest struct {
	SongIDs []uuid.UUID `json:"song_ids" binding:"required"`
}

// Handler handles lineup HTTP endpoints.
type Handler struct {
	repo     *Repository
	songRepo *songs.Repository
	acl      *access.Service
	s3       *storage.S3
	hub      *realtime.Hub
	logger   *zap.Logger
}

// NewHandler creates a lineups handler. s3 may be nil when chart
// storage is not configured.
func NewHandler(repo *Repository, songRepo *songs.Repository, acl *access.Service, s3 *storage.S3, hub *realtime.Hub, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, songRepo: songRepo, acl: acl, s3: s3, hub: hub, logger: logger}
}

// CanViewLineup reports whether userID may read the lineup: its owner
// or an accepted guest of the owner. Used by both the REST reads and
// the websocket join-lineup authorization.
func (h *Handler) CanViewLineup(ctx context.Context, userID, lineupID uuid.UUID) (bool, error) {
	l, err := h.repo.GetByID(ctx, lineupID)
	if err != nil || l == nil {
		return false, err
	}
	if l.OwnerID == userID {
		return true, nil
	}
	hosts, err := h.acl.CheckIfGuest(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, id := range hosts {
		if id == l.OwnerID {
			return true, nil
		}
	}
	return false, nil
}

// entryRooms is the room set for lineup-song events: open-detail
// viewers plus the owner's catalog and account rooms.
func entryRooms(lineupID, ownerID uuid.UUID) []string {
	return []string{rooms.LineupRoom(lineupID), rooms.HostRoom(ownerID), rooms.UserRoom(ownerID)}
}

// List handles GET /lineups. Returns the caller's own lineups.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list lineups")
		return
	}
	response.OK(c, list)
}

// ListByHost handles GET /hosts/:id/lineups.
func (h *Handler) ListByHost(c *gin.Context) {
	hostID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid host id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if hostID != userID {
		hosts, err := h.acl.CheckIfGuest(c.Request.Context(), userID)
		if err != nil {
			response.Internal(c, "failed to check access")
			return
		}
		allowed := false
		for _, id := range hosts {
			if id == hostID {
				allowed = true
				break
			}
		}
		if !allowed {
			response.Forbidden(c, "not a guest of this host")
			return
		}
	}

	list, err := h.repo.ListByOwner(c.Request.Context(), hostID)
	if err != nil {
		response.Internal(c, "failed to list lineups")
		return
	}
	response.OK(c, list)
}

// Get handles GET /lineups/:id. Returns the lineup with its songs in
// position order.
func (h *Handler) Get(c *gin.Context) {
	lineupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lineup id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	ok, err := h.CanViewLineup(c.Request.Context(), userID, lineupID)
	if err != nil {
		response.Internal(c, "failed to check access")
		return
	}
	if !ok {
		response.Forbidden(c, "no access to this lineup")
		return
	}

	l, err := h.repo.GetByID(c.Request.Context(), lineupID)
	if err != nil || l == nil {
		response.NotFound(c, "lineup not found")
		return
	}
	list, err := h.repo.ListSongs(c.Request.Context(), lineupID)
	if err != nil {
		response.Internal(c, "failed to list lineup songs")
		return
	}
	response.OK(c, gin.H{"lineup": l, "songs": list})
}

// Create handles POST /lineups.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	l := &models.Lineup{OwnerID: userID, Name: req.Name, EventDate: req.EventDate}
	if err := h.repo.Create(c.Request.Context(), l); err != nil {
		response.Internal(c, "failed to create lineup")
		return
	}

	h.hub.EmitToRooms([]string{rooms.HostRoom(userID), rooms.UserRoom(userID)}, realtime.EventLineupCreated, l)
	response.Created(c, l)
}

// Update handles PATCH /lineups/:id (owner only).
func (h *Handler) Update(c *gin.Context) {
	l, ok := h.ownedLineup(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Name != nil {
		l.Name = *req.Name
	}
	if req.EventDate != nil {
		l.EventDate = req.EventDate
	}
	if l.Name == "" {
		response.BadRequest(c, "name must not be empty")
		return
	}
	if err := h.repo.Update(c.Request.Context(), l); err != nil {
		response.Internal(c, "failed to update lineup")
		return
	}

	h.hub.EmitToRooms(entryRooms(l.ID, l.OwnerID), realtime.EventLineupUpdated, l)
	response.OK(c, l)
}

// Delete handles DELETE /lineups/:id (owner only).
func (h *Handler) Delete(c *gin.Context) {
	l, ok := h.ownedLineup(c)
	if !ok {
		return
	}
	if _, err := h.repo.Delete(c.Request.Context(), l.ID); err != nil {
		response.Internal(c, "failed to delete lineup")
		return
	}

	h.hub.EmitToRooms(entryRooms(l.ID, l.OwnerID), realtime.EventLineupDeleted, gin.H{"id": l.ID})
	response.OK(c, gin.H{"deleted": true})
}

// AddSong handles POST /lineups/:id/songs (owner only). Appends at the
// next position.
func (h *Handler) AddSong(c *gin.Context) {
	l, ok := h.ownedLineup(c)
	if !ok {
		return
	}
	var req AddSongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	song, err := h.songRepo.GetByID(c.Request.Context(), req.SongID)
	if err != nil {
		response.Internal(c, "failed to load song")
		return
	}
	if song == nil || song.OwnerID != l.OwnerID {
		response.BadRequest(c, "song not found in this catalog")
		return
	}

	entry, err := h.repo.AddSong(c.Request.Context(), l.ID, req.SongID)
	if err != nil {
		if errors.Is(err, ErrSongAlreadyInLineup) {
			response.Conflict(c, err.Error())
			return
		}
		response.Internal(c, "failed to add song")
		return
	}

	h.hub.EmitToRooms(entryRooms(l.ID, l.OwnerID), realtime.EventLineupSongAdded, entry)
	response.Created(c, entry)
}

// RemoveSong handles DELETE /lineups/:id/songs/:songId (owner only).
func (h *Handler) RemoveSong(c *gin.Context) {
	l, ok := h.ownedLineup(c)
	if !ok {
		return
	}
	songID, err := uuid.Parse(c.Param("songId"))
	if err != nil {
		response.BadRequest(c, "invalid song id")
		return
	}

	removed, err := h.repo.RemoveSong(c.Request.Context(), l.ID, songID)
	if err != nil {
		response.Internal(c, "failed to remove song")
		return
	}
	if !removed {
		response.NotFound(c, "song not in lineup")
		return
	}

	h.hub.EmitToRooms(entryRooms(l.ID, l.OwnerID), realtime.EventLineupSongRemoved,
		gin.H{"lineup_id": l.ID, "song_id": songID})
	response.OK(c, gin.H{"removed": true})
}

// Reorder handles PUT /lineups/:id/order (owner only). The submitted
// sequence becomes authoritative as a single atomic unit; the event is
// emitted once afterward, never per song.
func (h *Handler) Reorder(c *gin.Context) {
	l, ok := h.ownedLineup(c)
	if !ok {
		return
	}
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if err := h.repo.Reorder(c.Request.Context(), l.ID, req.SongIDs); err != nil {
		switch {
		case errors.Is(err, ErrUnknownSongInLineup),
			errors.Is(err, ErrDuplicateSongInOrder),
			errors.Is(err, ErrIncompleteOrder):
			response.BadRequest(c, err.Error())
		default:
			h.logger.Error("reorder failed", zap.String("lineup_id", l.ID.String()), zap.Error(err))
			response.Internal(c, "failed to reorder lineup")
		}
		return
	}

	h.hub.EmitToRooms(entryRooms(l.ID, l.OwnerID), realtime.EventLineupSongReordered,
		gin.H{"lineup_id": l.ID, "song_ids": req.SongIDs})
	response.OK(c, gin.H{"reordered": true})
}

// UploadEntryChart handles POST /lineups/:id/songs/:songId/chart (owner
// only, multipart field "file"). Stores a per-lineup chart override.
func (h *Handler) UploadEntryChart(c *gin.Context) {
	if h.s3 == nil {
		response.Internal(c, "chart storage not configured")
		return
	}
	l, ok := h.ownedLineup(c)
	if !ok {
		return
	}
	songID, err := uuid.Parse(c.Param("songId"))
	if err != nil {
		response.BadRequest(c, "invalid song id")
		return
	}
	entry, err := h.repo.GetSongEntry(c.Request.Context(), l.ID, songID)
	if err != nil {
		response.Internal(c, "failed to load lineup entry")
		return
	}
	if entry == nil {
		response.NotFound(c, "song not in lineup")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return
	}
	if file.Size > storage.MaxChartFileSize {
		response.BadRequest(c, "file size exceeds 20MB limit")
		return
	}
	if !storage.ValidateChartFileType(file.Header.Get("Content-Type"), file.Filename) {
		response.BadRequest(c, "invalid file type: only pdf, jpg, png, webp allowed")
		return
	}

	contentType := storage.ContentTypeForFilename(file.Filename)
	if ct := file.Header.Get("Content-Type"); ct != "" {
		if _, allowed := storage.AllowedChartTypes[ct]; allowed {
			contentType = ct
		}
	}

	key := storage.LineupChartKey(l.ID.String(), songID.String(), file.Filename)
	rc, err := file.Open()
	if err != nil {
		response.Internal(c, "failed to read file")
		return
	}
	defer rc.Close()

	if _, err := h.s3.Upload(c.Request.Context(), key, contentType, rc); err != nil {
		h.logger.Error("entry chart upload failed", zap.Error(err),
			zap.String("lineup_id", l.ID.String()), zap.String("song_id", songID.String()))
		response.Internal(c, "failed to upload chart")
		return
	}
	if _, err := h.repo.SetEntryChartKey(c.Request.Context(), l.ID, songID, key); err != nil {
		response.Internal(c, "failed to store chart reference")
		return
	}

	h.hub.EmitToRooms(entryRooms(l.ID, l.OwnerID), realtime.EventChartUploaded,
		gin.H{"lineup_id": l.ID, "song_id": songID, "chart_key": key})
	response.OK(c, gin.H{"chart_key": key})
}

// DeleteEntryChart handles DELETE /lineups/:id/songs/:songId/chart (owner only).
func (h *Handler) DeleteEntryChart(c *gin.Context) {
	l, ok := h.ownedLineup(c)
	if !ok {
		return
	}
	songID, err := uuid.Parse(c.Param("songId"))
	if err != nil {
		response.BadRequest(c, "invalid song id")
		return
	}
	entry, err := h.repo.GetSongEntry(c.Request.Context(), l.ID, songID)
	if err != nil {
		response.Internal(c, "failed to load lineup entry")
		return
	}
	if entry == nil || entry.ChartKey == "" {
		response.NotFound(c, "entry has no chart")
		return
	}

	if _, err := h.repo.SetEntryChartKey(c.Request.Context(), l.ID, songID, ""); err != nil {
		response.Internal(c, "failed to clear chart reference")
		return
	}
	if h.s3 != nil {
		if err := h.s3.Delete(c.Request.Context(), entry.ChartKey); err != nil {
			h.logger.Warn("chart delete failed", zap.String("key", entry.ChartKey), zap.Error(err))
		}
	}

	h.hub.EmitToRooms(entryRooms(l.ID, l.OwnerID), realtime.EventChartDeleted,
		gin.H{"lineup_id": l.ID, "song_id": songID})
	response.OK(c, gin.H{"deleted": true})
}

// ownedLineup loads the lineup from :id and verifies ownership, writing
// the error response itself when the check fails.
func (h *Handler) ownedLineup(c *gin.Context) (*models.Lineup, bool) {
	lineupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lineup id")
		return nil, false
	}
	l, err := h.repo.GetByID(c.Request.Context(), lineupID)
	if err != nil {
		response.Internal(c, "failed to load lineup")
		return nil, false
	}
	if l == nil {
		response.NotFound(c, "lineup not found")
		return nil, false
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if l.OwnerID != userID {
		response.Forbidden(c, "only the lineup owner can modify it")
		return nil, false
	}
	return l, true
}
