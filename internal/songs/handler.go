package songs

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aria-setlist/backend/internal/access"
	"github.com/aria-setlist/backend/internal/middleware"
	"github.com/aria-setlist/backend/internal/models"
	"github.com/aria-setlist/backend/internal/realtime"
	"github.com/aria-setlist/backend/internal/rooms"
	"github.com/aria-setlist/backend/pkg/response"
	"github.com/aria-setlist/backend/pkg/storage"
)

// CreateRequest is the body for POST /songs.
type CreateRequest struct {
	Title   string `json:"title" binding:"required"`
	Artist  string `json:"artist"`
	SongKey string `json:"song_key"`
	Tempo   int    `json:"tempo"`
}

// UpdateRequest is the body for PATCH /songs/:id. Absent fields keep
// their current value.
type UpdateRequest struct {
	Title   *string `json:"title"`
	Artist  *string `json:"artist"`
	SongKey *string `json:"song_key"`
	Tempo   *int    `json:"tempo"`
}

// Handler handles song HTTP endpoints.
type Handler struct {
	repo   *Repository
	acl    *access.Service
	s3     *storage.S3
	hub    *realtime.Hub
	logger *zap.Logger
}

// NewHandler creates a songs handler. s3 may be nil when chart storage
// is not configured.
func NewHandler(repo *Repository, acl *access.Service, s3 *storage.S3, hub *realtime.Hub, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, acl: acl, s3: s3, hub: hub, logger: logger}
}

// catalogRooms is the room set for catalog-level song events: the
// host's shared-catalog viewers plus the host's own sessions.
func catalogRooms(ownerID uuid.UUID) []string {
	return []string{rooms.HostRoom(ownerID), rooms.UserRoom(ownerID)}
}

// canViewCatalog reports whether userID may read hostID's songs:
// the host itself or an accepted guest. Pending guests see nothing.
func (h *Handler) canViewCatalog(c *gin.Context, userID, hostID uuid.UUID) (bool, error) {
	if userID == hostID {
		return true, nil
	}
	hosts, err := h.acl.CheckIfGuest(c.Request.Context(), userID)
	if err != nil {
		return false, err
	}
	for _, id := range hosts {
		if id == hostID {
			return true, nil
		}
	}
	return false, nil
}

// List handles GET /songs. Returns the caller's own catalog.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list songs")
		return
	}
	response.OK(c, list)
}

// ListByHost handles GET /hosts/:id/songs. Guests read a host's shared catalog.
func (h *Handler) ListByHost(c *gin.Context) {
	hostID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid host id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	ok, err := h.canViewCatalog(c, userID, hostID)
	if err != nil {
		response.Internal(c, "failed to check access")
		return
	}
	if !ok {
		response.Forbidden(c, "not a guest of this host")
		return
	}

	list, err := h.repo.ListByOwner(c.Request.Context(), hostID)
	if err != nil {
		response.Internal(c, "failed to list songs")
		return
	}
	response.OK(c, list)
}

// Create handles POST /songs.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	s := &models.Song{
		OwnerID: userID,
		Title:   req.Title,
		Artist:  req.Artist,
		SongKey: req.SongKey,
		Tempo:   req.Tempo,
	}
	if err := h.repo.Create(c.Request.Context(), s); err != nil {
		response.Internal(c, "failed to create song")
		return
	}

	h.hub.EmitToRooms(catalogRooms(userID), realtime.EventSongCreated, s)
	response.Created(c, s)
}

// Update handles PATCH /songs/:id (owner only).
func (h *Handler) Update(c *gin.Context) {
	s, ok := h.ownedSong(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Title != nil {
		s.Title = *req.Title
	}
	if req.Artist != nil {
		s.Artist = *req.Artist
	}
	if req.SongKey != nil {
		s.SongKey = *req.SongKey
	}
	if req.Tempo != nil {
		s.Tempo = *req.Tempo
	}
	if s.Title == "" {
		response.BadRequest(c, "title must not be empty")
		return
	}
	if err := h.repo.Update(c.Request.Context(), s); err != nil {
		response.Internal(c, "failed to update song")
		return
	}

	h.hub.EmitToRooms(catalogRooms(s.OwnerID), realtime.EventSongUpdated, s)
	response.OK(c, s)
}

// Delete handles DELETE /songs/:id (owner only). The chart object is
// removed best-effort after the row commit.
func (h *Handler) Delete(c *gin.Context) {
	s, ok := h.ownedSong(c)
	if !ok {
		return
	}
	if _, err := h.repo.Delete(c.Request.Context(), s.ID); err != nil {
		response.Internal(c, "failed to delete song")
		return
	}
	if s.ChartKey != "" && h.s3 != nil {
		if err := h.s3.Delete(c.Request.Context(), s.ChartKey); err != nil {
			h.logger.Warn("chart delete failed", zap.String("key", s.ChartKey), zap.Error(err))
		}
	}

	h.hub.EmitToRooms(catalogRooms(s.OwnerID), realtime.EventSongDeleted, gin.H{"id": s.ID})
	response.OK(c, gin.H{"deleted": true})
}

// UploadChart handles POST /songs/:id/chart (owner only, multipart field "file").
func (h *Handler) UploadChart(c *gin.Context) {
	if h.s3 == nil {
		response.Internal(c, "chart storage not configured")
		return
	}
	s, ok := h.ownedSong(c)
	if !ok {
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

	key := storage.SongChartKey(s.ID.String(), file.Filename)
	rc, err := file.Open()
	if err != nil {
		response.Internal(c, "failed to read file")
		return
	}
	defer rc.Close()

	if _, err := h.s3.Upload(c.Request.Context(), key, contentType, rc); err != nil {
		h.logger.Error("chart upload failed", zap.Error(err), zap.String("song_id", s.ID.String()))
		response.Internal(c, "failed to upload chart")
		return
	}
	if err := h.repo.SetChartKey(c.Request.Context(), s.ID, key); err != nil {
		response.Internal(c, "failed to store chart reference")
		return
	}
	s.ChartKey = key

	h.hub.EmitToRooms(catalogRooms(s.OwnerID), realtime.EventSongUpdated, s)
	response.OK(c, gin.H{"chart_key": key})
}

// DeleteChart handles DELETE /songs/:id/chart (owner only).
func (h *Handler) DeleteChart(c *gin.Context) {
	s, ok := h.ownedSong(c)
	if !ok {
		return
	}
	if s.ChartKey == "" {
		response.NotFound(c, "song has no chart")
		return
	}
	if err := h.repo.SetChartKey(c.Request.Context(), s.ID, ""); err != nil {
		response.Internal(c, "failed to clear chart reference")
		return
	}
	if h.s3 != nil {
		if err := h.s3.Delete(c.Request.Context(), s.ChartKey); err != nil {
			h.logger.Warn("chart delete failed", zap.String("key", s.ChartKey), zap.Error(err))
		}
	}
	s.ChartKey = ""

	h.hub.EmitToRooms(catalogRooms(s.OwnerID), realtime.EventSongUpdated, s)
	response.OK(c, gin.H{"deleted": true})
}

// ChartURL handles GET /songs/:id/chart-url (owner or accepted guest).
func (h *Handler) ChartURL(c *gin.Context) {
	if h.s3 == nil {
		response.Internal(c, "chart storage not configured")
		return
	}
	songID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid song id")
		return
	}
	s, err := h.repo.GetByID(c.Request.Context(), songID)
	if err != nil {
		response.Internal(c, "failed to load song")
		return
	}
	if s == nil {
		response.NotFound(c, "song not found")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	ok, err := h.canViewCatalog(c, userID, s.OwnerID)
	if err != nil || !ok {
		response.Forbidden(c, "no access to this song")
		return
	}
	if s.ChartKey == "" {
		response.NotFound(c, "song has no chart")
		return
	}

	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), s.ChartKey, h.s3.PresignExpire())
	if err != nil {
		response.Internal(c, "failed to sign chart URL")
		return
	}
	response.OK(c, gin.H{"url": url, "expires_in": int(h.s3.PresignExpire().Seconds())})
}

// ownedSong loads the song from :id and verifies ownership, writing the
// error response itself when the check fails.
func (h *Handler) ownedSong(c *gin.Context) (*models.Song, bool) {
	songID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid song id")
		return nil, false
	}
	s, err := h.repo.GetByID(c.Request.Context(), songID)
	if err != nil {
		response.Internal(c, "failed to load song")
		return nil, false
	}
	if s == nil {
		response.NotFound(c, "song not found")
		return nil, false
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if s.OwnerID != userID {
		response.Forbidden(c, "only the owner can modify a song")
		return nil, false
	}
	return s, true
}
