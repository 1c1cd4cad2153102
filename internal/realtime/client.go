package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aria-setlist/backend/internal/rooms"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// LineupAuthorizer reports whether a user may view a lineup (owner or
// accepted guest of the owner). Same check the REST layer applies.
type LineupAuthorizer func(ctx context.Context, userID, lineupID uuid.UUID) (bool, error)

// Client represents a single WebSocket connection. Identity comes from
// the validated token, never from client-supplied ids.
type Client struct {
	ID     string
	UserID uuid.UUID
	Role   string
	hub    *Hub
	conn   *websocket.Conn
	send   chan WSMessage
	logger *zap.Logger

	resolver *rooms.Resolver
	canView  LineupAuthorizer
}

// ServeWs handles the WebSocket upgrade and runs the client loop. The
// connection is joined to its resolver-derived rooms immediately;
// lineup rooms are joined on demand via join-lineup messages.
func ServeWs(hub *Hub, logger *zap.Logger, jwtValidate func(token string) (userID, role string, err error), resolver *rooms.Resolver, canView LineupAuthorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		userIDStr, role, err := jwtValidate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:       uuid.New().String(),
			UserID:   userID,
			Role:     role,
			hub:      hub,
			conn:     conn,
			send:     make(chan WSMessage, 256),
			logger:   logger,
			resolver: resolver,
			canView:  canView,
		}
		client.joinResolvedRooms(c.Request.Context())
		go client.writePump()
		client.readPump()
	}
}

// joinResolvedRooms (re)derives account-level rooms from access-control
// state and joins them. Joins are idempotent so this is safe to run on
// every announce; rooms the client no longer qualifies for are dropped
// on the next full reconnect.
func (c *Client) joinResolvedRooms(ctx context.Context) {
	set, err := c.resolver.Resolve(ctx, c.UserID)
	if err != nil {
		c.logger.Warn("room resolution failed", zap.String("user_id", c.UserID.String()), zap.Error(err))
		return
	}
	for _, room := range set.All() {
		c.hub.Join(c, room)
	}
}

type lineupRef struct {
	LineupID uuid.UUID `json:"lineup_id"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		ctx := context.Background()

		switch msg.Event {
		case "join-user", "join-host", "join-songs", "join-lineups":
			// All account-level joins re-run the resolver; identity comes
			// from the token, not the message payload.
			c.joinResolvedRooms(ctx)
		case "join-lineup":
			var ref lineupRef
			if err := json.Unmarshal(msg.Data, &ref); err != nil || ref.LineupID == uuid.Nil {
				continue
			}
			ok, err := c.canView(ctx, c.UserID, ref.LineupID)
			if err != nil || !ok {
				continue
			}
			c.hub.Join(c, rooms.LineupRoom(ref.LineupID))
		case "leave-lineup":
			// Only lineup rooms are left on navigation; user/host rooms
			// represent account-level interest and persist to disconnect.
			var ref lineupRef
			if err := json.Unmarshal(msg.Data, &ref); err != nil || ref.LineupID == uuid.Nil {
				continue
			}
			c.hub.Leave(c, rooms.LineupRoom(ref.LineupID))
		default:
			// ignore
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
