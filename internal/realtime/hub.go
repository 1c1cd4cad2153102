package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// RoomPublisher publishes room events to Redis for cross-instance broadcast.
type RoomPublisher interface {
	PublishRoomEvent(room, event string, payload []byte) error
}

// RoomSubscriber subscribes to a room's Redis channel and invokes handler for incoming events.
type RoomSubscriber interface {
	SubscribeRoom(room string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains room -> set of connections and fans out named events.
// Rooms are opaque strings (user:<id>, host:<id>, lineup:<id>); a
// connection can be in many rooms at once. With Redis configured, every
// emit goes through pub/sub and the subscriber callback performs the
// one local broadcast, so instances (including the emitting one) never
// deliver twice locally.
type Hub struct {
	rooms       map[string]map[string]*Client   // room -> clientID -> client
	clientRooms map[string]map[string]struct{}  // clientID -> set of rooms
	subs        map[string]func()               // cancel Redis subscription per room
	mu          sync.RWMutex
	logger      *zap.Logger
	redis       RoomPublisher
	redisSub    RoomSubscriber
}

// NewHub creates a new broadcast hub. redisPub/redisSub may be nil for
// single-instance deployments; emits then broadcast locally.
func NewHub(logger *zap.Logger, redisPub RoomPublisher, redisSub RoomSubscriber) *Hub {
	return &Hub{
		rooms:       make(map[string]map[string]*Client),
		clientRooms: make(map[string]map[string]struct{}),
		subs:        make(map[string]func()),
		logger:      logger,
		redis:       redisPub,
		redisSub:    redisSub,
	}
}

// Join adds a client to a room. Idempotent: joining a room the client
// is already in changes nothing. Starts the room's Redis subscription
// when the first client joins.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	if members, ok := h.rooms[room]; ok {
		if _, already := members[c.ID]; already {
			h.mu.Unlock()
			return
		}
	} else {
		h.rooms[room] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeRoom(room, func(event string, payload []byte) {
				h.Broadcast(room, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[room] = cancel
			} else {
				h.logger.Warn("room subscribe failed", zap.String("room", room), zap.Error(err))
			}
		}
	}
	h.rooms[room][c.ID] = c
	if h.clientRooms[c.ID] == nil {
		h.clientRooms[c.ID] = make(map[string]struct{})
	}
	h.clientRooms[c.ID][room] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("client joined room", zap.String("client_id", c.ID), zap.String("room", room))
}

// Leave removes a client from a room. Leaving a room never joined is a
// no-op. Cancels the room's Redis subscription when the last client leaves.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	h.leaveLocked(c.ID, room)
	h.mu.Unlock()
	h.logger.Debug("client left room", zap.String("client_id", c.ID), zap.String("room", room))
}

func (h *Hub) leaveLocked(clientID, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, clientID)
	if set := h.clientRooms[clientID]; set != nil {
		delete(set, room)
		if len(set) == 0 {
			delete(h.clientRooms, clientID)
		}
	}
	if len(members) == 0 {
		delete(h.rooms, room)
		if cancel, ok := h.subs[room]; ok {
			cancel()
			delete(h.subs, room)
		}
	}
}

// RemoveClient releases all room memberships for a connection. Called
// on transport-level disconnect.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	for room := range h.clientRooms[c.ID] {
		h.leaveLocked(c.ID, room)
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID))
}

// Broadcast sends a message to all clients in a room on this instance
// only. A room with zero members is a no-op, not an error.
func (h *Hub) Broadcast(room, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	members := h.rooms[room]
	var clients []*Client
	if len(members) > 0 {
		clients = make([]*Client, 0, len(members))
		for _, c := range members {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip; the client reconciles by refetch
		}
	}
}

// Emit delivers a named event to a room across all instances. With
// Redis configured it publishes only; the subscription callback does
// the local broadcast once. Delivery is fire-and-forget and never
// affects the data mutation that triggered it.
func (h *Hub) Emit(room, event string, payload interface{}) {
	if h.redis != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		if err := h.redis.PublishRoomEvent(room, event, data); err != nil {
			h.logger.Warn("room publish failed", zap.String("room", room), zap.String("event", event), zap.Error(err))
		}
		return
	}
	h.Broadcast(room, event, payload)
}

// EmitToRooms emits one event into several rooms (the minimal correct
// room set a mutation computes).
func (h *Hub) EmitToRooms(roomSet []string, event string, payload interface{}) {
	for _, room := range roomSet {
		h.Emit(room, event, payload)
	}
}

// RoomSize returns the number of connected clients in a room on this instance.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
