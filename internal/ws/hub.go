package ws

import (
	"sync"
)

// Hub keeps client connection sets per room id. It is transport plumbing
// only: membership authority lives in the canvas service, and the hub is
// never consulted for authorization.
//
// Membership changes and empty-room eviction are serialized under one
// mutex so a join can never land a connection in a room that a concurrent
// leave has just evicted from the map.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func NewHub() *Hub { return &Hub{rooms: map[string]*room{}} }

// Broadcast delivers msg to every connection in the room.
func (h *Hub) Broadcast(roomID string, msg []byte) {
	if r := h.room(roomID); r != nil {
		r.broadcast(msg, nil)
	}
}

// BroadcastExcept delivers msg to every connection in the room but the
// given one. Used for progress, cursor and presence fan-out where the
// sender already knows its own state.
func (h *Hub) BroadcastExcept(roomID string, except *clientConn, msg []byte) {
	if r := h.room(roomID); r != nil {
		r.broadcast(msg, except)
	}
}

func (h *Hub) Join(roomID string, c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[roomID]
	if !ok {
		r = newRoom()
		h.rooms[roomID] = r
	}
	r.add(c)
}

func (h *Hub) Leave(roomID string, c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.rooms[roomID]; ok {
		r.remove(c)
		if r.empty() {
			delete(h.rooms, roomID)
		}
	}
}

// LeaveAll detaches the connection from every room it is in. Mirrors the
// registry's leaveAll: walks all rooms instead of trusting a cached one.
func (h *Hub) LeaveAll(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID, r := range h.rooms {
		r.remove(c)
		if r.empty() {
			delete(h.rooms, roomID)
		}
	}
}

// room looks up the connection set without holding the lock during the
// subsequent broadcast I/O.
func (h *Hub) room(roomID string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[roomID]
}
