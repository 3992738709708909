package main

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/PaulBabatuyi/quotechat/internal/data"
)

// Subscriber is the minimal interface the hub needs from a connection: an id,
// the ability to queue an encoded frame without blocking, and a way to drop it.
type Subscriber interface {
	ID() string
	Send(frame []byte) error
	Close()
}

// Frame is the websocket envelope in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// encodeFrame builds an outbound frame.
func encodeFrame(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// RoomHub tracks which connections have joined which chat rooms.
// A connection may be in many rooms; a room may have many connections.
type RoomHub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Subscriber
}

// NewRoomHub creates an empty hub.
func NewRoomHub() *RoomHub {
	return &RoomHub{rooms: make(map[string]map[string]Subscriber)}
}

// Join adds s to room. Joining twice is a no-op.
func (h *RoomHub) Join(room string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[string]Subscriber)
	}
	h.rooms[room][s.ID()] = s
}

// Leave removes the connection id from room.
func (h *RoomHub) Leave(room, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(room, id)
}

func (h *RoomHub) leaveLocked(room, id string) {
	if conns, ok := h.rooms[room]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// LeaveAll removes the connection id from every room and returns how many
// rooms it was in. Called on disconnect.
func (h *RoomHub) LeaveAll(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for room, conns := range h.rooms {
		if _, ok := conns[id]; ok {
			h.leaveLocked(room, id)
			n++
		}
	}
	return n
}

// Members returns the number of connections joined to room.
func (h *RoomHub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast pushes an event carrying msg to every connection in the chat's
// room. Delivery is best-effort: connections that fail to accept the frame
// are removed from all rooms and closed so the client reconnects and rejoins.
func (h *RoomHub) Broadcast(chatID, event string, msg *data.Message) {
	frame, err := encodeFrame(event, msg)
	if err != nil {
		log.Printf("encode %s for chat %s: %v", event, chatID, err)
		return
	}
	h.BroadcastFrame(chatID, frame)
}

// BroadcastFrame sends an encoded frame to the room and returns the number of
// connections that accepted it.
func (h *RoomHub) BroadcastFrame(room string, frame []byte) int {
	h.mu.RLock()
	conns := make([]Subscriber, 0, len(h.rooms[room]))
	for _, s := range h.rooms[room] {
		conns = append(conns, s)
	}
	h.mu.RUnlock()

	delivered := 0
	var failed []Subscriber
	for _, s := range conns {
		if err := s.Send(frame); err != nil {
			log.Printf("delivery to connection %s in room %s failed: %v", s.ID(), room, err)
			failed = append(failed, s)
			continue
		}
		delivered++
	}

	// a connection that missed a frame is out of sync; drop it entirely
	for _, s := range failed {
		h.LeaveAll(s.ID())
		s.Close()
	}
	return delivered
}
