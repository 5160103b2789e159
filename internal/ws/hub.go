package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Hub fans session events out to the viewers of each session. A viewer that
// joins mid-stream first gets the latest tick report again, so its overlay
// shows the current status without waiting for the next tick.
type Hub struct {
	sessions   map[uuid.UUID]*room
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

type room struct {
	clients map[*Client]struct{}
	seq     uint64
	latest  *Event
}

func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[uuid.UUID]*room),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

// Join and Leave give up once the hub has stopped
func (h *Hub) Join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) roomLocked(sessionID uuid.UUID) *room {
	r := h.sessions[sessionID]
	if r == nil {
		r = &room{clients: make(map[*Client]struct{})}
		h.sessions[sessionID] = r
	}
	return r
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.roomLocked(client.sessionID)
	r.clients[client] = struct{}{}

	if r.latest != nil {
		replay := *r.latest
		replay.Replay = true
		h.sendLocked(r, client, replay)
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r := h.sessions[client.sessionID]; r != nil {
		h.dropLocked(r, client)
		h.pruneLocked(client.sessionID, r)
	}
}

// dropLocked closes the client's queue once; the write pump then exits
func (h *Hub) dropLocked(r *room, client *Client) {
	if _, ok := r.clients[client]; !ok {
		return
	}
	delete(r.clients, client)
	close(client.send)
}

func (h *Hub) pruneLocked(sessionID uuid.UUID, r *room) {
	if len(r.clients) == 0 && r.latest == nil {
		delete(h.sessions, sessionID)
	}
}

func (h *Hub) sendLocked(r *room, client *Client, event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		return
	}

	select {
	case client.send <- message:
	default:
		// cliente lento: desconecta
		h.dropLocked(r, client)
	}
}

func (h *Hub) deliver(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	closing := event.Type == EventSessionClosed
	r := h.sessions[event.SessionID]
	if r == nil {
		if closing {
			return
		}
		r = h.roomLocked(event.SessionID)
	}

	r.seq++
	event.Seq = r.seq
	if event.Type == EventTickReport {
		latest := event
		r.latest = &latest
	}

	for client := range r.clients {
		h.sendLocked(r, client, event)
	}

	if closing {
		for client := range r.clients {
			h.dropLocked(r, client)
		}
		delete(h.sessions, event.SessionID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, r := range h.sessions {
		for client := range r.clients {
			h.dropLocked(r, client)
		}
		delete(h.sessions, id)
	}
}

// Publish is non-blocking; events are dropped while the hub is saturated
func (h *Hub) Publish(sessionID uuid.UUID, eventType EventType, data interface{}) {
	event := Event{
		SessionID: sessionID,
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	select {
	case h.broadcast <- event:
	default:
	}
}

func (h *Hub) ConnectedClients(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if r := h.sessions[sessionID]; r != nil {
		return len(r.clients)
	}
	return 0
}

// Sessions counts the sessions the hub is tracking, watched or not
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.sessions)
}
