// internal/socket/hub.go
package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/logger"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/metrics"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Project messages
	MessageProjectCreated MessageType = "project_created"
	MessageProjectUpdated MessageType = "project_updated"
	MessageProjectDeleted MessageType = "project_deleted"

	// Task messages
	MessageTaskCreated MessageType = "task_created"
	MessageTaskUpdated MessageType = "task_updated"
	MessageTaskDeleted MessageType = "task_deleted"

	// Activity feed
	MessageActivityAdded MessageType = "activity_added"
	MessageCommentAdded  MessageType = "comment_added"

	// Presence
	MessageUserStatusChanged MessageType = "user_status_changed"

	// System messages
	MessagePing  MessageType = "ping"
	MessagePong  MessageType = "pong"
	MessageAck   MessageType = "ack"
	MessageError MessageType = "error"
)

// Message is the envelope written to every client. Seq increases by one for
// every message the hub emits; a gap tells a client it missed something and
// should re-fetch. Delivery is at-most-once with no replay.
type Message struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Room      string      `json:"room,omitempty"`
	Seq       uint64      `json:"seq"`
	Timestamp time.Time   `json:"timestamp"`
}

// Relay receives a copy of every broadcast envelope. Publish must not block.
type Relay interface {
	Publish(msgType string, data []byte)
}

// Client represents a connected WebSocket client
type Client struct {
	ID       string
	UserID   string
	Conn     *websocket.Conn
	Hub      *Hub
	Send     chan []byte
	Rooms    map[string]bool
	comments CommentRecorder
	mu       sync.Mutex
	closed   bool
	lastPing time.Time
	log      zerolog.Logger
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	clients     map[*Client]bool
	userClients map[string]map[*Client]bool
	roomClients map[string]map[*Client]bool

	register      chan *Client
	unregister    chan *Client
	broadcast     chan *Message
	roomBroadcast chan *RoomMessage
	done          chan struct{}

	// seq is only touched by the Run goroutine.
	seq   uint64
	relay Relay

	mu  sync.RWMutex
	log zerolog.Logger
}

// RoomMessage represents a message to be sent to a specific room
type RoomMessage struct {
	Room    string
	Message *Message
	Exclude string // User ID to exclude from broadcast
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		userClients:   make(map[string]map[*Client]bool),
		roomClients:   make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		broadcast:     make(chan *Message, 256),
		roomBroadcast: make(chan *RoomMessage, 256),
		done:          make(chan struct{}),
		log:           logger.Component("hub"),
	}
}

// SetRelay forwards every emitted envelope to r. Call before Run.
func (h *Hub) SetRelay(r Relay) {
	h.relay = r
}

// Run starts the hub's main loop and returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info().Msg("WebSocket hub started")

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			if data := h.stamp(msg); data != nil {
				h.deliver(h.allClients(""), data)
			}

		case rm := <-h.roomBroadcast:
			if data := h.stamp(rm.Message); data != nil {
				h.deliver(h.roomMembers(rm.Room, rm.Exclude), data)
			}

		case <-pingTicker.C:
			h.pingClients()

		case <-ctx.Done():
			h.shutdown()
			return
		}
	}
}

// stamp assigns the next sequence number and encodes msg. Run goroutine only.
func (h *Hub) stamp(msg *Message) []byte {
	h.seq++
	msg.Seq = h.seq
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Str("type", string(msg.Type)).Msg("Error marshaling message")
		return nil
	}
	metrics.WSMessagesSent.WithLabelValues(string(msg.Type)).Inc()
	if h.relay != nil {
		h.relay.Publish(string(msg.Type), data)
	}
	return data
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	firstConnection := h.userClients[client.UserID] == nil
	if firstConnection {
		h.userClients[client.UserID] = make(map[*Client]bool)
	}
	h.userClients[client.UserID][client] = true
	client.mu.Lock()
	for room := range client.Rooms {
		h.addToRoom(client, room)
	}
	client.mu.Unlock()
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnectedClients.Set(float64(total))
	h.log.Info().Str("user", client.UserID).Str("client", client.ID).Int("total_clients", total).Msg("✅ Client registered")

	if firstConnection {
		h.emitPresence(client.UserID, "online")
	}
}

// addToRoom requires h.mu held for writing.
func (h *Hub) addToRoom(client *Client, room string) {
	if h.roomClients[room] == nil {
		h.roomClients[room] = make(map[*Client]bool)
	}
	h.roomClients[room][client] = true
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)

	lastConnection := false
	if clients, ok := h.userClients[client.UserID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.userClients, client.UserID)
			lastConnection = true
		}
	}

	client.mu.Lock()
	for room := range client.Rooms {
		if clients, ok := h.roomClients[room]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.roomClients, room)
			}
		}
	}
	client.closed = true
	close(client.Send)
	client.mu.Unlock()

	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnectedClients.Set(float64(total))
	h.log.Info().Str("user", client.UserID).Str("client", client.ID).Int("total_clients", total).Msg("❌ Client disconnected")

	if lastConnection {
		h.emitPresence(client.UserID, "offline")
	}
}

// emitPresence broadcasts inline; it runs on the Run goroutine and must not
// go through the broadcast channel it drains.
func (h *Hub) emitPresence(userID, status string) {
	msg := &Message{
		Type:    MessageUserStatusChanged,
		Payload: map[string]interface{}{"userId": userID, "status": status},
	}
	if data := h.stamp(msg); data != nil {
		h.deliver(h.allClients(userID), data)
	}
}

func (h *Hub) allClients(excludeUserID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if excludeUserID != "" && c.UserID == excludeUserID {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (h *Hub) roomMembers(room, excludeUserID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients, ok := h.roomClients[room]
	if !ok {
		h.log.Debug().Str("room", room).Msg("Room has no clients")
		return nil
	}
	out := make([]*Client, 0, len(clients))
	for c := range clients {
		if excludeUserID != "" && c.UserID == excludeUserID {
			continue
		}
		out = append(out, c)
	}
	return out
}

// deliver queues data on each client; a client whose buffer is full is dropped.
func (h *Hub) deliver(clients []*Client, data []byte) {
	var slow []*Client
	for _, c := range clients {
		select {
		case c.Send <- data:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		metrics.WSDroppedClients.Inc()
		h.log.Warn().Str("user", c.UserID).Str("client", c.ID).Msg("Dropping slow client")
		h.unregisterClient(c)
	}
}

func (h *Hub) pingClients() {
	msg := Message{Type: MessagePing, Timestamp: time.Now().UTC()}
	data, _ := json.Marshal(msg)
	h.deliver(h.allClients(""), data)
}

func (h *Hub) shutdown() {
	for _, c := range h.allClients("") {
		h.unregisterClient(c)
	}
	close(h.done)
	h.log.Info().Msg("WebSocket hub stopped")
}

// ============================================
// Public Methods for Client Lifecycle
// ============================================

// Register hands a client to the Run loop. It returns false once the hub stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ============================================
// Public Methods for Room Management
// ============================================

// JoinRoom adds a client to a room
func (h *Hub) JoinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.mu.Lock()
	if client.closed {
		client.mu.Unlock()
		return
	}
	client.Rooms[room] = true
	client.mu.Unlock()

	// Not registered yet: registerClient picks the room up from client.Rooms.
	if !h.clients[client] {
		return
	}
	h.addToRoom(client, room)

	h.log.Debug().Str("user", client.UserID).Str("room", room).Msg("👥 Client joined room")
}

// LeaveRoom removes a client from a room
func (h *Hub) LeaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.mu.Lock()
	delete(client.Rooms, room)
	client.mu.Unlock()

	if clients, ok := h.roomClients[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.roomClients, room)
		}
	}

	h.log.Debug().Str("user", client.UserID).Str("room", room).Msg("👋 Client left room")
}

// ============================================
// Public Methods for Sending Messages
// ============================================

// Broadcast sends to every connected client. room is carried in the envelope
// so clients can filter, it does not restrict delivery. It never blocks: when
// the queue is full the message is dropped and counted.
func (h *Hub) Broadcast(msgType MessageType, payload interface{}, room string) {
	msg := &Message{Type: msgType, Payload: payload, Room: room, Timestamp: time.Now().UTC()}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		h.dropped(msgType, room)
	}
}

// SendToRoom sends only to clients that joined room. Like Broadcast it drops
// rather than blocks when the queue is full.
func (h *Hub) SendToRoom(room string, msgType MessageType, payload interface{}, excludeUserID string) {
	msg := &Message{Type: msgType, Payload: payload, Room: room, Timestamp: time.Now().UTC()}
	select {
	case h.roomBroadcast <- &RoomMessage{Room: room, Message: msg, Exclude: excludeUserID}:
	case <-h.done:
	default:
		h.dropped(msgType, room)
	}
}

func (h *Hub) dropped(msgType MessageType, room string) {
	metrics.WSMessagesDropped.WithLabelValues(string(msgType)).Inc()
	h.log.Warn().Str("type", string(msgType)).Str("room", room).Msg("Hub queue full, dropping message")
}

// ============================================
// Query Methods
// ============================================

// GetOnlineUsers returns a list of online user IDs
func (h *Hub) GetOnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.userClients))
	for userID := range h.userClients {
		users = append(users, userID)
	}
	return users
}

// IsUserOnline checks if a user is currently connected
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.userClients[userID]
	return ok
}

// GetRoomClients returns the number of clients in a room
func (h *Hub) GetRoomClients(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.roomClients[room]; ok {
		return len(clients)
	}
	return 0
}

// GetConnectedClientsCount returns total connected clients
func (h *Hub) GetConnectedClientsCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
