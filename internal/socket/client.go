// internal/socket/client.go
package socket

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket connection constants
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer (4KB)
	maxMessageSize int64 = 4096

	sendBufferSize = 256

	commentTimeout = 10 * time.Second
)

// CommentRecorder persists a comment posted over the socket. It is expected to
// record the comment_added activity and broadcast it.
type CommentRecorder interface {
	RecordComment(ctx context.Context, userID, projectID, taskID, content string) error
}

// ClientMessage represents an incoming message from a client
type ClientMessage struct {
	Action  string                 `json:"action"`
	Room    string                 `json:"room,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ProjectRoom is the room name used for project scoped events.
func ProjectRoom(projectID string) string {
	return "project:" + projectID
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("WebSocket read error")
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One envelope per frame so clients can JSON.parse each message.
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Client) handleMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.log.Debug().Err(err).Msg("Error parsing client message")
		c.sendError("invalid message")
		return
	}

	c.log.Debug().Str("action", msg.Action).Str("room", msg.Room).Msg("Received client action")

	switch msg.Action {
	case "join":
		if msg.Room != "" {
			c.Hub.JoinRoom(c, msg.Room)
			c.sendAck("joined", msg.Room)
		}

	case "leave":
		if msg.Room != "" {
			c.Hub.LeaveRoom(c, msg.Room)
			c.sendAck("left", msg.Room)
		}

	case "join_project":
		if projectID := payloadString(msg.Payload, "projectId"); projectID != "" {
			room := ProjectRoom(projectID)
			c.Hub.JoinRoom(c, room)
			c.sendAck("joined", room)
		}

	case "leave_project":
		if projectID := payloadString(msg.Payload, "projectId"); projectID != "" {
			room := ProjectRoom(projectID)
			c.Hub.LeaveRoom(c, room)
			c.sendAck("left", room)
		}

	case "add_comment":
		c.addComment(msg.Payload)

	case "ping":
		c.touch()
		c.sendPong()

	case "pong":
		c.touch()

	default:
		c.log.Debug().Str("action", msg.Action).Msg("Unknown action")
		c.sendError("unknown action: " + msg.Action)
	}
}

func (c *Client) addComment(payload map[string]interface{}) {
	content := strings.TrimSpace(payloadString(payload, "content"))
	if content == "" {
		c.sendError("comment content is required")
		return
	}
	if c.comments == nil {
		c.sendError("comments are not available")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commentTimeout)
	defer cancel()

	err := c.comments.RecordComment(ctx, c.UserID,
		payloadString(payload, "projectId"), payloadString(payload, "taskId"), content)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to record comment")
		c.sendError("failed to add comment")
	}
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastPing = time.Now()
	c.mu.Unlock()
}

// trySend queues a direct reply. It is a no-op once the hub closed Send.
func (c *Client) trySend(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
		c.log.Warn().Str("type", string(msg.Type)).Msg("Send buffer full, reply dropped")
	}
}

func (c *Client) sendAck(action, room string) {
	c.trySend(Message{
		Type: MessageAck,
		Payload: map[string]interface{}{
			"action": action,
			"room":   room,
		},
		Room:      room,
		Timestamp: time.Now().UTC(),
	})
}

func (c *Client) sendPong() {
	c.trySend(Message{
		Type: MessagePong,
		Payload: map[string]interface{}{
			"time": time.Now().Unix(),
		},
		Timestamp: time.Now().UTC(),
	})
}

func (c *Client) sendError(reason string) {
	c.trySend(Message{
		Type:      MessageError,
		Payload:   map[string]interface{}{"message": reason},
		Timestamp: time.Now().UTC(),
	})
}

func payloadString(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	s, _ := payload[key].(string)
	return s
}
