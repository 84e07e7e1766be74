// internal/socket/handler.go
package socket

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/apperrors"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/logger"
)

// TokenValidator resolves a bearer token to an active user's id.
type TokenValidator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// Handler handles WebSocket connections
type Handler struct {
	Hub      *Hub
	tokens   TokenValidator
	comments CommentRecorder
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. allowedOrigins empty or "*"
// accepts any origin.
func NewHandler(hub *Hub, tokens TokenValidator, comments CommentRecorder, allowedOrigins []string) *Handler {
	return &Handler{
		Hub:      hub,
		tokens:   tokens,
		comments: comments,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket validates the token from the query string (browsers cannot
// set headers on a websocket handshake) or the Authorization header, then
// upgrades the connection.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	log := logger.Component("ws")

	tokenString := c.Query("token")
	if tokenString == "" {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}

	if tokenString == "" {
		apperrors.Unauthorized(c, "No token provided")
		return
	}

	userID, err := h.tokens.Authenticate(c.Request.Context(), tokenString)
	if err != nil {
		log.Debug().Err(err).Msg("Rejected websocket token")
		apperrors.Unauthorized(c, "Invalid or expired token")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Upgrade error")
		return
	}

	client := NewClient(h.Hub, userID, conn, h.comments)
	if !h.Hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, userID string, conn *websocket.Conn, comments CommentRecorder) *Client {
	id := uuid.New().String()
	return &Client{
		ID:       id,
		UserID:   userID,
		Conn:     conn,
		Hub:      hub,
		Send:     make(chan []byte, sendBufferSize),
		Rooms:    make(map[string]bool),
		comments: comments,
		lastPing: time.Now(),
		log:      logger.Component("client").With().Str("user", userID).Str("client", id).Logger(),
	}
}
