package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is implemented by *db.PostgresDB and *db.RedisDB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ClientCounter reports live websocket connections.
type ClientCounter interface {
	GetConnectedClientsCount() int
}

type HealthHandler struct {
	database Pinger // nil with the memory store
	cache    Pinger // nil when redis is not configured
	clients  ClientCounter
}

func NewHealthHandler(database, cache Pinger, clients ClientCounter) *HealthHandler {
	return &HealthHandler{database: database, cache: cache, clients: clients}
}

// Health - GET /api/health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	database := "memory"
	if h.database != nil {
		database = "connected"
		if err := h.database.Ping(ctx); err != nil {
			database = "disconnected"
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}

	cache := "disabled"
	if h.cache != nil {
		cache = "connected"
		if err := h.cache.Ping(ctx); err != nil {
			cache = "unavailable"
		}
	}

	clients := 0
	if h.clients != nil {
		clients = h.clients.GetConnectedClientsCount()
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"database":  database,
		"cache":     cache,
		"websocket": "active",
		"wsClients": clients,
	})
}
