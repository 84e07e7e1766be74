// Package api assembles the HTTP surface: middleware, routes and handlers.
package api

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/api/handlers"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/api/middleware"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/config"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/service"
)

type RouterConfig struct {
	Config    *config.Config
	Services  *service.Services
	Health    *handlers.HealthHandler
	WebSocket gin.HandlerFunc // nil leaves /api/ws unrouted
}

func NewRouter(rc RouterConfig) (*gin.Engine, error) {
	cfg := rc.Config

	authLimit, err := middleware.RateLimit(cfg.RateLimitAuth)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_AUTH: %w", err)
	}
	apiLimit, err := middleware.RateLimit(cfg.RateLimitAPI)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_API: %w", err)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Recovery())
	r.Use(middleware.Prometheus())
	r.Use(cors.New(corsConfig(cfg)))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := handlers.NewHandlers(rc.Services)
	requireAuth := middleware.AuthMiddleware(rc.Services.Auth)

	api := r.Group("/api")
	{
		if rc.Health != nil {
			api.GET("/health", rc.Health.Health)
		}
		if rc.WebSocket != nil {
			// no request timeout: the connection outlives the upgrade
			api.GET("/ws", rc.WebSocket)
		}

		auth := api.Group("/auth")
		auth.Use(middleware.Timeout(cfg.RequestTimeout))
		{
			auth.POST("/register", authLimit, h.Auth.Register)
			auth.POST("/login", authLimit, h.Auth.Login)
			auth.GET("/me", requireAuth, h.Auth.Me)
		}

		protected := api.Group("")
		protected.Use(middleware.Timeout(cfg.RequestTimeout), requireAuth, apiLimit)
		{
			users := protected.Group("/users")
			{
				users.GET("", h.User.List)
				users.PUT("/me/preferences", h.User.UpdatePreferences)
				users.GET("/:id", h.User.Get)
				users.PATCH("/:id/active", h.User.SetActive)
			}

			projects := protected.Group("/projects")
			{
				projects.GET("", h.Project.List)
				projects.POST("", h.Project.Create)
				projects.GET("/:id", h.Project.Get)
				projects.PUT("/:id", h.Project.Update)
				projects.DELETE("/:id", h.Project.Delete)

				projects.GET("/:id/members", h.Project.ListMembers)
				projects.POST("/:id/members", h.Project.AddMember)
				projects.DELETE("/:id/members/:userId", h.Project.RemoveMember)

				projects.GET("/:id/activities", h.Project.Activities)
			}

			tasks := protected.Group("/tasks")
			{
				tasks.GET("", h.Task.List)
				tasks.POST("", h.Task.Create)
				tasks.GET("/:id", h.Task.Get)
				tasks.PUT("/:id", h.Task.Update)
				tasks.DELETE("/:id", h.Task.Delete)
				tasks.GET("/:id/subtasks", h.Task.ListSubtasks)
			}

			activities := protected.Group("/activities")
			{
				activities.GET("", h.Activity.List)
				activities.POST("/comments", h.Activity.AddComment)
			}

			analytics := protected.Group("/analytics")
			{
				analytics.GET("/overview", h.Analytics.Overview)
				analytics.GET("/charts", h.Analytics.Charts)
			}
		}
	}

	return r, nil
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	origins := cfg.AllowedOrigins()
	for _, o := range origins {
		if o == "*" {
			// credentials cannot be combined with a wildcard origin
			c.AllowAllOrigins = true
			c.AllowCredentials = false
			return c
		}
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
		return c
	}
	c.AllowOrigins = origins
	return c
}
