package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"ecoshower-backend/config"
	"ecoshower-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	// The device ingestion pipeline authenticates at the broker/gateway, not
	// with user identity, and is exempt from the interactive rate limit.
	r.POST("/ingest/telemetry", h.IngestTelemetry)

	api := r.Group("/api")
	api.Use(rateLimiter, mw.Identity())
	{
		api.GET("/devices", h.ListDevices)
		api.POST("/devices", h.AddDevice)
		api.GET("/devices/:device_id", h.GetDevice)
		api.PUT("/devices/:device_id", h.UpdateDevice)
		api.DELETE("/devices/:device_id", h.DeleteDevice)
		api.POST("/devices/:device_id/command", h.SendCommand)
		api.POST("/devices/:device_id/start", h.StartSession)
		api.POST("/devices/:device_id/stop", h.StopSession)
		api.POST("/devices/:device_id/ready", h.MarkWaterReady)

		api.DELETE("/sessions/:session_id", h.DeleteSession)

		api.GET("/dashboard/summary", caching, h.GetSummary)
		api.GET("/dashboard/history", caching, h.GetHistory)
		api.GET("/dashboard/realtime/:device_id", h.GetRealtime)

		api.GET("/users/me", h.GetProfile)
		api.PUT("/users/me", h.UpdateProfile)
		api.PUT("/users/me/subscription", h.PutSubscription)
		api.DELETE("/users/me/subscription", h.DeleteSubscription)
		api.GET("/settings", h.GetSettings)
		api.PUT("/settings", h.UpdateProfile)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)

		admin := api.Group("/admin")
		admin.Use(RequireAdmin())
		{
			admin.GET("/stats", h.GetSystemStats)
			admin.GET("/users", h.ListAllUsers)
			admin.GET("/devices", h.ListAllDevices)
			admin.DELETE("/users/:user_id", h.DeleteUser)
			admin.POST("/users/:user_id/role", h.UpdateUserRole)
		}
	}

	return r
}
