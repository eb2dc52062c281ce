package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"lift-maintenance-backend/config"
	"lift-maintenance-backend/internal/mw"
	"lift-maintenance-backend/internal/sched"
	"lift-maintenance-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, s store.Store, engine *sched.Engine, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	db := s.DB()
	handler := NewHandler(s, engine, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	// Zone listings change rarely; a short response cache keeps the
	// aggregation query off the hot path.
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/zones", caching, GetZones(db))

		api.GET("/schedules", handler.GetSchedules)
		api.POST("/schedules", handler.PostSchedule)
		api.POST("/schedules/bulk", handler.PostBulkSchedules)
		api.POST("/schedules/:id/move", handler.PostMoveSchedule)
		api.POST("/schedules/:id/validate", handler.PostValidateSchedule)
		api.DELETE("/schedules/:id", handler.DeleteSchedule)
		api.PUT("/schedules/:id/engineers", handler.PutScheduleEngineers)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
