package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questd/api/sse"
	mw "github.com/kasuganosora/questd/middleware"
)

// Handlers bundles every REST handler for route registration.
type Handlers struct {
	Quests   *QuestHandler
	Players  *PlayerHandler
	Admin    *AdminHandler
	Events   *sse.Handler
	AdminKey string
	AdminIPs []string
}

// Register mounts the HTTP API on r.
func Register(r *gin.Engine, h Handlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	questsG := api.Group("/quests")
	questsG.GET("", h.Quests.List)
	questsG.POST("", h.Quests.Create)
	questsG.GET("/:id", h.Quests.Get)
	questsG.PUT("/:id", h.Quests.Update)
	questsG.DELETE("/:id", h.Quests.Delete)

	playersG := api.Group("/players/:id")
	playersG.GET("/quests", h.Players.Quests)
	playersG.POST("/progress", h.Players.Progress)
	playersG.POST("/quests/:pq_id/claim", h.Players.Claim)
	if h.Events != nil {
		playersG.GET("/events", h.Events.ServeSSE)
	}

	adminG := api.Group("/admin")
	adminG.Use(mw.IPWhitelist(h.AdminIPs), mw.AdminAuth(h.AdminKey))
	adminG.POST("/quests/generate/:period", h.Admin.Generate)
	adminG.POST("/quests/cleanup", h.Admin.Cleanup)
	adminG.POST("/quests/backfill", h.Admin.Backfill)
	adminG.GET("/quests/stats/:period", h.Admin.Stats)
	adminG.GET("/quests/runs", h.Admin.Runs)
	adminG.POST("/players/:id/quests/:period/refresh", h.Admin.Refresh)
	adminG.GET("/scheduler", h.Admin.ListSchedulerTasks)
	adminG.GET("/audit", h.Admin.AuditLog)
}
