package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questd/audit"
	"github.com/kasuganosora/questd/game/quest"
	mw "github.com/kasuganosora/questd/middleware"
	"github.com/kasuganosora/questd/model"
	"github.com/kasuganosora/questd/scheduler"
	"go.uber.org/zap"
)

// AdminHandler exposes the quest lifecycle jobs to operators.
// Routes should be protected by mw.AdminAuth.
type AdminHandler struct {
	svc    *quest.Service
	sched  *scheduler.Scheduler
	audit  *audit.Service
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler. audit may be nil.
func NewAdminHandler(svc *quest.Service, sched *scheduler.Scheduler, auditSvc *audit.Service, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, sched: sched, audit: auditSvc, logger: logger}
}

func (h *AdminHandler) record(c *gin.Context, action string, playerID *int64, req, resp interface{}, err error, began time.Time) {
	if h.audit == nil {
		return
	}
	h.audit.Log(audit.Entry{
		TraceID:  mw.GetTraceID(c),
		PlayerID: playerID,
		Action:   action,
		Request:  req,
		Response: resp,
		Err:      err,
		IP:       c.ClientIP(),
		Duration: time.Since(began),
	})
}

// Generate runs bulk generation for one period.
// POST /api/admin/quests/generate/:period
func (h *AdminHandler) Generate(c *gin.Context) {
	began := time.Now()
	period, ok := paramPeriod(c, c.Param("period"))
	if !ok {
		return
	}
	sum, err := h.svc.GenerateForAllPlayers(c.Request.Context(), model.Period(period))
	h.record(c, "quest.generate", nil, gin.H{"period": period}, sum, err, began)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("admin triggered quest generation", zap.String("period", period))
	c.JSON(http.StatusOK, sum)
}

// Cleanup runs the expiry sweep.
// POST /api/admin/quests/cleanup
func (h *AdminHandler) Cleanup(c *gin.Context) {
	began := time.Now()
	sum, err := h.svc.Sweep(c.Request.Context())
	h.record(c, "quest.cleanup", nil, nil, sum, err, began)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// Backfill regenerates sets for players missing one in any period.
// POST /api/admin/quests/backfill
func (h *AdminHandler) Backfill(c *gin.Context) {
	began := time.Now()
	sum, err := h.svc.BackfillMissing(c.Request.Context())
	h.record(c, "quest.backfill", nil, nil, sum, err, began)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// Refresh replaces one player's current set for a period.
// POST /api/admin/players/:id/quests/:period/refresh
func (h *AdminHandler) Refresh(c *gin.Context) {
	began := time.Now()
	playerID, ok := paramID(c, "id")
	if !ok {
		return
	}
	period, ok := paramPeriod(c, c.Param("period"))
	if !ok {
		return
	}
	rows, err := h.svc.ForceGenerate(c.Request.Context(), playerID, model.Period(period))
	h.record(c, "quest.refresh", &playerID, gin.H{"period": period}, gin.H{"count": len(rows)}, err, began)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("admin refreshed player quests",
		zap.Int64("player_id", playerID), zap.String("period", period))
	c.JSON(http.StatusOK, gin.H{"player_id": playerID, "period": period, "quests": rows})
}

// Stats returns aggregate counts for the current window of a period.
// GET /api/admin/quests/stats/:period
func (h *AdminHandler) Stats(c *gin.Context) {
	period, ok := paramPeriod(c, c.Param("period"))
	if !ok {
		return
	}
	st, err := h.svc.Stats(c.Request.Context(), model.Period(period))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Runs returns the most recent job summaries.
// GET /api/admin/quests/runs?limit=
func (h *AdminHandler) Runs(c *gin.Context) {
	runs, err := h.svc.RecentRuns(c.Request.Context(), queryInt(c, "limit", 20, 50))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if runs == nil {
		runs = []quest.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// ListSchedulerTasks returns every registered scheduler job.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.Jobs()})
}

// AuditLog returns recent admin actions.
// GET /api/admin/audit?action=&limit=
func (h *AdminHandler) AuditLog(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusOK, gin.H{"entries": []model.AuditLog{}})
		return
	}
	entries, err := h.audit.Recent(c.Request.Context(), c.Query("action"), queryInt(c, "limit", 50, 500))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
