package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questd/game/quest"
	"github.com/kasuganosora/questd/model"
	"go.uber.org/zap"
)

// PlayerHandler serves a player's own quest board.
type PlayerHandler struct {
	svc    *quest.Service
	logger *zap.Logger
}

// NewPlayerHandler creates a PlayerHandler.
func NewPlayerHandler(svc *quest.Service, logger *zap.Logger) *PlayerHandler {
	return &PlayerHandler{svc: svc, logger: logger}
}

// Quests returns the player's live quests for a period, generating a set
// when there is none.
// GET /api/players/:id/quests?period=daily
func (h *PlayerHandler) Quests(c *gin.Context) {
	playerID, ok := paramID(c, "id")
	if !ok {
		return
	}
	period, ok := paramPeriod(c, c.DefaultQuery("period", string(model.PeriodDaily)))
	if !ok {
		return
	}
	rows, err := h.svc.PlayerQuests(c.Request.Context(), playerID, model.Period(period))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"player_id": playerID, "period": period, "quests": rows})
}

type progressRequest struct {
	ObjectiveKind string `json:"objective_kind" binding:"required"`
	Amount        int    `json:"amount"`
}

// Progress records gameplay progress against matching quests.
// POST /api/players/:id/progress
func (h *PlayerHandler) Progress(c *gin.Context) {
	playerID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind := model.ObjectiveKind(req.ObjectiveKind)
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown objective_kind"})
		return
	}
	rows, err := h.svc.RecordProgress(c.Request.Context(), playerID, kind, req.Amount)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": rows, "count": len(rows)})
}

// Claim pays out a completed quest.
// POST /api/players/:id/quests/:pq_id/claim
func (h *PlayerHandler) Claim(c *gin.Context) {
	playerID, ok := paramID(c, "id")
	if !ok {
		return
	}
	pqID, ok := paramID(c, "pq_id")
	if !ok {
		return
	}
	res, err := h.svc.Claim(c.Request.Context(), playerID, pqID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
