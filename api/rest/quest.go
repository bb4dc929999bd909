package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questd/game/quest"
	"github.com/kasuganosora/questd/model"
	"go.uber.org/zap"
)

// QuestHandler handles plain CRUD over quest records.
type QuestHandler struct {
	store  *quest.Store
	logger *zap.Logger
}

// NewQuestHandler creates a QuestHandler.
func NewQuestHandler(store *quest.Store, logger *zap.Logger) *QuestHandler {
	return &QuestHandler{store: store, logger: logger}
}

type questRequest struct {
	Title         string `json:"title" binding:"required,max=128"`
	Description   string `json:"description" binding:"max=255"`
	ObjectiveKind string `json:"objective_kind" binding:"required"`
	TargetValue   int    `json:"target_value" binding:"required,min=1"`
	RewardExp     int    `json:"reward_exp" binding:"min=0"`
	RewardCoins   int    `json:"reward_coins" binding:"min=0"`
	Period        string `json:"period" binding:"required"`
}

func (h *QuestHandler) bind(c *gin.Context) (*model.Quest, bool) {
	var req questRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	period, ok := paramPeriod(c, req.Period)
	if !ok {
		return nil, false
	}
	kind := model.ObjectiveKind(req.ObjectiveKind)
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown objective_kind"})
		return nil, false
	}
	return &model.Quest{
		Title:         req.Title,
		Description:   req.Description,
		ObjectiveKind: kind,
		TargetValue:   req.TargetValue,
		RewardExp:     req.RewardExp,
		RewardCoins:   req.RewardCoins,
		Period:        model.Period(period),
	}, true
}

// List returns quest records, newest first.
// GET /api/quests?period=&limit=&offset=
func (h *QuestHandler) List(c *gin.Context) {
	f := quest.QuestFilter{
		Limit:  queryInt(c, "limit", 50, 200),
		Offset: queryInt(c, "offset", 0, 1<<20),
	}
	if raw := c.Query("period"); raw != "" {
		p, ok := paramPeriod(c, raw)
		if !ok {
			return
		}
		f.Period = model.Period(p)
	}
	quests, err := h.store.ListQuests(c.Request.Context(), f)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quests": quests, "count": len(quests)})
}

// Get returns one quest record.
// GET /api/quests/:id
func (h *QuestHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	q, err := h.store.GetQuest(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// Create inserts a quest record.
// POST /api/quests
func (h *QuestHandler) Create(c *gin.Context) {
	q, ok := h.bind(c)
	if !ok {
		return
	}
	if err := h.store.CreateQuest(c.Request.Context(), q); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// Update overwrites a quest record.
// PUT /api/quests/:id
func (h *QuestHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	q, ok := h.bind(c)
	if !ok {
		return
	}
	q.ID = id
	if err := h.store.UpdateQuest(c.Request.Context(), q); err != nil {
		respondError(c, h.logger, err)
		return
	}
	updated, err := h.store.GetQuest(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete removes a quest record and its assignments.
// DELETE /api/quests/:id
func (h *QuestHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteQuest(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
