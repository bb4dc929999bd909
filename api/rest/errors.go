package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questd/game/quest"
	mw "github.com/kasuganosora/questd/middleware"
	"go.uber.org/zap"
)

func statusOf(err error) int {
	switch {
	case errors.Is(err, quest.ErrInvalidPeriod),
		errors.Is(err, quest.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, quest.ErrPlayerNotFound),
		errors.Is(err, quest.ErrQuestNotFound),
		errors.Is(err, quest.ErrPlayerQuestNotFound):
		return http.StatusNotFound
	case errors.Is(err, quest.ErrNotCompleted),
		errors.Is(err, quest.ErrAlreadyClaimed),
		errors.Is(err, quest.ErrQuestExpired):
		return http.StatusConflict
	case errors.Is(err, quest.ErrClaimRejected):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// respondError writes the mapped status. Internal errors are logged and
// hidden behind a generic message.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("trace_id", mw.GetTraceID(c)),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error", "trace_id": mw.GetTraceID(c)})
		return
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func paramPeriod(c *gin.Context, raw string) (string, bool) {
	p, err := quest.ParsePeriod(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return string(p), true
}

// queryInt reads a non-negative int query value clamped to ceiling.
func queryInt(c *gin.Context, key string, def, ceiling int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 0 {
		return def
	}
	return min(v, ceiling)
}
