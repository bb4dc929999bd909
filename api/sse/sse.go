package sse

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questd/cache"
	"github.com/kasuganosora/questd/game/quest"
	"go.uber.org/zap"
)

const defaultKeepalive = 30 * time.Second

// Handler streams a player's quest refresh events over SSE.
type Handler struct {
	pubsub    cache.PubSub
	store     *quest.Store
	keepalive time.Duration
	logger    *zap.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, store *quest.Store, logger *zap.Logger) *Handler {
	return &Handler{pubsub: pubsub, store: store, keepalive: defaultKeepalive, logger: logger}
}

// ServeSSE handles GET /api/players/:id/events.
// Each event is a quest.RefreshEvent published when the player's set for
// some period is replaced.
func (h *Handler) ServeSSE(c *gin.Context) {
	playerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || playerID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	ok, err := h.store.PlayerExists(c.Request.Context(), playerID)
	if err != nil {
		h.logger.Error("sse player lookup failed", zap.Int64("player_id", playerID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": quest.ErrPlayerNotFound.Error()})
		return
	}

	msgCh, unsub, err := h.pubsub.Subscribe(c.Request.Context(), quest.PlayerChannel(playerID))
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"player_id\":%d}\n\n", playerID)
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: quest_refresh\ndata: %s\n\n", msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
