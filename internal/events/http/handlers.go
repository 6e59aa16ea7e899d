package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/craftdeck/craftdeck-backend/internal/events/broker"
	"github.com/craftdeck/craftdeck-backend/internal/events/domain"
	"github.com/craftdeck/craftdeck-backend/internal/events/repository"
)

// Handler is the command intake: it accepts a client's command event,
// persists it to the append-only log and hands it to the relay via the
// broker. The response only acknowledges receipt; the applied confirmation
// arrives on the event stream.
type Handler struct {
	broker   *broker.Broker
	eventLog *repository.LogRepository
}

// NewHandler creates a new command intake handler.
func NewHandler(b *broker.Broker, eventLog *repository.LogRepository) *Handler {
	return &Handler{broker: b, eventLog: eventLog}
}

type publishReq struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	GraphIDs []string        `json:"graphIds"`
	ClientID string          `json:"clientId"`
}

// PublishCommand validates and relays one command event.
func (h *Handler) PublishCommand(c *gin.Context) {
	var req publishReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	if !domain.IsCommandType(req.Type) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unknown event type"})
		return
	}
	if len(req.GraphIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "graphIds is required"})
		return
	}
	if _, err := uuid.Parse(req.ClientID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "clientId must be a uuid"})
		return
	}

	env, err := domain.NewCommand(req.Type, json.RawMessage(req.Payload), req.GraphIDs, req.ClientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid payload"})
		return
	}

	// Every relayed event is logged, unconditionally.
	if h.eventLog != nil {
		if err := h.eventLog.Append(c.Request.Context(), env); err != nil {
			log.Printf("events: failed to log command %s: %v", env.ID, err)
		}
	}

	if err := h.broker.PublishCommand(c.Request.Context(), env); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to publish command"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"ok": true, "id": env.ID})
}

// ListGraphEvents returns the newest logged envelopes for one graph.
func (h *Handler) ListGraphEvents(c *gin.Context) {
	graphID := c.Param("id")
	if graphID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "graph id is required"})
		return
	}
	if h.eventLog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "event log disabled"})
		return
	}

	items, err := h.eventLog.ListByGraph(c.Request.Context(), graphID, 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to list events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "events": items})
}
