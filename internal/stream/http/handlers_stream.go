package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/craftdeck/craftdeck-backend/internal/events/broker"
	graphs "github.com/craftdeck/craftdeck-backend/internal/graphs/domain"
	graphsvc "github.com/craftdeck/craftdeck-backend/internal/graphs/service"
)

// Handler streams success events to browser clients.
type Handler struct {
	broker       *broker.Broker
	graphService *graphsvc.GraphService
}

// NewHandler creates a new stream handler.
func NewHandler(b *broker.Broker, graphService *graphsvc.GraphService) *Handler {
	return &Handler{broker: b, graphService: graphService}
}

// Register registers the stream routes.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/graphs/:id/events", h.StreamGraphEvents)
}

// StreamGraphEvents streams a graph's success events over Server-Sent
// Events (SSE). Events issued by the requesting client are filtered out:
// that client already applied them optimistically, so replaying the echo
// would double-apply.
func (h *Handler) StreamGraphEvents(c *gin.Context) {
	graphID := c.Param("id")
	if graphID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "graph id is required"})
		return
	}
	clientID := c.Query("client_id")

	// Verify the graph exists before holding a stream open for it.
	g, err := h.graphService.GetGraph(c.Request.Context(), graphID)
	if err != nil {
		if errors.Is(err, graphs.ErrGraphNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "graph not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to get graph"})
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // nginx: disable buffering

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "streaming unsupported"})
		return
	}

	// Send initial graph state
	initialData, _ := json.Marshal(gin.H{"graph": g})
	fmt.Fprintf(c.Writer, "event: initial\ndata: %s\n\n", string(initialData))
	flusher.Flush()

	ctx := c.Request.Context()

	stream, stop := h.broker.SubscribeGraphs(ctx, graphID)
	defer stop()

	// Set up keep-alive pings
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Client disconnected
			return

		case <-ticker.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()

		case env, open := <-stream:
			if !open {
				return
			}
			if clientID != "" && env.Data.ClientID == clientID {
				// Echo suppression: the issuing client already applied
				// this change locally.
				continue
			}
			data, err := json.Marshal(env)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", env.Data.Type, string(data))
			flusher.Flush()
		}
	}
}
