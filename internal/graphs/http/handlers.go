package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftdeck/craftdeck-backend/internal/graphs/domain"
	"github.com/craftdeck/craftdeck-backend/internal/graphs/service"
)

// Handler serves the graph read API.
type Handler struct {
	graphService *service.GraphService
}

// NewHandler creates a new graph handler.
func NewHandler(graphService *service.GraphService) *Handler {
	return &Handler{graphService: graphService}
}

// GetGraph returns one graph document.
func (h *Handler) GetGraph(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "graph id is required"})
		return
	}

	g, err := h.graphService.GetGraph(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrGraphNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "graph not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to get graph"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "graph": g})
}

// ExportGraph renders a graph as DOT or JSON.
func (h *Handler) ExportGraph(c *gin.Context) {
	id := c.Param("id")
	format := c.DefaultQuery("format", "json")

	out, contentType, err := h.graphService.ExportGraph(c.Request.Context(), id, format)
	if err != nil {
		if errors.Is(err, domain.ErrGraphNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "graph not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.Data(http.StatusOK, contentType, out)
}
