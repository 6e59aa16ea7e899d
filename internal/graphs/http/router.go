package http

import "github.com/gin-gonic/gin"

// Register registers the graph read routes.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/graphs/:id", h.GetGraph)
	rg.GET("/graphs/:id/export", h.ExportGraph)
}
