package http

import "github.com/gin-gonic/gin"

// Register registers the command intake routes.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/events", h.PublishCommand)
	rg.GET("/graphs/:id/log", h.ListGraphEvents)
}
