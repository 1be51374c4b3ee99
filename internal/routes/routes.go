package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/mani-django09/smallpdf.us-sub000/internal/handler"
	"github.com/mani-django09/smallpdf.us-sub000/internal/job"
)

func RegisterRoutes(router *gin.RouterGroup, h *handler.Handler, operations []job.Operation) {
	for _, op := range operations {
		router.POST("/"+string(op), h.Convert(op))
	}

	router.POST("/analyze-pdf", h.AnalyzePDF)
	router.GET("/download/:jobId", h.Download)
	router.GET("/jobs/:jobId", h.JobStatus)
	router.GET("/ws", h.WebSocket)
	router.GET("/health", h.Health)
}
