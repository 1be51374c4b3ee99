package server

import (
	"github.com/gin-gonic/gin"

	"github.com/mani-django09/smallpdf.us-sub000/internal/handler"
	"github.com/mani-django09/smallpdf.us-sub000/internal/job"
	"github.com/mani-django09/smallpdf.us-sub000/internal/routes"
)

func NewServer(h *handler.Handler, operations []job.Operation) *gin.Engine {
	g := gin.Default()
	// Multipart bodies above this spill to disk instead of memory.
	g.MaxMultipartMemory = 32 << 20

	api := g.Group("/api")
	routes.RegisterRoutes(api, h, operations)
	return g
}
