package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/parkvision/visionserve/cmd/api/handlers"
)

// registerAnnotateRoutes registers the Annotation Renderer's client-facing route (C6/C8).
func registerAnnotateRoutes(g *echo.Group, h *handlers.AnnotateHandler) {
	g.POST("/images/:hash/annotate", h.DownloadAnnotated)
}
