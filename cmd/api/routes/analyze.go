package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/parkvision/visionserve/cmd/api/handlers"
)

// registerAnalyzeRoutes registers the direct-vision analysis routes (C8 Analyze/AnalyzeNature).
func registerAnalyzeRoutes(g *echo.Group, h *handlers.AnalyzeHandler) {
	g.POST("/images/:hash/analyze", h.Analyze)
	g.POST("/images/:hash/analyze/nature", h.AnalyzeNature)
}
