package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/parkvision/visionserve/cmd/api/handlers"
)

// registerBatchRoutes registers the Batch Orchestrator's client-facing route (C7/C8).
func registerBatchRoutes(g *echo.Group, h *handlers.BatchHandler) {
	g.POST("/batch/analyze", h.BatchAnalyze)
}
