package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/parkvision/visionserve/cmd/api/handlers"
)

// registerAdminRoutes registers Result Cache operational routes (C4).
func registerAdminRoutes(g *echo.Group, h *handlers.AdminHandler) {
	g.POST("/admin/cache/:kind/invalidate", h.InvalidateVersion)
	g.GET("/admin/cache/stats", h.Stats)
	g.POST("/admin/cache/clear", h.ClearCache)
}
