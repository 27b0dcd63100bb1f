package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/parkvision/visionserve/cmd/api/handlers"
)

// registerImageRoutes registers ingestion/metadata routes (C1).
func registerImageRoutes(g *echo.Group, h *handlers.ImageHandler) {
	g.POST("/images", h.UploadImage)
	g.GET("/images", h.ListImages)
	g.GET("/images/:hash", h.GetImageInfo)
	g.DELETE("/images/:hash", h.DeleteImage)
	g.GET("/images/:hash/duplicate", h.CheckDuplicate)
}
