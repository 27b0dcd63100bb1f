// Package routes registers the api service's HTTP surface against an Echo
// group, one file per handler group, mirroring the teacher's
// cmd/orchestrator/routes layout.
package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/parkvision/visionserve/cmd/api/container"
	"github.com/parkvision/visionserve/cmd/api/handlers"
)

// Register wires every route group against the given Echo group, handing
// each handler the services it needs straight from the container.
func Register(g *echo.Group, c *container.Container) {
	imageHandler := handlers.NewImageHandler(c.Components, c.Coordinator)
	analyzeHandler := handlers.NewAnalyzeHandler(c.Components, c.Coordinator)
	annotateHandler := handlers.NewAnnotateHandler(c.Components, c.Coordinator)
	batchHandler := handlers.NewBatchHandler(c.Components, c.Coordinator)
	adminHandler := handlers.NewAdminHandler(c.Components, c.Coordinator)

	registerImageRoutes(g, imageHandler)
	registerAnalyzeRoutes(g, analyzeHandler)
	registerAnnotateRoutes(g, annotateHandler)
	registerBatchRoutes(g, batchHandler)
	registerAdminRoutes(g, adminHandler)
}
