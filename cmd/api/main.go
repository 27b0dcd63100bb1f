package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/parkvision/visionserve/cmd/api/container"
	"github.com/parkvision/visionserve/cmd/api/routes"
	"github.com/parkvision/visionserve/common/bootstrap"
	"github.com/parkvision/visionserve/common/server"
)

func main() {
	ctx := context.Background()

	components, err := bootstrap.Setup(ctx, "visionserve-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap visionserve-api: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize service container: %v\n", err)
		os.Exit(1)
	}
	defer serviceContainer.Close()

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, serviceContainer)

	api := e.Group("/api/v1")
	routes.Register(api, serviceContainer)

	startServer(e, components)
}

func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

func setupHealthCheck(e *echo.Echo, c *container.Container) {
	e.GET("/health", func(ctx echo.Context) error {
		if err := c.Components.Health(ctx.Request().Context()); err != nil {
			return ctx.JSON(503, map[string]string{"status": "unhealthy", "error": err.Error()})
		}
		return ctx.JSON(200, map[string]string{"status": "ok", "service": "visionserve-api"})
	})
}

func startServer(e *echo.Echo, components *bootstrap.Components) {
	port := components.Config.Service.Port
	srv := server.New("visionserve-api", port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
