package bootstrap

import (
	"context"
	"fmt"

	"github.com/parkvision/visionserve/common/config"
	"github.com/parkvision/visionserve/common/db"
	"github.com/parkvision/visionserve/common/logger"
	"github.com/parkvision/visionserve/common/telemetry"
)

// Components holds the ambient dependencies every entrypoint needs
// (config, logging, the Postgres pool, telemetry). Domain services — the
// Result Cache, CAS, blob store, vision client and everything downstream —
// are wired by cmd/api/container, not here, since they need repositories
// and a Redis client that only the api service knows how to construct.
type Components struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *db.DB
	Telemetry *telemetry.Telemetry

	// Internal
	cleanupFuncs []func() error
}

// Shutdown performs graceful shutdown of all components
// Should be called with defer after Setup()
func (c *Components) Shutdown(ctx context.Context) error {
	c.Logger.Info("shutting down components")

	var errors []error

	// Run cleanup functions in reverse order (LIFO)
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			errors = append(errors, err)
			c.Logger.Error("cleanup error", "error", err)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("shutdown errors: %v", errors)
	}

	c.Logger.Info("shutdown complete")
	return nil
}

// Health checks health of all components
func (c *Components) Health(ctx context.Context) error {
	if c.DB != nil {
		if err := c.DB.Health(ctx); err != nil {
			return fmt.Errorf("database unhealthy: %w", err)
		}
	}
	return nil
}

// addCleanup registers a cleanup function
func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
