package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/parkvision/visionserve/cmd/api/service"
	"github.com/parkvision/visionserve/common/apierr"
	"github.com/parkvision/visionserve/common/bootstrap"
	"github.com/parkvision/visionserve/common/models"
)

// AdminHandler handles operational entry points against the Result Cache
// (C4): version invalidation, stats, and manual purge.
type AdminHandler struct {
	components  *bootstrap.Components
	coordinator *service.Coordinator
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(components *bootstrap.Components, coordinator *service.Coordinator) *AdminHandler {
	return &AdminHandler{components: components, coordinator: coordinator}
}

// InvalidateVersion handles POST /api/v1/admin/cache/:kind/invalidate (§6 InvalidateVersion).
func (h *AdminHandler) InvalidateVersion(c echo.Context) error {
	kind := c.Param("kind")
	if kind == "" {
		return respondError(c, apierr.Validation("kind is required", nil))
	}
	newVersion, err := h.coordinator.InvalidateVersion(c.Request().Context(), models.ArtifactKind(kind))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"kind": kind, "version": newVersion})
}

// Stats handles GET /api/v1/admin/cache/stats (§6 Stats).
func (h *AdminHandler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.coordinator.Stats())
}

// ClearCache handles POST /api/v1/admin/cache/clear (§6 ClearCache).
func (h *AdminHandler) ClearCache(c echo.Context) error {
	imageHash := c.QueryParam("image_hash")
	purged, err := h.coordinator.ClearCache(c.Request().Context(), imageHash)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"purged": purged})
}
