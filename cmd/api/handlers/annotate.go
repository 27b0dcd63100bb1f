package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/parkvision/visionserve/cmd/api/service"
	"github.com/parkvision/visionserve/common/apierr"
	"github.com/parkvision/visionserve/common/bootstrap"
	"github.com/parkvision/visionserve/common/models"
)

// AnnotateHandler handles the DownloadAnnotated entry point (§6), which
// composes the Vision Primitives Client (C3) and Annotation Renderer (C6)
// behind the Request Coordinator (C8).
type AnnotateHandler struct {
	components  *bootstrap.Components
	coordinator *service.Coordinator
}

// NewAnnotateHandler creates a new annotate handler.
func NewAnnotateHandler(components *bootstrap.Components, coordinator *service.Coordinator) *AnnotateHandler {
	return &AnnotateHandler{components: components, coordinator: coordinator}
}

type downloadAnnotatedBody struct {
	IncludeFaces        bool            `json:"include_faces"`
	IncludeBoxes        bool            `json:"include_boxes"`
	IncludeLabels       bool            `json:"include_labels"`
	Format              string          `json:"format"`
	Quality             int             `json:"quality"`
	Style               json.RawMessage `json:"style"`
	ConfidenceThreshold float64         `json:"confidence_threshold"`
	MaxObjects          int             `json:"max_objects"`
	ForceRefresh        bool            `json:"force_refresh"`
}

// DownloadAnnotated handles POST /api/v1/images/:hash/annotate (§6 DownloadAnnotated).
func (h *AnnotateHandler) DownloadAnnotated(c echo.Context) error {
	var body downloadAnnotatedBody
	if err := c.Bind(&body); err != nil {
		return respondError(c, apierr.Validation("invalid request body", err))
	}
	if body.Format == "" {
		body.Format = "png"
	}
	if body.Quality == 0 {
		body.Quality = 90
	}

	req := service.DownloadAnnotatedRequest{
		ImageHash: c.Param("hash"),
		Render: models.RenderRequest{
			IncludeFaces:        body.IncludeFaces,
			IncludeBoxes:        body.IncludeBoxes,
			IncludeLabels:       body.IncludeLabels,
			Format:              body.Format,
			Quality:             body.Quality,
			ConfidenceThreshold: body.ConfidenceThreshold,
			MaxObjects:          body.MaxObjects,
		},
		StyleOverride: body.Style,
		ForceRefresh:  body.ForceRefresh,
	}

	envelope, err := h.coordinator.DownloadAnnotated(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, envelope)
}
