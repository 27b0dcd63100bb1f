package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/parkvision/visionserve/cmd/api/service"
	"github.com/parkvision/visionserve/common/apierr"
	"github.com/parkvision/visionserve/common/bootstrap"
	"github.com/parkvision/visionserve/common/models"
)

// AnalyzeHandler handles the Analyze/AnalyzeNature entry points of the
// Request Coordinator (C8).
type AnalyzeHandler struct {
	components  *bootstrap.Components
	coordinator *service.Coordinator
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(components *bootstrap.Components, coordinator *service.Coordinator) *AnalyzeHandler {
	return &AnalyzeHandler{components: components, coordinator: coordinator}
}

type analyzeBody struct {
	Kind                string  `json:"kind"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	ForceRefresh        bool    `json:"force_refresh"`
}

// Analyze handles POST /api/v1/images/:hash/analyze (§6 Analyze).
func (h *AnalyzeHandler) Analyze(c echo.Context) error {
	var body analyzeBody
	if err := c.Bind(&body); err != nil {
		return respondError(c, apierr.Validation("invalid request body", err))
	}
	if body.ConfidenceThreshold == 0 {
		body.ConfidenceThreshold = h.components.Config.Analyzer.ConfidenceThreshold
	}

	req := service.AnalyzeRequest{
		ImageHash:           c.Param("hash"),
		Kind:                models.ArtifactKind(body.Kind),
		ConfidenceThreshold: body.ConfidenceThreshold,
		ForceRefresh:        body.ForceRefresh,
	}

	envelope, err := h.coordinator.Analyze(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, envelope)
}

type analyzeNatureBody struct {
	Depth               string  `json:"depth"`
	IncludeHealth       bool    `json:"include_health"`
	IncludeSeasonal     bool    `json:"include_seasonal"`
	IncludeColor        bool    `json:"include_color"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	ForceRefresh        bool    `json:"force_refresh"`
}

// AnalyzeNature handles POST /api/v1/images/:hash/analyze/nature (§6 AnalyzeNature).
func (h *AnalyzeHandler) AnalyzeNature(c echo.Context) error {
	var body analyzeNatureBody
	if err := c.Bind(&body); err != nil {
		return respondError(c, apierr.Validation("invalid request body", err))
	}
	if body.Depth == "" {
		body.Depth = "basic"
	}
	if body.ConfidenceThreshold == 0 {
		body.ConfidenceThreshold = h.components.Config.Analyzer.ConfidenceThreshold
	}

	req := service.AnalyzeNatureRequest{
		ImageHash:           c.Param("hash"),
		Depth:               body.Depth,
		IncludeHealth:       body.IncludeHealth,
		IncludeSeasonal:     body.IncludeSeasonal,
		IncludeColor:        body.IncludeColor,
		ConfidenceThreshold: body.ConfidenceThreshold,
		ForceRefresh:        body.ForceRefresh,
	}

	envelope, err := h.coordinator.AnalyzeNature(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, envelope)
}
