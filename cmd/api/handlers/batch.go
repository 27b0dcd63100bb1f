package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/parkvision/visionserve/cmd/api/service"
	"github.com/parkvision/visionserve/common/apierr"
	"github.com/parkvision/visionserve/common/bootstrap"
	"github.com/parkvision/visionserve/common/models"
)

// BatchHandler handles the Batch Orchestrator's (C7) client-facing entry
// point, BatchAnalyze (§6).
type BatchHandler struct {
	components  *bootstrap.Components
	coordinator *service.Coordinator
}

// NewBatchHandler creates a new batch handler.
func NewBatchHandler(components *bootstrap.Components, coordinator *service.Coordinator) *BatchHandler {
	return &BatchHandler{components: components, coordinator: coordinator}
}

type batchAnalyzeBody struct {
	ImageHashes         []string `json:"image_hashes"`
	Kinds               []string `json:"kinds"`
	ConcurrencyLimit    int      `json:"concurrency_limit"`
	ConfidenceThreshold float64  `json:"confidence_threshold"`
}

// BatchAnalyze handles POST /api/v1/batch/analyze (§6 BatchAnalyze).
func (h *BatchHandler) BatchAnalyze(c echo.Context) error {
	var body batchAnalyzeBody
	if err := c.Bind(&body); err != nil {
		return respondError(c, apierr.Validation("invalid request body", err))
	}
	if len(body.ImageHashes) == 0 {
		return respondError(c, apierr.Validation("image_hashes must not be empty", nil))
	}
	if len(body.Kinds) == 0 {
		return respondError(c, apierr.Validation("kinds must not be empty", nil))
	}
	if body.ConfidenceThreshold == 0 {
		body.ConfidenceThreshold = h.components.Config.Analyzer.ConfidenceThreshold
	}

	kinds := make([]models.ArtifactKind, len(body.Kinds))
	for i, k := range body.Kinds {
		kinds[i] = models.ArtifactKind(k)
	}

	req := service.BatchAnalyzeRequest{
		ImageHashes:      body.ImageHashes,
		Kinds:            kinds,
		ConcurrencyLimit: body.ConcurrencyLimit,
		Params: service.AnalyzeRequest{
			ConfidenceThreshold: body.ConfidenceThreshold,
		},
	}

	result := h.coordinator.BatchAnalyze(c.Request().Context(), req)
	return c.JSON(http.StatusOK, result)
}
