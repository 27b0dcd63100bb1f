package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/parkvision/visionserve/cmd/api/service"
	"github.com/parkvision/visionserve/common/apierr"
	"github.com/parkvision/visionserve/common/bootstrap"
	"github.com/parkvision/visionserve/common/models"
)

// ImageHandler handles ingestion and metadata operations over the
// content-addressed image store (C1).
type ImageHandler struct {
	components  *bootstrap.Components
	coordinator *service.Coordinator
}

// NewImageHandler creates a new image handler.
func NewImageHandler(components *bootstrap.Components, coordinator *service.Coordinator) *ImageHandler {
	return &ImageHandler{components: components, coordinator: coordinator}
}

// UploadImage handles POST /api/v1/images, a multipart upload under the
// "file" field (§6 UploadImage).
func (h *ImageHandler) UploadImage(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return respondError(c, apierr.Validation("file is required", err))
	}

	src, err := fileHeader.Open()
	if err != nil {
		return respondError(c, apierr.Validation("unable to open uploaded file", err))
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		return respondError(c, apierr.Validation("unable to read uploaded file", err))
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	result, err := h.coordinator.UploadImage(c.Request().Context(), content, fileHeader.Filename, mimeType)
	if err != nil {
		h.components.Logger.Error("upload_image failed", "filename", fileHeader.Filename, "error", err)
		return respondError(c, err)
	}

	status := http.StatusCreated
	if result.Status != models.IngestStatusStored {
		status = http.StatusOK
	}
	return c.JSON(status, result)
}

// GetImageInfo handles GET /api/v1/images/:hash (§6 GetImageInfo).
func (h *ImageHandler) GetImageInfo(c echo.Context) error {
	imageHash := c.Param("hash")
	rec, err := h.coordinator.GetImageInfo(c.Request().Context(), imageHash)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// ListImages handles GET /api/v1/images (§6 ListImages).
func (h *ImageHandler) ListImages(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	filter := models.ListImagesFilter{
		MimeType: c.QueryParam("mime_type"),
		Cursor:   c.QueryParam("cursor"),
		Limit:    limit,
	}
	page, err := h.coordinator.ListImages(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// DeleteImage handles DELETE /api/v1/images/:hash (§6 DeleteImage).
func (h *ImageHandler) DeleteImage(c echo.Context) error {
	imageHash := c.Param("hash")
	if err := h.coordinator.DeleteImage(c.Request().Context(), imageHash); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CheckDuplicate handles GET /api/v1/images/:hash/duplicate (§6 CheckDuplicate).
func (h *ImageHandler) CheckDuplicate(c echo.Context) error {
	imageHash := c.Param("hash")
	isDuplicate, exact, similar, err := h.coordinator.CheckDuplicate(c.Request().Context(), imageHash)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"is_duplicate":   isDuplicate,
		"exact_match":    exact,
		"similar_images": similar,
	})
}
