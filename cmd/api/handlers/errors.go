package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/parkvision/visionserve/common/apierr"
)

// respondError translates a *apierr.Error into the §7 error envelope at the
// appropriate HTTP status; any other error is treated as an unclassified
// processing failure.
func respondError(c echo.Context, err error) error {
	apiErr, ok := apierr.As(err)
	if !ok {
		apiErr = apierr.Processing("handle_request", c.Path(), err)
	}

	status := statusForCode(apiErr.Code)
	body := map[string]any{
		"code":    string(apiErr.Code),
		"message": apiErr.Message,
	}
	if apiErr.Details != nil {
		body["details"] = apiErr.Details
	}
	if apiErr.RetryAfterSeconds != nil {
		body["retry_after_seconds"] = *apiErr.RetryAfterSeconds
		c.Response().Header().Set("Retry-After", strconv.Itoa(*apiErr.RetryAfterSeconds))
	}
	return c.JSON(status, map[string]any{"success": false, "error": body})
}

func statusForCode(code apierr.Code) int {
	switch code {
	case apierr.CodeValidation:
		return http.StatusBadRequest
	case apierr.CodeNotFound:
		return http.StatusNotFound
	case apierr.CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case apierr.CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case apierr.CodeTimeout:
		return http.StatusGatewayTimeout
	case apierr.CodeVisionService, apierr.CodeStorage, apierr.CodeCache, apierr.CodeProcessing:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
