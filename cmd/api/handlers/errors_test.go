package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkvision/visionserve/common/apierr"
)

func respond(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/images/abc", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, respondError(c, err))
	return rec
}

func TestRespondErrorMapsValidationTo400(t *testing.T) {
	rec := respond(t, apierr.Validation("bad mime type", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRespondErrorMapsNotFoundTo404(t *testing.T) {
	rec := respond(t, apierr.NotFound("no such hash", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRespondErrorMapsRateLimitTo429AndSetsRetryAfter(t *testing.T) {
	rec := respond(t, apierr.RateLimitExceeded(30))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}

func TestRespondErrorMapsServiceUnavailableTo503(t *testing.T) {
	rec := respond(t, apierr.ServiceUnavailable("circuit open", 10))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRespondErrorMapsTimeoutTo504(t *testing.T) {
	rec := respond(t, apierr.Timeout("deadline exceeded", nil))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestRespondErrorTreatsPlainErrorAsProcessingFailure(t *testing.T) {
	rec := respond(t, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	errBody := body["error"].(map[string]any)
	assert.Equal(t, string(apierr.CodeProcessing), errBody["code"])
}
