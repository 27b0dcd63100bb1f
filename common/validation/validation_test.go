package validation

import (
	"testing"

	"github.com/parkvision/visionserve/common/apierr"
	"github.com/parkvision/visionserve/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadCfg() config.UploadConfig {
	return config.UploadConfig{
		MaxUploadBytes:   1024,
		AllowedMimeTypes: []string{"image/jpeg", "image/png"},
	}
}

func TestValidateUploadRejectsUnsupportedMime(t *testing.T) {
	err := ValidateUpload(UploadInput{MimeType: "image/tiff", SizeBytes: 10}, uploadCfg())
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeValidation, apiErr.Code)
}

func TestValidateUploadRejectsOversizedFile(t *testing.T) {
	err := ValidateUpload(UploadInput{MimeType: "image/png", SizeBytes: 2048}, uploadCfg())
	require.Error(t, err)
}

func TestValidateUploadAcceptsValidInput(t *testing.T) {
	err := ValidateUpload(UploadInput{MimeType: "image/jpeg", SizeBytes: 512}, uploadCfg())
	assert.NoError(t, err)
}

func TestValidateAnalyzeRejectsUnknownKind(t *testing.T) {
	err := ValidateAnalyze(AnalyzeInput{Kind: "bogus", ConfidenceThreshold: 0.5})
	require.Error(t, err)
}

func TestValidateAnalyzeRejectsOutOfRangeConfidence(t *testing.T) {
	err := ValidateAnalyze(AnalyzeInput{Kind: "detect", ConfidenceThreshold: 1.5})
	require.Error(t, err)
}

func TestValidateRenderRequestRejectsBadFormat(t *testing.T) {
	err := ValidateRenderRequest(RenderRequestInput{Format: "bmp", Quality: 80, ConfidenceThreshold: 0.5, MaxObjects: 10})
	require.Error(t, err)
}

func TestValidateRenderRequestRejectsBadQuality(t *testing.T) {
	err := ValidateRenderRequest(RenderRequestInput{Format: "png", Quality: 0, ConfidenceThreshold: 0.5, MaxObjects: 10})
	require.Error(t, err)
}

func TestValidateBatchRejectsEmptyLists(t *testing.T) {
	err := ValidateBatch(BatchInput{ImageHashes: nil, Kinds: []string{"detect"}, ConcurrencyLimit: 4})
	require.Error(t, err)

	err = ValidateBatch(BatchInput{ImageHashes: []string{"abc"}, Kinds: nil, ConcurrencyLimit: 4})
	require.Error(t, err)
}

func TestValidateBatchRejectsUnknownKind(t *testing.T) {
	err := ValidateBatch(BatchInput{ImageHashes: []string{"abc"}, Kinds: []string{"bogus"}, ConcurrencyLimit: 4})
	require.Error(t, err)
}
