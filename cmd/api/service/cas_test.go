package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkvision/visionserve/common/apierr"
)

func TestComputeImageHashDeterministic(t *testing.T) {
	content := []byte("same bytes every time")
	assert.Equal(t, ComputeImageHash(content), ComputeImageHash(content))
	assert.NotEqual(t, ComputeImageHash(content), ComputeImageHash([]byte("different bytes")))
}

func solidImage(c color.Color, w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestComputePerceptualHashStableUnderReencode(t *testing.T) {
	img := solidImage(color.RGBA{R: 200, G: 100, B: 50, A: 255}, 64, 64)

	hash1, err := ComputePerceptualHash(img)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)

	hash2, err := ComputePerceptualHash(decoded)
	require.NoError(t, err)

	assert.Equal(t, hash1, hash2, "the same visual content must hash identically after a lossless re-encode")
}

func TestComputePerceptualHashDiffersForDifferentImages(t *testing.T) {
	solid := solidImage(color.RGBA{R: 10, G: 10, B: 10, A: 255}, 64, 64)
	checker := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if (x/8+y/8)%2 == 0 {
				checker.Set(x, y, color.White)
			} else {
				checker.Set(x, y, color.Black)
			}
		}
	}

	h1, err := ComputePerceptualHash(solid)
	require.NoError(t, err)
	h2, err := ComputePerceptualHash(checker)
	require.NoError(t, err)

	dist, err := HammingDistance64(h1, h2)
	require.NoError(t, err)
	assert.Greater(t, dist, 0, "a flat image and a checkerboard must not collide perceptually")
}

func TestHammingDistance64(t *testing.T) {
	dist, err := HammingDistance64("0000000000000000", "0000000000000000")
	require.NoError(t, err)
	assert.Equal(t, 0, dist)

	dist, err = HammingDistance64("0000000000000000", "ffffffffffffffff")
	require.NoError(t, err)
	assert.Equal(t, 64, dist)

	_, err = HammingDistance64("not-hex", "0000000000000000")
	assert.Error(t, err)
}

func TestIngestRejectsUnsupportedMimeType(t *testing.T) {
	s := &CASService{maxUploadBytes: 1 << 20}
	_, err := s.Ingest(context.Background(), []byte("data"), "f.txt", "text/plain")
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeValidation, apiErr.Code)
}

func TestIngestRejectsOversizedUpload(t *testing.T) {
	s := &CASService{maxUploadBytes: 4}
	_, err := s.Ingest(context.Background(), []byte("way too big"), "f.png", "image/png")
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeValidation, apiErr.Code)
}

func TestExtensionForMime(t *testing.T) {
	assert.Equal(t, "jpg", extensionForMime("image/jpeg"))
	assert.Equal(t, "png", extensionForMime("image/png"))
	assert.Equal(t, "bin", extensionForMime("application/octet-stream"))
}
