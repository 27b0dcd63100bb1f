package service

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkvision/visionserve/common/models"
)

func testSourceImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testRenderRequest() models.RenderRequest {
	return models.RenderRequest{
		IncludeBoxes:        true,
		IncludeFaces:        true,
		IncludeLabels:       true,
		Format:              "png",
		Quality:             90,
		Style:               models.DefaultAnnotationStyle(),
		ConfidenceThreshold: 0.5,
		MaxObjects:          10,
	}
}

func testDetections() []models.Detection {
	return []models.Detection{
		{ObjectID: "1", ClassName: "tree", Confidence: 0.9, BBox: models.BBox{X: 0.1, Y: 0.1, W: 0.2, H: 0.2}},
		{ObjectID: "2", ClassName: "rock", Confidence: 0.4, BBox: models.BBox{X: 0.5, Y: 0.5, W: 0.1, H: 0.1}},
	}
}

func testFaces() []models.Face {
	return []models.Face{
		{FaceID: "f1", BBox: models.BBox{X: 0.3, Y: 0.3, W: 0.1, H: 0.1}},
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	a := NewAnnotator()
	original := testSourceImage(t)
	req := testRenderRequest()

	out1, w1, h1, stats1, err := a.Render(original, req, testDetections(), testFaces())
	require.NoError(t, err)
	out2, w2, h2, stats2, err := a.Render(original, req, testDetections(), testFaces())
	require.NoError(t, err)

	assert.Equal(t, out1, out2, "rendering the same inputs twice must produce byte-identical output")
	assert.Equal(t, w1, w2)
	assert.Equal(t, h1, h2)
	assert.Equal(t, stats1, stats2)
}

func TestRenderFiltersByConfidenceThreshold(t *testing.T) {
	a := NewAnnotator()
	req := testRenderRequest()
	req.ConfidenceThreshold = 0.8

	_, _, _, stats, err := a.Render(testSourceImage(t), req, testDetections(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalObjects, "only the detection above threshold should survive")
}

func TestRenderRespectsMaxObjects(t *testing.T) {
	a := NewAnnotator()
	req := testRenderRequest()
	req.ConfidenceThreshold = 0
	req.MaxObjects = 1

	_, _, _, stats, err := a.Render(testSourceImage(t), req, testDetections(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalObjects)
}

func TestRenderRejectsUndecodableImage(t *testing.T) {
	a := NewAnnotator()
	req := testRenderRequest()
	_, _, _, _, err := a.Render([]byte("not an image"), req, nil, nil)
	assert.Error(t, err)
}

func TestRenderSupportsAllFormats(t *testing.T) {
	a := NewAnnotator()
	original := testSourceImage(t)
	for _, format := range []string{"png", "jpg", "webp"} {
		req := testRenderRequest()
		req.Format = format
		out, _, _, _, err := a.Render(original, req, testDetections(), testFaces())
		require.NoError(t, err, "format %s should encode without error", format)
		assert.NotEmpty(t, out)
	}
}
