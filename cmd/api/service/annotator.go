package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"sort"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/parkvision/visionserve/common/apierr"
	"github.com/parkvision/visionserve/common/models"
)

// Annotator implements C6: decode original pixels, draw boxes/face-dots/
// labels/connectors in z-order, re-encode. Grounded on
// menta2k-image-analyzer/pkg/processing/processor.go's drawHLine/drawVLine/
// drawBox pixel helpers (generalized here to variable stroke thickness and
// with a face-dot/label/connector pass the source pipeline has no
// counterpart for) and its decode→imaging.Clone→re-encode shape for
// png/jpg/webp. Output is deterministic: no timestamps, no randomness, a
// fixed draw order (§4.6).
type Annotator struct{}

// NewAnnotator constructs an Annotator.
func NewAnnotator() *Annotator {
	return &Annotator{}
}

// Render implements §4.6's process: decode, draw in z-order, re-encode.
func (a *Annotator) Render(original []byte, req models.RenderRequest, detections []models.Detection, faces []models.Face) ([]byte, int, int, models.AnnotationStats, error) {
	img, _, err := image.Decode(bytes.NewReader(original))
	if err != nil {
		return nil, 0, 0, models.AnnotationStats{}, apierr.Validation("unable to decode original image for annotation", err)
	}
	canvas := imaging.Clone(img)
	bounds := canvas.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	style := req.Style
	kept := a.selectDetections(detections, req.ConfidenceThreshold, req.MaxObjects)

	if req.IncludeBoxes {
		boxColor := mustParseHex(style.BoxColor)
		for _, d := range kept {
			drawBox(canvas, d.BBox, w, h, boxColor, style.BoxThickness)
		}
	}

	if req.IncludeFaces {
		faceColor := mustParseHex(style.FaceMarkerColor)
		for _, f := range faces {
			cx := int((f.BBox.X+f.BBox.W/2)*float64(w) + 0.5)
			cy := int((f.BBox.Y+f.BBox.H/2)*float64(h) + 0.5)
			drawDot(canvas, cx, cy, style.FaceMarkerRadius, faceColor)
		}
	}

	if req.IncludeLabels {
		labelColor := mustParseHex(style.LabelColor)
		connectorColor := mustParseHex(style.ConnectorColor)
		bgColor := mustParseHexAlpha(style.TextBg, style.TextAlpha)
		face := basicfont.Face7x13
		for _, d := range kept {
			x0, y0, x1, _ := boxToPixelsService(d.BBox, w, h)
			labelText := fmt.Sprintf("%s %.0f%%", d.ClassName, d.Confidence*100)
			labelX, labelY := clipLabelOrigin(x0, y0-16, labelText, w, h, face)
			drawConnector(canvas, x0, y0, labelX, labelY, connectorColor)
			drawLabelBackground(canvas, labelX, labelY, labelText, face, bgColor)
			drawLabel(canvas, labelX, labelY, labelText, face, labelColor)
			_ = x1
		}
	}

	encoded, err := encodeImage(canvas, req.Format, req.Quality)
	if err != nil {
		return nil, 0, 0, models.AnnotationStats{}, apierr.Processing("encode_annotated_image", req.Format, err)
	}

	stats := computeStats(kept, faces)
	return encoded, w, h, stats, nil
}

// selectDetections picks the top-max_objects detections by confidence
// above threshold (§4.6).
func (a *Annotator) selectDetections(detections []models.Detection, threshold float64, maxObjects int) []models.Detection {
	var eligible []models.Detection
	for _, d := range detections {
		if d.Confidence >= threshold {
			eligible = append(eligible, d)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool { return eligible[i].Confidence > eligible[j].Confidence })
	if maxObjects > 0 && len(eligible) > maxObjects {
		eligible = eligible[:maxObjects]
	}
	return eligible
}

func computeStats(detections []models.Detection, faces []models.Face) models.AnnotationStats {
	stats := models.AnnotationStats{
		TotalObjects:   len(detections),
		TotalFaces:     len(faces),
		ClassHistogram: make(map[string]int),
	}
	if len(detections) == 0 {
		return stats
	}

	stats.ConfidenceStats.Min = math.MaxFloat64
	var sum float64
	for _, d := range detections {
		stats.ClassHistogram[d.ClassName]++
		sum += d.Confidence
		if d.Confidence < stats.ConfidenceStats.Min {
			stats.ConfidenceStats.Min = d.Confidence
		}
		if d.Confidence > stats.ConfidenceStats.Max {
			stats.ConfidenceStats.Max = d.Confidence
		}
		switch {
		case d.Confidence >= 0.8:
			stats.ConfidenceStats.High++
		case d.Confidence >= 0.5:
			stats.ConfidenceStats.Mid++
		default:
			stats.ConfidenceStats.Low++
		}
	}
	stats.ConfidenceStats.Mean = sum / float64(len(detections))
	return stats
}

func encodeImage(img *image.NRGBA, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, err
		}
	case "webp":
		opts := &webp.Options{Lossless: false, Quality: float32(quality)}
		if err := webp.Encode(&buf, img, opts); err != nil {
			return nil, err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func mustParseHex(hex string) color.NRGBA {
	c, err := parseHexColor(hex)
	if err != nil {
		return color.NRGBA{R: 0, G: 0, B: 0, A: 255}
	}
	return c
}

func mustParseHexAlpha(hex string, alpha float64) color.NRGBA {
	c := mustParseHex(hex)
	c.A = uint8(clampPct(alpha*100) / 100 * 255)
	return c
}

func parseHexColor(hex string) (color.NRGBA, error) {
	if len(hex) != 7 || hex[0] != '#' {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", hex)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.NRGBA{}, err
	}
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

func boxToPixelsService(box models.BBox, w, h int) (x0, y0, x1, y1 int) {
	x0 = int(clampFloat(box.X, 0, 1)*float64(w) + 0.5)
	y0 = int(clampFloat(box.Y, 0, 1)*float64(h) + 0.5)
	x1 = int(clampFloat(box.X+box.W, 0, 1)*float64(w) + 0.5)
	y1 = int(clampFloat(box.Y+box.H, 0, 1)*float64(h) + 0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func drawBox(img *image.NRGBA, box models.BBox, w, h int, c color.NRGBA, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	x0, y0, x1, y1 := boxToPixelsService(box, w, h)
	for s := 0; s < thickness; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}

// drawDot draws a filled square marker approximating a face dot, since the
// pixel helpers above only give straight lines.
func drawDot(img *image.NRGBA, cx, cy, radius int, c color.NRGBA) {
	if radius < 1 {
		radius = 1
	}
	for y := cy - radius; y <= cy+radius; y++ {
		drawHLine(img, y, cx-radius, cx+radius+1, c)
	}
}

func drawConnector(img *image.NRGBA, fromX, fromY, toX, toY int, c color.NRGBA) {
	dx := toX - fromX
	dy := toY - fromY
	steps := int(math.Max(math.Abs(float64(dx)), math.Abs(float64(dy))))
	if steps == 0 {
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := fromX + int(float64(dx)*t)
		y := fromY + int(float64(dy)*t)
		setPixel(img, x, y, c)
	}
}

func setPixel(img *image.NRGBA, x, y int, c color.NRGBA) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
		return
	}
	i := (y-b.Min.Y)*img.Stride + (x-b.Min.X)*4
	img.Pix[i+0] = c.R
	img.Pix[i+1] = c.G
	img.Pix[i+2] = c.B
	img.Pix[i+3] = c.A
}

// clipLabelOrigin keeps the label's bounding text box within image bounds
// (§4.6 "labels are clipped to image bounds").
func clipLabelOrigin(x, y int, text string, w, h int, face font.Face) (int, int) {
	textWidth := font.MeasureString(face, text).Ceil()
	const textHeight = 16
	if x < 0 {
		x = 0
	}
	if x+textWidth > w {
		x = w - textWidth
		if x < 0 {
			x = 0
		}
	}
	if y < 0 {
		y = 0
	}
	if y+textHeight > h {
		y = h - textHeight
		if y < 0 {
			y = 0
		}
	}
	return x, y
}

func drawLabelBackground(img *image.NRGBA, x, y int, text string, face font.Face, bg color.NRGBA) {
	textWidth := font.MeasureString(face, text).Ceil()
	for dy := 0; dy < 16; dy++ {
		drawHLine(img, y+dy, x-2, x+textWidth+2, bg)
	}
}

func drawLabel(img *image.NRGBA, x, y int, text string, face font.Face, c color.NRGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+12),
	}
	d.DrawString(text)
}
