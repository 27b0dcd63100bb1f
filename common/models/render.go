package models

// AnnotationStyle is the caller-overridable drawing style merged onto
// C6's defaults via RFC 7396 JSON Merge Patch (SPEC_FULL.md [DOMAIN
// STACK]: evanphx/json-patch/v5) before it enters the param fingerprint.
type AnnotationStyle struct {
	FaceMarkerColor  string `json:"face_marker_color"`
	FaceMarkerRadius int    `json:"face_marker_radius"`
	BoxColor         string `json:"box_color"`
	BoxThickness     int    `json:"box_thickness"`
	LabelColor       string `json:"label_color"`
	LabelFontPx      int    `json:"label_font_px"`
	ConnectorColor   string `json:"connector_color"`
	TextBg           string `json:"text_bg"`
	TextAlpha        float64 `json:"text_alpha"`
}

// DefaultAnnotationStyle is C6's baseline style, merge-patched with any
// caller overrides.
func DefaultAnnotationStyle() AnnotationStyle {
	return AnnotationStyle{
		FaceMarkerColor:  "#FF3B30",
		FaceMarkerRadius: 4,
		BoxColor:         "#34C759",
		BoxThickness:     3,
		LabelColor:       "#FFFFFF",
		LabelFontPx:      13,
		ConnectorColor:   "#FFCC00",
		TextBg:           "#000000",
		TextAlpha:        0.6,
	}
}

// RenderRequest is the §4.6 rendering request DownloadAnnotated accepts.
type RenderRequest struct {
	IncludeFaces        bool            `json:"include_faces"`
	IncludeBoxes        bool            `json:"include_boxes"`
	IncludeLabels       bool            `json:"include_labels"`
	Format              string          `json:"format"` // png|jpg|webp
	Quality             int             `json:"quality"`
	Style               AnnotationStyle `json:"style"`
	ConfidenceThreshold float64         `json:"confidence_threshold"`
	MaxObjects          int             `json:"max_objects"`
}
