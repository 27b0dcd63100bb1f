package models

import "time"

// ArtifactKind is one of the glossary's seven cacheable result kinds.
type ArtifactKind string

const (
	KindDetect   ArtifactKind = "detect"
	KindFaces    ArtifactKind = "faces"
	KindNature   ArtifactKind = "nature"
	KindAnnotate ArtifactKind = "annotate"
	KindSegment  ArtifactKind = "segment"
	KindExtract  ArtifactKind = "extract"
	KindBatch    ArtifactKind = "batch"
)

// BBox is a normalized [0,1] bounding box (§3 invariant: coordinates
// clamped to [0,1]).
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Point is a normalized [0,1] image-plane coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Detection is one object-localization result.
type Detection struct {
	ObjectID   string  `json:"object_id"`
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
	Center     Point   `json:"center"`
	AreaPct    float64 `json:"area_pct"`
}

// DetectionArtifact is C3/C5's object-localization artifact kind.
type DetectionArtifact struct {
	Detections []Detection `json:"detections"`
}

// Likelihood mirrors the vision provider's VERY_UNLIKELY..VERY_LIKELY scale.
type Likelihood string

const (
	LikelihoodUnknown      Likelihood = "UNKNOWN"
	LikelihoodVeryUnlikely Likelihood = "VERY_UNLIKELY"
	LikelihoodUnlikely     Likelihood = "UNLIKELY"
	LikelihoodPossible     Likelihood = "POSSIBLE"
	LikelihoodLikely       Likelihood = "LIKELY"
	LikelihoodVeryLikely   Likelihood = "VERY_LIKELY"
)

// AtOrAbove reports whether l is at least as strong as threshold on the
// VERY_UNLIKELY..VERY_LIKELY scale.
func (l Likelihood) AtOrAbove(threshold Likelihood) bool {
	rank := map[Likelihood]int{
		LikelihoodUnknown: 0, LikelihoodVeryUnlikely: 1, LikelihoodUnlikely: 2,
		LikelihoodPossible: 3, LikelihoodLikely: 4, LikelihoodVeryLikely: 5,
	}
	return rank[l] >= rank[threshold]
}

// Face is one detected face (§3 E:AnalysisArtifact FaceArtifact).
type Face struct {
	FaceID      string     `json:"face_id"`
	BBox        BBox       `json:"bbox"`
	Landmarks   []Point    `json:"landmarks"`
	Anger       Likelihood `json:"anger_likelihood"`
	Joy         Likelihood `json:"joy_likelihood"`
	Sorrow      Likelihood `json:"sorrow_likelihood"`
	Surprise    Likelihood `json:"surprise_likelihood"`
	Blurred     bool       `json:"blurred"`
	HasHeadwear bool       `json:"headwear"`
}

// FaceArtifact is C3/C5's face-detection artifact kind.
type FaceArtifact struct {
	Faces []Face `json:"faces"`
}

// SafetyAdvisory is the SUPPLEMENTED safe-search advisory attached to
// AnalyzeNature (`nature`) envelopes' meta when any likelihood is LIKELY or above
// (SPEC_FULL.md [SUPPLEMENTED]).
type SafetyAdvisory struct {
	Adult    Likelihood `json:"adult"`
	Violence Likelihood `json:"violence"`
	Racy     Likelihood `json:"racy"`
}

// Flagged reports whether any field is LIKELY or above.
func (s SafetyAdvisory) Flagged() bool {
	return s.Adult.AtOrAbove(LikelihoodLikely) ||
		s.Violence.AtOrAbove(LikelihoodLikely) ||
		s.Racy.AtOrAbove(LikelihoodLikely)
}

// CoverageByCategory holds per-category coverage percentages (§3
// NatureArtifact, sum ≤ 100 + ε).
type CoverageByCategory struct {
	Vegetation float64 `json:"vegetation"`
	Sky        float64 `json:"sky"`
	Water      float64 `json:"water"`
	Terrain    float64 `json:"terrain"`
	Built      float64 `json:"built"`
}

// VegetationHealth is §4.5 step 3's overall score plus sub-scores.
type VegetationHealth struct {
	Overall         float64 `json:"overall"`
	ColorScore      float64 `json:"color_score"`
	CoverageScore   float64 `json:"coverage_score"`
	LabelScore      float64 `json:"label_score"`
	Status          string  `json:"status"` // healthy|moderate|poor|unknown
	Recommendations []string `json:"recommendations"`
}

// SeasonalAnalysis is §4.5 step 4's seasonal inference result.
type SeasonalAnalysis struct {
	Primary             string             `json:"primary"`
	ConfidencesBySeason map[string]float64 `json:"confidences_by_season"`
	Features            []string           `json:"features"`
}

// DominantColor is one entry of §4.5 step 5's color analysis.
type DominantColor struct {
	Hex  string  `json:"hex"`
	R    uint8   `json:"r"`
	G    uint8   `json:"g"`
	B    uint8   `json:"b"`
	Pct  float64 `json:"pct"`
	Name string  `json:"name"`
}

// NatureArtifact is C5's output (§3 E:AnalysisArtifact NatureArtifact).
type NatureArtifact struct {
	Coverage         CoverageByCategory `json:"coverage"`
	VegetationHealth *VegetationHealth  `json:"vegetation_health,omitempty"`
	Seasonal         *SeasonalAnalysis  `json:"seasonal,omitempty"`
	DominantColors   []DominantColor    `json:"dominant_colors"`
	ColorDiversity   float64            `json:"color_diversity_score"`
	OverallAssessment string            `json:"overall_assessment"`
	Recommendations  []string           `json:"recommendations"`
	TotalLabels      int                `json:"total_labels_analyzed"`
}

// ConfidenceStats summarizes a set of detection confidences (§4.6).
type ConfidenceStats struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	High int     `json:"high"` // >= 0.8
	Mid  int     `json:"medium"` // [0.5, 0.8)
	Low  int     `json:"low"` // < 0.5
}

// AnnotationStats is the §4.6 stats block attached to a render.
type AnnotationStats struct {
	TotalObjects    int               `json:"total_objects"`
	TotalFaces      int               `json:"total_faces"`
	ClassHistogram  map[string]int    `json:"class_histogram"`
	ConfidenceStats ConfidenceStats   `json:"confidence_stats"`
}

// AnnotatedImageArtifact is C6's output (§3 E:AnalysisArtifact
// AnnotatedImageArtifact).
type AnnotatedImageArtifact struct {
	BlobURL string          `json:"blob_url"`
	Format  string          `json:"format"`
	Width   int             `json:"width"`
	Height  int             `json:"height"`
	Stats   AnnotationStats `json:"stats"`
}

// Envelope is the uniform §4.8/§7 response wrapper. Exactly one of Result's
// concrete kinds is populated, mirrored by Kind.
type Envelope struct {
	Success          bool           `json:"success"`
	FromCache        bool           `json:"from_cache"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
	Kind             ArtifactKind   `json:"kind,omitempty"`
	Result           any            `json:"result,omitempty"`
	Meta             *EnvelopeMeta  `json:"meta,omitempty"`
	Error            *EnvelopeError `json:"error,omitempty"`
}

// EnvelopeMeta carries additive, non-blocking metadata (e.g. the
// SUPPLEMENTED safe-search advisory) that does not change envelope
// success/failure.
type EnvelopeMeta struct {
	Safety  *SafetyAdvisory `json:"safety,omitempty"`
	Enabled *bool           `json:"enabled,omitempty"`
}

// EnvelopeError is the §7 error shape.
type EnvelopeError struct {
	Code              string         `json:"code"`
	Message           string         `json:"message"`
	Details           map[string]any `json:"details,omitempty"`
	RetryAfterSeconds *int           `json:"retry_after_seconds,omitempty"`
}

// AnalysisMeta is the non-payload metadata stamped onto every cached
// artifact (§3 E:CacheEntry metadata{version, params, computed_at}).
type AnalysisMeta struct {
	Version    int64     `json:"version"`
	Params     string    `json:"params"`
	ComputedAt time.Time `json:"computed_at"`
}
