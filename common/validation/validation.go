// Package validation holds Received → Validated field-range checks for
// the request shapes of §4.8. The Request Coordinator (C8) does not call
// this package; it performs its own inline checks. These
// are static field validations, not a dynamic rule DSL — no expression
// language dependency is warranted here (see DESIGN.md's note on the
// dropped cel-go family).
package validation

import (
	"fmt"
	"strings"

	"github.com/parkvision/visionserve/common/apierr"
	"github.com/parkvision/visionserve/common/config"
)

// ValidKinds are the cache/analysis kinds named in the glossary.
var ValidKinds = map[string]bool{
	"detect":   true,
	"faces":    true,
	"nature":   true,
	"annotate": true,
	"segment":  true,
	"extract":  true,
	"batch":    true,
}

var validFormats = map[string]bool{"png": true, "jpg": true, "webp": true}

// UploadInput carries the fields UploadImage validates before ingestion.
type UploadInput struct {
	MimeType  string
	SizeBytes int64
}

// ValidateUpload enforces §4.1's mime-type and size-limit rules.
func ValidateUpload(in UploadInput, cfg config.UploadConfig) error {
	allowed := false
	for _, m := range cfg.AllowedMimeTypes {
		if strings.EqualFold(m, in.MimeType) {
			allowed = true
			break
		}
	}
	if !allowed {
		return apierr.Validation(fmt.Sprintf("unsupported mime type: %s", in.MimeType), nil)
	}
	if in.SizeBytes <= 0 {
		return apierr.Validation("upload is empty", nil)
	}
	if in.SizeBytes > cfg.MaxUploadBytes {
		return apierr.Validation(fmt.Sprintf("upload exceeds max size of %d bytes", cfg.MaxUploadBytes), nil)
	}
	return nil
}

// AnalyzeInput carries the fields Analyze/AnalyzeNature validate.
type AnalyzeInput struct {
	Kind                string
	ConfidenceThreshold float64
}

// ValidateAnalyze enforces the confidence-range and kind-enum checks (§4.8).
func ValidateAnalyze(in AnalyzeInput) error {
	if !ValidKinds[in.Kind] {
		return apierr.Validation(fmt.Sprintf("unsupported analysis kind: %s", in.Kind), nil)
	}
	if in.ConfidenceThreshold < 0 || in.ConfidenceThreshold > 1 {
		return apierr.Validation("confidence_threshold must be in [0, 1]", nil)
	}
	return nil
}

// RenderRequestInput carries the fields DownloadAnnotated validates.
type RenderRequestInput struct {
	Format              string
	Quality             int
	ConfidenceThreshold float64
	MaxObjects          int
}

// ValidateRenderRequest enforces §4.6/§4.8's field ranges.
func ValidateRenderRequest(in RenderRequestInput) error {
	if !validFormats[in.Format] {
		return apierr.Validation(fmt.Sprintf("unsupported format: %s (expected png, jpg, or webp)", in.Format), nil)
	}
	if in.Quality < 1 || in.Quality > 100 {
		return apierr.Validation("quality must be in [1, 100]", nil)
	}
	if in.ConfidenceThreshold < 0 || in.ConfidenceThreshold > 1 {
		return apierr.Validation("confidence_threshold must be in [0, 1]", nil)
	}
	if in.MaxObjects < 0 {
		return apierr.Validation("max_objects must be >= 0", nil)
	}
	return nil
}

// BatchInput carries the fields BatchAnalyze validates.
type BatchInput struct {
	ImageHashes      []string
	Kinds            []string
	ConcurrencyLimit int
}

// ValidateBatch enforces non-empty image/kind lists and a sane concurrency
// bound (§4.7).
func ValidateBatch(in BatchInput) error {
	if len(in.ImageHashes) == 0 {
		return apierr.Validation("image_hashes must not be empty", nil)
	}
	if len(in.Kinds) == 0 {
		return apierr.Validation("kinds must not be empty", nil)
	}
	for _, k := range in.Kinds {
		if !ValidKinds[k] {
			return apierr.Validation(fmt.Sprintf("unsupported analysis kind: %s", k), nil)
		}
	}
	if in.ConcurrencyLimit < 0 {
		return apierr.Validation("concurrency_limit must be >= 0", nil)
	}
	return nil
}
