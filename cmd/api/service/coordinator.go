package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"

	"github.com/parkvision/visionserve/common/apierr"
	"github.com/parkvision/visionserve/common/cache"
	"github.com/parkvision/visionserve/common/logger"
	"github.com/parkvision/visionserve/common/models"
	"github.com/parkvision/visionserve/common/ratelimit"
)

// Per-operation feature sets requested from the Vision Primitives Client
// (C3); grouping them here keeps Analyze/AnalyzeNature/DownloadAnnotated
// from repeating feature lists inline.
var (
	featuresForDetect = []Feature{FeatureObjectLocalization}
	featuresForFaces  = []Feature{FeatureFace}
	featuresForNature = []Feature{FeatureLabel, FeatureImageProperties, FeatureSafeSearch}
	featuresForRender = []Feature{FeatureObjectLocalization, FeatureFace, FeatureSafeSearch}
)

// Coordinator implements C8: the request-level state machine translating
// one client operation into calls across C1-C7 and assembling the §4.8
// response envelope. Grounded on the teacher's cmd/orchestrator/service
// layer's pattern of a thin top-level service composing narrower services
// (repository → cas/blob/vision/analyzer/orchestrator → coordinator),
// generalized from workflow dispatch to the
// Received→Validated→KeyComputed→CacheLookup→Compute→CachePut→Respond
// state machine (§4.8). This is the only component that converts
// *apierr.Error into the client-facing Envelope shape.
type Coordinator struct {
	cas          *CASService
	blobs        *BlobStore
	vision       *VisionClient
	analyzer     *NatureAnalyzer
	annotator    *Annotator
	orchestrator *Orchestrator
	cacheStore   *cache.ResultCache
	ttls         map[string]time.Duration
	log          *logger.Logger
	rateLimiter  ratelimit.Provider
}

// NewCoordinator constructs a Coordinator. rateLimiter is the externally
// owned rate-limit collaborator (spec §1: "the core consumes a rate-limit
// decision but does not implement it"); a nil rateLimiter always allows.
func NewCoordinator(
	cas *CASService,
	blobs *BlobStore,
	vision *VisionClient,
	analyzer *NatureAnalyzer,
	annotator *Annotator,
	orchestrator *Orchestrator,
	cacheStore *cache.ResultCache,
	ttls map[string]time.Duration,
	log *logger.Logger,
	rateLimiter ratelimit.Provider,
) *Coordinator {
	return &Coordinator{
		cas:          cas,
		blobs:        blobs,
		vision:       vision,
		analyzer:     analyzer,
		annotator:    annotator,
		orchestrator: orchestrator,
		cacheStore:   cacheStore,
		ttls:         ttls,
		log:          log,
		rateLimiter:  rateLimiter,
	}
}

// checkRateLimit consults the external rate-limit collaborator before an
// operation admits a request, surfacing a rejection as the same
// RateLimitExceeded (429) the §7 error taxonomy carries through from that
// collaborator. A nil provider or a provider error both fail open.
func (c *Coordinator) checkRateLimit(ctx context.Context, key string) error {
	if c.rateLimiter == nil {
		return nil
	}
	decision, err := c.rateLimiter.Check(ctx, key)
	if err != nil {
		c.log.Warn("rate limit check failed, failing open", "key", key, "error", err)
		return nil
	}
	if !decision.Allowed {
		return apierr.RateLimitExceeded(decision.RetryAfterSeconds)
	}
	return nil
}

func (c *Coordinator) ttlFor(kind models.ArtifactKind) time.Duration {
	if ttl, ok := c.ttls[string(kind)]; ok {
		return ttl
	}
	return time.Hour
}

// paramFingerprint builds the stable hex fingerprint of a canonicalized,
// sorted-key parameter serialization (§4.4, resolved via
// `cespare/xxhash/v2` per SPEC_FULL.md's domain-stack wiring). Marshaling
// through an intermediate map[string]any relies on encoding/json's
// alphabetical key ordering for maps, which is what makes the fingerprint
// independent of the request struct's field order (§8 property 4).
func paramFingerprint(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(canonical)), nil
}

// UploadImage implements §6 UploadImage: Validated happens inside C1.
func (c *Coordinator) UploadImage(ctx context.Context, content []byte, filename, mimeType string) (*models.IngestResult, error) {
	if err := c.checkRateLimit(ctx, "upload"); err != nil {
		return nil, err
	}
	return c.cas.Ingest(ctx, content, filename, mimeType)
}

// GetImageInfo implements §6 GetImageInfo.
func (c *Coordinator) GetImageInfo(ctx context.Context, imageHash string) (*models.ImageRecord, error) {
	return c.cas.Lookup(ctx, imageHash)
}

// ListImages implements §6 ListImages.
func (c *Coordinator) ListImages(ctx context.Context, filter models.ListImagesFilter) (*models.ImagePage, error) {
	return c.cas.List(ctx, filter)
}

// DeleteImage implements §6 DeleteImage: removes blob, record, and all
// cache entries under the hash.
func (c *Coordinator) DeleteImage(ctx context.Context, imageHash string) error {
	if err := c.cas.Delete(ctx, imageHash); err != nil {
		return err
	}
	if _, err := c.cacheStore.DeleteByImageHash(ctx, imageHash); err != nil {
		c.log.Warn("cache cleanup after delete failed", "image_hash", imageHash, "error", err)
	}
	return nil
}

// CheckDuplicate implements §6 CheckDuplicate.
func (c *Coordinator) CheckDuplicate(ctx context.Context, imageHash string) (bool, *models.ImageRecord, []models.SimilarImage, error) {
	return c.cas.CheckDuplicate(ctx, imageHash)
}

// AnalyzeRequest is §6 Analyze's input for the directly vision-backed
// kinds (detect, faces). segment/extract remain cache-kind placeholders
// only (§ GLOSSARY's kind enumeration); no analyzer produces them, so
// requesting them fails Validated with a clear message rather than
// silently no-opping.
type AnalyzeRequest struct {
	ImageHash           string
	Kind                models.ArtifactKind
	ConfidenceThreshold float64
	ForceRefresh        bool
}

func (r AnalyzeRequest) fingerprint() (string, error) {
	return paramFingerprint(struct {
		ConfidenceThreshold float64 `json:"confidence_threshold"`
	}{r.ConfidenceThreshold})
}

// Analyze implements §4.8's state machine for the Analyze operation.
func (c *Coordinator) Analyze(ctx context.Context, req AnalyzeRequest) (*models.Envelope, error) {
	start := time.Now()

	if err := c.checkRateLimit(ctx, req.ImageHash); err != nil {
		return nil, err
	}
	if req.Kind != models.KindDetect && req.Kind != models.KindFaces {
		return nil, apierr.Validation(fmt.Sprintf("unsupported analyze kind: %s", req.Kind), nil)
	}
	if req.ConfidenceThreshold < 0 || req.ConfidenceThreshold > 1 {
		return nil, apierr.Validation("confidence_threshold must be in [0,1]", nil)
	}

	rec, err := c.cas.Lookup(ctx, req.ImageHash)
	if err != nil {
		return nil, err
	}

	fp, err := req.fingerprint()
	if err != nil {
		return nil, apierr.Processing("build_param_fingerprint", string(req.Kind), err)
	}
	key := cache.CacheKey{Kind: string(req.Kind), ImageHash: req.ImageHash, ParamFingerprint: fp}

	if req.ForceRefresh {
		if _, err := c.cacheStore.DeleteByImageHash(ctx, req.ImageHash); err != nil {
			c.log.Warn("force_refresh cache purge failed", "image_hash", req.ImageHash, "error", err)
		}
	}

	raw, fromCache, err := c.cacheStore.GetOrCompute(ctx, key, c.ttlFor(req.Kind), func(ctx context.Context) ([]byte, cache.EntryMeta, error) {
		content, getErr := c.blobs.Get(ctx, objectKeyForImage(rec.ImageHash, rec.MimeType))
		if getErr != nil {
			return nil, cache.EntryMeta{}, getErr
		}

		features := featuresForDetect
		if req.Kind == models.KindFaces {
			features = featuresForFaces
		}
		bundle, visionErr := c.vision.Annotate(ctx, content, features)
		if visionErr != nil {
			return nil, cache.EntryMeta{}, visionErr
		}

		var artifact any
		switch req.Kind {
		case models.KindDetect:
			artifact = filterDetections(bundle.Objects, req.ConfidenceThreshold)
		case models.KindFaces:
			artifact = bundle.Faces
		}
		encoded, encErr := json.Marshal(artifact)
		if encErr != nil {
			return nil, cache.EntryMeta{}, apierr.Processing("encode_artifact", string(req.Kind), encErr)
		}
		return encoded, cache.EntryMeta{ComputedAt: time.Now(), Params: fp}, nil
	})

	if err != nil {
		if apiErr, ok := apierr.As(err); ok && apiErr.Code == apierr.CodeServiceUnavailable {
			enabled := false
			return &models.Envelope{
				Success:          false,
				FromCache:        false,
				ProcessingTimeMs: time.Since(start).Milliseconds(),
				Kind:             req.Kind,
				Meta:             &models.EnvelopeMeta{Enabled: &enabled},
				Error:            envelopeError(apiErr),
			}, nil
		}
		return nil, err
	}

	var result any
	switch req.Kind {
	case models.KindDetect:
		var artifact models.DetectionArtifact
		_ = json.Unmarshal(raw, &artifact)
		result = artifact
	case models.KindFaces:
		var artifact models.FaceArtifact
		_ = json.Unmarshal(raw, &artifact)
		result = artifact
	}

	return &models.Envelope{
		Success:          true,
		FromCache:        fromCache,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Kind:             req.Kind,
		Result:           result,
	}, nil
}

func filterDetections(artifact *models.DetectionArtifact, threshold float64) models.DetectionArtifact {
	if artifact == nil {
		return models.DetectionArtifact{}
	}
	var kept []models.Detection
	for _, d := range artifact.Detections {
		if d.Confidence >= threshold {
			kept = append(kept, d)
		}
	}
	return models.DetectionArtifact{Detections: kept}
}

// AnalyzeNatureRequest is §6 AnalyzeNature's input.
type AnalyzeNatureRequest struct {
	ImageHash           string
	Depth               string // basic|comprehensive
	IncludeHealth       bool
	IncludeSeasonal     bool
	IncludeColor        bool
	ConfidenceThreshold float64
	ForceRefresh        bool
}

func (r AnalyzeNatureRequest) fingerprint() (string, error) {
	return paramFingerprint(struct {
		Depth               string  `json:"depth"`
		IncludeHealth       bool    `json:"include_health"`
		IncludeSeasonal     bool    `json:"include_seasonal"`
		IncludeColor        bool    `json:"include_color"`
		ConfidenceThreshold float64 `json:"confidence_threshold"`
	}{r.Depth, r.IncludeHealth, r.IncludeSeasonal, r.IncludeColor, r.ConfidenceThreshold})
}

// AnalyzeNature implements §6 AnalyzeNature.
func (c *Coordinator) AnalyzeNature(ctx context.Context, req AnalyzeNatureRequest) (*models.Envelope, error) {
	start := time.Now()

	if err := c.checkRateLimit(ctx, req.ImageHash); err != nil {
		return nil, err
	}
	if req.Depth != "basic" && req.Depth != "comprehensive" {
		return nil, apierr.Validation("depth must be basic or comprehensive", nil)
	}
	if req.ConfidenceThreshold < 0 || req.ConfidenceThreshold > 1 {
		return nil, apierr.Validation("confidence_threshold must be in [0,1]", nil)
	}
	includeHealth := req.IncludeHealth || req.Depth == "comprehensive"
	includeSeasonal := req.IncludeSeasonal || req.Depth == "comprehensive"
	includeColor := req.IncludeColor || req.Depth == "comprehensive"

	rec, err := c.cas.Lookup(ctx, req.ImageHash)
	if err != nil {
		return nil, err
	}

	fp, err := req.fingerprint()
	if err != nil {
		return nil, apierr.Processing("build_param_fingerprint", "nature", err)
	}
	key := cache.CacheKey{Kind: string(models.KindNature), ImageHash: req.ImageHash, ParamFingerprint: fp}

	if req.ForceRefresh {
		if _, err := c.cacheStore.DeleteByImageHash(ctx, req.ImageHash); err != nil {
			c.log.Warn("force_refresh cache purge failed", "image_hash", req.ImageHash, "error", err)
		}
	}

	var safety *models.SafetyAdvisory
	raw, fromCache, err := c.cacheStore.GetOrCompute(ctx, key, c.ttlFor(models.KindNature), func(ctx context.Context) ([]byte, cache.EntryMeta, error) {
		content, getErr := c.blobs.Get(ctx, objectKeyForImage(rec.ImageHash, rec.MimeType))
		if getErr != nil {
			return nil, cache.EntryMeta{}, getErr
		}
		bundle, visionErr := c.vision.Annotate(ctx, content, featuresForNature)
		if visionErr != nil {
			return nil, cache.EntryMeta{}, visionErr
		}
		artifact := c.analyzer.Analyze(bundle, includeHealth, includeSeasonal, includeColor)
		encoded, encErr := json.Marshal(artifact)
		if encErr != nil {
			return nil, cache.EntryMeta{}, apierr.Processing("encode_artifact", "nature", encErr)
		}
		return encoded, cache.EntryMeta{ComputedAt: time.Now(), Params: fp}, nil
	})
	if err != nil {
		if apiErr, ok := apierr.As(err); ok && apiErr.Code == apierr.CodeServiceUnavailable {
			enabled := false
			return &models.Envelope{
				Success: false, FromCache: false, ProcessingTimeMs: time.Since(start).Milliseconds(),
				Kind: models.KindNature, Meta: &models.EnvelopeMeta{Enabled: &enabled}, Error: envelopeError(apiErr),
			}, nil
		}
		return nil, err
	}

	// Safe-search gating (SPEC_FULL.md [SUPPLEMENTED]): on a MISS, re-read
	// the blob and make a separate SAFE_SEARCH-only Annotate call. It is
	// skipped on a cache HIT, and any failure just leaves the advisory off.
	if !fromCache {
		content, getErr := c.blobs.Get(ctx, objectKeyForImage(rec.ImageHash, rec.MimeType))
		if getErr == nil {
			if bundle, visionErr := c.vision.Annotate(ctx, content, []Feature{FeatureSafeSearch}); visionErr == nil {
				safety = bundle.SafeSearch
			}
		}
	}

	var artifact models.NatureArtifact
	_ = json.Unmarshal(raw, &artifact)

	env := &models.Envelope{
		Success:          true,
		FromCache:        fromCache,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Kind:             models.KindNature,
		Result:           artifact,
	}
	if safety != nil && safety.Flagged() {
		env.Meta = &models.EnvelopeMeta{Safety: safety}
	}
	return env, nil
}

// DownloadAnnotatedRequest is §6 DownloadAnnotated's input.
type DownloadAnnotatedRequest struct {
	ImageHash    string
	Render       models.RenderRequest
	StyleOverride json.RawMessage // caller-supplied partial style object, merge-patched onto defaults
	ForceRefresh bool
}

// resolvedStyle merge-patches StyleOverride onto DefaultAnnotationStyle per
// RFC 7396 (SPEC_FULL.md [DOMAIN STACK]: evanphx/json-patch/v5), which is
// what lets a caller override e.g. only box_color without restating the
// rest of the style object.
func (r DownloadAnnotatedRequest) resolvedStyle() (models.AnnotationStyle, error) {
	base := models.DefaultAnnotationStyle()
	if len(r.StyleOverride) == 0 {
		return base, nil
	}
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base, err
	}
	merged, err := jsonpatch.MergePatch(baseJSON, r.StyleOverride)
	if err != nil {
		return base, apierr.Validation("invalid style override", err)
	}
	var out models.AnnotationStyle
	if err := json.Unmarshal(merged, &out); err != nil {
		return base, apierr.Validation("invalid style override", err)
	}
	return out, nil
}

func (r DownloadAnnotatedRequest) fingerprint(style models.AnnotationStyle) (string, error) {
	render := r.Render
	render.Style = style
	return paramFingerprint(render)
}

// DownloadAnnotated implements §6 DownloadAnnotated.
func (c *Coordinator) DownloadAnnotated(ctx context.Context, req DownloadAnnotatedRequest) (*models.Envelope, error) {
	start := time.Now()

	if err := c.checkRateLimit(ctx, req.ImageHash); err != nil {
		return nil, err
	}
	if err := validateRenderRequest(req.Render); err != nil {
		return nil, err
	}
	style, err := req.resolvedStyle()
	if err != nil {
		return nil, err
	}

	rec, err := c.cas.Lookup(ctx, req.ImageHash)
	if err != nil {
		return nil, err
	}

	fp, err := req.fingerprint(style)
	if err != nil {
		return nil, apierr.Processing("build_param_fingerprint", "annotate", err)
	}
	key := cache.CacheKey{Kind: string(models.KindAnnotate), ImageHash: req.ImageHash, ParamFingerprint: fp}

	if req.ForceRefresh {
		if _, err := c.cacheStore.DeleteByImageHash(ctx, req.ImageHash); err != nil {
			c.log.Warn("force_refresh cache purge failed", "image_hash", req.ImageHash, "error", err)
		}
	}

	raw, fromCache, err := c.cacheStore.GetOrCompute(ctx, key, c.ttlFor(models.KindAnnotate), func(ctx context.Context) ([]byte, cache.EntryMeta, error) {
		content, getErr := c.blobs.Get(ctx, objectKeyForImage(rec.ImageHash, rec.MimeType))
		if getErr != nil {
			return nil, cache.EntryMeta{}, getErr
		}
		bundle, visionErr := c.vision.Annotate(ctx, content, featuresForRender)
		if visionErr != nil {
			return nil, cache.EntryMeta{}, visionErr
		}

		var detections []models.Detection
		if bundle.Objects != nil {
			detections = bundle.Objects.Detections
		}
		var faces []models.Face
		if bundle.Faces != nil {
			faces = bundle.Faces.Faces
		}

		renderReq := req.Render
		renderReq.Style = style
		encodedImg, width, height, stats, renderErr := c.annotator.Render(content, renderReq, detections, faces)
		if renderErr != nil {
			return nil, cache.EntryMeta{}, renderErr
		}

		annotationID := uuid.NewString()
		ext := extensionForFormat(renderReq.Format)
		blobURL, putErr := c.blobs.Put(ctx, fmt.Sprintf("annotated/%s.%s", annotationID, ext), encodedImg, mimeTypeForFormat(renderReq.Format))
		if putErr != nil {
			return nil, cache.EntryMeta{}, putErr
		}

		artifact := models.AnnotatedImageArtifact{
			BlobURL: blobURL,
			Format:  renderReq.Format,
			Width:   width,
			Height:  height,
			Stats:   stats,
		}
		encoded, encErr := json.Marshal(artifact)
		if encErr != nil {
			return nil, cache.EntryMeta{}, apierr.Processing("encode_artifact", "annotate", encErr)
		}
		return encoded, cache.EntryMeta{ComputedAt: time.Now(), Params: fp}, nil
	})
	if err != nil {
		if apiErr, ok := apierr.As(err); ok && apiErr.Code == apierr.CodeServiceUnavailable {
			enabled := false
			return &models.Envelope{
				Success: false, FromCache: false, ProcessingTimeMs: time.Since(start).Milliseconds(),
				Kind: models.KindAnnotate, Meta: &models.EnvelopeMeta{Enabled: &enabled}, Error: envelopeError(apiErr),
			}, nil
		}
		return nil, err
	}

	var artifact models.AnnotatedImageArtifact
	_ = json.Unmarshal(raw, &artifact)

	return &models.Envelope{
		Success:          true,
		FromCache:        fromCache,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Kind:             models.KindAnnotate,
		Result:           artifact,
	}, nil
}

func validateRenderRequest(r models.RenderRequest) error {
	switch r.Format {
	case "png", "jpg", "webp":
	default:
		return apierr.Validation(fmt.Sprintf("unsupported format: %s", r.Format), nil)
	}
	if r.Quality < 1 || r.Quality > 100 {
		return apierr.Validation("quality must be in [1,100]", nil)
	}
	if r.ConfidenceThreshold < 0 || r.ConfidenceThreshold > 1 {
		return apierr.Validation("confidence_threshold must be in [0,1]", nil)
	}
	return nil
}

func extensionForFormat(format string) string {
	if format == "jpg" {
		return "jpg"
	}
	return format
}

func mimeTypeForFormat(format string) string {
	switch format {
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// BatchAnalyzeRequest is §6 BatchAnalyze's input.
type BatchAnalyzeRequest struct {
	ImageHashes      []string
	Kinds            []models.ArtifactKind
	ConcurrencyLimit int
	Params           AnalyzeRequest // shared confidence_threshold across the batch
}

// BatchAnalyze implements §6 BatchAnalyze, wiring the Orchestrator (C7) to
// computeForBatch (not Analyze/AnalyzeNature) via GetOrComputeJobFn so
// duplicate (image, kind) pairs collapse into one computation (§4.7).
func (c *Coordinator) BatchAnalyze(ctx context.Context, req BatchAnalyzeRequest) *models.BatchResult {
	fp, _ := paramFingerprint(struct {
		ConfidenceThreshold float64 `json:"confidence_threshold"`
	}{req.Params.ConfidenceThreshold})

	jobFn := GetOrComputeJobFn(
		c.cacheStore,
		fp,
		c.ttlFor,
		func(ctx context.Context, imageHash string, kind models.ArtifactKind) ([]byte, error) {
			return c.computeForBatch(ctx, imageHash, kind, req.Params.ConfidenceThreshold)
		},
		func(kind models.ArtifactKind, raw []byte) (any, error) {
			return decodeBatchArtifact(kind, raw)
		},
	)

	return c.orchestrator.BatchAnalyze(ctx, req.ImageHashes, req.Kinds, req.ConcurrencyLimit, jobFn)
}

// computeForBatch is the uncached compute step a batch job runs on MISS; it
// intentionally bypasses Coordinator.Analyze/AnalyzeNature (which each
// build their own CacheKey) since the Orchestrator's GetOrComputeJobFn
// already owns the key/TTL/single-flight lifecycle for batch jobs.
func (c *Coordinator) computeForBatch(ctx context.Context, imageHash string, kind models.ArtifactKind, confidenceThreshold float64) ([]byte, error) {
	if err := c.checkRateLimit(ctx, imageHash); err != nil {
		return nil, err
	}
	rec, err := c.cas.Lookup(ctx, imageHash)
	if err != nil {
		return nil, err
	}
	content, err := c.blobs.Get(ctx, objectKeyForImage(rec.ImageHash, rec.MimeType))
	if err != nil {
		return nil, err
	}

	switch kind {
	case models.KindDetect:
		bundle, err := c.vision.Annotate(ctx, content, featuresForDetect)
		if err != nil {
			return nil, err
		}
		return json.Marshal(filterDetections(bundle.Objects, confidenceThreshold))
	case models.KindFaces:
		bundle, err := c.vision.Annotate(ctx, content, featuresForFaces)
		if err != nil {
			return nil, err
		}
		return json.Marshal(bundle.Faces)
	case models.KindNature:
		bundle, err := c.vision.Annotate(ctx, content, featuresForNature)
		if err != nil {
			return nil, err
		}
		return json.Marshal(c.analyzer.Analyze(bundle, true, true, true))
	default:
		return nil, apierr.Validation(fmt.Sprintf("unsupported batch kind: %s", kind), nil)
	}
}

func decodeBatchArtifact(kind models.ArtifactKind, raw []byte) (any, error) {
	switch kind {
	case models.KindDetect:
		var artifact models.DetectionArtifact
		err := json.Unmarshal(raw, &artifact)
		return artifact, err
	case models.KindFaces:
		var artifact models.FaceArtifact
		err := json.Unmarshal(raw, &artifact)
		return artifact, err
	case models.KindNature:
		var artifact models.NatureArtifact
		err := json.Unmarshal(raw, &artifact)
		return artifact, err
	default:
		return nil, apierr.Validation(fmt.Sprintf("unsupported batch kind: %s", kind), nil)
	}
}

// InvalidateVersion implements §6 InvalidateVersion.
func (c *Coordinator) InvalidateVersion(ctx context.Context, kind models.ArtifactKind) (int64, error) {
	return c.cacheStore.InvalidateVersion(ctx, string(kind))
}

// Stats implements §6 Stats.
func (c *Coordinator) Stats() cache.Stats {
	return c.cacheStore.Stats()
}

// ClearCache implements §6 ClearCache: removes entries under imageHash, or
// every entry this process knows about when imageHash is empty.
func (c *Coordinator) ClearCache(ctx context.Context, imageHash string) (int, error) {
	if imageHash != "" {
		return c.cacheStore.DeleteByImageHash(ctx, imageHash)
	}
	return c.cacheStore.Flush(ctx)
}

func envelopeError(apiErr *apierr.Error) *models.EnvelopeError {
	return &models.EnvelopeError{
		Code:              string(apiErr.Code),
		Message:           apiErr.Message,
		Details:           apiErr.Details,
		RetryAfterSeconds: apiErr.RetryAfterSeconds,
	}
}
