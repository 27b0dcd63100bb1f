package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/parkvision/visionserve/common/apierr"
	"github.com/parkvision/visionserve/common/circuitbreaker"
	"github.com/parkvision/visionserve/common/clients"
	"github.com/parkvision/visionserve/common/logger"
	"github.com/parkvision/visionserve/common/models"
	"github.com/parkvision/visionserve/common/retrypolicy"
)

// Feature is one of the upstream vision provider's requestable primitive
// kinds (§4.3).
type Feature string

const (
	FeatureLabel              Feature = "LABEL"
	FeatureObjectLocalization Feature = "OBJECT_LOCALIZATION"
	FeatureFace               Feature = "FACE"
	FeatureImageProperties    Feature = "IMAGE_PROPERTIES"
	FeatureSafeSearch         Feature = "SAFE_SEARCH"
)

// Label is one LABEL_DETECTION primitive as the Natural-Element Analyzer
// (C5) consumes it.
type Label struct {
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// ImageProperties carries the provider's dominant-color primitives.
type ImageProperties struct {
	DominantColors []models.DominantColor `json:"dominant_colors"`
}

// PrimitiveBundle is C3's output: the subset of requested features that
// succeeded, plus a per-feature error map for the rest (§4.3 partial-result
// contract).
type PrimitiveBundle struct {
	Labels          []Label                  `json:"labels,omitempty"`
	Objects         *models.DetectionArtifact `json:"objects,omitempty"`
	Faces           *models.FaceArtifact      `json:"faces,omitempty"`
	ImageProperties *ImageProperties         `json:"image_properties,omitempty"`
	SafeSearch      *models.SafetyAdvisory   `json:"safe_search,omitempty"`
	FeatureErrors   map[Feature]string       `json:"feature_errors,omitempty"`
}

// Succeeded reports whether at least one requested feature came back.
func (b *PrimitiveBundle) Succeeded() bool {
	return b != nil && (len(b.Labels) > 0 || b.Objects != nil || b.Faces != nil || b.ImageProperties != nil || b.SafeSearch != nil)
}

// VisionClient implements C3: a single-call wrapper over the external
// vision provider, with retry and a per-instance circuit breaker. Grounded
// on the teacher's common/clients/http.go HTTPClient for the transport and
// its atomic/lock-free rate-limiter discipline for the breaker's
// concurrency shape (§5 "circuit-breaker state in C3 is shared and updated
// atomically; reads are lock-free"). The provider's wire protocol is an
// out-of-scope external collaborator (§1), so this speaks a thin JSON REST
// contract rather than a vendor SDK.
type VisionClient struct {
	http     *clients.HTTPClient
	breaker  *circuitbreaker.Breaker
	retry    retrypolicy.Policy
	endpoint string
	apiKey   string
	log      *logger.Logger
}

// NewVisionClient constructs a VisionClient.
func NewVisionClient(http *clients.HTTPClient, breaker *circuitbreaker.Breaker, retry retrypolicy.Policy, endpoint, apiKey string, log *logger.Logger) *VisionClient {
	return &VisionClient{
		http:     http,
		breaker:  breaker,
		retry:    retry,
		endpoint: endpoint,
		apiKey:   apiKey,
		log:      log,
	}
}

type annotateRequestBody struct {
	ImageBase64 string   `json:"image_base64"`
	Features    []string `json:"features"`
}

// Annotate requests the given feature set for content, batching them into
// one upstream call to halve quota cost (§4.3).
func (c *VisionClient) Annotate(ctx context.Context, content []byte, features []Feature) (*PrimitiveBundle, error) {
	if ok, retryAfter := c.breaker.Allow(); !ok {
		return nil, apierr.ServiceUnavailable("vision provider circuit open", retryAfter)
	}

	featureNames := make([]string, len(features))
	for i, f := range features {
		featureNames[i] = string(f)
	}
	body, err := json.Marshal(annotateRequestBody{
		ImageBase64: base64.StdEncoding.EncodeToString(content),
		Features:    featureNames,
	})
	if err != nil {
		return nil, apierr.Processing("marshal_vision_request", "annotate", err)
	}

	var raw []byte
	callErr := c.retry.Do(ctx, isVisionTransient, func(ctx context.Context) error {
		resp, doErr := c.http.DoRequest(ctx, http.MethodPost, c.endpoint+"/v1/annotate", bytes.NewReader(body), map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + c.apiKey,
		})
		if doErr != nil {
			return apierr.VisionService("vision provider request failed", nil, doErr)
		}
		defer resp.Body.Close()

		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(resp.Body); err != nil {
			return apierr.VisionService("failed to read vision provider response", nil, err)
		}
		if resp.StatusCode >= 500 {
			return apierr.VisionService(fmt.Sprintf("vision provider returned %d", resp.StatusCode), nil, nil)
		}
		if resp.StatusCode >= 400 {
			return apierr.Validation(fmt.Sprintf("vision provider rejected request: %d", resp.StatusCode), nil)
		}
		raw = buf.Bytes()
		return nil
	})

	if callErr != nil {
		c.breaker.RecordFailure()
		if apiErr, ok := apierr.As(callErr); ok {
			return nil, apiErr
		}
		return nil, apierr.VisionService("vision provider call failed", nil, callErr)
	}
	c.breaker.RecordSuccess()

	return parsePrimitiveBundle(raw, features), nil
}

// parsePrimitiveBundle extracts whichever requested top-level keys are
// present via gjson, leaving absent ones out of the bundle and recorded in
// FeatureErrors — the partial-result contract (§4.3).
func parsePrimitiveBundle(raw []byte, requested []Feature) *PrimitiveBundle {
	parsed := gjson.ParseBytes(raw)
	bundle := &PrimitiveBundle{FeatureErrors: make(map[Feature]string)}

	for _, f := range requested {
		switch f {
		case FeatureLabel:
			result := parsed.Get("labels")
			if !result.Exists() {
				bundle.FeatureErrors[f] = "labels field absent from response"
				continue
			}
			var labels []Label
			result.ForEach(func(_, v gjson.Result) bool {
				labels = append(labels, Label{
					Description: v.Get("description").String(),
					Confidence:  v.Get("confidence").Float(),
				})
				return true
			})
			bundle.Labels = labels

		case FeatureObjectLocalization:
			result := parsed.Get("objects")
			if !result.Exists() {
				bundle.FeatureErrors[f] = "objects field absent from response"
				continue
			}
			var detections []models.Detection
			result.ForEach(func(_, v gjson.Result) bool {
				detections = append(detections, models.Detection{
					ObjectID:   v.Get("object_id").String(),
					ClassName:  v.Get("class_name").String(),
					Confidence: v.Get("confidence").Float(),
					BBox: models.BBox{
						X: v.Get("bbox.x").Float(), Y: v.Get("bbox.y").Float(),
						W: v.Get("bbox.w").Float(), H: v.Get("bbox.h").Float(),
					},
				})
				return true
			})
			bundle.Objects = &models.DetectionArtifact{Detections: detections}

		case FeatureFace:
			result := parsed.Get("faces")
			if !result.Exists() {
				bundle.FeatureErrors[f] = "faces field absent from response"
				continue
			}
			var faces []models.Face
			result.ForEach(func(_, v gjson.Result) bool {
				faces = append(faces, models.Face{
					FaceID:      v.Get("face_id").String(),
					BBox:        models.BBox{X: v.Get("bbox.x").Float(), Y: v.Get("bbox.y").Float(), W: v.Get("bbox.w").Float(), H: v.Get("bbox.h").Float()},
					Anger:       models.Likelihood(v.Get("anger_likelihood").String()),
					Joy:         models.Likelihood(v.Get("joy_likelihood").String()),
					Sorrow:      models.Likelihood(v.Get("sorrow_likelihood").String()),
					Surprise:    models.Likelihood(v.Get("surprise_likelihood").String()),
					Blurred:     v.Get("blurred").Bool(),
					HasHeadwear: v.Get("headwear").Bool(),
				})
				return true
			})
			bundle.Faces = &models.FaceArtifact{Faces: faces}

		case FeatureImageProperties:
			result := parsed.Get("image_properties.dominant_colors")
			if !result.Exists() {
				bundle.FeatureErrors[f] = "image_properties field absent from response"
				continue
			}
			var colors []models.DominantColor
			result.ForEach(func(_, v gjson.Result) bool {
				colors = append(colors, models.DominantColor{
					R:   uint8(v.Get("r").Int()),
					G:   uint8(v.Get("g").Int()),
					B:   uint8(v.Get("b").Int()),
					Pct: v.Get("pct").Float(),
				})
				return true
			})
			bundle.ImageProperties = &ImageProperties{DominantColors: colors}

		case FeatureSafeSearch:
			result := parsed.Get("safe_search")
			if !result.Exists() {
				bundle.FeatureErrors[f] = "safe_search field absent from response"
				continue
			}
			bundle.SafeSearch = &models.SafetyAdvisory{
				Adult:    models.Likelihood(result.Get("adult").String()),
				Violence: models.Likelihood(result.Get("violence").String()),
				Racy:     models.Likelihood(result.Get("racy").String()),
			}
		}
	}

	if len(bundle.FeatureErrors) == 0 {
		bundle.FeatureErrors = nil
	}
	return bundle
}

func isVisionTransient(err error) bool {
	apiErr, ok := apierr.As(err)
	if !ok {
		return true
	}
	return apiErr.IsTransient()
}
