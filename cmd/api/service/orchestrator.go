package service

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/parkvision/visionserve/common/apierr"
	"github.com/parkvision/visionserve/common/cache"
	"github.com/parkvision/visionserve/common/logger"
	"github.com/parkvision/visionserve/common/models"
	"github.com/parkvision/visionserve/common/retrypolicy"
)

// BatchJobFn computes a single (image_hash, kind) artifact; returned by the
// Coordinator so the Orchestrator never imports Coordinator/C3/C5/C6
// directly (it only knows how to fan out and aggregate).
type BatchJobFn func(ctx context.Context, imageHash string, kind models.ArtifactKind) (artifact any, fromCache bool, err error)

// Orchestrator implements C7: bounded fan-out across image×kind pairs,
// per-item isolation and retry, cancellation, aligned result assembly.
// Grounded on the teacher's cmd/workflow-runner/worker/http_worker.go
// (bounded consumer loop where one message's failure never stops the
// loop) and common/worker's structured per-item completion signal — but
// replaces the teacher's Redis-stream consumer (needed there for a
// distributed worker fleet) with an in-process errgroup.SetLimit pool,
// since §4.7 describes one orchestrator process fanning out, not a
// cross-process worker fleet.
type Orchestrator struct {
	log                *logger.Logger
	retry              retrypolicy.Policy
	defaultConcurrency int
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(log *logger.Logger, retry retrypolicy.Policy, defaultConcurrency int) *Orchestrator {
	if defaultConcurrency <= 0 {
		defaultConcurrency = minInt(32, 4*runtime.NumCPU())
	}
	return &Orchestrator{log: log, retry: retry, defaultConcurrency: defaultConcurrency}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// BatchAnalyze fans out across the (image, kind) Cartesian product,
// dispatching each job through jobFn (the Coordinator's Cache.GetOrCompute-
// wrapped compute path) with a bounded worker pool (§4.7).
func (o *Orchestrator) BatchAnalyze(ctx context.Context, imageHashes []string, kinds []models.ArtifactKind, concurrencyLimit int, jobFn BatchJobFn) *models.BatchResult {
	if concurrencyLimit <= 0 {
		concurrencyLimit = o.defaultConcurrency
	}
	start := time.Now()
	batchID := uuid.NewString()

	total := len(imageHashes) * len(kinds)
	results := make([]models.BatchItemResult, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrencyLimit)

	idx := 0
	for _, hash := range imageHashes {
		for _, kind := range kinds {
			i := idx
			h, k := hash, kind
			idx++
			g.Go(func() error {
				results[i] = o.runJob(gctx, h, k, jobFn)
				return nil // per-item errors are captured in the result slot, never propagated
			})
		}
	}
	// errgroup.Wait only returns non-nil if a Go func itself returned an
	// error, which runJob never does; its presence here is solely to block
	// until every dispatched job has either completed or been cancelled.
	_ = g.Wait()

	summary := summarize(results)
	summary.ProcessingTimeMs = time.Since(start).Milliseconds()
	partial := ctx.Err() != nil

	return &models.BatchResult{
		BatchID: batchID,
		Items:   results,
		Summary: summary,
		Partial: partial,
	}
}

// runJob executes one (image, kind) job with per-job retry for transient
// error classes; ValidationError/NotFound are terminal after first
// occurrence (§4.7).
func (o *Orchestrator) runJob(ctx context.Context, imageHash string, kind models.ArtifactKind, jobFn BatchJobFn) models.BatchItemResult {
	item := models.BatchItemResult{ImageHash: imageHash, Kind: string(kind)}

	jobRetry := o.retry
	jobRetry.MaxAttempts = 3

	var artifact any
	var fromCache bool
	err := jobRetry.Do(ctx, isBatchJobTransient, func(ctx context.Context) error {
		var jobErr error
		artifact, fromCache, jobErr = jobFn(ctx, imageHash, kind)
		return jobErr
	})

	if err != nil {
		item.Status = models.BatchItemFailed
		apiErr, ok := apierr.As(err)
		if !ok {
			apiErr = apierr.Processing("batch_job", string(kind), err)
		}
		item.Error = &models.BatchItemError{
			ImageHash:    imageHash,
			Kind:         string(kind),
			ErrorCode:    string(apiErr.Code),
			ErrorMessage: apiErr.Message,
		}
		if apiErr.RetryAfterSeconds != nil {
			item.Error.RetryHint = fmt.Sprintf("%ds", *apiErr.RetryAfterSeconds)
		}
		o.log.Warn("batch job failed", "image_hash", imageHash, "kind", kind, "error_code", apiErr.Code)
		return item
	}

	item.Status = models.BatchItemSuccess
	item.Result = artifact
	item.FromCache = fromCache
	return item
}

func isBatchJobTransient(err error) bool {
	apiErr, ok := apierr.As(err)
	if !ok {
		return true
	}
	switch apiErr.Code {
	case apierr.CodeValidation, apierr.CodeNotFound:
		return false
	default:
		return apiErr.IsTransient()
	}
}

func summarize(results []models.BatchItemResult) models.BatchSummary {
	summary := models.BatchSummary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case models.BatchItemSuccess:
			summary.Success++
			if r.FromCache {
				summary.CacheHitCount++
			}
		case models.BatchItemFailed:
			summary.Failed++
		}
	}
	return summary
}

// GetOrComputeJobFn adapts a ResultCache + a pure compute function into a
// BatchJobFn, the shape the Coordinator wires in so duplicate (image, kind)
// pairs across a batch collapse into single work via single-flight (§4.7
// "each job goes through Cache.GetOrCompute").
func GetOrComputeJobFn(rc *cache.ResultCache, paramFingerprint string, ttlFor func(models.ArtifactKind) time.Duration, compute func(ctx context.Context, imageHash string, kind models.ArtifactKind) ([]byte, error), decode func(kind models.ArtifactKind, raw []byte) (any, error)) BatchJobFn {
	return func(ctx context.Context, imageHash string, kind models.ArtifactKind) (any, bool, error) {
		key := cache.CacheKey{Kind: string(kind), ImageHash: imageHash, ParamFingerprint: paramFingerprint}
		raw, hit, err := rc.GetOrCompute(ctx, key, ttlFor(kind), func(ctx context.Context) ([]byte, cache.EntryMeta, error) {
			b, err := compute(ctx, imageHash, kind)
			return b, cache.EntryMeta{ComputedAt: time.Now()}, err
		})
		if err != nil {
			return nil, false, err
		}
		artifact, err := decode(kind, raw)
		if err != nil {
			return nil, false, apierr.Processing("decode_batch_artifact", string(kind), err)
		}
		return artifact, hit, nil
	}
}
