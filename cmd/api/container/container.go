// Package container wires the api service's dependency graph bottom-up:
// repositories first, then the services built on them, finishing with the
// Coordinator every handler calls through. Grounded on the teacher's
// cmd/orchestrator/container.go (explicit construction, no package-level
// singletons), per spec §9's redesign flag against ambient global state.
package container

import (
	"fmt"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/parkvision/visionserve/cmd/api/repository"
	"github.com/parkvision/visionserve/cmd/api/service"
	"github.com/parkvision/visionserve/common/bootstrap"
	"github.com/parkvision/visionserve/common/cache"
	"github.com/parkvision/visionserve/common/circuitbreaker"
	"github.com/parkvision/visionserve/common/clients"
	"github.com/parkvision/visionserve/common/ratelimit"
	rediscommon "github.com/parkvision/visionserve/common/redis"
	"github.com/parkvision/visionserve/common/retrypolicy"
)

// Container holds every initialized repository and service (singleton
// pattern, constructed once at startup).
type Container struct {
	Components *bootstrap.Components
	Redis      *goredis.Client

	ImageRepo   *repository.ImageRepository
	VersionRepo *repository.VersionRepository

	CASService     *service.CASService
	BlobStore      *service.BlobStore
	VisionClient   *service.VisionClient
	NatureAnalyzer *service.NatureAnalyzer
	Annotator      *service.Annotator
	Orchestrator   *service.Orchestrator
	ResultCache    *cache.ResultCache
	Coordinator    *service.Coordinator

	// RateLimitProvider is the Coordinator's externally owned rate-limit
	// collaborator (spec §1). No concrete Provider ships with this service;
	// nil here means the Coordinator always allows until one is wired in.
	RateLimitProvider ratelimit.Provider
}

// NewContainer initializes every repository and service once, in
// dependency order (repos → leaf services → Result Cache → Coordinator).
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	log := components.Logger

	redisRaw := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	imageRepo := repository.NewImageRepository(components.DB)
	versionRepo := repository.NewVersionRepository(components.DB)

	uploadRetry := retrypolicy.New(cfg.Retry.MaxAttempts, cfg.Retry.BaseMS, cfg.Retry.Factor, cfg.Retry.JitterPct, cfg.Retry.MaxMS)
	blobStore, err := service.NewBlobStore(
		cfg.Blob.Bucket,
		cfg.Blob.Region,
		cfg.Blob.EndpointOverride,
		cfg.Blob.AccessKeyID,
		cfg.Blob.SecretAccessKey,
		log,
		uploadRetry,
	)
	if err != nil {
		return nil, fmt.Errorf("construct blob store: %w", err)
	}

	casService := service.NewCASService(imageRepo, blobStore, log, cfg.Upload.SimilarityHammingThreshold, cfg.Upload.MaxUploadBytes)

	visionRetry := retrypolicy.New(cfg.Retry.MaxAttempts, cfg.Retry.BaseMS, cfg.Retry.Factor, cfg.Retry.JitterPct, cfg.Retry.MaxMS)
	visionBreaker := circuitbreaker.New(cfg.Vision.CircuitFailureThreshold, cfg.Vision.CircuitRecoverySeconds)
	visionHTTP := clients.NewHTTPClient(&http.Client{Timeout: cfg.Vision.Timeout}, log)
	visionClient := service.NewVisionClient(visionHTTP, visionBreaker, visionRetry, cfg.Vision.Endpoint, cfg.Vision.APIKey, log)

	natureAnalyzer := service.NewNatureAnalyzer(cfg.Analyzer)
	annotator := service.NewAnnotator()

	batchRetry := retrypolicy.New(cfg.Retry.MaxAttempts, cfg.Retry.BaseMS, cfg.Retry.Factor, cfg.Retry.JitterPct, cfg.Retry.MaxMS)
	orchestrator := service.NewOrchestrator(log, batchRetry, cfg.Batch.DefaultConcurrency)

	resultCache := cache.New(
		rediscommon.NewCacheStore(redisRaw),
		versionRepo,
		log,
		cfg.Cache.TTLs,
		cfg.Cache.MaxBytes,
		cache.EvictionWeights{
			TTL:     cfg.Cache.EvictionWeights.TTL,
			Kind:    cfg.Cache.EvictionWeights.Kind,
			Recency: cfg.Cache.EvictionWeights.Recency,
		},
		cfg.Cache.SingleFlightTimeout,
	)

	ttls := map[string]time.Duration{
		"detect":   cfg.Cache.TTLs["detect"],
		"faces":    cfg.Cache.TTLs["faces"],
		"nature":   cfg.Cache.TTLs["nature"],
		"annotate": cfg.Cache.TTLs["annotate"],
		"batch":    cfg.Cache.TTLs["batch"],
	}
	var rateLimitProvider ratelimit.Provider
	coordinator := service.NewCoordinator(casService, blobStore, visionClient, natureAnalyzer, annotator, orchestrator, resultCache, ttls, log, rateLimitProvider)

	return &Container{
		Components:        components,
		Redis:             redisRaw,
		ImageRepo:         imageRepo,
		VersionRepo:       versionRepo,
		CASService:        casService,
		BlobStore:         blobStore,
		VisionClient:      visionClient,
		NatureAnalyzer:    natureAnalyzer,
		Annotator:         annotator,
		Orchestrator:      orchestrator,
		ResultCache:       resultCache,
		Coordinator:       coordinator,
		RateLimitProvider: rateLimitProvider,
	}, nil
}

// Close releases resources the container itself opened (the repositories
// and services all borrow components.DB / the Redis client rather than
// owning connections of their own).
func (c *Container) Close() error {
	return c.Redis.Close()
}
