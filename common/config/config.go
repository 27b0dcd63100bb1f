package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Blob      BlobConfig
	Vision    VisionConfig
	Cache     CacheConfig
	Upload    UploadConfig
	Retry     RetryConfig
	Batch     BatchConfig
	Analyzer  AnalyzerConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings for the metadata store
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds the Result Cache's backing store connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// BlobConfig holds object-storage settings for original/annotated pixel blobs
type BlobConfig struct {
	Bucket          string
	Region          string
	EndpointOverride string // non-empty to point at an S3-compatible endpoint
	AccessKeyID     string
	SecretAccessKey string
}

// VisionConfig holds the external vision provider's connection settings
type VisionConfig struct {
	Endpoint                string
	APIKey                  string
	Timeout                 time.Duration
	CircuitFailureThreshold int
	CircuitRecoverySeconds  int
}

// CacheConfig holds Result Cache tuning
type CacheConfig struct {
	MaxBytes            int64
	SingleFlightTimeout time.Duration
	TTLs                map[string]time.Duration
	EvictionWeights     EvictionWeights
}

// EvictionWeights are the coefficients of the LRU eviction-priority score (§4.4)
type EvictionWeights struct {
	TTL      float64
	Kind     float64
	Recency  float64
}

// UploadConfig holds ingestion limits (C1)
type UploadConfig struct {
	MaxUploadBytes             int64
	AllowedMimeTypes           []string
	SimilarityHammingThreshold int
}

// RetryConfig holds the exponential backoff+jitter policy parameters shared
// by the Blob Store Adapter (C2), Vision Primitives Client (C3), and Batch
// Orchestrator (C7) retry policies
type RetryConfig struct {
	MaxAttempts int
	BaseMS      int
	Factor      float64
	JitterPct   float64
	MaxMS       int
}

// BatchConfig holds Batch Orchestrator defaults (C7)
type BatchConfig struct {
	DefaultConcurrency int
}

// AnalyzerConfig holds Natural-Element Analyzer tunables (C5)
type AnalyzerConfig struct {
	ConfidenceThreshold float64
	CoverageDamping     map[string]float64
	VegetationWeights   VegetationWeights
}

// VegetationWeights are the §4.5 step 3 sub-score weights (tunable per the
// resolved Open Question on vegetation-health coefficients)
type VegetationWeights struct {
	Color    float64
	Coverage float64
	Label    float64
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof    bool
	PprofPort      int
	EnableTracing  bool
	EnableMetrics  bool
	MetricsPort    int
	TracingBackend string
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "visionserve"),
			User:        getEnv("POSTGRES_USER", "visionserve"),
			Password:    getEnv("POSTGRES_PASSWORD", "visionserve"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 50),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 10),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Blob: BlobConfig{
			Bucket:           getEnv("BLOB_BUCKET", "visionserve-images"),
			Region:           getEnv("BLOB_REGION", "us-east-1"),
			EndpointOverride: getEnv("BLOB_ENDPOINT_OVERRIDE", ""),
			AccessKeyID:      getEnv("BLOB_ACCESS_KEY_ID", ""),
			SecretAccessKey:  getEnv("BLOB_SECRET_ACCESS_KEY", ""),
		},
		Vision: VisionConfig{
			Endpoint:                getEnv("VISION_ENDPOINT", ""),
			APIKey:                  getEnv("VISION_API_KEY", ""),
			Timeout:                 getEnvDuration("VISION_TIMEOUT", 15*time.Second),
			CircuitFailureThreshold: getEnvInt("VISION_CIRCUIT_FAILURE_THRESHOLD", 5),
			CircuitRecoverySeconds:  getEnvInt("VISION_CIRCUIT_RECOVERY_SECONDS", 60),
		},
		Cache: CacheConfig{
			MaxBytes:            getEnvInt64("CACHE_MAX_BYTES", 512*1024*1024),
			SingleFlightTimeout: getEnvDuration("CACHE_SINGLE_FLIGHT_TIMEOUT", 60*time.Second),
			TTLs: map[string]time.Duration{
				"detect":   getEnvDuration("CACHE_TTL_DETECT", 24*time.Hour),
				"faces":    getEnvDuration("CACHE_TTL_FACES", 24*time.Hour),
				"nature":   getEnvDuration("CACHE_TTL_NATURE", 48*time.Hour),
				"annotate": getEnvDuration("CACHE_TTL_ANNOTATE", 72*time.Hour),
				"segment":  getEnvDuration("CACHE_TTL_SEGMENT", 7*24*time.Hour),
				"extract":  getEnvDuration("CACHE_TTL_EXTRACT", 30*24*time.Hour),
				"batch":    getEnvDuration("CACHE_TTL_BATCH", time.Hour),
			},
			EvictionWeights: EvictionWeights{
				TTL:     getEnvFloat("CACHE_EVICTION_WEIGHT_TTL", 0.3),
				Kind:    getEnvFloat("CACHE_EVICTION_WEIGHT_KIND", 0.4),
				Recency: getEnvFloat("CACHE_EVICTION_WEIGHT_RECENCY", 0.3),
			},
		},
		Upload: UploadConfig{
			MaxUploadBytes:             getEnvInt64("MAX_UPLOAD_BYTES", 10485760),
			AllowedMimeTypes:           getEnvSlice("ALLOWED_MIME_TYPES", []string{"image/jpeg", "image/png", "image/gif", "image/bmp", "image/webp"}),
			SimilarityHammingThreshold: getEnvInt("SIMILARITY_HAMMING_THRESHOLD", 5),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 5),
			BaseMS:      getEnvInt("RETRY_BASE_MS", 200),
			Factor:      getEnvFloat("RETRY_FACTOR", 2),
			JitterPct:   getEnvFloat("RETRY_JITTER_PCT", 25),
			MaxMS:       getEnvInt("RETRY_MAX_MS", 10000),
		},
		Batch: BatchConfig{
			DefaultConcurrency: getEnvInt("BATCH_DEFAULT_CONCURRENCY", 0), // 0 ⟹ min(32, 4·NumCPU) at runtime
		},
		Analyzer: AnalyzerConfig{
			ConfidenceThreshold: getEnvFloat("ANALYZER_CONFIDENCE_THRESHOLD", 0.3),
			CoverageDamping: map[string]float64{
				"vegetation": getEnvFloat("ANALYZER_ALPHA_VEGETATION", 1.0),
				"sky":        getEnvFloat("ANALYZER_ALPHA_SKY", 0.8),
				"water":      getEnvFloat("ANALYZER_ALPHA_WATER", 0.7),
				"terrain":    getEnvFloat("ANALYZER_ALPHA_TERRAIN", 0.5),
				"built":      getEnvFloat("ANALYZER_ALPHA_BUILT", 0.6),
			},
			VegetationWeights: VegetationWeights{
				Color:    getEnvFloat("ANALYZER_VEGETATION_WEIGHT_COLOR", 0.45),
				Coverage: getEnvFloat("ANALYZER_VEGETATION_WEIGHT_COVERAGE", 0.35),
				Label:    getEnvFloat("ANALYZER_VEGETATION_WEIGHT_LABEL", 0.20),
			},
		},
		Telemetry: TelemetryConfig{
			EnablePprof:    getEnvBool("ENABLE_PPROF", true),
			PprofPort:      getEnvInt("PPROF_PORT", 6060),
			EnableTracing:  getEnvBool("ENABLE_TRACING", false),
			EnableMetrics:  getEnvBool("ENABLE_METRICS", true),
			MetricsPort:    getEnvInt("METRICS_PORT", 9090),
			TracingBackend: getEnv("TRACING_BACKEND", "stdout"),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	if c.Blob.Bucket == "" {
		return fmt.Errorf("blob bucket is required")
	}

	if len(c.Upload.AllowedMimeTypes) == 0 {
		return fmt.Errorf("at least one allowed mime type is required")
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
