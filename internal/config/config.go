// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported provider and backend names.
const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
	ProviderMock   = "mock"

	VectorStoreMemory   = "memory"
	VectorStorePgvector = "pgvector"
	VectorStoreQdrant   = "qdrant"
)

// Config holds all application configuration.
type Config struct {
	Port                string
	LogLevel            string
	MaxRequestBodyBytes int64

	// Pipeline holds the prompt and retrieval settings shared by the chat and ingestion pipelines.
	Pipeline PipelineConfig

	// ReviewSiteDomain must appear in every submitted URL.
	ReviewSiteDomain string

	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbeddingAPIKey     string

	GenerationProvider string
	GenerationModel    string
	GenerationAPIKey   string

	VectorStore  string
	DatabaseURL  string
	QdrantURL    string
	QdrantAPIKey string

	ScrapeTimeout   time.Duration
	ScrapeRetryMax  int
	ScrapeUserAgent string

	// OTEL_METRICS_EXPORTER: "prometheus" serves /metrics, "otlp" pushes to OTEL_EXPORTER_OTLP_ENDPOINT;
	// empty disables metrics.
	OtelMetricsExporter string
	// OTEL_TRACES_EXPORTER: "otlp" or "stdout"; empty disables tracing.
	OtelTracesExporter string

	// Re-embedding worker concurrency (0 disables the River worker in the API process).
	ReembedWorkers     int
	ReembedMaxAttempts int
	// REEMBED_FROM_MODEL: when set and workers are enabled, the API enqueues jobs at startup for
	// records stored under this model tag. Ignored by the batch commands.
	ReembedFromModel string
	// Embedding calls per second allowed for background re-embedding and seeding.
	EmbeddingRateLimit float64

	SeedConcurrency int
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloat retrieves an environment variable as a float64 or returns a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDuration retrieves an environment variable as a time.Duration (e.g. "15s") or returns a default value.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// firstNonEmpty returns the first non-empty value.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

// providerAPIKey picks the provider-specific fallback key when no explicit key is set.
func providerAPIKey(explicitKey, provider string) string {
	switch provider {
	case ProviderOpenAI:
		return firstNonEmpty(os.Getenv(explicitKey), os.Getenv("OPENAI_API_KEY"))
	case ProviderGoogle:
		return firstNonEmpty(os.Getenv(explicitKey), os.Getenv("GOOGLE_API_KEY"))
	default:
		return os.Getenv(explicitKey)
	}
}

const (
	defaultEmbeddingModelOpenAI  = "text-embedding-3-small"
	defaultEmbeddingModelGoogle  = "gemini-embedding-001"
	defaultGenerationModelOpenAI = "gpt-4o-mini"
	defaultGenerationModelGoogle = "gemini-2.0-flash"
	defaultMaxRequestBodyBytes   = 1 << 20
)

func defaultEmbeddingModel(provider string) string {
	switch provider {
	case ProviderGoogle:
		return defaultEmbeddingModelGoogle
	case ProviderMock:
		return "mock"
	default:
		return defaultEmbeddingModelOpenAI
	}
}

func defaultGenerationModel(provider string) string {
	if provider == ProviderGoogle {
		return defaultGenerationModelGoogle
	}

	return defaultGenerationModelOpenAI
}

// Load reads configuration from environment variables and returns a Config struct.
// It automatically loads .env file if it exists.
// Returns default values for any missing environment variables, and an error when
// the selected providers or vector store are missing required settings.
func Load() (*Config, error) {
	return load(true)
}

// LoadBatch is Load for the offline commands (seed, reembed). They never call the generative
// model, so generation credentials are optional, but they write records another process reads,
// so the in-process memory store is rejected.
func LoadBatch() (*Config, error) {
	return load(false)
}

// ErrMemoryStoreInBatch is returned by LoadBatch when VECTOR_STORE is memory: the records would
// be lost when the command exits.
var ErrMemoryStoreInBatch = errors.New(
	"VECTOR_STORE=memory is not persistent; batch commands need VECTOR_STORE=pgvector or qdrant")

func load(serving bool) (*Config, error) {
	// Load .env file if it exists. Skip logging when absent (e.g. env from secrets/parameter store).
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	pipeline, err := LoadPipelineConfig()
	if err != nil {
		return nil, err
	}

	embeddingProvider := strings.ToLower(getEnv("EMBEDDING_PROVIDER", ProviderOpenAI))
	generationProvider := strings.ToLower(getEnv("GENERATION_PROVIDER", ProviderOpenAI))

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		MaxRequestBodyBytes: int64(getEnvAsInt("MAX_REQUEST_BODY_BYTES", defaultMaxRequestBodyBytes)),
		Pipeline:            pipeline,
		ReviewSiteDomain:    getEnv("REVIEW_SITE_DOMAIN", "ratemyprofessors.com"),

		EmbeddingProvider:   embeddingProvider,
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", defaultEmbeddingModel(embeddingProvider)),
		EmbeddingDimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 1536),
		EmbeddingAPIKey:     providerAPIKey("EMBEDDING_PROVIDER_API_KEY", embeddingProvider),

		GenerationProvider: generationProvider,
		GenerationModel:    getEnv("GENERATION_MODEL", defaultGenerationModel(generationProvider)),
		GenerationAPIKey:   providerAPIKey("GENERATION_PROVIDER_API_KEY", generationProvider),

		VectorStore:  strings.ToLower(getEnv("VECTOR_STORE", VectorStoreMemory)),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		QdrantURL:    os.Getenv("QDRANT_URL"),
		QdrantAPIKey: os.Getenv("QDRANT_API_KEY"),

		ScrapeTimeout:   getEnvAsDuration("SCRAPE_TIMEOUT", 15*time.Second),
		ScrapeRetryMax:  getEnvAsInt("SCRAPE_RETRY_MAX", 0),
		ScrapeUserAgent: getEnv("SCRAPE_USER_AGENT", "rmp-assistant/1.0"),

		OtelMetricsExporter: strings.ToLower(os.Getenv("OTEL_METRICS_EXPORTER")),
		OtelTracesExporter:  strings.ToLower(os.Getenv("OTEL_TRACES_EXPORTER")),

		ReembedWorkers:     getEnvAsInt("REEMBED_WORKERS", 0),
		ReembedMaxAttempts: getEnvAsInt("REEMBED_MAX_ATTEMPTS", 3),
		ReembedFromModel:   strings.TrimSpace(os.Getenv("REEMBED_FROM_MODEL")),
		EmbeddingRateLimit: getEnvAsFloat("EMBEDDING_RATE_LIMIT", 5),

		SeedConcurrency: getEnvAsInt("SEED_CONCURRENCY", 4),
	}

	if err := cfg.validate(serving); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks provider selections and their required credentials. serving is true for the
// API process and false for the batch commands.
func (c *Config) validate(serving bool) error {
	switch c.EmbeddingProvider {
	case ProviderOpenAI, ProviderGoogle:
		if c.EmbeddingAPIKey == "" {
			return fmt.Errorf("EMBEDDING_PROVIDER_API_KEY is required for embedding provider %q", c.EmbeddingProvider)
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unsupported EMBEDDING_PROVIDER %q", c.EmbeddingProvider)
	}

	switch c.GenerationProvider {
	case ProviderOpenAI, ProviderGoogle:
		if serving && c.GenerationAPIKey == "" {
			return fmt.Errorf("GENERATION_PROVIDER_API_KEY is required for generation provider %q", c.GenerationProvider)
		}
	default:
		return fmt.Errorf("unsupported GENERATION_PROVIDER %q", c.GenerationProvider)
	}

	switch c.VectorStore {
	case VectorStoreMemory:
		if !serving {
			return ErrMemoryStoreInBatch
		}
	case VectorStorePgvector:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when VECTOR_STORE=pgvector")
		}
	case VectorStoreQdrant:
		if c.QdrantURL == "" {
			return errors.New("QDRANT_URL is required when VECTOR_STORE=qdrant")
		}
	default:
		return fmt.Errorf("unsupported VECTOR_STORE %q", c.VectorStore)
	}

	if c.EmbeddingDimensions <= 0 {
		return errors.New("EMBEDDING_DIMENSIONS must be a positive integer")
	}

	if c.MaxRequestBodyBytes <= 0 {
		return errors.New("MAX_REQUEST_BODY_BYTES must be a positive integer")
	}

	if c.ScrapeRetryMax < 0 {
		return errors.New("SCRAPE_RETRY_MAX must not be negative")
	}

	if c.ReembedWorkers < 0 {
		return errors.New("REEMBED_WORKERS must not be negative")
	}

	if c.ReembedWorkers > 0 && c.VectorStore != VectorStorePgvector {
		return errors.New("REEMBED_WORKERS requires VECTOR_STORE=pgvector")
	}

	if c.ReembedMaxAttempts <= 0 {
		return errors.New("REEMBED_MAX_ATTEMPTS must be a positive integer")
	}

	if c.EmbeddingRateLimit <= 0 {
		return errors.New("EMBEDDING_RATE_LIMIT must be positive")
	}

	if c.SeedConcurrency <= 0 {
		return errors.New("SEED_CONCURRENCY must be a positive integer")
	}

	return nil
}
