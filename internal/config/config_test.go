package config

import (
	"errors"
	"testing"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		shouldSet    bool
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			shouldSet:    true,
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "TEST_VAR_MISSING",
			defaultValue: "default",
			envValue:     "",
			shouldSet:    false,
			want:         "default",
		},
		{
			name:         "returns default when environment variable is empty string",
			key:          "TEST_VAR_EMPTY",
			defaultValue: "default",
			envValue:     "",
			shouldSet:    true,
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		shouldSet    bool
		want         int
	}{
		{
			name:         "returns environment variable as int when set with valid integer",
			key:          "TEST_INT_VAR",
			defaultValue: 100,
			envValue:     "200",
			shouldSet:    true,
			want:         200,
		},
		{
			name:         "returns default when environment variable not set",
			key:          "TEST_INT_VAR_MISSING",
			defaultValue: 100,
			envValue:     "",
			shouldSet:    false,
			want:         100,
		},
		{
			name:         "returns default when environment variable is empty string",
			key:          "TEST_INT_VAR_EMPTY",
			defaultValue: 100,
			envValue:     "",
			shouldSet:    true,
			want:         100,
		},
		{
			name:         "returns default when environment variable is not a valid integer",
			key:          "TEST_INT_VAR_INVALID",
			defaultValue: 100,
			envValue:     "not_a_number",
			shouldSet:    true,
			want:         100,
		},
		{
			name:         "handles negative integers",
			key:          "TEST_INT_VAR_NEGATIVE",
			defaultValue: 100,
			envValue:     "-50",
			shouldSet:    true,
			want:         -50,
		},
		{
			name:         "handles zero",
			key:          "TEST_INT_VAR_ZERO",
			defaultValue: 100,
			envValue:     "0",
			shouldSet:    true,
			want:         0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvAsInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT_VAR", "2.5")
	t.Setenv("TEST_FLOAT_VAR_INVALID", "fast")

	if got := getEnvAsFloat("TEST_FLOAT_VAR", 1); got != 2.5 {
		t.Errorf("getEnvAsFloat() = %v, want 2.5", got)
	}

	if got := getEnvAsFloat("TEST_FLOAT_VAR_INVALID", 1); got != 1 {
		t.Errorf("getEnvAsFloat() = %v, want default 1", got)
	}

	if got := getEnvAsFloat("TEST_FLOAT_VAR_UNSET", 5); got != 5 {
		t.Errorf("getEnvAsFloat() = %v, want default 5", got)
	}
}

// setBaseEnv sets the minimum environment Load needs and blanks variables that would
// otherwise leak in from the developer's shell.
func setBaseEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"PORT", "LOG_LEVEL", "MAX_REQUEST_BODY_BYTES", "EMBEDDING_MODEL", "EMBEDDING_DIMENSIONS",
		"EMBEDDING_PROVIDER_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY", "GENERATION_MODEL",
		"DATABASE_URL", "QDRANT_URL", "SCRAPE_RETRY_MAX", "SCRAPE_TIMEOUT", "REEMBED_WORKERS",
		"PIPELINE_CONFIG_FILE", "SYSTEM_PROMPT", "VECTOR_INDEX_NAME", "VECTOR_NAMESPACE", "RETRIEVAL_TOP_K",
		"REEMBED_MAX_ATTEMPTS", "REEMBED_FROM_MODEL", "EMBEDDING_RATE_LIMIT", "SEED_CONCURRENCY", "REVIEW_SITE_DOMAIN",
	} {
		t.Setenv(key, "")
	}

	t.Setenv("EMBEDDING_PROVIDER", "mock")
	t.Setenv("GENERATION_PROVIDER", "openai")
	t.Setenv("GENERATION_PROVIDER_API_KEY", "test-key")
	t.Setenv("VECTOR_STORE", "memory")
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		port     string
		setPort  bool
		wantPort string
	}{
		{
			name:     "returns default port when PORT not set",
			wantPort: "8080",
		},
		{
			name:     "returns custom PORT when set",
			port:     "3000",
			setPort:  true,
			wantPort: "3000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)

			if tt.setPort {
				t.Setenv("PORT", tt.port)
			}

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v, want nil", err)
			}

			if cfg.Port != tt.wantPort {
				t.Errorf("Load() Port = %v, want %v", cfg.Port, tt.wantPort)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Pipeline.IndexName != DefaultIndexName || cfg.Pipeline.Namespace != DefaultNamespace {
		t.Errorf("pipeline names = %q/%q, want %q/%q",
			cfg.Pipeline.IndexName, cfg.Pipeline.Namespace, DefaultIndexName, DefaultNamespace)
	}

	if cfg.Pipeline.TopK != 5 {
		t.Errorf("TopK = %d, want 5", cfg.Pipeline.TopK)
	}

	if cfg.Pipeline.SystemPrompt != DefaultSystemPrompt {
		t.Error("SystemPrompt is not the built-in prompt")
	}

	if cfg.ReviewSiteDomain != "ratemyprofessors.com" {
		t.Errorf("ReviewSiteDomain = %q", cfg.ReviewSiteDomain)
	}

	if cfg.ScrapeRetryMax != 0 {
		t.Errorf("ScrapeRetryMax = %d, want 0 (single best-effort fetch)", cfg.ScrapeRetryMax)
	}

	if cfg.GenerationModel != "gpt-4o-mini" {
		t.Errorf("GenerationModel = %q, want gpt-4o-mini", cfg.GenerationModel)
	}

	if cfg.EmbeddingModel != "mock" {
		t.Errorf("EmbeddingModel = %q, want mock", cfg.EmbeddingModel)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "openai embeddings without key",
			env:  map[string]string{"EMBEDDING_PROVIDER": "openai"},
		},
		{
			name: "unsupported embedding provider",
			env:  map[string]string{"EMBEDDING_PROVIDER": "cohere"},
		},
		{
			name: "generation without key",
			env:  map[string]string{"GENERATION_PROVIDER_API_KEY": ""},
		},
		{
			name: "pgvector without database url",
			env:  map[string]string{"VECTOR_STORE": "pgvector"},
		},
		{
			name: "qdrant without url",
			env:  map[string]string{"VECTOR_STORE": "qdrant"},
		},
		{
			name: "unsupported vector store",
			env:  map[string]string{"VECTOR_STORE": "pinecone"},
		},
		{
			name: "negative scrape retries",
			env:  map[string]string{"SCRAPE_RETRY_MAX": "-1"},
		},
		{
			name: "reembed workers without pgvector",
			env:  map[string]string{"REEMBED_WORKERS": "2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)

			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := Load(); err == nil {
				t.Error("Load() error = nil, want validation error")
			}
		})
	}
}

func TestLoad_ProviderKeyFallback(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-fallback")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.EmbeddingAPIKey != "sk-fallback" {
		t.Errorf("EmbeddingAPIKey = %q, want fallback from OPENAI_API_KEY", cfg.EmbeddingAPIKey)
	}

	if cfg.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("EmbeddingModel = %q, want text-embedding-3-small", cfg.EmbeddingModel)
	}
}

func TestLoadBatch_DoesNotRequireGenerationKey(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("GENERATION_PROVIDER_API_KEY", "")
	t.Setenv("VECTOR_STORE", "qdrant")
	t.Setenv("QDRANT_URL", "http://localhost:6334")

	cfg, err := LoadBatch()
	if err != nil {
		t.Fatalf("LoadBatch() error = %v", err)
	}

	if cfg == nil {
		t.Fatal("LoadBatch() config = nil")
	}
}

func TestLoad_ReembedFromModel(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("VECTOR_STORE", "pgvector")
	t.Setenv("DATABASE_URL", "postgres://localhost/rmp")
	t.Setenv("REEMBED_WORKERS", "2")
	t.Setenv("REEMBED_FROM_MODEL", " openai/text-embedding-ada-002@1536 ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ReembedWorkers != 2 {
		t.Errorf("ReembedWorkers = %d, want 2", cfg.ReembedWorkers)
	}

	if cfg.ReembedFromModel != "openai/text-embedding-ada-002@1536" {
		t.Errorf("ReembedFromModel = %q", cfg.ReembedFromModel)
	}
}

func TestLoadBatch_RejectsMemoryStore(t *testing.T) {
	tests := []struct {
		name  string
		store string
		unset bool
	}{
		{name: "default store", unset: true},
		{name: "explicit memory", store: "memory"},
		{name: "mixed case", store: "Memory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)

			if tt.unset {
				t.Setenv("VECTOR_STORE", "")
			} else {
				t.Setenv("VECTOR_STORE", tt.store)
			}

			_, err := LoadBatch()
			if !errors.Is(err, ErrMemoryStoreInBatch) {
				t.Errorf("LoadBatch() error = %v, want %v", err, ErrMemoryStoreInBatch)
			}
		})
	}
}

func TestLoad_AllowsMemoryStore(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("VECTOR_STORE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.VectorStore != VectorStoreMemory {
		t.Errorf("VectorStore = %q, want %q", cfg.VectorStore, VectorStoreMemory)
	}
}
