// Package providers builds the embedding, generation and vector store clients selected by
// configuration. The API server and the batch commands share it.
package providers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/rmpassist/rmp-assistant/internal/config"
	"github.com/rmpassist/rmp-assistant/internal/embeddings"
	"github.com/rmpassist/rmp-assistant/internal/googleai"
	"github.com/rmpassist/rmp-assistant/internal/models"
	"github.com/rmpassist/rmp-assistant/internal/openai"
	"github.com/rmpassist/rmp-assistant/internal/repository"
	"github.com/rmpassist/rmp-assistant/internal/service"
	"github.com/rmpassist/rmp-assistant/internal/vectorstore/memory"
	"github.com/rmpassist/rmp-assistant/internal/vectorstore/qdrant"
	"github.com/rmpassist/rmp-assistant/migrations"
	"github.com/rmpassist/rmp-assistant/pkg/database"
)

// Embedder is an embedding client that knows which vector space it embeds into.
type Embedder interface {
	service.EmbeddingClient
	ModelTag() models.EmbeddingModelTag
}

// NewEmbedder returns the embedding client for cfg.EmbeddingProvider.
func NewEmbedder(ctx context.Context, cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.EmbeddingAPIKey,
			openai.WithModel(cfg.EmbeddingModel),
			openai.WithDimensions(cfg.EmbeddingDimensions),
		), nil
	case config.ProviderGoogle:
		client, err := googleai.NewClient(ctx, cfg.EmbeddingAPIKey,
			googleai.WithModel(cfg.EmbeddingModel),
			googleai.WithDimensions(cfg.EmbeddingDimensions),
			googleai.WithTaskType(googleai.TaskRetrievalDocument),
		)
		if err != nil {
			return nil, fmt.Errorf("create google embedding client: %w", err)
		}

		return client, nil
	case config.ProviderMock:
		return embeddings.NewMockClientWithDimensions(cfg.EmbeddingDimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.EmbeddingProvider)
	}
}

// ForQueries returns the embedder for chat queries. NewEmbedder embeds review documents; Gemini
// embeds queries with their own task type, other providers embed both the same way.
func ForQueries(e Embedder) Embedder {
	if client, ok := e.(*googleai.Client); ok {
		return client.ForTask(googleai.TaskRetrievalQuery)
	}

	return e
}

// NewGenerator returns the streaming chat client for cfg.GenerationProvider.
func NewGenerator(ctx context.Context, cfg *config.Config) (service.GenerationClient, error) {
	switch cfg.GenerationProvider {
	case config.ProviderOpenAI:
		return openai.NewChatClient(cfg.GenerationAPIKey, openai.WithChatModel(cfg.GenerationModel)), nil
	case config.ProviderGoogle:
		client, err := googleai.NewChatClient(ctx, cfg.GenerationAPIKey, googleai.WithChatModel(cfg.GenerationModel))
		if err != nil {
			return nil, fmt.Errorf("create google chat client: %w", err)
		}

		return client, nil
	default:
		return nil, fmt.Errorf("unsupported generation provider %q", cfg.GenerationProvider)
	}
}

// Store is the configured vector store. Vectors (with Pool) is set for pgvector and Qdrant for
// qdrant; the memory store has no backend handle.
type Store struct {
	service.VectorStore

	Pool    *pgxpool.Pool
	Vectors *repository.ProfessorVectorsRepository
	Qdrant  *qdrant.Store
}

// OpenStore connects the vector store selected by cfg.VectorStore for vectors from model.
// The pgvector schema and the qdrant collection are created when missing.
func OpenStore(ctx context.Context, cfg *config.Config, model models.EmbeddingModelTag) (*Store, error) {
	switch cfg.VectorStore {
	case config.VectorStoreMemory:
		return &Store{VectorStore: memory.NewStore()}, nil
	case config.VectorStorePgvector:
		return openPgvector(ctx, cfg, model)
	case config.VectorStoreQdrant:
		qs, err := qdrant.New(qdrant.Config{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.Pipeline.IndexName,
			Dimensions: cfg.EmbeddingDimensions,
			Model:      model,
		})
		if err != nil {
			return nil, err
		}

		created, err := qs.EnsureCollection(ctx)
		if err != nil {
			_ = qs.Close()

			return nil, err
		}

		if created {
			slog.Info("created qdrant collection", "collection", cfg.Pipeline.IndexName)
		}

		return &Store{VectorStore: qs, Qdrant: qs}, nil
	default:
		return nil, fmt.Errorf("unsupported vector store %q", cfg.VectorStore)
	}
}

// openPgvector applies the schema on a plain pool first: pgvector types can only be registered
// on connections once the extension exists.
func openPgvector(ctx context.Context, cfg *config.Config, model models.EmbeddingModelTag) (*Store, error) {
	schemaPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.WithMaxConns(1))
	if err != nil {
		return nil, err
	}

	err = database.ApplySchema(ctx, schemaPool, migrations.Files)

	schemaPool.Close()

	if err != nil {
		return nil, err
	}

	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.WithAfterConnect(pgxvec.RegisterTypes))
	if err != nil {
		return nil, err
	}

	repo := repository.NewProfessorVectorsRepository(pool, cfg.Pipeline.IndexName, model)

	return &Store{VectorStore: repo, Pool: pool, Vectors: repo}, nil
}

// Close releases database or gRPC connections.
func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}

	if s.Qdrant != nil {
		if err := s.Qdrant.Close(); err != nil {
			slog.Warn("close qdrant store", "error", err)
		}
	}
}

// HealthChecks returns one reachability check per remote dependency of the store.
func (s *Store) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{}

	if s.Pool != nil {
		checks["database"] = s.Pool.Ping
	}

	if s.Qdrant != nil {
		checks["qdrant"] = s.Qdrant.HealthCheck
	}

	return checks
}
