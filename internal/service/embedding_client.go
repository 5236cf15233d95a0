package service

import (
	"context"

	"github.com/rmpassist/rmp-assistant/internal/models"
)

// EmbeddingClient generates embedding vectors for text.
// Implemented by provider-specific clients (OpenAI, Google Gemini, the deterministic mock).
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// GenerationClient streams a completion for a conversation.
type GenerationClient interface {
	StreamCompletion(ctx context.Context, messages []models.Message) (models.FragmentStream, error)
}

// VectorStore is a namespaced nearest-neighbour index of professor records.
// Upsert overwrites records with the same ID; Query returns matches most similar first.
type VectorStore interface {
	Upsert(ctx context.Context, namespace string, records []models.ProfessorRecord) (int, error)
	Query(ctx context.Context, namespace string, vector []float32, topK int, includeMetadata bool) ([]models.QueryMatch, error)
}

// PageScraper fetches a review page and extracts the professor fields.
type PageScraper interface {
	Scrape(ctx context.Context, pageURL string) (*models.ProfessorPage, error)
}
