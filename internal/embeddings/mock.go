// Package embeddings provides a deterministic, offline embedding client for local development and tests.
package embeddings

import (
	"context"
	"crypto/sha256"
	"errors"
	"strings"

	"github.com/rmpassist/rmp-assistant/internal/models"
	vectors "github.com/rmpassist/rmp-assistant/pkg/embeddings"
)

// ErrEmptyInput is returned when CreateEmbedding is called with blank text.
var ErrEmptyInput = errors.New("mock embeddings: input text is empty")

const defaultDimensions = 1536

// MockClient generates deterministic embeddings from the SHA-256 of the input text.
// Equal texts map to equal unit vectors; different texts map to unrelated ones.
type MockClient struct {
	dimensions int
}

// NewMockClient creates a new mock embedding client.
// Default dimensions is 1536 to match OpenAI's text-embedding-3-small.
func NewMockClient() *MockClient {
	return &MockClient{dimensions: defaultDimensions}
}

// NewMockClientWithDimensions creates a mock client with custom dimensions.
func NewMockClientWithDimensions(dimensions int) *MockClient {
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}

	return &MockClient{dimensions: dimensions}
}

// ModelTag identifies the mock vector space.
func (c *MockClient) ModelTag() models.EmbeddingModelTag {
	return models.NewEmbeddingModelTag("mock", "sha256", c.dimensions)
}

// CreateEmbedding returns a deterministic unit vector for text.
func (c *MockClient) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	hash := sha256.Sum256([]byte(text))
	embedding := make([]float32, c.dimensions)

	for i := range embedding {
		// Cycle through the hash bytes, mapping each to [-1, 1].
		embedding[i] = (float32(hash[i%len(hash)]) / 127.5) - 1.0
	}

	vectors.NormalizeL2(embedding)

	return embedding, nil
}
