// Package googleai provides thin wrappers around the Google Gen AI SDK (Gemini API) for embeddings
// and streaming generation.
package googleai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	"github.com/rmpassist/rmp-assistant/internal/models"
)

var (
	// ErrEmptyInput is returned when CreateEmbedding is called with empty input.
	ErrEmptyInput = errors.New("googleai: input text is empty")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("googleai: embedding dimensions must be positive")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("googleai: no embedding in response")
	// ErrDimensionMismatch is returned when the response embedding length does not match configured dimensions.
	ErrDimensionMismatch = errors.New("googleai: embedding dimension mismatch")
)

const (
	providerName     = "google"
	defaultDimension = 1536
	defaultModel     = "gemini-embedding-001"
)

// Gemini embedding task types. Review documents and student queries are embedded asymmetrically;
// both land in the same vector space, so ModelTag does not depend on the task.
const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// Client calls the Gemini embeddings API via the Google Gen AI SDK.
type Client struct {
	client     *genai.Client
	model      string
	dimensions int
	taskType   string
	baseURL    string
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithDimensions sets the requested embedding dimension (must match the vector store).
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// WithModel sets the embedding model name (e.g. gemini-embedding-001). Empty uses default.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithTaskType sets the task type sent with every embedding request. Empty leaves it to the API.
func WithTaskType(taskType string) ClientOption {
	return func(c *Client) {
		c.taskType = taskType
	}
}

// WithBaseURL points the client at a different API host (proxies, tests).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// newGenAI builds a Gemini API client. An empty baseURL uses the SDK default.
func newGenAI(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("googleai client: %w", err)
	}

	return genaiClient, nil
}

// NewClient creates a Gemini embeddings client.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	client := &Client{
		model:      defaultModel,
		dimensions: defaultDimension,
	}
	for _, opt := range opts {
		opt(client)
	}

	genaiClient, err := newGenAI(ctx, apiKey, client.baseURL)
	if err != nil {
		return nil, err
	}

	client.client = genaiClient

	return client, nil
}

// ForTask returns a client that shares the connection and model but embeds for taskType.
func (c *Client) ForTask(taskType string) *Client {
	clone := *c
	clone.taskType = taskType

	return &clone
}

// TaskType returns the task type sent with embedding requests.
func (c *Client) TaskType() string { return c.taskType }

// ModelTag identifies the vector space this client embeds into.
func (c *Client) ModelTag() models.EmbeddingModelTag {
	model := c.model
	if model == "" {
		model = defaultModel
	}

	return models.NewEmbeddingModelTag(providerName, model, c.dimensions)
}

// CreateEmbedding returns the embedding vector for the given text using the configured model.
// The returned slice length equals the configured dimensions when OutputDimensionality is supported.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	if c.dimensions <= 0 || c.dimensions > math.MaxInt32 {
		return nil, ErrInvalidDims
	}

	model := c.model
	if model == "" {
		model = defaultModel
	}

	contents := []*genai.Content{genai.NewContentFromText(input, genai.RoleUser)}
	//nolint:gosec // G115: c.dimensions is bounded above by math.MaxInt32
	dimInt32 := int32(c.dimensions)

	resp, err := c.client.Models.EmbedContent(ctx, model, contents, &genai.EmbedContentConfig{
		TaskType:             c.taskType,
		OutputDimensionality: &dimInt32,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}

	if len(resp.Embeddings) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	emb := resp.Embeddings[0].Values
	if len(emb) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), c.dimensions)
	}

	out := make([]float32, len(emb))
	copy(out, emb)

	return out, nil
}
