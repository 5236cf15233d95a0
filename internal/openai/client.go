// Package openai provides thin wrappers around the official OpenAI Go SDK for embeddings and
// streaming chat completions.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/rmpassist/rmp-assistant/internal/models"
)

var (
	// ErrEmptyInput is returned when CreateEmbedding is called with empty input.
	ErrEmptyInput = errors.New("openai: input text is empty")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("openai: embedding dimensions must be positive")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("openai: no embedding in response")
	// ErrDimensionMismatch is returned when the response embedding length does not match configured dimensions.
	ErrDimensionMismatch = errors.New("openai: embedding dimension mismatch")
)

const (
	providerName     = "openai"
	defaultDimension = 1536
	defaultModel     = string(openaisdk.EmbeddingModelTextEmbedding3Small)
)

// Client calls the OpenAI embeddings API via the official SDK.
type Client struct {
	sdk        openaisdk.Client
	model      string
	dimensions int
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

// WithModel sets the embedding model name (e.g. text-embedding-3-small). Empty uses default.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at a different API host (proxies, tests).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// newSDK builds an SDK client. SDK retries are disabled: a failed call fails the pipeline.
func newSDK(apiKey, baseURL string) openaisdk.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return openaisdk.NewClient(opts...)
}

// NewClient creates an OpenAI embeddings client using the official SDK.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		model:      defaultModel,
		dimensions: defaultDimension,
	}

	for _, opt := range opts {
		opt(client)
	}

	client.sdk = newSDK(apiKey, client.baseURL)

	return client
}

// ModelTag identifies the vector space this client embeds into.
func (c *Client) ModelTag() models.EmbeddingModelTag {
	return models.NewEmbeddingModelTag(providerName, c.model, c.dimensions)
}

// CreateEmbedding returns the embedding vector for the given text using the configured model.
// The returned slice length equals the configured dimensions.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	if c.dimensions <= 0 {
		return nil, ErrInvalidDims
	}

	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(input),
		},
		Model:          openaisdk.EmbeddingModel(c.model),
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
	}
	// Only the text-embedding-3 family accepts a dimensions parameter.
	if strings.HasPrefix(c.model, "text-embedding-3") {
		params.Dimensions = param.NewOpt(int64(c.dimensions))
	}

	resp, err := c.sdk.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	emb := resp.Data[0].Embedding
	if len(emb) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), c.dimensions)
	}

	out := make([]float32, len(emb))
	for i := range emb {
		out[i] = float32(emb[i])
	}

	return out, nil
}
