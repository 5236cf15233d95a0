package openai

import (
	"context"
	"errors"
	"fmt"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/ssestream"

	"github.com/rmpassist/rmp-assistant/internal/models"
)

// ErrNoMessages is returned when StreamCompletion is called with an empty message list.
var ErrNoMessages = errors.New("openai: no messages to complete")

const defaultChatModel = string(openaisdk.ChatModelGPT4oMini)

// ChatClient streams chat completions via the official SDK.
type ChatClient struct {
	sdk     openaisdk.Client
	model   string
	baseURL string
}

// ChatOption configures the ChatClient.
type ChatOption func(*ChatClient)

// WithChatModel sets the chat model name (e.g. gpt-4o-mini). Empty uses default.
func WithChatModel(model string) ChatOption {
	return func(c *ChatClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithChatBaseURL points the chat client at a different API host (proxies, tests).
func WithChatBaseURL(baseURL string) ChatOption {
	return func(c *ChatClient) {
		c.baseURL = baseURL
	}
}

// NewChatClient creates a streaming chat client.
func NewChatClient(apiKey string, opts ...ChatOption) *ChatClient {
	client := &ChatClient{model: defaultChatModel}
	for _, opt := range opts {
		opt(client)
	}

	client.sdk = newSDK(apiKey, client.baseURL)

	return client
}

// Model returns the configured chat model name.
func (c *ChatClient) Model() string { return c.model }

// StreamCompletion starts a streaming completion for messages. The request is bound to ctx:
// cancelling ctx or calling Close on the returned stream releases the connection.
// Request failures surface from the stream's Err after the first Next.
func (c *ChatClient) StreamCompletion(ctx context.Context, messages []models.Message) (models.FragmentStream, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	params := openaisdk.ChatCompletionNewParams{
		Messages: toSDKMessages(messages),
		Model:    openaisdk.ChatModel(c.model),
	}

	return &ChatStream{stream: c.sdk.Chat.Completions.NewStreaming(ctx, params)}, nil
}

func toSDKMessages(messages []models.Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			out = append(out, openaisdk.SystemMessage(m.Content))
		case models.RoleAssistant:
			out = append(out, openaisdk.AssistantMessage(m.Content))
		default:
			out = append(out, openaisdk.UserMessage(m.Content))
		}
	}

	return out
}

// ChatStream adapts the SDK's server-sent-event stream to models.FragmentStream.
// Chunks without content (role headers, finish markers) are skipped.
type ChatStream struct {
	stream  *ssestream.Stream[openaisdk.ChatCompletionChunk]
	current string
	closed  bool
}

// Next advances to the next non-empty content delta.
func (s *ChatStream) Next() bool {
	if s.closed {
		return false
	}

	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}

		if content := chunk.Choices[0].Delta.Content; content != "" {
			s.current = content

			return true
		}
	}

	s.current = ""

	return false
}

// Current returns the fragment produced by the last successful Next.
func (s *ChatStream) Current() string { return s.current }

// Err returns the error that stopped the stream, if any.
func (s *ChatStream) Err() error {
	if err := s.stream.Err(); err != nil {
		return fmt.Errorf("openai chat stream: %w", err)
	}

	return nil
}

// Close releases the underlying HTTP response. Safe to call more than once.
func (s *ChatStream) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("close openai chat stream: %w", err)
	}

	return nil
}

var _ models.FragmentStream = (*ChatStream)(nil)
