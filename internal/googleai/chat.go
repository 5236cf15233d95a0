package googleai

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/rmpassist/rmp-assistant/internal/models"
)

// ErrNoContents is returned when a message list has no user or assistant turns.
var ErrNoContents = errors.New("googleai: no user or assistant messages to complete")

const defaultChatModel = "gemini-2.0-flash"

// ChatClient streams Gemini completions.
type ChatClient struct {
	client *genai.Client
	model  string
}

// ChatOption configures the ChatClient.
type ChatOption func(*ChatClient)

// WithChatModel sets the generation model name. Empty uses default.
func WithChatModel(model string) ChatOption {
	return func(c *ChatClient) {
		if model != "" {
			c.model = model
		}
	}
}

// NewChatClient creates a Gemini streaming chat client.
func NewChatClient(ctx context.Context, apiKey string, opts ...ChatOption) (*ChatClient, error) {
	genaiClient, err := newGenAI(ctx, apiKey, "")
	if err != nil {
		return nil, err
	}

	client := &ChatClient{client: genaiClient, model: defaultChatModel}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Model returns the configured generation model name.
func (c *ChatClient) Model() string { return c.model }

// StreamCompletion starts a streaming generation. System messages become the system
// instruction; assistant turns are sent with the model role.
func (c *ChatClient) StreamCompletion(ctx context.Context, messages []models.Message) (models.FragmentStream, error) {
	system, contents := toGenAIContents(messages)
	if len(contents) == 0 {
		return nil, ErrNoContents
	}

	config := &genai.GenerateContentConfig{}
	if system != nil {
		config.SystemInstruction = system
	}

	return newStream(c.client.Models.GenerateContentStream(ctx, c.model, contents, config)), nil
}

// toGenAIContents splits messages into the system instruction and the conversation turns.
func toGenAIContents(messages []models.Message) (*genai.Content, []*genai.Content) {
	var (
		systemParts []string
		contents    []*genai.Content
	)

	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			systemParts = append(systemParts, m.Content)
		case models.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	if len(systemParts) == 0 {
		return nil, contents
	}

	system := &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(strings.Join(systemParts, "\n\n"))}}

	return system, contents
}

// responseText concatenates the non-thought text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder

	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}

		sb.WriteString(part.Text)
	}

	return sb.String()
}

// Stream adapts the SDK's push iterator to models.FragmentStream by pulling one response at a time.
type Stream struct {
	next    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	current string
	err     error
	done    bool
}

func newStream(seq iter.Seq2[*genai.GenerateContentResponse, error]) *Stream {
	next, stop := iter.Pull2(seq)

	return &Stream{next: next, stop: stop}
}

// Next advances to the next response carrying text.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}

	for {
		resp, err, ok := s.next()
		if !ok {
			s.finish()

			return false
		}

		if err != nil {
			s.err = fmt.Errorf("gemini stream: %w", err)
			s.finish()

			return false
		}

		if text := responseText(resp); text != "" {
			s.current = text

			return true
		}
	}
}

// Current returns the fragment produced by the last successful Next.
func (s *Stream) Current() string { return s.current }

// Err returns the error that stopped the stream, if any.
func (s *Stream) Err() error { return s.err }

// Close stops the underlying iterator. Safe to call more than once.
func (s *Stream) Close() error {
	s.finish()

	return nil
}

func (s *Stream) finish() {
	s.done = true
	s.current = ""
	s.stop()
}

var _ models.FragmentStream = (*Stream)(nil)
