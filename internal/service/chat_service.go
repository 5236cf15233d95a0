package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rmpassist/rmp-assistant/internal/apperrors"
	"github.com/rmpassist/rmp-assistant/internal/models"
	"github.com/rmpassist/rmp-assistant/internal/observability"
)

// ChatService runs the retrieval-augmented response pipeline: embed the last user message,
// query the vector store, augment the prompt with the matches and stream the completion.
type ChatService struct {
	embedder     EmbeddingClient
	store        VectorStore
	generator    GenerationClient
	systemPrompt string
	namespace    string
	topK         int
	metrics      observability.AssistantMetrics
	logger       *slog.Logger
}

// ChatServiceParams configures ChatService. Metrics may be nil (metrics disabled).
type ChatServiceParams struct {
	Embedder     EmbeddingClient
	Store        VectorStore
	Generator    GenerationClient
	SystemPrompt string
	Namespace    string
	TopK         int
	Metrics      observability.AssistantMetrics
	Logger       *slog.Logger
}

// NewChatService creates a ChatService.
func NewChatService(p ChatServiceParams) *ChatService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ChatService{
		embedder:     p.Embedder,
		store:        p.Store,
		generator:    p.Generator,
		systemPrompt: p.SystemPrompt,
		namespace:    p.Namespace,
		topK:         p.TopK,
		metrics:      p.Metrics,
		logger:       logger,
	}
}

// validateConversation checks that the conversation ends with a non-blank user message.
func validateConversation(messages []models.Message) error {
	if len(messages) == 0 {
		return apperrors.NewInvalidInputError("messages", "conversation must contain at least one message")
	}

	last := messages[len(messages)-1]
	if last.Role != models.RoleUser {
		return apperrors.NewInvalidInputError("messages", "last message must be from the user")
	}

	if strings.TrimSpace(last.Content) == "" {
		return apperrors.NewInvalidInputError("messages", "last message must not be empty")
	}

	return nil
}

// Respond embeds the last message, retrieves the top-K professors and starts a streamed completion.
// Failures before streaming are returned as apperrors.UpstreamError with stage embed, query or
// generate. A failure while streaming is reported by the returned stream's Err, after the fragments
// already delivered. The caller must Close the returned stream.
func (s *ChatService) Respond(ctx context.Context, messages []models.Message) (models.FragmentStream, error) {
	if err := validateConversation(messages); err != nil {
		return nil, err
	}

	query := messages[len(messages)-1].Content

	vector, err := s.embed(ctx, query)
	if err != nil {
		s.logger.ErrorContext(ctx, "chat: create embedding failed", "error", err)

		return nil, apperrors.NewUpstreamError(apperrors.StageEmbed, err)
	}

	matches, err := s.query(ctx, vector)
	if err != nil {
		s.logger.ErrorContext(ctx, "chat: vector query failed", "error", err, "namespace", s.namespace, "topK", s.topK)

		return nil, apperrors.NewUpstreamError(apperrors.StageQuery, err)
	}

	prompt := BuildMessages(s.systemPrompt, messages, RenderMatches(matches))

	genCtx, span := observability.StartSpan(ctx, "chat.generate")
	start := time.Now()

	inner, err := s.generator.StreamCompletion(genCtx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start completion failed")
		span.End()
		s.recordStage(ctx, string(apperrors.StageGenerate), start, err)
		s.logger.ErrorContext(ctx, "chat: start completion failed", "error", err)

		return nil, apperrors.NewUpstreamError(apperrors.StageGenerate, err)
	}

	s.logger.DebugContext(ctx, "chat: streaming completion", "matches", len(matches), "messages", len(prompt))

	return &chatStream{
		inner:   inner,
		ctx:     ctx,
		span:    span,
		start:   start,
		metrics: s.metrics,
		logger:  s.logger,
	}, nil
}

func (s *ChatService) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := observability.StartSpan(ctx, "chat.embed")
	defer span.End()

	start := time.Now()
	vector, err := s.embedder.CreateEmbedding(ctx, text)
	s.recordStage(ctx, string(apperrors.StageEmbed), start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
	}

	return vector, err
}

func (s *ChatService) query(ctx context.Context, vector []float32) ([]models.QueryMatch, error) {
	ctx, span := observability.StartSpan(ctx, "chat.query",
		trace.WithAttributes(attribute.String("namespace", s.namespace), attribute.Int("top_k", s.topK)))
	defer span.End()

	start := time.Now()
	matches, err := s.store.Query(ctx, s.namespace, vector, s.topK, true)
	s.recordStage(ctx, string(apperrors.StageQuery), start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")

		return nil, err
	}

	span.SetAttributes(attribute.Int("matches", len(matches)))

	return matches, nil
}

func (s *ChatService) recordStage(ctx context.Context, stage string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}

	s.metrics.RecordStageDuration(ctx, observability.PipelineChat, stage, stageOutcome(err), time.Since(start))
}

func stageOutcome(err error) string {
	if err != nil {
		return observability.OutcomeError
	}

	return observability.OutcomeSuccess
}

// chatStream forwards non-empty fragments from the generation client. It wraps a failure of the
// underlying stream as a generate-stage UpstreamError and finishes the span and metrics on Close.
type chatStream struct {
	inner   models.FragmentStream
	ctx     context.Context //nolint:containedctx // span and metrics are reported on Close
	span    trace.Span
	start   time.Time
	metrics observability.AssistantMetrics
	logger  *slog.Logger

	current   string
	fragments int
	err       error
	done      bool
	closed    bool
}

func (c *chatStream) Next() bool {
	if c.done || c.closed {
		return false
	}

	for c.inner.Next() {
		if fragment := c.inner.Current(); fragment != "" {
			c.current = fragment
			c.fragments++

			return true
		}
	}

	c.done = true
	c.current = ""

	if err := c.inner.Err(); err != nil {
		c.err = apperrors.NewUpstreamError(apperrors.StageGenerate, err)
	}

	return false
}

func (c *chatStream) Current() string { return c.current }

func (c *chatStream) Err() error { return c.err }

func (c *chatStream) Close() error {
	if c.closed {
		return nil
	}

	c.closed = true
	closeErr := c.inner.Close()

	c.span.SetAttributes(attribute.Int("fragments", c.fragments))

	if c.err != nil {
		c.span.RecordError(c.err)
		c.span.SetStatus(codes.Error, "stream failed")
		c.logger.ErrorContext(c.ctx, "chat: stream failed", "error", c.err, "fragments", c.fragments)
	}

	c.span.End()

	if c.metrics != nil {
		c.metrics.RecordStageDuration(c.ctx, observability.PipelineChat, string(apperrors.StageGenerate),
			stageOutcome(c.err), time.Since(c.start))
		c.metrics.RecordChatFragments(c.ctx, c.fragments)
	}

	return closeErr
}

var _ models.FragmentStream = (*chatStream)(nil)
