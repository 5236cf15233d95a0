package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rmpassist/rmp-assistant/internal/apperrors"
	"github.com/rmpassist/rmp-assistant/internal/models"
	"github.com/rmpassist/rmp-assistant/internal/observability"
)

// Stage names used for ingestion spans and stage metrics.
const (
	stageScrape = "scrape"
	stageEmbed  = "embed"
	stageUpsert = "upsert"
)

// IngestionService scrapes a professor review page, embeds its reviews and upserts one record
// keyed by the professor's name.
type IngestionService struct {
	scraper   PageScraper
	embedder  EmbeddingClient
	store     VectorStore
	domain    string
	namespace string
	metrics   observability.AssistantMetrics
	logger    *slog.Logger
}

// IngestionServiceParams configures IngestionService. Metrics may be nil (metrics disabled).
type IngestionServiceParams struct {
	Scraper  PageScraper
	Embedder EmbeddingClient
	Store    VectorStore
	// Domain must appear in every submitted URL (e.g. ratemyprofessors.com).
	Domain    string
	Namespace string
	Metrics   observability.AssistantMetrics
	Logger    *slog.Logger
}

// NewIngestionService creates an IngestionService.
func NewIngestionService(p IngestionServiceParams) *IngestionService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &IngestionService{
		scraper:   p.Scraper,
		embedder:  p.Embedder,
		store:     p.Store,
		domain:    p.Domain,
		namespace: p.Namespace,
		metrics:   p.Metrics,
		logger:    logger,
	}
}

// ValidateURL reports whether rawURL is an absolute http(s) URL on the review site.
func (s *IngestionService) ValidateURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || !strings.Contains(rawURL, s.domain) {
		return apperrors.NewInvalidInputError("url", "Invalid URL")
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperrors.NewInvalidInputError("url", "Invalid URL")
	}

	return nil
}

// SubmitURL ingests the professor page at rawURL and returns the number of records upserted.
// Re-submitting the same professor overwrites the previous record.
func (s *IngestionService) SubmitURL(ctx context.Context, rawURL string) (int, error) {
	start := time.Now()

	count, professor, err := s.submit(ctx, strings.TrimSpace(rawURL))

	outcome := ingestionOutcome(err)
	if s.metrics != nil {
		s.metrics.RecordIngestion(ctx, outcome)
	}

	if err != nil {
		s.logger.WarnContext(ctx, "ingest: submit url failed",
			"url", rawURL, "outcome", outcome, "stage", apperrors.StageOf(err), "error", err,
			"duration", time.Since(start))

		return 0, err
	}

	s.logger.InfoContext(ctx, "ingest: professor stored",
		"professor", professor, "upserted", count, "namespace", s.namespace, "duration", time.Since(start))

	return count, nil
}

func (s *IngestionService) submit(ctx context.Context, pageURL string) (int, string, error) {
	if err := s.ValidateURL(pageURL); err != nil {
		return 0, "", err
	}

	page, err := s.scrape(ctx, pageURL)
	if err != nil {
		return 0, "", err
	}

	if page.Name == "" || len(page.Reviews) == 0 {
		return 0, page.Name, apperrors.NewExtractionError(pageURL, "professor name or reviews not found on page")
	}

	document := strings.Join(page.Reviews, "\n")

	vector, err := s.embed(ctx, document)
	if err != nil {
		return 0, page.Name, apperrors.NewUpstreamError(apperrors.StageEmbed, err)
	}

	record := models.ProfessorRecord{
		ID:        page.Name,
		Embedding: vector,
		Metadata: models.ProfessorMetadata{
			Review:  strings.Join(page.Reviews, " "),
			Subject: page.Subject,
			Stars:   page.Stars,
		},
		Document: document,
	}

	count, err := s.upsert(ctx, record)
	if err != nil {
		return 0, page.Name, apperrors.NewUpstreamError(apperrors.StageUpsert, err)
	}

	return count, page.Name, nil
}

func (s *IngestionService) scrape(ctx context.Context, pageURL string) (*models.ProfessorPage, error) {
	ctx, span := observability.StartSpan(ctx, "ingest.scrape", trace.WithAttributes(attribute.String("url", pageURL)))
	defer span.End()

	start := time.Now()
	page, err := s.scraper.Scrape(ctx, pageURL)
	s.recordStage(ctx, stageScrape, start, err)

	if err != nil {
		endWithError(span, err)

		if !errors.Is(err, apperrors.ErrUpstream) {
			err = apperrors.NewUpstreamError(apperrors.StageFetch, err)
		}

		return nil, err
	}

	span.SetAttributes(attribute.String("professor", page.Name), attribute.Int("reviews", len(page.Reviews)))

	return page, nil
}

func (s *IngestionService) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := observability.StartSpan(ctx, "ingest.embed")
	defer span.End()

	start := time.Now()
	vector, err := s.embedder.CreateEmbedding(ctx, text)
	s.recordStage(ctx, stageEmbed, start, err)

	if err != nil {
		endWithError(span, err)
	}

	return vector, err
}

func (s *IngestionService) upsert(ctx context.Context, record models.ProfessorRecord) (int, error) {
	ctx, span := observability.StartSpan(ctx, "ingest.upsert",
		trace.WithAttributes(attribute.String("namespace", s.namespace), attribute.String("professor", record.ID)))
	defer span.End()

	start := time.Now()
	count, err := s.store.Upsert(ctx, s.namespace, []models.ProfessorRecord{record})
	s.recordStage(ctx, stageUpsert, start, err)

	if err != nil {
		endWithError(span, err)
	}

	return count, err
}

func (s *IngestionService) recordStage(ctx context.Context, stage string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}

	s.metrics.RecordStageDuration(ctx, observability.PipelineIngest, stage, stageOutcome(err), time.Since(start))
}

func endWithError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func ingestionOutcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case errors.Is(err, apperrors.ErrInvalidInput):
		return observability.OutcomeInvalidInput
	case errors.Is(err, apperrors.ErrExtraction):
		return observability.OutcomeExtractionFailed
	default:
		return observability.OutcomeUpstreamError
	}
}
