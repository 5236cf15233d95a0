package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rmpassist/rmp-assistant/internal/models"
	"github.com/rmpassist/rmp-assistant/internal/sentiment"
	"github.com/rmpassist/rmp-assistant/pkg/cache"
)

const defaultSeedConcurrency = 4

// ReadSeedReviews decodes a reviews.json document: a JSON array of SeedReview.
func ReadSeedReviews(r io.Reader) ([]models.SeedReview, error) {
	var reviews []models.SeedReview
	if err := json.NewDecoder(r).Decode(&reviews); err != nil {
		return nil, fmt.Errorf("decode seed reviews: %w", err)
	}

	return reviews, nil
}

// SeedResult summarizes a seed run.
type SeedResult struct {
	Upserted   int
	Skipped    int
	CacheHits  int
	Sentiments map[string]int
}

// SeedService bulk-loads reviews into the vector store: one record per review, keyed by professor,
// labelled with the review's sentiment.
type SeedService struct {
	embedder    EmbeddingClient
	store       VectorStore
	namespace   string
	concurrency int
	limiter     *rate.Limiter
	cache       *cache.LoaderCache[string, []float32]
	logger      *slog.Logger
}

// SeedServiceParams configures SeedService. Limiter and Cache may be nil.
type SeedServiceParams struct {
	Embedder    EmbeddingClient
	Store       VectorStore
	Namespace   string
	Concurrency int
	Limiter     *rate.Limiter
	Cache       *cache.LoaderCache[string, []float32]
	Logger      *slog.Logger
}

// NewSeedService creates a SeedService.
func NewSeedService(p SeedServiceParams) *SeedService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = defaultSeedConcurrency
	}

	return &SeedService{
		embedder:    p.Embedder,
		store:       p.Store,
		namespace:   p.Namespace,
		concurrency: concurrency,
		limiter:     p.Limiter,
		cache:       p.Cache,
		logger:      logger,
	}
}

// Seed embeds every review with a bounded worker pool and upserts all records in one call.
// Entries without a professor or review text are skipped. The first embedding failure cancels the
// run and nothing is upserted.
func (s *SeedService) Seed(ctx context.Context, reviews []models.SeedReview) (SeedResult, error) {
	result := SeedResult{Sentiments: map[string]int{}}

	valid := make([]models.SeedReview, 0, len(reviews))

	for i, r := range reviews {
		if strings.TrimSpace(r.Professor) == "" || strings.TrimSpace(r.Review) == "" {
			s.logger.Warn("seed: skipping entry without professor or review", "index", i)

			result.Skipped++

			continue
		}

		valid = append(valid, r)
	}

	if len(valid) == 0 {
		return result, nil
	}

	records := make([]models.ProfessorRecord, len(valid))

	var cacheHits atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, r := range valid {
		g.Go(func() error {
			vector, hit, err := s.embed(gctx, r.Review)
			if err != nil {
				return fmt.Errorf("embed review of %s: %w", r.Professor, err)
			}

			if hit {
				cacheHits.Add(1)
			}

			records[i] = models.ProfessorRecord{
				ID:        r.Professor,
				Embedding: vector,
				Metadata: models.ProfessorMetadata{
					Review:    r.Review,
					Subject:   r.Subject,
					Stars:     string(r.Stars),
					Sentiment: sentiment.Label(r.Review),
				},
				Document: r.Review,
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	result.CacheHits = int(cacheHits.Load())

	for i := range records {
		result.Sentiments[records[i].Metadata.Sentiment]++
	}

	upserted, err := s.store.Upsert(ctx, s.namespace, records)
	if err != nil {
		return result, fmt.Errorf("upsert seed records: %w", err)
	}

	result.Upserted = upserted

	s.logger.Info("seed: records upserted", "namespace", s.namespace, "upserted", upserted, "skipped", result.Skipped)

	return result, nil
}

// embed returns the embedding for text and whether it came from the cache. Identical texts share
// one call when a cache is set.
func (s *SeedService) embed(ctx context.Context, text string) ([]float32, bool, error) {
	if s.cache == nil {
		vector, err := s.load(ctx, text)

		return vector, false, err
	}

	return s.cache.Get(ctx, text, s.load)
}

func (s *SeedService) load(ctx context.Context, text string) ([]float32, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embedding rate limit: %w", err)
		}
	}

	vector, err := s.embedder.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}

	return vector, nil
}
