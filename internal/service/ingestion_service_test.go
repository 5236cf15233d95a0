package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmpassist/rmp-assistant/internal/apperrors"
	"github.com/rmpassist/rmp-assistant/internal/embeddings"
	"github.com/rmpassist/rmp-assistant/internal/models"
	"github.com/rmpassist/rmp-assistant/internal/vectorstore/memory"
)

const professorURL = "https://www.ratemyprofessors.com/professor/12345"

func newTestIngestionService(scraper PageScraper, emb EmbeddingClient, store VectorStore) *IngestionService {
	return NewIngestionService(IngestionServiceParams{
		Scraper:   scraper,
		Embedder:  emb,
		Store:     store,
		Domain:    "ratemyprofessors.com",
		Namespace: "ns1",
	})
}

func janePage(reviews ...string) *models.ProfessorPage {
	return &models.ProfessorPage{Name: "Jane Doe", Subject: "Physics", Stars: "4.5", Reviews: reviews}
}

func TestIngestionService_SubmitURL(t *testing.T) {
	t.Run("embeds joined reviews once and upserts one record", func(t *testing.T) {
		scraper := &mockScraper{scrapeFunc: func(context.Context, string) (*models.ProfessorPage, error) {
			return janePage("Clear lectures.", "Fair exams."), nil
		}}
		emb := &mockEmbeddingClient{}
		store := &mockVectorStore{}

		count, err := newTestIngestionService(scraper, emb, store).SubmitURL(context.Background(), professorURL)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		assert.Equal(t, []string{professorURL}, scraper.calls)
		assert.Equal(t, []string{"Clear lectures.\nFair exams."}, emb.inputs)

		require.Len(t, store.upserts, 1)
		assert.Equal(t, []string{"ns1"}, store.upsertNames)
		require.Len(t, store.upserts[0], 1)

		rec := store.upserts[0][0]
		assert.Equal(t, "Jane Doe", rec.ID)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, rec.Embedding)
		assert.Equal(t, models.ProfessorMetadata{Review: "Clear lectures. Fair exams.", Subject: "Physics", Stars: "4.5"}, rec.Metadata)
		assert.Equal(t, "Clear lectures.\nFair exams.", rec.Document)
	})

	t.Run("submitting the same professor twice keeps one record with the second scrape", func(t *testing.T) {
		pages := []*models.ProfessorPage{janePage("Old review."), janePage("New review.")}
		scraper := &mockScraper{scrapeFunc: func(context.Context, string) (*models.ProfessorPage, error) {
			page := pages[0]
			pages = pages[1:]

			return page, nil
		}}
		emb := embeddings.NewMockClientWithDimensions(8)
		store := memory.NewStore()
		svc := newTestIngestionService(scraper, emb, store)

		for range 2 {
			count, err := svc.SubmitURL(context.Background(), professorURL)
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		}

		vec, err := emb.CreateEmbedding(context.Background(), "New review.")
		require.NoError(t, err)

		matches, err := store.Query(context.Background(), "ns1", vec, 5, true)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "New review.", matches[0].Metadata.Review)
	})
}

func TestIngestionService_SubmitURL_InvalidURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{name: "empty", url: ""},
		{name: "blank", url: "   "},
		{name: "other domain", url: "https://example.com/professor/1"},
		{name: "domain without scheme", url: "ratemyprofessors.com/professor/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scraper := &mockScraper{}
			emb := &mockEmbeddingClient{}
			store := &mockVectorStore{}

			count, err := newTestIngestionService(scraper, emb, store).SubmitURL(context.Background(), tt.url)

			assert.Zero(t, count)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Equal(t, "Invalid URL", err.Error())
			assert.Empty(t, scraper.calls, "no fetch attempted")
			assert.Zero(t, emb.calls())
			assert.Empty(t, store.upserts)
		})
	}
}

func TestIngestionService_SubmitURL_ExtractionFailure(t *testing.T) {
	tests := []struct {
		name string
		page *models.ProfessorPage
	}{
		{name: "zero reviews", page: janePage()},
		{name: "missing name", page: &models.ProfessorPage{Reviews: []string{"Great"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scraper := &mockScraper{scrapeFunc: func(context.Context, string) (*models.ProfessorPage, error) {
				return tt.page, nil
			}}
			emb := &mockEmbeddingClient{}
			store := &mockVectorStore{}

			_, err := newTestIngestionService(scraper, emb, store).SubmitURL(context.Background(), professorURL)

			assert.ErrorIs(t, err, apperrors.ErrExtraction)
			assert.Zero(t, emb.calls())
			assert.Empty(t, store.upserts)
		})
	}
}

func TestIngestionService_SubmitURL_UpstreamFailures(t *testing.T) {
	boom := errors.New("boom")

	t.Run("fetch failure keeps fetch stage", func(t *testing.T) {
		scraper := &mockScraper{scrapeFunc: func(context.Context, string) (*models.ProfessorPage, error) {
			return nil, apperrors.NewUpstreamError(apperrors.StageFetch, boom)
		}}
		emb := &mockEmbeddingClient{}

		_, err := newTestIngestionService(scraper, emb, &mockVectorStore{}).SubmitURL(context.Background(), professorURL)

		assert.ErrorIs(t, err, apperrors.ErrFetch)
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, emb.calls())
	})

	t.Run("plain scraper error is treated as fetch failure", func(t *testing.T) {
		scraper := &mockScraper{scrapeFunc: func(context.Context, string) (*models.ProfessorPage, error) {
			return nil, boom
		}}

		_, err := newTestIngestionService(scraper, &mockEmbeddingClient{}, &mockVectorStore{}).SubmitURL(context.Background(), professorURL)

		assert.ErrorIs(t, err, apperrors.ErrFetch)
	})

	t.Run("embedding failure", func(t *testing.T) {
		scraper := &mockScraper{scrapeFunc: func(context.Context, string) (*models.ProfessorPage, error) {
			return janePage("ok"), nil
		}}
		emb := &mockEmbeddingClient{createFunc: func(context.Context, string) ([]float32, error) { return nil, boom }}
		store := &mockVectorStore{}

		_, err := newTestIngestionService(scraper, emb, store).SubmitURL(context.Background(), professorURL)

		assert.Equal(t, apperrors.StageEmbed, apperrors.StageOf(err))
		assert.Empty(t, store.upserts)
	})

	t.Run("upsert failure", func(t *testing.T) {
		scraper := &mockScraper{scrapeFunc: func(context.Context, string) (*models.ProfessorPage, error) {
			return janePage("ok"), nil
		}}
		store := &mockVectorStore{upsertFunc: func(context.Context, string, []models.ProfessorRecord) (int, error) {
			return 0, boom
		}}

		count, err := newTestIngestionService(scraper, &mockEmbeddingClient{}, store).SubmitURL(context.Background(), professorURL)

		assert.Zero(t, count)
		assert.Equal(t, apperrors.StageUpsert, apperrors.StageOf(err))
		assert.NotErrorIs(t, err, apperrors.ErrFetch)
	})
}

func TestIngestionOutcome(t *testing.T) {
	assert.Equal(t, "success", ingestionOutcome(nil))
	assert.Equal(t, "invalid_input", ingestionOutcome(apperrors.NewInvalidInputError("url", "Invalid URL")))
	assert.Equal(t, "extraction_failed", ingestionOutcome(apperrors.NewExtractionError("u", "")))
	assert.Equal(t, "upstream_error", ingestionOutcome(apperrors.NewUpstreamError(apperrors.StageEmbed, errors.New("x"))))
}
