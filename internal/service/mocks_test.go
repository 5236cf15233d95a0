package service

import (
	"context"
	"sync"

	"github.com/rmpassist/rmp-assistant/internal/models"
)

type mockEmbeddingClient struct {
	mu         sync.Mutex
	inputs     []string
	createFunc func(ctx context.Context, input string) ([]float32, error)
}

func (m *mockEmbeddingClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, input)
	m.mu.Unlock()

	if m.createFunc != nil {
		return m.createFunc(ctx, input)
	}

	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbeddingClient) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.inputs)
}

type queryCall struct {
	namespace       string
	vector          []float32
	topK            int
	includeMetadata bool
}

type mockVectorStore struct {
	mu          sync.Mutex
	queries     []queryCall
	upserts     [][]models.ProfessorRecord
	queryFunc   func(ctx context.Context, namespace string, vector []float32, topK int) ([]models.QueryMatch, error)
	upsertFunc  func(ctx context.Context, namespace string, records []models.ProfessorRecord) (int, error)
	upsertNames []string
}

func (m *mockVectorStore) Upsert(ctx context.Context, namespace string, records []models.ProfessorRecord) (int, error) {
	m.mu.Lock()
	m.upserts = append(m.upserts, records)
	m.upsertNames = append(m.upsertNames, namespace)
	m.mu.Unlock()

	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, namespace, records)
	}

	return len(records), nil
}

func (m *mockVectorStore) Query(
	ctx context.Context, namespace string, vector []float32, topK int, includeMetadata bool,
) ([]models.QueryMatch, error) {
	m.mu.Lock()
	m.queries = append(m.queries, queryCall{namespace: namespace, vector: vector, topK: topK, includeMetadata: includeMetadata})
	m.mu.Unlock()

	if m.queryFunc != nil {
		return m.queryFunc(ctx, namespace, vector, topK)
	}

	return nil, nil
}

type mockGenerationClient struct {
	messages   [][]models.Message
	streamFunc func(ctx context.Context, messages []models.Message) (models.FragmentStream, error)
}

func (m *mockGenerationClient) StreamCompletion(ctx context.Context, messages []models.Message) (models.FragmentStream, error) {
	m.messages = append(m.messages, messages)

	if m.streamFunc != nil {
		return m.streamFunc(ctx, messages)
	}

	return &fakeStream{}, nil
}

// fakeStream yields fragments, then reports err (nil for a clean end).
type fakeStream struct {
	fragments []string
	err       error
	pos       int
	current   string
	closes    int
}

func (f *fakeStream) Next() bool {
	if f.closes > 0 || f.pos >= len(f.fragments) {
		return false
	}

	f.current = f.fragments[f.pos]
	f.pos++

	return true
}

func (f *fakeStream) Current() string { return f.current }

func (f *fakeStream) Err() error {
	if f.pos >= len(f.fragments) {
		return f.err
	}

	return nil
}

func (f *fakeStream) Close() error {
	f.closes++

	return nil
}

type mockScraper struct {
	calls      []string
	scrapeFunc func(ctx context.Context, pageURL string) (*models.ProfessorPage, error)
}

func (m *mockScraper) Scrape(ctx context.Context, pageURL string) (*models.ProfessorPage, error) {
	m.calls = append(m.calls, pageURL)

	if m.scrapeFunc != nil {
		return m.scrapeFunc(ctx, pageURL)
	}

	return &models.ProfessorPage{}, nil
}
