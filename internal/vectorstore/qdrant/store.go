// Package qdrant implements the professor vector store on a Qdrant collection.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/rmpassist/rmp-assistant/internal/models"
)

// Payload keys stored on every point.
const (
	payloadProfessor = "professor"
	payloadNamespace = "namespace"
	payloadModel     = "model"
	payloadReview    = "review"
	payloadSubject   = "subject"
	payloadStars     = "stars"
	payloadSentiment = "sentiment"
	payloadDocument  = "document"

	defaultGRPCPort = 6334
)

// pointNamespace seeds the deterministic point IDs.
var pointNamespace = uuid.MustParse("3b8f0f0e-6a52-4f0c-9a57-5d1b6c0f2e11")

// ErrInvalidTopK is returned when Query is called with a non-positive topK.
var ErrInvalidTopK = errors.New("qdrant store: topK must be positive")

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the Qdrant gRPC address (e.g. "http://localhost:6334" or "https://xyz.cloud.qdrant.io:6334").
	URL string
	// APIKey is optional.
	APIKey string
	// Collection is the collection holding the index (the pipeline index name).
	Collection string
	// Dimensions is the vector size used when the collection is created.
	Dimensions int
	// Model tags every point written and filters every query.
	Model models.EmbeddingModelTag
}

// Store implements the vector store on one Qdrant collection.
type Store struct {
	client     *qdrant.Client
	collection string
	dimensions int
	model      models.EmbeddingModelTag
}

// New connects to Qdrant.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant url is required")
	}

	if cfg.Collection == "" {
		return nil, errors.New("qdrant collection is required")
	}

	host, port, useTLS, err := parseAddress(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Store{
		client:     client,
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
		model:      cfg.Model,
	}, nil
}

// parseAddress splits a Qdrant URL into host, gRPC port and TLS flag. URLs without a scheme use TLS.
func parseAddress(raw string) (string, int, bool, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	if u.Hostname() == "" {
		return "", 0, false, fmt.Errorf("qdrant url %q has no host", raw)
	}

	port := defaultGRPCPort
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port: %w", err)
		}
	}

	return u.Hostname(), port, u.Scheme == "https", nil
}

// EnsureCollection creates the collection with cosine distance when it does not exist.
func (s *Store) EnsureCollection(ctx context.Context) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return false, fmt.Errorf("check qdrant collection: %w", err)
	}

	if exists {
		return false, nil
	}

	if s.dimensions <= 0 {
		return false, errors.New("qdrant collection dimensions must be positive")
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return false, fmt.Errorf("create qdrant collection %s: %w", s.collection, err)
	}

	return true, nil
}

// pointID derives a stable point ID so re-upserting a professor overwrites its point.
func pointID(namespace, id string, model models.EmbeddingModelTag) string {
	return uuid.NewSHA1(pointNamespace, []byte(namespace+"\x00"+id+"\x00"+model.String())).String()
}

func recordPayload(namespace string, model models.EmbeddingModelTag, rec *models.ProfessorRecord) map[string]*qdrant.Value {
	return qdrant.NewValueMap(map[string]any{
		payloadProfessor: rec.ID,
		payloadNamespace: namespace,
		payloadModel:     model.String(),
		payloadReview:    rec.Metadata.Review,
		payloadSubject:   rec.Metadata.Subject,
		payloadStars:     rec.Metadata.Stars,
		payloadSentiment: rec.Metadata.Sentiment,
		payloadDocument:  rec.Document,
	})
}

// Upsert writes one point per record and waits for the write to be applied.
func (s *Store) Upsert(ctx context.Context, namespace string, records []models.ProfessorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for i := range records {
		rec := &records[i]
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(namespace, rec.ID, s.model)),
			Vectors: qdrant.NewVectors(rec.Embedding...),
			Payload: recordPayload(namespace, s.model, rec),
		})
	}

	wait := true

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant upsert: %w", err)
	}

	return len(points), nil
}

func namespaceFilter(namespace string, model models.EmbeddingModelTag) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(payloadNamespace, namespace),
			qdrant.NewMatch(payloadModel, model.String()),
		},
	}
}

// Query returns up to topK points nearest to vector within namespace, most similar first.
func (s *Store) Query(
	ctx context.Context, namespace string, vector []float32, topK int, includeMetadata bool,
) ([]models.QueryMatch, error) {
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}

	limit := uint64(topK)

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter:         namespaceFilter(namespace, s.model),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	matches := make([]models.QueryMatch, 0, len(points))
	for _, point := range points {
		matches = append(matches, matchFromPayload(point.GetPayload(), float64(point.GetScore()), includeMetadata))
	}

	return matches, nil
}

func matchFromPayload(payload map[string]*qdrant.Value, score float64, includeMetadata bool) models.QueryMatch {
	match := models.QueryMatch{
		ID:    payload[payloadProfessor].GetStringValue(),
		Score: score,
	}

	if includeMetadata {
		match.Metadata = models.ProfessorMetadata{
			Review:    payload[payloadReview].GetStringValue(),
			Subject:   payload[payloadSubject].GetStringValue(),
			Stars:     payload[payloadStars].GetStringValue(),
			Sentiment: payload[payloadSentiment].GetStringValue(),
		}
	}

	return match
}

// ModelTag returns the embedding model this store reads and writes.
func (s *Store) ModelTag() models.EmbeddingModelTag { return s.model }

// HealthCheck reports whether the Qdrant server answers.
func (s *Store) HealthCheck(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}

	return nil
}

// Close releases the gRPC connection.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close qdrant client: %w", err)
	}

	return nil
}
