// Package memory provides an in-process vector store with brute-force cosine search, for local
// development and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rmpassist/rmp-assistant/internal/models"
	"github.com/rmpassist/rmp-assistant/pkg/embeddings"
)

// ErrInvalidTopK is returned when Query is called with a non-positive topK.
var ErrInvalidTopK = errors.New("memory store: topK must be positive")

// Store keeps records per namespace, keyed by professor ID. It lives for one process, so every
// record shares the process's embedding model.
type Store struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]models.ProfessorRecord
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{namespaces: make(map[string]map[string]models.ProfessorRecord)}
}

// Upsert inserts or overwrites each record by ID.
func (s *Store) Upsert(_ context.Context, namespace string, recs []models.ProfessorRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]models.ProfessorRecord)
		s.namespaces[namespace] = ns
	}

	for _, rec := range recs {
		rec.Embedding = append([]float32(nil), rec.Embedding...)
		ns[rec.ID] = rec
	}

	return len(recs), nil
}

// Query returns up to topK records most similar to vector, highest score first. Ties are broken
// by ID so results are stable.
func (s *Store) Query(
	_ context.Context, namespace string, vector []float32, topK int, includeMetadata bool,
) ([]models.QueryMatch, error) {
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []models.QueryMatch

	for _, rec := range s.namespaces[namespace] {
		match := models.QueryMatch{
			ID:    rec.ID,
			Score: embeddings.CosineSimilarity(vector, rec.Embedding),
		}
		if includeMetadata {
			match.Metadata = rec.Metadata
		}

		matches = append(matches, match)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}

		return matches[i].ID < matches[j].ID
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}

	return matches, nil
}
