package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/rmpassist/rmp-assistant/internal/models"
)

// ErrRecordNotFound is returned when no row exists for the given professor and model.
var ErrRecordNotFound = errors.New("professor vector not found for model")

// ProfessorVectorsRepository stores professor vectors in the professor_vectors table of one index.
// Every row is tagged with the embedding model of the repository; queries only see that model's rows.
type ProfessorVectorsRepository struct {
	db        *pgxpool.Pool
	indexName string
	model     models.EmbeddingModelTag
}

// NewProfessorVectorsRepository creates a repository for indexName whose vectors come from model.
func NewProfessorVectorsRepository(
	db *pgxpool.Pool, indexName string, model models.EmbeddingModelTag,
) *ProfessorVectorsRepository {
	return &ProfessorVectorsRepository{db: db, indexName: indexName, model: model}
}

// Upsert inserts or overwrites each record keyed by (index, namespace, id, model) in one transaction.
// Uses halfvec storage; pgvector-go converts float32 to float16 when encoding.
func (r *ProfessorVectorsRepository) Upsert(
	ctx context.Context, namespace string, records []models.ProfessorRecord,
) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	upserted := 0
	now := time.Now()

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		for i := range records {
			rec := &records[i]

			tag, err := tx.Exec(ctx, `
				INSERT INTO professor_vectors
					(index_name, namespace, id, model, embedding, review, subject, stars, sentiment, document, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
				ON CONFLICT (index_name, namespace, id, model)
				DO UPDATE SET embedding = EXCLUDED.embedding, review = EXCLUDED.review, subject = EXCLUDED.subject,
					stars = EXCLUDED.stars, sentiment = EXCLUDED.sentiment, document = EXCLUDED.document,
					updated_at = EXCLUDED.updated_at`,
				r.indexName, namespace, rec.ID, r.model.String(), pgvector.NewHalfVector(rec.Embedding),
				rec.Metadata.Review, rec.Metadata.Subject, rec.Metadata.Stars, rec.Metadata.Sentiment,
				rec.Document, now,
			)
			if err != nil {
				return fmt.Errorf("upsert professor %q: %w", rec.ID, err)
			}

			upserted += int(tag.RowsAffected())
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("professor vectors upsert: %w", err)
	}

	return upserted, nil
}

// buildNearestQuery returns the SQL and arguments for a top-K cosine query in one namespace.
// Score is 1 - cosine distance.
func buildNearestQuery(
	indexName, namespace, model string, vector []float32, topK int, includeMetadata bool,
) (string, []any, error) {
	if topK <= 0 {
		return "", nil, errors.New("topK must be positive")
	}

	if len(vector) == 0 {
		return "", nil, errors.New("query vector is empty")
	}

	columns := []string{"id", "(1 - (embedding <=> $1)) AS score"}
	if includeMetadata {
		columns = append(columns, "review", "subject", "stars", "sentiment")
	}

	query := fmt.Sprintf(`SELECT %s FROM professor_vectors
		WHERE index_name = $2 AND namespace = $3 AND model = $4
		ORDER BY embedding <=> $1, id
		LIMIT $5`, strings.Join(columns, ", "))

	args := []any{pgvector.NewHalfVector(vector), indexName, namespace, model, topK}

	return query, args, nil
}

// Query returns up to topK records nearest to vector, most similar first.
func (r *ProfessorVectorsRepository) Query(
	ctx context.Context, namespace string, vector []float32, topK int, includeMetadata bool,
) ([]models.QueryMatch, error) {
	query, args, err := buildNearestQuery(r.indexName, namespace, r.model.String(), vector, topK, includeMetadata)
	if err != nil {
		return nil, fmt.Errorf("professor vectors query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("professor vectors query: %w", err)
	}
	defer rows.Close()

	var matches []models.QueryMatch

	for rows.Next() {
		var match models.QueryMatch

		dest := []any{&match.ID, &match.Score}
		if includeMetadata {
			dest = append(dest, &match.Metadata.Review, &match.Metadata.Subject, &match.Metadata.Stars, &match.Metadata.Sentiment)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan professor match: %w", err)
		}

		matches = append(matches, match)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating professor matches: %w", err)
	}

	return matches, nil
}

// ListStaleIDs returns IDs of professors stored under fromModel that have no row for the
// repository's model yet (they need re-embedding).
func (r *ProfessorVectorsRepository) ListStaleIDs(
	ctx context.Context, namespace string, fromModel models.EmbeddingModelTag,
) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT pv.id FROM professor_vectors pv
		WHERE pv.index_name = $1 AND pv.namespace = $2 AND pv.model = $3
		  AND trim(pv.document) != ''
		  AND NOT EXISTS (
		    SELECT 1 FROM professor_vectors cur
		    WHERE cur.index_name = pv.index_name AND cur.namespace = pv.namespace
		      AND cur.id = pv.id AND cur.model = $4
		  )
		ORDER BY pv.id`,
		r.indexName, namespace, fromModel.String(), r.model.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list stale professor ids: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan professor id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stale ids: %w", err)
	}

	return ids, nil
}

// GetRecord returns the metadata and document stored for id under model (the embedding is not loaded).
// Returns ErrRecordNotFound when no row exists.
func (r *ProfessorVectorsRepository) GetRecord(
	ctx context.Context, namespace, id string, model models.EmbeddingModelTag,
) (*models.ProfessorRecord, error) {
	rec := models.ProfessorRecord{ID: id}

	err := r.db.QueryRow(ctx, `
		SELECT review, subject, stars, sentiment, document FROM professor_vectors
		WHERE index_name = $1 AND namespace = $2 AND id = $3 AND model = $4`,
		r.indexName, namespace, id, model.String(),
	).Scan(&rec.Metadata.Review, &rec.Metadata.Subject, &rec.Metadata.Stars, &rec.Metadata.Sentiment, &rec.Document)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}

		return nil, fmt.Errorf("get professor record: %w", err)
	}

	return &rec, nil
}

// ModelTag returns the embedding model this repository reads and writes.
func (r *ProfessorVectorsRepository) ModelTag() models.EmbeddingModelTag { return r.model }
