// Package workers provides River job workers (professor re-embedding).
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/riverqueue/river"
	"golang.org/x/time/rate"

	"github.com/rmpassist/rmp-assistant/internal/models"
	"github.com/rmpassist/rmp-assistant/internal/observability"
	"github.com/rmpassist/rmp-assistant/internal/repository"
	"github.com/rmpassist/rmp-assistant/internal/service"
)

// Re-embedding outcomes recorded per job.
const (
	statusSuccess     = "success"
	statusRetry       = "retry"
	statusFailedFinal = "failed_final"
	statusNotFound    = "not_found"
)

// ErrModelMismatch is returned when a job targets a model other than the worker's embedder.
var ErrModelMismatch = errors.New("job target model does not match worker embedding model")

// reembedStore is the minimal store interface needed by the worker.
type reembedStore interface {
	GetRecord(ctx context.Context, namespace, id string, model models.EmbeddingModelTag) (*models.ProfessorRecord, error)
	Upsert(ctx context.Context, namespace string, records []models.ProfessorRecord) (int, error)
	ModelTag() models.EmbeddingModelTag
}

// ReembedWorker re-embeds one professor record into the current embedding model.
type ReembedWorker struct {
	river.WorkerDefaults[service.ReembedArgs]

	store    reembedStore
	embedder service.EmbeddingClient
	limiter  *rate.Limiter
	metrics  observability.ReembedMetrics
	logger   *slog.Logger
}

// ReembedWorkerParams configures ReembedWorker. Limiter and Metrics may be nil.
type ReembedWorkerParams struct {
	Store    reembedStore
	Embedder service.EmbeddingClient
	Limiter  *rate.Limiter
	Metrics  observability.ReembedMetrics
	Logger   *slog.Logger
}

// NewReembedWorker creates a worker that loads the old record, embeds its document with the
// current model and stores it under the current model tag.
func NewReembedWorker(p ReembedWorkerParams) *ReembedWorker {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ReembedWorker{
		store:    p.Store,
		embedder: p.Embedder,
		limiter:  p.Limiter,
		metrics:  p.Metrics,
		logger:   logger,
	}
}

const reembedTimeout = 30 * time.Second

// Timeout limits how long a single re-embedding job can run.
func (w *ReembedWorker) Timeout(*river.Job[service.ReembedArgs]) time.Duration {
	return reembedTimeout
}

// Work re-embeds the professor named by the job. Missing source records and mismatched target
// models are not retried; embedding failures are retried until the last attempt.
func (w *ReembedWorker) Work(ctx context.Context, job *river.Job[service.ReembedArgs]) error {
	args := job.Args
	start := time.Now()
	log := w.logger.With("namespace", args.Namespace, "professor_id", args.ProfessorID, "to_model", args.ToModel)

	if models.EmbeddingModelTag(args.ToModel) != w.store.ModelTag() {
		w.recordOutcome(ctx, statusFailedFinal, start)
		log.Error("reembed: target model mismatch", "worker_model", w.store.ModelTag())

		return river.JobCancel(ErrModelMismatch)
	}

	record, err := w.store.GetRecord(ctx, args.Namespace, args.ProfessorID, models.EmbeddingModelTag(args.FromModel))
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			w.recordOutcome(ctx, statusNotFound, start)
			log.Warn("reembed: source record not found", "from_model", args.FromModel)

			return nil // no retry when record not found
		}

		return w.failAttempt(ctx, job, start, fmt.Errorf("get source record: %w", err))
	}

	document := strings.TrimSpace(record.Document)
	if document == "" {
		w.recordOutcome(ctx, statusFailedFinal, start)
		log.Error("reembed: source record has no document")

		return nil
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return w.failAttempt(ctx, job, start, fmt.Errorf("rate limit wait: %w", err))
		}
	}

	embedding, err := w.embedder.CreateEmbedding(ctx, document)
	if err != nil {
		return w.failAttempt(ctx, job, start, fmt.Errorf("create embedding: %w", err))
	}

	record.Embedding = embedding
	record.Document = document

	if _, err := w.store.Upsert(ctx, args.Namespace, []models.ProfessorRecord{*record}); err != nil {
		return w.failAttempt(ctx, job, start, fmt.Errorf("upsert re-embedded record: %w", err))
	}

	w.recordOutcome(ctx, statusSuccess, start)
	log.Info("reembed: stored")

	return nil
}

// failAttempt records a retry, or a final failure on the last attempt (which is not retried).
func (w *ReembedWorker) failAttempt(ctx context.Context, job *river.Job[service.ReembedArgs], start time.Time, err error) error {
	if job.Attempt >= job.MaxAttempts {
		w.recordOutcome(ctx, statusFailedFinal, start)
		w.logger.Error("reembed: failed (final attempt)",
			"professor_id", job.Args.ProfessorID,
			"attempt", job.Attempt,
			"error", err,
		)

		return nil
	}

	w.recordOutcome(ctx, statusRetry, start)
	w.logger.Warn("reembed: failed, will retry",
		"professor_id", job.Args.ProfessorID,
		"attempt", job.Attempt,
		"error", err,
	)

	return err
}

func (w *ReembedWorker) recordOutcome(ctx context.Context, status string, start time.Time) {
	if w.metrics != nil {
		w.metrics.RecordOutcome(ctx, status, time.Since(start))
	}
}
