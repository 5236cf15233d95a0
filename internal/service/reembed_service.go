package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/rmpassist/rmp-assistant/internal/models"
	"github.com/rmpassist/rmp-assistant/internal/observability"
)

// ErrSameModel is returned when asked to re-embed records into the model they already use.
var ErrSameModel = errors.New("source and target embedding models are the same")

// StaleRecordLister lists professors stored under another model and missing under the current one.
type StaleRecordLister interface {
	ListStaleIDs(ctx context.Context, namespace string, fromModel models.EmbeddingModelTag) ([]string, error)
}

// ReembedResult summarizes an enqueue run.
type ReembedResult struct {
	Found      int
	Enqueued   int
	Duplicates int
}

// ReembedService enqueues re-embedding jobs for records stored under an older embedding model.
type ReembedService struct {
	lister      StaleRecordLister
	inserter    JobInserter
	namespace   string
	toModel     models.EmbeddingModelTag
	maxAttempts int
	metrics     observability.ReembedMetrics
	logger      *slog.Logger
}

// ReembedServiceParams configures ReembedService. Metrics may be nil.
type ReembedServiceParams struct {
	Lister      StaleRecordLister
	Inserter    JobInserter
	Namespace   string
	ToModel     models.EmbeddingModelTag
	MaxAttempts int
	Metrics     observability.ReembedMetrics
	Logger      *slog.Logger
}

// NewReembedService creates a ReembedService.
func NewReembedService(p ReembedServiceParams) *ReembedService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ReembedService{
		lister:      p.Lister,
		inserter:    p.Inserter,
		namespace:   p.Namespace,
		toModel:     p.ToModel,
		maxAttempts: p.MaxAttempts,
		metrics:     p.Metrics,
		logger:      logger,
	}
}

// EnqueueStale enqueues one job per professor stored under fromModel that has no record under the
// current model. Jobs already pending for the same professor and target model are skipped.
func (s *ReembedService) EnqueueStale(ctx context.Context, fromModel models.EmbeddingModelTag) (ReembedResult, error) {
	var result ReembedResult

	if fromModel == s.toModel {
		return result, ErrSameModel
	}

	ids, err := s.lister.ListStaleIDs(ctx, s.namespace, fromModel)
	if err != nil {
		return result, fmt.Errorf("list stale records: %w", err)
	}

	result.Found = len(ids)

	opts := &river.InsertOpts{
		Queue:       ReembedQueueName,
		MaxAttempts: s.maxAttempts,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
			// River requires JobStatePending whenever ByState is set.
			ByState: []rivertype.JobState{
				rivertype.JobStatePending,
				rivertype.JobStateAvailable,
				rivertype.JobStateRunning,
				rivertype.JobStateRetryable,
				rivertype.JobStateScheduled,
			},
		},
	}

	for _, id := range ids {
		res, err := s.inserter.Insert(ctx, ReembedArgs{
			Namespace:   s.namespace,
			ProfessorID: id,
			FromModel:   fromModel.String(),
			ToModel:     s.toModel.String(),
		}, opts)
		if err != nil {
			return result, fmt.Errorf("enqueue reembed job for %s: %w", id, err)
		}

		if res != nil && res.UniqueSkippedAsDuplicate {
			result.Duplicates++

			continue
		}

		result.Enqueued++
	}

	if s.metrics != nil && result.Enqueued > 0 {
		s.metrics.RecordJobsEnqueued(ctx, int64(result.Enqueued))
	}

	s.logger.Info("reembed: jobs enqueued",
		"namespace", s.namespace, "from_model", fromModel, "to_model", s.toModel,
		"found", result.Found, "enqueued", result.Enqueued, "duplicates", result.Duplicates)

	return result, nil
}
