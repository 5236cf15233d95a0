package service

import (
	"context"
	"errors"
	"testing"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmpassist/rmp-assistant/internal/models"
)

var (
	oldModel = models.NewEmbeddingModelTag("openai", "text-embedding-ada-002", 1536)
	newModel = models.NewEmbeddingModelTag("openai", "text-embedding-3-small", 1536)
)

type mockStaleLister struct {
	listFunc func(ctx context.Context, namespace string, fromModel models.EmbeddingModelTag) ([]string, error)
}

func (m *mockStaleLister) ListStaleIDs(ctx context.Context, namespace string, fromModel models.EmbeddingModelTag) ([]string, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, namespace, fromModel)
	}

	return nil, nil
}

type mockJobInserter struct {
	args       []river.JobArgs
	opts       []*river.InsertOpts
	insertFunc func(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

func (m *mockJobInserter) Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error) {
	m.args = append(m.args, args)
	m.opts = append(m.opts, opts)

	if m.insertFunc != nil {
		return m.insertFunc(ctx, args, opts)
	}

	return &rivertype.JobInsertResult{}, nil
}

func newTestReembedService(lister StaleRecordLister, inserter JobInserter) *ReembedService {
	return NewReembedService(ReembedServiceParams{
		Lister:      lister,
		Inserter:    inserter,
		Namespace:   "ns1",
		ToModel:     newModel,
		MaxAttempts: 3,
	})
}

func TestReembedService_EnqueueStale(t *testing.T) {
	t.Run("enqueues one job per stale professor", func(t *testing.T) {
		var gotNamespace string

		var gotFrom models.EmbeddingModelTag

		lister := &mockStaleLister{listFunc: func(_ context.Context, namespace string, from models.EmbeddingModelTag) ([]string, error) {
			gotNamespace, gotFrom = namespace, from

			return []string{"Dr. A", "Dr. B"}, nil
		}}
		inserter := &mockJobInserter{}

		result, err := newTestReembedService(lister, inserter).EnqueueStale(context.Background(), oldModel)
		require.NoError(t, err)

		assert.Equal(t, ReembedResult{Found: 2, Enqueued: 2}, result)
		assert.Equal(t, "ns1", gotNamespace)
		assert.Equal(t, oldModel, gotFrom)

		require.Len(t, inserter.args, 2)
		assert.Equal(t, ReembedArgs{
			Namespace: "ns1", ProfessorID: "Dr. A", FromModel: oldModel.String(), ToModel: newModel.String(),
		}, inserter.args[0])
		assert.Equal(t, ReembedQueueName, inserter.opts[0].Queue)
		assert.Equal(t, 3, inserter.opts[0].MaxAttempts)
		assert.True(t, inserter.opts[0].UniqueOpts.ByArgs)
	})

	t.Run("counts duplicates skipped by uniqueness", func(t *testing.T) {
		lister := &mockStaleLister{listFunc: func(context.Context, string, models.EmbeddingModelTag) ([]string, error) {
			return []string{"Dr. A", "Dr. B"}, nil
		}}
		inserter := &mockJobInserter{insertFunc: func(_ context.Context, args river.JobArgs, _ *river.InsertOpts) (*rivertype.JobInsertResult, error) {
			return &rivertype.JobInsertResult{UniqueSkippedAsDuplicate: args.(ReembedArgs).ProfessorID == "Dr. A"}, nil
		}}

		result, err := newTestReembedService(lister, inserter).EnqueueStale(context.Background(), oldModel)
		require.NoError(t, err)
		assert.Equal(t, ReembedResult{Found: 2, Enqueued: 1, Duplicates: 1}, result)
	})

	t.Run("same model is rejected", func(t *testing.T) {
		inserter := &mockJobInserter{}

		_, err := newTestReembedService(&mockStaleLister{}, inserter).EnqueueStale(context.Background(), newModel)
		require.ErrorIs(t, err, ErrSameModel)
		assert.Empty(t, inserter.args)
	})

	t.Run("list failure", func(t *testing.T) {
		lister := &mockStaleLister{listFunc: func(context.Context, string, models.EmbeddingModelTag) ([]string, error) {
			return nil, errors.New("db down")
		}}

		_, err := newTestReembedService(lister, &mockJobInserter{}).EnqueueStale(context.Background(), oldModel)
		assert.ErrorContains(t, err, "list stale records")
	})

	t.Run("insert failure stops the run", func(t *testing.T) {
		lister := &mockStaleLister{listFunc: func(context.Context, string, models.EmbeddingModelTag) ([]string, error) {
			return []string{"Dr. A", "Dr. B"}, nil
		}}
		inserter := &mockJobInserter{insertFunc: func(context.Context, river.JobArgs, *river.InsertOpts) (*rivertype.JobInsertResult, error) {
			return nil, errors.New("insert failed")
		}}

		result, err := newTestReembedService(lister, inserter).EnqueueStale(context.Background(), oldModel)
		require.Error(t, err)
		assert.Zero(t, result.Enqueued)
		assert.Len(t, inserter.args, 1)
	})
}
