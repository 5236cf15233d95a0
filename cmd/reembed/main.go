// reembed enqueues River jobs that move professor records stored under an older embedding model
// into the currently configured one. Workers in the API process (REEMBED_WORKERS > 0) run the jobs.
// Setting REEMBED_FROM_MODEL on the API does the same enqueue at startup.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/rmpassist/rmp-assistant/internal/config"
	"github.com/rmpassist/rmp-assistant/internal/models"
	"github.com/rmpassist/rmp-assistant/internal/providers"
	"github.com/rmpassist/rmp-assistant/internal/service"
	"github.com/rmpassist/rmp-assistant/pkg/database"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

var errFromRequired = errors.New("--from is required (e.g. openai/text-embedding-ada-002@1536)")

func main() {
	os.Exit(run())
}

func run() int {
	from := flag.String("from", "", "model tag the records are currently stored under")
	flag.Parse()

	if *from == "" {
		color.Red("%v", errFromRequired)
		flag.Usage()

		return exitFailure
	}

	cfg, err := config.LoadBatch()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return exitFailure
	}

	if cfg.VectorStore != config.VectorStorePgvector {
		color.Red("Re-embedding requires VECTOR_STORE=pgvector (got %q)", cfg.VectorStore)

		return exitFailure
	}

	ctx := context.Background()

	embedder, err := providers.NewEmbedder(ctx, cfg)
	if err != nil {
		slog.Error("Failed to create embedding client", "error", err)

		return exitFailure
	}

	store, err := providers.OpenStore(ctx, cfg, embedder.ModelTag())
	if err != nil {
		slog.Error("Failed to open vector store", "error", err)

		return exitFailure
	}
	defer store.Close()

	if err := database.MigrateRiver(ctx, store.Pool); err != nil {
		slog.Error("Failed to migrate River schema", "error", err)

		return exitFailure
	}

	riverClient, err := river.NewClient(riverpgxv5.New(store.Pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			service.ReembedQueueName: {MaxWorkers: 1},
		},
		Workers: river.NewWorkers(),
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)

		return exitFailure
	}

	reembed := service.NewReembedService(service.ReembedServiceParams{
		Lister: store.Vectors,
		Inserter: service.NewRetryingJobInserter(riverClient, service.RetryingJobInserterConfig{
			MaxRetries:     3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
		}),
		Namespace:   cfg.Pipeline.Namespace,
		ToModel:     embedder.ModelTag(),
		MaxAttempts: cfg.ReembedMaxAttempts,
	})

	result, err := reembed.EnqueueStale(ctx, models.EmbeddingModelTag(*from))
	if err != nil {
		color.Red("Enqueue failed: %v", err)

		return exitFailure
	}

	color.Cyan("Re-embedding %s -> %s in %s/%s", *from, embedder.ModelTag(), cfg.Pipeline.IndexName, cfg.Pipeline.Namespace)
	color.Green("Stale records: %d, jobs enqueued: %d, already pending: %d",
		result.Found, result.Enqueued, result.Duplicates)

	return exitSuccess
}
