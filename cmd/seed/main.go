// seed bulk-loads reviews.json into the configured vector store: one record per review, keyed
// by professor name, labelled with the review's sentiment.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/time/rate"

	"github.com/rmpassist/rmp-assistant/internal/config"
	"github.com/rmpassist/rmp-assistant/internal/providers"
	"github.com/rmpassist/rmp-assistant/internal/service"
	"github.com/rmpassist/rmp-assistant/pkg/cache"
)

const (
	exitSuccess = 0
	exitFailure = 1

	embeddingCacheSize = 4096
)

func main() {
	os.Exit(run())
}

func run() int {
	path := flag.String("file", "reviews.json", "path to the reviews JSON file")
	flag.Parse()

	cfg, err := config.LoadBatch()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(*path)
	if err != nil {
		color.Red("Failed to open %s: %v", *path, err)

		return exitFailure
	}
	defer f.Close()

	reviews, err := service.ReadSeedReviews(f)
	if err != nil {
		color.Red("Failed to read %s: %v", *path, err)

		return exitFailure
	}

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

	embeddingCache, err := cache.NewVectorCache(embeddingCacheSize)
	if err != nil {
		slog.Error("Failed to create embedding cache", "error", err)

		return exitFailure
	}

	seeder := service.NewSeedService(service.SeedServiceParams{
		Embedder:    embedder,
		Store:       store,
		Namespace:   cfg.Pipeline.Namespace,
		Concurrency: cfg.SeedConcurrency,
		Limiter:     rate.NewLimiter(rate.Limit(cfg.EmbeddingRateLimit), 1),
		Cache:       embeddingCache,
	})

	color.Cyan("Seeding %d reviews into %s/%s (%s, model %s)",
		len(reviews), cfg.Pipeline.IndexName, cfg.Pipeline.Namespace, cfg.VectorStore, embedder.ModelTag())

	result, err := seeder.Seed(ctx, reviews)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			color.Yellow("Seeding interrupted; nothing was stored")
		} else {
			color.Red("Seeding failed: %v", err)
		}

		return exitFailure
	}

	color.Green("Upserted count: %d", result.Upserted)

	if result.CacheHits > 0 {
		color.White("Reviews sharing an earlier embedding: %d", result.CacheHits)
	}

	if result.Skipped > 0 {
		color.Yellow("Skipped entries without professor or review: %d", result.Skipped)
	}

	labels := make([]string, 0, len(result.Sentiments))
	for label := range result.Sentiments {
		labels = append(labels, label)
	}

	sort.Strings(labels)

	for _, label := range labels {
		color.White("  %-8s %d", label, result.Sentiments[label])
	}

	return exitSuccess
}
