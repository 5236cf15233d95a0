package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/rmpassist/rmp-assistant/internal/api/handlers"
	"github.com/rmpassist/rmp-assistant/internal/api/middleware"
	"github.com/rmpassist/rmp-assistant/internal/config"
	"github.com/rmpassist/rmp-assistant/internal/models"
	"github.com/rmpassist/rmp-assistant/internal/observability"
	"github.com/rmpassist/rmp-assistant/internal/providers"
	"github.com/rmpassist/rmp-assistant/internal/scraper"
	"github.com/rmpassist/rmp-assistant/internal/service"
	"github.com/rmpassist/rmp-assistant/internal/workers"
	"github.com/rmpassist/rmp-assistant/pkg/database"
)

// Startup enqueue of stale re-embedding jobs.
const (
	enqueueMaxRetries     = 3
	enqueueInitialBackoff = 500 * time.Millisecond
	enqueueMaxBackoff     = 5 * time.Second
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	store          *providers.Store
	server         *http.Server
	river          *river.Client[pgx.Tx]
	reembed        *service.ReembedService
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// NewApp builds and wires all components. It does not start the HTTP server or River;
// call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	app := &App{cfg: cfg}

	// Release whatever was already created when a later step fails.
	defer func() {
		if err != nil {
			if relErr := app.release(context.Background()); relErr != nil {
				slog.Error("release after init failure", "error", relErr)
			}
		}
	}()

	var (
		metricsHandler http.Handler
		metrics        *observability.Metrics
	)

	switch cfg.OtelMetricsExporter {
	case "":
		slog.Warn("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")
	case observability.MetricsExporterPrometheus, observability.MetricsExporterOTLP:
		var meter metric.Meter

		app.meterProvider, metricsHandler, meter, err = observability.NewMeterProvider(ctx, cfg.OtelMetricsExporter)
		if err != nil {
			return nil, fmt.Errorf("create meter provider: %w", err)
		}

		metrics, err = observability.NewMetrics(meter)
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}

		otel.SetMeterProvider(app.meterProvider)
	default:
		slog.Warn("metrics not enabled: unsupported OTEL_METRICS_EXPORTER", "exporter", cfg.OtelMetricsExporter)
	}

	if cfg.OtelTracesExporter == "" {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")
	} else {
		app.tracerProvider, err = observability.NewTracerProvider(ctx, cfg.OtelTracesExporter)
		if err != nil {
			return nil, fmt.Errorf("create tracer provider: %w", err)
		}

		if app.tracerProvider != nil {
			otel.SetTracerProvider(app.tracerProvider)
		}
	}

	// Installed unconditionally so request_id (and trace_id/span_id when tracing is on) appear in logs.
	slog.SetDefault(slog.New(observability.NewTraceContextHandler(slog.Default().Handler())))

	embedder, err := providers.NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}

	generator, err := providers.NewGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app.store, err = providers.OpenStore(ctx, cfg, embedder.ModelTag())
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	slog.Info("providers ready",
		"embedding_model", embedder.ModelTag(),
		"generation_provider", cfg.GenerationProvider,
		"vector_store", cfg.VectorStore,
		"index", cfg.Pipeline.IndexName,
		"namespace", cfg.Pipeline.Namespace,
	)

	var (
		assistantMetrics observability.AssistantMetrics
		apiMetrics       observability.APIMetrics
		reembedMetrics   observability.ReembedMetrics
	)

	if metrics != nil {
		assistantMetrics = metrics.Assistant
		apiMetrics = metrics.API
		reembedMetrics = metrics.Reembed
	}

	chatService := service.NewChatService(service.ChatServiceParams{
		Embedder:     providers.ForQueries(embedder),
		Store:        app.store,
		Generator:    generator,
		SystemPrompt: cfg.Pipeline.SystemPrompt,
		Namespace:    cfg.Pipeline.Namespace,
		TopK:         cfg.Pipeline.TopK,
		Metrics:      assistantMetrics,
	})

	ingestionService := service.NewIngestionService(service.IngestionServiceParams{
		Scraper: scraper.New(scraper.Options{
			Timeout:   cfg.ScrapeTimeout,
			RetryMax:  cfg.ScrapeRetryMax,
			UserAgent: cfg.ScrapeUserAgent,
		}),
		Embedder:  embedder,
		Store:     app.store,
		Domain:    cfg.ReviewSiteDomain,
		Namespace: cfg.Pipeline.Namespace,
		Metrics:   assistantMetrics,
	})

	if cfg.ReembedWorkers > 0 {
		app.river, err = newRiverClient(ctx, app.store, embedder, cfg, reembedMetrics)
		if err != nil {
			return nil, err
		}

		if cfg.ReembedFromModel != "" {
			app.reembed = service.NewReembedService(service.ReembedServiceParams{
				Lister: app.store.Vectors,
				Inserter: service.NewRetryingJobInserter(app.river, service.RetryingJobInserterConfig{
					MaxRetries:     enqueueMaxRetries,
					InitialBackoff: enqueueInitialBackoff,
					MaxBackoff:     enqueueMaxBackoff,
					Metrics:        reembedMetrics,
				}),
				Namespace:   cfg.Pipeline.Namespace,
				ToModel:     embedder.ModelTag(),
				MaxAttempts: cfg.ReembedMaxAttempts,
				Metrics:     reembedMetrics,
			})
		}
	} else if cfg.ReembedFromModel != "" {
		slog.Warn("REEMBED_FROM_MODEL ignored: re-embedding workers are disabled", "from_model", cfg.ReembedFromModel)
	}

	checks := map[string]handlers.HealthCheck{}
	for name, check := range app.store.HealthChecks() {
		checks[name] = check
	}

	app.server = newHTTPServer(cfg, routes{
		chat:    handlers.NewChatHandler(chatService),
		ingest:  handlers.NewIngestHandler(ingestionService),
		health:  handlers.NewHealthHandler(checks),
		metrics: metricsHandler,
	}, assistantMetrics, apiMetrics, app.meterProvider, app.tracerProvider)

	return app, nil
}

// newRiverClient migrates River's tables and builds a client running the re-embedding worker.
func newRiverClient(
	ctx context.Context,
	store *providers.Store,
	embedder providers.Embedder,
	cfg *config.Config,
	metrics observability.ReembedMetrics,
) (*river.Client[pgx.Tx], error) {
	if store.Pool == nil || store.Vectors == nil {
		return nil, errors.New("re-embedding workers require the pgvector store")
	}

	if err := database.MigrateRiver(ctx, store.Pool); err != nil {
		return nil, err
	}

	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, workers.NewReembedWorker(workers.ReembedWorkerParams{
		Store:    store.Vectors,
		Embedder: embedder,
		Limiter:  rate.NewLimiter(rate.Limit(cfg.EmbeddingRateLimit), 1),
		Metrics:  metrics,
	}))

	client, err := river.NewClient(riverpgxv5.New(store.Pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			service.ReembedQueueName: {MaxWorkers: cfg.ReembedWorkers},
		},
		Workers:      riverWorkers,
		ErrorHandler: &workers.ErrorHandler{},
		MaxAttempts:  cfg.ReembedMaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	slog.Info("re-embedding worker enabled",
		"workers", cfg.ReembedWorkers,
		"max_attempts", cfg.ReembedMaxAttempts,
		"rate_limit", cfg.EmbeddingRateLimit,
	)

	return client, nil
}

type routes struct {
	chat    *handlers.ChatHandler
	ingest  *handlers.IngestHandler
	health  *handlers.HealthHandler
	metrics http.Handler
}

// newHTTPServer builds the HTTP server.
// Handler chain: RequestID -> otelhttp -> Metrics -> Logging -> MaxBody -> mux, so access logs
// get trace_id/span_id from context.
func newHTTPServer(
	cfg *config.Config,
	r routes,
	assistantMetrics observability.AssistantMetrics,
	apiMetrics observability.APIMetrics,
	meterProvider *sdkmetric.MeterProvider,
	tracerProvider *sdktrace.TracerProvider,
) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", r.chat.Chat)
	mux.HandleFunc("POST /api/submit-url", r.ingest.SubmitURL)
	mux.HandleFunc("GET /health", r.health.Check)

	if r.metrics != nil {
		mux.Handle("GET /metrics", r.metrics)
	}

	otelOpts := []otelhttp.Option{
		// Skip tracing for health checks and scrapes to reduce noise.
		otelhttp.WithFilter(func(req *http.Request) bool {
			return req.URL.Path != "/health" && req.URL.Path != "/metrics"
		}),
	}
	if meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(meterProvider))
	}

	if tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(tracerProvider))
	}

	var recorder middleware.RequestBodyTooLargeRecorder
	if apiMetrics != nil {
		recorder = apiMetrics
	}

	var handler http.Handler = mux
	handler = middleware.MaxBody(cfg.MaxRequestBodyBytes, recorder)(handler)
	handler = middleware.Logging(handler)
	handler = middleware.Metrics(assistantMetrics)(handler)
	handler = otelhttp.NewHandler(handler, "rmp-assistant-api", otelOpts...)
	handler = middleware.RequestID(handler)

	const (
		readTimeout = 15 * time.Second
		idleTimeout = 60 * time.Second
	)

	// No WriteTimeout: chat responses stream for as long as the model generates.
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// Run starts the HTTP server and River (when enabled), then blocks until ctx is cancelled or a
// component fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 2)

	if a.river != nil {
		// Stop in Shutdown drains in-flight jobs; a cancelled start context would abort them.
		if err := a.river.Start(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("river: %w", err)
		}

		if a.reembed != nil {
			go a.enqueueStale(ctx)
		}
	}

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr <- fmt.Errorf("server: %w", err)
		}
	}()

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// enqueueStale queues re-embedding jobs for records still stored under REEMBED_FROM_MODEL.
// Failures are logged; the server keeps serving.
func (a *App) enqueueStale(ctx context.Context) {
	from := models.EmbeddingModelTag(a.cfg.ReembedFromModel)

	_, err := a.reembed.EnqueueStale(ctx, from)

	switch {
	case err == nil:
	case errors.Is(err, service.ErrSameModel):
		slog.Warn("REEMBED_FROM_MODEL is the current embedding model, nothing to enqueue", "model", from)
	case errors.Is(err, context.Canceled):
		slog.Info("stale re-embedding enqueue interrupted by shutdown")
	default:
		slog.Error("enqueue stale re-embedding jobs", "from_model", from, "error", err)
	}
}

// Shutdown stops the server, then River (waiting for in-flight jobs), then releases the store
// and observability providers. Call after Run returns.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if err := a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	if a.river != nil {
		if err := a.river.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("river stop: %w", err))
		}
	}

	if err := a.release(ctx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// release closes the store and shuts down tracer and meter providers.
func (a *App) release(ctx context.Context) error {
	if a.store != nil {
		a.store.Close()
	}

	return errors.Join(
		observability.ShutdownTracerProvider(ctx, a.tracerProvider),
		observability.ShutdownMeterProvider(ctx, a.meterProvider),
	)
}
