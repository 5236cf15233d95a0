package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/rmpassist/rmp-assistant/internal/observability"
)

const (
	defaultInitialBackoffWhenZero = 500 * time.Millisecond
	backoffMultiplier             = 2
)

// RetryingJobInserter wraps a JobInserter and retries Insert on failure with exponential
// backoff and jitter. Use for transient River/DB errors.
type RetryingJobInserter struct {
	inner          JobInserter
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	metrics        observability.ReembedMetrics
	logger         *slog.Logger
}

// RetryingJobInserterConfig holds configuration for the retrying inserter.
type RetryingJobInserterConfig struct {
	MaxRetries     int           // Retries after the first attempt (total attempts = 1 + MaxRetries).
	InitialBackoff time.Duration // Backoff after the first failure; doubles each attempt, capped by MaxBackoff.
	MaxBackoff     time.Duration
	Metrics        observability.ReembedMetrics
	Logger         *slog.Logger
}

// NewRetryingJobInserter returns a JobInserter that retries Insert on error.
func NewRetryingJobInserter(inner JobInserter, cfg RetryingJobInserterConfig) *RetryingJobInserter {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoffWhenZero
	}

	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &RetryingJobInserter{
		inner:          inner,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
	}
}

// Insert calls the inner inserter, retrying up to maxRetries times. Respects context
// cancellation during backoff.
func (r *RetryingJobInserter) Insert(
	ctx context.Context, args river.JobArgs, opts *river.InsertOpts,
) (*rivertype.JobInsertResult, error) {
	var lastErr error

	backoff := r.initialBackoff

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		result, err := r.inner.Insert(ctx, args, opts)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if attempt == r.maxRetries {
			break
		}

		if r.metrics != nil {
			r.metrics.RecordEnqueueRetry(ctx)
		}

		sleep := jitter(backoff)
		r.logger.Warn("job insert failed, retrying after backoff",
			"kind", args.Kind(),
			"attempt", attempt+1,
			"max_attempts", r.maxRetries+1,
			"backoff", sleep,
			"error", err,
		)

		if err := sleepCtx(ctx, sleep); err != nil {
			return nil, err
		}

		backoff = min(backoff*backoffMultiplier, r.maxBackoff)
	}

	return nil, lastErr
}

// jitter returns a duration between 50% and 100% of d.
func jitter(d time.Duration) time.Duration {
	const jitterHalf = 2

	half := d / jitterHalf
	if half <= 0 {
		return d
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return half
	}

	//nolint:gosec // G115: modulo result is in [0, half), safe to convert to int64
	jitterNanos := int64(binary.BigEndian.Uint64(buf[:]) % uint64(half.Nanoseconds()))

	return half + time.Duration(jitterNanos)
}

// sleepCtx blocks for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

var _ JobInserter = (*RetryingJobInserter)(nil)
