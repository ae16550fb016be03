package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/geode/internal/domain"
	"github.com/couchcryptid/geode/internal/observability"
)

// BatchExtractor reads up to batchSize plan messages from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawMessage, error)
}

// Transformer turns a plan message into a result message. An error means the
// message could not be understood at all; plans that run and fail still
// produce a result.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawMessage) (domain.OutputMessage, error)
}

// BatchLoader writes result messages to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, msgs []domain.OutputMessage) error
}

// Pipeline consumes plan messages, executes each plan and publishes one
// result per plan. Offsets are committed only once the result is published.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil once a plan result has been published.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any plans yet")
	}
	return nil
}

// Ready reports whether at least one plan result has been published.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// Run polls for plans until the context is cancelled. Broker failures are
// retried with a capped exponential delay.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	delay := retryDelay{next: minRetryDelay, limit: maxRetryDelay}
	for ctx.Err() == nil {
		if !p.runOnce(ctx, &delay) {
			break
		}
	}
	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	return nil
}

// batchOutcome tallies what happened to the plans of one batch.
type batchOutcome struct {
	results     []domain.OutputMessage
	sources     []domain.RawMessage
	succeeded   int
	failed      int
	undecodable int
}

// runOnce handles a single batch of plans. It reports false when the
// pipeline should stop.
func (p *Pipeline) runOnce(ctx context.Context, delay *retryDelay) bool {
	start := time.Now()

	plans, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("fetch plans failed", "error", err)
		return delay.wait(ctx)
	}
	if len(plans) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(plans)))
	p.metrics.BatchSize.Observe(float64(len(plans)))
	delay.reset()

	outcome := p.execute(ctx, plans)
	if len(outcome.results) == 0 {
		return true
	}

	if err := p.loader.LoadBatch(ctx, outcome.results); err != nil {
		p.logger.Error("publish results failed", "error", err, "results", len(outcome.results))
		return delay.wait(ctx)
	}
	p.metrics.MessagesProduced.Add(float64(len(outcome.results)))
	for _, raw := range outcome.sources {
		p.commit(ctx, raw)
	}

	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	p.logger.Info("plan results published",
		"plans", len(plans),
		"succeeded", outcome.succeeded,
		"failed", outcome.failed,
		"undecodable", outcome.undecodable,
		"duration", time.Since(start),
	)
	return true
}

// execute runs every plan of the batch. Messages that are not plans at all
// are committed immediately since no result can ever be produced for them.
func (p *Pipeline) execute(ctx context.Context, plans []domain.RawMessage) batchOutcome {
	outcome := batchOutcome{
		results: make([]domain.OutputMessage, 0, len(plans)),
		sources: make([]domain.RawMessage, 0, len(plans)),
	}

	for _, raw := range plans {
		out, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("undecodable plan, skipping message",
				"error", err,
				"plan_id", string(raw.Key),
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			p.commit(ctx, raw)
			outcome.undecodable++
			continue
		}

		if out.Headers[headerStatus] == statusError {
			outcome.failed++
			p.logger.Debug("plan failed",
				"plan_id", string(out.Key),
				"error_kind", out.Headers[headerErrorKind],
			)
		} else {
			outcome.succeeded++
		}
		outcome.results = append(outcome.results, out)
		outcome.sources = append(outcome.sources, raw)
	}
	return outcome
}

// commit acknowledges a plan message when the source supports it.
func (p *Pipeline) commit(ctx context.Context, raw domain.RawMessage) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit plan offset failed", "error", err,
			"plan_id", string(raw.Key), "partition", raw.Partition, "offset", raw.Offset)
	}
}

const (
	minRetryDelay = 200 * time.Millisecond
	maxRetryDelay = 5 * time.Second
)

// retryDelay doubles on every wait up to limit.
type retryDelay struct {
	next  time.Duration
	limit time.Duration
}

func (r *retryDelay) reset() { r.next = minRetryDelay }

// wait sleeps for the current delay and advances it. It reports false if
// the context ended first.
func (r *retryDelay) wait(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	timer := time.NewTimer(r.next)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	r.next = min(r.next*2, r.limit)
	return true
}
