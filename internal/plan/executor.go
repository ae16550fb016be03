package plan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/geode/internal/domain"
	"github.com/couchcryptid/geode/internal/expert"
	"github.com/couchcryptid/geode/internal/observability"
)

// Config holds the grid defaults applied when a step does not set them.
type Config struct {
	GridSize     int
	FieldSamples int
}

// Executor runs plans against the configured providers. Either provider may
// be nil; steps that need a missing provider fail with ErrInvalidState.
type Executor struct {
	locator domain.Locator
	fields  domain.FieldProvider
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewExecutor creates an Executor.
func NewExecutor(locator domain.Locator, fields domain.FieldProvider, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Executor {
	if cfg.GridSize <= 0 {
		cfg.GridSize = expert.DefaultGridSize
	}
	if cfg.FieldSamples <= 0 {
		cfg.FieldSamples = expert.DefaultFieldSamples
	}
	return &Executor{
		locator: locator,
		fields:  fields,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Execute runs every step in order and returns the result step's output.
// The first failing step ends the plan with an error result; operators are
// never retried.
func (e *Executor) Execute(ctx context.Context, p Plan) Result {
	if err := p.Validate(); err != nil {
		return e.fail(p.ID, "", err)
	}

	r := &run{ex: e, values: make(map[string]Value, len(p.Steps))}
	for _, s := range p.Steps {
		if err := ctx.Err(); err != nil {
			return e.fail(p.ID, s.ID, fmt.Errorf("plan cancelled: %w", err))
		}

		start := time.Now()
		v, err := operators[s.Op](ctx, r, s.Args)
		e.metrics.OperatorDuration.WithLabelValues(s.Op).Observe(time.Since(start).Seconds())
		if err != nil {
			return e.fail(p.ID, s.ID, err)
		}
		e.logger.Debug("step complete", "plan_id", p.ID, "step", s.ID, "op", s.Op, "duration", time.Since(start))
		r.values[s.ID] = v
	}

	return okResult(p.ID, r.values[p.Result])
}

func (e *Executor) fail(planID, step string, err error) Result {
	res := errorResult(planID, step, err)
	e.metrics.PlanErrors.WithLabelValues(res.Error.Kind).Inc()
	e.logger.Warn("plan failed", "plan_id", planID, "step", step, "kind", res.Error.Kind, "error", err)
	return res
}
