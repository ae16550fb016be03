package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/geode/internal/domain"
	"github.com/couchcryptid/geode/internal/plan"
)

// Result message headers.
const (
	headerContentType = "content-type"
	headerStatus      = "status"
	headerErrorKind   = "error-kind"
)

var statusError = string(plan.StatusError)

// Executor runs a decoded plan.
type Executor interface {
	Execute(ctx context.Context, p plan.Plan) plan.Result
}

// PlanTransformer implements Transformer by decoding the plan, executing it
// and encoding the result.
type PlanTransformer struct {
	executor Executor
	logger   *slog.Logger
}

// NewTransformer creates a PlanTransformer.
func NewTransformer(executor Executor, logger *slog.Logger) *PlanTransformer {
	return &PlanTransformer{
		executor: executor,
		logger:   logger,
	}
}

func (t *PlanTransformer) Transform(ctx context.Context, raw domain.RawMessage) (domain.OutputMessage, error) {
	p, err := plan.Parse(raw.Value)
	if err != nil {
		return domain.OutputMessage{}, err
	}

	res := t.executor.Execute(ctx, p)
	value, err := res.Encode()
	if err != nil {
		return domain.OutputMessage{}, fmt.Errorf("encode result for plan %s: %w", p.ID, err)
	}

	headers := map[string]string{
		headerContentType: "application/json",
		headerStatus:      string(res.Status),
	}
	if res.Error != nil {
		headers[headerErrorKind] = res.Error.Kind
	}
	t.logger.Debug("plan executed", "plan_id", p.ID, "status", res.Status, "steps", len(p.Steps))

	return domain.OutputMessage{
		Key:     []byte(res.PlanID),
		Value:   value,
		Headers: headers,
	}, nil
}
