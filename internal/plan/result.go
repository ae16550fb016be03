package plan

import (
	"math"
	"time"

	"github.com/couchcryptid/geode/internal/domain"
	"github.com/segmentio/encoding/json"
)

// Status is the outcome of a plan.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Result is what the service publishes for each executed plan. On success
// exactly one of Patch and Scalar is set, unless the result step produced an
// absent patch or a NaN scalar, in which case both are nil.
type Result struct {
	PlanID      string       `json:"plan_id"`
	Status      Status       `json:"status"`
	Patch       *domain.View `json:"patch,omitempty"`
	Scalar      *float64     `json:"scalar,omitempty"`
	Error       *StepError   `json:"error,omitempty"`
	CompletedAt time.Time    `json:"completed_at"`
}

// StepError identifies the step that failed and the error kind.
type StepError struct {
	Kind    string `json:"kind"`
	Step    string `json:"step,omitempty"`
	Message string `json:"message"`
}

func okResult(planID string, v Value) Result {
	r := Result{PlanID: planID, Status: StatusOK, CompletedAt: clock.Now().UTC()}
	if v.Patch != nil {
		view := v.Patch.View()
		r.Patch = &view
	}
	if v.Scalar != nil && !math.IsNaN(*v.Scalar) {
		s := *v.Scalar
		r.Scalar = &s
	}
	return r
}

func errorResult(planID, step string, err error) Result {
	return Result{
		PlanID: planID,
		Status: StatusError,
		Error: &StepError{
			Kind:    domain.ErrorKind(err),
			Step:    step,
			Message: err.Error(),
		},
		CompletedAt: clock.Now().UTC(),
	}
}

// Encode serializes the result as JSON.
func (r Result) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeResult parses a result produced by Encode.
func DecodeResult(data []byte) (Result, error) {
	var r Result
	err := json.Unmarshal(data, &r)
	return r, err
}
