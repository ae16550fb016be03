// Package plan executes operator chains produced by an external
// orchestrator. A plan is an ordered list of steps; each step names an
// operator and its arguments, and may refer to the outputs of earlier steps
// by id. The executor runs steps verbatim and never chooses operations.
package plan

import (
	"fmt"

	"github.com/couchcryptid/geode/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
)

// Plan is the wire form of an operator chain.
type Plan struct {
	ID     string `json:"id"`
	Steps  []Step `json:"steps"`
	Result string `json:"result,omitempty"`
}

// Step is one operator call.
type Step struct {
	ID   string          `json:"id"`
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Parse decodes a plan. A missing id is replaced with a random UUID and a
// missing result defaults to the last step.
func Parse(data []byte) (Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Result == "" && len(p.Steps) > 0 {
		p.Result = p.Steps[len(p.Steps)-1].ID
	}
	return p, nil
}

// Validate checks the plan structure: at least one step, unique non-empty
// step ids, known operators, and a result naming a step.
func (p Plan) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: plan %s has no steps", domain.ErrInvalidState, p.ID)
	}
	seen := make(map[string]bool, len(p.Steps))
	for i, s := range p.Steps {
		if s.ID == "" {
			return fmt.Errorf("%w: step %d has no id", domain.ErrInvalidState, i)
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate step id %q", domain.ErrInvalidState, s.ID)
		}
		if _, ok := operators[s.Op]; !ok {
			return fmt.Errorf("%w: step %q: unknown op %q", domain.ErrInvalidState, s.ID, s.Op)
		}
		seen[s.ID] = true
	}
	if !seen[p.Result] {
		return fmt.Errorf("%w: result %q is not a step", domain.ErrInvalidState, p.Result)
	}
	return nil
}
