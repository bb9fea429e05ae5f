package task

import (
	"fmt"
	"time"
)

// Step is one unit of a Plan, bound to a named executor.
type Step struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	ExecutorName string            `json:"executor_name"`
	Input        map[string]any    `json:"input,omitempty"`
	// DependsOn is advisory only: execution is strictly sequential in
	// plan order and the scheduler does not consult it.
	DependsOn   []string          `json:"depends_on,omitempty"`
	RetryBudget int               `json:"retry_budget"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Plan is an ordered list of Steps derived from a Task.
type Plan struct {
	TaskID    string    `json:"task_id"`
	Steps     []Step    `json:"steps"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPlan constructs a validated Plan. Step IDs must be unique within
// the plan and retry budgets must be non-negative.
func NewPlan(taskID string, steps []Step) (*Plan, error) {
	if taskID == "" {
		return nil, fmt.Errorf("%w: plan task id is required", ErrValidation)
	}
	seen := make(map[string]struct{}, len(steps))
	for i, s := range steps {
		if s.ID == "" {
			return nil, fmt.Errorf("%w: step %d has no id", ErrValidation, i)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate step id %q", ErrValidation, s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.ExecutorName == "" {
			return nil, fmt.Errorf("%w: step %q has no executor", ErrValidation, s.ID)
		}
		if s.RetryBudget < 0 {
			return nil, fmt.Errorf("%w: step %q has negative retry budget", ErrValidation, s.ID)
		}
	}
	return &Plan{
		TaskID:    taskID,
		Steps:     steps,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Step returns the step with the given ID, if present.
func (p *Plan) Step(id string) (*Step, bool) {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i], true
		}
	}
	return nil, false
}
