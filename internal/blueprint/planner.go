package blueprint

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchd/internal/arbiter"
	"github.com/fyrsmithlabs/orchd/internal/oracle"
	"github.com/fyrsmithlabs/orchd/internal/registry"
	"github.com/fyrsmithlabs/orchd/internal/task"
)

const instrumentationName = "github.com/fyrsmithlabs/orchd/internal/blueprint"

// Planner resolves tasks into concrete plans via cached blueprints.
type Planner struct {
	blueprints *Store
	oracle     oracle.Oracle
	arbiter    *arbiter.Arbiter
	logger     *zap.Logger
}

// NewPlanner creates a planner.
func NewPlanner(blueprints *Store, o oracle.Oracle, arb *arbiter.Arbiter, logger *zap.Logger) (*Planner, error) {
	if blueprints == nil {
		return nil, fmt.Errorf("blueprint store is required for planner")
	}
	if o == nil {
		return nil, fmt.Errorf("oracle is required for planner")
	}
	if arb == nil {
		return nil, fmt.Errorf("arbiter is required for planner")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for planner")
	}
	return &Planner{blueprints: blueprints, oracle: o, arbiter: arb, logger: logger.Named("planner")}, nil
}

// Resolve turns a task into a concrete plan.
//
// A cached blueprint for the task's category is reused; otherwise one
// is synthesized, self-checked once, and persisted. Fallback blueprints
// are never persisted so a later resolution retries synthesis. Steps
// are always instantiated fresh: templates merge with the task's goal
// and details, and the executor is chosen by arbitration rather than
// trusted from the template.
func (p *Planner) Resolve(ctx context.Context, t *task.Task) (*task.Plan, error) {
	tracer := otel.Tracer(instrumentationName)
	ctx, span := tracer.Start(ctx, "planner.resolve")
	span.SetAttributes(attribute.String("task.category", t.Category))
	defer span.End()

	bp, err := p.blueprints.Get(ctx, t.Category)
	switch {
	case err == nil:
		// cached
	case IsNotFound(err):
		bp = p.synthesize(ctx, t)
		if bp.Origin == OriginSynthesized {
			bp = p.selfCheck(ctx, bp)
			if err := p.blueprints.Put(ctx, bp); err != nil {
				return nil, err
			}
		}
	default:
		return nil, err
	}

	span.SetAttributes(
		attribute.String("blueprint.origin", string(bp.Origin)),
		attribute.Int("blueprint.steps", len(bp.Steps)),
	)
	return p.instantiate(ctx, t, bp)
}

const synthesisSystemPrompt = `You design execution plans for task categories.
Reply with a single JSON object:
{"steps": [{"title": "...", "executor_name": "...", "input_template": {}, "retry_budget": 2}]}.
Use 2-5 steps. executor_name must be one of the allowed executors.`

// synthesize asks the oracle for a category blueprint. An unavailable
// channel or an undecodable reply yields the fixed fallback.
func (p *Planner) synthesize(ctx context.Context, t *task.Task) *Blueprint {
	prompt := fmt.Sprintf("Task category: %s\nExample goal: %s\nAllowed executors: %s\n",
		t.Category, t.Goal, strings.Join(registry.Vocabulary(), ", "))

	reply, err := p.oracle.Generate(ctx, synthesisSystemPrompt, prompt)
	if err != nil {
		p.logger.Warn("blueprint synthesis unavailable, using fallback",
			zap.String("category", t.Category), zap.Error(err))
		return Fallback(t.Category)
	}

	var candidate Blueprint
	if !oracle.Decode(reply, &candidate) || len(candidate.Steps) == 0 {
		p.logger.Warn("blueprint synthesis undecodable, using fallback",
			zap.String("category", t.Category))
		return Fallback(t.Category)
	}

	candidate.Origin = OriginSynthesized
	candidate.Category = t.Category
	return &candidate
}

const selfCheckSystemPrompt = `You validate execution blueprints. Rules:
- 1 to 8 steps
- every step has a non-empty string title
- executor_name comes from the allowed set
- input_template is a JSON object
Reply with the corrected blueprint as a single JSON object of the same shape.
Return the blueprint unchanged when it is already valid.`

// selfCheck submits the candidate with the validity rules and accepts
// whatever blueprint decodes from the reply. One pass only: a reply
// that is itself invalid is still accepted.
func (p *Planner) selfCheck(ctx context.Context, candidate *Blueprint) *Blueprint {
	encoded, err := json.Marshal(candidate)
	if err != nil {
		return candidate
	}
	prompt := fmt.Sprintf("Allowed executors: %s\nBlueprint: %s\n",
		strings.Join(registry.Vocabulary(), ", "), encoded)

	reply, err := p.oracle.Generate(ctx, selfCheckSystemPrompt, prompt)
	if err != nil {
		return candidate
	}

	var corrected Blueprint
	if !oracle.Decode(reply, &corrected) || len(corrected.Steps) == 0 {
		return candidate
	}
	corrected.Origin = candidate.Origin
	corrected.Category = candidate.Category

	if err := corrected.Validate(registry.Vocabulary()); err != nil {
		// Accepted regardless: the pass bounds oracle cost, not quality.
		p.logger.Warn("self-checked blueprint still invalid",
			zap.String("category", candidate.Category), zap.Error(err))
	}
	return &corrected
}

// instantiate builds concrete steps from a blueprint for one task.
func (p *Planner) instantiate(ctx context.Context, t *task.Task, bp *Blueprint) (*task.Plan, error) {
	steps := make([]task.Step, 0, len(bp.Steps))
	for _, bs := range bp.Steps {
		input := make(map[string]any, len(bs.InputTemplate)+2)
		for k, v := range bs.InputTemplate {
			input[k] = v
		}
		input["task_goal"] = t.Goal
		if len(t.Details) > 0 {
			input["task_details"] = t.Details
		}

		decision := p.arbiter.Decide(ctx, t, registry.Vocabulary(), map[string]string{
			"template_executor": bs.ExecutorName,
			"step_title":        bs.Title,
		})

		budget := bs.RetryBudget
		if budget < 1 {
			budget = 1
		}

		steps = append(steps, task.Step{
			ID:           uuid.NewString(),
			Title:        bs.Title,
			ExecutorName: decision.Primary,
			Input:        input,
			RetryBudget:  budget,
			Metadata: map[string]string{
				"arbitration_source": decision.Source,
				"fallback_executor":  decision.Secondary,
				"blueprint_origin":   string(bp.Origin),
			},
		})
	}
	return task.NewPlan(t.ID, steps)
}
