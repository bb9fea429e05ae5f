// Package runner drives a plan through its steps in order, retrying
// within each step's budget and aborting the run on the first step
// that exhausts it.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchd/internal/audit"
	"github.com/fyrsmithlabs/orchd/internal/logging"
	"github.com/fyrsmithlabs/orchd/internal/memory"
	"github.com/fyrsmithlabs/orchd/internal/oracle"
	"github.com/fyrsmithlabs/orchd/internal/registry"
	"github.com/fyrsmithlabs/orchd/internal/task"
	"github.com/fyrsmithlabs/orchd/internal/tracker"
)

const instrumentationName = "github.com/fyrsmithlabs/orchd/internal/runner"

// Run and step statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Attempt results.
const (
	ResultSuccess         = "success"
	ResultFault           = "fault"
	ResultDomainError     = "domain_error"
	ResultSelfCheckFailed = "self_check_failed"
)

// Invoker executes a named executor. Satisfied by engine.Engine.
type Invoker interface {
	Invoke(ctx context.Context, executorName string, in registry.Input) (registry.Output, error)
}

// Attempt records one try at a step.
type Attempt struct {
	Number          int           `json:"number"`
	Result          string        `json:"result"`
	Output          string        `json:"output,omitempty"`
	Error           string        `json:"error,omitempty"`
	SelfCheckReason string        `json:"self_check_reason,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// StepOutcome is the final record for one step of the run.
type StepOutcome struct {
	StepID       string    `json:"step_id"`
	Title        string    `json:"title"`
	ExecutorName string    `json:"executor_name"`
	Status       string    `json:"status"`
	Output       string    `json:"output,omitempty"`
	Error        string    `json:"error,omitempty"`
	Attempts     []Attempt `json:"attempts"`
}

// Result is the outcome of a whole run. It is ephemeral; only the run
// audit record survives the process.
type Result struct {
	RunID         string        `json:"run_id"`
	TaskID        string        `json:"task_id"`
	Status        string        `json:"status"`
	FailedStepID  string        `json:"failed_step_id,omitempty"`
	Steps         []StepOutcome `json:"steps"`
	ReviewOK      bool          `json:"review_ok"`
	ReviewSummary string        `json:"review_summary,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
}

// Controller executes plans.
type Controller struct {
	invoker   Invoker
	oracle    oracle.Oracle
	trail     *audit.Trail
	recorder  memory.Recorder
	publisher tracker.Publisher
	logger    *zap.Logger
}

// Option configures optional controller collaborators.
type Option func(*Controller)

// WithRecorder enables best-effort learning capture after each run.
func WithRecorder(r memory.Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithPublisher forwards run lifecycle events to an external channel.
func WithPublisher(p tracker.Publisher) Option {
	return func(c *Controller) { c.publisher = p }
}

// New creates a run controller.
func New(invoker Invoker, o oracle.Oracle, trail *audit.Trail, logger *zap.Logger, opts ...Option) (*Controller, error) {
	if invoker == nil {
		return nil, fmt.Errorf("invoker is required for run controller")
	}
	if o == nil {
		return nil, fmt.Errorf("oracle is required for run controller")
	}
	if trail == nil {
		return nil, fmt.Errorf("audit trail is required for run controller")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for run controller")
	}
	c := &Controller{invoker: invoker, oracle: o, trail: trail, logger: logger.Named("runner")}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Execute runs every step of the plan in order. The first step that
// exhausts its retry budget fails the run; remaining steps are not
// attempted. The returned result always describes what happened, even
// for failed runs.
func (c *Controller) Execute(ctx context.Context, t *task.Task, plan *task.Plan) (*Result, error) {
	if t == nil || plan == nil {
		return nil, fmt.Errorf("task and plan are required to execute")
	}

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logger := c.logger.With(zap.String("run_id", runID), zap.String("task_id", t.ID))

	tracer := otel.Tracer(instrumentationName)
	ctx, span := tracer.Start(ctx, "runner.execute")
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.String("task.category", t.Category),
		attribute.Int("plan.steps", len(plan.Steps)),
	)
	defer span.End()

	tr, err := tracker.New(runID, c.publisher, logger)
	if err != nil {
		return nil, err
	}
	if err := tr.Start(ctx); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:     runID,
		TaskID:    t.ID,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	runsActive.Inc()
	defer runsActive.Dec()

	var snapshot strings.Builder
	for _, step := range plan.Steps {
		outcome := c.executeStep(ctx, logger, tr, t, step, snapshot.String())
		result.Steps = append(result.Steps, outcome)
		if outcome.Status != StatusSuccess {
			result.Status = StatusError
			result.FailedStepID = step.ID
			logger.Warn("step exhausted retry budget, aborting run",
				zap.String("step_id", step.ID), zap.String("step_title", step.Title))
			break
		}
		fmt.Fprintf(&snapshot, "## %s\n%s\n", step.Title, outcome.Output)
	}
	if result.Status == StatusRunning {
		result.Status = StatusSuccess
	}

	result.ReviewOK, result.ReviewSummary = c.review(ctx, logger, t, result)
	result.FinishedAt = time.Now().UTC()
	runsTotal.WithLabelValues(result.Status).Inc()

	if result.Status == StatusSuccess {
		if err := tr.Complete(ctx); err != nil {
			logger.Warn("failed to complete run tracker", zap.Error(err))
		}
	} else {
		if err := tr.Fail(ctx, "step retry budget exhausted"); err != nil {
			logger.Warn("failed to fail run tracker", zap.Error(err))
		}
	}

	c.trail.Record(ctx, audit.Record{
		Kind:    audit.KindRun,
		Subject: runID,
		Status:  result.Status,
		Summary: fmt.Sprintf("%s: %d/%d steps succeeded", t.Goal, successCount(result), len(plan.Steps)),
		Detail: map[string]any{
			"task_id":        t.ID,
			"category":       t.Category,
			"failed_step_id": result.FailedStepID,
			"review_ok":      result.ReviewOK,
			"review":         result.ReviewSummary,
		},
	})
	c.record(ctx, logger, t, result)

	return result, nil
}

func (c *Controller) executeStep(ctx context.Context, logger *zap.Logger, tr *tracker.Tracker, t *task.Task, step task.Step, snapshot string) StepOutcome {
	tracer := otel.Tracer(instrumentationName)
	ctx, span := tracer.Start(ctx, "runner.step")
	span.SetAttributes(
		attribute.String("step.id", step.ID),
		attribute.String("step.executor", step.ExecutorName),
	)
	defer span.End()

	tr.StepBegin(ctx, step.ID, step.Title)

	outcome := StepOutcome{
		StepID:       step.ID,
		Title:        step.Title,
		ExecutorName: step.ExecutorName,
		Status:       StatusError,
	}

	budget := step.RetryBudget
	if budget < 1 {
		budget = 1
	}

	input := make(registry.Input, len(step.Input)+4)
	for k, v := range step.Input {
		input[k] = v
	}
	input["step_id"] = step.ID
	input["step_title"] = step.Title
	input["step_executor_name"] = step.ExecutorName
	if snapshot != "" {
		input["context_snapshot"] = snapshot
	}

	for n := 1; n <= budget; n++ {
		attempt := c.attempt(ctx, logger, t, step, input, n)
		outcome.Attempts = append(outcome.Attempts, attempt)
		stepAttemptsTotal.WithLabelValues(attempt.Result).Inc()
		if attempt.Result == ResultSuccess {
			outcome.Status = StatusSuccess
			outcome.Output = attempt.Output
			outcome.Error = ""
			break
		}
		// The last attempt's output and error are retained on failure.
		outcome.Output = attempt.Output
		outcome.Error = attempt.Error
		logger.Info("step attempt failed",
			zap.String("step_id", step.ID),
			zap.Int("attempt", n),
			zap.Int("budget", budget),
			zap.String("result", attempt.Result),
		)
	}

	tr.StepEnd(ctx, step.ID, outcome.Status)
	return outcome
}

func (c *Controller) attempt(ctx context.Context, logger *zap.Logger, t *task.Task, step task.Step, input registry.Input, number int) Attempt {
	start := time.Now()
	out, err := c.invoker.Invoke(ctx, step.ExecutorName, input)
	elapsed := time.Since(start)
	stepAttemptDuration.Observe(elapsed.Seconds())

	if err != nil {
		return Attempt{Number: number, Result: ResultFault, Error: err.Error(), Duration: elapsed}
	}
	if out.Failed() {
		return Attempt{Number: number, Result: ResultDomainError, Error: out.Error, Duration: elapsed}
	}

	ok, reason := c.selfCheck(ctx, logger, t, step, out.Content)
	if !ok {
		return Attempt{
			Number:          number,
			Result:          ResultSelfCheckFailed,
			Output:          out.Content,
			SelfCheckReason: reason,
			Duration:        elapsed,
		}
	}
	return Attempt{Number: number, Result: ResultSuccess, Output: out.Content, Duration: elapsed}
}

const selfCheckSystemPrompt = `You judge whether a step output satisfies its step.
Reply with a single JSON object: {"ok": true|false, "reason": "..."}.`

// selfCheck asks the oracle to judge the output. Optimistic: an
// unavailable oracle or an undecodable reply passes the attempt.
func (c *Controller) selfCheck(ctx context.Context, logger *zap.Logger, t *task.Task, step task.Step, output string) (bool, string) {
	prompt := fmt.Sprintf("Task goal: %s\nStep: %s\nOutput:\n%s\n", t.Goal, step.Title, output)
	reply, err := c.oracle.Generate(ctx, selfCheckSystemPrompt, prompt)
	if err != nil {
		logger.Debug("self-check unavailable, passing attempt",
			zap.String("step_id", step.ID), zap.Error(err))
		return true, ""
	}

	var verdict struct {
		OK     *bool  `json:"ok"`
		Reason string `json:"reason"`
	}
	if !oracle.Decode(reply, &verdict) || verdict.OK == nil {
		return true, ""
	}
	return *verdict.OK, verdict.Reason
}

const reviewSystemPrompt = `You review a completed multi-step run as a whole.
Reply with a single JSON object: {"ok": true|false, "summary": "..."}.`

// review asks for an advisory end-of-run assessment. It never changes
// the run status; when the verdict is unusable it defaults to agreeing
// with the outcome.
func (c *Controller) review(ctx context.Context, logger *zap.Logger, t *task.Task, result *Result) (bool, string) {
	defaultOK := result.Status == StatusSuccess

	var b strings.Builder
	fmt.Fprintf(&b, "Task goal: %s\nRun status: %s\nSteps:\n", t.Goal, result.Status)
	for _, s := range result.Steps {
		fmt.Fprintf(&b, "- %s (%s): %s\n", s.Title, s.Status, audit.Truncate(s.Output, 200))
	}

	reply, err := c.oracle.Generate(ctx, reviewSystemPrompt, b.String())
	if err != nil {
		logger.Debug("pipeline review unavailable", zap.Error(err))
		return defaultOK, ""
	}

	var verdict struct {
		OK      *bool  `json:"ok"`
		Summary string `json:"summary"`
	}
	if !oracle.Decode(reply, &verdict) || verdict.OK == nil {
		return defaultOK, ""
	}
	if !*verdict.OK && result.Status == StatusSuccess {
		logger.Info("pipeline review flagged a successful run", zap.String("summary", verdict.Summary))
	}
	return *verdict.OK, verdict.Summary
}

// record captures the run as a learning. Failures never surface.
func (c *Controller) record(ctx context.Context, logger *zap.Logger, t *task.Task, result *Result) {
	if c.recorder == nil {
		return
	}
	content := fmt.Sprintf("Run %s for %q finished %s with %d/%d steps succeeding.",
		result.RunID, t.Goal, result.Status, successCount(result), len(result.Steps))
	if result.ReviewSummary != "" {
		content += " Review: " + result.ReviewSummary
	}
	if err := c.recorder.Record(ctx, content, []string{t.Category, result.Status}); err != nil {
		logger.Warn("failed to record run learning", zap.Error(err))
	}
}

func successCount(result *Result) int {
	n := 0
	for _, s := range result.Steps {
		if s.Status == StatusSuccess {
			n++
		}
	}
	return n
}
