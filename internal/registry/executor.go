// Package registry resolves executor names to loadable implementations,
// synthesizing a declarative prompt rule when a name is unknown.
//
// Synthesis never produces runnable code: the oracle's output is a Rule
// (system prompt plus output guidance) persisted as JSON and interpreted
// by a fixed PromptExecutor. A rule that loads but behaves wrongly is
// indistinguishable from a correct one until invoked, which matches the
// contract for synthesized executors.
package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/orchd/internal/oracle"
)

// Input is the payload handed to an executor for one step attempt.
// Beyond the step's template fields it always carries task_goal,
// task_details, context_snapshot, step_id, step_title and
// step_executor_name.
type Input map[string]any

// Output is an executor's result. Domain failures are reported through
// the Error field; a Go error returned from Run is a retryable fault.
type Output struct {
	Content string         `json:"content"`
	Error   string         `json:"error,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Failed reports whether the output is an error-shaped domain failure.
func (o Output) Failed() bool { return o.Error != "" }

// Executor performs the actual work of one step.
type Executor interface {
	Run(ctx context.Context, in Input) (Output, error)
}

// Rule is a declarative executor definition: the entire behavior is a
// prompt pair interpreted by PromptExecutor.
type Rule struct {
	Name           string `json:"name"`
	SystemPrompt   string `json:"system_prompt"`
	OutputGuidance string `json:"output_guidance,omitempty"`
}

// PromptExecutor runs a Rule against the oracle.
type PromptExecutor struct {
	rule   Rule
	oracle oracle.Oracle
}

// NewPromptExecutor builds an executor for the given rule.
func NewPromptExecutor(rule Rule, o oracle.Oracle) (*PromptExecutor, error) {
	if rule.Name == "" || rule.SystemPrompt == "" {
		return nil, fmt.Errorf("rule needs a name and a system prompt")
	}
	if o == nil {
		return nil, fmt.Errorf("oracle is required for prompt executor")
	}
	return &PromptExecutor{rule: rule, oracle: o}, nil
}

// Run implements Executor. The oracle reply becomes the output content
// verbatim; channel failures propagate as faults.
func (e *PromptExecutor) Run(ctx context.Context, in Input) (Output, error) {
	system := e.rule.SystemPrompt
	if e.rule.OutputGuidance != "" {
		system += "\n\n" + e.rule.OutputGuidance
	}

	reply, err := e.oracle.Generate(ctx, system, BuildPrompt(in))
	if err != nil {
		return Output{}, fmt.Errorf("executor %s: %w", e.rule.Name, err)
	}
	return Output{Content: reply}, nil
}

// BuildPrompt renders an Input as the user prompt for prompt-backed
// executors. Well-known fields come first, template fields follow.
func BuildPrompt(in Input) string {
	var b strings.Builder
	if title, ok := in["step_title"].(string); ok && title != "" {
		fmt.Fprintf(&b, "Step: %s\n", title)
	}
	if goal, ok := in["task_goal"].(string); ok && goal != "" {
		fmt.Fprintf(&b, "Goal: %s\n", goal)
	}
	if details, ok := in["task_details"].(map[string]any); ok && len(details) > 0 {
		b.WriteString("Details:\n")
		for k, v := range details {
			fmt.Fprintf(&b, "- %s: %v\n", k, v)
		}
	}
	if snapshot, ok := in["context_snapshot"].(string); ok && snapshot != "" {
		b.WriteString("Results of earlier steps:\n")
		b.WriteString(snapshot)
		if !strings.HasSuffix(snapshot, "\n") {
			b.WriteByte('\n')
		}
	}
	for k, v := range in {
		switch k {
		case "step_title", "task_goal", "task_details", "context_snapshot",
			"step_id", "step_executor_name":
			continue
		}
		fmt.Fprintf(&b, "%s: %v\n", k, v)
	}
	return b.String()
}
