// Package arbiter decides which executor handles a step, blending
// fixed keyword rules with oracle advice.
//
// The heuristic acts as a deterministic floor: an absent, unparseable
// or less-confident oracle reply can never drag a decision below it.
package arbiter

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchd/internal/audit"
	"github.com/fyrsmithlabs/orchd/internal/oracle"
	"github.com/fyrsmithlabs/orchd/internal/task"
)

// Decision sources.
const (
	SourceHeuristicOnly     = "heuristic_only"
	SourceHeuristicDominate = "heuristic_dominate"
	SourceLLMPreferred      = "llm_preferred"
)

const heuristicConfidence = 0.6

// Decision names the chosen executor and how the choice was made.
type Decision struct {
	Primary    string  `json:"primary"`
	Secondary  string  `json:"secondary"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Arbiter merges heuristic and oracle executor decisions.
type Arbiter struct {
	oracle oracle.Oracle
	trail  *audit.Trail
	logger *zap.Logger
}

// New creates an arbiter. The audit trail may be nil to skip decision
// records.
func New(o oracle.Oracle, trail *audit.Trail, logger *zap.Logger) (*Arbiter, error) {
	if o == nil {
		return nil, fmt.Errorf("oracle is required for arbiter")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for arbiter")
	}
	return &Arbiter{oracle: o, trail: trail, logger: logger.Named("arbiter")}, nil
}

// keyword rules, first match wins
var keywordRules = []struct {
	executor string
	words    []string
}{
	{"codegen", []string{"code", "implement", "fix", "bug", "refactor", "patch", "compile"}},
	{"research", []string{"research", "investigate", "find", "why", "compare", "explain", "analyze"}},
	{"review", []string{"review", "verify", "check", "audit", "validate"}},
}

// Decide picks an executor for a step of t from candidateExecutors.
// signals carry non-binding hints (template executor, step title).
func (a *Arbiter) Decide(ctx context.Context, t *task.Task, candidateExecutors []string, signals map[string]string) Decision {
	heuristic := a.heuristic(t, candidateExecutors, signals)

	decision := a.merge(ctx, t, heuristic, candidateExecutors, signals)

	if a.trail != nil {
		a.trail.Record(ctx, audit.Record{
			Kind:    audit.KindDecision,
			Subject: t.ID,
			Status:  decision.Source,
			Summary: fmt.Sprintf("%s (confidence %.2f): %s", decision.Primary, decision.Confidence, decision.Reason),
			Detail: map[string]any{
				"primary":   decision.Primary,
				"secondary": decision.Secondary,
				"signals":   signals,
			},
		})
	}
	return decision
}

// heuristic computes the deterministic decision from fixed rules.
func (a *Arbiter) heuristic(t *task.Task, candidates []string, signals map[string]string) Decision {
	text := strings.ToLower(t.Category + " " + t.Goal + " " + signals["step_title"])

	primary := ""
	reason := "default executor"
	for _, rule := range keywordRules {
		for _, w := range rule.words {
			if strings.Contains(text, w) && contains(candidates, rule.executor) {
				primary = rule.executor
				reason = fmt.Sprintf("keyword %q matched rule for %s", w, rule.executor)
				break
			}
		}
		if primary != "" {
			break
		}
	}

	// The template executor is honored when no keyword rule fired.
	if primary == "" {
		if tmpl := signals["template_executor"]; contains(candidates, tmpl) {
			primary = tmpl
			reason = "template executor accepted"
		}
	}
	if primary == "" && len(candidates) > 0 {
		primary = candidates[0]
	}

	secondary := "generate"
	if secondary == primary || !contains(candidates, secondary) {
		secondary = "research"
	}
	if secondary == primary {
		secondary = ""
	}

	return Decision{
		Primary:    primary,
		Secondary:  secondary,
		Reason:     reason,
		Confidence: heuristicConfidence,
		Source:     SourceHeuristicOnly,
	}
}

const decideSystemPrompt = `You arbitrate which executor should handle a task step.
Reply with a single JSON object: {"primary": "...", "secondary": "...", "reason": "...", "confidence": 0.0-1.0}.
Primary and secondary must come from the candidate list.`

// merge queries the oracle with the heuristic as a non-binding
// suggestion and applies the confidence-floor policy.
func (a *Arbiter) merge(ctx context.Context, t *task.Task, heuristic Decision, candidates []string, signals map[string]string) Decision {
	prompt := a.buildPrompt(t, heuristic, candidates, signals)

	reply, err := a.oracle.Generate(ctx, decideSystemPrompt, prompt)
	if err != nil {
		a.logger.Debug("oracle arbitration unavailable, using heuristic",
			zap.String("task_id", t.ID), zap.Error(err))
		return heuristic
	}

	var advice Decision
	if !oracle.Decode(reply, &advice) || advice.Primary == "" || !contains(candidates, advice.Primary) {
		return heuristic
	}

	if advice.Confidence < heuristic.Confidence {
		out := heuristic
		out.Source = SourceHeuristicDominate
		return out
	}

	out := advice
	if !contains(candidates, out.Secondary) {
		out.Secondary = heuristic.Secondary
	}
	if out.Confidence < heuristic.Confidence {
		out.Confidence = heuristic.Confidence
	}
	out.Source = SourceLLMPreferred
	return out
}

func (a *Arbiter) buildPrompt(t *task.Task, heuristic Decision, candidates []string, signals map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task category: %s\nTask goal: %s\n", t.Category, t.Goal)
	if title := signals["step_title"]; title != "" {
		fmt.Fprintf(&b, "Step title: %s\n", title)
	}
	fmt.Fprintf(&b, "Candidate executors: %s\n", strings.Join(candidates, ", "))
	fmt.Fprintf(&b, "Heuristic suggestion (non-binding): primary=%s confidence=%.2f reason=%s\n",
		heuristic.Primary, heuristic.Confidence, heuristic.Reason)
	return b.String()
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
