// Package blueprint caches reusable step templates per task category
// and resolves tasks into concrete plans.
package blueprint

import (
	"fmt"

	"github.com/fyrsmithlabs/orchd/internal/registry"
)

// Origin records how a blueprint came to be.
type Origin string

const (
	OriginSynthesized Origin = "synthesized"
	OriginFallback    Origin = "fallback"
)

// Step is one templated step of a blueprint.
type Step struct {
	Title         string         `json:"title"`
	ExecutorName  string         `json:"executor_name"`
	InputTemplate map[string]any `json:"input_template"`
	RetryBudget   int            `json:"retry_budget"`
}

// Blueprint is the reusable step template for one task category.
type Blueprint struct {
	Origin   Origin `json:"origin"`
	Category string `json:"category"`
	Steps    []Step `json:"steps"`
}

const (
	minSteps = 1
	maxSteps = 8
)

// Validate checks the structural rules: 1-8 steps, titled, executor
// from the allowed set, object input template.
func (b *Blueprint) Validate(allowedExecutors []string) error {
	if len(b.Steps) < minSteps || len(b.Steps) > maxSteps {
		return fmt.Errorf("blueprint must have %d-%d steps, has %d", minSteps, maxSteps, len(b.Steps))
	}
	allowed := make(map[string]struct{}, len(allowedExecutors))
	for _, e := range allowedExecutors {
		allowed[e] = struct{}{}
	}
	for i, s := range b.Steps {
		if s.Title == "" {
			return fmt.Errorf("step %d has no title", i)
		}
		if _, ok := allowed[s.ExecutorName]; !ok {
			return fmt.Errorf("step %d uses executor %q outside the allowed set", i, s.ExecutorName)
		}
		if s.RetryBudget < 0 {
			return fmt.Errorf("step %d has negative retry budget", i)
		}
	}
	return nil
}

// Fallback is the fixed two-step blueprint used whenever synthesis is
// unavailable or undecodable. It is never persisted, so a later
// resolution retries synthesis.
func Fallback(category string) *Blueprint {
	return &Blueprint{
		Origin:   OriginFallback,
		Category: category,
		Steps: []Step{
			{
				Title:         "Research the goal",
				ExecutorName:  registry.ExecutorResearch,
				InputTemplate: map[string]any{},
				RetryBudget:   2,
			},
			{
				Title:         "Produce the result",
				ExecutorName:  registry.ExecutorGenerate,
				InputTemplate: map[string]any{},
				RetryBudget:   2,
			},
		},
	}
}
