package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_GeneratesID(t *testing.T) {
	tk, err := New("coding", "fix the flaky test")
	require.NoError(t, err)
	assert.NotEmpty(t, tk.ID)
	assert.Equal(t, "coding", tk.Category)
	assert.False(t, tk.CreatedAt.IsZero())
}

func TestNew_RequiresCategory(t *testing.T) {
	_, err := New("", "do something")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "category")
}

func TestNew_RequiresGoal(t *testing.T) {
	_, err := New("coding", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "goal")
}

func TestNew_Options(t *testing.T) {
	tk, err := New("research", "summarize the RFC",
		WithID("task-1"),
		WithSource("cli"),
		WithDetails(map[string]any{"rfc": 9110}),
		WithMetadata(map[string]string{"origin": "test"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "task-1", tk.ID)
	assert.Equal(t, "cli", tk.Source)
	assert.Equal(t, 9110, tk.Details["rfc"])
	assert.Equal(t, "test", tk.Metadata["origin"])
}

func TestNewPlan_DuplicateStepID(t *testing.T) {
	steps := []Step{
		{ID: "s1", Title: "a", ExecutorName: "research", RetryBudget: 1},
		{ID: "s1", Title: "b", ExecutorName: "generate", RetryBudget: 1},
	}
	_, err := NewPlan("task-1", steps)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "duplicate step id")
}

func TestNewPlan_RejectsNegativeBudget(t *testing.T) {
	_, err := NewPlan("task-1", []Step{
		{ID: "s1", Title: "a", ExecutorName: "research", RetryBudget: -1},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewPlan_RequiresTaskID(t *testing.T) {
	_, err := NewPlan("", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPlan_StepLookup(t *testing.T) {
	p, err := NewPlan("task-1", []Step{
		{ID: "s1", Title: "a", ExecutorName: "research", RetryBudget: 1},
		{ID: "s2", Title: "b", ExecutorName: "generate", RetryBudget: 2},
	})
	require.NoError(t, err)

	s, ok := p.Step("s2")
	require.True(t, ok)
	assert.Equal(t, "b", s.Title)

	_, ok = p.Step("missing")
	assert.False(t, ok)
}
