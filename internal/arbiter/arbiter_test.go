package arbiter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchd/internal/task"
)

var candidates = []string{"research", "generate", "codegen", "review"}

// scriptedOracle replays canned replies or errors.
type scriptedOracle struct {
	replies []string
	err     error
	calls   int
}

func (s *scriptedOracle) Generate(_ context.Context, _, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", nil
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return reply, nil
}

func mustTask(t *testing.T, category, goal string) *task.Task {
	t.Helper()
	tk, err := task.New(category, goal)
	require.NoError(t, err)
	return tk
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, nil, zap.NewNop())
	require.Error(t, err)

	_, err = New(&scriptedOracle{}, nil, nil)
	require.Error(t, err)
}

func TestDecide_OracleUnavailable_HeuristicOnly(t *testing.T) {
	a, err := New(&scriptedOracle{err: errors.New("connection refused")}, nil, zap.NewNop())
	require.NoError(t, err)

	d := a.Decide(context.Background(), mustTask(t, "coding", "fix the login bug"), candidates, nil)
	assert.Equal(t, "codegen", d.Primary)
	assert.Equal(t, SourceHeuristicOnly, d.Source)
	assert.InDelta(t, 0.6, d.Confidence, 1e-9)
}

func TestDecide_UnparseableReply_HeuristicOnly(t *testing.T) {
	a, err := New(&scriptedOracle{replies: []string{"I think codegen is best"}}, nil, zap.NewNop())
	require.NoError(t, err)

	d := a.Decide(context.Background(), mustTask(t, "coding", "fix the login bug"), candidates, nil)
	assert.Equal(t, SourceHeuristicOnly, d.Source)
}

func TestDecide_LowConfidenceOracle_HeuristicDominates(t *testing.T) {
	reply := `{"primary": "review", "secondary": "research", "reason": "maybe", "confidence": 0.3}`
	a, err := New(&scriptedOracle{replies: []string{reply}}, nil, zap.NewNop())
	require.NoError(t, err)

	d := a.Decide(context.Background(), mustTask(t, "coding", "fix the login bug"), candidates, nil)
	assert.Equal(t, "codegen", d.Primary)
	assert.Equal(t, SourceHeuristicDominate, d.Source)
	assert.InDelta(t, 0.6, d.Confidence, 1e-9)
}

func TestDecide_ConfidentOracle_Preferred(t *testing.T) {
	reply := `Here you go: {"primary": "review", "secondary": "research", "reason": "verification step", "confidence": 0.9}`
	a, err := New(&scriptedOracle{replies: []string{reply}}, nil, zap.NewNop())
	require.NoError(t, err)

	d := a.Decide(context.Background(), mustTask(t, "coding", "fix the login bug"), candidates, nil)
	assert.Equal(t, "review", d.Primary)
	assert.Equal(t, "research", d.Secondary)
	assert.Equal(t, SourceLLMPreferred, d.Source)
	assert.InDelta(t, 0.9, d.Confidence, 1e-9)
}

func TestDecide_OracleOutsideCandidates_HeuristicOnly(t *testing.T) {
	reply := `{"primary": "deploybot", "confidence": 0.99}`
	a, err := New(&scriptedOracle{replies: []string{reply}}, nil, zap.NewNop())
	require.NoError(t, err)

	d := a.Decide(context.Background(), mustTask(t, "coding", "fix the login bug"), candidates, nil)
	assert.Equal(t, "codegen", d.Primary)
	assert.Equal(t, SourceHeuristicOnly, d.Source)
}

func TestHeuristic_TemplateExecutorWhenNoKeyword(t *testing.T) {
	a, err := New(&scriptedOracle{err: errors.New("down")}, nil, zap.NewNop())
	require.NoError(t, err)

	d := a.Decide(context.Background(), mustTask(t, "misc", "draft a poem"), candidates,
		map[string]string{"template_executor": "review"})
	assert.Equal(t, "review", d.Primary)
}

func TestHeuristic_DefaultsToFirstCandidate(t *testing.T) {
	a, err := New(&scriptedOracle{err: errors.New("down")}, nil, zap.NewNop())
	require.NoError(t, err)

	d := a.Decide(context.Background(), mustTask(t, "misc", "draft a poem"), candidates, nil)
	assert.Equal(t, "research", d.Primary)
	assert.Equal(t, "generate", d.Secondary)
}
