package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchd/internal/audit"
	"github.com/fyrsmithlabs/orchd/internal/registry"
	"github.com/fyrsmithlabs/orchd/internal/store"
)

// scriptedOracle records system prompts and replays replies in order.
type scriptedOracle struct {
	replies []string
	err     error
	systems []string
}

func (s *scriptedOracle) Generate(_ context.Context, systemPrompt, _ string) (string, error) {
	s.systems = append(s.systems, systemPrompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "done", nil
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return reply, nil
}

func (s *scriptedOracle) synthesisCalls() int {
	n := 0
	for _, sys := range s.systems {
		if strings.Contains(sys, "declarative prompt rules") {
			n++
		}
	}
	return n
}

func newEngine(t *testing.T, o *scriptedOracle) (*Engine, *audit.Trail) {
	t.Helper()
	st := store.NewMemory()
	reg, err := registry.New(st, o, zap.NewNop())
	require.NoError(t, err)
	trail, err := audit.NewTrail(st, zap.NewNop())
	require.NoError(t, err)
	eng, err := New(reg, trail, o, zap.NewNop())
	require.NoError(t, err)
	return eng, trail
}

func TestInvoke_Builtin(t *testing.T) {
	o := &scriptedOracle{replies: []string{"generated artifact"}}
	eng, trail := newEngine(t, o)
	ctx := context.Background()

	out, err := eng.Invoke(ctx, "generate", registry.Input{"task_goal": "write a haiku"})
	require.NoError(t, err)
	assert.Equal(t, "generated artifact", out.Content)

	records, err := trail.List(ctx, audit.KindInvocation)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "generate", records[0].Subject)
	assert.Equal(t, "ok", records[0].Status)
}

func TestInvoke_UnknownExecutorTriggersSynthesisOnce(t *testing.T) {
	o := &scriptedOracle{replies: []string{
		`{"system_prompt": "You are the deployment executor, roll out the release."}`,
		"first invocation output",
		"second invocation output",
	}}
	eng, _ := newEngine(t, o)
	ctx := context.Background()

	out, err := eng.Invoke(ctx, "deploybot", registry.Input{"task_goal": "ship"})
	require.NoError(t, err)
	assert.Equal(t, "first invocation output", out.Content)
	assert.Equal(t, 1, o.synthesisCalls())

	out, err = eng.Invoke(ctx, "deploybot", registry.Input{"task_goal": "ship again"})
	require.NoError(t, err)
	assert.Equal(t, "second invocation output", out.Content)
	assert.Equal(t, 1, o.synthesisCalls(), "cache hit must not re-synthesize")
}

func TestInvoke_FaultPropagatesAndIsAudited(t *testing.T) {
	o := &scriptedOracle{err: errors.New("model exploded")}
	eng, trail := newEngine(t, o)
	ctx := context.Background()

	_, err := eng.Invoke(ctx, "research", registry.Input{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutorFault)

	records, listErr := trail.List(ctx, audit.KindInvocation)
	require.NoError(t, listErr)
	require.Len(t, records, 1)
	assert.Equal(t, "fault", records[0].Status)
}

func TestInvoke_DomainErrorIsNotAFault(t *testing.T) {
	// A reply is produced, so the executor returns normally even though
	// the content could describe a failure; domain errors ride Output.
	o := &scriptedOracle{replies: []string{"cannot comply"}}
	eng, _ := newEngine(t, o)

	out, err := eng.Invoke(context.Background(), "review", registry.Input{})
	require.NoError(t, err)
	assert.False(t, out.Failed())
	assert.Equal(t, "cannot comply", out.Content)
}

func TestNew_Validation(t *testing.T) {
	o := &scriptedOracle{}
	st := store.NewMemory()
	reg, err := registry.New(st, o, zap.NewNop())
	require.NoError(t, err)
	trail, err := audit.NewTrail(st, zap.NewNop())
	require.NoError(t, err)

	_, err = New(nil, trail, o, zap.NewNop())
	assert.Error(t, err)
	_, err = New(reg, nil, o, zap.NewNop())
	assert.Error(t, err)
	_, err = New(reg, trail, nil, zap.NewNop())
	assert.Error(t, err)
	_, err = New(reg, trail, o, nil)
	assert.Error(t, err)
}
