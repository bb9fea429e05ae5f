package tracker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturingPublisher struct {
	events []Event
	err    error
}

func (p *capturingPublisher) Publish(_ context.Context, ev Event) error {
	p.events = append(p.events, ev)
	return p.err
}

func newTestTracker(t *testing.T, pub Publisher) *Tracker {
	t.Helper()
	tr, err := New("run-1", pub, zap.NewNop())
	require.NoError(t, err)
	return tr
}

func TestNewValidation(t *testing.T) {
	_, err := New("", nil, zap.NewNop())
	assert.ErrorContains(t, err, "run ID is required")
	_, err = New("run-1", nil, nil)
	assert.ErrorContains(t, err, "logger is required")
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, nil)
	assert.Equal(t, StateIdle, tr.State())

	require.NoError(t, tr.Start(ctx))
	assert.Equal(t, StateRunning, tr.State())

	require.NoError(t, tr.Pause(ctx))
	assert.Equal(t, StatePaused, tr.State())

	require.NoError(t, tr.Resume(ctx))
	require.NoError(t, tr.Complete(ctx))
	assert.Equal(t, StateCompleted, tr.State())

	history := tr.History()
	require.Len(t, history, 4)
	assert.Equal(t, StateIdle, history[0].From)
	assert.Equal(t, StateCompleted, history[3].To)
}

func TestInvalidTransitions(t *testing.T) {
	ctx := context.Background()

	tr := newTestTracker(t, nil)
	assert.ErrorIs(t, tr.Complete(ctx), ErrInvalidTransition)
	assert.ErrorIs(t, tr.Pause(ctx), ErrInvalidTransition)

	require.NoError(t, tr.Start(ctx))
	require.NoError(t, tr.Fail(ctx, "executor fault"))
	assert.ErrorIs(t, tr.Start(ctx), ErrInvalidTransition, "failed is terminal")
	assert.ErrorIs(t, tr.Resume(ctx), ErrInvalidTransition)
	assert.Equal(t, StateFailed, tr.State())
}

func TestPauseFail(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, nil)
	require.NoError(t, tr.Start(ctx))
	require.NoError(t, tr.Pause(ctx))
	require.NoError(t, tr.Fail(ctx, "aborted while paused"))
	assert.Equal(t, StateFailed, tr.State())
}

func TestPublishesEvents(t *testing.T) {
	ctx := context.Background()
	pub := &capturingPublisher{}
	tr := newTestTracker(t, pub)

	require.NoError(t, tr.Start(ctx))
	tr.StepBegin(ctx, "step-1", "first step")
	tr.StepEnd(ctx, "step-1", "success")
	require.NoError(t, tr.Complete(ctx))

	require.Len(t, pub.events, 4)
	assert.Equal(t, "transition", pub.events[0].Type)
	assert.Equal(t, StateRunning, pub.events[0].State)
	assert.Equal(t, "step_begin", pub.events[1].Type)
	assert.Equal(t, "step-1", pub.events[1].StepID)
	assert.Equal(t, "step_end", pub.events[2].Type)
	assert.Equal(t, "success", pub.events[2].Note)
	assert.Equal(t, StateCompleted, pub.events[3].State)
	for _, ev := range pub.events {
		assert.Equal(t, "run-1", ev.RunID)
	}
}

func TestPublishFailureDoesNotPropagate(t *testing.T) {
	ctx := context.Background()
	pub := &capturingPublisher{err: errors.New("broker down")}
	tr := newTestTracker(t, pub)

	require.NoError(t, tr.Start(ctx))
	tr.StepBegin(ctx, "step-1", "first step")
	require.NoError(t, tr.Complete(ctx))
}
