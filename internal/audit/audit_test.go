package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchd/internal/store"
)

// failingStore fails every append.
type failingStore struct {
	store.Store
}

func (f *failingStore) Append(context.Context, string, []byte) error {
	return errors.New("disk is gone")
}

func TestNewTrail_Validation(t *testing.T) {
	_, err := NewTrail(nil, zap.NewNop())
	require.Error(t, err)

	_, err = NewTrail(store.NewMemory(), nil)
	require.Error(t, err)
}

func TestTrail_RecordAndList(t *testing.T) {
	trail, err := NewTrail(store.NewMemory(), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	trail.Record(ctx, Record{Kind: KindRun, Subject: "run-1", Status: "success"})
	trail.Record(ctx, Record{Kind: KindRun, Subject: "run-2", Status: "error", Summary: "step s2 failed"})
	trail.Record(ctx, Record{Kind: KindDecision, Subject: "task-1", Status: "llm_preferred"})

	runs, err := trail.List(ctx, KindRun)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].Subject)
	assert.NotEmpty(t, runs[0].ID)
	assert.False(t, runs[0].CreatedAt.IsZero())
	assert.Equal(t, "step s2 failed", runs[1].Summary)

	decisions, err := trail.List(ctx, KindDecision)
	require.NoError(t, err)
	assert.Len(t, decisions, 1)
}

func TestTrail_WriteFaultIsSwallowed(t *testing.T) {
	trail, err := NewTrail(&failingStore{Store: store.NewMemory()}, zap.NewNop())
	require.NoError(t, err)

	// Must not panic or surface the store failure.
	trail.Record(context.Background(), Record{Kind: KindInvocation, Subject: "codegen"})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "lon...", Truncate("longer text", 3))
}
