package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Both implementations must satisfy the same contract.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestStore_ReadWrite(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Read(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Write(ctx, "k", []byte("v1")))
			value, err := s.Read(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), value)

			require.NoError(t, s.Write(ctx, "k", []byte("v2")))
			value, err = s.Read(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), value)
		})
	}
}

func TestStore_WriteIfAbsent(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			wrote, err := s.WriteIfAbsent(ctx, "wia", []byte("first"))
			require.NoError(t, err)
			assert.True(t, wrote)

			wrote, err = s.WriteIfAbsent(ctx, "wia", []byte("second"))
			require.NoError(t, err)
			assert.False(t, wrote)

			value, err := s.Read(ctx, "wia")
			require.NoError(t, err)
			assert.Equal(t, []byte("first"), value)
		})
	}
}

func TestStore_Keys(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Write(ctx, "agents/a", []byte("1")))
			require.NoError(t, s.Write(ctx, "agents/b", []byte("2")))
			require.NoError(t, s.Write(ctx, "blueprints/x", []byte("3")))

			keys, err := s.Keys(ctx, "agents/")
			require.NoError(t, err)
			assert.Equal(t, []string{"agents/a", "agents/b"}, keys)
		})
	}
}

func TestStore_AppendPreservesOrder(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Append(ctx, "trail", []byte("one")))
			require.NoError(t, s.Append(ctx, "trail", []byte("two")))
			require.NoError(t, s.Append(ctx, "trail", []byte("three")))

			entries, err := s.Entries(ctx, "trail")
			require.NoError(t, err)
			require.Len(t, entries, 3)
			assert.Equal(t, []byte("one"), entries[0])
			assert.Equal(t, []byte("three"), entries[2])

			empty, err := s.Entries(ctx, "other")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestMemory_ConcurrentWriters(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.Append(ctx, "log", []byte("entry"))
				_, _ = s.WriteIfAbsent(ctx, "winner", []byte("me"))
			}
		}()
	}
	wg.Wait()

	entries, err := s.Entries(ctx, "log")
	require.NoError(t, err)
	assert.Len(t, entries, 500)
}

func TestNewSQLite_Validation(t *testing.T) {
	_, err := NewSQLite("", zap.NewNop())
	assert.Error(t, err)

	_, err = NewSQLite(filepath.Join(t.TempDir(), "x.db"), nil)
	assert.Error(t, err)
}
