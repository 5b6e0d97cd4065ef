package transaction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Run("初期状態は非アクティブ", func(t *testing.T) {
		r := NewRegistry()
		assert.False(t, r.IsActive())
		assert.False(t, r.IsRollbackOnly())
		assert.Equal(t, "", r.CurrentID())
		assert.ErrorIs(t, r.MarkRollbackOnly(), ErrNoActiveTransaction)
		assert.False(t, r.Suspend())
		assert.False(t, r.Resume())
	})

	t.Run("rollback-only は一度立てると戻らない", func(t *testing.T) {
		r := NewRegistry()
		r.activate(&physical{id: "tx-1", state: StateActive})
		require.NoError(t, r.MarkRollbackOnly())
		require.NoError(t, r.MarkRollbackOnly())
		assert.True(t, r.IsRollbackOnly())
	})

	t.Run("中断と再開はスタック順", func(t *testing.T) {
		r := NewRegistry()
		r.activate(&physical{id: "tx-1"})
		require.True(t, r.Suspend())
		r.activate(&physical{id: "tx-2"})
		require.True(t, r.Suspend())
		r.activate(&physical{id: "tx-3"})

		assert.Equal(t, 2, r.SuspendedCount())
		assert.Equal(t, "tx-3", r.CurrentID())

		r.release()
		require.True(t, r.Resume())
		assert.Equal(t, "tx-2", r.CurrentID())
		r.release()
		require.True(t, r.Resume())
		assert.Equal(t, "tx-1", r.CurrentID())
		assert.Equal(t, 0, r.SuspendedCount())
	})

	t.Run("中断中の rollback-only は再開後の判定に影響しない", func(t *testing.T) {
		r := NewRegistry()
		r.activate(&physical{id: "outer"})
		r.Suspend()
		r.activate(&physical{id: "inner"})
		require.NoError(t, r.MarkRollbackOnly())
		r.release()
		r.Resume()
		assert.False(t, r.IsRollbackOnly())
	})
}

func TestScope(t *testing.T) {
	_, ok := RegistryFrom(context.Background())
	assert.False(t, ok)
	assert.False(t, IsActive(context.Background()))
	assert.Equal(t, "", CurrentID(context.Background()))

	parent := NewScope(context.Background())
	r1, ok := RegistryFrom(parent)
	require.True(t, ok)

	child := NewScope(parent)
	r2, ok := RegistryFrom(child)
	require.True(t, ok)
	assert.NotSame(t, r1, r2)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "inactive", StateInactive.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "committed", StateCommitted.String())
	assert.Equal(t, "rolled_back", StateRolledBack.String())
	assert.Equal(t, "unknown", StatusUnknown.String())
}
