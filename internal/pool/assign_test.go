package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

func TestAssign(t *testing.T) {
	ctx := context.Background()
	e, rec := testEngine(t)
	task := newTask(t, e, "Quarterly estimate")

	t.Run("requires permission", func(t *testing.T) {
		_, err := e.Assign(ctx, task.ID, "u2", "u1")
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = e.Unassign(ctx, task.ID, "u1")
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = e.Assign(ctx, task.ID, "u2", "")
		assert.ErrorIs(t, err, ErrUnauthenticated)

		got, err := e.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Empty(t, got.AssignedTo)
		assert.Empty(t, rec.assigned)
	})

	t.Run("assign notifies", func(t *testing.T) {
		got, err := e.Assign(ctx, task.ID, "u2", manager)
		require.NoError(t, err)
		assert.Equal(t, "u2", got.AssignedTo)
		assert.Equal(t, manager, got.AssignedBy)
		assert.NotNil(t, got.AssignedAt)
		assert.False(t, got.InPool())

		require.Len(t, rec.assigned, 1)
		assert.Equal(t, task.ID, rec.assigned[0].TaskID)
		assert.Equal(t, manager, rec.assigned[0].ActorID)
		require.Len(t, rec.patterns, 1)
		assert.Equal(t, store.ActionAssigned, rec.patterns[0].Action)
	})

	t.Run("empty assignee", func(t *testing.T) {
		_, err := e.Assign(ctx, task.ID, " ", manager)
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("unassign records previous assignee", func(t *testing.T) {
		got, err := e.Unassign(ctx, task.ID, manager)
		require.NoError(t, err)
		assert.Empty(t, got.AssignedTo)
		assert.Nil(t, got.AssignedAt)
		assert.True(t, got.InPool())

		entries, err := e.Activity(ctx, task.ID)
		require.NoError(t, err)
		last := entries[len(entries)-1]
		assert.Equal(t, store.ActionUnassigned, last.Action)
		assert.Equal(t, "u2", last.Details["previous_assignee"])
		assert.Equal(t, manager, last.PerformedBy)

		assert.Len(t, rec.assigned, 1)
		assert.Len(t, rec.patterns, 2)
	})

	t.Run("missing task", func(t *testing.T) {
		_, err := e.Assign(ctx, "missing", "u2", manager)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
