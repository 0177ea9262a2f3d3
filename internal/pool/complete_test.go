package pool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

func TestComplete(t *testing.T) {
	ctx := context.Background()
	e, _ := testEngine(t)

	t.Run("any actor may complete", func(t *testing.T) {
		task := claimedTask(t, e, "u1")
		res, err := e.Complete(ctx, task.ID, "u9", nil)
		require.NoError(t, err)
		assert.Equal(t, store.StatusCompleted, res.CompletedTask.Status)
		assert.NotNil(t, res.CompletedTask.CompletedAt)
		assert.Nil(t, res.RoutedTask)
		assert.Empty(t, res.RoutingError)

		body, err := json.Marshal(res)
		require.NoError(t, err)
		var fields map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(body, &fields))
		require.Contains(t, fields, "routed_task")
		assert.Equal(t, "null", string(fields["routed_task"]))
	})

	t.Run("terminal task conflicts", func(t *testing.T) {
		task := newTask(t, e, "twice")
		_, err := e.Complete(ctx, task.ID, "u1", nil)
		require.NoError(t, err)
		_, err = e.Complete(ctx, task.ID, "u1", nil)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("missing task", func(t *testing.T) {
		_, err := e.Complete(ctx, "missing", "u1", nil)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCompleteWithRouting(t *testing.T) {
	ctx := context.Background()
	e, rec := testEngine(t)

	origin, err := e.CreateTask(ctx, "u1", NewTask{
		Title:    "Intake call",
		Priority: store.PriorityHigh,
		ClientID: "client-7",
		DueDate:  "2025-05-01",
	})
	require.NoError(t, err)

	res, err := e.Complete(ctx, origin.ID, "u1", &RouteSpec{ActionType: "review", AssignTo: "u4"})
	require.NoError(t, err)
	require.NotNil(t, res.RoutedTask)
	assert.Empty(t, res.RoutingError)

	child := res.RoutedTask
	assert.Equal(t, "Follow-up: Intake call", child.Title)
	assert.Equal(t, "review", child.ActionTypeID)
	assert.Equal(t, store.PriorityHigh, child.Priority)
	assert.Equal(t, "client-7", child.ClientID)
	assert.Equal(t, "2025-05-01", child.DueDate)
	assert.Equal(t, store.SourceRouted, child.SourceType)
	assert.Equal(t, origin.ID, child.RoutedFromTaskID)
	assert.Equal(t, store.StatusOpen, child.Status)
	assert.Equal(t, "u4", child.AssignedTo)

	assert.Equal(t, []string{store.ActionCreated, store.ActionCompleted, store.ActionRouted}, actions(t, e, origin.ID))
	assert.Equal(t, []string{store.ActionCreated}, actions(t, e, child.ID))

	entries, err := e.Activity(ctx, origin.ID)
	require.NoError(t, err)
	assert.Equal(t, child.ID, entries[2].Details["routed_task_id"])

	require.NotEmpty(t, rec.assigned)
	assert.Equal(t, child.ID, rec.assigned[len(rec.assigned)-1].TaskID)
}

func TestRoutingFailureKeepsCompletion(t *testing.T) {
	ctx := context.Background()
	e, _ := testEngine(t)

	cases := map[string]string{
		"unknown action type":  "callback",
		"inactive action type": "archived",
	}
	for name, actionType := range cases {
		t.Run(name, func(t *testing.T) {
			task := newTask(t, e, "Intake "+actionType)
			res, err := e.Complete(ctx, task.ID, "u1", &RouteSpec{ActionType: actionType})
			require.NoError(t, err)
			assert.Equal(t, "invalid action type", res.RoutingError)
			assert.Nil(t, res.RoutedTask)
			assert.Equal(t, store.StatusCompleted, res.CompletedTask.Status)

			got, err := e.GetTask(ctx, task.ID)
			require.NoError(t, err)
			assert.Equal(t, store.StatusCompleted, got.Status)
			assert.Equal(t, []string{store.ActionCreated, store.ActionCompleted}, actions(t, e, task.ID))

			routed, err := e.ListTasks(ctx, store.TaskFilter{ActionTypeID: actionType})
			require.NoError(t, err)
			assert.Empty(t, routed)
		})
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	e, _ := testEngine(t)
	task := newTask(t, e, "obsolete")

	_, err := e.Cancel(ctx, task.ID, "u1", "dup")
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := e.Cancel(ctx, task.ID, manager, "duplicate of another task")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCancelled, got.Status)
	assert.Nil(t, got.CompletedAt)

	_, err = e.Cancel(ctx, task.ID, manager, "")
	assert.ErrorIs(t, err, ErrConflict)
	_, err = e.Claim(ctx, task.ID, "u1")
	assert.ErrorIs(t, err, ErrNotAvailable)
}
