package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

func addSteps(t *testing.T, e *Engine, taskID string, descriptions ...string) []*store.Step {
	t.Helper()
	out := make([]*store.Step, len(descriptions))
	for i, d := range descriptions {
		st, err := e.AddStep(context.Background(), taskID, "u1", d, "")
		require.NoError(t, err)
		out[i] = st
	}
	return out
}

func numbers(t *testing.T, e *Engine, taskID string) map[string]int {
	t.Helper()
	steps, err := e.Steps(context.Background(), taskID)
	require.NoError(t, err)
	out := make(map[string]int, len(steps))
	for _, st := range steps {
		out[st.Description] = st.StepNumber
	}
	return out
}

func TestAddStep(t *testing.T) {
	ctx := context.Background()
	e, _ := testEngine(t)
	task := newTask(t, e, "Year end")

	steps := addSteps(t, e, task.ID, "collect", "reconcile", "file")
	for i, st := range steps {
		assert.Equal(t, i+1, st.StepNumber)
		assert.False(t, st.IsCompleted)
	}

	_, err := e.AddStep(ctx, task.ID, "u1", "   ", "")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = e.AddStep(ctx, "missing", "u1", "x", "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.AddStep(ctx, task.ID, "", "x", "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestDeleteStepThenToggleLast(t *testing.T) {
	ctx := context.Background()
	e, _ := testEngine(t)
	task := newTask(t, e, "Payroll")
	steps := addSteps(t, e, task.ID, "one", "two", "three")

	res, err := e.ToggleStep(ctx, task.ID, steps[0].ID, "u1")
	require.NoError(t, err)
	assert.True(t, res.Step.IsCompleted)
	assert.False(t, res.AllStepsCompleted)

	require.NoError(t, e.DeleteStep(ctx, task.ID, steps[1].ID, "u1"))
	assert.Equal(t, map[string]int{"one": 1, "three": 2}, numbers(t, e, task.ID))

	res, err = e.ToggleStep(ctx, task.ID, steps[2].ID, "u1")
	require.NoError(t, err)
	assert.True(t, res.AllStepsCompleted)
	assert.Equal(t, 2, res.Step.StepNumber)
	assert.Equal(t, "u1", res.Step.CompletedBy)

	t.Run("toggle back", func(t *testing.T) {
		res, err := e.ToggleStep(ctx, task.ID, steps[2].ID, "u2")
		require.NoError(t, err)
		assert.False(t, res.Step.IsCompleted)
		assert.False(t, res.AllStepsCompleted)
		assert.Nil(t, res.Step.CompletedAt)
	})

	t.Run("deleted step is gone", func(t *testing.T) {
		_, err := e.ToggleStep(ctx, task.ID, steps[1].ID, "u1")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, e.DeleteStep(ctx, task.ID, steps[1].ID, "u1"), ErrNotFound)
	})

	t.Run("numbering continues after the gap closes", func(t *testing.T) {
		st, err := e.AddStep(ctx, task.ID, "u1", "four", "")
		require.NoError(t, err)
		assert.Equal(t, 3, st.StepNumber)
	})

	assert.Equal(t, []string{
		store.ActionCreated,
		store.ActionStepAdded, store.ActionStepAdded, store.ActionStepAdded,
		store.ActionStepCompleted,
		store.ActionStepDeleted,
		store.ActionStepCompleted,
		store.ActionStepUncompleted,
		store.ActionStepAdded,
	}, actions(t, e, task.ID))
}

func TestStepOfAnotherTask(t *testing.T) {
	ctx := context.Background()
	e, _ := testEngine(t)
	a := newTask(t, e, "a")
	b := newTask(t, e, "b")
	steps := addSteps(t, e, a.ID, "only on a")

	_, err := e.ToggleStep(ctx, b.ID, steps[0].ID, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, e.DeleteStep(ctx, b.ID, steps[0].ID, "u1"), ErrNotFound)
}

func TestReorderSteps(t *testing.T) {
	ctx := context.Background()
	e, _ := testEngine(t)
	task := newTask(t, e, "Audit")
	steps := addSteps(t, e, task.ID, "a", "b", "c", "d")

	t.Run("full order", func(t *testing.T) {
		out, err := e.ReorderSteps(ctx, task.ID, "u1", []string{steps[3].ID, steps[2].ID, steps[1].ID, steps[0].ID})
		require.NoError(t, err)
		require.Len(t, out, 4)
		assert.Equal(t, map[string]int{"d": 1, "c": 2, "b": 3, "a": 4}, numbers(t, e, task.ID))
	})

	t.Run("partial order keeps the rest", func(t *testing.T) {
		_, err := e.ReorderSteps(ctx, task.ID, "u1", []string{steps[0].ID, "not-a-step", steps[0].ID})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"a": 1, "d": 2, "c": 3, "b": 4}, numbers(t, e, task.ID))
	})

	t.Run("numbers stay contiguous", func(t *testing.T) {
		out, err := e.Steps(ctx, task.ID)
		require.NoError(t, err)
		for i, st := range out {
			assert.Equal(t, i+1, st.StepNumber)
		}
	})
}

func TestMergeOrder(t *testing.T) {
	tests := []struct {
		name      string
		current   []string
		requested []string
		want      []string
	}{
		{"empty request", []string{"a", "b"}, nil, []string{"a", "b"}},
		{"reverse", []string{"a", "b", "c"}, []string{"c", "b", "a"}, []string{"c", "b", "a"}},
		{"partial", []string{"a", "b", "c"}, []string{"c"}, []string{"c", "a", "b"}},
		{"unknown and duplicate ids", []string{"a", "b"}, []string{"x", "b", "b"}, []string{"b", "a"}},
		{"no steps", nil, []string{"a"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mergeOrder(tt.current, tt.requested))
		})
	}
}
