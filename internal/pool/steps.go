package pool

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

// StepToggleResult is returned by ToggleStep. AllStepsCompleted is true when
// the toggle completed the last open step of the task.
type StepToggleResult struct {
	Step              *store.Step `json:"step"`
	AllStepsCompleted bool        `json:"all_steps_completed"`
}

// AddStep appends a checklist item numbered after the current last step.
func (e *Engine) AddStep(ctx context.Context, taskID, actor, description, assignee string) (*store.Step, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, errors.Wrap(ErrInvalid, "step description is required")
	}
	now := e.now()

	step := &store.Step{TaskID: taskID, Description: description, AssignedTo: assignee, CreatedAt: now}
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		if _, err := e.loadTask(ctx, tx, taskID); err != nil {
			return err
		}
		n, err := tx.NextStepNumber(ctx, taskID)
		if err != nil {
			return err
		}
		step.StepNumber = n
		if err := tx.InsertStep(ctx, step); err != nil {
			return err
		}
		return e.logActivity(ctx, tx, taskID, store.ActionStepAdded, actor, now, store.JSONMap{
			"step_id":     step.ID,
			"step_number": n,
			"description": description,
		})
	})
	if err != nil {
		return nil, err
	}
	return step, nil
}

// ToggleStep flips a step between done and not done.
func (e *Engine) ToggleStep(ctx context.Context, taskID, stepID, actor string) (*StepToggleResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	now := e.now()

	res := &StepToggleResult{}
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		if _, err := e.loadTask(ctx, tx, taskID); err != nil {
			return err
		}
		st, err := tx.GetStep(ctx, taskID, stepID)
		if err != nil {
			return translate(err)
		}
		done := !st.IsCompleted
		if err := tx.SetStepCompleted(ctx, stepID, done, actor, now); err != nil {
			return err
		}
		action := store.ActionStepUncompleted
		if done {
			action = store.ActionStepCompleted
		}
		err = e.logActivity(ctx, tx, taskID, action, actor, now, store.JSONMap{
			"step_id":     stepID,
			"step_number": st.StepNumber,
		})
		if err != nil {
			return err
		}

		open, err := tx.CountIncompleteSteps(ctx, taskID)
		if err != nil {
			return err
		}
		res.AllStepsCompleted = done && open == 0
		res.Step, err = tx.GetStep(ctx, taskID, stepID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DeleteStep removes a step and closes the gap in numbering.
func (e *Engine) DeleteStep(ctx context.Context, taskID, stepID, actor string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	now := e.now()

	return e.store.InTx(ctx, func(tx *store.Tx) error {
		if _, err := e.loadTask(ctx, tx, taskID); err != nil {
			return err
		}
		st, err := tx.GetStep(ctx, taskID, stepID)
		if err != nil {
			return translate(err)
		}
		if _, err := tx.DeleteStep(ctx, taskID, stepID); err != nil {
			return err
		}
		remaining, err := tx.ListSteps(ctx, taskID)
		if err != nil {
			return err
		}
		if err := tx.ApplyStepOrder(ctx, taskID, stepIDs(remaining)); err != nil {
			return err
		}
		return e.logActivity(ctx, tx, taskID, store.ActionStepDeleted, actor, now, store.JSONMap{
			"step_id":     stepID,
			"step_number": st.StepNumber,
			"description": st.Description,
		})
	})
}

// ReorderSteps puts the named steps first, in the given order, followed by
// the task's other steps in their current order. Ids that do not belong to
// the task are ignored.
func (e *Engine) ReorderSteps(ctx context.Context, taskID, actor string, orderedIDs []string) ([]store.Step, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	now := e.now()

	var out []store.Step
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		if _, err := e.loadTask(ctx, tx, taskID); err != nil {
			return err
		}
		current, err := tx.ListSteps(ctx, taskID)
		if err != nil {
			return err
		}
		order := mergeOrder(stepIDs(current), orderedIDs)
		if err := tx.ApplyStepOrder(ctx, taskID, order); err != nil {
			return err
		}
		if err := e.logActivity(ctx, tx, taskID, store.ActionStepsReordered, actor, now, store.JSONMap{"order": order}); err != nil {
			return err
		}
		out, err = tx.ListSteps(ctx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Steps returns the checklist of a task.
func (e *Engine) Steps(ctx context.Context, taskID string) ([]store.Step, error) {
	if _, err := e.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return e.store.Steps(ctx, taskID)
}

func stepIDs(steps []store.Step) []string {
	ids := make([]string, len(steps))
	for i, st := range steps {
		ids[i] = st.ID
	}
	return ids
}

// mergeOrder returns current reordered so that requested ids come first.
func mergeOrder(current, requested []string) []string {
	known := make(map[string]bool, len(current))
	for _, id := range current {
		known[id] = true
	}
	placed := make(map[string]bool, len(current))
	order := make([]string, 0, len(current))
	for _, id := range requested {
		if known[id] && !placed[id] {
			order = append(order, id)
			placed[id] = true
		}
	}
	for _, id := range current {
		if !placed[id] {
			order = append(order, id)
		}
	}
	return order
}
