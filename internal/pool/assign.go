package pool

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/policy"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

// Assign puts a task in assignee's queue. Only actors holding the assign
// permission may do this. The assignee is notified after commit.
func (e *Engine) Assign(ctx context.Context, taskID, assignee, actor string) (*store.Task, error) {
	if err := e.requireAssign(actor); err != nil {
		return nil, err
	}
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return nil, errors.Wrap(ErrInvalid, "assignee is required")
	}
	return e.setAssignment(ctx, taskID, assignee, actor)
}

// Unassign clears a task's assignment.
func (e *Engine) Unassign(ctx context.Context, taskID, actor string) (*store.Task, error) {
	if err := e.requireAssign(actor); err != nil {
		return nil, err
	}
	return e.setAssignment(ctx, taskID, "", actor)
}

func (e *Engine) requireAssign(actor string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !e.policy.Can(actor, policy.ActionAssign) {
		return errors.Wrapf(ErrForbidden, "%s may not assign tasks", actor)
	}
	return nil
}

func (e *Engine) setAssignment(ctx context.Context, taskID, assignee, actor string) (*store.Task, error) {
	now := e.now()
	action := store.ActionAssigned
	if assignee == "" {
		action = store.ActionUnassigned
	}

	var (
		out     *store.Task
		details store.JSONMap
	)
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		t, err := e.loadTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		details = store.JSONMap{"previous_assignee": t.AssignedTo}
		if assignee != "" {
			details["assigned_to"] = assignee
		}
		ok, err := tx.SetAssignment(ctx, taskID, assignee, actor, now)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrNotFound, "task %s", taskID)
		}
		if err := e.logActivity(ctx, tx, taskID, action, actor, now, details); err != nil {
			return err
		}
		out, err = e.loadTask(ctx, tx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.invalidateStats()
	e.log.WithFields(logrus.Fields{"task": taskID, "actor": actor, "assignee": assignee}).Debug(action)
	e.notifyAssigned(out, actor, action, details)
	return out, nil
}
