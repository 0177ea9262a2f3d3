package pool

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

// Claim takes an open, unclaimed task for user. Under concurrent claims of
// the same task exactly one caller succeeds; the rest get ErrConflict.
func (e *Engine) Claim(ctx context.Context, taskID, user string) (*store.Task, error) {
	if err := requireActor(user); err != nil {
		return nil, err
	}
	now := e.now()

	var out *store.Task
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		if _, err := e.loadTask(ctx, tx, taskID); err != nil {
			return err
		}
		ok, err := tx.ClaimTask(ctx, taskID, user, now)
		if err != nil {
			return err
		}
		if !ok {
			current, err := e.loadTask(ctx, tx, taskID)
			if err != nil {
				return err
			}
			switch {
			case current.ClaimedBy != "":
				return errors.Wrapf(ErrConflict, "task %s already claimed by %s", taskID, current.ClaimedBy)
			case current.HandoffPending():
				return errors.Wrapf(ErrNotAvailable, "task %s is reserved for %s", taskID, current.HandoffTo)
			default:
				return errors.Wrapf(ErrNotAvailable, "task %s is %s", taskID, current.Status)
			}
		}
		if err := e.logActivity(ctx, tx, taskID, store.ActionClaimed, user, now, nil); err != nil {
			return err
		}
		out, err = e.loadTask(ctx, tx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.invalidateStats()
	e.log.WithFields(logrus.Fields{"task": taskID, "user": user}).Debug("task claimed")
	return out, nil
}

// Release returns a task claimed by user to the open state.
func (e *Engine) Release(ctx context.Context, taskID, user string) (*store.Task, error) {
	if err := requireActor(user); err != nil {
		return nil, err
	}
	now := e.now()

	var out *store.Task
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		t, err := e.loadTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if t.ClaimedBy != user {
			return errors.Wrapf(ErrForbidden, "task %s is not claimed by %s", taskID, user)
		}
		ok, err := tx.ReleaseTask(ctx, taskID, user, now)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrConflict, "task %s is %s", taskID, t.Status)
		}
		if err := e.logActivity(ctx, tx, taskID, store.ActionReleased, user, now, nil); err != nil {
			return err
		}
		out, err = e.loadTask(ctx, tx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.invalidateStats()
	e.log.WithFields(logrus.Fields{"task": taskID, "user": user}).Debug("task released")
	return out, nil
}
