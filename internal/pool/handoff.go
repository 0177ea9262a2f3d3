package pool

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

// HandoffResult is returned by the handoff operations.
type HandoffResult struct {
	OK     bool                `json:"success"`
	Record store.HandoffRecord `json:"record"`
	Task   *store.Task         `json:"task"`
}

// InitiateHandoff starts transferring a claimed task from its claimant to
// another user. The claim is released and the task waits, assigned to the
// recipient, until they accept or decline.
func (e *Engine) InitiateHandoff(ctx context.Context, taskID, from, to, notes string) (*HandoffResult, error) {
	if err := requireActor(from); err != nil {
		return nil, err
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return nil, errors.Wrap(ErrInvalid, "handoff recipient is required")
	}
	if to == from {
		return nil, errors.Wrap(ErrInvalid, "cannot hand a task off to yourself")
	}
	now := e.now()

	res := &HandoffResult{}
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		t, err := e.loadTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if t.ClaimedBy != from {
			return errors.Wrapf(ErrForbidden, "only the claimant can hand off task %s", taskID)
		}
		ok, err := tx.StartHandoff(ctx, taskID, from, to, notes, now)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrConflict, "task %s cannot be handed off while %s", taskID, t.Status)
		}

		res.Record = store.HandoffRecord{TaskID: taskID, FromUser: from, ToUser: to, Notes: notes, CreatedAt: now}
		if err := tx.AppendHandoff(ctx, &res.Record); err != nil {
			return err
		}
		err = e.logActivity(ctx, tx, taskID, store.ActionHandedOff, from, now, store.JSONMap{
			"to":    to,
			"notes": notes,
		})
		if err != nil {
			return err
		}
		res.Task, err = e.loadTask(ctx, tx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	res.OK = true

	e.invalidateStats()
	e.log.WithFields(logrus.Fields{"task": taskID, "from": from, "to": to}).Debug("handoff initiated")
	e.notifyAssigned(res.Task, from, store.ActionHandedOff, map[string]any{"to": to})
	return res, nil
}

// AcceptHandoff completes a pending handoff; only its recipient may accept.
// The recipient becomes the claimant.
func (e *Engine) AcceptHandoff(ctx context.Context, taskID, actor string) (*HandoffResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	now := e.now()

	res := &HandoffResult{}
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		t, err := e.loadTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if err := checkRecipient(t, actor); err != nil {
			return err
		}
		ok, err := tx.AcceptHandoff(ctx, taskID, actor, now)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrConflict, "task %s changed before the handoff was accepted", taskID)
		}
		rec, err := tx.LatestHandoff(ctx, taskID)
		if err != nil {
			return err
		}
		res.Record = *rec
		err = e.logActivity(ctx, tx, taskID, store.ActionHandoffAccepted, actor, now, store.JSONMap{"from": t.HandoffFrom})
		if err != nil {
			return err
		}
		res.Task, err = e.loadTask(ctx, tx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	res.OK = true

	e.invalidateStats()
	e.log.WithFields(logrus.Fields{"task": taskID, "user": actor}).Debug("handoff accepted")
	return res, nil
}

// DeclineHandoff rejects a pending handoff. The task goes back to the
// initiator's queue, unclaimed, and the refusal is added to the history.
func (e *Engine) DeclineHandoff(ctx context.Context, taskID, actor, reason string) (*HandoffResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	now := e.now()

	res := &HandoffResult{}
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		t, err := e.loadTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if err := checkRecipient(t, actor); err != nil {
			return err
		}
		ok, err := tx.DeclineHandoff(ctx, taskID, actor, now)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrConflict, "task %s changed before the handoff was declined", taskID)
		}
		res.Record = store.HandoffRecord{TaskID: taskID, FromUser: actor, ToUser: t.HandoffFrom, Notes: reason, CreatedAt: now}
		if err := tx.AppendHandoff(ctx, &res.Record); err != nil {
			return err
		}
		err = e.logActivity(ctx, tx, taskID, store.ActionHandoffDeclined, actor, now, store.JSONMap{
			"from":   t.HandoffFrom,
			"reason": reason,
		})
		if err != nil {
			return err
		}
		res.Task, err = e.loadTask(ctx, tx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	res.OK = true

	e.invalidateStats()
	e.log.WithFields(logrus.Fields{"task": taskID, "user": actor}).Debug("handoff declined")
	e.notifyAssigned(res.Task, actor, store.ActionHandoffDeclined, map[string]any{"reason": reason})
	return res, nil
}

func checkRecipient(t *store.Task, actor string) error {
	if !t.HandoffPending() {
		return errors.Wrapf(ErrConflict, "task %s has no pending handoff", t.ID)
	}
	if t.HandoffTo != actor {
		return errors.Wrapf(ErrForbidden, "handoff of task %s is addressed to %s", t.ID, t.HandoffTo)
	}
	return nil
}
