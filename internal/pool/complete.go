package pool

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/policy"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

// RouteSpec asks Complete to spawn a follow-up task in another action type.
// Empty optional fields inherit from the completed task.
type RouteSpec struct {
	ActionType  string         `json:"action_type"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	AssignTo    string         `json:"assign_to,omitempty"`
	DueDate     string         `json:"due_date,omitempty"`
	Priority    store.Priority `json:"priority,omitempty"`
}

// CompleteResult reports a completion and the outcome of optional routing.
type CompleteResult struct {
	CompletedTask *store.Task `json:"completed_task"`
	RoutedTask    *store.Task `json:"routed_task"`
	RoutingError  string      `json:"routing_error,omitempty"`
}

// Complete marks a task completed. Any authenticated actor may complete.
// When route is given a follow-up task is created afterwards; if that fails
// the completion stands and the failure is reported in RoutingError.
func (e *Engine) Complete(ctx context.Context, taskID, actor string, route *RouteSpec) (*CompleteResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	now := e.now()

	res := &CompleteResult{}
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		t, err := e.loadTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		ok, err := tx.FinishTask(ctx, taskID, store.StatusCompleted, now)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrConflict, "task %s is already %s", taskID, t.Status)
		}
		details := store.JSONMap{"previous_status": string(t.Status)}
		if route != nil {
			details["route_action_type"] = route.ActionType
		}
		if err := e.logActivity(ctx, tx, taskID, store.ActionCompleted, actor, now, details); err != nil {
			return err
		}
		res.CompletedTask, err = e.loadTask(ctx, tx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.invalidateStats()
	e.log.WithFields(logrus.Fields{"task": taskID, "actor": actor}).Debug("task completed")

	if route == nil {
		return res, nil
	}
	child, err := e.route(ctx, res.CompletedTask, actor, *route)
	if err != nil {
		e.log.WithFields(logrus.Fields{"task": taskID, "action_type": route.ActionType}).
			WithError(err).Warn("routing failed")
		res.RoutingError = routingMessage(err)
		return res, nil
	}
	res.RoutedTask = child
	if child.AssignedTo != "" {
		e.notifyAssigned(child, actor, store.ActionRouted, map[string]any{"routed_from_task_id": taskID})
	}
	return res, nil
}

// routingMessage keeps the routing error short for callers.
func routingMessage(err error) string {
	if errors.Is(err, ErrInvalidActionType) {
		return ErrInvalidActionType.Error()
	}
	return err.Error()
}

func (e *Engine) route(ctx context.Context, origin *store.Task, actor string, spec RouteSpec) (*store.Task, error) {
	if strings.TrimSpace(spec.ActionType) == "" {
		return nil, ErrInvalidActionType
	}
	if spec.Priority != "" && !store.ValidPriority(spec.Priority) {
		return nil, errors.Wrapf(ErrInvalid, "unknown priority %q", spec.Priority)
	}
	if err := validDate(spec.DueDate); err != nil {
		return nil, err
	}
	now := e.now()

	child := &store.Task{
		Title:            firstNonEmpty(spec.Title, "Follow-up: "+origin.Title),
		Description:      spec.Description,
		Status:           store.StatusOpen,
		Priority:         store.Priority(firstNonEmpty(string(spec.Priority), string(origin.Priority))),
		ActionTypeID:     spec.ActionType,
		ClientID:         origin.ClientID,
		DueDate:          firstNonEmpty(spec.DueDate, origin.DueDate),
		SourceType:       store.SourceRouted,
		SourceMetadata:   store.JSONMap{"routed_from_task_id": origin.ID},
		RoutedFromTaskID: origin.ID,
	}
	if spec.AssignTo != "" {
		child.AssignedTo = spec.AssignTo
		child.AssignedAt = &now
		child.AssignedBy = actor
	}

	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		at, err := tx.GetActionType(ctx, spec.ActionType)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidActionType
			}
			return err
		}
		if !at.IsActive {
			return ErrInvalidActionType
		}
		if err := e.insertTask(ctx, tx, child, actor, now, store.JSONMap{"routed_from_task_id": origin.ID}); err != nil {
			return err
		}
		return e.logActivity(ctx, tx, origin.ID, store.ActionRouted, actor, now, store.JSONMap{
			"routed_task_id": child.ID,
			"action_type":    at.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	e.invalidateStats()
	return child, nil
}

// Cancel withdraws an open or in-progress task. Requires the cancel permission.
func (e *Engine) Cancel(ctx context.Context, taskID, actor, reason string) (*store.Task, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !e.policy.Can(actor, policy.ActionCancel) {
		return nil, errors.Wrapf(ErrForbidden, "%s may not cancel tasks", actor)
	}
	now := e.now()

	var out *store.Task
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		t, err := e.loadTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		ok, err := tx.FinishTask(ctx, taskID, store.StatusCancelled, now)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrConflict, "task %s is already %s", taskID, t.Status)
		}
		if err := e.logActivity(ctx, tx, taskID, store.ActionCancelled, actor, now, store.JSONMap{"reason": reason}); err != nil {
			return err
		}
		out, err = e.loadTask(ctx, tx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.invalidateStats()
	e.log.WithFields(logrus.Fields{"task": taskID, "actor": actor}).Debug("task cancelled")
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
