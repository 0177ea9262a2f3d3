package store

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const taskColumns = `id, organization_id, title, description, status, priority, action_type_id,
	client_id, claimed_by, claimed_at, assigned_to, assigned_at, assigned_by,
	handoff_to, handoff_from, handoff_notes, handoff_at, due_date, source_type,
	source_metadata, ai_confidence, ai_extracted_data, routed_from_task_id,
	created_by, created_at, updated_at, completed_at`

// TaskFilter narrows ListTasks. Zero fields do not filter.
type TaskFilter struct {
	Status       TaskStatus
	ClaimedBy    string
	AssignedTo   string
	ActionTypeID string
	PoolOnly     bool // open, unclaimed and unassigned
	Limit        int
}

// CreateTask inserts a task. ID and timestamps are filled in when empty.
func (t *Tx) CreateTask(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = newID()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = Now()
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}
	if task.Status == "" {
		task.Status = StatusOpen
	}
	if task.Priority == "" {
		task.Priority = PriorityMedium
	}
	if task.SourceType == "" {
		task.SourceType = SourceManual
	}
	if task.SourceMetadata == nil {
		task.SourceMetadata = JSONMap{}
	}
	if task.AIExtractedData == nil {
		task.AIExtractedData = JSONMap{}
	}

	err := namedExec(ctx, t.tx, `INSERT INTO tasks (`+taskColumns+`) VALUES (
		:id, :organization_id, :title, :description, :status, :priority, :action_type_id,
		:client_id, :claimed_by, :claimed_at, :assigned_to, :assigned_at, :assigned_by,
		:handoff_to, :handoff_from, :handoff_notes, :handoff_at, :due_date, :source_type,
		:source_metadata, :ai_confidence, :ai_extracted_data, :routed_from_task_id,
		:created_by, :created_at, :updated_at, :completed_at)`, task)
	return errors.Wrap(err, "insert task")
}

// GetTask returns the task with the given id inside the organization.
func (t *Tx) GetTask(ctx context.Context, orgID, id string) (*Task, error) {
	return getTask(ctx, t.tx, orgID, id)
}

// GetTask returns the task with the given id inside the organization.
func (s *Store) GetTask(ctx context.Context, orgID, id string) (*Task, error) {
	return getTask(ctx, s.db, orgID, id)
}

func getTask(ctx context.Context, q sqlx.ExtContext, orgID, id string) (*Task, error) {
	var task Task
	err := get(ctx, q, &task, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND organization_id = ?`, id, orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "task %s", id)
		}
		return nil, errors.Wrap(err, "get task")
	}
	return &task, nil
}

// ListTasks returns tasks of the organization, newest first.
func (s *Store) ListTasks(ctx context.Context, orgID string, f TaskFilter) ([]Task, error) {
	where := []string{"organization_id = ?"}
	args := []any{orgID}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.ClaimedBy != "" {
		where = append(where, "claimed_by = ?")
		args = append(args, f.ClaimedBy)
	}
	if f.AssignedTo != "" {
		where = append(where, "assigned_to = ?")
		args = append(args, f.AssignedTo)
	}
	if f.ActionTypeID != "" {
		where = append(where, "action_type_id = ?")
		args = append(args, f.ActionTypeID)
	}
	if f.PoolOnly {
		where = append(where, "status = 'open' AND claimed_by = '' AND assigned_to = ''")
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	tasks := []Task{}
	if err := selectRows(ctx, s.db, &tasks, query, args...); err != nil {
		return nil, errors.Wrap(err, "list tasks")
	}
	return tasks, nil
}

// ClaimTask claims an open, unclaimed task with no pending handoff.
// It reports false when the conditions did not hold.
func (t *Tx) ClaimTask(ctx context.Context, id, user string, now time.Time) (bool, error) {
	n, err := exec(ctx, t.tx, `UPDATE tasks
		SET claimed_by = ?, claimed_at = ?, status = 'in_progress', updated_at = ?
		WHERE id = ? AND status = 'open' AND claimed_by = '' AND handoff_to = ''`,
		user, now, now, id)
	if err != nil {
		return false, errors.Wrap(err, "claim task")
	}
	return n == 1, nil
}

// ReleaseTask returns an in-progress task claimed by user to the open state.
func (t *Tx) ReleaseTask(ctx context.Context, id, user string, now time.Time) (bool, error) {
	n, err := exec(ctx, t.tx, `UPDATE tasks
		SET claimed_by = '', claimed_at = NULL, status = 'open', updated_at = ?
		WHERE id = ? AND claimed_by = ? AND status = 'in_progress'`,
		now, id, user)
	if err != nil {
		return false, errors.Wrap(err, "release task")
	}
	return n == 1, nil
}

// SetAssignment sets or, with an empty assignee, clears the assignment.
func (t *Tx) SetAssignment(ctx context.Context, id, assignee, by string, now time.Time) (bool, error) {
	var at *time.Time
	if assignee != "" {
		at = &now
	} else {
		by = ""
	}
	n, err := exec(ctx, t.tx, `UPDATE tasks
		SET assigned_to = ?, assigned_at = ?, assigned_by = ?, updated_at = ?
		WHERE id = ?`,
		assignee, at, by, now, id)
	if err != nil {
		return false, errors.Wrap(err, "set assignment")
	}
	return n == 1, nil
}

// StartHandoff moves an in-progress task from its claimant toward a recipient:
// the claim is cleared, the task reopens assigned to the recipient and the
// handoff fields record the pending transfer.
func (t *Tx) StartHandoff(ctx context.Context, id, from, to, notes string, now time.Time) (bool, error) {
	n, err := exec(ctx, t.tx, `UPDATE tasks
		SET handoff_to = ?, handoff_from = ?, handoff_notes = ?, handoff_at = ?,
			claimed_by = '', claimed_at = NULL, status = 'open',
			assigned_to = ?, assigned_at = ?, assigned_by = ?, updated_at = ?
		WHERE id = ? AND claimed_by = ? AND status = 'in_progress' AND handoff_to = ''`,
		to, from, notes, now, to, now, from, now, id, from)
	if err != nil {
		return false, errors.Wrap(err, "start handoff")
	}
	return n == 1, nil
}

// AcceptHandoff clears the pending handoff and claims the task for its recipient.
func (t *Tx) AcceptHandoff(ctx context.Context, id, recipient string, now time.Time) (bool, error) {
	n, err := exec(ctx, t.tx, `UPDATE tasks
		SET handoff_to = '', handoff_from = '', handoff_notes = '', handoff_at = NULL,
			claimed_by = ?, claimed_at = ?, status = 'in_progress', updated_at = ?
		WHERE id = ? AND handoff_to = ? AND status = 'open' AND claimed_by = ''`,
		recipient, now, now, id, recipient)
	if err != nil {
		return false, errors.Wrap(err, "accept handoff")
	}
	return n == 1, nil
}

// DeclineHandoff clears the pending handoff and hands the assignment back to
// the initiator.
func (t *Tx) DeclineHandoff(ctx context.Context, id, recipient string, now time.Time) (bool, error) {
	n, err := exec(ctx, t.tx, `UPDATE tasks
		SET assigned_to = handoff_from, assigned_at = ?, assigned_by = ?,
			handoff_to = '', handoff_from = '', handoff_notes = '', handoff_at = NULL,
			updated_at = ?
		WHERE id = ? AND handoff_to = ? AND status = 'open'`,
		now, recipient, now, id, recipient)
	if err != nil {
		return false, errors.Wrap(err, "decline handoff")
	}
	return n == 1, nil
}

// FinishTask moves an open or in-progress task to a terminal status.
// Pending handoff fields are cleared; the claim is kept as history.
func (t *Tx) FinishTask(ctx context.Context, id string, status TaskStatus, now time.Time) (bool, error) {
	if status != StatusCompleted && status != StatusCancelled {
		return false, errors.Errorf("finish task: %q is not a terminal status", status)
	}
	var completedAt *time.Time
	if status == StatusCompleted {
		completedAt = &now
	}
	n, err := exec(ctx, t.tx, `UPDATE tasks
		SET status = ?, completed_at = ?, updated_at = ?,
			handoff_to = '', handoff_from = '', handoff_notes = '', handoff_at = NULL
		WHERE id = ? AND status IN ('open', 'in_progress')`,
		status, completedAt, now, id)
	if err != nil {
		return false, errors.Wrap(err, "finish task")
	}
	return n == 1, nil
}
