package store

import (
	"context"

	"github.com/pkg/errors"
)

// AppendActivity writes one audit entry.
func (t *Tx) AppendActivity(ctx context.Context, e *ActivityEntry) error {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = Now()
	}
	if e.Details == nil {
		e.Details = JSONMap{}
	}
	err := namedExec(ctx, t.tx, `INSERT INTO task_activity_log (id, task_id, action, details, performed_by, created_at)
		VALUES (:id, :task_id, :action, :details, :performed_by, :created_at)`, e)
	return errors.Wrap(err, "append activity")
}

// Activity returns the audit trail of a task, oldest first.
func (s *Store) Activity(ctx context.Context, taskID string) ([]ActivityEntry, error) {
	entries := []ActivityEntry{}
	err := selectRows(ctx, s.db, &entries, `SELECT id, task_id, action, details, performed_by, created_at
		FROM task_activity_log WHERE task_id = ? ORDER BY created_at, id`, taskID)
	return entries, errors.Wrap(err, "list activity")
}

// AppendHandoff writes one handoff history record.
func (t *Tx) AppendHandoff(ctx context.Context, r *HandoffRecord) error {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = Now()
	}
	err := namedExec(ctx, t.tx, `INSERT INTO task_handoff_history (id, task_id, from_user, to_user, notes, created_at)
		VALUES (:id, :task_id, :from_user, :to_user, :notes, :created_at)`, r)
	return errors.Wrap(err, "append handoff")
}

// LatestHandoff returns the most recent handoff record of a task.
func (t *Tx) LatestHandoff(ctx context.Context, taskID string) (*HandoffRecord, error) {
	var r HandoffRecord
	err := get(ctx, t.tx, &r, `SELECT id, task_id, from_user, to_user, notes, created_at
		FROM task_handoff_history WHERE task_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, taskID)
	if err != nil {
		return nil, errors.Wrap(err, "latest handoff")
	}
	return &r, nil
}

// Handoffs returns the handoff history of a task, oldest first.
func (s *Store) Handoffs(ctx context.Context, taskID string) ([]HandoffRecord, error) {
	records := []HandoffRecord{}
	err := selectRows(ctx, s.db, &records, `SELECT id, task_id, from_user, to_user, notes, created_at
		FROM task_handoff_history WHERE task_id = ? ORDER BY created_at, id`, taskID)
	return records, errors.Wrap(err, "list handoffs")
}
