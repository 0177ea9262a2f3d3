package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const stepColumns = `id, task_id, step_number, description, assigned_to, is_completed,
	completed_by, completed_at, created_at`

// NextStepNumber returns one past the highest step number of the task.
func (t *Tx) NextStepNumber(ctx context.Context, taskID string) (int, error) {
	var max int
	err := get(ctx, t.tx, &max, `SELECT COALESCE(MAX(step_number), 0) FROM task_steps WHERE task_id = ?`, taskID)
	if err != nil {
		return 0, errors.Wrap(err, "max step number")
	}
	return max + 1, nil
}

// InsertStep writes a new step.
func (t *Tx) InsertStep(ctx context.Context, st *Step) error {
	if st.ID == "" {
		st.ID = newID()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = Now()
	}
	err := namedExec(ctx, t.tx, `INSERT INTO task_steps (`+stepColumns+`) VALUES (
		:id, :task_id, :step_number, :description, :assigned_to, :is_completed,
		:completed_by, :completed_at, :created_at)`, st)
	return errors.Wrap(err, "insert step")
}

// GetStep returns a step of the given task.
func (t *Tx) GetStep(ctx context.Context, taskID, stepID string) (*Step, error) {
	var st Step
	err := get(ctx, t.tx, &st, `SELECT `+stepColumns+` FROM task_steps WHERE id = ? AND task_id = ?`, stepID, taskID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "step %s", stepID)
		}
		return nil, errors.Wrap(err, "get step")
	}
	return &st, nil
}

// SetStepCompleted marks a step done by user at the given time, or clears it.
func (t *Tx) SetStepCompleted(ctx context.Context, stepID string, done bool, by string, now time.Time) error {
	var at *time.Time
	if done {
		at = &now
	} else {
		by = ""
	}
	_, err := exec(ctx, t.tx, `UPDATE task_steps SET is_completed = ?, completed_by = ?, completed_at = ? WHERE id = ?`,
		done, by, at, stepID)
	return errors.Wrap(err, "set step completed")
}

// CountIncompleteSteps returns how many steps of the task are still open.
func (t *Tx) CountIncompleteSteps(ctx context.Context, taskID string) (int, error) {
	var n int
	err := get(ctx, t.tx, &n, `SELECT COUNT(*) FROM task_steps WHERE task_id = ? AND is_completed = ?`, taskID, false)
	return n, errors.Wrap(err, "count incomplete steps")
}

// DeleteStep removes a step. It reports false when no such step exists.
func (t *Tx) DeleteStep(ctx context.Context, taskID, stepID string) (bool, error) {
	n, err := exec(ctx, t.tx, `DELETE FROM task_steps WHERE id = ? AND task_id = ?`, stepID, taskID)
	if err != nil {
		return false, errors.Wrap(err, "delete step")
	}
	return n == 1, nil
}

// ListSteps returns the steps of a task in checklist order.
func (t *Tx) ListSteps(ctx context.Context, taskID string) ([]Step, error) {
	return listSteps(ctx, t.tx, taskID)
}

// Steps returns the steps of a task in checklist order.
func (s *Store) Steps(ctx context.Context, taskID string) ([]Step, error) {
	return listSteps(ctx, s.db, taskID)
}

func listSteps(ctx context.Context, q sqlx.ExtContext, taskID string) ([]Step, error) {
	steps := []Step{}
	err := selectRows(ctx, q, &steps, `SELECT `+stepColumns+` FROM task_steps
		WHERE task_id = ? ORDER BY step_number, id`, taskID)
	return steps, errors.Wrap(err, "list steps")
}

// ApplyStepOrder renumbers the given steps 1..N in slice order with a single
// statement, so the checklist is never observed with gaps or duplicates.
func (t *Tx) ApplyStepOrder(ctx context.Context, taskID string, stepIDs []string) error {
	if len(stepIDs) == 0 {
		return nil
	}
	var b strings.Builder
	args := make([]any, 0, len(stepIDs)+1)
	b.WriteString(`UPDATE task_steps SET step_number = CASE id`)
	for i, id := range stepIDs {
		// Numbers are inlined so PostgreSQL types the CASE as integer.
		b.WriteString(` WHEN ? THEN ` + strconv.Itoa(i+1))
		args = append(args, id)
	}
	b.WriteString(` ELSE step_number END WHERE task_id = ?`)
	args = append(args, taskID)

	_, err := exec(ctx, t.tx, b.String(), args...)
	return errors.Wrap(err, "apply step order")
}
