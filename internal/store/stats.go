package store

import (
	"context"
	"maps"
	"time"

	"github.com/pkg/errors"
)

// Stats is a point-in-time summary of an organization's tasks.
type Stats struct {
	ByStatus       map[TaskStatus]int `json:"by_status"`
	Pool           int                `json:"pool"`
	MyClaimed      int                `json:"my_claimed"`
	Overdue        int                `json:"overdue"`
	ByActionType   map[string]int     `json:"by_action_type"`
	ByPriority     map[Priority]int   `json:"by_priority"`
	CompletedToday int                `json:"completed_today"`
}

// Clone returns a deep copy of s.
func (s *Stats) Clone() *Stats {
	c := *s
	c.ByStatus = maps.Clone(s.ByStatus)
	c.ByActionType = maps.Clone(s.ByActionType)
	c.ByPriority = maps.Clone(s.ByPriority)
	return &c
}

type countRow struct {
	Key string `db:"k"`
	N   int    `db:"n"`
}

// Stats computes the dashboard counts for user on the UTC day containing today.
func (s *Store) Stats(ctx context.Context, orgID, user string, today time.Time) (*Stats, error) {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	st := &Stats{
		ByStatus:     map[TaskStatus]int{},
		ByActionType: map[string]int{},
		ByPriority:   map[Priority]int{},
	}

	var rows []countRow
	if err := selectRows(ctx, s.db, &rows, `SELECT status AS k, COUNT(*) AS n FROM tasks
		WHERE organization_id = ? GROUP BY status`, orgID); err != nil {
		return nil, errors.Wrap(err, "count by status")
	}
	for _, r := range rows {
		st.ByStatus[TaskStatus(r.Key)] = r.N
	}

	counts := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&st.Pool, `SELECT COUNT(*) FROM tasks WHERE organization_id = ?
			AND status = 'open' AND claimed_by = '' AND assigned_to = ''`, []any{orgID}},
		{&st.MyClaimed, `SELECT COUNT(*) FROM tasks WHERE organization_id = ?
			AND claimed_by = ? AND status = 'in_progress'`, []any{orgID, user}},
		{&st.Overdue, `SELECT COUNT(*) FROM tasks WHERE organization_id = ?
			AND due_date <> '' AND due_date < ? AND status <> 'completed'`, []any{orgID, day.Format(DateLayout)}},
		{&st.CompletedToday, `SELECT COUNT(*) FROM tasks WHERE organization_id = ?
			AND status = 'completed' AND completed_at >= ? AND completed_at < ?`, []any{orgID, day, day.AddDate(0, 0, 1)}},
	}
	for _, c := range counts {
		if err := get(ctx, s.db, c.dest, c.query, c.args...); err != nil {
			return nil, errors.Wrap(err, "count tasks")
		}
	}

	rows = nil
	if err := selectRows(ctx, s.db, &rows, `SELECT action_type_id AS k, COUNT(*) AS n FROM tasks
		WHERE organization_id = ? AND status = 'open' AND claimed_by = '' AND action_type_id <> ''
		GROUP BY action_type_id`, orgID); err != nil {
		return nil, errors.Wrap(err, "count by action type")
	}
	for _, r := range rows {
		st.ByActionType[r.Key] = r.N
	}

	rows = nil
	if err := selectRows(ctx, s.db, &rows, `SELECT priority AS k, COUNT(*) AS n FROM tasks
		WHERE organization_id = ? AND status = 'open' GROUP BY priority`, orgID); err != nil {
		return nil, errors.Wrap(err, "count by priority")
	}
	for _, r := range rows {
		st.ByPriority[Priority(r.Key)] = r.N
	}

	return st, nil
}
