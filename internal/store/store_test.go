package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrg = "org-test"

// testStore creates a temporary SQLite store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), Options{Driver: DriverSQLite, DSN: dbPath})
	require.NoError(t, err, "open store")
	t.Cleanup(func() { s.Close() })
	return s
}

func createTask(t *testing.T, s *Store, mutate func(*Task)) *Task {
	t.Helper()
	task := &Task{OrganizationID: testOrg, Title: "Call Mrs. Patel"}
	if mutate != nil {
		mutate(task)
	}
	require.NoError(t, s.InTx(context.Background(), func(tx *Tx) error {
		return tx.CreateTask(context.Background(), task)
	}))
	return task
}

func TestOpen(t *testing.T) {
	t.Run("creates database file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")
		s, err := Open(context.Background(), Options{DSN: dbPath})
		require.NoError(t, err)
		defer s.Close()

		_, err = os.Stat(dbPath)
		assert.NoError(t, err)
		assert.Equal(t, DriverSQLite, s.Driver())
	})

	t.Run("reopen is idempotent", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")
		s, err := Open(context.Background(), Options{DSN: dbPath})
		require.NoError(t, err)
		require.NoError(t, s.Close())

		s, err = Open(context.Background(), Options{DSN: dbPath})
		require.NoError(t, err)
		s.Close()
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		_, err := Open(context.Background(), Options{Driver: "mysql", DSN: "x"})
		assert.Error(t, err)
	})
}

func TestDataSource(t *testing.T) {
	assert.Equal(t, "a.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		dataSource(DriverSQLite, "a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		dataSource(DriverSQLite, "file:a.db?mode=rwc"))
	assert.Equal(t, "a.db?_pragma=busy_timeout(1)", dataSource(DriverSQLite, "a.db?_pragma=busy_timeout(1)"))
	assert.Equal(t, "postgres://x", dataSource(DriverPostgres, "postgres://x"))
}

func TestTasks(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	t.Run("create fills defaults", func(t *testing.T) {
		task := createTask(t, s, nil)
		got, err := s.GetTask(ctx, testOrg, task.ID)
		require.NoError(t, err)
		assert.Equal(t, "Call Mrs. Patel", got.Title)
		assert.Equal(t, StatusOpen, got.Status)
		assert.Equal(t, PriorityMedium, got.Priority)
		assert.Equal(t, SourceManual, got.SourceType)
		assert.Empty(t, got.ClaimedBy)
		assert.Nil(t, got.ClaimedAt)
		assert.True(t, got.InPool())
		assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)
	})

	t.Run("json and nullable columns round trip", func(t *testing.T) {
		conf := 0.82
		task := createTask(t, s, func(tk *Task) {
			tk.SourceType = SourcePhoneCall
			tk.SourceMetadata = JSONMap{"call_id": "c-1"}
			tk.AIConfidence = &conf
			tk.DueDate = "2025-01-02"
		})
		got, err := s.GetTask(ctx, testOrg, task.ID)
		require.NoError(t, err)
		assert.Equal(t, "c-1", got.SourceMetadata["call_id"])
		require.NotNil(t, got.AIConfidence)
		assert.InDelta(t, 0.82, *got.AIConfidence, 1e-9)
		assert.Equal(t, "2025-01-02", got.DueDate)
		assert.Empty(t, got.AIExtractedData)
	})

	t.Run("get is scoped to organization", func(t *testing.T) {
		task := createTask(t, s, nil)
		_, err := s.GetTask(ctx, "other-org", task.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.GetTask(ctx, testOrg, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("claim is conditional", func(t *testing.T) {
		task := createTask(t, s, nil)
		now := Now()
		var first, second bool
		require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
			var err error
			if first, err = tx.ClaimTask(ctx, task.ID, "alice", now); err != nil {
				return err
			}
			second, err = tx.ClaimTask(ctx, task.ID, "bob", now)
			return err
		}))
		assert.True(t, first)
		assert.False(t, second)

		got, err := s.GetTask(ctx, testOrg, task.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.ClaimedBy)
		assert.Equal(t, StatusInProgress, got.Status)
		require.NotNil(t, got.ClaimedAt)
		assert.True(t, got.ClaimedAt.Equal(now))
	})

	t.Run("release requires claimant", func(t *testing.T) {
		task := createTask(t, s, func(tk *Task) {
			tk.Status = StatusInProgress
			tk.ClaimedBy = "alice"
		})
		var ok bool
		require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
			var err error
			ok, err = tx.ReleaseTask(ctx, task.ID, "bob", Now())
			return err
		}))
		assert.False(t, ok)

		require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
			var err error
			ok, err = tx.ReleaseTask(ctx, task.ID, "alice", Now())
			return err
		}))
		assert.True(t, ok)
		got, _ := s.GetTask(ctx, testOrg, task.ID)
		assert.True(t, got.InPool())
	})

	t.Run("finish only from active states", func(t *testing.T) {
		task := createTask(t, s, nil)
		var ok bool
		require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
			var err error
			ok, err = tx.FinishTask(ctx, task.ID, StatusCompleted, Now())
			return err
		}))
		assert.True(t, ok)

		require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
			var err error
			ok, err = tx.FinishTask(ctx, task.ID, StatusCancelled, Now())
			return err
		}))
		assert.False(t, ok)

		got, _ := s.GetTask(ctx, testOrg, task.ID)
		assert.Equal(t, StatusCompleted, got.Status)
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("rollback on error", func(t *testing.T) {
		task := &Task{OrganizationID: testOrg, Title: "rolled back"}
		err := s.InTx(ctx, func(tx *Tx) error {
			if err := tx.CreateTask(ctx, task); err != nil {
				return err
			}
			return ErrNotFound
		})
		require.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetTask(ctx, testOrg, task.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListTasks(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	createTask(t, s, func(tk *Task) { tk.Title = "pool" })
	createTask(t, s, func(tk *Task) { tk.Title = "assigned"; tk.AssignedTo = "bob" })
	createTask(t, s, func(tk *Task) { tk.Title = "claimed"; tk.Status = StatusInProgress; tk.ClaimedBy = "alice" })
	createTask(t, s, func(tk *Task) { tk.Title = "foreign"; tk.OrganizationID = "elsewhere" })

	all, err := s.ListTasks(ctx, testOrg, TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	pool, err := s.ListTasks(ctx, testOrg, TaskFilter{PoolOnly: true})
	require.NoError(t, err)
	require.Len(t, pool, 1)
	assert.Equal(t, "pool", pool[0].Title)

	mine, err := s.ListTasks(ctx, testOrg, TaskFilter{ClaimedBy: "alice"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "claimed", mine[0].Title)

	limited, err := s.ListTasks(ctx, testOrg, TaskFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSteps(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	task := createTask(t, s, nil)

	var ids []string
	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		for _, d := range []string{"a", "b", "c"} {
			n, err := tx.NextStepNumber(ctx, task.ID)
			if err != nil {
				return err
			}
			st := &Step{TaskID: task.ID, StepNumber: n, Description: d}
			if err := tx.InsertStep(ctx, st); err != nil {
				return err
			}
			ids = append(ids, st.ID)
		}
		return nil
	}))

	steps, err := s.Steps(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	for i, st := range steps {
		assert.Equal(t, i+1, st.StepNumber)
	}

	t.Run("apply order renumbers in one statement", func(t *testing.T) {
		require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
			return tx.ApplyStepOrder(ctx, task.ID, []string{ids[2], ids[0], ids[1]})
		}))
		steps, err := s.Steps(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a", "b"}, []string{steps[0].Description, steps[1].Description, steps[2].Description})
	})

	t.Run("completion and count", func(t *testing.T) {
		var open int
		require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
			if err := tx.SetStepCompleted(ctx, ids[0], true, "alice", Now()); err != nil {
				return err
			}
			var err error
			open, err = tx.CountIncompleteSteps(ctx, task.ID)
			return err
		}))
		assert.Equal(t, 2, open)

		var st *Step
		require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
			var err error
			st, err = tx.GetStep(ctx, task.ID, ids[0])
			return err
		}))
		assert.True(t, st.IsCompleted)
		assert.Equal(t, "alice", st.CompletedBy)
		assert.NotNil(t, st.CompletedAt)
	})

	t.Run("delete reports missing", func(t *testing.T) {
		var ok bool
		require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
			var err error
			ok, err = tx.DeleteStep(ctx, task.ID, "nope")
			return err
		}))
		assert.False(t, ok)
	})
}

func TestSuggestionReviewIsConditional(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	sg := &Suggestion{OrganizationID: testOrg, SourceType: SourceEmail, SuggestedTitle: "Send W-9"}
	require.NoError(t, s.InTx(ctx, func(tx *Tx) error { return tx.InsertSuggestion(ctx, sg) }))

	var approved, declined bool
	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		var err error
		approved, err = tx.ApproveSuggestion(ctx, sg.ID, "alice", ReviewApproved, JSONMap{}, "task-1", Now())
		if err != nil {
			return err
		}
		declined, err = tx.DeclineSuggestion(ctx, sg.ID, "bob", "dup", "duplicate", Now())
		return err
	}))
	assert.True(t, approved)
	assert.False(t, declined)

	got, err := s.GetSuggestion(ctx, testOrg, sg.ID)
	require.NoError(t, err)
	assert.Equal(t, SuggestionApproved, got.Status)
	assert.Equal(t, "task-1", got.CreatedTaskID)
	assert.Equal(t, "alice", got.ReviewedBy)

	pending, err := s.ListSuggestions(ctx, testOrg, SuggestionPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestActivityAndHandoffs(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	task := createTask(t, s, nil)

	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		for _, a := range []string{ActionCreated, ActionClaimed, ActionHandedOff} {
			if err := tx.AppendActivity(ctx, &ActivityEntry{TaskID: task.ID, Action: a, PerformedBy: "alice"}); err != nil {
				return err
			}
		}
		return tx.AppendHandoff(ctx, &HandoffRecord{TaskID: task.ID, FromUser: "alice", ToUser: "bob", Notes: "n"})
	}))

	entries, err := s.Activity(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ActionCreated, entries[0].Action)
	assert.Equal(t, ActionHandedOff, entries[2].Action)

	records, err := s.Handoffs(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "bob", records[0].ToUser)
}

func TestActionTypes(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	require.NoError(t, s.UpsertActionTypes(ctx, []ActionType{{ID: "callback", Label: "Call", IsActive: true}}))
	require.NoError(t, s.UpsertActionTypes(ctx, []ActionType{{ID: "callback", Label: "Call back", IsActive: true}}))

	types, err := s.ListActionTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "Call back", types[0].Label)
	assert.True(t, types[0].IsActive)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	today := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	done := today.Add(-time.Hour)
	yesterday := today.Add(-24 * time.Hour)

	createTask(t, s, func(tk *Task) { tk.ActionTypeID = "callback"; tk.Priority = PriorityHigh })
	createTask(t, s, func(tk *Task) { tk.DueDate = "2025-03-01" })
	createTask(t, s, func(tk *Task) { tk.Status = StatusInProgress; tk.ClaimedBy = "alice" })
	createTask(t, s, func(tk *Task) { tk.Status = StatusCompleted; tk.CompletedAt = &done; tk.DueDate = "2025-03-01" })
	createTask(t, s, func(tk *Task) { tk.Status = StatusCompleted; tk.CompletedAt = &yesterday })

	st, err := s.Stats(ctx, testOrg, "alice", today)
	require.NoError(t, err)
	assert.Equal(t, 2, st.ByStatus[StatusOpen])
	assert.Equal(t, 1, st.ByStatus[StatusInProgress])
	assert.Equal(t, 2, st.ByStatus[StatusCompleted])
	assert.Equal(t, 2, st.Pool)
	assert.Equal(t, 1, st.MyClaimed)
	assert.Equal(t, 1, st.Overdue)
	assert.Equal(t, 1, st.ByActionType["callback"])
	assert.Equal(t, 1, st.ByPriority[PriorityHigh])
	assert.Equal(t, 1, st.ByPriority[PriorityMedium])
	assert.Equal(t, 1, st.CompletedToday)
}
