package pool

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/config"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/dispatch"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/policy"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

const (
	tenant  = "acme"
	manager = "mgr"
)

// recorder captures side effects handed to the notifier and learner.
type recorder struct {
	mu         sync.Mutex
	assigned   []dispatch.Assignment
	feedback   []dispatch.Feedback
	patterns   []dispatch.AssignmentPattern
	failNotify bool
}

func (r *recorder) NotifyAssigned(_ context.Context, a dispatch.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assigned = append(r.assigned, a)
	if r.failNotify {
		return errors.New("smtp down")
	}
	return nil
}

func (r *recorder) RecordFeedback(_ context.Context, f dispatch.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedback = append(r.feedback, f)
	return nil
}

func (r *recorder) LogAssignmentPattern(_ context.Context, p dispatch.AssignmentPattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, p)
	return nil
}

func (r *recorder) feedbackCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.feedback)
}

func testPolicy() policy.Policy {
	return policy.New(config.Policy{
		DefaultRole: "staff",
		Roles: map[string][]string{
			"manager": {policy.ActionAssign, policy.ActionCancel},
			"staff":   {policy.ActionComplete},
		},
		Users: map[string]string{manager: "manager"},
	})
}

// testEngine returns an engine over a fresh SQLite store with an inline
// dispatcher, so side effects are visible as soon as an operation returns.
func testEngine(t *testing.T) (*Engine, *recorder) {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, store.Options{Driver: store.DriverSQLite, DSN: filepath.Join(t.TempDir(), "pool.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	rec := &recorder{}
	e, err := New(Options{
		Store:      s,
		TenantID:   tenant,
		Policy:     testPolicy(),
		Dispatcher: dispatch.Inline{},
		Notifier:   rec,
		Learner:    rec,
	})
	require.NoError(t, err)
	require.NoError(t, e.SyncActionTypes(ctx, []store.ActionType{
		{ID: "review", Label: "Review", IsActive: true},
		{ID: "archived", Label: "Archived", IsActive: false},
	}))
	return e, rec
}

func newTask(t *testing.T, e *Engine, title string) *store.Task {
	t.Helper()
	task, err := e.CreateTask(context.Background(), "creator", NewTask{Title: title})
	require.NoError(t, err)
	return task
}

func actions(t *testing.T, e *Engine, taskID string) []string {
	t.Helper()
	entries, err := e.Activity(context.Background(), taskID)
	require.NoError(t, err)
	out := make([]string, len(entries))
	for i, en := range entries {
		out[i] = en.Action
	}
	return out
}

func TestNew(t *testing.T) {
	_, err := New(Options{TenantID: tenant, Policy: policy.AllowAll})
	assert.Error(t, err)

	s, err := store.Open(context.Background(), store.Options{DSN: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	defer s.Close()

	_, err = New(Options{Store: s, TenantID: " ", Policy: policy.AllowAll})
	assert.Error(t, err)
	_, err = New(Options{Store: s, TenantID: tenant})
	assert.Error(t, err)

	e, err := New(Options{Store: s, TenantID: tenant, Policy: policy.AllowAll})
	require.NoError(t, err)
	assert.Equal(t, tenant, e.TenantID())
}

func TestCreateTask(t *testing.T) {
	ctx := context.Background()
	e, rec := testEngine(t)

	t.Run("lands in pool", func(t *testing.T) {
		task, err := e.CreateTask(ctx, "alice", NewTask{Title: "  File 1099s  ", DueDate: "2025-04-15"})
		require.NoError(t, err)
		assert.Equal(t, "File 1099s", task.Title)
		assert.Equal(t, tenant, task.OrganizationID)
		assert.Equal(t, store.PriorityMedium, task.Priority)
		assert.True(t, task.InPool())
		assert.Equal(t, []string{store.ActionCreated}, actions(t, e, task.ID))
	})

	t.Run("with assignee notifies", func(t *testing.T) {
		task, err := e.CreateTask(ctx, "alice", NewTask{Title: "Call back", AssignTo: "bob"})
		require.NoError(t, err)
		assert.Equal(t, "bob", task.AssignedTo)
		assert.False(t, task.InPool())
		require.NotEmpty(t, rec.assigned)
		assert.Equal(t, "bob", rec.assigned[len(rec.assigned)-1].AssigneeID)
	})

	t.Run("validation", func(t *testing.T) {
		cases := map[string]NewTask{
			"empty title":    {Title: " "},
			"bad priority":   {Title: "x", Priority: "critical"},
			"bad source":     {Title: "x", SourceType: "fax"},
			"bad due date":   {Title: "x", DueDate: "15/04/2025"},
			"unknown action": {Title: "x", ActionTypeID: "nope"},
		}
		for name, in := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := e.CreateTask(ctx, "alice", in)
				assert.ErrorIs(t, err, ErrInvalid)
			})
		}
	})

	t.Run("requires identity", func(t *testing.T) {
		_, err := e.CreateTask(ctx, "", NewTask{Title: "x"})
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	e, _ := testEngine(t)
	task := newTask(t, e, "mine")

	other, err := New(Options{Store: e.store, TenantID: "globex", Policy: policy.AllowAll})
	require.NoError(t, err)

	_, err = other.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = other.Claim(ctx, task.ID, "spy")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := other.ListTasks(ctx, store.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSideEffectFailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	e, rec := testEngine(t)
	rec.failNotify = true
	task := newTask(t, e, "notify me")

	got, err := e.Assign(ctx, task.ID, "bob", manager)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.AssignedTo)
	assert.Len(t, rec.assigned, 1)
}

func TestQueuedDispatch(t *testing.T) {
	ctx := context.Background()
	e, rec := testEngine(t)
	q := dispatch.NewQueue(dispatch.QueueConfig{Workers: 2, Buffer: 16})
	require.NoError(t, q.Start(ctx))
	e.dispatch = q

	task := newTask(t, e, "queued")
	_, err := e.Assign(ctx, task.ID, "bob", manager)
	require.NoError(t, err)

	require.NoError(t, q.Stop(time.Second))
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.assigned, 1)
	assert.Len(t, rec.patterns, 1)
}
