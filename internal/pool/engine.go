// Package pool implements the shared task pool: claiming, assignment,
// handoffs, completion with routing, step checklists and the AI suggestion
// review loop. Every state change is written together with its activity
// entry in one store transaction.
package pool

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/dispatch"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/logging"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/policy"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

// Options configures an Engine.
type Options struct {
	Store    *store.Store
	TenantID string
	Policy   policy.Policy

	// Optional collaborators. Nil values get logging implementations and an
	// inline dispatcher.
	Dispatcher dispatch.Dispatcher
	Notifier   dispatch.Notifier
	Learner    dispatch.Learner

	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time

	// StatsCacheTTL caches Stats results per user. Zero disables caching.
	StatsCacheTTL time.Duration
}

// Engine is the task pool service for one tenant.
type Engine struct {
	store    *store.Store
	tenant   string
	policy   policy.Policy
	dispatch dispatch.Dispatcher
	notifier dispatch.Notifier
	learner  dispatch.Learner
	clock    func() time.Time
	log      *logrus.Entry

	statsTTL time.Duration
	statsMu  sync.Mutex
	stats    map[string]cachedStats
}

// New validates options and returns an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("pool: store is required")
	}
	if strings.TrimSpace(opts.TenantID) == "" {
		return nil, errors.New("pool: tenant id is required")
	}
	if opts.Policy == nil {
		return nil, errors.New("pool: policy is required")
	}

	e := &Engine{
		store:    opts.Store,
		tenant:   opts.TenantID,
		policy:   opts.Policy,
		dispatch: opts.Dispatcher,
		notifier: opts.Notifier,
		learner:  opts.Learner,
		clock:    opts.Clock,
		log:      logging.For("pool").WithField("tenant", opts.TenantID),
		statsTTL: opts.StatsCacheTTL,
		stats:    make(map[string]cachedStats),
	}
	if e.dispatch == nil {
		e.dispatch = dispatch.Inline{}
	}
	if e.notifier == nil {
		e.notifier = dispatch.NewLogNotifier()
	}
	if e.learner == nil {
		e.learner = dispatch.NewLogLearner()
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	return e, nil
}

// TenantID returns the organization the engine operates on.
func (e *Engine) TenantID() string {
	return e.tenant
}

func (e *Engine) now() time.Time {
	return store.Normalize(e.clock())
}

func requireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return errors.Wrap(ErrUnauthenticated, "no caller identity")
	}
	return nil
}

// loadTask reads a task of this tenant inside tx.
func (e *Engine) loadTask(ctx context.Context, tx *store.Tx, id string) (*store.Task, error) {
	t, err := tx.GetTask(ctx, e.tenant, id)
	return t, translate(err)
}

func (e *Engine) logActivity(ctx context.Context, tx *store.Tx, taskID, action, actor string, now time.Time, details store.JSONMap) error {
	return tx.AppendActivity(ctx, &store.ActivityEntry{
		TaskID:      taskID,
		Action:      action,
		Details:     details,
		PerformedBy: actor,
		CreatedAt:   now,
	})
}

// insertTask writes a new task of this tenant and its "created" entry.
func (e *Engine) insertTask(ctx context.Context, tx *store.Tx, t *store.Task, actor string, now time.Time, details store.JSONMap) error {
	t.OrganizationID = e.tenant
	t.CreatedBy = actor
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := tx.CreateTask(ctx, t); err != nil {
		return err
	}
	return e.logActivity(ctx, tx, t.ID, store.ActionCreated, actor, now, details)
}

func (e *Engine) invalidateStats() {
	if e.statsTTL <= 0 {
		return
	}
	e.statsMu.Lock()
	e.stats = make(map[string]cachedStats)
	e.statsMu.Unlock()
}

// notifyAssigned enqueues the assignment notification and routing signal.
func (e *Engine) notifyAssigned(t *store.Task, actor, action string, details map[string]any) {
	if t.AssignedTo != "" {
		a := dispatch.Assignment{
			TaskID:     t.ID,
			Title:      t.Title,
			AssigneeID: t.AssignedTo,
			ActorID:    actor,
			ClientID:   t.ClientID,
		}
		e.dispatch.Dispatch("notify_assigned", func(ctx context.Context) error {
			return e.notifier.NotifyAssigned(ctx, a)
		})
	}
	p := dispatch.AssignmentPattern{TaskID: t.ID, Action: action, ActorID: actor, Details: details}
	e.dispatch.Dispatch("assignment_pattern", func(ctx context.Context) error {
		return e.learner.LogAssignmentPattern(ctx, p)
	})
}

// validDate checks a YYYY-MM-DD calendar date. Empty is allowed.
func validDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(store.DateLayout, s); err != nil {
		return errors.Wrapf(ErrInvalid, "due date %q must be YYYY-MM-DD", s)
	}
	return nil
}

// NewTask holds the fields of a manually created task.
type NewTask struct {
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Priority        store.Priority   `json:"priority"`
	ActionTypeID    string           `json:"action_type_id"`
	ClientID        string           `json:"client_id"`
	AssignTo        string           `json:"assign_to"`
	DueDate         string           `json:"due_date"`
	SourceType      store.SourceType `json:"source_type"`
	SourceMetadata  map[string]any   `json:"source_metadata"`
	AIConfidence    *float64         `json:"ai_confidence"`
	AIExtractedData map[string]any   `json:"ai_extracted_data"`
}

// CreateTask adds a task to the pool, or directly to an assignee's queue.
func (e *Engine) CreateTask(ctx context.Context, actor string, in NewTask) (*store.Task, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errors.Wrap(ErrInvalid, "title is required")
	}
	if in.Priority == "" {
		in.Priority = store.PriorityMedium
	}
	if !store.ValidPriority(in.Priority) {
		return nil, errors.Wrapf(ErrInvalid, "unknown priority %q", in.Priority)
	}
	if in.SourceType == "" {
		in.SourceType = store.SourceManual
	}
	if !store.ValidSource(in.SourceType) {
		return nil, errors.Wrapf(ErrInvalid, "unknown source type %q", in.SourceType)
	}
	if err := validDate(in.DueDate); err != nil {
		return nil, err
	}

	now := e.now()
	task := &store.Task{
		Title:           title,
		Description:     in.Description,
		Status:          store.StatusOpen,
		Priority:        in.Priority,
		ActionTypeID:    in.ActionTypeID,
		ClientID:        in.ClientID,
		DueDate:         in.DueDate,
		SourceType:      in.SourceType,
		SourceMetadata:  in.SourceMetadata,
		AIConfidence:    in.AIConfidence,
		AIExtractedData: in.AIExtractedData,
	}
	details := store.JSONMap{}
	if in.AssignTo != "" {
		task.AssignedTo = in.AssignTo
		task.AssignedAt = &now
		task.AssignedBy = actor
		details["assigned_to"] = in.AssignTo
	}

	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		if in.ActionTypeID != "" {
			if _, err := tx.GetActionType(ctx, in.ActionTypeID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return errors.Wrapf(ErrInvalid, "unknown action type %q", in.ActionTypeID)
				}
				return err
			}
		}
		return e.insertTask(ctx, tx, task, actor, now, details)
	})
	if err != nil {
		return nil, err
	}

	e.invalidateStats()
	e.log.WithFields(logrus.Fields{"task": task.ID, "actor": actor}).Debug("task created")
	if task.AssignedTo != "" {
		e.notifyAssigned(task, actor, store.ActionAssigned, map[string]any{"assigned_to": task.AssignedTo})
	}
	return task, nil
}

// GetTask returns one task of the tenant.
func (e *Engine) GetTask(ctx context.Context, id string) (*store.Task, error) {
	t, err := e.store.GetTask(ctx, e.tenant, id)
	return t, translate(err)
}

// ListTasks returns tasks of the tenant.
func (e *Engine) ListTasks(ctx context.Context, f store.TaskFilter) ([]store.Task, error) {
	return e.store.ListTasks(ctx, e.tenant, f)
}

// Activity returns the audit trail of a task.
func (e *Engine) Activity(ctx context.Context, taskID string) ([]store.ActivityEntry, error) {
	if _, err := e.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return e.store.Activity(ctx, taskID)
}

// Handoffs returns the handoff history of a task.
func (e *Engine) Handoffs(ctx context.Context, taskID string) ([]store.HandoffRecord, error) {
	if _, err := e.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return e.store.Handoffs(ctx, taskID)
}

// SyncActionTypes makes the given routing categories available and active.
func (e *Engine) SyncActionTypes(ctx context.Context, types []store.ActionType) error {
	return e.store.UpsertActionTypes(ctx, types)
}

// ActionTypes lists routing categories.
func (e *Engine) ActionTypes(ctx context.Context) ([]store.ActionType, error) {
	return e.store.ListActionTypes(ctx)
}
