package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/dispatch"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

func ptr[T any](v T) *T { return &v }

func suggest(t *testing.T, e *Engine, title, assignee string) *store.Suggestion {
	t.Helper()
	sg, err := e.CreateSuggestion(context.Background(), NewSuggestion{
		SourceType:     store.SourcePhoneCall,
		SourceRef:      "call-42",
		SourceMetadata: map[string]any{"caller": "+15550100"},
		Title:          title,
		AssignedTo:     assignee,
		Priority:       store.PriorityHigh,
		ClientID:       "client-1",
		AIConfidence:   ptr(0.82),
		AICategory:     "callback",
	})
	require.NoError(t, err)
	return sg
}

func TestCreateSuggestion(t *testing.T) {
	ctx := context.Background()
	e, _ := testEngine(t)

	sg := suggest(t, e, "Return call about 1040", "u1")
	assert.Equal(t, store.SuggestionPending, sg.Status)
	assert.Equal(t, tenant, sg.OrganizationID)

	pending, err := e.Suggestions(ctx, store.SuggestionPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, sg.ID, pending[0].ID)

	cases := map[string]NewSuggestion{
		"no title":         {Title: ""},
		"bad source":       {Title: "x", SourceType: "carrier_pigeon"},
		"bad priority":     {Title: "x", Priority: "whenever"},
		"bad date":         {Title: "x", DueDate: "next week"},
		"confidence above": {Title: "x", AIConfidence: ptr(1.5)},
		"confidence below": {Title: "x", AIConfidence: ptr(-0.1)},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.CreateSuggestion(ctx, in)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestApproveWithOverride(t *testing.T) {
	ctx := context.Background()
	e, rec := testEngine(t)
	sg := suggest(t, e, "Return call", "U1")

	res, err := e.ApproveSuggestion(ctx, sg.ID, "reviewer", Overrides{AssignedTo: ptr("U3")})
	require.NoError(t, err)
	assert.True(t, res.WasModified)
	assert.Equal(t, map[string]dispatch.FieldChange{"assigned_to": {From: "U1", To: "U3"}}, res.Modifications)

	task, err := e.GetTask(ctx, res.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "U3", task.AssignedTo)
	assert.Equal(t, "Return call", task.Title)
	assert.Equal(t, store.PriorityHigh, task.Priority)
	assert.Equal(t, store.SourcePhoneCall, task.SourceType)
	assert.Equal(t, "+15550100", task.SourceMetadata["caller"])
	require.NotNil(t, task.AIConfidence)
	assert.InDelta(t, 0.82, *task.AIConfidence, 1e-9)
	assert.Equal(t, []string{store.ActionCreated, store.ActionAICorrected}, actions(t, e, task.ID))

	stored, err := e.GetSuggestion(ctx, sg.ID)
	require.NoError(t, err)
	assert.Equal(t, store.SuggestionApproved, stored.Status)
	assert.Equal(t, store.ReviewModified, stored.ReviewAction)
	assert.Equal(t, res.TaskID, stored.CreatedTaskID)
	assert.Equal(t, "reviewer", stored.ReviewedBy)

	require.Equal(t, 1, rec.feedbackCount())
	fb := rec.feedback[0]
	assert.False(t, fb.WasAICorrect)
	assert.Equal(t, store.ReviewModified, fb.UserAction)
	assert.Equal(t, res.Modifications, fb.Diff)
	require.NotEmpty(t, rec.assigned)
	assert.Equal(t, "U3", rec.assigned[len(rec.assigned)-1].AssigneeID)

	t.Run("second review conflicts", func(t *testing.T) {
		_, err := e.ApproveSuggestion(ctx, sg.ID, "reviewer", Overrides{})
		assert.ErrorIs(t, err, ErrConflict)
		_, err = e.DeclineSuggestion(ctx, sg.ID, "reviewer", "", DeclineDuplicate)
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, 1, rec.feedbackCount())

		tasks, err := e.ListTasks(ctx, store.TaskFilter{})
		require.NoError(t, err)
		assert.Len(t, tasks, 1)
	})
}

func TestApproveUnchanged(t *testing.T) {
	ctx := context.Background()
	e, rec := testEngine(t)
	sg := suggest(t, e, "Send engagement letter", "")

	res, err := e.ApproveSuggestion(ctx, sg.ID, "reviewer", Overrides{
		Title:    ptr("  Send engagement letter "),
		Priority: ptr(string(store.PriorityHigh)),
	})
	require.NoError(t, err)
	assert.False(t, res.WasModified)
	assert.Empty(t, res.Modifications)
	assert.True(t, res.Task.InPool())
	assert.Equal(t, []string{store.ActionCreated, store.ActionAIConfirmed}, actions(t, e, res.TaskID))

	require.Equal(t, 1, rec.feedbackCount())
	assert.True(t, rec.feedback[0].WasAICorrect)
	assert.Equal(t, store.ReviewApproved, rec.feedback[0].UserAction)
	assert.Empty(t, rec.assigned)
}

func TestApproveValidation(t *testing.T) {
	ctx := context.Background()
	e, _ := testEngine(t)
	sg := suggest(t, e, "x", "")

	cases := map[string]Overrides{
		"blank title":  {Title: ptr(" ")},
		"bad priority": {Priority: ptr("asap")},
		"bad due date": {DueDate: ptr("2025-13-01")},
	}
	for name, ov := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.ApproveSuggestion(ctx, sg.ID, "reviewer", ov)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	_, err := e.ApproveSuggestion(ctx, "missing", "reviewer", Overrides{})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.ApproveSuggestion(ctx, sg.ID, "", Overrides{})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	stored, err := e.GetSuggestion(ctx, sg.ID)
	require.NoError(t, err)
	assert.Equal(t, store.SuggestionPending, stored.Status)
}

func TestDeclineSuggestion(t *testing.T) {
	ctx := context.Background()
	e, rec := testEngine(t)
	sg := suggest(t, e, "Spam call", "U1")

	_, err := e.DeclineSuggestion(ctx, sg.ID, "reviewer", "robocall", "spam")
	assert.ErrorIs(t, err, ErrInvalid)

	res, err := e.DeclineSuggestion(ctx, sg.ID, "reviewer", "robocall", DeclineNotNeeded)
	require.NoError(t, err)
	assert.Equal(t, DeclineNotNeeded, res.DeclineCategory)

	stored, err := e.GetSuggestion(ctx, sg.ID)
	require.NoError(t, err)
	assert.Equal(t, store.SuggestionDeclined, stored.Status)
	assert.Equal(t, "robocall", stored.DeclineReason)
	assert.Equal(t, DeclineNotNeeded, stored.DeclineCategory)
	assert.Empty(t, stored.CreatedTaskID)

	require.Equal(t, 1, rec.feedbackCount())
	assert.Equal(t, store.ReviewDeclined, rec.feedback[0].UserAction)
	assert.Equal(t, DeclineNotNeeded, rec.feedback[0].CorrectionType)

	_, err = e.ApproveSuggestion(ctx, sg.ID, "reviewer", Overrides{})
	assert.ErrorIs(t, err, ErrConflict)

	tasks, err := e.ListTasks(ctx, store.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestApplyOverrides(t *testing.T) {
	sg := &store.Suggestion{
		SuggestedTitle:      "t",
		SuggestedAssignedTo: "a",
		SuggestedPriority:   store.PriorityLow,
	}
	final, diff := applyOverrides(sg, Overrides{
		AssignedTo: ptr("a"),
		Priority:   ptr("urgent"),
		ClientID:   ptr("c9"),
	})
	assert.Equal(t, store.PriorityUrgent, final.Priority)
	assert.Equal(t, "c9", final.ClientID)
	assert.Equal(t, map[string]dispatch.FieldChange{
		"priority":  {From: "low", To: "urgent"},
		"client_id": {From: "", To: "c9"},
	}, diff)
}
