package pool

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/dispatch"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

// Decline categories accepted by DeclineSuggestion.
const (
	DeclineNotNeeded     = "not_needed"
	DeclineDuplicate     = "duplicate"
	DeclineWrongType     = "wrong_type"
	DeclineWrongAssignee = "wrong_assignee"
	DeclineWrongClient   = "wrong_client"
	DeclineOther         = "other"
)

var declineCategories = map[string]bool{
	DeclineNotNeeded:     true,
	DeclineDuplicate:     true,
	DeclineWrongType:     true,
	DeclineWrongAssignee: true,
	DeclineWrongClient:   true,
	DeclineOther:         true,
}

// NewSuggestion is a machine-proposed task handed in by an upstream producer.
type NewSuggestion struct {
	SourceType      store.SourceType `json:"source_type"`
	SourceRef       string           `json:"source_ref"`
	SourceMetadata  map[string]any   `json:"source_metadata"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	AssignedTo      string           `json:"assigned_to"`
	Priority        store.Priority   `json:"priority"`
	DueDate         string           `json:"due_date"`
	ClientID        string           `json:"client_id"`
	ActionTypeID    string           `json:"action_type_id"`
	AIConfidence    *float64         `json:"ai_confidence"`
	AICategory      string           `json:"ai_category"`
	AIExtractedData map[string]any   `json:"ai_extracted_data"`
}

// Overrides are reviewer edits applied on approval. Nil fields keep the
// suggested value.
type Overrides struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	AssignedTo   *string `json:"assigned_to,omitempty"`
	Priority     *string `json:"priority,omitempty"`
	DueDate      *string `json:"due_date,omitempty"`
	ClientID     *string `json:"client_id,omitempty"`
	ActionTypeID *string `json:"action_type_id,omitempty"`
}

// ApprovalResult is returned by ApproveSuggestion.
type ApprovalResult struct {
	TaskID        string                          `json:"task_id"`
	Task          *store.Task                     `json:"task"`
	WasModified   bool                            `json:"was_modified"`
	Modifications map[string]dispatch.FieldChange `json:"modifications"`
}

// DeclineResult is returned by DeclineSuggestion.
type DeclineResult struct {
	DeclineCategory string `json:"decline_category"`
}

// CreateSuggestion records a pending suggestion for review.
func (e *Engine) CreateSuggestion(ctx context.Context, in NewSuggestion) (*store.Suggestion, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, errors.Wrap(ErrInvalid, "suggested title is required")
	}
	if in.SourceType == "" {
		in.SourceType = store.SourceManual
	}
	if !store.ValidSource(in.SourceType) {
		return nil, errors.Wrapf(ErrInvalid, "unknown source type %q", in.SourceType)
	}
	if in.Priority == "" {
		in.Priority = store.PriorityMedium
	}
	if !store.ValidPriority(in.Priority) {
		return nil, errors.Wrapf(ErrInvalid, "unknown priority %q", in.Priority)
	}
	if err := validDate(in.DueDate); err != nil {
		return nil, err
	}
	if in.AIConfidence != nil && (*in.AIConfidence < 0 || *in.AIConfidence > 1) {
		return nil, errors.Wrap(ErrInvalid, "ai confidence must be within [0, 1]")
	}

	sg := &store.Suggestion{
		OrganizationID:        e.tenant,
		SourceType:            in.SourceType,
		SourceRef:             in.SourceRef,
		SourceMetadata:        in.SourceMetadata,
		SuggestedTitle:        strings.TrimSpace(in.Title),
		SuggestedDescription:  in.Description,
		SuggestedAssignedTo:   in.AssignedTo,
		SuggestedPriority:     in.Priority,
		SuggestedDueDate:      in.DueDate,
		SuggestedClientID:     in.ClientID,
		SuggestedActionTypeID: in.ActionTypeID,
		AIConfidence:          in.AIConfidence,
		AICategory:            in.AICategory,
		AIExtractedData:       in.AIExtractedData,
		Status:                store.SuggestionPending,
		CreatedAt:             e.now(),
	}
	if err := e.store.InTx(ctx, func(tx *store.Tx) error { return tx.InsertSuggestion(ctx, sg) }); err != nil {
		return nil, err
	}
	return sg, nil
}

// Suggestions lists suggestions of the tenant; an empty status lists all.
func (e *Engine) Suggestions(ctx context.Context, status store.SuggestionStatus) ([]store.Suggestion, error) {
	return e.store.ListSuggestions(ctx, e.tenant, status)
}

// GetSuggestion returns one suggestion of the tenant.
func (e *Engine) GetSuggestion(ctx context.Context, id string) (*store.Suggestion, error) {
	sg, err := e.store.GetSuggestion(ctx, e.tenant, id)
	return sg, translate(err)
}

// ApproveSuggestion turns a pending suggestion into a task, applying the
// reviewer's overrides. Fields that differ from the suggestion are recorded
// as modifications and reported to the learner.
func (e *Engine) ApproveSuggestion(ctx context.Context, id, actor string, ov Overrides) (*ApprovalResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if ov.Priority != nil && !store.ValidPriority(store.Priority(*ov.Priority)) {
		return nil, errors.Wrapf(ErrInvalid, "unknown priority %q", *ov.Priority)
	}
	if ov.DueDate != nil {
		if err := validDate(*ov.DueDate); err != nil {
			return nil, err
		}
	}
	if ov.Title != nil && strings.TrimSpace(*ov.Title) == "" {
		return nil, errors.Wrap(ErrInvalid, "title cannot be empty")
	}
	now := e.now()

	res := &ApprovalResult{TaskID: store.NewID()}
	var sg *store.Suggestion
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		sg, err = tx.GetSuggestion(ctx, e.tenant, id)
		if err != nil {
			return translate(err)
		}
		if sg.Status != store.SuggestionPending {
			return errors.Wrapf(ErrConflict, "suggestion %s is already %s", id, sg.Status)
		}

		final, diff := applyOverrides(sg, ov)
		res.Modifications = diff
		res.WasModified = len(diff) > 0
		reviewAction, logAction := store.ReviewApproved, store.ActionAIConfirmed
		if res.WasModified {
			reviewAction, logAction = store.ReviewModified, store.ActionAICorrected
		}

		ok, err := tx.ApproveSuggestion(ctx, id, actor, reviewAction, diffJSON(diff), res.TaskID, now)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrConflict, "suggestion %s was reviewed concurrently", id)
		}

		task := &store.Task{
			ID:              res.TaskID,
			Title:           final.Title,
			Description:     final.Description,
			Status:          store.StatusOpen,
			Priority:        final.Priority,
			ActionTypeID:    final.ActionTypeID,
			ClientID:        final.ClientID,
			DueDate:         final.DueDate,
			SourceType:      sg.SourceType,
			SourceMetadata:  sg.SourceMetadata,
			AIConfidence:    sg.AIConfidence,
			AIExtractedData: sg.AIExtractedData,
		}
		if final.AssignedTo != "" {
			task.AssignedTo = final.AssignedTo
			task.AssignedAt = &now
			task.AssignedBy = actor
		}
		if err := e.insertTask(ctx, tx, task, actor, now, store.JSONMap{"suggestion_id": id}); err != nil {
			return err
		}
		err = e.logActivity(ctx, tx, task.ID, logAction, actor, now, store.JSONMap{
			"suggestion_id": id,
			"modifications": diffJSON(diff),
		})
		if err != nil {
			return err
		}
		res.Task = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.invalidateStats()
	e.log.WithFields(logrus.Fields{"suggestion": id, "task": res.TaskID, "modified": res.WasModified}).Debug("suggestion approved")

	fb := dispatch.Feedback{
		SuggestionID: id,
		TaskID:       res.TaskID,
		UserAction:   store.ReviewApproved,
		WasAICorrect: !res.WasModified,
		Diff:         res.Modifications,
	}
	if res.WasModified {
		fb.UserAction = store.ReviewModified
		fb.CorrectionType = store.ReviewModified
	}
	e.dispatch.Dispatch("suggestion_feedback", func(ctx context.Context) error {
		return e.learner.RecordFeedback(ctx, fb)
	})
	if res.Task.AssignedTo != "" {
		e.notifyAssigned(res.Task, actor, store.ActionAssigned, map[string]any{"suggestion_id": id})
	}
	return res, nil
}

// DeclineSuggestion rejects a pending suggestion with a categorized reason.
func (e *Engine) DeclineSuggestion(ctx context.Context, id, actor, reason, category string) (*DeclineResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !declineCategories[category] {
		return nil, errors.Wrapf(ErrInvalid, "unknown decline category %q", category)
	}
	now := e.now()

	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		sg, err := tx.GetSuggestion(ctx, e.tenant, id)
		if err != nil {
			return translate(err)
		}
		if sg.Status != store.SuggestionPending {
			return errors.Wrapf(ErrConflict, "suggestion %s is already %s", id, sg.Status)
		}
		ok, err := tx.DeclineSuggestion(ctx, id, actor, reason, category, now)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrConflict, "suggestion %s was reviewed concurrently", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{"suggestion": id, "category": category}).Debug("suggestion declined")
	fb := dispatch.Feedback{
		SuggestionID:     id,
		UserAction:       store.ReviewDeclined,
		WasAICorrect:     false,
		CorrectionType:   category,
		CorrectionReason: reason,
	}
	e.dispatch.Dispatch("suggestion_feedback", func(ctx context.Context) error {
		return e.learner.RecordFeedback(ctx, fb)
	})
	return &DeclineResult{DeclineCategory: category}, nil
}

type taskFields struct {
	Title        string
	Description  string
	AssignedTo   string
	Priority     store.Priority
	DueDate      string
	ClientID     string
	ActionTypeID string
}

// applyOverrides merges reviewer edits into the suggested fields and returns
// the final values with a per-field diff of what actually changed.
func applyOverrides(sg *store.Suggestion, ov Overrides) (taskFields, map[string]dispatch.FieldChange) {
	final := taskFields{
		Title:        sg.SuggestedTitle,
		Description:  sg.SuggestedDescription,
		AssignedTo:   sg.SuggestedAssignedTo,
		Priority:     sg.SuggestedPriority,
		DueDate:      sg.SuggestedDueDate,
		ClientID:     sg.SuggestedClientID,
		ActionTypeID: sg.SuggestedActionTypeID,
	}
	diff := map[string]dispatch.FieldChange{}
	apply := func(name string, dst *string, v *string) {
		if v == nil || *v == *dst {
			return
		}
		diff[name] = dispatch.FieldChange{From: *dst, To: *v}
		*dst = *v
	}

	apply("title", &final.Title, trimmed(ov.Title))
	apply("description", &final.Description, ov.Description)
	apply("assigned_to", &final.AssignedTo, ov.AssignedTo)
	priority := string(final.Priority)
	apply("priority", &priority, ov.Priority)
	final.Priority = store.Priority(priority)
	apply("due_date", &final.DueDate, ov.DueDate)
	apply("client_id", &final.ClientID, ov.ClientID)
	apply("action_type_id", &final.ActionTypeID, ov.ActionTypeID)
	return final, diff
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func diffJSON(diff map[string]dispatch.FieldChange) store.JSONMap {
	out := store.JSONMap{}
	for field, c := range diff {
		out[field] = map[string]any{"from": c.From, "to": c.To}
	}
	return out
}
