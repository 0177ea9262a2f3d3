package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

const suggestionColumns = `id, organization_id, source_type, source_ref, source_metadata,
	suggested_title, suggested_description, suggested_assigned_to, suggested_priority,
	suggested_due_date, suggested_client_id, suggested_action_type_id, ai_confidence,
	ai_category, ai_extracted_data, status, reviewed_by, reviewed_at, review_action,
	decline_reason, decline_category, modifications, created_task_id, created_at`

// InsertSuggestion writes a new pending suggestion.
func (t *Tx) InsertSuggestion(ctx context.Context, sg *Suggestion) error {
	if sg.ID == "" {
		sg.ID = newID()
	}
	if sg.CreatedAt.IsZero() {
		sg.CreatedAt = Now()
	}
	if sg.Status == "" {
		sg.Status = SuggestionPending
	}
	if sg.SuggestedPriority == "" {
		sg.SuggestedPriority = PriorityMedium
	}
	for _, m := range []*JSONMap{&sg.SourceMetadata, &sg.AIExtractedData, &sg.Modifications} {
		if *m == nil {
			*m = JSONMap{}
		}
	}
	err := namedExec(ctx, t.tx, `INSERT INTO task_ai_suggestions (`+suggestionColumns+`) VALUES (
		:id, :organization_id, :source_type, :source_ref, :source_metadata,
		:suggested_title, :suggested_description, :suggested_assigned_to, :suggested_priority,
		:suggested_due_date, :suggested_client_id, :suggested_action_type_id, :ai_confidence,
		:ai_category, :ai_extracted_data, :status, :reviewed_by, :reviewed_at, :review_action,
		:decline_reason, :decline_category, :modifications, :created_task_id, :created_at)`, sg)
	return errors.Wrap(err, "insert suggestion")
}

// GetSuggestion returns a suggestion of the organization.
func (t *Tx) GetSuggestion(ctx context.Context, orgID, id string) (*Suggestion, error) {
	var sg Suggestion
	err := get(ctx, t.tx, &sg, `SELECT `+suggestionColumns+` FROM task_ai_suggestions
		WHERE id = ? AND organization_id = ?`, id, orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "suggestion %s", id)
		}
		return nil, errors.Wrap(err, "get suggestion")
	}
	return &sg, nil
}

// ApproveSuggestion records an approval on a still-pending suggestion.
// It reports false when the suggestion was already reviewed.
func (t *Tx) ApproveSuggestion(ctx context.Context, id, reviewer, action string, mods JSONMap, taskID string, now time.Time) (bool, error) {
	n, err := exec(ctx, t.tx, `UPDATE task_ai_suggestions
		SET status = 'approved', reviewed_by = ?, reviewed_at = ?, review_action = ?,
			modifications = ?, created_task_id = ?
		WHERE id = ? AND status = 'pending'`,
		reviewer, now, action, mods, taskID, id)
	if err != nil {
		return false, errors.Wrap(err, "approve suggestion")
	}
	return n == 1, nil
}

// DeclineSuggestion records a decline on a still-pending suggestion.
func (t *Tx) DeclineSuggestion(ctx context.Context, id, reviewer, reason, category string, now time.Time) (bool, error) {
	n, err := exec(ctx, t.tx, `UPDATE task_ai_suggestions
		SET status = 'declined', reviewed_by = ?, reviewed_at = ?, review_action = 'declined',
			decline_reason = ?, decline_category = ?
		WHERE id = ? AND status = 'pending'`,
		reviewer, now, reason, category, id)
	if err != nil {
		return false, errors.Wrap(err, "decline suggestion")
	}
	return n == 1, nil
}

// GetSuggestion returns a suggestion of the organization.
func (s *Store) GetSuggestion(ctx context.Context, orgID, id string) (*Suggestion, error) {
	var sg Suggestion
	err := get(ctx, s.db, &sg, `SELECT `+suggestionColumns+` FROM task_ai_suggestions
		WHERE id = ? AND organization_id = ?`, id, orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "suggestion %s", id)
		}
		return nil, errors.Wrap(err, "get suggestion")
	}
	return &sg, nil
}

// ListSuggestions returns suggestions of the organization, newest first.
// An empty status lists all of them.
func (s *Store) ListSuggestions(ctx context.Context, orgID string, status SuggestionStatus) ([]Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM task_ai_suggestions WHERE organization_id = ?`
	args := []any{orgID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	out := []Suggestion{}
	err := selectRows(ctx, s.db, &out, query, args...)
	return out, errors.Wrap(err, "list suggestions")
}

// GetActionType looks up a routing category.
func (t *Tx) GetActionType(ctx context.Context, id string) (*ActionType, error) {
	var at ActionType
	err := get(ctx, t.tx, &at, `SELECT id, label, is_active FROM task_action_types WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "action type %s", id)
		}
		return nil, errors.Wrap(err, "get action type")
	}
	return &at, nil
}

// UpsertActionTypes inserts or relabels routing categories.
func (s *Store) UpsertActionTypes(ctx context.Context, types []ActionType) error {
	return s.InTx(ctx, func(tx *Tx) error {
		for _, at := range types {
			_, err := exec(ctx, tx.tx, `INSERT INTO task_action_types (id, label, is_active) VALUES (?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET label = excluded.label, is_active = excluded.is_active`,
				at.ID, at.Label, at.IsActive)
			if err != nil {
				return errors.Wrapf(err, "upsert action type %s", at.ID)
			}
		}
		return nil
	})
}

// ListActionTypes returns all routing categories.
func (s *Store) ListActionTypes(ctx context.Context) ([]ActionType, error) {
	out := []ActionType{}
	err := selectRows(ctx, s.db, &out, `SELECT id, label, is_active FROM task_action_types ORDER BY id`)
	return out, errors.Wrap(err, "list action types")
}
