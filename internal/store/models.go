package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	StatusOpen       TaskStatus = "open"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
)

// ValidStatus reports whether s is a known task status.
func ValidStatus(s TaskStatus) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Priority of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ValidPriority reports whether p is a known priority.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// SourceType records how a task entered the system.
type SourceType string

const (
	SourceManual    SourceType = "manual"
	SourcePhoneCall SourceType = "phone_call"
	SourceEmail     SourceType = "email"
	SourceRouted    SourceType = "routed"
)

// ValidSource reports whether s is a known source type.
func ValidSource(s SourceType) bool {
	switch s {
	case SourceManual, SourcePhoneCall, SourceEmail, SourceRouted:
		return true
	}
	return false
}

// DateLayout is the storage format of calendar due dates.
const DateLayout = "2006-01-02"

// Task is a unit of work. Empty strings stand for unset optional fields.
type Task struct {
	ID               string     `db:"id" json:"id"`
	OrganizationID   string     `db:"organization_id" json:"organization_id"`
	Title            string     `db:"title" json:"title"`
	Description      string     `db:"description" json:"description,omitempty"`
	Status           TaskStatus `db:"status" json:"status"`
	Priority         Priority   `db:"priority" json:"priority"`
	ActionTypeID     string     `db:"action_type_id" json:"action_type_id,omitempty"`
	ClientID         string     `db:"client_id" json:"client_id,omitempty"`
	ClaimedBy        string     `db:"claimed_by" json:"claimed_by,omitempty"`
	ClaimedAt        *time.Time `db:"claimed_at" json:"claimed_at,omitempty"`
	AssignedTo       string     `db:"assigned_to" json:"assigned_to,omitempty"`
	AssignedAt       *time.Time `db:"assigned_at" json:"assigned_at,omitempty"`
	AssignedBy       string     `db:"assigned_by" json:"assigned_by,omitempty"`
	HandoffTo        string     `db:"handoff_to" json:"handoff_to,omitempty"`
	HandoffFrom      string     `db:"handoff_from" json:"handoff_from,omitempty"`
	HandoffNotes     string     `db:"handoff_notes" json:"handoff_notes,omitempty"`
	HandoffAt        *time.Time `db:"handoff_at" json:"handoff_at,omitempty"`
	DueDate          string     `db:"due_date" json:"due_date,omitempty"`
	SourceType       SourceType `db:"source_type" json:"source_type"`
	SourceMetadata   JSONMap    `db:"source_metadata" json:"source_metadata,omitempty"`
	AIConfidence     *float64   `db:"ai_confidence" json:"ai_confidence,omitempty"`
	AIExtractedData  JSONMap    `db:"ai_extracted_data" json:"ai_extracted_data,omitempty"`
	RoutedFromTaskID string     `db:"routed_from_task_id" json:"routed_from_task_id,omitempty"`
	CreatedBy        string     `db:"created_by" json:"created_by,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// InPool reports whether the task is open, unclaimed and unassigned.
func (t *Task) InPool() bool {
	return t.Status == StatusOpen && t.ClaimedBy == "" && t.AssignedTo == ""
}

// HandoffPending reports whether a handoff awaits acceptance.
func (t *Task) HandoffPending() bool {
	return t.HandoffTo != ""
}

// Step is one numbered checklist item of a task.
type Step struct {
	ID          string     `db:"id" json:"id"`
	TaskID      string     `db:"task_id" json:"task_id"`
	StepNumber  int        `db:"step_number" json:"step_number"`
	Description string     `db:"description" json:"description"`
	AssignedTo  string     `db:"assigned_to" json:"assigned_to,omitempty"`
	IsCompleted bool       `db:"is_completed" json:"is_completed"`
	CompletedBy string     `db:"completed_by" json:"completed_by,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// SuggestionStatus is the review state of an AI suggestion.
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionApproved SuggestionStatus = "approved"
	SuggestionDeclined SuggestionStatus = "declined"
)

// Review actions recorded on an approved or declined suggestion.
const (
	ReviewApproved = "approved"
	ReviewModified = "modified"
	ReviewDeclined = "declined"
)

// Suggestion is a machine-proposed task awaiting human review.
type Suggestion struct {
	ID                    string           `db:"id" json:"id"`
	OrganizationID        string           `db:"organization_id" json:"organization_id"`
	SourceType            SourceType       `db:"source_type" json:"source_type"`
	SourceRef             string           `db:"source_ref" json:"source_ref,omitempty"`
	SourceMetadata        JSONMap          `db:"source_metadata" json:"source_metadata,omitempty"`
	SuggestedTitle        string           `db:"suggested_title" json:"suggested_title"`
	SuggestedDescription  string           `db:"suggested_description" json:"suggested_description,omitempty"`
	SuggestedAssignedTo   string           `db:"suggested_assigned_to" json:"suggested_assigned_to,omitempty"`
	SuggestedPriority     Priority         `db:"suggested_priority" json:"suggested_priority"`
	SuggestedDueDate      string           `db:"suggested_due_date" json:"suggested_due_date,omitempty"`
	SuggestedClientID     string           `db:"suggested_client_id" json:"suggested_client_id,omitempty"`
	SuggestedActionTypeID string           `db:"suggested_action_type_id" json:"suggested_action_type_id,omitempty"`
	AIConfidence          *float64         `db:"ai_confidence" json:"ai_confidence,omitempty"`
	AICategory            string           `db:"ai_category" json:"ai_category,omitempty"`
	AIExtractedData       JSONMap          `db:"ai_extracted_data" json:"ai_extracted_data,omitempty"`
	Status                SuggestionStatus `db:"status" json:"status"`
	ReviewedBy            string           `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt            *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewAction          string           `db:"review_action" json:"review_action,omitempty"`
	DeclineReason         string           `db:"decline_reason" json:"decline_reason,omitempty"`
	DeclineCategory       string           `db:"decline_category" json:"decline_category,omitempty"`
	Modifications         JSONMap          `db:"modifications" json:"modifications,omitempty"`
	CreatedTaskID         string           `db:"created_task_id" json:"created_task_id,omitempty"`
	CreatedAt             time.Time        `db:"created_at" json:"created_at"`
}

// Activity log actions.
const (
	ActionCreated         = "created"
	ActionClaimed         = "claimed"
	ActionReleased        = "released"
	ActionAssigned        = "assigned"
	ActionUnassigned      = "unassigned"
	ActionHandedOff       = "handed_off"
	ActionHandoffAccepted = "handoff_accepted"
	ActionHandoffDeclined = "handoff_declined"
	ActionCompleted       = "completed"
	ActionCancelled       = "cancelled"
	ActionRouted          = "routed"
	ActionStepAdded       = "step_added"
	ActionStepCompleted   = "step_completed"
	ActionStepUncompleted = "step_uncompleted"
	ActionStepDeleted     = "step_deleted"
	ActionStepsReordered  = "steps_reordered"
	ActionAIConfirmed     = "ai_confirmed"
	ActionAICorrected     = "ai_corrected"
)

// ActivityEntry is one append-only audit record for a task.
type ActivityEntry struct {
	ID          string    `db:"id" json:"id"`
	TaskID      string    `db:"task_id" json:"task_id"`
	Action      string    `db:"action" json:"action"`
	Details     JSONMap   `db:"details" json:"details,omitempty"`
	PerformedBy string    `db:"performed_by" json:"performed_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// HandoffRecord is an append-only row of the handoff history.
type HandoffRecord struct {
	ID        string    `db:"id" json:"id"`
	TaskID    string    `db:"task_id" json:"task_id"`
	FromUser  string    `db:"from_user" json:"from"`
	ToUser    string    `db:"to_user" json:"to"`
	Notes     string    `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ActionType is a routing category.
type ActionType struct {
	ID       string `db:"id" json:"id"`
	Label    string `db:"label" json:"label"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// JSONMap is a JSON object column, TEXT on SQLite and JSONB on PostgreSQL.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = JSONMap{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("jsonmap: unsupported source type %T", src)
	}
	if len(data) == 0 {
		*m = JSONMap{}
		return nil
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("jsonmap: %w", err)
	}
	*m = out
	return nil
}
