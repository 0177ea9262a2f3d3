package dispatch

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/logging"
)

// Assignment describes a task landing in someone's queue.
type Assignment struct {
	TaskID     string
	Title      string
	AssigneeID string
	ActorID    string
	ClientID   string
}

// Notifier tells users about work assigned to them.
type Notifier interface {
	NotifyAssigned(ctx context.Context, a Assignment) error
}

// FieldChange is one reviewer edit of a suggested field.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Feedback is the outcome of a human review of an AI suggestion.
type Feedback struct {
	SuggestionID     string
	TaskID           string
	UserAction       string // approved, modified or declined
	WasAICorrect     bool
	CorrectionType   string
	CorrectionReason string
	Diff             map[string]FieldChange
}

// AssignmentPattern is a routing signal derived from assignment activity.
type AssignmentPattern struct {
	TaskID  string
	Action  string
	ActorID string
	Details map[string]any
}

// Learner receives signals that tune future suggestions and routing.
type Learner interface {
	RecordFeedback(ctx context.Context, f Feedback) error
	LogAssignmentPattern(ctx context.Context, p AssignmentPattern) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	log *logrus.Entry
}

// NewLogNotifier returns a notifier backed by the shared logger.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logging.For("notify")}
}

// NotifyAssigned implements Notifier.
func (n *LogNotifier) NotifyAssigned(_ context.Context, a Assignment) error {
	n.log.WithFields(logrus.Fields{
		"task":     a.TaskID,
		"assignee": a.AssigneeID,
		"by":       a.ActorID,
	}).Infof("task assigned: %s", a.Title)
	return nil
}

// LogLearner writes learning signals to the log.
type LogLearner struct {
	log *logrus.Entry
}

// NewLogLearner returns a learner backed by the shared logger.
func NewLogLearner() *LogLearner {
	return &LogLearner{log: logging.For("learn")}
}

// RecordFeedback implements Learner.
func (l *LogLearner) RecordFeedback(_ context.Context, f Feedback) error {
	l.log.WithFields(logrus.Fields{
		"suggestion":  f.SuggestionID,
		"task":        f.TaskID,
		"action":      f.UserAction,
		"ai_correct":  f.WasAICorrect,
		"correction":  f.CorrectionType,
		"diff_fields": len(f.Diff),
	}).Info("suggestion feedback")
	return nil
}

// LogAssignmentPattern implements Learner.
func (l *LogLearner) LogAssignmentPattern(_ context.Context, p AssignmentPattern) error {
	l.log.WithFields(logrus.Fields{
		"task":   p.TaskID,
		"action": p.Action,
		"actor":  p.ActorID,
	}).Debug("assignment pattern")
	return nil
}
