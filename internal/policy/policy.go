// Package policy decides which actor may perform which privileged action.
package policy

import (
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/config"
)

// Actions checked against the policy.
const (
	ActionAssign            = "assign"
	ActionComplete          = "complete"
	ActionCancel            = "cancel"
	ActionReviewSuggestions = "review_suggestions"
	ActionCreateTask        = "create_task"
	ActionManageSteps       = "manage_steps"
)

// Wildcard grants every action to a role.
const Wildcard = "*"

// Policy answers permission questions.
type Policy interface {
	Can(actor, action string) bool
}

// Func adapts a function to the Policy interface.
type Func func(actor, action string) bool

// Can implements Policy.
func (f Func) Can(actor, action string) bool { return f(actor, action) }

// AllowAll permits every non-empty actor.
var AllowAll Policy = Func(func(actor, _ string) bool { return actor != "" })

// Engine resolves permissions from per-user overrides first, then the
// user's role, then the default role.
type Engine struct {
	roles       map[string]map[string]bool
	users       map[string]string
	defaultRole string
	overrides   map[string]map[string]bool
}

// New builds an Engine from configuration.
func New(cfg config.Policy) *Engine {
	e := &Engine{
		roles:       make(map[string]map[string]bool, len(cfg.Roles)),
		users:       make(map[string]string, len(cfg.Users)),
		defaultRole: cfg.DefaultRole,
		overrides:   make(map[string]map[string]bool),
	}
	for role, actions := range cfg.Roles {
		set := make(map[string]bool, len(actions))
		for _, a := range actions {
			set[a] = true
		}
		e.roles[role] = set
	}
	for user, role := range cfg.Users {
		e.users[user] = role
	}
	for _, o := range cfg.Overrides {
		if e.overrides[o.User] == nil {
			e.overrides[o.User] = make(map[string]bool)
		}
		e.overrides[o.User][o.Action] = o.Allow
	}
	return e
}

// Can implements Policy.
func (e *Engine) Can(actor, action string) bool {
	if actor == "" {
		return false
	}
	if allow, ok := e.overrides[actor][action]; ok {
		return allow
	}
	role, ok := e.users[actor]
	if !ok {
		role = e.defaultRole
	}
	set := e.roles[role]
	return set[action] || set[Wildcard]
}

// RoleOf returns the effective role of a user.
func (e *Engine) RoleOf(user string) string {
	if role, ok := e.users[user]; ok {
		return role
	}
	return e.defaultRole
}
