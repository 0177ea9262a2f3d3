package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/config"
)

func TestEngine(t *testing.T) {
	e := New(config.Policy{
		DefaultRole: "staff",
		Roles: map[string][]string{
			"admin":   {Wildcard},
			"manager": {ActionAssign, ActionCancel},
			"staff":   {ActionComplete},
		},
		Users: map[string]string{
			"ada":  "admin",
			"mia":  "manager",
			"sam":  "staff",
			"nora": "manager",
		},
		Overrides: []config.Override{
			{User: "nora", Action: ActionAssign, Allow: false},
			{User: "sam", Action: ActionAssign, Allow: true},
		},
	})

	cases := []struct {
		actor, action string
		want          bool
	}{
		{"ada", ActionAssign, true},
		{"ada", "anything", true},
		{"mia", ActionAssign, true},
		{"mia", ActionComplete, false},
		{"sam", ActionComplete, true},
		{"sam", ActionAssign, true},   // grant override
		{"nora", ActionAssign, false}, // deny override beats role
		{"nora", ActionCancel, true},
		{"stranger", ActionComplete, true}, // default role
		{"stranger", ActionAssign, false},
		{"", ActionComplete, false},
	}
	for _, tc := range cases {
		t.Run(tc.actor+"/"+tc.action, func(t *testing.T) {
			assert.Equal(t, tc.want, e.Can(tc.actor, tc.action))
		})
	}

	assert.Equal(t, "manager", e.RoleOf("mia"))
	assert.Equal(t, "staff", e.RoleOf("stranger"))
}

func TestAllowAll(t *testing.T) {
	assert.True(t, AllowAll.Can("x", ActionAssign))
	assert.False(t, AllowAll.Can("", ActionAssign))
}
