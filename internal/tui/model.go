package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/pool"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

// screen represents which screen the TUI is showing.
type screen int

const (
	screenBoard  screen = iota // task table (main)
	screenDetail               // steps and activity of one task
)

// tab selects which slice of the pool the board lists.
type tab int

const (
	tabPool     tab = iota // open, unclaimed, unassigned
	tabMine                // claimed by or assigned to the user
	tabHandoffs            // handoffs waiting for the user
	numTabs
)

var tabLabels = [numTabs]string{"Pool", "My tasks", "Handoffs"}

// popupKind is the active modal, if any.
type popupKind int

const (
	popupNone popupKind = iota
	popupCreate
	popupHandoff
	popupDeclineHandoff
	popupConfirmComplete
)

const refreshInterval = 3 * time.Second

// Model is the top-level bubbletea model.
type Model struct {
	engine *pool.Engine
	user   string
	width  int
	height int

	screen screen
	tab    tab
	popup  popupKind

	// All active tasks from the last refresh.
	tasks   []store.Task
	visible []store.Task
	table   table.Model

	// Detail screen state.
	detail     *store.Task
	steps      []store.Step
	activity   []store.ActivityEntry
	stepCursor int
	logView    viewport.Model

	// Popup inputs.
	textInput      textinput.Model
	textInput2     textinput.Model
	inputFocused   int
	createPriority store.Priority
	popupTaskID    string

	statusMsg  string
	statusTime time.Time
	refreshing bool
	quitting   bool
}

// New creates the board model for user.
func New(e *pool.Engine, user string) Model {
	ti := textinput.New()
	ti.CharLimit = 200
	ti.Width = 50

	ti2 := textinput.New()
	ti2.CharLimit = 500
	ti2.Width = 50

	t := table.New(
		table.WithColumns(tableColumns(80)),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	t.SetStyles(tableStyles())

	return Model{
		engine:         e,
		user:           user,
		screen:         screenBoard,
		tab:            tabPool,
		table:          t,
		textInput:      ti,
		textInput2:     ti2,
		logView:        viewport.New(80, 10),
		createPriority: store.PriorityMedium,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadTasks(), tickCmd())
}

// --- Messages ---

type tasksLoadedMsg struct {
	tasks []store.Task
	err   error
}

type detailLoadedMsg struct {
	task     *store.Task
	steps    []store.Step
	activity []store.ActivityEntry
	err      error
}

// actionDoneMsg reports the outcome of an engine operation.
type actionDoneMsg struct {
	status string
	err    error
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// --- Commands ---

func (m Model) loadTasks() tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		tasks, err := e.ListTasks(context.Background(), store.TaskFilter{})
		return tasksLoadedMsg{tasks: tasks, err: err}
	}
}

func (m Model) loadDetail(id string) tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		ctx := context.Background()
		t, err := e.GetTask(ctx, id)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		steps, err := e.Steps(ctx, id)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		activity, err := e.Activity(ctx, id)
		return detailLoadedMsg{task: t, steps: steps, activity: activity, err: err}
	}
}

// run executes op against the engine off the update loop.
func (m Model) run(status string, op func(ctx context.Context, e *pool.Engine) error) tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		if err := op(context.Background(), e); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: status}
	}
}

// --- Board state ---

// filterTasks returns the tasks shown on tab for user.
func filterTasks(tasks []store.Task, t tab, user string) []store.Task {
	var out []store.Task
	for _, task := range tasks {
		switch t {
		case tabPool:
			if task.InPool() {
				out = append(out, task)
			}
		case tabMine:
			active := task.Status == store.StatusOpen || task.Status == store.StatusInProgress
			if active && (task.ClaimedBy == user || task.AssignedTo == user) {
				out = append(out, task)
			}
		case tabHandoffs:
			if task.HandoffTo == user {
				out = append(out, task)
			}
		}
	}
	return out
}

func (m *Model) rebuildTable() {
	m.visible = filterTasks(m.tasks, m.tab, m.user)
	rows := make([]table.Row, 0, len(m.visible))
	for _, t := range m.visible {
		rows = append(rows, taskRow(t))
	}
	m.table.SetRows(rows)
	if len(rows) == 0 {
		return
	}
	if c := m.table.Cursor(); c < 0 || c >= len(rows) {
		m.table.SetCursor(min(max(c, 0), len(rows)-1))
	}
}

func (m Model) selectedTask() *store.Task {
	c := m.table.Cursor()
	if c < 0 || c >= len(m.visible) {
		return nil
	}
	t := m.visible[c]
	return &t
}

func (m *Model) clampStepCursor() {
	if m.stepCursor >= len(m.steps) {
		m.stepCursor = len(m.steps) - 1
	}
	if m.stepCursor < 0 {
		m.stepCursor = 0
	}
}

func (m *Model) setStatus(msg string) {
	m.statusMsg = msg
	m.statusTime = time.Now()
}
