package tui

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/pool"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// If popup is active, handle popup keys first.
		if m.popup != popupNone {
			return m.handlePopupKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		h := m.height - 8
		if h < 5 {
			h = 5
		}
		m.table.SetColumns(tableColumns(m.width))
		m.table.SetHeight(h)
		vw := m.width - 4
		if vw < 20 {
			vw = 20
		}
		m.logView.Width = vw
		m.logView.Height = h / 2
		return m, nil

	case tasksLoadedMsg:
		m.refreshing = false
		if msg.err != nil {
			m.setStatus("Error: " + msg.err.Error())
			return m, nil
		}
		m.tasks = msg.tasks
		m.rebuildTable()
		return m, nil

	case detailLoadedMsg:
		if msg.err != nil {
			m.setStatus("Error: " + msg.err.Error())
			m.screen = screenBoard
			return m, nil
		}
		m.detail = msg.task
		m.steps = msg.steps
		m.activity = msg.activity
		m.clampStepCursor()
		m.logView.SetContent(renderActivity(msg.activity))
		m.logView.GotoBottom()
		m.screen = screenDetail
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.setStatus("Error: " + msg.err.Error())
		} else {
			m.setStatus(msg.status)
		}
		cmds := []tea.Cmd{m.loadTasks()}
		if m.screen == screenDetail && m.detail != nil {
			cmds = append(cmds, m.loadDetail(m.detail.ID))
		}
		return m, tea.Batch(cmds...)

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		// Clear old status messages.
		if m.statusMsg != "" && time.Since(m.statusTime) > 5*time.Second {
			m.statusMsg = ""
		}
		if !m.refreshing {
			m.refreshing = true
			cmds = append(cmds, m.loadTasks())
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "q":
		if m.screen == screenBoard {
			m.quitting = true
			return m, tea.Quit
		}
		return m.goBack()
	case "esc", "backspace":
		return m.goBack()
	}

	switch m.screen {
	case screenBoard:
		return m.handleBoardKey(msg)
	case screenDetail:
		return m.handleDetailKey(msg)
	}
	return m, nil
}

func (m Model) goBack() (tea.Model, tea.Cmd) {
	if m.screen == screenDetail {
		m.screen = screenBoard
		m.detail = nil
		return m, m.loadTasks()
	}
	return m, nil
}

// --- Board keys ---

func (m Model) handleBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab":
		m.tab = (m.tab + 1) % numTabs
		m.rebuildTable()
		if len(m.visible) > 0 {
			m.table.SetCursor(0)
		}
		return m, nil
	case "shift+tab":
		m.tab = (m.tab + numTabs - 1) % numTabs
		m.rebuildTable()
		if len(m.visible) > 0 {
			m.table.SetCursor(0)
		}
		return m, nil

	case "enter":
		if t := m.selectedTask(); t != nil {
			m.stepCursor = 0
			return m, m.loadDetail(t.ID)
		}
		return m, nil

	case "n", "ctrl+n":
		m.popup = popupCreate
		m.resetInputs("Task title...", "Description (optional)...")
		m.createPriority = store.PriorityMedium
		return m, textinput.Blink

	case "R":
		return m, m.loadTasks()
	}

	if t := m.selectedTask(); t != nil {
		if model, cmd, ok := m.taskAction(msg.String(), t); ok {
			return model, cmd
		}
	}

	// Everything else moves the table cursor.
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// taskAction handles the keys that act on one task from either screen.
func (m Model) taskAction(key string, t *store.Task) (tea.Model, tea.Cmd, bool) {
	id, user := t.ID, m.user
	switch key {
	case "c":
		return m, m.run("Claimed "+shortID(id), func(ctx context.Context, e *pool.Engine) error {
			_, err := e.Claim(ctx, id, user)
			return err
		}), true
	case "r":
		return m, m.run("Released "+shortID(id), func(ctx context.Context, e *pool.Engine) error {
			_, err := e.Release(ctx, id, user)
			return err
		}), true
	case "d":
		m.popup = popupConfirmComplete
		m.popupTaskID = id
		return m, nil, true
	case "h":
		m.popup = popupHandoff
		m.popupTaskID = id
		m.resetInputs("Hand off to...", "Notes (optional)...")
		return m, textinput.Blink, true
	case "a":
		return m, m.run("Accepted handoff of "+shortID(id), func(ctx context.Context, e *pool.Engine) error {
			_, err := e.AcceptHandoff(ctx, id, user)
			return err
		}), true
	case "x":
		m.popup = popupDeclineHandoff
		m.popupTaskID = id
		m.resetInputs("Reason (optional)...", "")
		return m, textinput.Blink, true
	}
	return m, nil, false
}

// --- Detail keys ---

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.detail == nil {
		m.screen = screenBoard
		return m, nil
	}

	switch msg.String() {
	case "j", "down":
		m.stepCursor++
		m.clampStepCursor()
		return m, nil
	case "k", "up":
		m.stepCursor--
		m.clampStepCursor()
		return m, nil
	case " ", "enter":
		if m.stepCursor < len(m.steps) {
			e, taskID, stepID, user := m.engine, m.detail.ID, m.steps[m.stepCursor].ID, m.user
			return m, func() tea.Msg {
				res, err := e.ToggleStep(context.Background(), taskID, stepID, user)
				if err != nil {
					return actionDoneMsg{err: err}
				}
				if res.AllStepsCompleted {
					return actionDoneMsg{status: "All steps done. Press d to complete the task."}
				}
				return actionDoneMsg{status: "Toggled step " + strconv.Itoa(res.Step.StepNumber)}
			}
		}
		return m, nil
	}

	if model, cmd, ok := m.taskAction(msg.String(), m.detail); ok {
		return model, cmd
	}

	// Scroll the activity log.
	var cmd tea.Cmd
	m.logView, cmd = m.logView.Update(msg)
	return m, cmd
}

// --- Popup keys ---

func (m Model) handlePopupKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.popup = popupNone
		return m, nil
	}

	switch m.popup {
	case popupConfirmComplete:
		return m.handleConfirmCompletePopup(msg)
	case popupCreate:
		return m.handleCreatePopup(msg)
	case popupHandoff:
		return m.handleHandoffPopup(msg)
	case popupDeclineHandoff:
		return m.handleDeclineHandoffPopup(msg)
	}
	return m, nil
}

func (m Model) handleConfirmCompletePopup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		m.popup = popupNone
		id, user := m.popupTaskID, m.user
		return m, m.run("Completed "+shortID(id), func(ctx context.Context, e *pool.Engine) error {
			_, err := e.Complete(ctx, id, user, nil)
			return err
		})
	case "n":
		m.popup = popupNone
	}
	return m, nil
}

func (m Model) handleCreatePopup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab":
		return m.switchInput()
	case "ctrl+p":
		m.createPriority = nextPriority(m.createPriority)
		return m, nil
	case "enter":
		title := strings.TrimSpace(m.textInput.Value())
		if title == "" {
			m.setStatus("Error: title cannot be empty")
			return m, nil
		}
		in := pool.NewTask{
			Title:       title,
			Description: strings.TrimSpace(m.textInput2.Value()),
			Priority:    m.createPriority,
		}
		user := m.user
		m.popup = popupNone
		return m, m.run("Created task: "+title, func(ctx context.Context, e *pool.Engine) error {
			_, err := e.CreateTask(ctx, user, in)
			return err
		})
	}
	return m.updateInputs(msg)
}

func (m Model) handleHandoffPopup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab":
		return m.switchInput()
	case "enter":
		to := strings.TrimSpace(m.textInput.Value())
		if to == "" {
			m.setStatus("Error: recipient cannot be empty")
			return m, nil
		}
		id, user, notes := m.popupTaskID, m.user, strings.TrimSpace(m.textInput2.Value())
		m.popup = popupNone
		return m, m.run("Handoff to "+to+" pending", func(ctx context.Context, e *pool.Engine) error {
			_, err := e.InitiateHandoff(ctx, id, user, to, notes)
			return err
		})
	}
	return m.updateInputs(msg)
}

func (m Model) handleDeclineHandoffPopup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "enter" {
		id, user, reason := m.popupTaskID, m.user, strings.TrimSpace(m.textInput.Value())
		m.popup = popupNone
		return m, m.run("Declined handoff of "+shortID(id), func(ctx context.Context, e *pool.Engine) error {
			_, err := e.DeclineHandoff(ctx, id, user, reason)
			return err
		})
	}
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// --- Input helpers ---

func (m *Model) resetInputs(placeholder, placeholder2 string) {
	m.textInput.Reset()
	m.textInput.Placeholder = placeholder
	m.textInput.Focus()
	m.textInput2.Reset()
	m.textInput2.Placeholder = placeholder2
	m.textInput2.Blur()
	m.inputFocused = 0
}

func (m Model) switchInput() (tea.Model, tea.Cmd) {
	if m.inputFocused == 0 {
		m.textInput.Blur()
		m.textInput2.Focus()
		m.inputFocused = 1
	} else {
		m.textInput2.Blur()
		m.textInput.Focus()
		m.inputFocused = 0
	}
	return m, textinput.Blink
}

// updateInputs forwards a key to the focused text input.
func (m Model) updateInputs(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.inputFocused == 0 {
		m.textInput, cmd = m.textInput.Update(msg)
	} else {
		m.textInput2, cmd = m.textInput2.Update(msg)
	}
	return m, cmd
}

func nextPriority(p store.Priority) store.Priority {
	switch p {
	case store.PriorityLow:
		return store.PriorityMedium
	case store.PriorityMedium:
		return store.PriorityHigh
	case store.PriorityHigh:
		return store.PriorityUrgent
	default:
		return store.PriorityLow
	}
}

// shortID keeps the random tail of a UUIDv7, matching the CLI's ids.
func shortID(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}
