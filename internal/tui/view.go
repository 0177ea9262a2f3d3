package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

// --- Color palette ---
var (
	clrSubtle    = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#666666"}
	clrHighlight = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"}
	clrGreen     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	clrYellow    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	clrRed       = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	clrBlue      = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	clrCyan      = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#22D3EE"}
	clrDim       = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#555555"}
)

// --- Styles ---
var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	dimStyle   = lipgloss.NewStyle().Foreground(clrDim)
	boldStyle  = lipgloss.NewStyle().Bold(true)

	tabStyle       = lipgloss.NewStyle().Padding(0, 1).Foreground(clrSubtle)
	activeTabStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).
			Foreground(clrHighlight).
			Underline(true)

	popupStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrHighlight).
			Padding(1, 2).
			Width(60)

	statusStyle = lipgloss.NewStyle().Foreground(clrGreen).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(clrRed).Bold(true)

	footerKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	footerDescStyle = lipgloss.NewStyle().Foreground(clrSubtle)
)

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(clrSubtle).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#0F766E")).
		Bold(false)
	return s
}

// tableColumns sizes the task table to the terminal width.
func tableColumns(width int) []table.Column {
	title := width - 8 - 8 - 12 - 14 - 12 - 12
	if title < 20 {
		title = 20
	}
	return []table.Column{
		{Title: "ID", Width: 8},
		{Title: "Priority", Width: 8},
		{Title: "Title", Width: title},
		{Title: "Status", Width: 12},
		{Title: "Owner", Width: 14},
		{Title: "Type", Width: 12},
		{Title: "Due", Width: 10},
	}
}

func taskRow(t store.Task) table.Row {
	return table.Row{
		shortID(t.ID),
		string(t.Priority),
		t.Title,
		string(t.Status),
		owner(t),
		t.ActionTypeID,
		t.DueDate,
	}
}

func owner(t store.Task) string {
	switch {
	case t.HandoffPending():
		return t.HandoffFrom + "→" + t.HandoffTo
	case t.ClaimedBy != "":
		return t.ClaimedBy
	case t.AssignedTo != "":
		return "→" + t.AssignedTo
	}
	return ""
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.screen {
	case screenBoard:
		content = m.viewBoard()
	case screenDetail:
		content = m.viewDetail()
	}

	// Overlay popup if active.
	if m.popup != popupNone {
		content = m.overlayPopup(content)
	}
	return content
}

// ════════════════════════════════════════════════
// BOARD VIEW
// ════════════════════════════════════════════════

func (m Model) viewBoard() string {
	var b strings.Builder

	header := titleStyle.Render("taskpool") + dimStyle.Render(" · "+m.user)
	var tabs []string
	for i, label := range tabLabels {
		n := len(filterTasks(m.tasks, tab(i), m.user))
		text := fmt.Sprintf("%s (%d)", label, n)
		if tab(i) == m.tab {
			tabs = append(tabs, activeTabStyle.Render(text))
		} else {
			tabs = append(tabs, tabStyle.Render(text))
		}
	}
	b.WriteString(header + "  " + lipgloss.JoinHorizontal(lipgloss.Top, tabs...) + "\n\n")

	if len(m.visible) == 0 {
		b.WriteString(dimStyle.Render("  Nothing here. Press ") +
			footerKeyStyle.Render("n") +
			dimStyle.Render(" to create a task.") + "\n")
	} else {
		b.WriteString(m.table.View() + "\n")
	}

	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(renderFooter([]struct{ key, desc string }{
		{"tab", "switch"},
		{"enter", "open"},
		{"c", "claim"},
		{"r", "release"},
		{"d", "complete"},
		{"h", "hand off"},
		{"a", "accept"},
		{"x", "decline"},
		{"n", "new"},
		{"q", "quit"},
	}))
	return b.String()
}

// ════════════════════════════════════════════════
// DETAIL VIEW
// ════════════════════════════════════════════════

func (m Model) viewDetail() string {
	if m.detail == nil {
		return "No task selected"
	}
	t := m.detail

	var b strings.Builder
	b.WriteString(titleStyle.Render(shortID(t.ID)+" "+t.Title) + "  " + dimStyle.Render("esc back") + "\n\n")

	b.WriteString(fmt.Sprintf("  %s %s  %s %s",
		dimStyle.Render("status"), statusText(t.Status),
		dimStyle.Render("priority"), priorityStyle(t.Priority).Render(string(t.Priority))))
	if o := owner(*t); o != "" {
		b.WriteString("  " + dimStyle.Render("owner") + " " + lipgloss.NewStyle().Foreground(clrCyan).Render(o))
	}
	if t.DueDate != "" {
		b.WriteString("  " + dimStyle.Render("due") + " " + t.DueDate)
	}
	b.WriteString("\n")
	if t.Description != "" {
		b.WriteString("  " + t.Description + "\n")
	}
	if t.HandoffNotes != "" {
		b.WriteString("  " + lipgloss.NewStyle().Foreground(clrYellow).Render("handoff: "+t.HandoffNotes) + "\n")
	}
	b.WriteString("\n")

	if len(m.steps) == 0 {
		b.WriteString(dimStyle.Render("  No steps.") + "\n")
	} else {
		done := 0
		for _, st := range m.steps {
			if st.IsCompleted {
				done++
			}
		}
		b.WriteString(boldStyle.Render(fmt.Sprintf("  Steps %d/%d:", done, len(m.steps))) + "\n")
		for i, st := range m.steps {
			b.WriteString(renderStepLine(st, i == m.stepCursor) + "\n")
		}
	}

	b.WriteString("\n" + boldStyle.Render("  Activity:") + "\n")
	b.WriteString(m.logView.View() + "\n")

	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(renderFooter([]struct{ key, desc string }{
		{"↑↓", "select step"},
		{"space", "toggle"},
		{"c", "claim"},
		{"r", "release"},
		{"d", "complete"},
		{"h", "hand off"},
		{"esc", "back"},
	}))
	return b.String()
}

func renderStepLine(st store.Step, selected bool) string {
	dot := dimStyle.Render("○")
	if st.IsCompleted {
		dot = lipgloss.NewStyle().Foreground(clrGreen).Render("●")
	}
	cursor := "  "
	if selected {
		cursor = lipgloss.NewStyle().Foreground(clrHighlight).Render("▸ ")
	}
	who := ""
	if st.AssignedTo != "" {
		who = " " + dimStyle.Render(st.AssignedTo)
	}
	return fmt.Sprintf("  %s%s %2d. %s%s", cursor, dot, st.StepNumber, st.Description, who)
}

func renderActivity(entries []store.ActivityEntry) string {
	if len(entries) == 0 {
		return dimStyle.Render("    No activity.")
	}
	lines := make([]string, 0, len(entries))
	for _, a := range entries {
		ts := dimStyle.Render(a.CreatedAt.Local().Format("01-02 15:04"))
		who := lipgloss.NewStyle().Foreground(clrCyan).Render(a.PerformedBy)
		lines = append(lines, fmt.Sprintf("    %s %s %s", ts, who, a.Action))
	}
	return strings.Join(lines, "\n")
}

func statusText(s store.TaskStatus) string {
	switch s {
	case store.StatusCompleted:
		return lipgloss.NewStyle().Foreground(clrGreen).Render("✓ " + string(s))
	case store.StatusInProgress:
		return lipgloss.NewStyle().Foreground(clrBlue).Render("◉ " + string(s))
	case store.StatusCancelled:
		return dimStyle.Render("— " + string(s))
	default:
		return "○ " + string(s)
	}
}

func priorityStyle(p store.Priority) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true)
	switch p {
	case store.PriorityUrgent, store.PriorityHigh:
		return s.Foreground(clrRed)
	case store.PriorityMedium:
		return s.Foreground(clrYellow)
	default:
		return s.Foreground(clrSubtle)
	}
}

// ════════════════════════════════════════════════
// POPUPS
// ════════════════════════════════════════════════

func (m Model) overlayPopup(bg string) string {
	var popup string

	switch m.popup {
	case popupCreate:
		popup = m.viewCreatePopup()
	case popupHandoff:
		popup = m.viewHandoffPopup()
	case popupDeclineHandoff:
		popup = m.viewDeclineHandoffPopup()
	case popupConfirmComplete:
		popup = m.viewConfirmCompletePopup()
	default:
		return bg
	}

	// Place popup in center of screen.
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height,
			lipgloss.Center, lipgloss.Center,
			popup,
			lipgloss.WithWhitespaceChars(" "),
		)
	}
	return popup
}

func (m Model) viewCreatePopup() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("New Task") + "\n\n")
	b.WriteString("Title:\n")
	b.WriteString(m.textInput.View() + "\n\n")
	b.WriteString("Description:\n")
	b.WriteString(m.textInput2.View() + "\n\n")
	b.WriteString(fmt.Sprintf("Priority: %s\n\n", priorityStyle(m.createPriority).Render(string(m.createPriority))))
	b.WriteString(footerDescStyle.Render("enter create • tab switch • ctrl+p priority • esc cancel"))

	return m.popupBoxStyle().Render(b.String())
}

func (m Model) viewHandoffPopup() string {
	var b strings.Builder

	title := lipgloss.NewStyle().Bold(true).Foreground(clrYellow).Render("Hand Off " + shortID(m.popupTaskID))
	b.WriteString(title + "\n\n")
	b.WriteString("The task stays reserved until the recipient accepts or declines.\n\n")
	b.WriteString("Recipient:\n")
	b.WriteString(m.textInput.View() + "\n\n")
	b.WriteString("Notes:\n")
	b.WriteString(m.textInput2.View() + "\n\n")
	b.WriteString(footerDescStyle.Render("enter send • tab switch • esc cancel"))

	return m.popupBoxStyle().Render(b.String())
}

func (m Model) viewDeclineHandoffPopup() string {
	var b strings.Builder

	title := lipgloss.NewStyle().Bold(true).Foreground(clrRed).Render("Decline Handoff " + shortID(m.popupTaskID))
	b.WriteString(title + "\n\n")
	b.WriteString("The task goes back to the sender.\n\n")
	b.WriteString("Reason (optional):\n")
	b.WriteString(m.textInput.View() + "\n\n")
	b.WriteString(footerDescStyle.Render("enter confirm • esc cancel"))

	return m.popupBoxStyle().Render(b.String())
}

func (m Model) viewConfirmCompletePopup() string {
	var b strings.Builder

	title := lipgloss.NewStyle().Bold(true).Foreground(clrGreen).Render("Complete " + shortID(m.popupTaskID))
	b.WriteString(title + "\n\n")
	b.WriteString("Mark this task completed?\n\n")
	b.WriteString(footerKeyStyle.Render("y") + footerDescStyle.Render(" confirm  ") +
		footerKeyStyle.Render("n") + footerDescStyle.Render(" cancel"))

	return m.popupBoxStyle().Render(b.String())
}

func (m Model) popupBoxStyle() lipgloss.Style {
	w := 60
	if m.width > 0 {
		w = m.width - 12
		if w < 42 {
			w = 42
		}
		if w > 84 {
			w = 84
		}
	}
	return popupStyle.Width(w)
}

// ════════════════════════════════════════════════
// SHARED HELPERS
// ════════════════════════════════════════════════

func (m Model) statusLine() string {
	if m.statusMsg == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(m.statusMsg), "error") {
		return "\n" + errorStyle.Render("  "+m.statusMsg)
	}
	return "\n" + statusStyle.Render("  "+m.statusMsg)
}

func renderFooter(keys []struct{ key, desc string }) string {
	var parts []string
	for _, k := range keys {
		key := footerKeyStyle.Render(k.key)
		desc := footerDescStyle.Render(k.desc)
		parts = append(parts, key+" "+desc)
	}
	return "  " + strings.Join(parts, "  ")
}
