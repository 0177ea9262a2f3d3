package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

var (
	clrHighlight = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"}
	clrRed       = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	clrGreen     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	clrDim       = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#555555"}

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	labelStyle   = lipgloss.NewStyle().Width(16).Foreground(clrDim)
	alertStyle   = lipgloss.NewStyle().Bold(true).Foreground(clrRed)
	goodStyle    = lipgloss.NewStyle().Bold(true).Foreground(clrGreen)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrDim).
			Padding(0, 1)
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Dashboard counts for the pool and your queue",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	user, err := currentUser()
	if err != nil {
		return err
	}
	e, s, err := mustEngine(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := e.Stats(ctx, user)
	if err != nil {
		return err
	}
	fmt.Println(renderStats(user, st))
	return nil
}

func renderStats(user string, st *store.Stats) string {
	row := func(label string, v int, style lipgloss.Style) string {
		return labelStyle.Render(label) + style.Render(fmt.Sprint(v))
	}
	plain := lipgloss.NewStyle()
	overdue := plain
	if st.Overdue > 0 {
		overdue = alertStyle
	}

	summary := strings.Join([]string{
		headingStyle.Render("Pool"),
		row("available", st.Pool, goodStyle),
		row("claimed by "+user, st.MyClaimed, plain),
		row("overdue", st.Overdue, overdue),
		row("completed today", st.CompletedToday, plain),
	}, "\n")

	status := []string{headingStyle.Render("By status")}
	for _, s := range []store.TaskStatus{store.StatusOpen, store.StatusInProgress, store.StatusCompleted, store.StatusCancelled} {
		status = append(status, row(string(s), st.ByStatus[s], plain))
	}

	priority := []string{headingStyle.Render("Open by priority")}
	for _, p := range []store.Priority{store.PriorityUrgent, store.PriorityHigh, store.PriorityMedium, store.PriorityLow} {
		priority = append(priority, row(string(p), st.ByPriority[p], plain))
	}

	boxes := []string{
		boxStyle.Render(summary),
		boxStyle.Render(strings.Join(status, "\n")),
		boxStyle.Render(strings.Join(priority, "\n")),
	}

	if len(st.ByActionType) > 0 {
		types := make([]string, 0, len(st.ByActionType))
		for t := range st.ByActionType {
			types = append(types, t)
		}
		sort.Strings(types)
		lines := []string{headingStyle.Render("Pool by type")}
		for _, t := range types {
			lines = append(lines, row(t, st.ByActionType[t], plain))
		}
		boxes = append(boxes, boxStyle.Render(strings.Join(lines, "\n")))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}
