package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

// ANSI color codes.
const (
	colorReset   = "\033[0m"
	colorBold    = "\033[1m"
	colorDim     = "\033[2m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorWhite   = "\033[37m"
)

var boardInteractive bool

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show the pool as a board",
	Long:  "Prints the pool grouped into columns. With -i opens the interactive board.",
	RunE:  runBoard,
}

func init() {
	boardCmd.Flags().BoolVarP(&boardInteractive, "interactive", "i", false, "Open the interactive board")
}

type boardColumn struct {
	label string
	color string
	tasks []store.Task
}

// columnsFor groups active tasks the way the board shows them.
func columnsFor(tasks []store.Task) []*boardColumn {
	pool := &boardColumn{label: "POOL", color: colorWhite}
	queued := &boardColumn{label: "ASSIGNED", color: colorMagenta}
	working := &boardColumn{label: "IN PROGRESS", color: colorBlue}
	done := &boardColumn{label: "DONE", color: colorGreen}

	for _, t := range tasks {
		switch {
		case t.Status == store.StatusCompleted:
			done.tasks = append(done.tasks, t)
		case t.Status == store.StatusInProgress:
			working.tasks = append(working.tasks, t)
		case t.InPool():
			pool.tasks = append(pool.tasks, t)
		case t.Status == store.StatusOpen:
			queued.tasks = append(queued.tasks, t)
		}
	}
	return []*boardColumn{pool, queued, working, done}
}

func runBoard(cmd *cobra.Command, args []string) error {
	if boardInteractive {
		return runUI(cmd)
	}

	ctx := cmd.Context()
	e, s, err := mustEngine(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	tasks, err := e.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Printf("%sPool is empty.%s Create a task: %staskpool task create \"description\"%s\n",
			colorDim, colorReset, colorCyan, colorReset)
		return nil
	}

	order := columnsFor(tasks)

	// Print header.
	colWidth := 28
	headerLine := ""
	sepLine := ""
	for _, c := range order {
		count := len(c.tasks)
		header := fmt.Sprintf(" %s%s%s (%d)", c.color+colorBold, c.label, colorReset, count)
		// padding needs visible length, not byte length (ANSI codes add bytes).
		visibleLen := len(fmt.Sprintf(" %s (%d)", c.label, count))
		padding := colWidth - visibleLen
		if padding < 0 {
			padding = 0
		}
		headerLine += header + strings.Repeat(" ", padding)
		sepLine += strings.Repeat("─", colWidth)
	}
	fmt.Println(headerLine)
	fmt.Println(colorDim + sepLine + colorReset)

	maxRows := 0
	for _, c := range order {
		if len(c.tasks) > maxRows {
			maxRows = len(c.tasks)
		}
	}

	for i := 0; i < maxRows; i++ {
		// Task title line.
		line := ""
		for _, c := range order {
			if i < len(c.tasks) {
				t := c.tasks[i]
				idStr := shortID(t.ID)
				titleStr := truncate(t.Title, colWidth-len(idStr)-3)
				card := fmt.Sprintf(" %s%s%s %s", priorityColor(t.Priority), idStr, colorReset, titleStr)
				visibleLen := len(fmt.Sprintf(" %s %s", idStr, titleStr))
				padding := colWidth - visibleLen
				if padding < 0 {
					padding = 0
				}
				line += card + strings.Repeat(" ", padding)
			} else {
				line += strings.Repeat(" ", colWidth)
			}
		}
		fmt.Println(line)

		// Owner line.
		detailLine := ""
		for _, c := range order {
			if i < len(c.tasks) {
				visible := ownerLabel(c.tasks[i])
				detail := ""
				if visible != "" {
					detail = colorCyan + visible + colorReset
				}
				padding := colWidth - len([]rune(visible))
				if padding < 0 {
					padding = 0
				}
				detailLine += detail + strings.Repeat(" ", padding)
			} else {
				detailLine += strings.Repeat(" ", colWidth)
			}
		}
		fmt.Println(detailLine)
		fmt.Println()
	}

	// Pending handoffs need the recipient's answer.
	var pending []store.Task
	for _, t := range tasks {
		if t.HandoffPending() {
			pending = append(pending, t)
		}
	}
	if len(pending) > 0 {
		fmt.Printf("%s%s⇄  Handoffs waiting for acceptance%s\n", colorBold, colorYellow, colorReset)
		for _, t := range pending {
			fmt.Printf("  %s%s%s: %s → %s\n", colorYellow, shortID(t.ID), colorReset, t.HandoffFrom, t.HandoffTo)
			fmt.Printf("       → %staskpool task accept %s --as %s%s\n", colorCyan, shortID(t.ID), t.HandoffTo, colorReset)
		}
		fmt.Println()
	}

	fmt.Printf("%s%d tasks%s", colorBold, len(tasks), colorReset)
	if n := len(order[0].tasks); n > 0 {
		fmt.Printf("  %s○ %d in pool%s", colorWhite, n, colorReset)
	}
	if n := len(order[2].tasks); n > 0 {
		fmt.Printf("  %s● %d in progress%s", colorBlue, n, colorReset)
	}
	if n := len(order[3].tasks); n > 0 {
		fmt.Printf("  %s✓ %d done%s", colorGreen, n, colorReset)
	}
	fmt.Println()
	return nil
}

func ownerLabel(t store.Task) string {
	switch {
	case t.HandoffPending():
		return fmt.Sprintf("    %s → %s", t.HandoffFrom, t.HandoffTo)
	case t.ClaimedBy != "":
		return fmt.Sprintf("    [%s]", t.ClaimedBy)
	case t.AssignedTo != "":
		return fmt.Sprintf("    → %s", t.AssignedTo)
	}
	return ""
}

func priorityColor(p store.Priority) string {
	switch p {
	case store.PriorityUrgent:
		return colorRed + colorBold
	case store.PriorityHigh:
		return colorRed
	case store.PriorityMedium:
		return colorYellow
	case store.PriorityLow:
		return colorDim
	default:
		return ""
	}
}
