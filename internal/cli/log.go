package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

var logCmd = &cobra.Command{
	Use:   "log [task-id]",
	Short: "Show the activity log for a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, s, err := mustEngine(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := resolveTaskID(ctx, e, args[0])
	if err != nil {
		return err
	}
	entries, err := e.Activity(ctx, id)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Printf("No activity for task %s\n", shortID(id))
		return nil
	}

	fmt.Printf("Activity for task %s:\n\n", shortID(id))
	for _, a := range entries {
		fmt.Printf("  %s  [%s] %-17s %s\n", a.CreatedAt.Local().Format("2006-01-02 15:04:05"), a.PerformedBy, a.Action, formatDetails(a.Details))
	}
	return nil
}

// formatDetails renders activity details as sorted key=value pairs.
func formatDetails(d store.JSONMap) string {
	if len(d) == 0 {
		return ""
	}
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := d[k]
		if s, ok := v.(string); ok {
			if s == "" {
				continue
			}
			if len(s) == 36 {
				s = shortID(s)
			}
			v = s
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, " ")
}
