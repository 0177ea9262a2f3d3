package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/pool"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

var (
	taskPriority    string
	taskDescription string
	taskAssign      string
	taskActionType  string
	taskClient      string
	taskDue         string

	taskListMine bool
	taskListPool bool
	taskListAll  bool

	handoffNotes  string
	declineReason string
	cancelReason  string

	routeActionType string
	routeTitle      string
	routeAssign     string
	routeDue        string
	routePriority   string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create or work on tasks",
	Long:  "Create tasks and move them through the pool: claim, release, assign, hand off, complete or cancel.",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a new task in the pool",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskCreate,
}

var taskListCmd = &cobra.Command{
	Use:   "list [status]",
	Short: "List tasks, optionally filtered by status",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show task details, steps and handoffs",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskClaimCmd = &cobra.Command{
	Use:   "claim [id]",
	Short: "Claim an open task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskClaim,
}

var taskReleaseCmd = &cobra.Command{
	Use:   "release [id]",
	Short: "Put a task you claimed back in the pool",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRelease,
}

var taskAssignCmd = &cobra.Command{
	Use:   "assign [id] [user]",
	Short: "Assign a task to a user (requires the assign permission)",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskAssign,
}

var taskUnassignCmd = &cobra.Command{
	Use:   "unassign [id]",
	Short: "Clear a task's assignment",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskUnassign,
}

var taskHandoffCmd = &cobra.Command{
	Use:   "handoff [id] [user]",
	Short: "Hand a task you claimed to another user",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskHandoff,
}

var taskAcceptCmd = &cobra.Command{
	Use:   "accept [id]",
	Short: "Accept a handoff addressed to you",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskAccept,
}

var taskDeclineCmd = &cobra.Command{
	Use:   "decline [id]",
	Short: "Decline a handoff addressed to you",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDecline,
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete [id]",
	Short: "Complete a task, optionally routing a follow-up",
	Long:  "Marks a task completed. With --route a follow-up task is created in that action type;\nif routing fails the completion still stands and the routing error is printed.",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskComplete,
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a task (requires the cancel permission)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskCancel,
}

func init() {
	taskCreateCmd.Flags().StringVarP(&taskPriority, "priority", "p", "medium", "Priority: low, medium, high, urgent")
	taskCreateCmd.Flags().StringVarP(&taskDescription, "desc", "d", "", "Task description")
	taskCreateCmd.Flags().StringVar(&taskAssign, "assign", "", "Assign directly to a user")
	taskCreateCmd.Flags().StringVarP(&taskActionType, "type", "t", "", "Action type")
	taskCreateCmd.Flags().StringVar(&taskClient, "client", "", "Client ID")
	taskCreateCmd.Flags().StringVar(&taskDue, "due", "", "Due date (YYYY-MM-DD)")

	taskListCmd.Flags().BoolVar(&taskListMine, "mine", false, "Only tasks claimed by or assigned to you")
	taskListCmd.Flags().BoolVar(&taskListPool, "pool", false, "Only open, unclaimed, unassigned tasks")
	taskListCmd.Flags().BoolVarP(&taskListAll, "all", "a", false, "Include completed and cancelled tasks")

	taskHandoffCmd.Flags().StringVarP(&handoffNotes, "notes", "n", "", "Notes for the recipient")
	taskDeclineCmd.Flags().StringVarP(&declineReason, "reason", "r", "", "Why the handoff is declined")
	taskCancelCmd.Flags().StringVarP(&cancelReason, "reason", "r", "", "Why the task is cancelled")

	taskCompleteCmd.Flags().StringVar(&routeActionType, "route", "", "Route a follow-up into this action type")
	taskCompleteCmd.Flags().StringVar(&routeTitle, "route-title", "", "Follow-up title (default \"Follow-up: <title>\")")
	taskCompleteCmd.Flags().StringVar(&routeAssign, "route-assign", "", "Assign the follow-up to a user")
	taskCompleteCmd.Flags().StringVar(&routeDue, "route-due", "", "Follow-up due date (default inherited)")
	taskCompleteCmd.Flags().StringVar(&routePriority, "route-priority", "", "Follow-up priority (default inherited)")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskClaimCmd)
	taskCmd.AddCommand(taskReleaseCmd)
	taskCmd.AddCommand(taskAssignCmd)
	taskCmd.AddCommand(taskUnassignCmd)
	taskCmd.AddCommand(taskHandoffCmd)
	taskCmd.AddCommand(taskAcceptCmd)
	taskCmd.AddCommand(taskDeclineCmd)
	taskCmd.AddCommand(taskCompleteCmd)
	taskCmd.AddCommand(taskCancelCmd)
}

// resolveTaskID expands a short id, as printed by list, to a full id.
func resolveTaskID(ctx context.Context, e *pool.Engine, arg string) (string, error) {
	if len(arg) >= 36 {
		return arg, nil
	}
	tasks, err := e.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return "", err
	}
	var match string
	for _, t := range tasks {
		if matchID(t.ID, arg) {
			if match != "" {
				return "", fmt.Errorf("task id %q is ambiguous", arg)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("task %s not found", arg)
	}
	return match, nil
}

// withTask runs fn with an engine, the acting user and the resolved task id.
func withTask(cmd *cobra.Command, arg string, fn func(ctx context.Context, e *pool.Engine, user, id string) error) error {
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

	id, err := resolveTaskID(ctx, e, arg)
	if err != nil {
		return err
	}
	return fn(ctx, e, user, id)
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
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

	task, err := e.CreateTask(ctx, user, pool.NewTask{
		Title:        strings.Join(args, " "),
		Description:  taskDescription,
		Priority:     store.Priority(taskPriority),
		ActionTypeID: taskActionType,
		ClientID:     taskClient,
		AssignTo:     taskAssign,
		DueDate:      taskDue,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created task %s: %s [%s]\n", shortID(task.ID), task.Title, task.Priority)
	if task.AssignedTo != "" {
		fmt.Printf("  Assigned to %s\n", task.AssignedTo)
	}
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, s, err := mustEngine(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	f := store.TaskFilter{PoolOnly: taskListPool}
	if len(args) > 0 {
		f.Status = store.TaskStatus(args[0])
		if !store.ValidStatus(f.Status) {
			return fmt.Errorf("unknown status %q", args[0])
		}
	}

	tasks, err := e.ListTasks(ctx, f)
	if err != nil {
		return err
	}

	var user string
	if taskListMine {
		if user, err = currentUser(); err != nil {
			return err
		}
	}

	shown := 0
	for _, t := range tasks {
		if f.Status == "" && !taskListAll && (t.Status == store.StatusCompleted || t.Status == store.StatusCancelled) {
			continue
		}
		if user != "" && t.ClaimedBy != user && t.AssignedTo != user && t.HandoffTo != user {
			continue
		}
		fmt.Println(taskLine(t))
		shown++
	}
	if shown == 0 {
		fmt.Println("No tasks found.")
	}
	return nil
}

func taskLine(t store.Task) string {
	who := ""
	switch {
	case t.HandoffPending():
		who = fmt.Sprintf(" [%s → %s]", t.HandoffFrom, t.HandoffTo)
	case t.ClaimedBy != "":
		who = fmt.Sprintf(" [%s]", t.ClaimedBy)
	case t.AssignedTo != "":
		who = fmt.Sprintf(" [→ %s]", t.AssignedTo)
	}
	due := ""
	if t.DueDate != "" {
		due = " due " + t.DueDate
	}
	return fmt.Sprintf("%-8s %-11s %-6s %s%s%s", shortID(t.ID), t.Status, t.Priority, t.Title, who, due)
}

func runTaskShow(cmd *cobra.Command, args []string) error {
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
	return showTask(ctx, e, id)
}

func showTask(ctx context.Context, e *pool.Engine, id string) error {
	task, err := e.GetTask(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Task %s\n", task.ID)
	fmt.Printf("  Title:    %s\n", task.Title)
	fmt.Printf("  Status:   %s\n", task.Status)
	fmt.Printf("  Priority: %s\n", task.Priority)
	if task.Description != "" {
		fmt.Printf("  Desc:     %s\n", task.Description)
	}
	if task.ActionTypeID != "" {
		fmt.Printf("  Type:     %s\n", task.ActionTypeID)
	}
	if task.ClientID != "" {
		fmt.Printf("  Client:   %s\n", task.ClientID)
	}
	if task.ClaimedBy != "" {
		fmt.Printf("  Claimed:  %s\n", task.ClaimedBy)
	}
	if task.AssignedTo != "" {
		fmt.Printf("  Assigned: %s (by %s)\n", task.AssignedTo, task.AssignedBy)
	}
	if task.HandoffPending() {
		fmt.Printf("  Handoff:  %s → %s %q\n", task.HandoffFrom, task.HandoffTo, task.HandoffNotes)
	}
	if task.DueDate != "" {
		fmt.Printf("  Due:      %s\n", task.DueDate)
	}
	if task.RoutedFromTaskID != "" {
		fmt.Printf("  From:     %s\n", shortID(task.RoutedFromTaskID))
	}
	fmt.Printf("  Source:   %s\n", task.SourceType)
	fmt.Printf("  Created:  %s by %s\n", task.CreatedAt.Format("2006-01-02 15:04"), task.CreatedBy)
	fmt.Printf("  Updated:  %s\n", task.UpdatedAt.Format("2006-01-02 15:04"))

	steps, err := e.Steps(ctx, id)
	if err != nil {
		return err
	}
	if len(steps) > 0 {
		fmt.Println("\n  Steps:")
		for _, st := range steps {
			fmt.Println("    " + stepLine(st))
		}
	}

	handoffs, err := e.Handoffs(ctx, id)
	if err != nil {
		return err
	}
	if len(handoffs) > 0 {
		fmt.Println("\n  Handoffs:")
		for _, h := range handoffs {
			fmt.Printf("    %s %s → %s %s\n", h.CreatedAt.Format("01-02 15:04"), h.FromUser, h.ToUser, h.Notes)
		}
	}
	return nil
}

func runTaskClaim(cmd *cobra.Command, args []string) error {
	return withTask(cmd, args[0], func(ctx context.Context, e *pool.Engine, user, id string) error {
		task, err := e.Claim(ctx, id, user)
		if err != nil {
			return err
		}
		fmt.Printf("Claimed %s: %s\n", shortID(task.ID), task.Title)
		return nil
	})
}

func runTaskRelease(cmd *cobra.Command, args []string) error {
	return withTask(cmd, args[0], func(ctx context.Context, e *pool.Engine, user, id string) error {
		task, err := e.Release(ctx, id, user)
		if err != nil {
			return err
		}
		fmt.Printf("Released %s back to the pool\n", shortID(task.ID))
		return nil
	})
}

func runTaskAssign(cmd *cobra.Command, args []string) error {
	return withTask(cmd, args[0], func(ctx context.Context, e *pool.Engine, user, id string) error {
		task, err := e.Assign(ctx, id, args[1], user)
		if err != nil {
			return err
		}
		fmt.Printf("Assigned %s to %s\n", shortID(task.ID), task.AssignedTo)
		return nil
	})
}

func runTaskUnassign(cmd *cobra.Command, args []string) error {
	return withTask(cmd, args[0], func(ctx context.Context, e *pool.Engine, user, id string) error {
		task, err := e.Unassign(ctx, id, user)
		if err != nil {
			return err
		}
		fmt.Printf("Unassigned %s\n", shortID(task.ID))
		return nil
	})
}

func runTaskHandoff(cmd *cobra.Command, args []string) error {
	return withTask(cmd, args[0], func(ctx context.Context, e *pool.Engine, user, id string) error {
		res, err := e.InitiateHandoff(ctx, id, user, args[1], handoffNotes)
		if err != nil {
			return err
		}
		fmt.Printf("Handed %s to %s, waiting for them to accept\n", shortID(res.Task.ID), res.Record.ToUser)
		return nil
	})
}

func runTaskAccept(cmd *cobra.Command, args []string) error {
	return withTask(cmd, args[0], func(ctx context.Context, e *pool.Engine, user, id string) error {
		res, err := e.AcceptHandoff(ctx, id, user)
		if err != nil {
			return err
		}
		fmt.Printf("Accepted %s from %s, it is now claimed by you\n", shortID(res.Task.ID), res.Record.FromUser)
		return nil
	})
}

func runTaskDecline(cmd *cobra.Command, args []string) error {
	return withTask(cmd, args[0], func(ctx context.Context, e *pool.Engine, user, id string) error {
		res, err := e.DeclineHandoff(ctx, id, user, declineReason)
		if err != nil {
			return err
		}
		fmt.Printf("Declined %s, returned to %s\n", shortID(res.Task.ID), res.Record.ToUser)
		return nil
	})
}

func runTaskComplete(cmd *cobra.Command, args []string) error {
	return withTask(cmd, args[0], func(ctx context.Context, e *pool.Engine, user, id string) error {
		var route *pool.RouteSpec
		if routeActionType != "" {
			route = &pool.RouteSpec{
				ActionType: routeActionType,
				Title:      routeTitle,
				AssignTo:   routeAssign,
				DueDate:    routeDue,
				Priority:   store.Priority(routePriority),
			}
		}
		res, err := e.Complete(ctx, id, user, route)
		if err != nil {
			return err
		}
		fmt.Printf("Completed %s: %s\n", shortID(res.CompletedTask.ID), res.CompletedTask.Title)
		if res.RoutedTask != nil {
			fmt.Printf("  Routed to %s as %s: %s\n", res.RoutedTask.ActionTypeID, shortID(res.RoutedTask.ID), res.RoutedTask.Title)
		}
		if res.RoutingError != "" {
			fmt.Printf("  Routing failed: %s\n", res.RoutingError)
		}
		return nil
	})
}

func runTaskCancel(cmd *cobra.Command, args []string) error {
	return withTask(cmd, args[0], func(ctx context.Context, e *pool.Engine, user, id string) error {
		task, err := e.Cancel(ctx, id, user, cancelReason)
		if err != nil {
			return err
		}
		fmt.Printf("Cancelled %s: %s\n", shortID(task.ID), task.Title)
		return nil
	})
}
