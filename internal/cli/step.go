package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/pool"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

var stepAssign string

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Manage a task's checklist",
}

var stepAddCmd = &cobra.Command{
	Use:   "add [task-id] [description]",
	Short: "Append a step",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runStepAdd,
}

var stepListCmd = &cobra.Command{
	Use:   "list [task-id]",
	Short: "List steps in order",
	Args:  cobra.ExactArgs(1),
	RunE:  runStepList,
}

var stepToggleCmd = &cobra.Command{
	Use:   "toggle [task-id] [step-number]",
	Short: "Mark a step done or not done",
	Args:  cobra.ExactArgs(2),
	RunE:  runStepToggle,
}

var stepDeleteCmd = &cobra.Command{
	Use:   "delete [task-id] [step-number]",
	Short: "Delete a step and renumber the rest",
	Args:  cobra.ExactArgs(2),
	RunE:  runStepDelete,
}

var stepReorderCmd = &cobra.Command{
	Use:   "reorder [task-id] [step-number...]",
	Short: "Move the given steps to the front, in that order",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runStepReorder,
}

func init() {
	stepAddCmd.Flags().StringVar(&stepAssign, "assign", "", "User responsible for the step")

	stepCmd.AddCommand(stepAddCmd)
	stepCmd.AddCommand(stepListCmd)
	stepCmd.AddCommand(stepToggleCmd)
	stepCmd.AddCommand(stepDeleteCmd)
	stepCmd.AddCommand(stepReorderCmd)
}

func stepLine(st store.Step) string {
	mark := "[ ]"
	if st.IsCompleted {
		mark = "[x]"
	}
	who := ""
	if st.AssignedTo != "" {
		who = fmt.Sprintf(" (%s)", st.AssignedTo)
	}
	return fmt.Sprintf("%2d. %s %s%s", st.StepNumber, mark, st.Description, who)
}

// resolveStep finds a step by its number, or by id.
func resolveStep(ctx context.Context, e *pool.Engine, taskID, arg string) (string, error) {
	steps, err := e.Steps(ctx, taskID)
	if err != nil {
		return "", err
	}
	for _, st := range steps {
		if fmt.Sprint(st.StepNumber) == arg || st.ID == arg {
			return st.ID, nil
		}
	}
	return "", fmt.Errorf("task %s has no step %s", shortID(taskID), arg)
}

func runStepAdd(cmd *cobra.Command, args []string) error {
	return withTask(cmd, args[0], func(ctx context.Context, e *pool.Engine, user, id string) error {
		st, err := e.AddStep(ctx, id, user, strings.Join(args[1:], " "), stepAssign)
		if err != nil {
			return err
		}
		fmt.Println("Added " + stepLine(*st))
		return nil
	})
}

func runStepList(cmd *cobra.Command, args []string) error {
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
	steps, err := e.Steps(ctx, id)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		fmt.Println("No steps.")
		return nil
	}
	for _, st := range steps {
		fmt.Println(stepLine(st))
	}
	return nil
}

func runStepToggle(cmd *cobra.Command, args []string) error {
	return withTask(cmd, args[0], func(ctx context.Context, e *pool.Engine, user, id string) error {
		stepID, err := resolveStep(ctx, e, id, args[1])
		if err != nil {
			return err
		}
		res, err := e.ToggleStep(ctx, id, stepID, user)
		if err != nil {
			return err
		}
		fmt.Println(stepLine(*res.Step))
		if res.AllStepsCompleted {
			fmt.Printf("All steps done. Complete the task with: taskpool task complete %s\n", shortID(id))
		}
		return nil
	})
}

func runStepDelete(cmd *cobra.Command, args []string) error {
	return withTask(cmd, args[0], func(ctx context.Context, e *pool.Engine, user, id string) error {
		stepID, err := resolveStep(ctx, e, id, args[1])
		if err != nil {
			return err
		}
		if err := e.DeleteStep(ctx, id, stepID, user); err != nil {
			return err
		}
		fmt.Printf("Deleted step %s\n", args[1])
		return nil
	})
}

func runStepReorder(cmd *cobra.Command, args []string) error {
	return withTask(cmd, args[0], func(ctx context.Context, e *pool.Engine, user, id string) error {
		ids := make([]string, 0, len(args)-1)
		for _, a := range args[1:] {
			stepID, err := resolveStep(ctx, e, id, a)
			if err != nil {
				return err
			}
			ids = append(ids, stepID)
		}
		steps, err := e.ReorderSteps(ctx, id, user, ids)
		if err != nil {
			return err
		}
		for _, st := range steps {
			fmt.Println(stepLine(st))
		}
		return nil
	})
}
