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
	sgSource     string
	sgRef        string
	sgAssign     string
	sgPriority   string
	sgDue        string
	sgClient     string
	sgType       string
	sgConfidence float64
	sgStatus     string

	approveTitle    string
	approveAssign   string
	approvePriority string
	approveDue      string
	approveClient   string
	approveType     string

	sgDeclineReason   string
	sgDeclineCategory string
)

var suggestionCmd = &cobra.Command{
	Use:     "suggestion",
	Aliases: []string{"sg"},
	Short:   "Review machine-suggested tasks",
}

var suggestionCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Record a suggested task for review",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSuggestionCreate,
}

var suggestionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List suggestions (pending by default)",
	RunE:  runSuggestionList,
}

var suggestionApproveCmd = &cobra.Command{
	Use:   "approve [id]",
	Short: "Approve a suggestion, optionally overriding fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runSuggestionApprove,
}

var suggestionDeclineCmd = &cobra.Command{
	Use:   "decline [id]",
	Short: "Decline a suggestion with a category",
	Long:  "Declines a pending suggestion. --category is one of: " + strings.Join(declineCategories, ", "),
	Args:  cobra.ExactArgs(1),
	RunE:  runSuggestionDecline,
}

var declineCategories = []string{
	pool.DeclineNotNeeded, pool.DeclineDuplicate, pool.DeclineWrongType,
	pool.DeclineWrongAssignee, pool.DeclineWrongClient, pool.DeclineOther,
}

func init() {
	suggestionCreateCmd.Flags().StringVar(&sgSource, "source", string(store.SourceManual), "Source: manual, phone_call, email")
	suggestionCreateCmd.Flags().StringVar(&sgRef, "ref", "", "Reference to the source record")
	suggestionCreateCmd.Flags().StringVar(&sgAssign, "assign", "", "Suggested assignee")
	suggestionCreateCmd.Flags().StringVarP(&sgPriority, "priority", "p", "medium", "Suggested priority")
	suggestionCreateCmd.Flags().StringVar(&sgDue, "due", "", "Suggested due date (YYYY-MM-DD)")
	suggestionCreateCmd.Flags().StringVar(&sgClient, "client", "", "Suggested client ID")
	suggestionCreateCmd.Flags().StringVarP(&sgType, "type", "t", "", "Suggested action type")
	suggestionCreateCmd.Flags().Float64Var(&sgConfidence, "confidence", -1, "Classifier confidence in [0, 1]")

	suggestionListCmd.Flags().StringVarP(&sgStatus, "status", "s", string(store.SuggestionPending), "pending, approved, declined or all")

	suggestionApproveCmd.Flags().StringVar(&approveTitle, "title", "", "Override title")
	suggestionApproveCmd.Flags().StringVar(&approveAssign, "assign", "", "Override assignee")
	suggestionApproveCmd.Flags().StringVar(&approvePriority, "priority", "", "Override priority")
	suggestionApproveCmd.Flags().StringVar(&approveDue, "due", "", "Override due date")
	suggestionApproveCmd.Flags().StringVar(&approveClient, "client", "", "Override client ID")
	suggestionApproveCmd.Flags().StringVar(&approveType, "type", "", "Override action type")

	suggestionDeclineCmd.Flags().StringVarP(&sgDeclineReason, "reason", "r", "", "Free-text reason")
	suggestionDeclineCmd.Flags().StringVarP(&sgDeclineCategory, "category", "c", pool.DeclineNotNeeded, "Decline category")

	suggestionCmd.AddCommand(suggestionCreateCmd)
	suggestionCmd.AddCommand(suggestionListCmd)
	suggestionCmd.AddCommand(suggestionApproveCmd)
	suggestionCmd.AddCommand(suggestionDeclineCmd)
}

// resolveSuggestionID expands a short suggestion id to a full id.
func resolveSuggestionID(ctx context.Context, e *pool.Engine, arg string) (string, error) {
	if len(arg) >= 36 {
		return arg, nil
	}
	list, err := e.Suggestions(ctx, "")
	if err != nil {
		return "", err
	}
	var match string
	for _, sg := range list {
		if matchID(sg.ID, arg) {
			if match != "" {
				return "", fmt.Errorf("suggestion id %q is ambiguous", arg)
			}
			match = sg.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("suggestion %s not found", arg)
	}
	return match, nil
}

func runSuggestionCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, s, err := mustEngine(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	in := pool.NewSuggestion{
		SourceType:   store.SourceType(sgSource),
		SourceRef:    sgRef,
		Title:        strings.Join(args, " "),
		AssignedTo:   sgAssign,
		Priority:     store.Priority(sgPriority),
		DueDate:      sgDue,
		ClientID:     sgClient,
		ActionTypeID: sgType,
	}
	if cmd.Flags().Changed("confidence") {
		in.AIConfidence = &sgConfidence
	}
	sg, err := e.CreateSuggestion(ctx, in)
	if err != nil {
		return err
	}
	fmt.Printf("Suggested %s: %s\n", shortID(sg.ID), sg.SuggestedTitle)
	return nil
}

func runSuggestionList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, s, err := mustEngine(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	status := store.SuggestionStatus(sgStatus)
	if sgStatus == "all" {
		status = ""
	}
	list, err := e.Suggestions(ctx, status)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No suggestions.")
		return nil
	}
	for _, sg := range list {
		conf := "   -"
		if sg.AIConfidence != nil {
			conf = fmt.Sprintf("%3.0f%%", *sg.AIConfidence*100)
		}
		who := ""
		if sg.SuggestedAssignedTo != "" {
			who = fmt.Sprintf(" [→ %s]", sg.SuggestedAssignedTo)
		}
		fmt.Printf("%-8s %-9s %s %-10s %s%s\n", shortID(sg.ID), sg.Status, conf, sg.SourceType, sg.SuggestedTitle, who)
	}
	return nil
}

func runSuggestionApprove(cmd *cobra.Command, args []string) error {
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

	id, err := resolveSuggestionID(ctx, e, args[0])
	if err != nil {
		return err
	}

	var ov pool.Overrides
	flags := cmd.Flags()
	set := func(name string, v string) *string {
		if !flags.Changed(name) {
			return nil
		}
		return &v
	}
	ov.Title = set("title", approveTitle)
	ov.AssignedTo = set("assign", approveAssign)
	ov.Priority = set("priority", approvePriority)
	ov.DueDate = set("due", approveDue)
	ov.ClientID = set("client", approveClient)
	ov.ActionTypeID = set("type", approveType)

	res, err := e.ApproveSuggestion(ctx, id, user, ov)
	if err != nil {
		return err
	}
	fmt.Printf("Approved %s as task %s: %s\n", shortID(id), shortID(res.TaskID), res.Task.Title)
	for field, c := range res.Modifications {
		fmt.Printf("  %s: %q → %q\n", field, c.From, c.To)
	}
	return nil
}

func runSuggestionDecline(cmd *cobra.Command, args []string) error {
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

	id, err := resolveSuggestionID(ctx, e, args[0])
	if err != nil {
		return err
	}
	res, err := e.DeclineSuggestion(ctx, id, user, sgDeclineReason, sgDeclineCategory)
	if err != nil {
		return err
	}
	fmt.Printf("Declined %s (%s)\n", shortID(id), res.DeclineCategory)
	return nil
}
