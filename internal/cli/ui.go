package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the interactive pool board",
	Long:  "Opens an interactive board with the pool, your tasks and handoffs waiting for you. Claim, release, complete and hand off without leaving it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUI(cmd)
	},
}

func runUI(cmd *cobra.Command) error {
	user, err := currentUser()
	if err != nil {
		return err
	}
	e, s, err := mustEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	p := tea.NewProgram(tui.New(e, user), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
