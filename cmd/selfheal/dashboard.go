package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/hochfrequenz/e2e-self-heal/internal/runstore"
	"github.com/hochfrequenz/e2e-self-heal/tui"
)

var dashboardFailedOnly bool

func init() {
	dashboardCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Launch the terminal dashboard over the run index",
		RunE:  runDashboard,
	}
	dashboardCmd.Flags().BoolVar(&dashboardFailedOnly, "failed", false, "show failed runs only")
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening run index: %w", err)
	}
	defer store.Close()

	model := tui.NewModel(tui.ModelConfig{
		Source:     store,
		FailedOnly: dashboardFailedOnly,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	_, err = p.Run()
	return err
}
