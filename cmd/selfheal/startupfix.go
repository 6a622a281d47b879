package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hochfrequenz/e2e-self-heal/internal/patch"
	"github.com/hochfrequenz/e2e-self-heal/internal/runstore"
	"github.com/hochfrequenz/e2e-self-heal/internal/startupfix"
	"github.com/hochfrequenz/e2e-self-heal/internal/vcs"
)

var (
	startupLogFile string
	startupDryRun  bool
	startupNoPush  bool
	startupRunID   string
)

func init() {
	startupCmd := &cobra.Command{
		Use:   "startup-fix [LOG...]",
		Short: "Detect and patch a CI startup failure",
		Long: `startup-fix reads a startup log (from --log or the positional
arguments), detects the issue, and patches the CI workflow or the
auth setup. Applied patches are committed and pushed unless --dry-run
or --no-push is given.`,
		RunE: runStartupFix,
	}
	startupCmd.Flags().StringVar(&startupLogFile, "log", "", "read the log from FILE")
	startupCmd.Flags().BoolVar(&startupDryRun, "dry-run", false, "detect and preview without writing")
	startupCmd.Flags().BoolVar(&startupNoPush, "no-push", false, "commit but do not push")
	startupCmd.Flags().StringVar(&startupRunID, "run-id", "", "CI run the log belongs to")
	rootCmd.AddCommand(startupCmd)
}

func readStartupLog(args []string) (string, error) {
	if startupLogFile != "" {
		data, err := os.ReadFile(startupLogFile)
		if err != nil {
			return "", fmt.Errorf("reading log: %w", err)
		}
		return string(data), nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("no log given: pass the log text or --log FILE")
	}
	return strings.Join(args, " "), nil
}

func runStartupFix(cmd *cobra.Command, args []string) error {
	log, err := readStartupLog(args)
	if err != nil {
		return fail("missing-log", err)
	}

	workflow := cfg.ProjectPath(cfg.StartupFix.WorkflowPath)
	if _, err := os.Stat(workflow); err != nil {
		return fail("workflow-not-found", fmt.Errorf("workflow not found: %s", workflow))
	}

	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening patch ledger: %w", err)
	}
	defer store.Close()

	var git vcs.Git
	if !startupDryRun {
		git = vcs.NewExecGit(cfg.General.ProjectRoot)
	}
	agent := startupfix.NewAgent(patch.NewApplier(store, logger), git, logger)

	res, err := agent.Run(cmd.Context(), log, startupfix.Options{
		WorkflowPath:  workflow,
		AuthSetupPath: cfg.ProjectPath(cfg.StartupFix.AuthSetupPath),
		StoragePath:   cfg.Audit.StoragePath,
		DryRun:        startupDryRun,
		NoPush:        startupNoPush || !cfg.StartupFix.Push,
		RunID:         startupRunID,
	})
	if err != nil {
		return err
	}

	switch {
	case res.PatchApplied && res.DryRun:
		summary(warnColor, "Would apply %s for %s (dry run)", res.Strategy, res.Issue)
	case res.PatchApplied:
		summary(okColor, "Applied %s for %s", res.Strategy, res.Issue)
	default:
		summary(dimColor, "No patch applied for %s (%s)", res.Issue, res.Strategy)
	}
	return printJSON(res)
}
