package main

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/hochfrequenz/e2e-self-heal/internal/audit"
	"github.com/hochfrequenz/e2e-self-heal/internal/refactor"
	"github.com/hochfrequenz/e2e-self-heal/internal/supervisor"
)

// RefactorReportFile is written by refactor-selectors next to the audit report
const RefactorReportFile = "selector-refactor-report.json"

var (
	auditBaseURL    string
	auditControlURL string
	refactorInput   string
)

func init() {
	auditCmd := &cobra.Command{
		Use:   "audit-selectors",
		Short: "Probe the application for the selectors the E2E tests depend on",
		Long: `audit-selectors opens every registered page with the stored
authentication state and counts the matches of its selectors. The report
is written to selector-auditor.json; the command exits 1 unless every
selector was found. With FAULT_SCENARIO=selector a deliberately broken
selector is probed as well and must be reported missing.`,
		RunE: runAuditSelectors,
	}
	auditCmd.Flags().StringVar(&auditBaseURL, "base-url", "", "application URL (default from config or BASE_URL)")
	auditCmd.Flags().StringVar(&auditControlURL, "browser", "", "DevTools URL of a running browser instead of launching one")
	rootCmd.AddCommand(auditCmd)

	refactorCmd := &cobra.Command{
		Use:   "refactor-selectors",
		Short: "Rewrite page object selectors reported missing by the audit",
		RunE:  runRefactorSelectors,
	}
	refactorCmd.Flags().StringVar(&refactorInput, "input", "", "audit report (default: selector-auditor.json in the output dir)")
	rootCmd.AddCommand(refactorCmd)
}

func runAuditSelectors(cmd *cobra.Command, args []string) error {
	base := cfg.Audit.BaseURL
	if auditBaseURL != "" {
		base = auditBaseURL
	}

	open := audit.RodOpener(audit.RodConfig{
		BaseURL:    base,
		Headless:   cfg.Audit.Headless,
		Timeout:    time.Duration(cfg.Audit.TimeoutSeconds) * time.Second,
		ControlURL: auditControlURL,
	})
	report := audit.NewAuditor(open, logger).Run(cmd.Context(), audit.Options{
		StoragePath:   cfg.ProjectPath(cfg.Audit.StoragePath),
		FaultScenario: cfg.Audit.FaultScenario,
	})

	path, err := writeReport(supervisor.SelectorFile, report)
	if err != nil {
		return err
	}
	if err := printJSON(report); err != nil {
		return err
	}

	if !report.OK() {
		summary(failColor, "Selector audit %s: %s", report.Status, report.Reason)
		return exitWith(1, "selector audit failed, see %s", path)
	}
	summary(okColor, "All %d selectors found", len(report.Results))
	return nil
}

func runRefactorSelectors(cmd *cobra.Command, args []string) error {
	input := refactorInput
	if input == "" {
		input = filepath.Join(cfg.ProjectPath(cfg.Agents.OutputDir), supervisor.SelectorFile)
	}

	agent := refactor.NewAgent(cfg.ProjectPath("."), nil, logger)
	report, err := agent.Run(refactor.LoadAuditResults(input))
	if err != nil {
		return err
	}

	if _, err := writeReport(RefactorReportFile, report); err != nil {
		return err
	}
	if report.Status == refactor.StatusRefactored {
		n := 0
		for _, c := range report.Changes {
			if c.Action == refactor.ActionRefactored {
				n++
			}
		}
		summary(okColor, "Refactored %d selector(s)", n)
	} else {
		summary(dimColor, "No selectors refactored")
	}
	return printJSON(report)
}
