package main

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/hochfrequenz/e2e-self-heal/internal/flaky"
)

var flakyJUnit []string

func init() {
	flakyCmd := &cobra.Command{
		Use:   "flaky",
		Short: "Separate flaky from deterministic failures across JUnit reports",
		RunE:  runFlaky,
	}
	flakyCmd.Flags().StringSliceVar(&flakyJUnit, "junit", nil, "JUnit XML files or glob patterns, one per run")
	_ = flakyCmd.MarkFlagRequired("junit")
	rootCmd.AddCommand(flakyCmd)
}

// expandJUnit resolves glob patterns; plain paths are kept even when they
// do not exist so the reader reports them.
func expandJUnit(patterns []string) ([]string, error) {
	var paths []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			paths = append(paths, p)
			continue
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}

func runFlaky(cmd *cobra.Command, args []string) error {
	paths, err := expandJUnit(flakyJUnit)
	if err != nil {
		return err
	}
	report, err := flaky.ClassifyFiles(paths)
	if err != nil {
		return fail("invalid-junit", err)
	}
	if _, err := writeReport(flaky.ReportFile, report); err != nil {
		return err
	}

	switch {
	case len(report.Deterministic) > 0:
		summary(failColor, "%d deterministic, %d flaky over %d run(s)", len(report.Deterministic), len(report.Flaky), report.Runs)
	case len(report.Flaky) > 0:
		summary(warnColor, "%d flaky over %d run(s)", len(report.Flaky), report.Runs)
	default:
		summary(okColor, "No failures over %d run(s)", report.Runs)
	}
	return printJSON(report)
}
