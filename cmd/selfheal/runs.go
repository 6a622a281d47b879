package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
	"github.com/hochfrequenz/e2e-self-heal/internal/retention"
	"github.com/hochfrequenz/e2e-self-heal/internal/runlogs"
	"github.com/hochfrequenz/e2e-self-heal/internal/runstore"
)

var (
	runsStatus    string
	runsErrorType string
	runsLimit     int
	runsJSON      bool
	pruneDays     int
	patchesTarget string
	patchesJSON   bool
)

func init() {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List ingested runs",
		RunE:  runRuns,
	}
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status")
	runsCmd.Flags().StringVar(&runsErrorType, "error-type", "", "filter by error type")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(runsCmd)

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stored run logs older than the retention period",
		RunE:  runPrune,
	}
	pruneCmd.Flags().IntVar(&pruneDays, "days", 0, "retention in days (default from config)")
	rootCmd.AddCommand(pruneCmd)

	patchesCmd := &cobra.Command{
		Use:   "patches",
		Short: "List the patches recorded in the applied-patch ledger",
		RunE:  runPatches,
	}
	patchesCmd.Flags().StringVar(&patchesTarget, "target", "", "only patches applied to this file")
	patchesCmd.Flags().BoolVar(&patchesJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(patchesCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(cmd.Context(), runstore.ListOptions{
		Status:    runsStatus,
		ErrorType: domain.ErrorType(runsErrorType),
		Limit:     runsLimit,
	})
	if err != nil {
		return err
	}
	if runsJSON {
		if runs == nil {
			runs = []*domain.RunRecord{}
		}
		return printJSON(runs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTATUS\tERROR TYPE\tCONFIDENCE\tBRANCH\tPROCESSED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.RunID, r.Status, r.ErrorType, r.Confidence, r.Branch,
			r.ProcessedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runPrune(cmd *cobra.Command, args []string) error {
	days := cfg.Ingest.RetentionDays
	if pruneDays > 0 {
		days = pruneDays
	}

	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	logs := runlogs.NewStore(cfg.ProjectPath(cfg.Ingest.LogsRoot), cfg.Ingest.FallbackRoot)
	n, err := retention.NewPruner(logs.Roots(), store, days, logger).Prune(cmd.Context())
	if err != nil {
		return err
	}
	summary(dimColor, "Pruned %d run(s) older than %d day(s)", n, days)
	return nil
}

func runPatches(cmd *cobra.Command, args []string) error {
	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	target := patchesTarget
	if target != "" {
		target = cfg.ProjectPath(target)
	}
	entries, err := store.ListPatches(cmd.Context(), target)
	if err != nil {
		return err
	}
	if patchesJSON {
		if entries == nil {
			entries = []domain.LedgerEntry{}
		}
		return printJSON(entries)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tSIGNATURE\tSOURCE\tRUN\tAPPLIED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Target, e.Signature, e.Source, e.RunID,
			e.AppliedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
