package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hochfrequenz/e2e-self-heal/internal/fixagent"
	"github.com/hochfrequenz/e2e-self-heal/internal/vcs"
)

var (
	fixInput  string
	fixOutDir string
	fixCommit bool
	fixNoPush bool
	fixOpenPR bool
	fixBranch string
)

func init() {
	fixCmd := &cobra.Command{
		Use:   "fix-agent",
		Short: "Repair Playwright test code for a classified failure",
		Long: `fix-agent reads an analysis document, rewrites the suspected test
files inside the allowed paths, and writes patch-<run>.diff and
metadata-<run>.json to the output directory. With --commit the changes
are committed on the fix branch; --open-pr also opens a pull request.`,
		RunE: runFixAgent,
	}
	fixCmd.Flags().StringVar(&fixInput, "input", "", "analysis document (required)")
	fixCmd.Flags().StringVar(&fixOutDir, "out-dir", "", "directory for the patch and metadata (default: output dir)")
	fixCmd.Flags().BoolVar(&fixCommit, "commit", false, "commit the repaired files")
	fixCmd.Flags().BoolVar(&fixNoPush, "no-push", false, "do not push the fix branch")
	fixCmd.Flags().BoolVar(&fixOpenPR, "open-pr", false, "open a pull request for the fix branch")
	fixCmd.Flags().StringVar(&fixBranch, "branch", "", "fix branch (default from config)")
	_ = fixCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(fixCmd)
}

func runFixAgent(cmd *cobra.Command, args []string) error {
	in, err := fixagent.LoadInput(fixInput)
	if err != nil {
		return fail("invalid-input", fmt.Errorf("loading input: %w", err))
	}

	outDir := fixOutDir
	if outDir == "" {
		outDir = cfg.ProjectPath(cfg.Agents.OutputDir)
	}
	branch := cfg.FixAgent.Branch
	if fixBranch != "" {
		branch = fixBranch
	}

	root := cfg.ProjectPath(".")
	var git vcs.Git
	var pr fixagent.PRCreator
	if fixCommit || fixOpenPR {
		git = vcs.NewExecGit(root)
		pr = vcs.NewPRBot(root)
	}

	agent := fixagent.NewAgent(root, cfg.FixAgent.AllowedPaths, git, pr, logger)
	meta, err := agent.Run(cmd.Context(), in, fixagent.Options{
		OutDir: outDir,
		Commit: fixCommit || fixOpenPR,
		Push:   !fixNoPush,
		OpenPR: fixOpenPR,
		Branch: branch,
		Base:   cfg.FixAgent.Base,
	})
	if err != nil {
		return err
	}

	switch {
	case meta.NeedsManualReview:
		summary(warnColor, "Run %s needs manual review (%s)", meta.RunID, meta.ErrorType)
	case len(meta.ChangeSummary.ChangedFiles) > 0:
		summary(okColor, "Repaired %d file(s) for run %s", len(meta.ChangeSummary.ChangedFiles), meta.RunID)
	default:
		summary(dimColor, "No changes for run %s", meta.RunID)
	}
	if meta.PR != nil {
		summary(okColor, "Opened PR #%d: %s", meta.PR.Number, meta.PR.URL)
	}
	return printJSON(meta)
}
