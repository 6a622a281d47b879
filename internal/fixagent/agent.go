package fixagent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
	"github.com/hochfrequenz/e2e-self-heal/internal/instructions"
	"github.com/hochfrequenz/e2e-self-heal/internal/patch/repair"
	"github.com/hochfrequenz/e2e-self-heal/internal/runlogs"
	"github.com/hochfrequenz/e2e-self-heal/internal/vcs"
)

// Skip reasons for candidate files
const (
	SkipOutsideRoot = "outside-root"
	SkipNotAllowed  = "not-allowed"
	SkipMissing     = "file-missing"
	SkipNoChange    = "no-change"
)

// RepairFor returns the repair registered for an error type
func RepairFor(t domain.ErrorType) (string, repair.Func, bool) {
	switch t {
	case domain.ErrorFrontendSelector:
		return "selector", repair.Selector, true
	case domain.ErrorFrontendTiming:
		return "timing", repair.Timing, true
	case domain.ErrorFrontendAvailability, domain.ErrorAPI404:
		return "url-typo", repair.URLs, true
	}
	return "", nil, false
}

// SkippedFile is a candidate the agent did not change
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// FileChange lists the rewrites made in one file
type FileChange struct {
	Path    string          `json:"path"`
	Changes []repair.Change `json:"changes"`
}

// ChangeSummary summarises the patch
type ChangeSummary struct {
	ChangedFiles []string      `json:"changed_files"`
	Changes      []FileChange  `json:"changes"`
	Skipped      []SkippedFile `json:"skipped"`
	// Protected lists fault-injection literals that were left untouched.
	Protected []string `json:"protected,omitempty"`
}

// Hints carry the evidence forward for a human reviewer
type Hints struct {
	PlaywrightSnippet string   `json:"playwright_snippet"`
	BackendSnippet    string   `json:"backend_snippet"`
	FailingTests      []string `json:"failing_tests"`
	SuspectedPaths    []string `json:"suspected_paths"`
}

// PRInfo describes an opened pull request
type PRInfo struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

// Metadata is written next to the patch as metadata-<run>.json
type Metadata struct {
	RunID             string           `json:"run_id"`
	ErrorType         domain.ErrorType `json:"error_type"`
	Repair            string           `json:"repair,omitempty"`
	Allowed           bool             `json:"allowed"`
	NeedsManualReview bool             `json:"needs_manual_review"`
	ChangeSummary     ChangeSummary    `json:"change_summary"`
	Hints             Hints            `json:"hints"`
	PatchFile         string           `json:"patch_file"`
	GeneratedAt       string           `json:"generated_at"`
	Git               *vcs.Result      `json:"git,omitempty"`
	PR                *PRInfo          `json:"pr,omitempty"`
	PRError           string           `json:"pr_error,omitempty"`
}

// PRCreator prepares branches and opens pull requests
type PRCreator interface {
	PrepareBranch(ctx context.Context, branch string) error
	CreatePR(ctx context.Context, req vcs.PRRequest) (int, string, error)
}

// Options controls a run
type Options struct {
	OutDir string
	Commit bool
	Push   bool
	OpenPR bool
	Branch string
	Base   string
}

// Agent applies repairs inside one repository
type Agent struct {
	root    string
	allowed []string
	git     vcs.Git
	pr      PRCreator
	logger  *zap.Logger
	now     func() time.Time
}

// NewAgent creates an agent for the repository at root. Only files matching
// one of the allowed globs (slash separated, relative to root) are touched.
func NewAgent(root string, allowed []string, git vcs.Git, pr PRCreator, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		root:    root,
		allowed: allowed,
		git:     git,
		pr:      pr,
		logger:  logger.Named("fixagent"),
		now:     time.Now,
	}
}

// Run repairs the candidate files of in and writes the patch and metadata
// files into opts.OutDir.
func (a *Agent) Run(ctx context.Context, in *Input, opts Options) (*Metadata, error) {
	runID := runlogs.NormalizeRunID(string(in.RunID))
	errorType := in.Analysis.Classification.ErrorType
	fi := in.Analysis.FixAgentInstructions

	meta := &Metadata{
		RunID:     runID,
		ErrorType: errorType,
		Hints: Hints{
			PlaywrightSnippet: stripansi.Strip(fi.KeyLogSnippets.Playwright),
			BackendSnippet:    stripansi.Strip(fi.KeyLogSnippets.Backend),
			FailingTests:      fi.FailingTests,
			SuspectedPaths:    fi.SuspectedPaths,
		},
		PatchFile:   filepath.Join(opts.OutDir, "patch-"+runID+".diff"),
		GeneratedAt: a.now().UTC().Format(time.RFC3339),
		ChangeSummary: ChangeSummary{
			ChangedFiles: []string{},
			Changes:      []FileChange{},
			Skipped:      []SkippedFile{},
		},
	}

	name, fn, ok := RepairFor(errorType)
	meta.Repair = name
	meta.Allowed = ok

	if ok && opts.OpenPR && a.pr != nil {
		if err := a.pr.PrepareBranch(ctx, opts.Branch); err != nil {
			meta.PRError = err.Error()
			opts.OpenPR = false
		}
	}

	var diff strings.Builder
	if ok {
		rctx := repair.Context{
			PlaywrightSnippet: meta.Hints.PlaywrightSnippet,
			BackendSnippet:    meta.Hints.BackendSnippet,
		}
		for _, rel := range in.Candidates() {
			if err := a.repairFile(rel, fn, rctx, meta, &diff); err != nil {
				return nil, err
			}
		}
	}
	meta.NeedsManualReview = !meta.Allowed || len(meta.ChangeSummary.ChangedFiles) == 0

	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("creating out dir: %w", err)
	}
	if err := runlogs.WriteFile(meta.PatchFile, []byte(diff.String())); err != nil {
		return nil, fmt.Errorf("write patch: %w", err)
	}

	if len(meta.ChangeSummary.ChangedFiles) > 0 && (opts.Commit || opts.OpenPR) && a.git != nil {
		msg := fmt.Sprintf("AI Fix Agent applied %s repair for %s (run %s)", name, errorType, runID)
		// CreatePR pushes with -u itself
		gr := vcs.CommitAndPush(ctx, a.git, msg, opts.Push && !opts.OpenPR)
		meta.Git = &gr
		if gr.Committed && opts.OpenPR && a.pr != nil {
			pr := instructions.BuildFor(errorType, opts.Branch, opts.Base).PR
			num, url, err := a.pr.CreatePR(ctx, vcs.PRRequest{Branch: pr.Branch, Base: pr.Base, Title: pr.Title, Body: pr.Body})
			if err != nil {
				meta.PRError = err.Error()
			} else {
				meta.PR = &PRInfo{Number: num, URL: url}
			}
		}
	}

	metaPath := filepath.Join(opts.OutDir, "metadata-"+runID+".json")
	if err := runlogs.WriteJSON(metaPath, meta); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	a.logger.Info("fix agent finished",
		zap.String("run_id", runID),
		zap.String("error_type", string(errorType)),
		zap.Int("changed_files", len(meta.ChangeSummary.ChangedFiles)),
		zap.Bool("needs_manual_review", meta.NeedsManualReview))
	return meta, nil
}

func (a *Agent) repairFile(rel string, fn repair.Func, rctx repair.Context, meta *Metadata, diff *strings.Builder) error {
	skip := func(reason string) {
		meta.ChangeSummary.Skipped = append(meta.ChangeSummary.Skipped, SkippedFile{Path: rel, Reason: reason})
	}

	clean, ok := a.resolve(rel)
	if !ok {
		skip(SkipOutsideRoot)
		return nil
	}
	if !a.isAllowed(clean) {
		skip(SkipNotAllowed)
		return nil
	}

	abs := filepath.Join(a.root, filepath.FromSlash(clean))
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			skip(SkipMissing)
			return nil
		}
		return fmt.Errorf("read %s: %w", clean, err)
	}

	res := fn(string(data), rctx)
	meta.ChangeSummary.Protected = append(meta.ChangeSummary.Protected, res.Skipped...)
	if !res.Changed() || res.Content == string(data) {
		skip(SkipNoChange)
		return nil
	}

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(data)),
		B:        difflib.SplitLines(res.Content),
		FromFile: "a/" + clean,
		ToFile:   "b/" + clean,
		Context:  3,
	})
	if err != nil {
		return fmt.Errorf("diff %s: %w", clean, err)
	}
	if err := runlogs.WriteFile(abs, []byte(res.Content)); err != nil {
		return fmt.Errorf("write %s: %w", clean, err)
	}

	diff.WriteString("diff --git a/" + clean + " b/" + clean + "\n")
	diff.WriteString(text)
	meta.ChangeSummary.ChangedFiles = append(meta.ChangeSummary.ChangedFiles, clean)
	meta.ChangeSummary.Changes = append(meta.ChangeSummary.Changes, FileChange{Path: clean, Changes: res.Changes})
	return nil
}

// resolve cleans rel into a slash-separated path that stays inside the root
func (a *Agent) resolve(rel string) (string, bool) {
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "/") || filepath.IsAbs(rel) {
		return "", false
	}
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(rel)))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	return clean, true
}

func (a *Agent) isAllowed(clean string) bool {
	for _, pattern := range a.allowed {
		if ok, err := doublestar.Match(pattern, clean); err == nil && ok {
			return true
		}
	}
	return false
}
