// Package startupfix runs the startup fix pipeline: detect the issue in a
// CI startup log, pick a strategy, patch the workflow or auth setup, and
// commit the result.
package startupfix

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hochfrequenz/e2e-self-heal/internal/classify"
	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
	"github.com/hochfrequenz/e2e-self-heal/internal/patch"
	"github.com/hochfrequenz/e2e-self-heal/internal/strategy"
	"github.com/hochfrequenz/e2e-self-heal/internal/vcs"
)

// Options controls a run
type Options struct {
	WorkflowPath  string
	AuthSetupPath string
	StoragePath   string
	DryRun        bool
	NoPush        bool
	RunID         string
}

// Result is the summary printed by the startup-fix command
type Result struct {
	Issue        domain.IssueCode    `json:"issue"`
	Strategy     domain.StrategyType `json:"strategy"`
	Description  string              `json:"description"`
	PatchApplied bool                `json:"patchApplied"`
	Committed    bool                `json:"committed"`
	Pushed       bool                `json:"pushed"`
	DryRun       bool                `json:"dryRun"`
	Outcome      *patch.Outcome      `json:"outcome,omitempty"`
	Git          *vcs.Result         `json:"git,omitempty"`
}

// Agent wires the pipeline stages together
type Agent struct {
	applier *patch.Applier
	git     vcs.Git
	logger  *zap.Logger
}

// NewAgent creates an agent. git may be nil when commits are never wanted.
func NewAgent(applier *patch.Applier, git vcs.Git, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{applier: applier, git: git, logger: logger.Named("startupfix")}
}

// CommitMessage is the commit message for an applied strategy
func CommitMessage(t domain.StrategyType) string {
	return "AI Startup Fix Agent applied fix: " + string(t)
}

// Run executes the pipeline for log. Errors are reserved for I/O failures
// that prevent any result; a patch that could not be applied is reported in
// the Result.
func (a *Agent) Run(ctx context.Context, log string, opts Options) (*Result, error) {
	issue := classify.DetectIssue(log)
	strat := strategy.Resolve(issue)
	res := &Result{
		Issue:       issue,
		Strategy:    strat.Type,
		Description: strat.Description,
		DryRun:      opts.DryRun,
	}
	a.logger.Info("issue detected",
		zap.String("issue", string(issue)),
		zap.String("strategy", string(strat.Type)))

	if !strategy.HasFixModule(strat.Type) {
		a.logger.Warn("no fix module for strategy", zap.String("strategy", string(strat.Type)))
		return res, nil
	}

	op, err := a.operation(strat.Type, opts)
	if err != nil {
		return nil, err
	}

	var out patch.Outcome
	if opts.DryRun {
		out, _, err = a.applier.Preview(op)
	} else {
		out, err = a.applier.Apply(ctx, op)
	}
	if err != nil {
		return nil, err
	}
	res.Outcome = &out
	res.PatchApplied = out.Result == patch.Applied

	if !res.PatchApplied {
		a.logger.Warn("patch not applied, skipping commit",
			zap.String("result", string(out.Result)),
			zap.String("reason", out.Reason))
		return res, nil
	}
	if opts.DryRun || a.git == nil {
		return res, nil
	}

	gr := vcs.CommitAndPush(ctx, a.git, CommitMessage(strat.Type), !opts.NoPush)
	res.Committed = gr.Committed
	res.Pushed = gr.Pushed
	res.Git = &gr
	if gr.FailedStep != "" {
		a.logger.Warn("git step failed", zap.String("step", string(gr.FailedStep)), zap.String("error", gr.Error))
	}
	return res, nil
}

func (a *Agent) operation(t domain.StrategyType, opts Options) (patch.Operation, error) {
	var op patch.Operation
	switch t {
	case domain.StrategyFixAuthSetup:
		op = patch.FixAuthSetup(opts.AuthSetupPath, opts.StoragePath)
	default:
		workflow, err := os.ReadFile(opts.WorkflowPath)
		if err != nil && !os.IsNotExist(err) {
			return op, fmt.Errorf("read workflow: %w", err)
		}
		switch t {
		case domain.StrategyCreateTestUser:
			op = patch.CreateTestUser(opts.WorkflowPath, string(workflow))
		case domain.StrategyFixDBEnvVariables:
			op = patch.FixDBEnvVariables(opts.WorkflowPath, string(workflow))
		case domain.StrategyFixDjangoSettingsModule:
			op = patch.FixDjangoSettings(opts.WorkflowPath, string(workflow))
		default:
			return op, fmt.Errorf("no fix module for %s", t)
		}
	}
	op.RunID = opts.RunID
	return op, nil
}
