// Package vcs stages, commits and pushes patched files, and opens pull
// requests for fixes.
package vcs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Git is the part of git the fix agents drive
type Git interface {
	Add(ctx context.Context) error
	Commit(ctx context.Context, message string) error
	Push(ctx context.Context) error
}

// ExecGit runs the git binary inside a working tree
type ExecGit struct {
	dir string
}

// NewExecGit creates an ExecGit for the repository at dir
func NewExecGit(dir string) *ExecGit {
	return &ExecGit{dir: dir}
}

func (g *ExecGit) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %s: %w", args[0], strings.TrimSpace(string(out)), err)
	}
	return string(out), nil
}

// Add stages every change in the working tree
func (g *ExecGit) Add(ctx context.Context) error {
	_, err := g.run(ctx, "add", ".")
	return err
}

// Commit records the staged changes. It fails when nothing is staged.
func (g *ExecGit) Commit(ctx context.Context, message string) error {
	_, err := g.run(ctx, "commit", "-m", message)
	return err
}

// Push pushes the current branch to its upstream
func (g *ExecGit) Push(ctx context.Context) error {
	_, err := g.run(ctx, "push")
	return err
}

// CurrentBranch returns the checked out branch name
func (g *ExecGit) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Step names a stage of CommitAndPush
type Step string

const (
	StepAdd    Step = "add"
	StepCommit Step = "commit"
	StepPush   Step = "push"
)

// Result reports how far CommitAndPush got
type Result struct {
	Staged     bool   `json:"staged"`
	Committed  bool   `json:"committed"`
	Pushed     bool   `json:"pushed"`
	FailedStep Step   `json:"failedStep,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CommitAndPush stages, commits and optionally pushes. Each step runs only
// when the previous one succeeded. A failed push leaves Committed set.
func CommitAndPush(ctx context.Context, g Git, message string, push bool) Result {
	var res Result
	fail := func(step Step, err error) Result {
		res.FailedStep = step
		res.Error = err.Error()
		return res
	}

	if err := g.Add(ctx); err != nil {
		return fail(StepAdd, err)
	}
	res.Staged = true

	if err := g.Commit(ctx, message); err != nil {
		return fail(StepCommit, err)
	}
	res.Committed = true

	if !push {
		return res
	}
	if err := g.Push(ctx); err != nil {
		return fail(StepPush, err)
	}
	res.Pushed = true
	return res
}
