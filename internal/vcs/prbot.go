package vcs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// PRRequest describes a pull request to open
type PRRequest struct {
	Branch string
	Base   string
	Title  string
	Body   string
}

// PRBot handles branch preparation and PR creation with the gh CLI
type PRBot struct {
	repoDir string
	remote  string
}

// NewPRBot creates a new PRBot
func NewPRBot(repoDir string) *PRBot {
	return &PRBot{repoDir: repoDir, remote: "origin"}
}

func (p *PRBot) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = p.repoDir
	return cmd
}

// PrepareBranch checks out branch, resetting it to the current HEAD
func (p *PRBot) PrepareBranch(ctx context.Context, branch string) error {
	if out, err := p.command(ctx, "git", "checkout", "-B", branch).CombinedOutput(); err != nil {
		return fmt.Errorf("git checkout: %s: %w", out, err)
	}
	return nil
}

// CreatePR pushes the branch and opens a pull request for it
func (p *PRBot) CreatePR(ctx context.Context, req PRRequest) (int, string, error) {
	if out, err := p.command(ctx, "git", "push", "-u", p.remote, req.Branch).CombinedOutput(); err != nil {
		return 0, "", fmt.Errorf("git push: %s: %w", out, err)
	}

	args := []string{"pr", "create",
		"--title", req.Title,
		"--body", req.Body,
		"--head", req.Branch,
	}
	if req.Base != "" {
		args = append(args, "--base", req.Base)
	}
	out, err := p.command(ctx, "gh", args...).CombinedOutput()
	if err != nil {
		return 0, "", fmt.Errorf("gh pr create: %s: %w", out, err)
	}

	// gh may print warnings before the URL
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	url := strings.TrimSpace(lines[len(lines)-1])
	return extractPRNumber(url), url, nil
}

func extractPRNumber(url string) int {
	// URL format: https://github.com/owner/repo/pull/123
	parts := strings.Split(strings.TrimSpace(url), "/")
	var num int
	fmt.Sscanf(parts[len(parts)-1], "%d", &num)
	return num
}
