package fixagent

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
	"github.com/hochfrequenz/e2e-self-heal/internal/vcs"
)

func ensureFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func newInput(runID string, errorType domain.ErrorType, paths []string, playwright string) *Input {
	in := &Input{RunID: RunID(runID)}
	in.Analysis.Classification.ErrorType = errorType
	in.Analysis.FixAgentInstructions = Instructions{
		SuspectedPaths: paths,
		FailingTests:   []string{"some test"},
		KeyLogSnippets: Snippets{Playwright: playwright},
	}
	return in
}

type result struct {
	patch string
	meta  *Metadata
}

func run(t *testing.T, root string, in *Input) result {
	t.Helper()
	outDir := filepath.Join(root, "fix-agent")
	ag := NewAgent(root, []string{"tests/**"}, nil, nil, zap.NewNop())
	meta, err := ag.Run(context.Background(), in, Options{OutDir: outDir})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	patch, err := os.ReadFile(filepath.Join(outDir, "patch-"+meta.RunID+".diff"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "metadata-"+meta.RunID+".json")); err != nil {
		t.Fatalf("metadata not written: %v", err)
	}
	return result{patch: string(patch), meta: meta}
}

func TestRun_StrictSelector(t *testing.T) {
	root := t.TempDir()
	ensureFile(t, filepath.Join(root, "tests", "pages", "calendar-page.ts"), strings.Join([]string{
		"import { test } from '@playwright/test';",
		"export function demo(page) {",
		"  return page.locator('#appointmentCalendar');",
		"}",
		"",
	}, "\n"))

	got := run(t, root, newInput("101", domain.ErrorFrontendSelector,
		[]string{"tests/pages/calendar-page.ts"},
		"Error: strict mode violation: locator('#appointmentCalendar') resolved to 2 elements"))

	if !strings.Contains(got.patch, ".first()") {
		t.Errorf("patch missing .first():\n%s", got.patch)
	}
	if !strings.HasPrefix(got.patch, "diff --git a/tests/pages/calendar-page.ts b/tests/pages/calendar-page.ts\n") {
		t.Errorf("patch header:\n%s", got.patch)
	}
	if len(got.meta.ChangeSummary.ChangedFiles) != 1 {
		t.Errorf("ChangedFiles = %v", got.meta.ChangeSummary.ChangedFiles)
	}
	if got.meta.NeedsManualReview || !got.meta.Allowed {
		t.Errorf("Allowed = %v, NeedsManualReview = %v", got.meta.Allowed, got.meta.NeedsManualReview)
	}
	content, _ := os.ReadFile(filepath.Join(root, "tests", "pages", "calendar-page.ts"))
	if !strings.Contains(string(content), "page.locator('#appointmentCalendar').first()") {
		t.Errorf("file not rewritten:\n%s", content)
	}
}

func TestRun_KeepsFileMode(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "tests", "pages", "calendar-page.ts")
	ensureFile(t, path, "export function demo(page) {\n  return page.locator('#appointmentCalendar');\n}\n")
	if err := os.Chmod(path, 0600); err != nil {
		t.Fatal(err)
	}

	got := run(t, root, newInput("103", domain.ErrorFrontendSelector,
		[]string{"tests/pages/calendar-page.ts"},
		"Error: strict mode violation: locator('#appointmentCalendar') resolved to 2 elements"))
	if len(got.meta.ChangeSummary.ChangedFiles) != 1 {
		t.Fatalf("ChangedFiles = %v", got.meta.ChangeSummary.ChangedFiles)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestRun_FaultSelectorLeftAlone(t *testing.T) {
	root := t.TempDir()
	original := "export function demo(page) {\n  return page.locator('#appointmentCalendarBROKEN');\n}\n"
	path := filepath.Join(root, "tests", "pages", "calendar-page.ts")
	ensureFile(t, path, original)

	got := run(t, root, newInput("101", domain.ErrorFrontendSelector,
		[]string{"tests/pages/calendar-page.ts"},
		"Error: waiting for selector '#appointmentCalendarBROKEN'"))

	if strings.TrimSpace(got.patch) != "" {
		t.Errorf("patch = %q, want empty", got.patch)
	}
	if len(got.meta.ChangeSummary.Protected) != 1 {
		t.Errorf("Protected = %v", got.meta.ChangeSummary.Protected)
	}
	if !got.meta.NeedsManualReview {
		t.Error("NeedsManualReview = false with no change")
	}
	content, _ := os.ReadFile(path)
	if string(content) != original {
		t.Error("fault fixture was modified")
	}
}

func TestRun_Timing(t *testing.T) {
	root := t.TempDir()
	ensureFile(t, filepath.Join(root, "tests", "e2e", "appointment-modal.spec.ts"), strings.Join([]string{
		"import { test } from '@playwright/test';",
		`test("timing", async ({ page }) => {`,
		"  await page.waitForTimeout(60000);",
		"});",
		"",
	}, "\n"))

	got := run(t, root, newInput("102", domain.ErrorFrontendTiming,
		[]string{"tests/e2e/appointment-modal.spec.ts"},
		"Test timeout of 30000ms exceeded; waitForTimeout(60000)"))

	if !strings.Contains(got.patch, "test.setTimeout(60000);") {
		t.Errorf("patch missing setTimeout:\n%s", got.patch)
	}
	if !strings.Contains(got.patch, "waitForTimeout(500)") {
		t.Errorf("patch missing bounded wait:\n%s", got.patch)
	}
}

func TestRun_URLTypos(t *testing.T) {
	tests := []struct {
		errorType domain.ErrorType
		file      string
		content   string
		want      string
	}{
		{domain.ErrorFrontendAvailability, "tests/pages/appointment-modal-page.ts", "export function url() {\n  return '/api/availabilty/?start=a&end=b';\n}\n", "/api/availability/"},
		{domain.ErrorAPI404, "tests/e2e/api.spec.ts", "export const endpoint = '/api/appoitments/';\n", "/api/appointments/"},
	}
	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			root := t.TempDir()
			ensureFile(t, filepath.Join(root, filepath.FromSlash(tt.file)), tt.content)
			got := run(t, root, newInput("103", tt.errorType, []string{tt.file}, "404 GET"))
			if !strings.Contains(got.patch, "+") || !strings.Contains(got.patch, tt.want) {
				t.Errorf("patch missing %s:\n%s", tt.want, got.patch)
			}
			if got.meta.Repair != "url-typo" {
				t.Errorf("Repair = %q", got.meta.Repair)
			}
		})
	}
}

func TestRun_UnknownIsMetadataOnly(t *testing.T) {
	root := t.TempDir()
	ensureFile(t, filepath.Join(root, "tests", "e2e", "dummy.spec.ts"), "export const x = 'y';\n")

	in := newInput("105", domain.ErrorUnknown, []string{"tests/e2e/dummy.spec.ts"}, "some unmatched failure")
	in.Logs.ExtractedSpecPaths = []string{"tests/e2e/dummy.spec.ts"}
	got := run(t, root, in)

	if strings.TrimSpace(got.patch) != "" {
		t.Errorf("patch = %q, want empty", got.patch)
	}
	if !got.meta.NeedsManualReview || got.meta.Allowed {
		t.Errorf("NeedsManualReview = %v, Allowed = %v", got.meta.NeedsManualReview, got.meta.Allowed)
	}
	if got.meta.Hints.PlaywrightSnippet != "some unmatched failure" {
		t.Errorf("Hints = %+v", got.meta.Hints)
	}
}

func TestRun_PathGuards(t *testing.T) {
	root := t.TempDir()
	ensureFile(t, filepath.Join(root, "src", "api.ts"), "const u = '/api/appoitments/';\n")

	got := run(t, root, newInput("7", domain.ErrorAPI404, []string{
		"../outside.ts",
		"/etc/passwd",
		"src/api.ts",
		"tests/missing.spec.ts",
	}, ""))

	want := map[string]string{
		"../outside.ts":         SkipOutsideRoot,
		"/etc/passwd":           SkipOutsideRoot,
		"src/api.ts":            SkipNotAllowed,
		"tests/missing.spec.ts": SkipMissing,
	}
	if len(got.meta.ChangeSummary.Skipped) != len(want) {
		t.Fatalf("Skipped = %+v", got.meta.ChangeSummary.Skipped)
	}
	for _, s := range got.meta.ChangeSummary.Skipped {
		if want[s.Path] != s.Reason {
			t.Errorf("Skipped[%s] = %q, want %q", s.Path, s.Reason, want[s.Path])
		}
	}
	content, _ := os.ReadFile(filepath.Join(root, "src", "api.ts"))
	if !strings.Contains(string(content), "appoitments") {
		t.Error("file outside the allow list was modified")
	}
}

type fakeGit struct{ commits []string }

func (f *fakeGit) Add(context.Context) error { return nil }
func (f *fakeGit) Commit(_ context.Context, m string) error {
	f.commits = append(f.commits, m)
	return nil
}
func (f *fakeGit) Push(context.Context) error { return errors.New("push must go through the PR bot") }

type fakePR struct {
	branch string
	req    vcs.PRRequest
}

func (f *fakePR) PrepareBranch(_ context.Context, branch string) error {
	f.branch = branch
	return nil
}

func (f *fakePR) CreatePR(_ context.Context, req vcs.PRRequest) (int, string, error) {
	f.req = req
	return 12, "https://github.com/acme/praxi/pull/12", nil
}

func TestRun_CommitAndOpenPR(t *testing.T) {
	root := t.TempDir()
	ensureFile(t, filepath.Join(root, "tests", "e2e", "api.spec.ts"), "export const endpoint = '/api/appoitments/';\n")

	git := &fakeGit{}
	pr := &fakePR{}
	ag := NewAgent(root, []string{"tests/**"}, git, pr, zap.NewNop())
	meta, err := ag.Run(context.Background(),
		newInput("104", domain.ErrorAPI404, []string{"tests/e2e/api.spec.ts"}, ""),
		Options{OutDir: filepath.Join(root, "out"), Commit: true, Push: true, OpenPR: true, Branch: "ai-fix", Base: "main"})
	if err != nil {
		t.Fatal(err)
	}

	if pr.branch != "ai-fix" {
		t.Errorf("branch = %q", pr.branch)
	}
	if len(git.commits) != 1 {
		t.Fatalf("commits = %v", git.commits)
	}
	if meta.Git == nil || !meta.Git.Committed || meta.Git.FailedStep != "" {
		t.Errorf("Git = %+v", meta.Git)
	}
	if pr.req.Title != "[AI] self-heal: api-404" || pr.req.Base != "main" {
		t.Errorf("PR request = %+v", pr.req)
	}
	if meta.PR == nil || meta.PR.Number != 12 {
		t.Errorf("PR = %+v", meta.PR)
	}
}

func TestInput_RunIDStringOrNumber(t *testing.T) {
	for _, raw := range []string{`{"run_id": 104}`, `{"run_id": "104"}`} {
		var in Input
		if err := json.Unmarshal([]byte(raw), &in); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", raw, err)
		}
		if in.RunID != "104" {
			t.Errorf("RunID = %q, want 104", in.RunID)
		}
	}
	var in Input
	if err := json.Unmarshal([]byte(`{"run_id": true}`), &in); err == nil {
		t.Error("boolean run_id accepted")
	}
}

func TestLoadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.json")
	ensureFile(t, path, `{
  "run_id": "55",
  "logs": {"extracted_spec_paths": ["tests/e2e/a.spec.ts", "tests/e2e/b.spec.ts"]},
  "analysis": {
    "classification": {"error_type": "frontend-timing"},
    "fix_agent_instructions": {
      "suspected_paths": ["tests/e2e/a.spec.ts"],
      "failing_tests": ["a"],
      "key_log_snippets": {"playwright": "timeout", "backend": ""}
    }
  }
}`)
	in, err := LoadInput(path)
	if err != nil {
		t.Fatal(err)
	}
	if in.Analysis.Classification.ErrorType != domain.ErrorFrontendTiming {
		t.Errorf("ErrorType = %q", in.Analysis.Classification.ErrorType)
	}
	got := in.Candidates()
	if len(got) != 2 || got[0] != "tests/e2e/a.spec.ts" || got[1] != "tests/e2e/b.spec.ts" {
		t.Errorf("Candidates() = %v", got)
	}
}
