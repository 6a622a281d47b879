package startupfix

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
	"github.com/hochfrequenz/e2e-self-heal/internal/patch"
)

const workflow = `name: AI Startup Fix
on: [push]
jobs:
  e2e:
    runs-on: ubuntu-latest
    steps:
      - name: Checkout
        uses: actions/checkout@v4
`

type fakeGit struct {
	pushErr error
	commits []string
	pushes  int
}

func (f *fakeGit) Add(context.Context) error { return nil }

func (f *fakeGit) Commit(_ context.Context, msg string) error {
	f.commits = append(f.commits, msg)
	return nil
}

func (f *fakeGit) Push(context.Context) error {
	f.pushes++
	return f.pushErr
}

type fixture struct {
	opts Options
	git  *fakeGit
	ag   *Agent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	wf := filepath.Join(dir, ".github", "workflows", "ai-startup-fix.yml")
	if err := os.MkdirAll(filepath.Dir(wf), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(wf, []byte(workflow), 0644); err != nil {
		t.Fatal(err)
	}
	auth := filepath.Join(dir, "tests", "auth.setup.ts")
	os.MkdirAll(filepath.Dir(auth), 0755)
	os.WriteFile(auth, []byte("import { test as setup } from '@playwright/test';\n"), 0644)

	git := &fakeGit{}
	return &fixture{
		opts: Options{
			WorkflowPath:  wf,
			AuthSetupPath: auth,
			StoragePath:   "tests/fixtures/storageState.json",
		},
		git: git,
		ag:  NewAgent(patch.NewApplier(nil, zap.NewNop()), git, zap.NewNop()),
	}
}

func TestRun_CreateTestUser(t *testing.T) {
	f := newFixture(t)

	res, err := f.ag.Run(context.Background(), "Error: Invalid credentials", f.opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Issue != domain.IssueLoginFailed || res.Strategy != domain.StrategyCreateTestUser {
		t.Errorf("issue/strategy = %s/%s", res.Issue, res.Strategy)
	}
	if !res.PatchApplied || !res.Committed || !res.Pushed {
		t.Errorf("Result = %+v, want applied, committed, pushed", res)
	}
	if len(f.git.commits) != 1 || f.git.commits[0] != "AI Startup Fix Agent applied fix: CREATE_TEST_USER" {
		t.Errorf("commits = %v", f.git.commits)
	}

	content, _ := os.ReadFile(f.opts.WorkflowPath)
	if !strings.Contains(string(content), "name: Create test user") {
		t.Error("workflow not patched")
	}
}

func TestRun_SecondRunIsNoop(t *testing.T) {
	f := newFixture(t)
	log := "psycopg2: fe_sendauth: no password supplied"

	if _, err := f.ag.Run(context.Background(), log, f.opts); err != nil {
		t.Fatal(err)
	}
	res, err := f.ag.Run(context.Background(), log, f.opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.PatchApplied || res.Committed {
		t.Errorf("second run = %+v, want no patch and no commit", res)
	}
	if res.Outcome == nil || res.Outcome.Reason != patch.ReasonAlreadyApplied {
		t.Errorf("Outcome = %+v, want already-applied", res.Outcome)
	}
	if len(f.git.commits) != 1 {
		t.Errorf("commits = %d, want 1", len(f.git.commits))
	}
}

func TestRun_DryRun(t *testing.T) {
	f := newFixture(t)
	f.opts.DryRun = true

	res, err := f.ag.Run(context.Background(), "django.core.exceptions.ImproperlyConfigured", f.opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Strategy != domain.StrategyFixDjangoSettingsModule {
		t.Errorf("Strategy = %s", res.Strategy)
	}
	if !res.PatchApplied || res.Committed || !res.DryRun {
		t.Errorf("Result = %+v, want previewed patch without commit", res)
	}
	content, _ := os.ReadFile(f.opts.WorkflowPath)
	if string(content) != workflow {
		t.Error("dry run modified the workflow")
	}
	if len(f.git.commits) != 0 {
		t.Error("dry run committed")
	}
}

func TestRun_NoPush(t *testing.T) {
	f := newFixture(t)
	f.opts.NoPush = true

	res, err := f.ag.Run(context.Background(), "ENOENT: no such file or directory 'storageState.json'", f.opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Strategy != domain.StrategyFixAuthSetup {
		t.Fatalf("Strategy = %s", res.Strategy)
	}
	if !res.Committed || res.Pushed || f.git.pushes != 0 {
		t.Errorf("Result = %+v pushes=%d, want commit without push", res, f.git.pushes)
	}
	content, _ := os.ReadFile(f.opts.AuthSetupPath)
	if !strings.Contains(string(content), patch.AuthSetupSignature) {
		t.Error("auth setup not patched")
	}
}

func TestRun_PushFailure(t *testing.T) {
	f := newFixture(t)
	f.git.pushErr = errors.New("rejected")

	res, err := f.ag.Run(context.Background(), "login failed", f.opts)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Committed || res.Pushed {
		t.Errorf("Result = %+v, want committed but not pushed", res)
	}
	if res.Git == nil || res.Git.FailedStep != "push" {
		t.Errorf("Git = %+v", res.Git)
	}
}

func TestRun_AdvisoryStrategy(t *testing.T) {
	f := newFixture(t)

	res, err := f.ag.Run(context.Background(), "could not connect to server", f.opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Strategy != domain.StrategyCheckDBServiceAndEnv {
		t.Errorf("Strategy = %s", res.Strategy)
	}
	if res.PatchApplied || res.Outcome != nil {
		t.Errorf("advisory strategy produced a patch: %+v", res)
	}
}

func TestRun_UnknownIssue(t *testing.T) {
	f := newFixture(t)
	res, err := f.ag.Run(context.Background(), "nothing recognizable", f.opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Issue != domain.IssueUnknown || res.Strategy != domain.StrategyNoAutomaticFix {
		t.Errorf("Result = %+v", res)
	}
}

func TestRun_MissingTarget(t *testing.T) {
	f := newFixture(t)
	os.Remove(f.opts.AuthSetupPath)

	res, err := f.ag.Run(context.Background(), "storageState.json: no such file", f.opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.PatchApplied || res.Outcome.Result != patch.NotFound {
		t.Errorf("Result = %+v, want not-found", res)
	}
}
