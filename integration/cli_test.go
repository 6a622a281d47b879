//go:build integration

package integration

import (
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// binaryPath returns the path to the built CLI binary
func binaryPath(t *testing.T) string {
	t.Helper()
	paths := []string{
		"../selfheal",
		"./selfheal",
		filepath.Join(os.Getenv("GOPATH"), "bin", "selfheal"),
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			abs, _ := filepath.Abs(p)
			return abs
		}
	}

	t.Log("Binary not found, building...")
	cmd := exec.Command("go", "build", "-o", "../selfheal", "../cmd/selfheal")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build binary: %v\n%s", err, out)
	}

	abs, _ := filepath.Abs("../selfheal")
	return abs
}

// createTestConfig creates a temporary config file for testing
func createTestConfig(t *testing.T, projectRoot, dbPath string) string {
	t.Helper()
	configPath := TempConfigPath(t)

	config := `[general]
project_root = "` + filepath.ToSlash(projectRoot) + `"
database_path = "` + filepath.ToSlash(dbPath) + `"

[agents]
output_dir = "agent-outputs"
context_path = "self-heal/context.json"

[startup_fix]
workflow_path = ".github/workflows/e2e.yml"
auth_setup_path = "tests/auth.setup.ts"
push = false
`
	writeFile(t, configPath, config)
	return configPath
}

// project sets up a project root with a workflow and a config
func project(t *testing.T) (root, configPath string) {
	t.Helper()
	root = t.TempDir()
	writeFile(t, filepath.Join(root, ".github", "workflows", "e2e.yml"), sampleWorkflow)
	return root, createTestConfig(t, root, TempDBPath(t))
}

// selfheal runs the CLI inside dir with a clean environment and returns
// stdout, stderr and the exit code.
func selfheal(t *testing.T, dir string, args ...string) (string, string, int) {
	t.Helper()
	cmd := exec.Command(binaryPath(t), args...)
	cmd.Dir = dir
	cmd.Env = []string{"HOME=" + t.TempDir(), "PATH=" + os.Getenv("PATH")}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return stdout.String(), stderr.String(), 0
	case errors.As(err, &exitErr):
		return stdout.String(), stderr.String(), exitErr.ExitCode()
	default:
		t.Fatalf("running selfheal: %v", err)
		return "", "", -1
	}
}

// TestCLI_StartupFixDryRun detects the issue but leaves the workflow alone
func TestCLI_StartupFixDryRun(t *testing.T) {
	root, configPath := project(t)

	out, errOut, code := selfheal(t, root, "startup-fix", "--config", configPath, "--dry-run",
		"psql: error: fe_sendauth: no password supplied")
	if code != 0 {
		t.Fatalf("startup-fix exit code = %d\n%s", code, errOut)
	}

	var res struct {
		Issue        string `json:"issue"`
		Strategy     string `json:"strategy"`
		PatchApplied bool   `json:"patchApplied"`
		DryRun       bool   `json:"dryRun"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("Failed to parse output: %v\n%s", err, out)
	}
	if res.Issue != "DB_PASSWORD_MISSING" || res.Strategy != "FIX_DB_ENV_VARIABLES" {
		t.Errorf("issue/strategy = %s/%s", res.Issue, res.Strategy)
	}
	if !res.DryRun || !res.PatchApplied {
		t.Errorf("dryRun=%v patchApplied=%v, want both true", res.DryRun, res.PatchApplied)
	}

	data, err := os.ReadFile(filepath.Join(root, ".github", "workflows", "e2e.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != sampleWorkflow {
		t.Errorf("dry run modified the workflow:\n%s", data)
	}
}

// TestCLI_StartupFixRecordsPatch applies a fix and lists it from the ledger
func TestCLI_StartupFixRecordsPatch(t *testing.T) {
	root, configPath := project(t)

	out, errOut, code := selfheal(t, root, "patches", "--config", configPath, "--json")
	if code != 0 {
		t.Fatalf("patches exit code = %d\n%s", code, errOut)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("empty ledger = %s, want []", out)
	}

	// not a git repository: the patch is applied, the commit fails
	if _, errOut, code := selfheal(t, root, "startup-fix", "--config", configPath,
		"psql: error: fe_sendauth: no password supplied"); code != 0 {
		t.Fatalf("startup-fix exit code = %d\n%s", code, errOut)
	}

	out, errOut, code = selfheal(t, root, "patches", "--config", configPath, "--json",
		"--target", ".github/workflows/e2e.yml")
	if code != 0 {
		t.Fatalf("patches exit code = %d\n%s", code, errOut)
	}
	var entries []struct {
		Target    string `json:"target"`
		Signature string `json:"signature"`
	}
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("Failed to parse patches output: %v\n%s", err, out)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1\n%s", len(entries), out)
	}
	if !strings.HasSuffix(entries[0].Target, "e2e.yml") || entries[0].Signature == "" {
		t.Errorf("entry = %+v", entries[0])
	}
}

// TestCLI_StartupFixMissingInput exits 1 without a log or a workflow
func TestCLI_StartupFixMissingInput(t *testing.T) {
	root, configPath := project(t)
	workflow := filepath.Join(root, ".github", "workflows", "e2e.yml")

	tests := []struct {
		name       string
		args       []string
		setup      func()
		wantReason string
	}{
		{"no log", nil, nil, "missing-log"},
		{"missing log file", []string{"--log", "missing.log"}, nil, "missing-log"},
		{"missing workflow", []string{"login failed"}, func() { os.Remove(workflow) }, "workflow-not-found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			args := append([]string{"startup-fix", "--config", configPath}, tt.args...)
			out, errOut, code := selfheal(t, root, args...)
			if code != 1 {
				t.Fatalf("exit code = %d, want 1\n%s", code, errOut)
			}

			var result struct {
				Status  string `json:"status"`
				Reason  string `json:"reason"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal([]byte(out), &result); err != nil {
				t.Fatalf("stdout is not JSON: %v\n%s", err, out)
			}
			if result.Status != "error" || result.Reason != tt.wantReason {
				t.Errorf("result = %+v, want status error, reason %s", result, tt.wantReason)
			}
			if result.Message == "" {
				t.Error("message is empty")
			}
		})
	}
}

// TestCLI_FlakyThenSupervise runs the flaky classifier and lets the
// supervisor route the deterministic failure.
func TestCLI_FlakyThenSupervise(t *testing.T) {
	root, configPath := project(t)
	writeFile(t, filepath.Join(root, "results", "run1.xml"), junitRun1)
	writeFile(t, filepath.Join(root, "results", "run2.xml"), junitRun2)

	out, errOut, code := selfheal(t, root, "flaky", "--config", configPath, "--junit", "results/*.xml")
	if code != 0 {
		t.Fatalf("flaky exit code = %d\n%s", code, errOut)
	}
	var flaky struct {
		Runs          int `json:"runs"`
		Flaky         []struct{ Test string }
		Deterministic []struct{ Test string }
	}
	if err := json.Unmarshal([]byte(out), &flaky); err != nil {
		t.Fatalf("Failed to parse flaky output: %v\n%s", err, out)
	}
	if flaky.Runs != 2 || len(flaky.Flaky) != 1 || len(flaky.Deterministic) != 1 {
		t.Fatalf("flaky report = %+v", flaky)
	}

	outDir := filepath.Join(root, "agent-outputs")
	for _, name := range []string{"auth-validator.json", "seed-orchestrator.json", "page-smoke.json"} {
		writeFile(t, filepath.Join(outDir, name), `{"status":"ok"}`)
	}
	writeFile(t, filepath.Join(root, "self-heal", "context.json"),
		`{"analysis":{"classification":{"error_type":"frontend-selector"}}}`)

	out, errOut, code = selfheal(t, root, "supervise", "--config", configPath)
	if code != 0 {
		t.Fatalf("supervise exit code = %d\n%s", code, errOut)
	}
	var decision struct {
		Decision       string `json:"decision"`
		Classification struct {
			ErrorType string `json:"error_type"`
		} `json:"classification"`
	}
	if err := json.Unmarshal([]byte(out), &decision); err != nil {
		t.Fatalf("Failed to parse decision: %v\n%s", err, out)
	}
	if decision.Decision != "run-fix-agent" {
		t.Errorf("decision = %q, want run-fix-agent", decision.Decision)
	}
	if decision.Classification.ErrorType != "frontend-selector" {
		t.Errorf("classification = %q", decision.Classification.ErrorType)
	}
	if _, err := os.Stat(filepath.Join(outDir, "supervisor-decision.json")); err != nil {
		t.Errorf("decision file not written: %v", err)
	}
}

// TestCLI_SuperviseWithoutReports still exits 0 and aborts
func TestCLI_SuperviseWithoutReports(t *testing.T) {
	root, configPath := project(t)

	out, errOut, code := selfheal(t, root, "supervise", "--config", configPath)
	if code != 0 {
		t.Fatalf("supervise exit code = %d\n%s", code, errOut)
	}
	if !strings.Contains(out, `"decision": "abort"`) {
		t.Errorf("Expected abort decision, got: %s", out)
	}
}

// TestCLI_Classify classifies log files
func TestCLI_Classify(t *testing.T) {
	root, configPath := project(t)
	writeFile(t, filepath.Join(root, "pw.log"), "TimeoutError: locator.click: Timeout 30000ms exceeded.")

	out, errOut, code := selfheal(t, root, "classify", "--config", configPath, "--playwright", "pw.log")
	if code != 0 {
		t.Fatalf("classify exit code = %d\n%s", code, errOut)
	}
	if !strings.Contains(out, `"error_type"`) {
		t.Errorf("Expected classification output, got: %s", out)
	}
}

// TestCLI_ClassifyMissingLog reports the missing input as JSON
func TestCLI_ClassifyMissingLog(t *testing.T) {
	root, configPath := project(t)

	out, _, code := selfheal(t, root, "classify", "--config", configPath, "--backend", "absent.log")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(out, `"reason": "missing-log"`) {
		t.Errorf("Expected JSON error on stdout, got: %s", out)
	}
}

// TestCLI_RunsEmpty lists an empty index
func TestCLI_RunsEmpty(t *testing.T) {
	root, configPath := project(t)

	out, errOut, code := selfheal(t, root, "runs", "--config", configPath)
	if code != 0 {
		t.Fatalf("runs exit code = %d\n%s", code, errOut)
	}
	if !strings.Contains(out, "RUN") || !strings.Contains(out, "ERROR TYPE") {
		t.Errorf("Expected table header in output, got: %s", out)
	}
}
