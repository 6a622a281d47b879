//go:build integration

package integration

import (
	"os"
	"path/filepath"
	"testing"
)

// TempDBPath creates a temporary database path for testing
func TempDBPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "test.db")
}

// TempConfigPath creates a temporary config file path for testing
func TempConfigPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "config.toml")
}

// writeFile creates path with content, including parent directories
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

// sampleWorkflow is a minimal E2E workflow the startup fix can patch
const sampleWorkflow = `name: E2E
on: [push]
jobs:
  e2e:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - name: Run E2E tests
        run: npx playwright test
`

const junitRun1 = `<testsuites>
  <testsuite name="e2e">
    <testcase classname="calendar.spec.ts" name="opens calendar"/>
    <testcase classname="patients.spec.ts" name="lists patients">
      <failure message="timeout">Timeout 30000ms exceeded</failure>
    </testcase>
    <testcase classname="login.spec.ts" name="logs in">
      <failure message="expected 200">Expected 200, received 500</failure>
    </testcase>
  </testsuite>
</testsuites>
`

const junitRun2 = `<testsuites>
  <testsuite name="e2e">
    <testcase classname="calendar.spec.ts" name="opens calendar"/>
    <testcase classname="patients.spec.ts" name="lists patients"/>
    <testcase classname="login.spec.ts" name="logs in">
      <failure message="expected 200">Expected 200, received 500</failure>
    </testcase>
  </testsuite>
</testsuites>
`
