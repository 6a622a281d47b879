// Package refactor rewrites fragile id selectors in page objects to test-id
// locators, driven by the selector audit report.
package refactor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hochfrequenz/e2e-self-heal/internal/audit"
	"github.com/hochfrequenz/e2e-self-heal/internal/runlogs"
)

// Change actions and skip reasons
const (
	ActionRefactored = "refactored"
	ActionSkip       = "skip"

	ReasonFileMissing      = "file-missing"
	ReasonSelectorNotFound = "selector-not-found"
)

// Report statuses
const (
	StatusRefactored = "refactored"
	StatusNoop       = "noop"
)

// Recommendation is attached to every report
const Recommendation = "Run E2E tests again"

// Replacement is an exact substring swap in one file
type Replacement struct {
	File string
	From string
	To   string
}

var replacements = map[string]Replacement{
	"calendar.anchor": {
		File: filepath.Join("tests", "pages", "calendar-page.ts"),
		From: "page.locator('#appointmentCalendar')",
		To:   "page.getByTestId('appointmentCalendar')",
	},
	"patients.anchor": {
		File: filepath.Join("tests", "pages", "patients-page.ts"),
		From: "page.locator('#patientSelect')",
		To:   "page.getByTestId('patientSelect')",
	},
	"operations.anchor": {
		File: filepath.Join("tests", "pages", "operations-page.ts"),
		From: "page.locator('#periodSelect')",
		To:   "page.getByTestId('periodSelect')",
	},
	"scheduling.anchor": {
		File: filepath.Join("tests", "pages", "scheduling-kpis-page.ts"),
		From: "page.locator('#trendChart')",
		To:   "page.getByTestId('trendChart')",
	},
}

// Replacements returns a copy of the replacement table
func Replacements() map[string]Replacement {
	out := make(map[string]Replacement, len(replacements))
	for k, v := range replacements {
		out[k] = v
	}
	return out
}

// Change records what happened for one audit result
type Change struct {
	Key    string `json:"key"`
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	File   string `json:"file"`
}

// Report is written to selector-refactor-report.json
type Report struct {
	Status         string   `json:"status"`
	Changes        []Change `json:"changes"`
	Recommendation string   `json:"recommendation"`
}

// Agent applies replacements below a repository root
type Agent struct {
	root   string
	table  map[string]Replacement
	logger *zap.Logger
}

// NewAgent creates an agent using the built-in replacement table. A nil
// table selects the default.
func NewAgent(root string, table map[string]Replacement, logger *zap.Logger) *Agent {
	if table == nil {
		table = Replacements()
	}
	return &Agent{root: root, table: table, logger: logger.Named("refactor")}
}

// Run refactors the selectors of every non-ok audit result that has a
// table entry. Only I/O failures on an existing file return an error.
func (a *Agent) Run(results []audit.Result) (Report, error) {
	report := Report{Status: StatusNoop, Changes: []Change{}, Recommendation: Recommendation}

	for _, r := range results {
		if r.Status == audit.StatusOK {
			continue
		}
		plan, ok := a.table[r.Key]
		if !ok {
			continue
		}
		change, err := a.apply(r.Key, plan)
		if err != nil {
			return report, err
		}
		a.logger.Info("selector candidate",
			zap.String("key", r.Key),
			zap.String("action", change.Action),
			zap.String("reason", change.Reason))
		report.Changes = append(report.Changes, change)
		if change.Action == ActionRefactored {
			report.Status = StatusRefactored
		}
	}
	return report, nil
}

func (a *Agent) apply(key string, plan Replacement) (Change, error) {
	path := filepath.Join(a.root, plan.File)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Change{Key: key, Action: ActionSkip, Reason: ReasonFileMissing, File: plan.File}, nil
	}
	if err != nil {
		return Change{}, fmt.Errorf("reading %s: %w", plan.File, err)
	}

	content := string(data)
	if !strings.Contains(content, plan.From) {
		return Change{Key: key, Action: ActionSkip, Reason: ReasonSelectorNotFound, File: plan.File}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return Change{}, err
	}
	updated := strings.Replace(content, plan.From, plan.To, 1)
	if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
		return Change{}, fmt.Errorf("writing %s: %w", plan.File, err)
	}
	return Change{Key: key, Action: ActionRefactored, From: plan.From, To: plan.To, File: plan.File}, nil
}

// LoadAuditResults reads the regular probe results from an auditor report.
// A missing or unreadable report yields no results.
func LoadAuditResults(path string) []audit.Result {
	var report audit.Report
	if err := runlogs.ReadJSON(path, &report); err != nil {
		return nil
	}
	return report.Results
}
