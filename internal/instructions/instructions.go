// Package instructions turns a failure classification into the hint sets
// consumed by the self-heal agent, the fix agent and the PR step.
package instructions

import (
	"time"

	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
)

// Agent instructs the self-heal or fix agent
type Agent struct {
	Action string   `json:"action"`
	Hints  []string `json:"hints"`
}

// PR describes the pull request to prepare for a fix
type PR struct {
	Action string `json:"action"`
	Branch string `json:"branch"`
	Base   string `json:"base"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Set is the full instruction set for one error type
type Set struct {
	SelfHeal Agent
	FixAgent Agent
	PR       PR
}

type hintPair struct {
	selfHeal string
	fixAgent string
}

var hints = map[domain.ErrorType]hintPair{
	domain.ErrorAuth: {
		"Verify E2E user creation in CI and ensure credentials env vars are set.",
		"Inspect auth endpoints and storageState generation; confirm session/JWT flow.",
	},
	domain.ErrorSelector: {
		"Stabilize strict selectors and prefer role-based locators.",
		"Update Playwright locators/assertions to be resilient to minor UI changes.",
	},
	domain.ErrorTimeout: {
		"Increase deterministic waits via health checks; reduce flaky fixed timeouts.",
		"Add targeted waiting for API readiness and reduce long-running steps.",
	},
	domain.ErrorNavigation: {
		"Check baseURL, server readiness, and networking errors.",
		"Improve retries for navigation + capture failing responses.",
	},
	domain.ErrorDB: {
		"Check migrations/seed and Postgres readiness/credentials.",
		"Align DB setup steps and validate DATABASE_URL usage.",
	},
	domain.ErrorBackendException: {
		"Locate traceback in backend log and fix failing code path.",
		"Write a minimal repro based on traceback; add regression coverage if possible.",
	},
}

var fallbackHints = hintPair{
	"Collect more context; ensure artifacts include playwright + backend CI logs.",
	"Parse logs for the first fatal error and map it to code locations.",
}

// Defaults for the PR instruction
const (
	DefaultBranch = "ai-fix"
	DefaultBase   = "main"
)

// Build returns the instruction set for errorType
func Build(errorType domain.ErrorType) Set {
	return BuildFor(errorType, DefaultBranch, DefaultBase)
}

// BuildFor is Build with a configurable PR branch and base
func BuildFor(errorType domain.ErrorType, branch, base string) Set {
	h, ok := hints[errorType]
	if !ok {
		h = fallbackHints
	}
	return Set{
		SelfHeal: Agent{Action: "self_heal", Hints: []string{h.selfHeal}},
		FixAgent: Agent{Action: "fix_agent", Hints: []string{h.fixAgent}},
		PR: PR{
			Action: "prepare_pr",
			Branch: branch,
			Base:   base,
			Title:  "[AI] self-heal: " + string(errorType),
			Body:   "Automated self-heal instructions for error type: " + string(errorType),
		},
	}
}

// Analysis is the analysis.json document written for every run
type Analysis struct {
	ProcessedAt          string                `json:"processed_at"`
	RunID                string                `json:"run_id"`
	JobName              string                `json:"job_name"`
	Branch               string                `json:"branch"`
	Commit               string                `json:"commit"`
	Status               string                `json:"status"`
	FailureCause         domain.Classification `json:"failure_cause"`
	SelfHealInstructions Agent                 `json:"self_heal_instructions"`
	FixAgentInstructions Agent                 `json:"fix_agent_instructions"`
	PRInstructions       PR                    `json:"pr_instructions"`
}

// NewAnalysis assembles the analysis document of a run
func NewAnalysis(b domain.LogBundle, runID string, cause domain.Classification, set Set, at time.Time) Analysis {
	return Analysis{
		ProcessedAt:          at.UTC().Format(time.RFC3339Nano),
		RunID:                runID,
		JobName:              b.JobName,
		Branch:               b.Branch,
		Commit:               b.Commit,
		Status:               b.Status,
		FailureCause:         cause,
		SelfHealInstructions: set.SelfHeal,
		FixAgentInstructions: set.FixAgent,
		PRInstructions:       set.PR,
	}
}

// TriggerFlags lists the downstream modules to start
type TriggerFlags struct {
	SelfHeal       bool `json:"self_heal"`
	FixAgent       bool `json:"fix_agent"`
	PRInstructions bool `json:"pr_instructions"`
}

// Triggers is the triggers.json document written for failed runs
type Triggers struct {
	TriggeredAt string       `json:"triggered_at"`
	Status      string       `json:"status"`
	Triggers    TriggerFlags `json:"triggers"`
	Analysis    Analysis     `json:"analysis"`
}

// NewTriggers builds the trigger document for an analysis
func NewTriggers(a Analysis, at time.Time) Triggers {
	failed := a.Status == "failed"
	return Triggers{
		TriggeredAt: at.UTC().Format(time.RFC3339Nano),
		Status:      a.Status,
		Triggers:    TriggerFlags{SelfHeal: failed, FixAgent: failed, PRInstructions: failed},
		Analysis:    a,
	}
}
