// Package supervisor aggregates the agent reports of a CI run and decides
// which remediation, if any, runs next.
package supervisor

import (
	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
)

// Report file names inside the agent output directory
const (
	AuthFile     = "auth-validator.json"
	SeedFile     = "seed-orchestrator.json"
	SmokeFile    = "page-smoke.json"
	FlakyFile    = "flaky-classifier.json"
	SelectorFile = "selector-auditor.json"
	DecisionFile = "supervisor-decision.json"
)

// ReportFiles lists every report the supervisor reads
var ReportFiles = []string{AuthFile, SeedFile, SmokeFile, FlakyFile, SelectorFile}

// Inputs is everything a decision depends on
type Inputs struct {
	Auth     Report
	Seed     Report
	Smoke    Report
	Flaky    Report
	Selector Report
	// ErrorType comes from the self-heal context; empty when unavailable.
	ErrorType domain.ErrorType
}

// Verdict is the routing outcome with its explanation
type Verdict struct {
	Decision        domain.Decision
	Reason          string
	Recommendations []string
	// ErrorType is set when the classification drove the decision.
	ErrorType domain.ErrorType
}

var manualOnly = map[domain.ErrorType]bool{
	domain.ErrorUnknown:     true,
	domain.ErrorMissingLogs: true,
}

var testCodeFaults = map[domain.ErrorType]bool{
	domain.ErrorFrontendSelector:     true,
	domain.ErrorFrontendAvailability: true,
	domain.ErrorAPI404:               true,
}

// Decide applies the routing rules in order; the first match wins.
func Decide(in Inputs) Verdict {
	if !in.Auth.OK() || !in.Seed.OK() || !in.Smoke.OK() {
		return Verdict{
			Decision:        domain.DecisionAbort,
			Reason:          "Prerequisites failed",
			Recommendations: []string{"Fix auth/seed/smoke first"},
		}
	}

	// selector problems pre-empt the flaky/deterministic split
	if in.Selector.State != ReportAbsent && in.Selector.Status != "ok" {
		return Verdict{
			Decision:        domain.DecisionNeedsSelectorRefactor,
			Reason:          "Selector issues detected",
			Recommendations: []string{"Run Selector-Refactor Agent"},
		}
	}

	flaky, deterministic := in.Flaky.FailureCounts()
	if flaky > 0 && deterministic == 0 {
		return Verdict{
			Decision:        domain.DecisionAbort,
			Reason:          "Only flaky tests detected",
			Recommendations: []string{"Stabilize waits/selectors before healing"},
		}
	}

	if deterministic > 0 {
		switch {
		case manualOnly[in.ErrorType]:
			return Verdict{
				Decision:        domain.DecisionManualReview,
				Reason:          "Classification is unknown or logs are missing; skip autonomous repair",
				Recommendations: []string{"Collect richer logs and retry classification before applying fixes"},
				ErrorType:       in.ErrorType,
			}
		case testCodeFaults[in.ErrorType]:
			return Verdict{
				Decision:        domain.DecisionRunFixAgent,
				Reason:          "Test-code fault detected (structural fix required)",
				Recommendations: []string{"Fix-Agent will apply targeted patch for selector/availability/API URL"},
				ErrorType:       in.ErrorType,
			}
		default:
			return Verdict{
				Decision:        domain.DecisionRunSelfHeal,
				Reason:          "Deterministic failures detected (environment/transient)",
				Recommendations: []string{"Trigger Self-Heal Agent with patch generation"},
			}
		}
	}

	return Verdict{
		Decision:        domain.DecisionOK,
		Reason:          "All tests passed",
		Recommendations: []string{},
	}
}
