package classify

import (
	"strings"

	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
)

// IssueRule matches when every substring of at least one group occurs in the
// lower-cased log.
type IssueRule struct {
	Code  domain.IssueCode
	AnyOf [][]string
}

func (r IssueRule) matches(lower string) bool {
	for _, group := range r.AnyOf {
		all := true
		for _, needle := range group {
			if !strings.Contains(lower, needle) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// StartupRules returns the startup issue rules in evaluation order
func StartupRules() []IssueRule {
	return []IssueRule{
		{domain.IssueLoginFailed, [][]string{
			{"invalid credentials"},
			{"login failed"},
			{"non_field_errors", "credentials"},
		}},
		{domain.IssueStorageStateMissing, [][]string{
			{"storagestate.json", "no such file"},
		}},
		{domain.IssueDBPasswordMissing, [][]string{
			{"fe_sendauth"},
			{"password authentication failed"},
			{"no password supplied"},
		}},
		{domain.IssueDBConnectionFailed, [][]string{
			{"could not connect to server"},
			{"connection refused"},
			{"connection timed out"},
		}},
		{domain.IssueDjangoSettingsInvalid, [][]string{
			{"django.core.exceptions.improperlyconfigured"},
			{"settings module", "not found"},
		}},
		{domain.IssuePlaywrightAPIContextFailed, [][]string{
			{"api request failed"},
			{"request.newcontext", "error"},
		}},
		{domain.IssuePlaywrightTestFailed, [][]string{
			{"test failed"},
			{"expect", "received"},
		}},
		{domain.IssueEnvVariableMissing, [][]string{
			{"environment variable", "not set"},
		}},
		{domain.IssueModuleNotFound, [][]string{
			{"cannot find module"},
			{"module not found"},
		}},
	}
}

var startupRules = StartupRules()

// DetectIssue returns the first startup issue whose rule matches log, or UNKNOWN.
func DetectIssue(log string) domain.IssueCode {
	lower := strings.ToLower(log)
	for _, r := range startupRules {
		if r.matches(lower) {
			return r.Code
		}
	}
	return domain.IssueUnknown
}
