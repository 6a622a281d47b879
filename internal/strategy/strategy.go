// Package strategy maps startup issue codes to remediation strategies.
package strategy

import "github.com/hochfrequenz/e2e-self-heal/internal/domain"

var table = map[domain.IssueCode]domain.FixStrategy{
	domain.IssueLoginFailed: {
		Type:        domain.StrategyCreateTestUser,
		Description: "Create the E2E test user in the CI database before the Playwright run.",
	},
	domain.IssueStorageStateMissing: {
		Type:        domain.StrategyFixAuthSetup,
		Description: "Make the auth setup project write the storage state file before tests start.",
	},
	domain.IssueDBPasswordMissing: {
		Type:        domain.StrategyFixDBEnvVariables,
		Description: "Export SYS_DB_* variables instead of DB_* so Django finds the database password.",
	},
	domain.IssueDBConnectionFailed: {
		Type:        domain.StrategyCheckDBServiceAndEnv,
		Description: "Check that the Postgres service container is healthy and the DB host/port variables point at it.",
	},
	domain.IssueDjangoSettingsInvalid: {
		Type:        domain.StrategyFixDjangoSettingsModule,
		Description: "Set DJANGO_SETTINGS_MODULE for every workflow step that runs Django.",
	},
	domain.IssuePlaywrightAPIContextFailed: {
		Type:        domain.StrategyCheckAPIClientConfig,
		Description: "Check the baseURL and auth headers used to create the Playwright API request context.",
	},
	domain.IssuePlaywrightTestFailed: {
		Type:        domain.StrategyAnalyzePlaywrightTest,
		Description: "Inspect the failing Playwright assertion and trace; the failure is in the test itself.",
	},
	domain.IssueEnvVariableMissing: {
		Type:        domain.StrategyCheckEnvAndSecrets,
		Description: "Check workflow env blocks and repository secrets for the missing variable.",
	},
	domain.IssueModuleNotFound: {
		Type:        domain.StrategyCheckDependencies,
		Description: "Install dependencies (npm ci / pip install) before the failing step and verify lockfiles.",
	},
}

var noFix = domain.FixStrategy{
	Type:        domain.StrategyNoAutomaticFix,
	Description: "No automatic fix available; manual review required.",
}

// Resolve returns the strategy for code. Unmapped codes, including UNKNOWN,
// resolve to NO_AUTOMATIC_FIX.
func Resolve(code domain.IssueCode) domain.FixStrategy {
	if s, ok := table[code]; ok {
		return s
	}
	return noFix
}

// HasFixModule reports whether a patch generator exists for the strategy.
// The remaining strategies are advisory.
func HasFixModule(t domain.StrategyType) bool {
	switch t {
	case domain.StrategyCreateTestUser,
		domain.StrategyFixAuthSetup,
		domain.StrategyFixDBEnvVariables,
		domain.StrategyFixDjangoSettingsModule:
		return true
	}
	return false
}
