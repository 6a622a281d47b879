package domain

// ErrorType is the failure category assigned to a test run
type ErrorType string

const (
	ErrorAuth             ErrorType = "auth"
	ErrorSelector         ErrorType = "selector"
	ErrorTimeout          ErrorType = "timeout"
	ErrorNavigation       ErrorType = "navigation"
	ErrorDB               ErrorType = "db"
	ErrorBackendException ErrorType = "backend_exception"
	ErrorUnknown          ErrorType = "unknown"
	ErrorMissingLogs      ErrorType = "missing_logs"
)

// Finer-grained categories written into the self-heal context by upstream
// analysis. The supervisor and fix agent route on these.
const (
	ErrorFrontendSelector     ErrorType = "frontend-selector"
	ErrorFrontendTiming       ErrorType = "frontend-timing"
	ErrorFrontendAvailability ErrorType = "frontend-availability"
	ErrorAPI404               ErrorType = "api-404"
)

// Confidence of a classification
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// Classification is the result of running the log classifier over a run's logs
type Classification struct {
	ErrorType  ErrorType  `json:"error_type"`
	Confidence Confidence `json:"confidence"`
}

// IssueCode identifies a CI startup problem
type IssueCode string

const (
	IssueLoginFailed                IssueCode = "LOGIN_FAILED"
	IssueStorageStateMissing        IssueCode = "STORAGE_STATE_MISSING"
	IssueDBPasswordMissing          IssueCode = "DB_PASSWORD_MISSING"
	IssueDBConnectionFailed         IssueCode = "DB_CONNECTION_FAILED"
	IssueDjangoSettingsInvalid      IssueCode = "DJANGO_SETTINGS_INVALID"
	IssuePlaywrightAPIContextFailed IssueCode = "PLAYWRIGHT_API_CONTEXT_FAILED"
	IssuePlaywrightTestFailed       IssueCode = "PLAYWRIGHT_TEST_FAILED"
	IssueEnvVariableMissing         IssueCode = "ENV_VARIABLE_MISSING"
	IssueModuleNotFound             IssueCode = "MODULE_NOT_FOUND"
	IssueUnknown                    IssueCode = "UNKNOWN"
)

// StrategyType names a remediation for a startup issue
type StrategyType string

const (
	StrategyCreateTestUser          StrategyType = "CREATE_TEST_USER"
	StrategyFixAuthSetup            StrategyType = "FIX_AUTH_SETUP"
	StrategyFixDBEnvVariables       StrategyType = "FIX_DB_ENV_VARIABLES"
	StrategyCheckDBServiceAndEnv    StrategyType = "CHECK_DB_SERVICE_AND_ENV"
	StrategyFixDjangoSettingsModule StrategyType = "FIX_DJANGO_SETTINGS_MODULE"
	StrategyCheckAPIClientConfig    StrategyType = "CHECK_API_CLIENT_CONFIG"
	StrategyAnalyzePlaywrightTest   StrategyType = "ANALYZE_PLAYWRIGHT_TEST"
	StrategyCheckEnvAndSecrets      StrategyType = "CHECK_ENV_AND_SECRETS"
	StrategyCheckDependencies       StrategyType = "CHECK_DEPENDENCIES"
	StrategyNoAutomaticFix          StrategyType = "NO_AUTOMATIC_FIX"
)

// FixStrategy is the remediation chosen for an issue
type FixStrategy struct {
	Type        StrategyType `json:"type"`
	Description string       `json:"description"`
}

// Decision is the supervisor's routing outcome
type Decision string

const (
	DecisionAbort                 Decision = "abort"
	DecisionNeedsSelectorRefactor Decision = "needs-selector-refactor"
	DecisionManualReview          Decision = "manual-review"
	DecisionRunFixAgent           Decision = "run-fix-agent"
	DecisionRunSelfHeal           Decision = "run-self-heal"
	DecisionOK                    Decision = "ok"
)
