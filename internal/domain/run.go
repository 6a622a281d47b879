package domain

import "time"

// LogBundle is the payload a CI run posts to the ingestion endpoint
type LogBundle struct {
	RunID         string
	JobName       string
	Timestamp     string
	Branch        string
	Commit        string
	Status        string
	PlaywrightLog string
	BackendLog    string
}

// Failed reports whether the run ended in failure and should trigger agents
func (b LogBundle) Failed() bool {
	return b.Status == "failed"
}

// RunRecord is the index row kept for every ingested run
type RunRecord struct {
	RunID       string     `json:"run_id"`
	JobName     string     `json:"job_name"`
	Branch      string     `json:"branch"`
	Commit      string     `json:"commit"`
	Status      string     `json:"status"`
	ErrorType   ErrorType  `json:"error_type"`
	Confidence  Confidence `json:"confidence"`
	RunDir      string     `json:"run_dir"`
	ProcessedAt time.Time  `json:"processed_at"`
}

// LedgerEntry records a patch signature applied to a file
type LedgerEntry struct {
	Target    string    `json:"target"`
	Signature string    `json:"signature"`
	Source    string    `json:"source,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	AppliedAt time.Time `json:"applied_at"`
}

// DecisionRecord is the persisted summary of a supervisor decision
type DecisionRecord struct {
	ID        string
	Decision  Decision
	Reason    string
	ErrorType ErrorType
	DecidedAt time.Time
}
