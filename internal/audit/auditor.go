package audit

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hochfrequenz/e2e-self-heal/internal/metrics"
)

// Probe statuses
const (
	StatusOK      = "ok"
	StatusMissing = "missing"
	StatusError   = "error"
)

// Report failure reasons
const (
	ReasonMissingStorage       = "missing-storage"
	ReasonFaultSelectorMissing = "fault-selector-missing"
	ReasonFaultNotDetected     = "fault-not-detected"
	ReasonException            = "exception"
)

const faultDetectedMessage = "Test-locator fault detected: fault-injected selectors are missing (expected for FAULT_SCENARIO=selector)."

const faultNotDetectedMessage = "Fault-injected selectors were found; the selector audit did not detect the injected fault."

// Result is the outcome of one probe
type Result struct {
	Key            string `json:"key"`
	Selector       string `json:"selector"`
	Status         string `json:"status"`
	HTTPStatus     int    `json:"httpStatus"`
	Count          int    `json:"count"`
	Recommendation string `json:"recommendation,omitempty"`
	Message        string `json:"message,omitempty"`
}

// NewResult builds the result for a completed probe
func NewResult(p Probe, httpStatus, count int) Result {
	r := Result{
		Key:        p.Key,
		Selector:   p.Selector,
		Status:     StatusOK,
		HTTPStatus: httpStatus,
		Count:      count,
	}
	if count == 0 {
		r.Status = StatusMissing
		r.Recommendation = fmt.Sprintf("Consider data-testid=%q for stability.", p.Key)
	}
	return r
}

// ErrorResult builds the result for a probe that failed to run
func ErrorResult(p Probe, err error) Result {
	return Result{Key: p.Key, Selector: p.Selector, Status: StatusError, Message: err.Error()}
}

// Report is written to selector-auditor.json
type Report struct {
	Status        string   `json:"status"`
	Reason        string   `json:"reason,omitempty"`
	Message       string   `json:"message,omitempty"`
	StoragePath   string   `json:"storagePath,omitempty"`
	FaultScenario string   `json:"faultScenario,omitempty"`
	Results       []Result `json:"results,omitempty"`
	FaultResults  []Result `json:"faultResults,omitempty"`
}

// OK reports whether every regular probe found its selector
func (r Report) OK() bool {
	return r.Status == StatusOK
}

// Prober runs a single probe against the application
type Prober interface {
	Probe(ctx context.Context, p Probe) Result
	Close() error
}

// Opener starts a prober authenticated with the given storage state
type Opener func(ctx context.Context, storagePath string) (Prober, error)

// Options configures an audit run
type Options struct {
	StoragePath   string
	FaultScenario string
	Probes        []Probe
}

// Auditor runs the probe registry and assembles the report
type Auditor struct {
	open   Opener
	logger *zap.Logger
}

// NewAuditor creates an auditor that obtains probers from open
func NewAuditor(open Opener, logger *zap.Logger) *Auditor {
	return &Auditor{open: open, logger: logger.Named("audit")}
}

// Run probes every selector and returns the report. It never returns an
// error; failures are expressed in the report.
func (a *Auditor) Run(ctx context.Context, opts Options) Report {
	if _, err := os.Stat(opts.StoragePath); err != nil {
		a.logger.Warn("storage state missing", zap.String("path", opts.StoragePath))
		return Report{Status: StatusError, Reason: ReasonMissingStorage, StoragePath: opts.StoragePath}
	}

	probes := opts.Probes
	if probes == nil {
		probes = DefaultProbes()
	}

	prober, err := a.open(ctx, opts.StoragePath)
	if err != nil {
		return Report{Status: StatusError, Reason: ReasonException, Message: err.Error()}
	}
	defer func() {
		if err := prober.Close(); err != nil {
			a.logger.Debug("closing prober", zap.Error(err))
		}
	}()

	report := Report{Status: StatusOK, Results: a.probeAll(ctx, prober, probes)}

	if fault := FaultProbes(opts.FaultScenario); len(fault) > 0 {
		report.FaultScenario = opts.FaultScenario
		report.FaultResults = a.probeAll(ctx, prober, fault)
		for _, r := range report.FaultResults {
			if r.Status != StatusOK {
				report.Status = StatusError
				report.Reason = ReasonFaultSelectorMissing
				report.Message = faultDetectedMessage
				return report
			}
		}
		// every fault probe matched; the broken selectors should not exist
		report.Status = StatusError
		report.Reason = ReasonFaultNotDetected
		report.Message = faultNotDetectedMessage
		return report
	}

	report.Status = WorstStatus(report.Results)
	return report
}

// severity orders probe statuses ok < missing < error; unknown values count
// as error.
func severity(status string) int {
	switch status {
	case StatusOK:
		return 0
	case StatusMissing:
		return 1
	default:
		return 2
	}
}

// WorstStatus returns the most severe status among results, ok when empty
func WorstStatus(results []Result) string {
	worst := StatusOK
	for _, r := range results {
		if severity(r.Status) > severity(worst) {
			worst = r.Status
			if severity(worst) == 2 {
				return StatusError
			}
		}
	}
	return worst
}

func (a *Auditor) probeAll(ctx context.Context, prober Prober, probes []Probe) []Result {
	results := make([]Result, 0, len(probes))
	for _, p := range probes {
		r := prober.Probe(ctx, p)
		metrics.SelectorProbesTotal.WithLabelValues(r.Status).Inc()
		a.logger.Debug("probe",
			zap.String("key", r.Key),
			zap.String("status", r.Status),
			zap.Int("count", r.Count),
			zap.Int("http_status", r.HTTPStatus))
		results = append(results, r)
	}
	return results
}
