// Package classify maps raw CI logs onto failure categories.
//
// Two independent vocabularies live here. Classify assigns a test-execution
// failure category used by the ingestion endpoint; DetectIssue assigns a
// startup issue code used by the startup fix agent. They never feed each other.
package classify

import (
	"regexp"

	"github.com/acarl005/stripansi"

	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
)

// Signal pairs a failure category with the pattern that identifies it
type Signal struct {
	Type    domain.ErrorType
	Pattern *regexp.Regexp
}

// DefaultSignals returns the built-in signals in priority order.
// Each call returns a fresh slice.
func DefaultSignals() []Signal {
	return []Signal{
		{domain.ErrorAuth, regexp.MustCompile(`(?i)invalid\s+credentials|login\s+failed|401\b|403\b`)},
		{domain.ErrorSelector, regexp.MustCompile(`(?i)strict\s+mode\s+violation|locator\(|waiting for selector|toHaveCount\(`)},
		{domain.ErrorTimeout, regexp.MustCompile(`(?i)timeout\s+\d+ms|Test timeout of`)},
		{domain.ErrorNavigation, regexp.MustCompile(`(?i)net::ERR_|Navigation\s+timeout|page\.goto`)},
		{domain.ErrorDB, regexp.MustCompile(`(?i)database\s+error|psycopg|relation\s+.*\s+does not exist|could not connect`)},
		{domain.ErrorBackendException, regexp.MustCompile(`(?i)Traceback\s+\(most recent call last\):`)},
	}
}

// Classifier evaluates an ordered signal table. The first signal matching
// either log wins.
type Classifier struct {
	signals []Signal
}

// New returns a classifier over a private copy of signals
func New(signals []Signal) *Classifier {
	own := make([]Signal, len(signals))
	copy(own, signals)
	return &Classifier{signals: own}
}

var defaultClassifier = New(DefaultSignals())

// Classify classifies with the default signal table
func Classify(playwrightLog, backendLog string) domain.Classification {
	return defaultClassifier.Classify(playwrightLog, backendLog)
}

// Classify returns the category of the first matching signal with high
// confidence. With no match it returns unknown when any log has content and
// missing_logs when both are empty.
func (c *Classifier) Classify(playwrightLog, backendLog string) domain.Classification {
	pl := stripansi.Strip(playwrightLog)
	bl := stripansi.Strip(backendLog)

	for _, s := range c.signals {
		if s.Pattern.MatchString(pl) || s.Pattern.MatchString(bl) {
			return domain.Classification{ErrorType: s.Type, Confidence: domain.ConfidenceHigh}
		}
	}

	if playwrightLog != "" || backendLog != "" {
		return domain.Classification{ErrorType: domain.ErrorUnknown, Confidence: domain.ConfidenceLow}
	}
	return domain.Classification{ErrorType: domain.ErrorMissingLogs, Confidence: domain.ConfidenceLow}
}

// Signals returns a copy of the classifier's table
func (c *Classifier) Signals() []Signal {
	out := make([]Signal, len(c.signals))
	copy(out, c.signals)
	return out
}
