package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
	"github.com/hochfrequenz/e2e-self-heal/internal/metrics"
	"github.com/hochfrequenz/e2e-self-heal/internal/notify"
	"github.com/hochfrequenz/e2e-self-heal/internal/runlogs"
)

// Decision is the document written to supervisor-decision.json
type Decision struct {
	ID              string             `json:"id"`
	Decision        domain.Decision    `json:"decision"`
	Reason          string             `json:"reason"`
	Recommendations []string           `json:"recommendations"`
	Classification  *ClassificationRef `json:"classification,omitempty"`
	Auth            Report             `json:"auth"`
	Seed            Report             `json:"seed"`
	Smoke           Report             `json:"smoke"`
	Flaky           Report             `json:"flaky"`
	Selector        Report             `json:"selector"`
	DashboardURL    *string            `json:"dashboardUrl"`
	BadgeURL        *string            `json:"badgeUrl"`
	DecidedAt       time.Time          `json:"decided_at"`
}

// ClassificationRef names the error type a decision was routed on
type ClassificationRef struct {
	ErrorType domain.ErrorType `json:"error_type"`
}

// Recorder persists decision summaries
type Recorder interface {
	RecordDecision(ctx context.Context, d domain.DecisionRecord) error
}

// Options locate the supervisor inputs
type Options struct {
	OutputDir   string
	ContextPath string
	// Repository is "owner/name" and drives the dashboard links.
	Repository string
}

// Supervisor evaluates the agent reports and writes the decision
type Supervisor struct {
	opts     Options
	recorder Recorder
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a supervisor. recorder and notifier may be nil.
func New(opts Options, recorder Recorder, notifier notify.Notifier, logger *zap.Logger) *Supervisor {
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	return &Supervisor{
		opts:     opts,
		recorder: recorder,
		notifier: notifier,
		logger:   logger.Named("supervisor"),
		now:      time.Now,
	}
}

// LoadInputs reads every report and the context classification
func (s *Supervisor) LoadInputs() Inputs {
	load := func(name string) Report {
		return LoadReport(filepath.Join(s.opts.OutputDir, name))
	}
	return Inputs{
		Auth:      load(AuthFile),
		Seed:      load(SeedFile),
		Smoke:     load(SmokeFile),
		Flaky:     load(FlakyFile),
		Selector:  load(SelectorFile),
		ErrorType: LoadContextErrorType(s.opts.ContextPath),
	}
}

// Evaluate decides, writes supervisor-decision.json and records the
// outcome. Only a failure to write the decision file is returned.
func (s *Supervisor) Evaluate(ctx context.Context) (Decision, error) {
	in := s.LoadInputs()
	v := Decide(in)

	d := Decision{
		ID:              uuid.NewString(),
		Decision:        v.Decision,
		Reason:          v.Reason,
		Recommendations: v.Recommendations,
		Auth:            in.Auth,
		Seed:            in.Seed,
		Smoke:           in.Smoke,
		Flaky:           in.Flaky,
		Selector:        in.Selector,
		DashboardURL:    DashboardURL(s.opts.Repository),
		BadgeURL:        BadgeURL(s.opts.Repository),
		DecidedAt:       s.now().UTC(),
	}
	if v.ErrorType != "" {
		d.Classification = &ClassificationRef{ErrorType: v.ErrorType}
	}

	path := filepath.Join(s.opts.OutputDir, DecisionFile)
	if err := os.MkdirAll(s.opts.OutputDir, 0755); err != nil {
		return d, fmt.Errorf("creating output dir: %w", err)
	}
	if err := runlogs.WriteJSON(path, d); err != nil {
		return d, fmt.Errorf("writing decision: %w", err)
	}

	metrics.DecisionsTotal.WithLabelValues(string(d.Decision)).Inc()
	s.logger.Info("decision",
		zap.String("id", d.ID),
		zap.String("decision", string(d.Decision)),
		zap.String("reason", d.Reason))

	if s.recorder != nil {
		rec := domain.DecisionRecord{
			ID:        d.ID,
			Decision:  d.Decision,
			Reason:    d.Reason,
			ErrorType: in.ErrorType,
			DecidedAt: d.DecidedAt,
		}
		if err := s.recorder.RecordDecision(ctx, rec); err != nil {
			s.logger.Warn("recording decision", zap.Error(err))
		}
	}

	if err := s.notifier.Send(ctx, notificationFor(d)); err != nil {
		s.logger.Warn("sending notification", zap.Error(err))
	}
	return d, nil
}

func notificationFor(d Decision) notify.Notification {
	n := notify.Notification{
		Title:   "Supervisor decision: " + string(d.Decision),
		Message: d.Reason,
		Level:   notify.LevelWarning,
		Fields: []notify.Field{
			{Title: "Decision", Value: string(d.Decision), Short: true},
			{Title: "Prerequisites", Value: fmt.Sprintf("auth %s, seed %s, smoke %s",
				reportSummary(d.Auth), reportSummary(d.Seed), reportSummary(d.Smoke)), Short: true},
		},
	}
	if d.Classification != nil {
		n.Fields = append(n.Fields, notify.Field{Title: "Error type", Value: string(d.Classification.ErrorType), Short: true})
	}
	if d.Flaky.State == ReportPresent {
		flaky, deterministic := d.Flaky.FailureCounts()
		n.Fields = append(n.Fields, notify.Field{
			Title: "Failures",
			Value: fmt.Sprintf("%d deterministic, %d flaky", deterministic, flaky),
			Short: true,
		})
	}
	if d.Selector.State != ReportAbsent {
		n.Fields = append(n.Fields, notify.Field{Title: "Selector audit", Value: reportSummary(d.Selector), Short: true})
	}
	if len(d.Recommendations) > 0 {
		n.Fields = append(n.Fields, notify.Field{
			Title: "Recommendations",
			Value: "- " + strings.Join(d.Recommendations, "\n- "),
		})
	}

	switch d.Decision {
	case domain.DecisionOK:
		n.Level = notify.LevelSuccess
	case domain.DecisionAbort:
		n.Level = notify.LevelError
	}
	if d.DashboardURL != nil {
		n.URL = *d.DashboardURL
	}
	return n
}

// reportSummary is the status of a present report, otherwise its state
func reportSummary(r Report) string {
	if r.State == ReportPresent && r.Status != "" {
		return r.Status
	}
	return r.State.String()
}

// LoadContextErrorType reads analysis.classification.error_type from the
// self-heal context file. Missing or unreadable context yields "".
func LoadContextErrorType(path string) domain.ErrorType {
	var ctx struct {
		Analysis struct {
			Classification struct {
				ErrorType domain.ErrorType `json:"error_type"`
			} `json:"classification"`
		} `json:"analysis"`
	}
	if err := runlogs.ReadJSON(path, &ctx); err != nil {
		return ""
	}
	return ctx.Analysis.Classification.ErrorType
}

func pagesURL(repository, file string) *string {
	owner, name, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || name == "" {
		return nil
	}
	// only the first two segments count
	name, _, _ = strings.Cut(name, "/")
	u := fmt.Sprintf("https://%s.github.io/%s/%s", owner, name, file)
	return &u
}

// DashboardURL returns the GitHub Pages dashboard for owner/name, or nil
func DashboardURL(repository string) *string {
	return pagesURL(repository, "dashboard.html")
}

// BadgeURL returns the GitHub Pages badge for owner/name, or nil
func BadgeURL(repository string) *string {
	return pagesURL(repository, "badge.svg")
}
