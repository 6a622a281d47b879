package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
	"github.com/hochfrequenz/e2e-self-heal/internal/instructions"
	"github.com/hochfrequenz/e2e-self-heal/internal/metrics"
	"github.com/hochfrequenz/e2e-self-heal/internal/runlogs"
)

var bearerPattern = regexp.MustCompile(`(?i)^Bearer\s+(.+)$`)

// bearerToken extracts the token of an Authorization header, or ""
func bearerToken(header string) string {
	m := bearerPattern.FindStringSubmatch(header)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// tokenEqual compares in time independent of content and length by
// comparing fixed-size digests.
func tokenEqual(presented, expected string) bool {
	a := sha256.Sum256([]byte(presented))
	b := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// authorize checks the bearer token against the server secret and writes
// the 500 or 401 response when the request may not proceed.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	span := trace.SpanFromContext(r.Context())
	if s.opts.Token == "" {
		span.SetStatus(codes.Error, "token not configured")
		s.logger.Error("request rejected", zap.String("path", r.URL.Path), zap.Error(domain.ErrServerMisconfigured))
		writeError(w, http.StatusInternalServerError, "Server misconfigured: DEVELOPER_AGENT_TOKEN missing")
		return false
	}
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" || !tokenEqual(token, s.opts.Token) {
		span.SetStatus(codes.Error, "unauthorized")
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return false
	}
	return true
}

// requireToken guards the read API with the ingestion token
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authorize(w, r) {
			next(w, r)
		}
	}
}

// ingestLimits caps the accepted payload beyond its type checks
type ingestLimits struct {
	PlaywrightLog string `validate:"max=8388608"`
	BackendLog    string `validate:"max=8388608"`
	RunID         string `validate:"max=256"`
	JobName       string `validate:"max=256"`
	Timestamp     string `validate:"max=64"`
	Branch        string `validate:"max=256"`
	Commit        string `validate:"max=64"`
	Status        string `validate:"max=32"`
}

// decodeBundle parses and type-checks an ingestion body. Problems are
// returned as *domain.ValidationError.
func decodeBundle(data []byte) (domain.LogBundle, error) {
	var body any
	if len(bytes.TrimSpace(data)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			return domain.LogBundle{}, &domain.ValidationError{Message: "Invalid JSON body", Details: []string{err.Error()}}
		}
		if err := dec.Decode(new(any)); err != io.EOF {
			return domain.LogBundle{}, &domain.ValidationError{Message: "Invalid JSON body", Details: []string{"unexpected data after JSON value"}}
		}
	}

	obj, ok := body.(map[string]any)
	if !ok {
		return domain.LogBundle{}, &domain.ValidationError{Message: "Invalid payload", Details: []string{"Body must be a JSON object"}}
	}

	var details []string
	str := func(key string) string {
		s, ok := obj[key].(string)
		if !ok {
			details = append(details, key+" must be a string")
		}
		return s
	}

	b := domain.LogBundle{}
	b.PlaywrightLog = str("playwright_log")
	b.BackendLog = str("backend_log")
	switch v := obj["run_id"].(type) {
	case string:
		b.RunID = v
	case json.Number:
		b.RunID = v.String()
	default:
		details = append(details, "run_id must be a string or number")
	}
	b.JobName = str("job_name")
	b.Timestamp = str("timestamp")
	b.Branch = str("branch")
	b.Commit = str("commit")
	b.Status = str("status")

	if len(details) > 0 {
		return domain.LogBundle{}, &domain.ValidationError{Message: "Invalid payload", Details: details}
	}
	return b, nil
}

func (s *Server) checkLimits(b domain.LogBundle) error {
	err := s.validate.Struct(ingestLimits{
		PlaywrightLog: b.PlaywrightLog,
		BackendLog:    b.BackendLog,
		RunID:         b.RunID,
		JobName:       b.JobName,
		Timestamp:     b.Timestamp,
		Branch:        b.Branch,
		Commit:        b.Commit,
		Status:        b.Status,
	})
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fmt.Sprintf("Field '%s' failed on the '%s' tag.", fe.Field(), fe.Tag()))
	}
	return &domain.ValidationError{Message: "Invalid payload", Details: details}
}

func (s *Server) ingestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeError(w, http.StatusNotFound, "Not Found")
			return
		}
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
			return
		}

		span := trace.SpanFromContext(r.Context())

		if !s.authorize(w, r) {
			return
		}

		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "Payload Too Large")
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON body", "details": []string{err.Error()}})
			return
		}

		bundle, err := decodeBundle(data)
		if err == nil {
			err = s.checkLimits(bundle)
		}
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			span.SetStatus(codes.Error, verr.Message)
			span.RecordError(err)
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": verr.Message, "details": verr.Details})
			return
		}
		if err != nil {
			s.logger.Error("validating payload", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		if err := s.process(r.Context(), bundle); err != nil {
			span.SetStatus(codes.Error, "persisting run")
			span.RecordError(err)
			s.logger.Error("processing run", zap.String("run_id", bundle.RunID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
	}
}

// process persists the logs and analysis of a run, indexes it and
// announces it to SSE clients.
func (s *Server) process(ctx context.Context, b domain.LogBundle) error {
	runID := runlogs.NormalizeRunID(b.RunID)
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("run.id", runID), attribute.String("run.status", b.Status))

	dir, err := s.logs.RunDir(runID)
	if err != nil {
		return err
	}
	if err := runlogs.WriteFile(filepath.Join(dir, runlogs.PlaywrightLogFile), []byte(b.PlaywrightLog)); err != nil {
		return fmt.Errorf("writing playwright log: %w", err)
	}
	if err := runlogs.WriteFile(filepath.Join(dir, runlogs.BackendLogFile), []byte(b.BackendLog)); err != nil {
		return fmt.Errorf("writing backend log: %w", err)
	}

	cause := s.classifier.Classify(b.PlaywrightLog, b.BackendLog)
	metrics.ClassificationsTotal.WithLabelValues(string(cause.ErrorType)).Inc()
	span.SetAttributes(attribute.String("run.error_type", string(cause.ErrorType)))

	now := s.now()
	set := instructions.BuildFor(cause.ErrorType, s.opts.Branch, s.opts.Base)
	analysis := instructions.NewAnalysis(b, runID, cause, set, now)
	if err := runlogs.WriteJSON(filepath.Join(dir, runlogs.AnalysisFile), analysis); err != nil {
		return fmt.Errorf("writing analysis: %w", err)
	}
	if b.Failed() {
		if err := runlogs.WriteJSON(filepath.Join(dir, runlogs.TriggersFile), instructions.NewTriggers(analysis, now)); err != nil {
			return fmt.Errorf("writing triggers: %w", err)
		}
	}

	if s.index != nil {
		rec := domain.RunRecord{
			RunID:       runID,
			JobName:     b.JobName,
			Branch:      b.Branch,
			Commit:      b.Commit,
			Status:      b.Status,
			ErrorType:   cause.ErrorType,
			Confidence:  cause.Confidence,
			RunDir:      dir,
			ProcessedAt: now,
		}
		if err := s.index.UpsertRun(ctx, rec); err != nil {
			s.logger.Warn("indexing run", zap.String("run_id", runID), zap.Error(err))
		}
	}

	s.logger.Info("run processed",
		zap.String("run_id", runID),
		zap.String("status", b.Status),
		zap.String("error_type", string(cause.ErrorType)),
		zap.String("confidence", string(cause.Confidence)))

	s.Broadcast(SSEEvent{Type: "run.processed", Data: map[string]string{
		"run_id":     runID,
		"status":     b.Status,
		"error_type": string(cause.ErrorType),
	}})
	return nil
}
