package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
	"github.com/hochfrequenz/e2e-self-heal/internal/instructions"
	"github.com/hochfrequenz/e2e-self-heal/internal/metrics"
	"github.com/hochfrequenz/e2e-self-heal/internal/runlogs"
	"github.com/hochfrequenz/e2e-self-heal/internal/runstore"
)

// RunResponse is the API response for a run
type RunResponse struct {
	RunID       string `json:"run_id"`
	JobName     string `json:"job_name"`
	Branch      string `json:"branch"`
	Commit      string `json:"commit"`
	Status      string `json:"status"`
	ErrorType   string `json:"error_type"`
	Confidence  string `json:"confidence"`
	ProcessedAt string `json:"processed_at"`
}

// RunDetailResponse adds the stored analysis to a run
type RunDetailResponse struct {
	RunResponse
	Analysis *instructions.Analysis `json:"analysis,omitempty"`
}

// StatusResponse is the API response for overall status
type StatusResponse struct {
	Total       int            `json:"total"`
	Failed      int            `json:"failed"`
	ByErrorType map[string]int `json:"by_error_type"`
	SSEClients  int            `json:"sse_clients"`
}

const defaultListLimit = 50

func runToResponse(r *domain.RunRecord) RunResponse {
	return RunResponse{
		RunID:       r.RunID,
		JobName:     r.JobName,
		Branch:      r.Branch,
		Commit:      r.Commit,
		Status:      r.Status,
		ErrorType:   string(r.ErrorType),
		Confidence:  string(r.Confidence),
		ProcessedAt: r.ProcessedAt.UTC().Format(time.RFC3339),
	}
}

// statusRecorder captures the status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijacking not supported")
	}
	w.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// instrument wraps a handler with a span and the request counter. route
// is the label used for both.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), "HTTP "+r.Method+" "+route, trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", rec.statusCode))
		metrics.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.statusCode)).Inc()
	}
}

func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if s.index == nil {
			writeError(w, http.StatusServiceUnavailable, "run index disabled")
			return
		}

		counts, err := s.index.CountByErrorType(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		failed, err := s.index.ListRuns(r.Context(), runstore.ListOptions{Status: "failed"})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		status := StatusResponse{
			Failed:      len(failed),
			ByErrorType: make(map[string]int, len(counts)),
			SSEClients:  s.sseHub.Clients(),
		}
		for et, n := range counts {
			status.ByErrorType[string(et)] = n
			status.Total += n
		}

		writeJSON(w, http.StatusOK, status)
	}
}

func (s *Server) listRunsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if s.index == nil {
			writeError(w, http.StatusServiceUnavailable, "run index disabled")
			return
		}

		q := r.URL.Query()
		opts := runstore.ListOptions{
			Status:    q.Get("status"),
			ErrorType: domain.ErrorType(q.Get("error_type")),
			Limit:     defaultListLimit,
		}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			opts.Limit = n
		}
		if v := q.Get("before"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "before must be an RFC 3339 timestamp")
				return
			}
			opts.Before = t
		}

		runs, err := s.index.ListRuns(r.Context(), opts)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		responses := make([]RunResponse, len(runs))
		for i, run := range runs {
			responses[i] = runToResponse(run)
		}
		writeJSON(w, http.StatusOK, responses)
	}
}

func (s *Server) getRunHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if s.index == nil {
			writeError(w, http.StatusServiceUnavailable, "run index disabled")
			return
		}

		id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
		if id == "" {
			writeError(w, http.StatusBadRequest, "run ID required")
			return
		}
		id = runlogs.NormalizeRunID(id)

		run, err := s.index.GetRun(r.Context(), id)
		if errors.Is(err, runstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		resp := RunDetailResponse{RunResponse: runToResponse(run)}
		dir := run.RunDir
		if dir == "" {
			dir, _ = s.logs.Find(id)
		}
		if dir != "" {
			var a instructions.Analysis
			if err := runlogs.ReadJSON(filepath.Join(dir, runlogs.AnalysisFile), &a); err == nil {
				resp.Analysis = &a
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
