// Package api serves the log ingestion endpoint and the read-only run API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hochfrequenz/e2e-self-heal/internal/classify"
	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
	"github.com/hochfrequenz/e2e-self-heal/internal/instructions"
	"github.com/hochfrequenz/e2e-self-heal/internal/runlogs"
	"github.com/hochfrequenz/e2e-self-heal/internal/runstore"
)

// RunIndex is the run store used by the server
type RunIndex interface {
	UpsertRun(ctx context.Context, r domain.RunRecord) error
	GetRun(ctx context.Context, runID string) (*domain.RunRecord, error)
	ListRuns(ctx context.Context, opts runstore.ListOptions) ([]*domain.RunRecord, error)
	CountByErrorType(ctx context.Context) (map[domain.ErrorType]int, error)
}

// Options configures the server
type Options struct {
	Addr string
	// Token is the shared ingestion secret; empty means misconfigured.
	Token        string
	MaxBodyBytes int64
	// PR branch and base written into the PR instructions.
	Branch string
	Base   string
}

// Server is the HTTP API server
type Server struct {
	index      RunIndex
	logs       *runlogs.Store
	classifier *classify.Classifier
	opts       Options
	mux        *http.ServeMux
	sseHub     *SSEHub
	upgrader   websocket.Upgrader
	validate   *validator.Validate
	tracer     trace.Tracer
	logger     *zap.Logger
	now        func() time.Time
}

// NewServer creates a new API server. index may be nil, in which case
// runs are persisted to disk only and the read API reports 503.
func NewServer(index RunIndex, logs *runlogs.Store, opts Options, logger *zap.Logger) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	if opts.Branch == "" {
		opts.Branch = instructions.DefaultBranch
	}
	if opts.Base == "" {
		opts.Base = instructions.DefaultBase
	}
	s := &Server{
		index:      index,
		logs:       logs,
		classifier: classify.New(classify.DefaultSignals()),
		opts:       opts,
		mux:        http.NewServeMux(),
		sseHub:     NewSSEHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		validate: validator.New(),
		tracer:   otel.Tracer("selfheal-api"),
		logger:   logger.Named("api"),
		now:      time.Now,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/", s.instrument("/", s.ingestHandler()))
	// run metadata (branch, commit, error type) needs the ingestion token too
	s.mux.HandleFunc("/api/status", s.instrument("/api/status", s.requireToken(s.statusHandler())))
	s.mux.HandleFunc("/api/runs", s.instrument("/api/runs", s.requireToken(s.listRunsHandler())))
	s.mux.HandleFunc("/api/runs/", s.instrument("/api/runs/{id}", s.requireToken(s.getRunHandler())))
	s.mux.HandleFunc("/api/events", s.instrument("/api/events", s.requireToken(s.sseHandler())))
	s.mux.HandleFunc("/api/ws", s.instrument("/api/ws", s.requireToken(s.wsHandler())))
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Handler returns the server's routes
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve runs the SSE hub and the HTTP server until ctx is cancelled
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.sseHub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", s.opts.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Hub returns the server's SSE hub
func (s *Server) Hub() *SSEHub {
	return s.sseHub
}

// Broadcast sends an event to all SSE clients
func (s *Server) Broadcast(event SSEEvent) {
	s.sseHub.Broadcast(event)
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
