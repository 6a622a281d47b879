// Package retention removes old run directories on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hochfrequenz/e2e-self-heal/internal/metrics"
)

// RunDeleter drops a run from the index
type RunDeleter interface {
	DeleteRun(ctx context.Context, runID string) error
}

// Pruner deletes run directories whose last modification is older than
// the retention window.
type Pruner struct {
	roots  []string
	index  RunDeleter
	maxAge time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewPruner creates a pruner over the given log roots. index may be nil.
func NewPruner(roots []string, index RunDeleter, days int, logger *zap.Logger) *Pruner {
	return &Pruner{
		roots:  roots,
		index:  index,
		maxAge: time.Duration(days) * 24 * time.Hour,
		logger: logger.Named("retention"),
		now:    time.Now,
	}
}

// ParseSchedule parses a standard five-field cron expression
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// Prune removes expired run directories and returns how many were removed
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	if p.maxAge <= 0 {
		return 0, nil
	}
	cutoff := p.now().Add(-p.maxAge)
	removed := 0

	for _, root := range p.roots {
		entries, err := os.ReadDir(root)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("reading %s: %w", root, err)
		}

		for _, e := range entries {
			if ctx.Err() != nil {
				return removed, ctx.Err()
			}
			if !e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}

			dir := filepath.Join(root, e.Name())
			if err := os.RemoveAll(dir); err != nil {
				p.logger.Warn("removing run dir", zap.String("dir", dir), zap.Error(err))
				continue
			}
			if p.index != nil {
				if err := p.index.DeleteRun(ctx, e.Name()); err != nil {
					p.logger.Warn("deleting run index row", zap.String("run_id", e.Name()), zap.Error(err))
				}
			}
			removed++
			metrics.RunsPruned.Inc()
			p.logger.Info("pruned run", zap.String("run_id", e.Name()), zap.Time("modified", info.ModTime()))
		}
	}
	return removed, nil
}

// Start schedules Prune on the cron expression expr and returns a function
// that stops the scheduler and waits for a running prune to finish.
func (p *Pruner) Start(ctx context.Context, expr string) (func(), error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing retention schedule %q: %w", expr, err)
	}

	c := cron.New()
	c.Schedule(sched, cron.FuncJob(func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Warn("prune failed", zap.Error(err))
		}
	}))
	c.Start()

	return func() {
		<-c.Stop().Done()
	}, nil
}
