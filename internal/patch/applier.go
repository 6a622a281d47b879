package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
	"github.com/hochfrequenz/e2e-self-heal/internal/metrics"
)

// Ledger remembers which patch signatures were applied to which files
type Ledger interface {
	HasPatch(ctx context.Context, target, signature string) (bool, error)
	RecordPatch(ctx context.Context, entry domain.LedgerEntry) error
}

// Applier writes patch operations to disk. File content decides whether a
// patch is already present; the ledger is an audit trail kept alongside it.
type Applier struct {
	ledger Ledger
	logger *zap.Logger
	now    func() time.Time
}

// NewApplier creates an applier. ledger may be nil.
func NewApplier(ledger Ledger, logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{
		ledger: ledger,
		logger: logger.Named("patch"),
		now:    time.Now,
	}
}

// Apply patches op.Target. A missing target yields NotFound and no error;
// read, validation and write failures are returned as errors.
func (a *Applier) Apply(ctx context.Context, op Operation) (Outcome, error) {
	updated, out, err := a.render(op)
	if err != nil || out.Result != Applied {
		if err == nil {
			a.observe(ctx, op, out)
		}
		return out, err
	}

	info, err := os.Stat(op.Target)
	if err != nil {
		return Outcome{}, fmt.Errorf("stat %s: %w", op.Target, err)
	}
	if err := os.WriteFile(op.Target, []byte(updated), info.Mode().Perm()); err != nil {
		return Outcome{}, fmt.Errorf("write %s: %w", op.Target, err)
	}

	a.observe(ctx, op, out)
	return out, nil
}

// Preview reports what Apply would do and returns the resulting content.
// Nothing is written.
func (a *Applier) Preview(op Operation) (Outcome, string, error) {
	updated, out, err := a.render(op)
	return out, updated, err
}

func (a *Applier) render(op Operation) (string, Outcome, error) {
	data, err := os.ReadFile(op.Target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", Outcome{Result: NotFound, Target: op.Target}, nil
		}
		return "", Outcome{}, fmt.Errorf("read %s: %w", op.Target, err)
	}

	updated, out := Render(string(data), op)
	if out.Result == Applied && op.Validate != nil {
		if err := op.Validate(updated); err != nil {
			return "", Outcome{}, fmt.Errorf("patch %s: %w", op.Target, err)
		}
	}
	return updated, out, nil
}

func (a *Applier) observe(ctx context.Context, op Operation, out Outcome) {
	metrics.PatchOutcomesTotal.WithLabelValues(string(out.Result)).Inc()
	a.logger.Info("patch outcome",
		zap.String("target", op.Target),
		zap.String("result", string(out.Result)),
		zap.String("reason", out.Reason),
		zap.String("source", op.Source))

	if a.ledger == nil {
		return
	}
	switch {
	case out.Result == Applied:
	case out.Result == Skipped && out.Reason == ReasonAlreadyApplied:
		// present in the file but possibly unknown to the ledger
		known, err := a.ledger.HasPatch(ctx, op.Target, op.Sig())
		if err != nil {
			a.logger.Warn("ledger lookup failed", zap.String("target", op.Target), zap.Error(err))
			return
		}
		if known {
			return
		}
	default:
		return
	}

	entry := domain.LedgerEntry{
		Target:    op.Target,
		Signature: op.Sig(),
		Source:    op.Source,
		RunID:     op.RunID,
		AppliedAt: a.now().UTC(),
	}
	if err := a.ledger.RecordPatch(ctx, entry); err != nil {
		a.logger.Warn("ledger record failed", zap.String("target", op.Target), zap.Error(err))
	}
}
