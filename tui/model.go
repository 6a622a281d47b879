// Package tui is the terminal dashboard over the run index: ingested runs,
// their classification, and the supervisor decisions.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
	"github.com/hochfrequenz/e2e-self-heal/internal/runstore"
)

// Tabs
const (
	TabRuns = iota
	TabDecisions
	TabErrorTypes
	tabCount
)

const (
	refreshInterval = 5 * time.Second
	listLimit       = 200
)

// Source is the run index the dashboard reads from
type Source interface {
	ListRuns(ctx context.Context, opts runstore.ListOptions) ([]*domain.RunRecord, error)
	ListDecisions(ctx context.Context, limit int) ([]domain.DecisionRecord, error)
	CountByErrorType(ctx context.Context) (map[domain.ErrorType]int, error)
}

// Model is the TUI application model
type Model struct {
	source Source

	// Data
	runs      []*domain.RunRecord
	decisions []domain.DecisionRecord
	counts    map[domain.ErrorType]int
	loadErr   error

	// UI state
	width       int
	height      int
	activeTab   int
	selectedRow int
	scroll      int
	failedOnly  bool

	lastRefresh time.Time
}

// ModelConfig holds initial data for the TUI model
type ModelConfig struct {
	Source     Source
	FailedOnly bool
}

// NewModel creates a new TUI model
func NewModel(cfg ModelConfig) Model {
	return Model{
		source:     cfg.Source,
		failedOnly: cfg.FailedOnly,
		counts:     map[domain.ErrorType]int{},
	}
}

// Init loads the first snapshot and starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadCmd(),
		tickCmd(),
	)
}

// TickMsg triggers a refresh
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// DataMsg carries a fresh snapshot of the index
type DataMsg struct {
	Runs      []*domain.RunRecord
	Decisions []domain.DecisionRecord
	Counts    map[domain.ErrorType]int
	Err       error
	At        time.Time
}

func (m Model) loadCmd() tea.Cmd {
	source, failedOnly := m.source, m.failedOnly
	return func() tea.Msg {
		if source == nil {
			return DataMsg{At: time.Now()}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		opts := runstore.ListOptions{Limit: listLimit}
		if failedOnly {
			opts.Status = "failed"
		}
		msg := DataMsg{At: time.Now()}
		if msg.Runs, msg.Err = source.ListRuns(ctx, opts); msg.Err != nil {
			return msg
		}
		if msg.Decisions, msg.Err = source.ListDecisions(ctx, listLimit); msg.Err != nil {
			return msg
		}
		msg.Counts, msg.Err = source.CountByErrorType(ctx)
		return msg
	}
}

// visibleRows is the number of list rows that fit below the header
func (m Model) visibleRows() int {
	if m.height <= 10 {
		return 5
	}
	return m.height - 10
}

func (m Model) rowCount() int {
	switch m.activeTab {
	case TabRuns:
		return len(m.runs)
	case TabDecisions:
		return len(m.decisions)
	default:
		return len(m.counts)
	}
}
