package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255"))

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Underline(true)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))

	selectedStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("238"))

	passedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimmedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

var tabNames = [tabCount]string{"Runs", "Decisions", "Error types"}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	failed := 0
	for _, r := range m.runs {
		if r.Status == "failed" {
			failed++
		}
	}
	header := fmt.Sprintf(" E2E Self-Heal │ Runs: %d │ Failed: %d │ Decisions: %d ",
		len(m.runs), failed, len(m.decisions))
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n")

	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	var content string
	switch m.activeTab {
	case TabRuns:
		content = m.renderRuns()
	case TabDecisions:
		content = m.renderDecisions()
	default:
		content = m.renderErrorTypes()
	}
	b.WriteString(sectionStyle.Width(m.width - 2).Render(content))
	b.WriteString("\n")

	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, len(tabNames))
	for i, name := range tabNames {
		if i == m.activeTab {
			tabs = append(tabs, tabActiveStyle.Render(name))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(name))
		}
	}
	return " " + strings.Join(tabs, "  ")
}

// window returns the index range of rows to draw
func (m Model) window(n int) (int, int) {
	start := min(m.scroll, n)
	end := min(start+m.visibleRows(), n)
	return start, end
}

func (m Model) row(i int, line string) string {
	if i == m.selectedRow {
		return selectedStyle.Render(line)
	}
	return line
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case "passed", "success", "ok":
		return passedStyle
	case "failed", "abort":
		return failedStyle
	default:
		return warningStyle
	}
}

func (m Model) renderRuns() string {
	if len(m.runs) == 0 {
		if m.failedOnly {
			return dimmedStyle.Render("No failed runs")
		}
		return dimmedStyle.Render("No runs ingested yet")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-24s %-8s %-22s %-7s %-20s %s\n",
		"RUN", "STATUS", "ERROR TYPE", "CONF", "BRANCH", "PROCESSED"))
	start, end := m.window(len(m.runs))
	for i := start; i < end; i++ {
		r := m.runs[i]
		line := fmt.Sprintf("%-24s %s %-22s %-7s %-20s %s",
			truncate(r.RunID, 24),
			statusStyle(r.Status).Render(fmt.Sprintf("%-8s", r.Status)),
			truncate(string(r.ErrorType), 22),
			r.Confidence,
			truncate(r.Branch, 20),
			r.ProcessedAt.Local().Format("01-02 15:04"))
		b.WriteString(m.row(i, line))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderDecisions() string {
	if len(m.decisions) == 0 {
		return dimmedStyle.Render("No supervisor decisions recorded")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-11s %-24s %-22s %s\n", "DECIDED", "DECISION", "ERROR TYPE", "REASON"))
	start, end := m.window(len(m.decisions))
	reasonWidth := max(m.width-66, 20)
	for i := start; i < end; i++ {
		d := m.decisions[i]
		decision := string(d.Decision)
		line := fmt.Sprintf("%-11s %s %-22s %s",
			d.DecidedAt.Local().Format("01-02 15:04"),
			statusStyle(decision).Render(fmt.Sprintf("%-24s", decision)),
			truncate(string(d.ErrorType), 22),
			truncate(d.Reason, reasonWidth))
		b.WriteString(m.row(i, line))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderErrorTypes() string {
	if len(m.counts) == 0 {
		return dimmedStyle.Render("No classifications yet")
	}

	types := make([]domain.ErrorType, 0, len(m.counts))
	total := 0
	for et, n := range m.counts {
		types = append(types, et)
		total += n
	}
	sort.Slice(types, func(i, j int) bool {
		if m.counts[types[i]] != m.counts[types[j]] {
			return m.counts[types[i]] > m.counts[types[j]]
		}
		return types[i] < types[j]
	})

	var b strings.Builder
	for i, et := range types {
		n := m.counts[et]
		bar := strings.Repeat("█", n*30/total)
		line := fmt.Sprintf("%-22s %4d %s", et, n, warningStyle.Render(bar))
		b.WriteString(m.row(i, line))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderStatusBar() string {
	var left string
	if m.loadErr != nil {
		left = failedStyle.Render(" error: " + m.loadErr.Error())
	} else if !m.lastRefresh.IsZero() {
		left = " refreshed " + m.lastRefresh.Format("15:04:05")
	}
	filter := "all"
	if m.failedOnly {
		filter = "failed"
	}
	help := fmt.Sprintf(" [tab] switch  [j/k] move  [f] filter: %s  [r] refresh  [q] quit ", filter)
	return statusBarStyle.Width(m.width).Render(left + "  " + help)
}

func truncate(s string, n int) string {
	if n <= 1 || len([]rune(s)) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
