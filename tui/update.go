package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.loadCmd()
		case "j", "down":
			if m.selectedRow < m.rowCount()-1 {
				m.selectedRow++
			}
			if m.selectedRow >= m.scroll+m.visibleRows() {
				m.scroll = m.selectedRow - m.visibleRows() + 1
			}
		case "k", "up":
			if m.selectedRow > 0 {
				m.selectedRow--
			}
			if m.selectedRow < m.scroll {
				m.scroll = m.selectedRow
			}
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			m.selectedRow = 0
			m.scroll = 0
		case "f":
			// toggle failed runs only
			m.failedOnly = !m.failedOnly
			m.selectedRow = 0
			m.scroll = 0
			return m, m.loadCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		return m, tea.Batch(m.loadCmd(), tickCmd())

	case DataMsg:
		m.lastRefresh = msg.At
		m.loadErr = msg.Err
		if msg.Err != nil {
			return m, nil
		}
		m.runs = msg.Runs
		m.decisions = msg.Decisions
		if msg.Counts != nil {
			m.counts = msg.Counts
		}
		if n := m.rowCount(); m.selectedRow >= n {
			m.selectedRow = max(n-1, 0)
			m.scroll = min(m.scroll, m.selectedRow)
		}
	}

	return m, nil
}
