package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mabhi256/dumpdiag/internal/diagnosis"
	"github.com/mabhi256/dumpdiag/internal/snapshot"
	"github.com/mabhi256/dumpdiag/utils"
)

const PageSize = 10 // Number of lines to scroll per page

// header and footer rows reserved around the tab body
const chromeHeight = 4

func initialModel(source string, snap *snapshot.CrashSnapshot, diag *diagnosis.CrashDiagnosis) *Model {
	return &Model{
		source:           source,
		snap:             snap,
		diag:             diag,
		currentTab:       SummaryTab,
		keys:             DefaultKeyMap(),
		help:             help.New(),
		scrollPositions:  make(map[TabType]int),
		expandedEvidence: make(map[int]bool),
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Tab1):
			m.currentTab = SummaryTab
		case key.Matches(msg, m.keys.Tab2):
			m.currentTab = EvidenceTab
		case key.Matches(msg, m.keys.Tab3):
			m.currentTab = ThreadsTab
		case key.Matches(msg, m.keys.Tab4):
			m.currentTab = ModulesTab

		case key.Matches(msg, m.keys.Left):
			m.currentTab = utils.CycleEnum(m.currentTab, -1, tabCount)
		case key.Matches(msg, m.keys.Right):
			m.currentTab = utils.CycleEnum(m.currentTab, 1, tabCount)

		default:
			return m.handleTabSpecificKeys(msg)
		}
	}

	return m, nil
}

func (m *Model) handleTabSpecificKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.currentTab == EvidenceTab {
		return m.handleEvidenceKeys(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		m.scroll(-1)
	case key.Matches(msg, m.keys.Down):
		m.scroll(1)
	case key.Matches(msg, m.keys.PgUp):
		m.scroll(-PageSize)
	case key.Matches(msg, m.keys.PgDown):
		m.scroll(PageSize)
	}
	return m, nil
}

func (m *Model) handleEvidenceKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	count := len(m.diag.Evidence)

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.selectedEvidence > 0 {
			m.selectedEvidence--
		}
	case key.Matches(msg, m.keys.Down):
		if m.selectedEvidence < count-1 {
			m.selectedEvidence++
		}
	case key.Matches(msg, m.keys.Enter):
		if count > 0 {
			m.expandedEvidence[m.selectedEvidence] = !m.expandedEvidence[m.selectedEvidence]
		}
	}
	return m, nil
}

// scroll is bounded below here and above at render time, when the line count is known
func (m *Model) scroll(delta int) {
	m.scrollPositions[m.currentTab] = max(0, m.scrollPositions[m.currentTab]+delta)
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var content string
	switch m.currentTab {
	case SummaryTab:
		content = m.renderSummary()
	case EvidenceTab:
		content = m.renderEvidence()
	case ThreadsTab:
		content = m.renderThreads()
	case ModulesTab:
		content = m.renderModules()
	}

	if m.currentTab != EvidenceTab {
		content = m.clip(content)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		content,
		m.renderFooter(),
	)
}

func (m *Model) bodyHeight() int {
	return max(1, m.height-chromeHeight)
}

// clip applies the current tab's scroll offset to rendered content
func (m *Model) clip(content string) string {
	lines := strings.Split(content, "\n")
	height := m.bodyHeight()
	if len(lines) <= height {
		m.scrollPositions[m.currentTab] = 0
		return content
	}

	offset := min(m.scrollPositions[m.currentTab], len(lines)-height)
	m.scrollPositions[m.currentTab] = offset
	return strings.Join(lines[offset:offset+height], "\n")
}

func (m *Model) renderHeader() string {
	var tabs []string

	for i := TabType(0); i < tabCount; i++ {
		style := utils.TabInactiveStyle
		indicator := " "

		if i == m.currentTab {
			style = utils.TabActiveStyle
			indicator = "●"
		}

		tabs = append(tabs, style.Render(fmt.Sprintf("%s %s %s [%d]", indicator, i.Icon(), i, i+1)))
	}

	tabLine := strings.Join(tabs, "  ")
	border := strings.Repeat("─", m.width)

	return lipgloss.JoinVertical(lipgloss.Left, tabLine, border)
}

func (m *Model) renderFooter() string {
	return utils.HelpBarStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp()))
}

func StartTUI(source string, snap *snapshot.CrashSnapshot, diag *diagnosis.CrashDiagnosis) error {
	if diag == nil {
		return fmt.Errorf("no diagnosis to display")
	}

	model := initialModel(source, snap, diag)

	program := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	_, err := program.Run()
	return err
}
