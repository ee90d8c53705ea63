package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mabhi256/dumpdiag/internal/diagnosis"
	"github.com/mabhi256/dumpdiag/utils"
)

func (m *Model) renderEvidence() string {
	items := m.diag.Evidence
	if len(items) == 0 {
		return utils.MutedStyle.Render("No evidence collected.\n\nThe snapshot carried too little detail for any analyzer to fire.")
	}

	bars := make([]BarData, len(items))
	for i, e := range items {
		bars[i] = BarData{
			Label:      string(e.Kind),
			Percentage: float64(e.Confidence),
			Style:      lipgloss.NewStyle().Foreground(utils.GetConfidenceColor(e.Confidence)),
		}
	}
	chart := CreateHorizontalBarChart(utils.SectionStyle.Render("Evidence confidence"), bars, m.width)

	var lines []string
	starts := make([]int, len(items))
	for i, e := range items {
		starts[i] = len(lines)
		lines = append(lines, m.renderEvidenceItem(e, i == m.selectedEvidence, m.expandedEvidence[i])...)
		lines = append(lines, "")
	}

	available := m.bodyHeight() - lipgloss.Height(chart) - 1
	list := scrollToSelected(lines, starts[min(m.selectedEvidence, len(starts)-1)], available)

	return lipgloss.JoinVertical(lipgloss.Left, chart, "", list)
}

func (m *Model) renderEvidenceItem(e diagnosis.Evidence, isSelected, isExpanded bool) []string {
	selector := " "
	if isSelected {
		selector = "▶"
	}

	expandIcon := "[+]"
	if isExpanded {
		expandIcon = "[-]"
	}

	titleLine := fmt.Sprintf("%s %s [%s] %s", selector, expandIcon, e.Kind, e.Description)
	if isSelected {
		titleLine = lipgloss.NewStyle().
			Background(utils.InfoColor).
			Foreground(lipgloss.Color("#FFFFFF")).
			Render(titleLine)
	} else {
		titleLine = utils.TextStyle.Render(titleLine)
	}

	lines := []string{titleLine}
	lines = append(lines, utils.MutedStyle.Render(fmt.Sprintf("  └─ confidence %d%%", e.Confidence)))

	if !isExpanded {
		return lines
	}

	for _, line := range m.wrapped("     ", e.TechnicalDetails) {
		lines = append(lines, utils.TextStyle.Render(line))
	}
	if e.Address != nil {
		lines = append(lines, utils.InfoStyle.Render("     address "+e.Address.String()))
	}
	if e.RawData != "" {
		for _, raw := range strings.Split(e.RawData, "\n") {
			lines = append(lines, utils.MutedStyle.Render("     │ "+raw))
		}
	}
	return lines
}

// scrollToSelected returns a window of height lines that keeps the line at
// selectedStart visible, centering it once the list overflows.
func scrollToSelected(lines []string, selectedStart, height int) string {
	if height <= 0 || len(lines) <= height {
		return strings.Join(lines, "\n")
	}

	scrollY := 0
	if selectedStart >= height {
		scrollY = selectedStart - height/2
	}
	scrollY = max(0, min(scrollY, len(lines)-height))

	return strings.Join(lines[scrollY:scrollY+height], "\n")
}
