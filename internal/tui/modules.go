package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mabhi256/dumpdiag/internal/snapshot"
	"github.com/mabhi256/dumpdiag/utils"
)

// symbolCoverage is the share of modules loaded with symbols, 0..100.
func symbolCoverage(modules []snapshot.ModuleRecord) float64 {
	if len(modules) == 0 {
		return 0
	}
	with := 0
	for _, mod := range modules {
		if mod.HasSymbols {
			with++
		}
	}
	return float64(with) / float64(len(modules)) * 100
}

func (m *Model) renderModules() string {
	problems := m.diag.ProblemModules

	lines := []string{utils.SectionStyle.Render("Problem modules")}
	if len(problems) == 0 {
		lines = append(lines, utils.MutedStyle.Render("  None implicated"))
	}
	for _, name := range problems {
		lines = append(lines, utils.HighStyle.Render("  ⚠ "+name))
	}

	if m.snap == nil || len(m.snap.Modules) == 0 {
		return strings.Join(append(lines, "", utils.MutedStyle.Render("No modules recorded in the snapshot.")), "\n")
	}

	coverage := symbolCoverage(m.snap.Modules)
	lines = append(lines, "", CreateHorizontalBar(BarData{
		Label:      "Symbol coverage",
		Percentage: coverage,
		Style:      lipgloss.NewStyle().Foreground(utils.GetConfidenceColor(int(coverage))),
		Suffix:     fmt.Sprintf("of %d modules", len(m.snap.Modules)),
	}, DefaultLabelWidth, max(10, m.width-DefaultLabelWidth-30)), "")

	lines = append(lines, utils.SectionStyle.Render("Loaded modules"))
	for _, mod := range m.snap.Modules {
		lines = append(lines, renderModuleLine(mod, slices.Contains(problems, mod.Name), m.snap.Exception.Address))
	}

	return strings.Join(lines, "\n")
}

func renderModuleLine(mod snapshot.ModuleRecord, flagged bool, faultAddr snapshot.Address) string {
	marks := ""
	if !mod.HasSymbols {
		marks += " [no symbols]"
	}
	if mod.IsSystemModule {
		marks += " [system]"
	}
	if faultAddr != 0 && mod.Contains(faultAddr) {
		marks += " [fault]"
	}

	line := fmt.Sprintf("  %-24s %s  %-8s %s%s",
		utils.TruncateString(mod.Name, 24), mod.BaseAddress, utils.SizeOf(mod.Size), mod.Version, marks)

	if flagged {
		return utils.HighStyle.Render(line)
	}
	return utils.TextStyle.Render(line)
}
