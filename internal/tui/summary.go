package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mabhi256/dumpdiag/utils"
)

func (m *Model) renderSummary() string {
	d := m.diag
	severity := string(d.Severity)

	var lines []string

	title := fmt.Sprintf("%s %s", utils.GetSeverityIcon(severity), d.Category)
	lines = append(lines, utils.GetSeverityStyle(severity).Render(title))
	if m.source != "" {
		lines = append(lines, utils.MutedStyle.Render(m.source))
	}
	lines = append(lines, "")

	lines = append(lines,
		utils.FormatKeyValue("Severity", strings.ToUpper(severity), 14),
		utils.FormatKeyValue("Confidence", utils.ConfidenceBar(d.Confidence, 24), 14),
		utils.FormatKeyValue("Root cause", d.RootCause, 14),
	)

	if m.snap != nil {
		exc := m.snap.Exception
		if exc.Code != "" {
			lines = append(lines, utils.FormatKeyValue("Exception", fmt.Sprintf("%s at %s", exc.Code, exc.Address), 14))
		}
		if p := m.snap.Process; p.Name != "" {
			proc := fmt.Sprintf("%s (pid %d)", p.Name, p.PID)
			if uptime := p.Uptime(); uptime > 0 {
				proc += ", up " + utils.FormatDuration(uptime)
			}
			lines = append(lines, utils.FormatKeyValue("Process", proc, 14))
		}
	}

	lines = append(lines, "", utils.BoxStyle.Render(renderFlags(d.DeadlockDetected, d.MemoryCorruption, d.StackOverflow)), "")

	lines = append(lines, utils.SectionStyle.Render("Recommendations"))
	lines = append(lines, m.numbered(d.Recommendations)...)

	if len(d.AlternativeExplanations) > 0 {
		lines = append(lines, "", utils.SectionStyle.Render("Alternative explanations"))
		for _, alt := range d.AlternativeExplanations {
			lines = append(lines, m.wrapped("  • ", alt)...)
		}
	}

	return strings.Join(lines, "\n")
}

func renderFlags(deadlock, corruption, overflow bool) string {
	flag := func(label string, on bool) string {
		if on {
			return utils.CriticalStyle.Render("■ " + label)
		}
		return utils.MutedStyle.Render("□ " + label)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		flag("Deadlock", deadlock), "   ",
		flag("Memory corruption", corruption), "   ",
		flag("Stack overflow", overflow),
	)
}

func (m *Model) numbered(items []string) []string {
	if len(items) == 0 {
		return []string{utils.MutedStyle.Render("  None")}
	}

	var lines []string
	for i, item := range items {
		lines = append(lines, m.wrapped(fmt.Sprintf("  %d. ", i+1), item)...)
	}
	return lines
}

// wrapped word-wraps text under prefix, indenting continuation lines to match
func (m *Model) wrapped(prefix, text string) []string {
	indent := strings.Repeat(" ", lipgloss.Width(prefix))

	var lines []string
	for i, line := range utils.WrapText(text, max(20, m.width-len(indent)-2)) {
		if i == 0 {
			lines = append(lines, prefix+line)
		} else {
			lines = append(lines, indent+line)
		}
	}
	return lines
}
