package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	DefaultLabelWidth = 22
	filledChar        = "█"
	emptyChar         = "▱"
)

// BarData is one row of a horizontal bar chart
type BarData struct {
	Label      string
	Percentage float64 // 0..100
	Style      lipgloss.Style
	Suffix     string
}

// CreateHorizontalBar renders "Label │████▱▱▱│ 42% suffix" with a bar of barWidth cells.
func CreateHorizontalBar(data BarData, labelWidth, barWidth int) string {
	pct := max(0, min(data.Percentage, 100))
	filled := int(pct * float64(barWidth) / 100)
	if pct > 0 {
		filled = max(filled, 1)
	}

	bar := strings.Repeat(filledChar, filled) + strings.Repeat(emptyChar, barWidth-filled)

	label := data.Label
	if r := []rune(label); len(r) > labelWidth {
		label = string(r[:labelWidth-1]) + "…"
	}

	line := fmt.Sprintf("%-*s │%s│ %3.0f%%", labelWidth, label, data.Style.Render(bar), pct)
	if data.Suffix != "" {
		line += " " + data.Suffix
	}
	return line
}

func CreateHorizontalBarChart(title string, bars []BarData, width int) string {
	var lines []string

	if title != "" {
		lines = append(lines, title, "")
	}

	barWidth := max(10, width-DefaultLabelWidth-20)
	for _, bar := range bars {
		lines = append(lines, CreateHorizontalBar(bar, DefaultLabelWidth, barWidth))
	}

	return strings.Join(lines, "\n")
}
