package utils

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	CriticalColor = lipgloss.Color("#CC3333") // Dark red
	HighColor     = lipgloss.Color("#FF8800") // Orange
	MediumColor   = lipgloss.Color("#D4B106") // Amber
	LowColor      = lipgloss.Color("#228B22") // Forest green
	InfoColor     = lipgloss.Color("#4682B4") // Steel blue
	TextColor     = lipgloss.Color("#CCCCCC")
	MutedColor    = lipgloss.Color("#888888")
	BorderColor   = lipgloss.Color("#666666")
)

var (
	CriticalStyle = lipgloss.NewStyle().Foreground(CriticalColor).Bold(true)
	HighStyle     = lipgloss.NewStyle().Foreground(HighColor).Bold(true)
	MediumStyle   = lipgloss.NewStyle().Foreground(MediumColor).Bold(true)
	LowStyle      = lipgloss.NewStyle().Foreground(LowColor).Bold(true)
	InfoStyle     = lipgloss.NewStyle().Foreground(InfoColor)
	MutedStyle    = lipgloss.NewStyle().Foreground(MutedColor)
	TextStyle     = lipgloss.NewStyle().Foreground(TextColor)
)

var (
	TabActiveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(InfoColor).
			Padding(0, 1).
			Bold(true)

	TabInactiveStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				Padding(0, 1)

	SectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Underline(true)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	HelpBarStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Padding(0, 1)
)

func GetSeverityColor(severity string) lipgloss.Color {
	switch strings.ToLower(severity) {
	case "critical":
		return CriticalColor
	case "high":
		return HighColor
	case "medium":
		return MediumColor
	default:
		return LowColor
	}
}

func GetSeverityStyle(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "critical":
		return CriticalStyle
	case "high":
		return HighStyle
	case "medium":
		return MediumStyle
	default:
		return LowStyle
	}
}

func GetSeverityIcon(severity string) string {
	switch strings.ToLower(severity) {
	case "critical":
		return "🔴"
	case "high":
		return "🟠"
	case "medium":
		return "🟡"
	default:
		return "🟢"
	}
}

// GetConfidenceColor buckets a 0-100 score
func GetConfidenceColor(score int) lipgloss.Color {
	switch {
	case score >= 80:
		return LowColor
	case score >= 50:
		return MediumColor
	default:
		return HighColor
	}
}

// CreateProgressBar renders percentage (0..1) as a fixed-width bar.
func CreateProgressBar(percentage float64, width int, color lipgloss.Color) string {
	if width < 4 {
		return fmt.Sprintf("%.0f%%", percentage*100)
	}

	filled := int(math.Round(percentage * float64(width)))
	filled = max(0, min(filled, width))

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	if color != "" {
		bar = lipgloss.NewStyle().Foreground(color).Render(bar)
	}
	return bar
}

// ConfidenceBar renders a 0-100 score with its numeric label.
func ConfidenceBar(score, width int) string {
	bar := CreateProgressBar(float64(score)/100, width, GetConfidenceColor(score))
	return fmt.Sprintf("%s %3d%%", bar, score)
}

func FormatKeyValue(key, value string, keyWidth int) string {
	keyStyled := InfoStyle.Width(keyWidth).Render(key + ":")
	return lipgloss.JoinHorizontal(lipgloss.Left, keyStyled, " ", TextStyle.Render(value))
}

// TruncateString truncates a string to fit within maxWidth runes
func TruncateString(s string, maxWidth int) string {
	r := []rune(s)
	if len(r) <= maxWidth {
		return s
	}
	if maxWidth < 4 {
		return strings.Repeat(".", max(maxWidth, 0))
	}
	return string(r[:maxWidth-3]) + "..."
}

// WrapText wraps text to fit within specified width
func WrapText(text string, width int) []string {
	if width < 10 {
		return []string{text}
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	var current []string
	length := 0

	for _, word := range words {
		if length+len(word)+len(current) > width && len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
			current = []string{word}
			length = len(word)
		} else {
			current = append(current, word)
			length += len(word)
		}
	}

	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}

	return lines
}
