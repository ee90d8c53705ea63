package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/mabhi256/dumpdiag/internal/snapshot"
	"github.com/mabhi256/dumpdiag/utils"
)

var threadStates = []snapshot.ThreadState{
	snapshot.StateRunning,
	snapshot.StateWaiting,
	snapshot.StateBlocked,
	snapshot.StateSuspended,
	snapshot.StateTerminated,
}

func stateColor(s snapshot.ThreadState) lipgloss.Color {
	switch s {
	case snapshot.StateRunning:
		return utils.LowColor
	case snapshot.StateWaiting:
		return utils.MediumColor
	case snapshot.StateBlocked:
		return utils.CriticalColor
	case snapshot.StateSuspended:
		return utils.InfoColor
	default:
		return utils.MutedColor
	}
}

// threadStateCounts tallies threads per state in display order.
func threadStateCounts(threads []snapshot.ThreadRecord) []int {
	counts := make([]int, len(threadStates))
	for _, t := range threads {
		for i, s := range threadStates {
			if t.State == s {
				counts[i]++
				break
			}
		}
	}
	return counts
}

func renderStateChart(threads []snapshot.ThreadRecord, width int) string {
	counts := threadStateCounts(threads)
	if !slices.ContainsFunc(counts, func(n int) bool { return n > 0 }) {
		return utils.MutedStyle.Render("No thread states recorded.")
	}

	data := make([]barchart.BarData, len(threadStates))
	for i, s := range threadStates {
		data[i] = barchart.BarData{
			Label: string(s),
			Values: []barchart.BarValue{{
				Name:  string(s),
				Value: float64(counts[i]),
				Style: lipgloss.NewStyle().Foreground(stateColor(s)),
			}},
		}
	}

	bc := barchart.New(min(max(width-4, 30), 60), 10)
	bc.PushAll(data)
	bc.Draw()

	legend := make([]string, len(threadStates))
	for i, s := range threadStates {
		legend[i] = lipgloss.NewStyle().Foreground(stateColor(s)).Render(fmt.Sprintf("■ %s %d", s, counts[i]))
	}

	return lipgloss.JoinVertical(lipgloss.Left, bc.View(), strings.Join(legend, "  "))
}

func (m *Model) renderThreads() string {
	if m.snap == nil || len(m.snap.Threads) == 0 {
		return utils.MutedStyle.Render("No threads recorded in the snapshot.")
	}

	lines := []string{
		utils.SectionStyle.Render(fmt.Sprintf("Thread states (%d threads)", len(m.snap.Threads))),
		renderStateChart(m.snap.Threads, m.width),
		renderDepthStats(m.snap.Threads),
		"",
	}

	if cycles := m.diag.DeadlockInfo.Cycles; len(cycles) > 0 {
		lines = append(lines, utils.SectionStyle.Render("Contention"))
		for _, c := range cycles {
			ids := make([]string, len(c.ThreadIDs))
			for i, id := range c.ThreadIDs {
				ids[i] = fmt.Sprint(id)
			}
			lines = append(lines, utils.HighStyle.Render(fmt.Sprintf("  %s on %s", strings.Join(ids, " ↔ "), strings.Join(c.ResourceHandles, ", "))))
		}
		lines = append(lines, "")
	}

	lines = append(lines, utils.SectionStyle.Render("Threads"))
	for _, t := range m.snap.Threads {
		lines = append(lines, renderThreadLine(t))
		for _, wo := range t.WaitObjects {
			lines = append(lines, utils.MutedStyle.Render("    └─ "+describeWaitObject(wo)))
		}
	}

	return strings.Join(lines, "\n")
}

func renderDepthStats(threads []snapshot.ThreadRecord) string {
	depths := make([]int, len(threads))
	for i, t := range threads {
		depths[i] = len(t.StackTrace)
	}
	return utils.MutedStyle.Render(fmt.Sprintf("Stack depth: avg %.1f, max %d, stddev %.1f",
		utils.Mean(depths), slices.Max(depths), utils.StdDev(depths)))
}

func renderThreadLine(t snapshot.ThreadRecord) string {
	name := t.Name
	if name == "" {
		name = "-"
	}

	mainMark := ""
	if t.IsMainThread {
		mainMark = " (main)"
	}

	top := ""
	if len(t.StackTrace) > 0 {
		top = "  " + t.StackTrace[0].Symbol()
	}

	state := lipgloss.NewStyle().Foreground(stateColor(t.State)).Render(fmt.Sprintf("%-10s", t.State))
	return fmt.Sprintf("  %6d %s %s%s  %d frames%s", t.ID, state, name, mainMark, len(t.StackTrace), top)
}

func describeWaitObject(wo snapshot.WaitObject) string {
	desc := fmt.Sprintf("%s %s", wo.Kind, wo.Handle)
	if wo.OwnerThread != nil {
		desc += fmt.Sprintf(" owned by %d", *wo.OwnerThread)
	}
	if wo.WaitDurationMs > 0 {
		desc += ", waiting " + utils.FormatMillis(wo.WaitDurationMs)
	}
	return desc
}
