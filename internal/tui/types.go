package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"

	"github.com/mabhi256/dumpdiag/internal/diagnosis"
	"github.com/mabhi256/dumpdiag/internal/snapshot"
)

type Model struct {
	// Data
	source string
	snap   *snapshot.CrashSnapshot
	diag   *diagnosis.CrashDiagnosis

	// UI State
	currentTab TabType
	width      int
	height     int

	scrollPositions  map[TabType]int
	selectedEvidence int
	expandedEvidence map[int]bool

	// Key bindings
	keys KeyMap
	help help.Model
}

type TabType int

const (
	SummaryTab TabType = iota
	EvidenceTab
	ThreadsTab
	ModulesTab

	tabCount
)

func (t TabType) String() string {
	switch t {
	case SummaryTab:
		return "Summary"
	case EvidenceTab:
		return "Evidence"
	case ThreadsTab:
		return "Threads"
	case ModulesTab:
		return "Modules"
	default:
		return "Unknown"
	}
}

func (t TabType) Icon() string {
	switch t {
	case SummaryTab:
		return "📊"
	case EvidenceTab:
		return "🧪"
	case ThreadsTab:
		return "🧵"
	default:
		return "📦"
	}
}

type KeyMap struct {
	Tab1   key.Binding
	Tab2   key.Binding
	Tab3   key.Binding
	Tab4   key.Binding
	Left   key.Binding
	Right  key.Binding
	Up     key.Binding
	Down   key.Binding
	PgUp   key.Binding
	PgDown key.Binding
	Enter  key.Binding
	Quit   key.Binding
}

func k(keys []string, help, desc string) key.Binding {
	return key.NewBinding(
		key.WithKeys(keys...),
		key.WithHelp(help, desc),
	)
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Tab1:   k([]string{"1"}, "1", "summary"),
		Tab2:   k([]string{"2"}, "2", "evidence"),
		Tab3:   k([]string{"3"}, "3", "threads"),
		Tab4:   k([]string{"4"}, "4", "modules"),
		Left:   k([]string{"left", "h", "shift+tab"}, "←/h", "prev tab"),
		Right:  k([]string{"right", "l", "tab"}, "→/l", "next tab"),
		Up:     k([]string{"up", "k"}, "↑/k", "up"),
		Down:   k([]string{"down", "j"}, "↓/j", "down"),
		PgUp:   k([]string{"pgup"}, "pgup", "page up"),
		PgDown: k([]string{"pgdown"}, "pgdn", "page down"),
		Enter:  k([]string{"enter", " "}, "enter", "expand"),
		Quit:   k([]string{"q", "ctrl+c"}, "q", "quit"),
	}
}

// ShortHelp lists the bindings shown in the footer.
func (km KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{km.Left, km.Right, km.Up, km.Down, km.Enter, km.Quit}
}
