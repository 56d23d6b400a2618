// Package debug provides the scrollable pipeline log overlay.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Ghoster04/AntCrime/internal/theme"
)

const maxEntries = 200

// Kind tags an entry's source.
type Kind string

const (
	KindWS    Kind = "ws"   // connection status
	KindEvent Kind = "evt"  // decoded realtime event
	KindAlert Kind = "alrt" // presentation transitions
	KindData  Kind = "data" // cache refreshes
	KindError Kind = "err"
	KindNav   Kind = "nav"
)

// Entry is a single log line.
type Entry struct {
	Time    time.Time
	Kind    Kind
	Message string
}

// Model holds the last maxEntries entries, oldest first.
type Model struct {
	Entries []Entry
	Offset  int // scroll offset from the bottom

	now func() time.Time
}

func New() Model {
	return Model{now: time.Now}
}

// Add appends an entry, drops the oldest beyond maxEntries and scrolls to
// the bottom.
func (m *Model) Add(kind Kind, message string) {
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	m.Entries = append(m.Entries, Entry{Time: now(), Kind: kind, Message: message})
	if over := len(m.Entries) - maxEntries; over > 0 {
		copy(m.Entries, m.Entries[over:])
		m.Entries = m.Entries[:maxEntries]
	}
	m.Offset = 0
}

// Addf is Add with formatting.
func (m *Model) Addf(kind Kind, format string, args ...any) {
	m.Add(kind, fmt.Sprintf(format, args...))
}

func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.Entries)-1, 0))
}

func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

// View renders the log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	visible := max(height-6, 3)

	title := theme.StyleHeader.Render(" PIPELINE LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d entries", len(m.Entries)))

	panel := lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  No events recorded yet.")
		return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := max(len(m.Entries)-m.Offset, 0)
	start := max(end-visible, 0)

	lines := make([]string, 0, end-start)
	for _, e := range m.Entries[start:end] {
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(4).Render(string(e.Kind))
		msg := e.Message
		if limit := innerW - 23; limit > 0 && len(msg) > limit+3 {
			msg = msg[:limit] + "..."
		}
		lines = append(lines, ts+" "+kind+" "+msg)
	}

	more := ""
	if m.Offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}
	return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), more, help))
}

func kindColor(k Kind) lipgloss.Color {
	switch k {
	case KindWS:
		return theme.ColorInfo
	case KindError:
		return theme.ColorDanger
	case KindAlert:
		return theme.ColorAlarm
	case KindNav:
		return theme.ColorAccent
	case KindData:
		return theme.ColorWarning
	default:
		return theme.ColorDimmed
	}
}
