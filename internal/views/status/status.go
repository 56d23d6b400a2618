package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/Ghoster04/AntCrime/internal/client"
	"github.com/Ghoster04/AntCrime/internal/realtime"
	"github.com/Ghoster04/AntCrime/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Status realtime.Status
	Muted  bool
	Stale  bool // last data refresh failed; showing cached data
	Stats  *client.Estatisticas
	Width  int
}

// New creates a status bar model.
func New() Model {
	return Model{Status: realtime.StatusConnecting}
}

// ConnectionText is the plain label for a connection status.
func ConnectionText(s realtime.Status) string {
	switch s {
	case realtime.StatusOpen:
		return "● Connected"
	case realtime.StatusConnecting:
		return "○ Connecting..."
	default:
		return "✗ Disconnected — reconnecting"
	}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var color lipgloss.Color
	switch m.Status {
	case realtime.StatusOpen:
		color = theme.ColorHealthy
	case realtime.StatusConnecting:
		color = theme.ColorWarning
	default:
		color = theme.ColorDanger
	}
	connStr := lipgloss.NewStyle().Foreground(color).Render(ConnectionText(m.Status))

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr

	if m.Muted {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorWarning).Bold(true).Render("🔇 MUTED")
	} else {
		content += sep + theme.StyleDimmed.Render("🔊 alerts on")
	}

	if m.Stats != nil {
		content += sep + fmt.Sprintf("%d active emergencies  %d stolen devices",
			m.Stats.EmergenciasAtivas, m.Stats.DispositivosRoubados)
	}
	if m.Stale {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("offline data")
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
