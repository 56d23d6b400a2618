// Package alert renders the emergency dialog overlay with its pulsing
// border.
package alert

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/Ghoster04/AntCrime/internal/realtime"
	"github.com/Ghoster04/AntCrime/internal/theme"
)

const fps = 30

// FrameMsg advances the pulse animation.
type FrameMsg struct{ seq int }

// Model holds the dialog state. The zero value is hidden.
type Model struct {
	alert  *realtime.Alert
	muted  bool
	seq    int
	spring harmonica.Spring
	pos    float64
	vel    float64
	target float64
}

// New creates a hidden dialog.
func New() Model {
	return Model{spring: harmonica.NewSpring(harmonica.FPS(fps), 5.0, 0.25)}
}

// Visible reports whether an alert is shown.
func (m Model) Visible() bool { return m.alert != nil }

// Alert returns the displayed alert, or nil.
func (m Model) Alert() *realtime.Alert { return m.alert }

// Show displays a and starts the pulse.
func (m *Model) Show(a *realtime.Alert) tea.Cmd {
	m.alert = a
	m.pos, m.vel, m.target = 0, 0, 1
	m.seq++
	return m.tick()
}

// Hide closes the dialog. Pending frames are ignored.
func (m *Model) Hide() {
	m.alert = nil
	m.seq++
}

// SetMuted shows the mute state in the footer.
func (m *Model) SetMuted(v bool) { m.muted = v }

// Update handles animation frames.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	frame, ok := msg.(FrameMsg)
	if !ok || frame.seq != m.seq || m.alert == nil {
		return m, nil
	}
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.target)
	if m.target == 1 && m.pos > 0.95 {
		m.target = 0
	} else if m.target == 0 && m.pos < 0.05 {
		m.target = 1
	}
	return m, m.tick()
}

func (m Model) tick() tea.Cmd {
	seq := m.seq
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return FrameMsg{seq: seq} })
}

// Intensity is the current pulse level in [0,1].
func (m Model) Intensity() float64 {
	return min(1, max(0, m.pos))
}

// View renders the dialog for the given terminal width.
func (m Model) View(width int) string {
	if m.alert == nil {
		return ""
	}
	a := m.alert

	innerW := min(max(width-8, 40), 76)

	borderColor := theme.ColorDanger
	if m.Intensity() < 0.5 {
		borderColor = theme.ColorAlarm
	}

	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorDanger).
		Render("🚨 " + strings.ToUpper(a.TypeLabel))
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", theme.PriorityBadge(a.Priority))

	rows := []string{
		field("ID", string(a.ID)),
		field("Status", a.Status),
		field("Usuário", a.UserRef),
		field("Dispositivo", a.DeviceRef),
		field("Aparelho", strings.TrimSpace(a.DeviceBrand+" "+a.DeviceModel)),
		field("Bateria", batteryText(a.Battery)),
		field("Localização", a.LocationText()),
		field("Hora", a.TimeText()),
	}
	if url := a.MapURL(); url != "" {
		rows = append(rows, field("Mapa", url))
	}

	sections := []string{header, "", strings.Join(rows, "\n")}
	if desc := renderDescription(a.Description, innerW); desc != "" {
		sections = append(sections, "", desc)
	}

	var notes []string
	if a.Silent {
		notes = append(notes, lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("audio unavailable, visual alert only"))
	}
	if m.muted {
		notes = append(notes, lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("new alerts muted"))
	}
	if len(notes) > 0 {
		sections = append(sections, "", strings.Join(notes, "  "))
	}
	sections = append(sections, "", theme.StyleDimmed.Render("r:responder  c:copiar  x/esc:fechar  m:mute"))

	return lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.ThickBorder()).
		BorderForeground(borderColor).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func field(label, value string) string {
	if value == "" {
		value = realtime.Placeholder
	}
	return theme.StyleLabel.Render(label) + value
}

func batteryText(b string) string {
	if b == realtime.Placeholder || b == "" {
		return realtime.Placeholder
	}
	return b + "%"
}

var renderers sync.Map // width -> *glamour.TermRenderer

func renderDescription(desc string, width int) string {
	if strings.TrimSpace(desc) == "" {
		return ""
	}
	r, err := renderer(width)
	if err != nil {
		return desc
	}
	out, err := r.Render(desc)
	if err != nil {
		return desc
	}
	return strings.TrimSpace(out)
}

func renderer(width int) (*glamour.TermRenderer, error) {
	if cached, ok := renderers.Load(width); ok {
		return cached.(*glamour.TermRenderer), nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("glamour renderer: %w", err)
	}
	renderers.Store(width, r)
	return r, nil
}
