// Package dashboard provides the stats summary row and the latest
// emergencies and stolen-device pings for the AntiCrime console.
package dashboard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Ghoster04/AntCrime/internal/client"
	"github.com/Ghoster04/AntCrime/internal/theme"
)

// maxRows caps each table.
const maxRows = 8

// Model holds the dashboard state.
type Model struct {
	Width int

	stats       *client.Estatisticas
	users       int
	devices     map[string]int // count by status
	emergencies []client.Emergencia
	pings       []client.PingRoubado
}

// New creates a dashboard model.
func New() Model {
	return Model{devices: make(map[string]int)}
}

func (m *Model) SetStats(s *client.Estatisticas) { m.stats = s }

func (m *Model) SetUsers(users []client.Usuario) { m.users = len(users) }

// SetDevices tallies devices by status.
func (m *Model) SetDevices(devices []client.Dispositivo) {
	m.devices = make(map[string]int)
	for _, d := range devices {
		m.devices[d.Status]++
	}
}

// SetEmergencies keeps the most recent emergencies first.
func (m *Model) SetEmergencies(es []client.Emergencia) {
	m.emergencies = append([]client.Emergencia(nil), es...)
	sort.SliceStable(m.emergencies, func(i, j int) bool {
		return m.emergencies[i].TimestampAcionamento > m.emergencies[j].TimestampAcionamento
	})
}

// SetPings keeps the most recent pings first.
func (m *Model) SetPings(ps []client.PingRoubado) {
	m.pings = append([]client.PingRoubado(nil), ps...)
	sort.SliceStable(m.pings, func(i, j int) bool {
		return m.pings[i].Timestamp > m.pings[j].Timestamp
	})
}

// View renders the full dashboard.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsRow(width),
		m.renderEmergencies(),
		"",
		m.renderPings(),
	)
}

func (m Model) renderStatsRow(width int) string {
	statStyle := lipgloss.NewStyle().Padding(0, 1)

	var stats []string
	if m.stats != nil {
		stats = []string{
			statStyle.Foreground(theme.ColorBright).Render(
				fmt.Sprintf("Usuários: %d", m.stats.TotalUsuarios)),
			statStyle.Foreground(theme.ColorInfo).Render(
				fmt.Sprintf("Dispositivos: %d", m.stats.TotalDispositivos)),
			statStyle.Foreground(theme.ColorWarning).Render(
				fmt.Sprintf("Emergências: %d", m.stats.TotalEmergencias)),
			statStyle.Foreground(theme.ColorDanger).Render(
				fmt.Sprintf("Ativas: %d", m.stats.EmergenciasAtivas)),
			statStyle.Foreground(theme.ColorStolen).Render(
				fmt.Sprintf("Roubados: %d", m.stats.DispositivosRoubados)),
		}
	} else {
		stats = []string{theme.StyleDimmed.Render("Loading stats...")}
	}
	if m.users > 0 {
		stats = append(stats, theme.StyleDimmed.Render(fmt.Sprintf("(%d listed)", m.users)))
	}

	content := strings.Join(stats, lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | "))
	if len(m.devices) > 0 {
		content += "\n" + m.renderDeviceBreakdown()
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func (m Model) renderDeviceBreakdown() string {
	statuses := make([]string, 0, len(m.devices))
	for s := range m.devices {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)

	parts := make([]string, 0, len(statuses))
	for _, s := range statuses {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.DeviceStatusColor(s)).
			Render(fmt.Sprintf("%s: %d", s, m.devices[s])))
	}
	return theme.StyleDimmed.Render("devices ") + strings.Join(parts, "  ")
}

func (m Model) renderEmergencies() string {
	header := theme.StyleHeader.Render("  Emergências recentes")
	if len(m.emergencies) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, theme.StyleDimmed.Render("  Nenhuma emergência"))
	}

	dim := lipgloss.NewStyle().Foreground(theme.ColorDimmed)
	lines := []string{
		header,
		dim.Render(fmt.Sprintf("  %-6s %-20s %-16s %-22s %s", "#", "Acionada", "Status", "Local", "Bateria")),
	}
	for i, e := range m.emergencies {
		if i == maxRows {
			lines = append(lines, dim.Render(fmt.Sprintf("  … %d more", len(m.emergencies)-maxRows)))
			break
		}
		status := lipgloss.NewStyle().Foreground(theme.EmergencyStatusColor(e.Status)).Width(16).Render(e.Status)
		lines = append(lines, fmt.Sprintf("  %-6d %-20s %s %-22s %s",
			e.ID, shortTime(e.TimestampAcionamento), status,
			fmt.Sprintf("%.4f, %.4f", e.Latitude, e.Longitude), battery(e.NivelBateria)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderPings() string {
	header := theme.StyleHeader.Render("  Pings de dispositivos roubados")
	if len(m.pings) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, theme.StyleDimmed.Render("  Nenhum ping encontrado"))
	}

	dim := lipgloss.NewStyle().Foreground(theme.ColorDimmed)
	lines := []string{
		header,
		dim.Render(fmt.Sprintf("  %-20s %-24s %-18s %-26s %s", "Hora", "Dispositivo", "Proprietário", "Local", "Bateria")),
	}
	for i, p := range m.pings {
		if i == maxRows {
			lines = append(lines, dim.Render(fmt.Sprintf("  … %d more", len(m.pings)-maxRows)))
			break
		}
		device, owner := "N/A", "N/A"
		if p.Dispositivo != nil {
			device = strings.TrimSpace(p.Dispositivo.Marca + " " + p.Dispositivo.Modelo)
			if device == "" {
				device = p.Dispositivo.IMEI
			}
		}
		if p.Usuario != nil && p.Usuario.Nome != "" {
			owner = p.Usuario.Nome
		}
		loc := fmt.Sprintf("%.6f, %.6f", p.Latitude, p.Longitude)
		if p.PrecisaoGPS != nil {
			loc += fmt.Sprintf(" ±%dm", *p.PrecisaoGPS)
		}
		lines = append(lines, fmt.Sprintf("  %-20s %-24s %-18s %-26s %s",
			shortTime(p.Timestamp), truncate(device, 24), truncate(owner, 18), loc, battery(p.NivelBateria)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func battery(pct *int) string {
	if pct == nil {
		return theme.StyleDimmed.Render("N/A")
	}
	return lipgloss.NewStyle().Foreground(theme.BatteryColor(*pct)).Render(fmt.Sprintf("%d%%", *pct))
}

// shortTime trims an ISO timestamp to "2006-01-02 15:04:05".
func shortTime(ts string) string {
	ts = strings.Replace(ts, "T", " ", 1)
	if len(ts) > 19 {
		ts = ts[:19]
	}
	return ts
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
