// Package theme provides the Lip Gloss color palette and reusable styles
// for the AntiCrime console. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Priority colors.
var (
	ColorPriorityHigh   = lipgloss.Color("#dc2626")
	ColorPriorityMedium = lipgloss.Color("#d97706")
	ColorPriorityLow    = lipgloss.Color("#2563eb")
)

// Device status colors.
var (
	ColorStolen    = lipgloss.Color("#dc2626")
	ColorActive    = lipgloss.Color("#22c55e")
	ColorInactive  = lipgloss.Color("#6b7280")
	ColorRecovered = lipgloss.Color("#3b82f6")
)

// Emergency status colors.
var (
	ColorOpen       = lipgloss.Color("#dc2626")
	ColorInProgress = lipgloss.Color("#d97706")
	ColorClosed     = lipgloss.Color("#16a34a")
)

// Battery thresholds.
var (
	ColorBatteryLow  = lipgloss.Color("#dc2626") // <20%
	ColorBatteryMid  = lipgloss.Color("#d97706") // 20-50%
	ColorBatteryHigh = lipgloss.Color("#22c55e")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorAccent  = lipgloss.Color("#7c3aed")
	ColorInfo    = lipgloss.Color("#2563eb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorAlarm   = lipgloss.Color("#fca5a5")
)

// PriorityColor returns the color for an emergency priority.
func PriorityColor(priority string) lipgloss.Color {
	switch priority {
	case "alta", "critica":
		return ColorPriorityHigh
	case "media":
		return ColorPriorityMedium
	case "baixa":
		return ColorPriorityLow
	default:
		return ColorDimmed
	}
}

// DeviceStatusColor returns the color for a device status.
func DeviceStatusColor(status string) lipgloss.Color {
	switch status {
	case "roubado":
		return ColorStolen
	case "ativo":
		return ColorActive
	case "recuperado":
		return ColorRecovered
	default:
		return ColorInactive
	}
}

// EmergencyStatusColor returns the color for an emergency status.
func EmergencyStatusColor(status string) lipgloss.Color {
	switch status {
	case "ativo", "ativa":
		return ColorOpen
	case "em_atendimento":
		return ColorInProgress
	case "finalizada", "resolvida":
		return ColorClosed
	default:
		return ColorDimmed
	}
}

// BatteryColor returns the color for a battery percentage.
func BatteryColor(pct int) lipgloss.Color {
	switch {
	case pct < 20:
		return ColorBatteryLow
	case pct < 50:
		return ColorBatteryMid
	default:
		return ColorBatteryHigh
	}
}

// PriorityBadge renders a priority as an inverted badge.
func PriorityBadge(priority string) string {
	return lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1).
		Foreground(ColorBright).
		Background(PriorityColor(priority)).
		Render(strings.ToUpper(priority))
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleLabel = lipgloss.NewStyle().
			Foreground(ColorDimmed).
			Width(14)
)
