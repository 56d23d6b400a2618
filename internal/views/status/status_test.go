package status

import (
	"strings"
	"testing"

	"github.com/Ghoster04/AntCrime/internal/client"
	"github.com/Ghoster04/AntCrime/internal/realtime"
)

func TestConnectionText(t *testing.T) {
	tests := []struct {
		status realtime.Status
		want   string
	}{
		{realtime.StatusOpen, "● Connected"},
		{realtime.StatusConnecting, "○ Connecting..."},
		{realtime.StatusClosed, "✗ Disconnected — reconnecting"},
	}
	for _, tt := range tests {
		if got := ConnectionText(tt.status); got != tt.want {
			t.Errorf("ConnectionText(%s) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestViewShowsMuteAndCounts(t *testing.T) {
	m := New()
	m.Width = 120
	m.Status = realtime.StatusOpen
	m.Muted = true
	m.Stats = &client.Estatisticas{EmergenciasAtivas: 3, DispositivosRoubados: 2}

	v := m.View()
	for _, want := range []string{"Connected", "MUTED", "3 active emergencies", "2 stolen devices"} {
		if !strings.Contains(v, want) {
			t.Errorf("status bar missing %q", want)
		}
	}
	if strings.Contains(v, "offline data") {
		t.Error("fresh data should not be flagged offline")
	}
}
