package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Ghoster04/AntCrime/internal/cache"
	"github.com/Ghoster04/AntCrime/internal/client"
	"github.com/Ghoster04/AntCrime/internal/realtime"
	"github.com/Ghoster04/AntCrime/internal/theme"
	"github.com/Ghoster04/AntCrime/internal/views/alert"
	"github.com/Ghoster04/AntCrime/internal/views/dashboard"
	"github.com/Ghoster04/AntCrime/internal/views/debug"
	"github.com/Ghoster04/AntCrime/internal/views/status"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayAlert
	OverlayDebug
)

// Pipeline is the slice of realtime.Session the console drives.
type Pipeline interface {
	Status() realtime.Status
	Muted() bool
	ToggleMute() bool
	Respond(id realtime.ID) error
	Dismiss() error
}

// Data is the slice of cache.Cache the console reads.
type Data interface {
	Get(ctx context.Context, key realtime.Collection) (cache.Entry, error)
	Invalidate(keys ...realtime.Collection)
}

// dataMsg carries a decoded collection back from a load command.
type dataMsg struct {
	key   realtime.Collection
	value any
	stale bool
	err   error
}

// actionMsg reports the outcome of an operator action.
type actionMsg struct {
	name string
	note string
	err  error
}

// Model is the root Bubble Tea model.
type Model struct {
	pipeline Pipeline
	data     Data
	bus      *Bus
	copy     func(string) error
	ctx      context.Context
	cancel   context.CancelFunc

	keys      KeyMap
	width     int
	height    int
	showDebug bool

	stale map[realtime.Collection]bool

	statusBar status.Model
	dashboard dashboard.Model
	alert     alert.Model
	debug     debug.Model
}

// New creates the root model.
func New(pipeline Pipeline, data Data, bus *Bus) Model {
	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		pipeline:  pipeline,
		data:      data,
		bus:       bus,
		copy:      clipboard.WriteAll,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		stale:     make(map[realtime.Collection]bool),
		statusBar: status.New(),
		dashboard: dashboard.New(),
		alert:     alert.New(),
		debug:     debug.New(),
	}
	if pipeline != nil {
		m.statusBar.Status = pipeline.Status()
		m.statusBar.Muted = pipeline.Muted()
		m.alert.SetMuted(m.statusBar.Muted)
	}
	return m
}

// Overlay reports the modal currently drawn over the dashboard. The alert
// dialog takes precedence over the debug log.
func (m Model) Overlay() Overlay {
	switch {
	case m.alert.Visible():
		return OverlayAlert
	case m.showDebug:
		return OverlayDebug
	default:
		return OverlayNone
	}
}

// Init starts listening to the pipeline and loads every collection.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.listen()}
	for _, key := range realtime.Collections {
		cmds = append(cmds, m.load(key))
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.dashboard.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StatusMsg:
		m.statusBar.Status = msg.Status
		m.debug.Add(debug.KindWS, status.ConnectionText(msg.Status))
		return m, m.listen()

	case EventMsg:
		m.debug.Add(debug.KindEvent, string(msg.Event.Type()))
		return m, m.listen()

	case AlertMsg:
		if msg.State == realtime.Presenting && msg.Alert != nil {
			m.debug.Addf(debug.KindAlert, "presenting %s %s", msg.Alert.ID, msg.Alert.TypeLabel)
			return m, tea.Batch(m.listen(), m.alert.Show(msg.Alert))
		}
		m.alert.Hide()
		m.debug.Add(debug.KindAlert, "closed")
		return m, m.listen()

	case MutedMsg:
		m.statusBar.Muted = msg.Muted
		m.alert.SetMuted(msg.Muted)
		m.debug.Addf(debug.KindAlert, "muted=%v", msg.Muted)
		return m, m.listen()

	case RefreshedMsg:
		if msg.Err != nil {
			m.debug.Addf(debug.KindError, "refresh %s: %v", msg.Key, msg.Err)
			m.setStale(msg.Key, true)
			return m, m.listen()
		}
		m.debug.Addf(debug.KindData, "refreshed %s", msg.Key)
		return m, tea.Batch(m.listen(), m.load(msg.Key))

	case dataMsg:
		if msg.err != nil {
			m.debug.Addf(debug.KindError, "load %s: %v", msg.key, msg.err)
			return m, nil
		}
		m.apply(msg.value)
		m.setStale(msg.key, msg.stale)
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.debug.Addf(debug.KindError, "%s: %v", msg.name, msg.err)
		} else if msg.note != "" {
			m.debug.Add(debug.KindNav, msg.note)
		}
		// The pipeline has nothing to close; drop a dialog left over from a
		// missed transition.
		if errors.Is(msg.err, realtime.ErrNoActiveAlert) {
			m.alert.Hide()
		}
		return m, nil

	case alert.FrameMsg:
		var cmd tea.Cmd
		m.alert, cmd = m.alert.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		return m, tea.Quit
	}

	switch m.Overlay() {
	case OverlayAlert:
		switch {
		case key.Matches(msg, m.keys.Respond):
			return m, m.action("respond", func() error { return m.pipeline.Respond("") })
		case key.Matches(msg, m.keys.Dismiss):
			return m, m.action("dismiss", m.pipeline.Dismiss)
		case key.Matches(msg, m.keys.Copy):
			a := m.alert.Alert()
			if a.Location == nil {
				m.debug.Add(debug.KindNav, "copy: no location")
				return m, nil
			}
			return m, m.copyLocation(a.Coordinates())
		case key.Matches(msg, m.keys.Mute):
			return m, m.toggleMute()
		}
		return m, nil

	case OverlayDebug:
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Debug):
			m.showDebug = false
		case key.Matches(msg, m.keys.Up):
			m.debug.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.debug.ScrollDown(1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Mute):
		return m, m.toggleMute()

	case key.Matches(msg, m.keys.Debug):
		m.showDebug = true
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.debug.Add(debug.KindNav, "refresh requested")
		data := m.data
		return m, func() tea.Msg {
			data.Invalidate(realtime.Collections...)
			return nil
		}
	}

	return m, nil
}

// View renders the full console.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.Overlay() {
	case OverlayAlert:
		return m.place(m.alert.View(min(m.width-4, 90)))
	case OverlayDebug:
		return m.place(m.debug.View(m.width-4, m.height-2))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusBar.View(),
		m.dashboard.View(),
		theme.StyleDimmed.Render("  m:mute  f:refresh  d:debug  q:quit"),
	)
}

func (m Model) place(overlay string) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusBar.View(),
		lipgloss.Place(m.width, max(m.height-2, 1), lipgloss.Center, lipgloss.Center, overlay),
	)
}

// listen re-arms the bus. A nil bus is allowed so the model can be driven
// directly.
func (m Model) listen() tea.Cmd {
	if m.bus == nil {
		return nil
	}
	return m.bus.Listen()
}

// Pipeline calls can block on the bus, so they run as commands off the
// update goroutine.
func (m Model) action(name string, fn func() error) tea.Cmd {
	return func() tea.Msg { return actionMsg{name: name, err: fn()} }
}

// copyLocation puts text on the system clipboard.
func (m Model) copyLocation(text string) tea.Cmd {
	write := m.copy
	return func() tea.Msg {
		return actionMsg{name: "copy", note: "copied " + text, err: write(text)}
	}
}

func (m Model) toggleMute() tea.Cmd {
	p := m.pipeline
	return func() tea.Msg {
		p.ToggleMute()
		return nil
	}
}

func (m Model) load(key realtime.Collection) tea.Cmd {
	data, ctx := m.data, m.ctx
	if data == nil {
		return nil
	}
	return func() tea.Msg {
		e, err := data.Get(ctx, key)
		if err != nil {
			return dataMsg{key: key, err: err}
		}
		v, err := decodeCollection(key, e)
		return dataMsg{key: key, value: v, stale: e.Stale, err: err}
	}
}

func decodeCollection(key realtime.Collection, e cache.Entry) (any, error) {
	switch key {
	case realtime.CollectionUsers:
		return cache.Decode[[]client.Usuario](e)
	case realtime.CollectionDevices:
		return cache.Decode[[]client.Dispositivo](e)
	case realtime.CollectionEmergencies:
		return cache.Decode[[]client.Emergencia](e)
	case realtime.CollectionStolenPings:
		return cache.Decode[[]client.PingRoubado](e)
	case realtime.CollectionDashboardStats:
		return cache.Decode[client.Estatisticas](e)
	}
	return nil, fmt.Errorf("unknown collection %q", key)
}

func (m *Model) apply(v any) {
	switch v := v.(type) {
	case []client.Usuario:
		m.dashboard.SetUsers(v)
	case []client.Dispositivo:
		m.dashboard.SetDevices(v)
	case []client.Emergencia:
		m.dashboard.SetEmergencies(v)
	case []client.PingRoubado:
		m.dashboard.SetPings(v)
	case client.Estatisticas:
		m.dashboard.SetStats(&v)
		m.statusBar.Stats = &v
	}
}

func (m *Model) setStale(key realtime.Collection, stale bool) {
	if stale {
		m.stale[key] = true
	} else {
		delete(m.stale, key)
	}
	m.statusBar.Stale = len(m.stale) > 0
}
