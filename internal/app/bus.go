package app

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Ghoster04/AntCrime/internal/realtime"
)

// Messages delivered from the realtime pipeline and the cache.
type (
	StatusMsg struct{ Status realtime.Status }
	EventMsg  struct{ Event realtime.Event }
	AlertMsg  struct {
		State realtime.PresentationState
		Alert *realtime.Alert
	}
	MutedMsg     struct{ Muted bool }
	RefreshedMsg struct {
		Key realtime.Collection
		Err error
	}
)

// Bus carries pipeline callbacks, which run on background goroutines, into
// the Bubble Tea update loop. The model re-arms Listen after each message.
type Bus struct {
	ch        chan tea.Msg
	done      chan struct{}
	closeOnce sync.Once
}

func NewBus(size int) *Bus {
	if size <= 0 {
		size = 256
	}
	return &Bus{ch: make(chan tea.Msg, size), done: make(chan struct{})}
}

// Send queues msg, blocking while the buffer is full. It returns
// immediately once the bus is closed.
func (b *Bus) Send(msg tea.Msg) {
	select {
	case b.ch <- msg:
	case <-b.done:
	}
}

// Close releases blocked senders.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// Listen waits for the next message.
func (b *Bus) Listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.ch:
			return msg
		case <-b.done:
			return nil
		}
	}
}

// Observer returns session callbacks that publish to the bus.
func (b *Bus) Observer() realtime.Observer {
	return realtime.Observer{
		OnStatus: func(s realtime.Status) { b.Send(StatusMsg{Status: s}) },
		OnEvent:  func(ev realtime.Event) { b.Send(EventMsg{Event: ev}) },
		OnAlert: func(st realtime.PresentationState, a *realtime.Alert) {
			b.Send(AlertMsg{State: st, Alert: a})
		},
		OnMuted: func(v bool) { b.Send(MutedMsg{Muted: v}) },
	}
}

// OnRefresh matches cache.Cache.OnRefresh.
func (b *Bus) OnRefresh(key realtime.Collection, err error) {
	b.Send(RefreshedMsg{Key: key, Err: err})
}
