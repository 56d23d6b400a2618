package realtime

import "sync/atomic"

// Mute suppresses alert escalation (dialog and siren) without affecting
// cache invalidation. The zero value is unmuted.
type Mute struct {
	muted   atomic.Bool
	onMuted func(bool)
}

func (m *Mute) Muted() bool {
	return m.muted.Load()
}

func (m *Mute) Set(v bool) {
	if m.muted.Swap(v) != v && m.onMuted != nil {
		m.onMuted(v)
	}
}

// Toggle flips the flag and returns the new value.
func (m *Mute) Toggle() bool {
	for {
		old := m.muted.Load()
		if m.muted.CompareAndSwap(old, !old) {
			if m.onMuted != nil {
				m.onMuted(!old)
			}
			return !old
		}
	}
}
