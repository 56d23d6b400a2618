package realtime

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Router classifies frames and applies the bridge and presenter. All of its
// work happens on the goroutine calling Handle (or Run), so frames are
// processed strictly one at a time in delivery order.
type Router struct {
	bridge    *Bridge
	presenter *Presenter
	observe   func(Event)
	now       func() time.Time
	log       *zap.Logger
}

func NewRouter(bridge *Bridge, presenter *Presenter, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		bridge:    bridge,
		presenter: presenter,
		now:       time.Now,
		log:       log,
	}
}

// OnEvent registers a callback invoked after each recognized event has been
// handled.
func (r *Router) OnEvent(fn func(Event)) {
	r.observe = fn
}

// Handle processes one raw frame. Malformed frames and unknown types are
// dropped without side effects.
func (r *Router) Handle(frame []byte) {
	ev, err := Decode(frame)
	if err != nil {
		r.log.Debug("dropping malformed frame", zap.Int("bytes", len(frame)))
		return
	}
	if u, ok := ev.(Unknown); ok {
		r.log.Debug("dropping unknown event", zap.String("type", string(u.Kind)))
		return
	}

	r.bridge.Apply(ev)

	if r.presenter != nil {
		switch e := ev.(type) {
		case EmergencyCreated:
			r.presenter.Present(AlertFromEmergency(e))
		case StolenDeviceLocated:
			r.presenter.Present(AlertFromStolenDevice(e, r.now()))
		}
	}

	if r.observe != nil {
		r.observe(ev)
	}
}

// Run consumes frames until ctx is done or the channel is closed.
func (r *Router) Run(ctx context.Context, frames <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			r.Handle(frame)
		}
	}
}
