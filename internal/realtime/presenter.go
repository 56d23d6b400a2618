package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoActiveAlert is returned by Respond and Dismiss while nothing is
// being presented.
var ErrNoActiveAlert = errors.New("realtime: no active alert")

// respondTimeout bounds the downstream "mark handled" call.
const respondTimeout = 30 * time.Second

// PresentationState is the state of the emergency presentation controller.
type PresentationState int

const (
	Idle PresentationState = iota
	Presenting
)

func (s PresentationState) String() string {
	if s == Presenting {
		return "presenting"
	}
	return "idle"
}

// Player plays the looping siren. Play may fail (no audio device, player
// missing); Stop must be safe to call at any time.
type Player interface {
	Play() error
	Stop()
}

// Responder tells the backend that an operator is handling an emergency.
type Responder interface {
	MarkHandled(ctx context.Context, id ID) error
}

// PresentationObserver is notified after every transition. alert is nil
// when the new state is Idle.
type PresentationObserver func(state PresentationState, alert *Alert)

// Presenter is the Idle/Presenting state machine behind the emergency
// dialog. At most one alert is shown; a newer one replaces it.
type Presenter struct {
	// transition is held from a state change until its observers return,
	// so observers see transitions in the order they were applied.
	transition sync.Mutex

	mu      sync.Mutex
	state   PresentationState
	current *Alert

	player    Player
	responder Responder
	mute      *Mute
	stale     Invalidator
	observe   PresentationObserver
	log       *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
}

// PresenterOption configures a Presenter.
type PresenterOption func(*Presenter)

// WithPlayer sets the siren. Without one alerts are visual only.
func WithPlayer(p Player) PresenterOption {
	return func(pr *Presenter) { pr.player = p }
}

// WithResponder sets the downstream used by Respond.
func WithResponder(r Responder) PresenterOption {
	return func(pr *Presenter) { pr.responder = r }
}

// WithRespondInvalidator sets where Respond reports the collections it made
// stale once the downstream call finishes.
func WithRespondInvalidator(inv Invalidator) PresenterOption {
	return func(pr *Presenter) { pr.stale = inv }
}

// WithPresentationObserver registers a transition callback.
func WithPresentationObserver(fn PresentationObserver) PresenterOption {
	return func(pr *Presenter) { pr.observe = fn }
}

func NewPresenter(mute *Mute, log *zap.Logger, opts ...PresenterOption) *Presenter {
	if mute == nil {
		mute = &Mute{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Presenter{
		mute:   mute,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current state.
func (p *Presenter) State() PresentationState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Current returns a copy of the displayed alert, or nil when Idle.
func (p *Presenter) Current() *Alert {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	a := *p.current
	return &a
}

// Present escalates an alert. It returns false without any effect while
// muted. A second call while Presenting replaces the displayed alert and
// restarts the siren.
func (p *Presenter) Present(a Alert) bool {
	if p.mute.Muted() {
		p.log.Debug("alert suppressed by mute", zap.String("alert_id", a.ID.String()))
		return false
	}

	p.transition.Lock()
	defer p.transition.Unlock()

	p.mu.Lock()
	replaced := p.current != nil
	if p.player != nil {
		if replaced {
			p.player.Stop()
		}
		if err := p.player.Play(); err != nil {
			p.log.Warn("siren unavailable, alert is visual only",
				zap.String("alert_id", a.ID.String()), zap.Error(err))
			a.Silent = true
		}
	} else {
		a.Silent = true
	}
	p.current = &a
	p.state = Presenting
	snapshot := a
	p.mu.Unlock()

	p.log.Info("alert presented",
		zap.String("alert_id", a.ID.String()),
		zap.String("kind", string(a.Kind)),
		zap.Bool("replaced", replaced),
	)
	p.notify(Presenting, &snapshot)
	return true
}

// Respond closes the alert and, in the background, marks the emergency as
// being handled. An empty id means the displayed alert's ID. The dialog is
// closed and the siren stopped whether or not the downstream call succeeds.
func (p *Presenter) Respond(id ID) error {
	p.transition.Lock()
	defer p.transition.Unlock()

	a, err := p.clear()
	if err != nil {
		return err
	}
	if id == "" {
		id = a.ID
	}

	p.log.Info("operator responding", zap.String("alert_id", id.String()))
	p.notify(Idle, nil)

	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		p.markHandled(id)
	}()
	return nil
}

// Dismiss silences and closes the alert locally without notifying the
// backend.
func (p *Presenter) Dismiss() error {
	p.transition.Lock()
	defer p.transition.Unlock()

	a, err := p.clear()
	if err != nil {
		return err
	}
	p.log.Info("alert dismissed", zap.String("alert_id", a.ID.String()))
	p.notify(Idle, nil)
	return nil
}

// Close stops the siren, cancels in-flight respond calls and waits for them.
func (p *Presenter) Close() {
	p.mu.Lock()
	if p.player != nil {
		p.player.Stop()
	}
	p.current = nil
	p.state = Idle
	p.mu.Unlock()

	p.cancel()
	p.pending.Wait()
}

func (p *Presenter) clear() (Alert, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Presenting || p.current == nil {
		return Alert{}, ErrNoActiveAlert
	}
	if p.player != nil {
		p.player.Stop()
	}
	a := *p.current
	p.current = nil
	p.state = Idle
	return a, nil
}

func (p *Presenter) markHandled(id ID) {
	if p.responder != nil {
		ctx, cancel := context.WithTimeout(p.ctx, respondTimeout)
		err := p.responder.MarkHandled(ctx, id)
		cancel()
		if err != nil {
			p.log.Warn("mark handled failed", zap.String("alert_id", id.String()), zap.Error(err))
		}
	}
	if p.stale != nil {
		p.stale.Invalidate(CollectionEmergencies, CollectionDashboardStats)
	}
}

func (p *Presenter) notify(state PresentationState, a *Alert) {
	if p.observe != nil {
		p.observe(state, a)
	}
}
