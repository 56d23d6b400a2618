package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrSessionStarted is returned by a second Start.
var ErrSessionStarted = errors.New("realtime: session already started")

// Observer receives pipeline notifications. Every callback is optional.
// OnEvent runs on the dispatcher goroutine, in frame order; OnStatus on the
// supervisor goroutine; OnAlert and OnMuted on whichever goroutine caused
// the change.
type Observer struct {
	OnStatus func(Status)
	OnEvent  func(Event)
	OnAlert  PresentationObserver
	OnMuted  func(bool)
}

// Options wires a Session.
type Options struct {
	Dialer         Dialer
	Policy         DelayPolicy
	ConnectTimeout time.Duration
	QueueSize      int

	Invalidator Invalidator
	Player      Player
	Responder   Responder
	Observer    Observer
	Logger      *zap.Logger
}

// Session is the one realtime pipeline of a running console. It owns the
// supervisor, the dispatcher, the mute flag and the presenter; create it
// with NewSession, Start it once and Close it once.
type Session struct {
	mute       *Mute
	presenter  *Presenter
	router     *Router
	supervisor *Supervisor
	frames     chan []byte
	log        *zap.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewSession(opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}

	mute := &Mute{onMuted: opts.Observer.OnMuted}

	presenterOpts := []PresenterOption{
		WithResponder(opts.Responder),
		WithRespondInvalidator(opts.Invalidator),
		WithPresentationObserver(opts.Observer.OnAlert),
	}
	if opts.Player != nil {
		presenterOpts = append(presenterOpts, WithPlayer(opts.Player))
	}
	presenter := NewPresenter(mute, log.Named("presenter"), presenterOpts...)

	router := NewRouter(NewBridge(opts.Invalidator), presenter, log.Named("router"))
	router.OnEvent(opts.Observer.OnEvent)

	frames := make(chan []byte, opts.QueueSize)
	supervisor := NewSupervisor(SupervisorConfig{
		Dialer:         opts.Dialer,
		Policy:         opts.Policy,
		ConnectTimeout: opts.ConnectTimeout,
		Frames:         frames,
		OnStatus:       opts.Observer.OnStatus,
		Logger:         log.Named("supervisor"),
	})

	return &Session{
		mute:       mute,
		presenter:  presenter,
		router:     router,
		supervisor: supervisor,
		frames:     frames,
		log:        log,
	}
}

// Start launches the supervisor and the dispatcher.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrSessionStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if err := s.supervisor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("supervisor stopped", zap.Error(err))
		}
	}()
	go func() {
		defer s.wg.Done()
		s.router.Run(ctx, s.frames)
	}()
	return nil
}

// Close tears down the connection and the dispatcher, stops the siren and
// waits for background work. Frames not yet dispatched are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
	s.presenter.Close()
}

func (s *Session) Status() Status                  { return s.supervisor.Status() }
func (s *Session) Muted() bool                     { return s.mute.Muted() }
func (s *Session) SetMuted(v bool)                 { s.mute.Set(v) }
func (s *Session) ToggleMute() bool                { return s.mute.Toggle() }
func (s *Session) Presentation() PresentationState { return s.presenter.State() }
func (s *Session) CurrentAlert() *Alert            { return s.presenter.Current() }

// Respond acknowledges the displayed alert and marks it handled downstream.
func (s *Session) Respond(id ID) error { return s.presenter.Respond(id) }

// Dismiss silences the displayed alert without notifying the backend.
func (s *Session) Dismiss() error { return s.presenter.Dismiss() }

// Send writes an outbound JSON frame on the live connection.
func (s *Session) Send(v any) error { return s.supervisor.Send(v) }
