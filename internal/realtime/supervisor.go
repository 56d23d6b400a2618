package realtime

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotConnected is returned by Send while no connection is open.
	ErrNotConnected = errors.New("realtime: not connected")
	// ErrSupervisorRunning is returned by a second concurrent Run.
	ErrSupervisorRunning = errors.New("realtime: supervisor already running")
)

// Status is the session connection status.
type Status int32

const (
	StatusClosed Status = iota
	StatusConnecting
	StatusOpen
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	default:
		return "closed"
	}
}

// Conn is one live connection. ReadMessage blocks until a frame arrives or
// the connection fails; Close unblocks it.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Dialer opens connections. The context carries the connect timeout.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context) (Conn, error) { return f(ctx) }

// DelayPolicy decides how long to wait before reconnect attempt n
// (1-based, reset after every successful open).
type DelayPolicy interface {
	Delay(attempt int) time.Duration
}

// ConstantDelay waits the same duration before every attempt.
type ConstantDelay time.Duration

func (d ConstantDelay) Delay(int) time.Duration { return time.Duration(d) }

// ExponentialBackoff doubles the delay per attempt up to Max, with
// +/- Jitter (fraction of the delay) randomization.
type ExponentialBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	if b.Jitter > 0 {
		spread := float64(d) * b.Jitter
		d += time.Duration((rand.Float64()*2 - 1) * spread)
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Supervisor owns the connection: it is the only code that creates or
// replaces it. It cycles Connecting -> Open -> Closed -> (delay) ->
// Connecting until its context ends, pushing every received frame to the
// frames channel in order.
type Supervisor struct {
	dialer         Dialer
	policy         DelayPolicy
	connectTimeout time.Duration
	frames         chan<- []byte
	onStatus       func(Status)
	log            *zap.Logger

	running atomic.Bool
	status  atomic.Int32

	mu   sync.Mutex
	conn Conn

	// after is replaced in tests to observe and shortcut reconnect delays.
	after func(time.Duration) <-chan time.Time
}

// SupervisorConfig holds the Supervisor's collaborators.
type SupervisorConfig struct {
	Dialer         Dialer
	Policy         DelayPolicy
	ConnectTimeout time.Duration
	Frames         chan<- []byte
	OnStatus       func(Status)
	Logger         *zap.Logger
}

func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.Policy == nil {
		cfg.Policy = ConstantDelay(2 * time.Second)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Supervisor{
		dialer:         cfg.Dialer,
		policy:         cfg.Policy,
		connectTimeout: cfg.ConnectTimeout,
		frames:         cfg.Frames,
		onStatus:       cfg.OnStatus,
		log:            cfg.Logger,
		after:          time.After,
	}
}

// Status returns the current connection status.
func (s *Supervisor) Status() Status {
	return Status(s.status.Load())
}

// Run supervises the connection until ctx is done. It returns ctx.Err() on
// shutdown, or ErrSupervisorRunning if another Run is active.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSupervisorRunning
	}
	defer s.running.Store(false)

	attempt := 0
	for {
		s.setStatus(StatusConnecting)
		conn, err := s.dial(ctx)
		if err == nil {
			attempt = 0
			s.setConn(conn)
			s.setStatus(StatusOpen)
			s.log.Info("websocket connected")
			err = s.readLoop(ctx, conn)
			s.setConn(nil)
			conn.Close()
		}

		s.setStatus(StatusClosed)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempt++
		delay := s.policy.Delay(attempt)
		s.log.Info("websocket closed, reconnect scheduled",
			zap.Error(err), zap.Int("attempt", attempt), zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.after(delay):
		}
	}
}

// Send writes v as a JSON frame on the open connection.
func (s *Supervisor) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	return s.conn.WriteJSON(v)
}

func (s *Supervisor) dial(ctx context.Context) (Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()
	return s.dialer.Dial(dctx)
}

func (s *Supervisor) readLoop(ctx context.Context, conn Conn) error {
	// Closing the connection is the only way to unblock ReadMessage.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		select {
		case s.frames <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Supervisor) setConn(c Conn) {
	s.mu.Lock()
	s.conn = c
	s.mu.Unlock()
}

func (s *Supervisor) setStatus(st Status) {
	if Status(s.status.Swap(int32(st))) == st {
		return
	}
	if s.onStatus != nil {
		s.onStatus(st)
	}
}
