// Package emulator simulates a stolen handset reporting its position to the
// relay over the same reconnecting socket the console uses.
package emulator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ghoster04/AntCrime/internal/config"
	"github.com/Ghoster04/AntCrime/internal/realtime"
)

type Options struct {
	Dialer realtime.Dialer
	Policy realtime.DelayPolicy
	// SOS sends one device_sos frame after the first ping that goes out.
	SOS    bool
	Logger *zap.Logger
}

// Emulator drives one Device.
type Emulator struct {
	id         string
	device     *Device
	interval   time.Duration
	supervisor *realtime.Supervisor
	frames     chan []byte
	opened     chan struct{}
	sosPending bool
	log        *zap.Logger

	now func() time.Time
}

func New(cfg config.EmulatorConfig, opts Options) *Emulator {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	id := uuid.New()
	e := &Emulator{
		id:         id.String(),
		device:     NewDevice(cfg, uint64(id.ID())),
		interval:   interval,
		frames:     make(chan []byte, 16),
		opened:     make(chan struct{}, 1),
		sosPending: opts.SOS,
		now:        time.Now,
	}
	e.log = log.With(zap.String("emulator_id", e.id), zap.String("imei", cfg.IMEI))
	e.supervisor = realtime.NewSupervisor(realtime.SupervisorConfig{
		Dialer:   opts.Dialer,
		Policy:   opts.Policy,
		Frames:   e.frames,
		OnStatus: e.onStatus,
		Logger:   e.log.Named("supervisor"),
	})
	return e
}

func (e *Emulator) Device() *Device { return e.device }

func (e *Emulator) onStatus(st realtime.Status) {
	if st != realtime.StatusOpen {
		return
	}
	select {
	case e.opened <- struct{}{}:
	default:
	}
}

// Run reports the device until ctx is done. A ping goes out as soon as a
// connection opens and then every interval; pings due while disconnected
// are skipped.
func (e *Emulator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.supervisor.Run(ctx) }()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-done
			return nil
		case err := <-done:
			return err
		case frame := <-e.frames:
			// Relay broadcasts come back to every socket; the handset ignores them.
			e.log.Debug("ignoring relay notification", zap.Int("bytes", len(frame)))
		case <-e.opened:
			e.report()
		case <-ticker.C:
			e.report()
		}
	}
}

func (e *Emulator) report() {
	ping := e.device.StolenPing(e.now())
	if err := e.supervisor.Send(ping); err != nil {
		if errors.Is(err, realtime.ErrNotConnected) {
			e.log.Debug("ping skipped, not connected")
		} else {
			e.log.Warn("ping failed", zap.Error(err))
		}
		return
	}
	e.log.Info("ping sent",
		zap.Float64("latitude", ping.Latitude),
		zap.Float64("longitude", ping.Longitude),
		zap.Int("battery", *ping.Bateria))

	if !e.sosPending {
		return
	}
	if err := e.supervisor.Send(e.device.SOS(e.now())); err != nil {
		e.log.Warn("sos failed, will retry", zap.Error(err))
		return
	}
	e.sosPending = false
	e.log.Info("sos sent")
}
