// Package audio plays the looping emergency siren.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ghoster04/AntCrime/internal/config"
)

// ErrDisabled is returned by Play when audio is switched off in the config.
var ErrDisabled = errors.New("audio: siren disabled")

// VolumePlaceholder in a command argument is replaced by the volume (0..1).
const VolumePlaceholder = "{volume}"

// retryPause keeps a failing command from spinning.
const retryPause = time.Second

// Siren loops a player command, or rings the terminal bell when no command
// is configured. It implements realtime.Player.
type Siren struct {
	enabled bool
	command []string
	volume  float64
	bell    time.Duration
	out     io.Writer
	log     *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSiren(cfg config.AudioConfig, log *zap.Logger) *Siren {
	if log == nil {
		log = zap.NewNop()
	}
	bell := cfg.BellInterval
	if bell <= 0 {
		bell = 1500 * time.Millisecond
	}
	return &Siren{
		enabled: cfg.Enabled,
		command: cfg.Command,
		volume:  cfg.Volume,
		bell:    bell,
		out:     os.Stdout,
		log:     log,
	}
}

// Play starts the loop. It fails when the player binary cannot be found;
// calling it while already playing is a no-op.
func (s *Siren) Play() error {
	if !s.enabled {
		return ErrDisabled
	}

	var path string
	if len(s.command) > 0 {
		p, err := exec.LookPath(s.command[0])
		if err != nil {
			return fmt.Errorf("audio: %w", err)
		}
		path = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go func() {
		defer close(done)
		if path == "" {
			s.ringBell(ctx)
			return
		}
		s.loopCommand(ctx, path)
	}()
	return nil
}

// Stop silences the siren and waits for the loop to exit. Safe to call at
// any time.
func (s *Siren) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Playing reports whether the loop is running.
func (s *Siren) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Siren) loopCommand(ctx context.Context, path string) {
	args := s.args()
	for ctx.Err() == nil {
		cmd := exec.CommandContext(ctx, path, args...)
		if err := cmd.Run(); err != nil && ctx.Err() == nil {
			s.log.Warn("siren command failed", zap.String("command", path), zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(retryPause):
			}
		}
	}
}

func (s *Siren) ringBell(ctx context.Context) {
	ticker := time.NewTicker(s.bell)
	defer ticker.Stop()
	for {
		io.WriteString(s.out, "\a")
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Siren) args() []string {
	vol := strconv.FormatFloat(s.volume, 'f', 2, 64)
	out := make([]string, 0, len(s.command)-1)
	for _, a := range s.command[1:] {
		out = append(out, strings.ReplaceAll(a, VolumePlaceholder, vol))
	}
	return out
}
