// Package mock feeds the relay with simulated handset traffic so the console
// has something to show without real devices.
package mock

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Ghoster04/AntCrime/internal/config"
	"github.com/Ghoster04/AntCrime/internal/emulator"
	"github.com/Ghoster04/AntCrime/internal/relay"
)

// Target accepts decoded device frames. *relay.Relay satisfies it.
type Target interface {
	IngestFrame(ctx context.Context, f relay.DeviceFrame) error
}

type mockDevice struct {
	device  *emulator.Device
	pattern string
	// sosEvery is the tick period of SOS frames; 0 never raises one.
	sosEvery int
}

type Generator struct {
	target   Target
	interval time.Duration
	log      *zap.Logger
	devices  []*mockDevice

	now func() time.Time
}

func NewGenerator(target Target, interval time.Duration, log *zap.Logger) *Generator {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Generator{
		target:   target,
		interval: interval,
		log:      log,
		devices:  defaultDevices(),
		now:      time.Now,
	}
}

func defaultDevices() []*mockDevice {
	handset := func(imei, brand, model, os string, lat, lng float64, battery int) config.EmulatorConfig {
		return config.EmulatorConfig{
			IMEI: imei, Brand: brand, Model: model, OS: os, AppVer: "1.0.0",
			Latitude: lat, Longitude: lng, Battery: battery,
		}
	}
	return []*mockDevice{
		{
			device:  emulator.NewDevice(handset("281572518459116", "Oppo", "A54", "Android 11", -25.9692, 32.5732, 64), 1),
			pattern: "stolen", sosEvery: 12,
		},
		{
			device:  emulator.NewDevice(handset("356938035643809", "Samsung", "Galaxy A12", "Android 12", -25.9655, 32.5892, 85), 2),
			pattern: "routine",
		},
		{
			device:  emulator.NewDevice(handset("490154203237518", "Tecno", "Spark 10", "Android 13", -25.9531, 32.6011, 47), 3),
			pattern: "routine",
		},
		{
			device:  emulator.NewDevice(handset("013977000272744", "Apple", "iPhone 11", "iOS 17", -25.9248, 32.5702, 92), 4),
			pattern: "quiet",
		},
	}
}

// Start runs the generator on its own goroutine until ctx is done.
func (g *Generator) Start(ctx context.Context) {
	go g.run(ctx)
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			g.Tick(ctx, tick)
		}
	}
}

// Tick emits the frames due at the given tick number.
func (g *Generator) Tick(ctx context.Context, tick int) {
	for _, md := range g.devices {
		for _, f := range g.advance(md, tick) {
			if err := g.target.IngestFrame(ctx, f); err != nil {
				g.log.Warn("mock frame rejected",
					zap.String("type", string(f.Type)), zap.String("imei", f.IMEI), zap.Error(err))
			}
		}
	}
}

func (g *Generator) advance(md *mockDevice, tick int) []relay.DeviceFrame {
	now := g.now()
	switch md.pattern {
	case "stolen":
		frames := []relay.DeviceFrame{md.device.StolenPing(now)}
		if md.sosEvery > 0 && tick%md.sosEvery == 0 {
			frames = append(frames, md.device.SOS(now))
		}
		return frames
	case "routine":
		f := md.device.Ping(now)
		f.Status = "ativo"
		return []relay.DeviceFrame{f}
	case "quiet":
		// Checks in every fourth tick.
		if tick%4 != 0 {
			return nil
		}
		f := md.device.Ping(now)
		f.Status = "ativo"
		return []relay.DeviceFrame{f}
	}
	return nil
}
