package emulator

import (
	"math/rand/v2"
	"time"

	"github.com/Ghoster04/AntCrime/internal/config"
	"github.com/Ghoster04/AntCrime/internal/realtime"
	"github.com/Ghoster04/AntCrime/internal/relay"
)

const (
	// walkStep is the largest per-tick move in degrees, about 100m.
	walkStep = 0.001
	// Reported GPS accuracy range in metres.
	minAccuracy = 5
	maxAccuracy = 25

	sosMessage = "SOS - Dispositivo roubado localizado!"
)

// Device is a simulated handset drifting around its start position while
// its battery runs down.
type Device struct {
	cfg       config.EmulatorConfig
	rng       *rand.Rand
	latitude  float64
	longitude float64
	battery   int
}

// NewDevice places a handset at the configured coordinates. The seed makes
// the walk reproducible.
func NewDevice(cfg config.EmulatorConfig, seed uint64) *Device {
	battery := cfg.Battery
	if battery <= 0 || battery > 100 {
		battery = 100
	}
	return &Device{
		cfg:       cfg,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		latitude:  cfg.Latitude,
		longitude: cfg.Longitude,
		battery:   battery,
	}
}

func (d *Device) IMEI() string { return d.cfg.IMEI }

// Position returns the current coordinates.
func (d *Device) Position() (lat, lng float64) { return d.latitude, d.longitude }

func (d *Device) Battery() int { return d.battery }

// step moves the handset and drains up to one point of battery. The level
// never drops below 1.
func (d *Device) step() {
	d.latitude += (d.rng.Float64() - 0.5) * walkStep
	d.longitude += (d.rng.Float64() - 0.5) * walkStep
	d.battery = max(1, d.battery-d.rng.IntN(2))
}

func (d *Device) accuracy() int {
	return minAccuracy + d.rng.IntN(maxAccuracy-minAccuracy)
}

// StolenPing advances the walk and reports the new position as a stolen
// handset.
func (d *Device) StolenPing(now time.Time) relay.DeviceFrame {
	d.step()
	f := d.frame(realtime.TypeStolenDevicePing, now)
	f.Status = "roubado"
	return f
}

// Ping advances the walk and reports a routine location update.
func (d *Device) Ping(now time.Time) relay.DeviceFrame {
	d.step()
	return d.frame(realtime.TypeDevicePing, now)
}

// SOS reports an emergency at the current position without moving.
func (d *Device) SOS(now time.Time) relay.DeviceFrame {
	f := d.frame(realtime.TypeDeviceSOS, now)
	f.EmergencyType = "dispositivo_roubado"
	f.Message = sosMessage
	return f
}

func (d *Device) frame(t realtime.EventType, now time.Time) relay.DeviceFrame {
	battery, accuracy := d.battery, d.accuracy()
	return relay.DeviceFrame{
		Type:               t,
		IMEI:               d.cfg.IMEI,
		Marca:              d.cfg.Brand,
		Modelo:             d.cfg.Model,
		SistemaOperacional: d.cfg.OS,
		VersaoApp:          d.cfg.AppVer,
		Latitude:           d.latitude,
		Longitude:          d.longitude,
		Bateria:            &battery,
		Precisao:           &accuracy,
		Timestamp:          now.UTC().Format(time.RFC3339),
	}
}
