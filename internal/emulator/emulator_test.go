package emulator

import (
	"context"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ghoster04/AntCrime/internal/client"
	"github.com/Ghoster04/AntCrime/internal/config"
	"github.com/Ghoster04/AntCrime/internal/realtime"
	"github.com/Ghoster04/AntCrime/internal/relay"
	"github.com/Ghoster04/AntCrime/internal/store"
)

func testConfig() config.EmulatorConfig {
	cfg := config.Default().Emulator
	cfg.IMEI = "281572518459116"
	cfg.Battery = 3
	return cfg
}

func TestDeviceWalk(t *testing.T) {
	cfg := testConfig()
	d := NewDevice(cfg, 42)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	prevLat, prevLng := d.Position()
	for i := 0; i < 200; i++ {
		f := d.StolenPing(now)
		assert.Equal(t, realtime.TypeStolenDevicePing, f.Type)
		assert.Equal(t, "roubado", f.Status)
		assert.LessOrEqual(t, math.Abs(f.Latitude-prevLat), walkStep/2)
		assert.LessOrEqual(t, math.Abs(f.Longitude-prevLng), walkStep/2)
		require.NotNil(t, f.Precisao)
		assert.GreaterOrEqual(t, *f.Precisao, minAccuracy)
		assert.Less(t, *f.Precisao, maxAccuracy)
		assert.GreaterOrEqual(t, *f.Bateria, 1, "battery never runs out")
		prevLat, prevLng = f.Latitude, f.Longitude
	}
	assert.Equal(t, 1, d.Battery())
}

func TestDeviceWalkIsSeeded(t *testing.T) {
	now := time.Now()
	a, b := NewDevice(testConfig(), 7), NewDevice(testConfig(), 7)
	for i := 0; i < 5; i++ {
		assert.Equal(t, a.StolenPing(now), b.StolenPing(now))
	}
}

func TestDeviceSOS(t *testing.T) {
	d := NewDevice(testConfig(), 1)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	lat, lng := d.Position()

	f := d.SOS(now)
	assert.Equal(t, realtime.TypeDeviceSOS, f.Type)
	assert.Equal(t, "dispositivo_roubado", f.EmergencyType)
	assert.Equal(t, sosMessage, f.Message)
	assert.Equal(t, "2026-03-01T10:00:00Z", f.Timestamp)
	assert.Equal(t, lat, f.Latitude, "sos does not move the device")
	assert.Equal(t, lng, f.Longitude)
}

func TestBatteryDefaultsToFull(t *testing.T) {
	cfg := testConfig()
	cfg.Battery = 0
	assert.Equal(t, 100, NewDevice(cfg, 1).Battery())
}

func TestEmulatorReportsToRelay(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer st.Close()

	hub := relay.NewHub(zap.NewNop())
	defer hub.Close()
	srv := httptest.NewServer(relay.NewServer(relay.New(st, hub, zap.NewNop()), relay.ServerOptions{}).Handler())
	defer srv.Close()

	cfg := testConfig()
	cfg.Interval = 20 * time.Millisecond
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	emu := New(cfg, Options{
		Dialer: client.NewWSDialer(wsURL, "", zap.NewNop()),
		Policy: realtime.ConstantDelay(10 * time.Millisecond),
		SOS:    true,
	})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- emu.Run(runCtx) }()

	require.Eventually(t, func() bool {
		pings, err := st.StolenPings(ctx, client.DefaultPage)
		return err == nil && len(pings) >= 2
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("emulator did not stop")
	}

	es, err := st.Emergencies(ctx, client.DefaultPage)
	require.NoError(t, err)
	assert.Len(t, es, 1, "exactly one sos")

	dev, err := st.DeviceByIMEI(ctx, cfg.IMEI)
	require.NoError(t, err)
	assert.Equal(t, store.DeviceStolen, dev.Status)
	assert.Equal(t, cfg.Brand, dev.Marca)
}
