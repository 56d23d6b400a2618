package mock

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Ghoster04/AntCrime/internal/client"
	"github.com/Ghoster04/AntCrime/internal/realtime"
	"github.com/Ghoster04/AntCrime/internal/relay"
	"github.com/Ghoster04/AntCrime/internal/store"
)

type recorder struct {
	mu     sync.Mutex
	frames []relay.DeviceFrame
}

func (r *recorder) IngestFrame(_ context.Context, f relay.DeviceFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	return nil
}

func (r *recorder) count(t realtime.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.frames {
		if f.Type == t {
			n++
		}
	}
	return n
}

func TestTickFramesPerPattern(t *testing.T) {
	rec := &recorder{}
	gen := NewGenerator(rec, time.Hour, zap.NewNop())

	gen.Tick(context.Background(), 1)

	if got := rec.count(realtime.TypeStolenDevicePing); got != 1 {
		t.Errorf("stolen pings on tick 1 = %d, want 1", got)
	}
	if got := rec.count(realtime.TypeDevicePing); got != 2 {
		t.Errorf("routine pings on tick 1 = %d, want 2 (quiet device skipped)", got)
	}
	if got := rec.count(realtime.TypeDeviceSOS); got != 0 {
		t.Errorf("sos on tick 1 = %d, want 0", got)
	}
}

func TestSOSPeriod(t *testing.T) {
	rec := &recorder{}
	gen := NewGenerator(rec, time.Hour, zap.NewNop())

	for tick := 1; tick <= 24; tick++ {
		gen.Tick(context.Background(), tick)
	}

	if got := rec.count(realtime.TypeDeviceSOS); got != 2 {
		t.Errorf("sos frames over 24 ticks = %d, want 2", got)
	}
	if got := rec.count(realtime.TypeStolenDevicePing); got != 24 {
		t.Errorf("stolen pings over 24 ticks = %d, want 24", got)
	}
	// Two routine devices every tick plus the quiet one every fourth.
	if got := rec.count(realtime.TypeDevicePing); got != 2*24+6 {
		t.Errorf("routine pings over 24 ticks = %d, want %d", got, 2*24+6)
	}
}

func TestRoutineFramesAreActive(t *testing.T) {
	rec := &recorder{}
	gen := NewGenerator(rec, time.Hour, zap.NewNop())
	gen.Tick(context.Background(), 4)

	for _, f := range rec.frames {
		if f.Type == realtime.TypeDevicePing && f.Status != "ativo" {
			t.Errorf("device_ping for %s has status %q", f.IMEI, f.Status)
		}
		if f.IMEI == "" || f.Bateria == nil {
			t.Errorf("incomplete frame: %+v", f)
		}
	}
}

func TestStartRunsUntilCanceled(t *testing.T) {
	rec := &recorder{}
	gen := NewGenerator(rec, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	gen.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for rec.count(realtime.TypeStolenDevicePing) < 3 {
		if time.Now().After(deadline) {
			t.Fatal("generator produced no traffic")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
}

func TestGeneratorFeedsRelay(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	hub := relay.NewHub(zap.NewNop())
	defer hub.Close()
	gen := NewGenerator(relay.New(st, hub, zap.NewNop()), time.Hour, zap.NewNop())

	for tick := 1; tick <= 12; tick++ {
		gen.Tick(ctx, tick)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.DispositivosRoubados != 1 {
		t.Errorf("stolen devices = %d, want 1", stats.DispositivosRoubados)
	}
	if stats.EmergenciasAtivas != 1 {
		t.Errorf("active emergencies = %d, want 1", stats.EmergenciasAtivas)
	}

	devices, err := st.Devices(ctx, client.DefaultPage)
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 4 {
		t.Errorf("devices = %d, want 4", len(devices))
	}
}
