package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routerFixture struct {
	router    *Router
	presenter *Presenter
	mute      *Mute
	player    *fakePlayer
	responder *fakeResponder
	stale     *staleSet
	events    []Event
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		mute:      &Mute{},
		player:    &fakePlayer{},
		responder: newFakeResponder(),
		stale:     &staleSet{},
	}
	f.presenter = NewPresenter(f.mute, nil, WithPlayer(f.player), WithResponder(f.responder))
	t.Cleanup(f.presenter.Close)
	f.router = NewRouter(NewBridge(f.stale), f.presenter, nil)
	f.router.now = func() time.Time { return time.UnixMilli(1700000000000) }
	f.router.OnEvent(func(ev Event) { f.events = append(f.events, ev) })
	return f
}

func TestRouterDevicePing(t *testing.T) {
	f := newRouterFixture(t)

	f.router.Handle([]byte(`{"type":"device_ping","device_id":3}`))

	assert.Equal(t, sorted([]Collection{CollectionDevices, CollectionDashboardStats, CollectionStolenPings}), f.stale.Keys())
	assert.Equal(t, Idle, f.presenter.State())
	assert.Zero(t, f.player.Plays())
	require.Len(t, f.events, 1)
	assert.Equal(t, TypeDevicePing, f.events[0].Type())
}

func TestRouterDropsNonJSON(t *testing.T) {
	f := newRouterFixture(t)

	f.router.Handle([]byte("not json"))

	assert.Zero(t, f.stale.Calls())
	assert.Equal(t, Idle, f.presenter.State())
	assert.Empty(t, f.events)
}

func TestRouterDropsUnknownType(t *testing.T) {
	f := newRouterFixture(t)

	f.router.Handle([]byte(`{"type":"chat_message"}`))
	f.router.Handle([]byte(`{"no_type":true}`))

	assert.Zero(t, f.stale.Calls())
	assert.Empty(t, f.events)
}

func TestRouterPresentsEmergency(t *testing.T) {
	f := newRouterFixture(t)

	f.router.Handle([]byte(`{"type":"emergency_created","emergency":{"id":12,"tipo":"assalto","usuario_id":4,"nivel_bateria":55,"localizacao":{"latitude":-25.96921,"longitude":32.57322},"prioridade":"alta"}}`))

	assert.Equal(t, []Collection{CollectionEmergencies}, f.stale.Keys())
	require.Equal(t, Presenting, f.presenter.State())
	a := f.presenter.Current()
	assert.Equal(t, ID("12"), a.ID)
	assert.Equal(t, AlertEmergency, a.Kind)
	assert.Equal(t, "Assalto", a.TypeLabel)
	assert.Equal(t, "4", a.UserRef)
	assert.Equal(t, "55", a.Battery)
	assert.Equal(t, Placeholder, a.DeviceBrand)
	assert.Equal(t, "-25.9692, 32.5732", a.LocationText())
	assert.True(t, f.player.Playing())
}

func TestRouterPresentsStolenDevice(t *testing.T) {
	f := newRouterFixture(t)

	f.router.Handle([]byte(`{"type":"stolen_device_located","device_id":9,"imei":"356938035643809","device_info":"Samsung Galaxy A12","bateria":40,"latitude":1,"longitude":2,"message":"Dispositivo roubado localizado"}`))

	assert.Equal(t, sorted([]Collection{CollectionDevices, CollectionStolenPings}), f.stale.Keys())
	a := f.presenter.Current()
	require.NotNil(t, a)
	assert.Equal(t, ID("STOLEN-9-1700000000000"), a.ID)
	assert.Equal(t, "Samsung", a.DeviceBrand)
	assert.Equal(t, "Galaxy A12", a.DeviceModel)
	assert.Equal(t, "alta", a.Priority)
	assert.Equal(t, "🚨 Dispositivo roubado localizado - IMEI: 356938035643809", a.Description)
}

func TestRouterMutedStolenDevice(t *testing.T) {
	f := newRouterFixture(t)
	f.mute.Set(true)

	f.router.Handle([]byte(`{"type":"stolen_device_located","device_id":9}`))

	assert.Equal(t, sorted([]Collection{CollectionDevices, CollectionStolenPings}), f.stale.Keys())
	assert.Equal(t, Idle, f.presenter.State())
	assert.Zero(t, f.player.Plays())
	assert.Len(t, f.events, 1)
}

func TestRouterMutedEmergencyStillInvalidates(t *testing.T) {
	f := newRouterFixture(t)
	f.mute.Set(true)

	f.router.Handle([]byte(`{"type":"emergency_created","emergency":{"id":1}}`))

	assert.Equal(t, []Collection{CollectionEmergencies}, f.stale.Keys())
	assert.Equal(t, Idle, f.presenter.State())
}

func TestRouterLastEmergencyWins(t *testing.T) {
	f := newRouterFixture(t)

	f.router.Handle([]byte(`{"type":"emergency_created","emergency":{"id":1}}`))
	f.router.Handle([]byte(`{"type":"emergency_created","emergency":{"id":2}}`))

	assert.Equal(t, ID("2"), f.presenter.Current().ID)
	assert.True(t, f.player.Playing())
}

func TestRouterRunPreservesOrder(t *testing.T) {
	f := newRouterFixture(t)
	frames := make(chan []byte, 4)
	frames <- []byte(`{"type":"user_created","user_id":1}`)
	frames <- []byte(`{"type":"device_created","device_id":2}`)
	frames <- []byte(`{"type":"emergency_response","emergency":{"id":3}}`)
	close(frames)

	f.router.Run(context.Background(), frames)

	require.Len(t, f.events, 3)
	assert.Equal(t, TypeUserCreated, f.events[0].Type())
	assert.Equal(t, TypeDeviceCreated, f.events[1].Type())
	assert.Equal(t, TypeEmergencyResponse, f.events[2].Type())
}

func TestRouterRunStopsOnCancel(t *testing.T) {
	f := newRouterFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		f.router.Run(ctx, make(chan []byte))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
