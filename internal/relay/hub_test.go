package relay

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Ghoster04/AntCrime/internal/realtime"
)

// stuckClient registers a client whose queue is already full and that has
// no write pump draining it.
func stuckClient(h *Hub) *hubClient {
	c := &hubClient{id: "stuck", hub: h, send: make(chan []byte, 1)}
	c.send <- []byte("pending")
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func TestBroadcastDropsSlowClient(t *testing.T) {
	h := NewHub(zap.NewNop())
	stuckClient(h)
	before := testutil.ToFloat64(droppedClients)

	err := h.Broadcast(realtime.TypeDevicePing, map[string]string{"type": "device_ping"})
	assert.NoError(t, err)
	assert.Equal(t, 0, h.ClientCount(), "slow client should be disconnected")
	assert.Equal(t, 1.0, testutil.ToFloat64(droppedClients)-before)
}

func TestBroadcastQueuesForEveryClient(t *testing.T) {
	h := NewHub(zap.NewNop())
	var clients []*hubClient
	for i := 0; i < 3; i++ {
		c := &hubClient{hub: h, send: make(chan []byte, 4)}
		h.clients[c] = struct{}{}
		clients = append(clients, c)
	}

	assert.NoError(t, h.Broadcast(realtime.TypeEmergencyCreated, map[string]string{"type": "emergency_created"}))
	for _, c := range clients {
		select {
		case msg := <-c.send:
			assert.JSONEq(t, `{"type":"emergency_created"}`, string(msg))
		default:
			t.Fatal("client did not receive the broadcast")
		}
	}
}

func TestBroadcastMarshalError(t *testing.T) {
	h := NewHub(zap.NewNop())
	assert.Error(t, h.Broadcast(realtime.TypeDevicePing, make(chan int)))
}

func TestRemoveIsIdempotent(t *testing.T) {
	h := NewHub(zap.NewNop())
	c := &hubClient{hub: h, send: make(chan []byte, 1)}
	h.clients[c] = struct{}{}

	h.Remove(c)
	h.Remove(c)
	assert.Equal(t, 0, h.ClientCount())

	_, open := <-c.send
	assert.False(t, open, "queue should be closed")
}
