package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestWSDialerRoundTrip(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"device_ping"}`))
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- string(data)
		}
		conn.ReadMessage()
	}))
	defer srv.Close()

	d := NewWSDialer(wsURL(srv), "tok", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := d.Dial(ctx)
	require.NoError(t, err)
	defer conn.Close()

	frame, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"device_ping"}`, string(frame))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "device_sos"}))
	select {
	case got := <-received:
		assert.JSONEq(t, `{"type":"device_sos"}`, got)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive frame")
	}
}

func TestWSConnCloseUnblocksRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	conn, err := NewWSDialer(wsURL(srv), "", nil).Dial(context.Background())
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := conn.ReadMessage()
		errc <- err
	}()

	conn.Close()
	assert.NotPanics(t, func() { conn.Close() })
	select {
	case err := <-errc:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ReadMessage did not return after Close")
	}
}

func TestWSDialerRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewWSDialer(wsURL(srv), "bad", nil).Dial(context.Background())
	assert.Error(t, err)
}

func TestWSConnPings(t *testing.T) {
	pinged := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetPingHandler(func(string) error {
			select {
			case pinged <- struct{}{}:
			default:
			}
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	d := NewWSDialer(wsURL(srv), "", nil)
	d.pingInterval = 20 * time.Millisecond
	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received")
	}
}
