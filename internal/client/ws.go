package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Ghoster04/AntCrime/internal/realtime"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// WSDialer opens WebSocket connections to the backend's /ws endpoint. It
// implements realtime.Dialer; the supervisor decides when to dial.
type WSDialer struct {
	url    string
	token  string
	dialer *websocket.Dialer
	log    *zap.Logger

	// Overridable for tests.
	pingInterval time.Duration
	pongTimeout  time.Duration
}

// NewWSDialer creates a dialer for the given WebSocket URL. A non-empty
// token is sent as a bearer Authorization header on the handshake.
func NewWSDialer(url, token string, log *zap.Logger) *WSDialer {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSDialer{
		url:          url,
		token:        token,
		dialer:       websocket.DefaultDialer,
		log:          log,
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
	}
}

func (d *WSDialer) Dial(ctx context.Context) (realtime.Conn, error) {
	header := http.Header{}
	if d.token != "" {
		header.Set("Authorization", "Bearer "+d.token)
	}
	conn, resp, err := d.dialer.DialContext(ctx, d.url, header)
	if err != nil {
		if resp != nil {
			d.log.Debug("ws handshake rejected", zap.Int("status", resp.StatusCode))
		}
		return nil, err
	}
	return newWSConn(conn, d.pingInterval, d.pongTimeout), nil
}

// WSConn is one live connection. Reads happen on a single goroutine (the
// supervisor); writes from Send and the ping loop are serialised.
type WSConn struct {
	conn        *websocket.Conn
	writeMu     sync.Mutex
	pongTimeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func newWSConn(conn *websocket.Conn, ping, pong time.Duration) *WSConn {
	c := &WSConn{conn: conn, pongTimeout: pong, done: make(chan struct{})}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pong))
	})
	conn.SetReadDeadline(time.Now().Add(pong))
	go c.pingLoop(ping)
	return c
}

// ReadMessage returns the next text or binary frame.
func (c *WSConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	// Any traffic proves the peer is alive.
	c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	return data, nil
}

func (c *WSConn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// Close stops the ping loop and closes the socket. Safe to call repeatedly.
func (c *WSConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *WSConn) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
