package realtime

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
)

type fakePlayer struct {
	mu      sync.Mutex
	playErr error
	plays   int
	stops   int
	playing bool
}

func (p *fakePlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays++
	if p.playErr != nil {
		return p.playErr
	}
	p.playing = true
	return nil
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	p.playing = false
}

func (p *fakePlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *fakePlayer) Plays() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays
}

type fakeResponder struct {
	mu    sync.Mutex
	ids   []ID
	err   error
	calls chan ID
}

func newFakeResponder() *fakeResponder {
	return &fakeResponder{calls: make(chan ID, 8)}
}

func (r *fakeResponder) MarkHandled(_ context.Context, id ID) error {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
	r.calls <- id
	return r.err
}

func (r *fakeResponder) IDs() []ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ID(nil), r.ids...)
}

// staleSet records invalidations as a set, per call.
type staleSet struct {
	mu    sync.Mutex
	calls [][]Collection
}

func (s *staleSet) Invalidate(cols ...Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]Collection(nil), cols...))
}

func (s *staleSet) Keys() []Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[Collection]bool{}
	var out []Collection
	for _, call := range s.calls {
		for _, c := range call {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *staleSet) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func sorted(cols []Collection) []Collection {
	out := append([]Collection(nil), cols...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type fakeConn struct {
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written []any
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case f, ok := <-c.frames:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// hangup simulates the server dropping the connection.
func (c *fakeConn) hangup() { close(c.frames) }

func (c *fakeConn) Written() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.written...)
}

// scriptedDialer hands out connections in order, then blocks until ctx ends.
type scriptedDialer struct {
	mu     sync.Mutex
	conns  []*fakeConn
	errs   []error
	dials  int
	dialed chan int
}

func newScriptedDialer() *scriptedDialer {
	return &scriptedDialer{dialed: make(chan int, 32)}
}

func (d *scriptedDialer) push(c *fakeConn) {
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.errs = append(d.errs, nil)
	d.mu.Unlock()
}

func (d *scriptedDialer) pushErr(err error) {
	d.mu.Lock()
	d.conns = append(d.conns, nil)
	d.errs = append(d.errs, err)
	d.mu.Unlock()
}

func (d *scriptedDialer) Dial(ctx context.Context) (Conn, error) {
	d.mu.Lock()
	d.dials++
	n := d.dials
	if len(d.conns) == 0 {
		d.mu.Unlock()
		d.dialed <- n
		<-ctx.Done()
		return nil, ctx.Err()
	}
	c, err := d.conns[0], d.errs[0]
	d.conns, d.errs = d.conns[1:], d.errs[1:]
	d.mu.Unlock()
	d.dialed <- n
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (d *scriptedDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
