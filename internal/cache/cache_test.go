package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ghoster04/AntCrime/internal/realtime"
)

type counter struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (c *counter) fetch(context.Context) (any, error) {
	n := c.calls.Add(1)
	if c.fail.Load() {
		return nil, errors.New("connection refused")
	}
	return map[string]int32{"n": n}, nil
}

func TestGetFetchesOnceWhileFresh(t *testing.T) {
	c := New(nil, nil)
	src := &counter{}
	c.Register(realtime.CollectionUsers, src.fetch, time.Minute)

	e, err := c.Get(context.Background(), realtime.CollectionUsers)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(e.Data))

	_, err = c.Get(context.Background(), realtime.CollectionUsers)
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestInvalidateForcesRefetch(t *testing.T) {
	c := New(nil, nil)
	src := &counter{}
	c.Register(realtime.CollectionDevices, src.fetch, time.Minute)

	_, err := c.Get(context.Background(), realtime.CollectionDevices)
	require.NoError(t, err)

	c.Invalidate(realtime.CollectionDevices)
	e, err := c.Get(context.Background(), realtime.CollectionDevices)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(e.Data))
	assert.False(t, e.Stale)
}

func TestGetExpiresByInterval(t *testing.T) {
	c := New(nil, nil)
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }
	src := &counter{}
	c.Register(realtime.CollectionEmergencies, src.fetch, 10*time.Second)

	_, err := c.Get(context.Background(), realtime.CollectionEmergencies)
	require.NoError(t, err)
	now = now.Add(11 * time.Second)
	_, err = c.Get(context.Background(), realtime.CollectionEmergencies)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestGetServesStaleWhenFetchFails(t *testing.T) {
	c := New(nil, nil)
	src := &counter{}
	c.Register(realtime.CollectionDashboardStats, src.fetch, time.Minute)

	_, err := c.Get(context.Background(), realtime.CollectionDashboardStats)
	require.NoError(t, err)

	src.fail.Store(true)
	c.Invalidate(realtime.CollectionDashboardStats)
	e, err := c.Get(context.Background(), realtime.CollectionDashboardStats)
	require.NoError(t, err)
	assert.True(t, e.Stale)
	assert.JSONEq(t, `{"n":1}`, string(e.Data))
}

func TestGetFailsWithoutSnapshot(t *testing.T) {
	c := New(nil, nil)
	src := &counter{}
	src.fail.Store(true)
	c.Register(realtime.CollectionStolenPings, src.fetch, time.Minute)

	_, err := c.Get(context.Background(), realtime.CollectionStolenPings)
	assert.Error(t, err)
}

func TestGetUnregistered(t *testing.T) {
	c := New(nil, nil)
	_, err := c.Get(context.Background(), "relatorios")
	assert.ErrorIs(t, err, ErrNotRegistered)
	c.Invalidate("relatorios")
}

func TestRefreshDeduplicatesConcurrentFetches(t *testing.T) {
	c := New(nil, nil)
	var calls atomic.Int32
	release := make(chan struct{})
	c.Register(realtime.CollectionUsers, func(context.Context) (any, error) {
		calls.Add(1)
		<-release
		return []string{"ana"}, nil
	}, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Refresh(context.Background(), realtime.CollectionUsers)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestRunRefetchesOnInvalidate(t *testing.T) {
	c := New(nil, nil)
	src := &counter{}
	c.Register(realtime.CollectionEmergencies, src.fetch, time.Hour)

	refreshed := make(chan realtime.Collection, 8)
	c.OnRefresh(func(key realtime.Collection, err error) {
		assert.NoError(t, err)
		refreshed <- key
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitRefresh := func() {
		t.Helper()
		select {
		case key := <-refreshed:
			assert.Equal(t, realtime.CollectionEmergencies, key)
		case <-time.After(2 * time.Second):
			t.Fatal("no refresh")
		}
	}
	waitRefresh()
	c.Invalidate(realtime.CollectionEmergencies)
	waitRefresh()
	assert.Equal(t, int32(2), src.calls.Load())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestDecode(t *testing.T) {
	v, err := Decode[[]int](Entry{Data: []byte(`[1,2,3]`)})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, v)
}

func TestMemoryStoreMarkStale(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.MarkStale(ctx, "usuarios"))
	_, err := s.Load(ctx, "usuarios")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Save(ctx, "usuarios", Entry{Data: []byte("[]")}))
	require.NoError(t, s.MarkStale(ctx, "usuarios"))
	e, err := s.Load(ctx, "usuarios")
	require.NoError(t, err)
	assert.True(t, e.Stale)
}

// stalledStore never answers MarkStale until its context ends.
type stalledStore struct {
	*MemoryStore
	marks chan struct{}
}

func (s *stalledStore) MarkStale(ctx context.Context, _ string) error {
	<-ctx.Done()
	s.marks <- struct{}{}
	return ctx.Err()
}

func TestInvalidateDoesNotWaitForStore(t *testing.T) {
	st := &stalledStore{MemoryStore: NewMemoryStore(), marks: make(chan struct{}, 8)}
	c := New(st, nil)
	src := &counter{}
	c.Register(realtime.CollectionEmergencies, src.fetch, time.Hour)

	_, err := c.Get(context.Background(), realtime.CollectionEmergencies)
	require.NoError(t, err)

	start := time.Now()
	c.Invalidate(realtime.CollectionEmergencies, "relatorios")
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	e, err := c.Get(context.Background(), realtime.CollectionEmergencies)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(e.Data), "invalidated entry is refetched")
}

func TestPollerPersistsStaleMarkWithDeadline(t *testing.T) {
	st := &stalledStore{MemoryStore: NewMemoryStore(), marks: make(chan struct{}, 8)}
	c := New(st, nil)
	src := &counter{}
	c.Register(realtime.CollectionEmergencies, src.fetch, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	c.Invalidate(realtime.CollectionEmergencies)
	select {
	case <-st.marks:
	case <-time.After(markStaleTimeout + 2*time.Second):
		t.Fatal("stale mark was not bounded by a deadline")
	}
	require.Eventually(t, func() bool { return src.calls.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
}
