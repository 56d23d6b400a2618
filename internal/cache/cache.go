// Package cache is the console's data-fetching layer: one cached snapshot
// per REST collection, marked stale by realtime events and refetched in the
// background or on demand.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Ghoster04/AntCrime/internal/realtime"
)

// ErrNotRegistered is returned for keys without a registered fetcher.
var ErrNotRegistered = errors.New("cache: collection not registered")

// markStaleTimeout bounds persisting a stale mark to the store.
const markStaleTimeout = 2 * time.Second

// Fetcher loads the current value of one collection. The result is stored
// JSON-encoded.
type Fetcher func(ctx context.Context) (any, error)

type query struct {
	fetch    Fetcher
	interval time.Duration
	kick     chan struct{}
	// stale is set by Invalidate and cleared when a refetch starts.
	stale atomic.Bool
}

// Cache implements realtime.Invalidator.
type Cache struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	queries map[realtime.Collection]*query
	observe func(realtime.Collection, error)
}

func New(store Store, log *zap.Logger) *Cache {
	if store == nil {
		store = NewMemoryStore()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		store:   store,
		log:     log,
		now:     time.Now,
		queries: make(map[realtime.Collection]*query),
	}
}

// Register declares an active query polled every interval once Run starts.
func (c *Cache) Register(key realtime.Collection, fetch Fetcher, interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries[key] = &query{fetch: fetch, interval: interval, kick: make(chan struct{}, 1)}
}

// OnRefresh sets a callback invoked after every refetch attempt, with the
// fetch error if it failed.
func (c *Cache) OnRefresh(fn func(key realtime.Collection, err error)) {
	c.mu.Lock()
	c.observe = fn
	c.mu.Unlock()
}

// Invalidate marks the collections stale and asks their pollers to refetch
// now. It never blocks on the network: the mark is kept in process and
// persisted to the store by the collection's poller.
func (c *Cache) Invalidate(keys ...realtime.Collection) {
	for _, key := range keys {
		q := c.lookup(key)
		if q == nil {
			go c.markStale(key)
			continue
		}
		q.stale.Store(true)
		select {
		case q.kick <- struct{}{}:
		default:
		}
	}
}

func (c *Cache) markStale(key realtime.Collection) {
	ctx, cancel := context.WithTimeout(context.Background(), markStaleTimeout)
	defer cancel()
	if err := c.store.MarkStale(ctx, string(key)); err != nil {
		c.log.Warn("mark stale failed", zap.String("collection", string(key)), zap.Error(err))
	}
}

// Get returns the cached snapshot if it is fresh, otherwise refetches. When
// the refetch fails and an older snapshot exists, that snapshot is returned
// with Stale set instead of the error.
func (c *Cache) Get(ctx context.Context, key realtime.Collection) (Entry, error) {
	q := c.lookup(key)
	if q == nil {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotRegistered, key)
	}

	cached, loadErr := c.store.Load(ctx, string(key))
	if loadErr == nil && !cached.Stale && !q.stale.Load() && c.now().Sub(cached.FetchedAt) < q.interval {
		return cached, nil
	}
	if loadErr != nil && !errors.Is(loadErr, ErrMiss) {
		c.log.Warn("cache load failed", zap.String("collection", string(key)), zap.Error(loadErr))
	}

	fresh, err := c.Refresh(ctx, key)
	if err == nil {
		return fresh, nil
	}
	if loadErr == nil {
		c.log.Debug("serving stale snapshot", zap.String("collection", string(key)), zap.Error(err))
		cached.Stale = true
		return cached, nil
	}
	return Entry{}, err
}

// Refresh refetches a collection now. Concurrent refreshes of the same key
// share one fetch.
func (c *Cache) Refresh(ctx context.Context, key realtime.Collection) (Entry, error) {
	q := c.lookup(key)
	if q == nil {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotRegistered, key)
	}

	v, err, _ := c.group.Do(string(key), func() (any, error) {
		// An Invalidate arriving during the fetch re-arms the flag.
		wasStale := q.stale.Swap(false)
		val, err := q.fetch(ctx)
		if err != nil {
			if wasStale {
				q.stale.Store(true)
			}
			return nil, err
		}
		data, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		e := Entry{Data: data, FetchedAt: c.now()}
		if err := c.store.Save(ctx, string(key), e); err != nil {
			c.log.Warn("cache save failed", zap.String("collection", string(key)), zap.Error(err))
		}
		return e, nil
	})
	c.notify(key, err)
	if err != nil {
		return Entry{}, fmt.Errorf("refresh %s: %w", key, err)
	}
	return v.(Entry), nil
}

// Run polls every registered collection at its interval, and immediately
// after each Invalidate, until ctx is done.
func (c *Cache) Run(ctx context.Context) error {
	c.mu.RLock()
	polls := make(map[realtime.Collection]*query, len(c.queries))
	for k, q := range c.queries {
		polls[k] = q
	}
	c.mu.RUnlock()

	var wg sync.WaitGroup
	for key, q := range polls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.poll(ctx, key, q)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (c *Cache) poll(ctx context.Context, key realtime.Collection, q *query) {
	c.refreshLogged(ctx, key)

	interval := q.interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-q.kick:
			if q.stale.Load() {
				c.markStale(key)
			}
		}
		c.refreshLogged(ctx, key)
	}
}

func (c *Cache) refreshLogged(ctx context.Context, key realtime.Collection) {
	if _, err := c.Refresh(ctx, key); err != nil && ctx.Err() == nil {
		c.log.Warn("background refresh failed", zap.String("collection", string(key)), zap.Error(err))
	}
}

func (c *Cache) lookup(key realtime.Collection) *query {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.queries[key]
}

func (c *Cache) notify(key realtime.Collection, err error) {
	c.mu.RLock()
	fn := c.observe
	c.mu.RUnlock()
	if fn != nil {
		fn(key, err)
	}
}

// Decode unmarshals an entry's snapshot.
func Decode[T any](e Entry) (T, error) {
	var v T
	err := json.Unmarshal(e.Data, &v)
	return v, err
}
