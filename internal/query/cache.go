// Package query is a keyed client-side cache for server reads.
//
// Each key holds the last fetched (or locally written) value. Writes go
// through SetData/Restore, reads through GetData, and Invalidate refetches
// from the key's registered Fetcher. Cancel discards whatever fetch is in
// flight so a stale response cannot overwrite a local write.
package query

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrCanceled is returned by Fetch when its result was discarded.
	ErrCanceled = errors.New("query: fetch canceled")
	// ErrNoFetcher is returned by Fetch for a key with no registered Fetcher.
	ErrNoFetcher = errors.New("query: no fetcher registered")
)

// Fetcher loads the authoritative value for one key.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Snapshot is an opaque copy of one entry, taken for rollback.
type Snapshot[T any] struct {
	data T
	ok   bool
}

// Data returns the snapshotted value and whether the entry existed.
func (s Snapshot[T]) Data() (T, bool) { return s.data, s.ok }

type entry[T any] struct {
	data T
	ok   bool

	stale    bool
	fetcher  Fetcher[T]
	fetchSeq uint64
	inflight context.CancelFunc
}

// Cache is safe for concurrent use. Values are treated as immutable:
// updaters must return a new value rather than modify the old one.
type Cache[T any] struct {
	mu       sync.Mutex
	entries  map[string]*entry[T]
	onChange func(key string)
	log      *zap.Logger
}

func New[T any](log *zap.Logger) *Cache[T] {
	return &Cache[T]{
		entries: make(map[string]*entry[T]),
		log:     log,
	}
}

// OnChange registers fn to run after every change to any key's data.
// fn runs outside the cache lock and may read the cache.
func (c *Cache[T]) OnChange(fn func(key string)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Register sets the fetcher used by Fetch and Invalidate for key.
func (c *Cache[T]) Register(key string, f Fetcher[T]) {
	c.mu.Lock()
	c.entry(key).fetcher = f
	c.mu.Unlock()
}

func (c *Cache[T]) GetData(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	return e.data, e.ok
}

// IsFetching reports whether a fetch for key is in flight.
func (c *Cache[T]) IsFetching(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && e.inflight != nil
}

// IsStale reports whether key was invalidated and not refetched since.
func (c *Cache[T]) IsStale(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && e.stale
}

// SetData replaces key's value with update(old, ok).
func (c *Cache[T]) SetData(key string, update func(old T, ok bool) T) {
	c.mu.Lock()
	e := c.entry(key)
	e.data = update(e.data, e.ok)
	e.ok = true
	fn := c.onChange
	c.mu.Unlock()

	c.notify(fn, key)
}

func (c *Cache[T]) Snapshot(key string) Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Snapshot[T]{}
	}
	return Snapshot[T]{data: e.data, ok: e.ok}
}

// Restore puts key back exactly as it was when s was taken, including
// "no data yet".
func (c *Cache[T]) Restore(key string, s Snapshot[T]) {
	c.mu.Lock()
	e := c.entry(key)
	e.data = s.data
	e.ok = s.ok
	fn := c.onChange
	c.mu.Unlock()

	c.notify(fn, key)
}

// Cancel aborts the in-flight fetch for key, if any, and discards its result.
func (c *Cache[T]) Cancel(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return
	}
	e.fetchSeq++
	if e.inflight != nil {
		e.inflight()
		e.inflight = nil
	}
}

// Fetch runs key's fetcher and stores the result unless the fetch was
// canceled or superseded by a newer one meanwhile.
func (c *Cache[T]) Fetch(ctx context.Context, key string) (T, error) {
	var zero T

	c.mu.Lock()
	e := c.entry(key)
	if e.fetcher == nil {
		c.mu.Unlock()
		return zero, ErrNoFetcher
	}
	if e.inflight != nil {
		e.inflight()
	}
	e.fetchSeq++
	seq := e.fetchSeq
	fetchCtx, cancel := context.WithCancel(ctx)
	e.inflight = cancel
	fetcher := e.fetcher
	c.mu.Unlock()

	data, err := fetcher(fetchCtx)
	cancel()

	c.mu.Lock()
	current := e.fetchSeq == seq
	if current {
		e.inflight = nil
	}
	if !current {
		c.mu.Unlock()
		c.log.Debug("discarding superseded fetch", zap.String("key", key))
		return zero, ErrCanceled
	}
	if err != nil {
		c.mu.Unlock()
		return zero, err
	}
	e.data = data
	e.ok = true
	e.stale = false
	fn := c.onChange
	c.mu.Unlock()

	c.notify(fn, key)
	return data, nil
}

// Invalidate marks key stale and refetches it when a fetcher is registered.
func (c *Cache[T]) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	e := c.entry(key)
	e.stale = true
	hasFetcher := e.fetcher != nil
	c.mu.Unlock()

	if !hasFetcher {
		return nil
	}
	_, err := c.Fetch(ctx, key)
	return err
}

// entry returns key's entry, creating it. Callers hold c.mu.
func (c *Cache[T]) entry(key string) *entry[T] {
	e, ok := c.entries[key]
	if !ok {
		e = &entry[T]{}
		c.entries[key] = e
	}
	return e
}

func (c *Cache[T]) notify(fn func(string), key string) {
	if fn != nil {
		fn(key)
	}
}
