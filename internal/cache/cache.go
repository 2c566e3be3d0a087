// Package cache keeps local snapshots of remote entity collections current.
// Each cache performs an initial scoped fetch, refetches silently whenever
// the change feed reports a mutation, and exposes its last good snapshot
// alongside loading and error state.
package cache

import (
	"context"
	"log"
	"sync"

	"huddle/client/internal/feed"
)

// FetchFunc loads a full snapshot of one entity collection.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// State is the public view of a cache handed to UI collaborators.
type State[T any] struct {
	Data    []T
	Loading bool
	Err     error
}

// Cache owns one entity snapshot. A fetch failure keeps the previous
// snapshot in place (stale-but-available) and surfaces the error; the next
// successful fetch clears it and replaces the data atomically.
type Cache[T any] struct {
	table string
	fetch FetchFunc[T]

	mu      sync.Mutex
	data    []T
	loading bool
	err     error
	gen     uint64
	closed  bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a cache for one entity. table names the change-feed channel the
// cache follows once started.
func New[T any](table string, fetch FetchFunc[T]) *Cache[T] {
	return &Cache[T]{table: table, fetch: fetch, data: []T{}}
}

// Start performs the initial fetch (with visible loading state) and then
// follows the change feed, refetching silently on every event, until ctx is
// cancelled or Close is called.
func (c *Cache[T]) Start(ctx context.Context, source feed.Source) error {
	subCtx, cancel := context.WithCancel(ctx)
	sub, err := source.Subscribe(subCtx, c.table)
	if err != nil {
		cancel()
		return err
	}

	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	if err := c.Refetch(subCtx, false); err != nil {
		log.Printf("cache %s: initial fetch: %v", c.table, err)
	}

	go func() {
		defer close(done)
		defer sub.Close()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-sub.Events():
				if !ok {
					return
				}
				// The event itself carries no meaning here; something
				// changed, so re-fetch the snapshot silently.
				if err := c.Refetch(subCtx, true); err != nil {
					log.Printf("cache %s: refetch: %v", c.table, err)
				}
			}
		}
	}()
	return nil
}

// Refetch loads a fresh snapshot and swaps it in atomically. silent=true
// suppresses the loading flag so callers see no flicker. A refetch that is
// superseded by a newer one, or that resolves after Close, is discarded.
func (c *Cache[T]) Refetch(ctx context.Context, silent bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	myGen := c.gen
	if !silent {
		c.loading = true
	}
	c.mu.Unlock()

	data, err := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.gen != myGen {
		// Stale response: a newer fetch started, or the cache was torn
		// down, while this one was in flight.
		return nil
	}
	c.loading = false
	if err != nil {
		c.err = err
		return err
	}
	if data == nil {
		data = []T{}
	}
	c.data = data
	c.err = nil
	return nil
}

// Snapshot returns the current state. The data slice is replaced wholesale
// on refetch, never mutated in place, so callers may read it freely.
func (c *Cache[T]) Snapshot() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State[T]{Data: c.data, Loading: c.loading, Err: c.err}
}

// Table returns the feed channel this cache follows.
func (c *Cache[T]) Table() string {
	return c.table
}

// Close tears the cache down: the subscription ends and any in-flight
// refetch is discarded rather than applied.
func (c *Cache[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
