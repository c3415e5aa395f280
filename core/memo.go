package core

import (
	"container/list"
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/huangsam/cipette/internal/contract"
	"golang.org/x/sync/singleflight"
)

// memoKey pins a cache key to the TTL bucket it was computed in.
type memoKey struct {
	key    string
	bucket int64
}

type memoEntry[V any] struct {
	key   memoKey
	value V
}

// MemoCache memoizes computed values per key for the current TTL bucket.
// The bucket is wall-clock time divided by the TTL, so an entry simply stops
// matching once the bucket rolls over. The number of entries is bounded and
// the least recently used one is evicted first. Concurrent misses on the same
// key share one computation.
type MemoCache[V any] struct {
	ttl      time.Duration
	capacity int
	clock    contract.Clock

	mu    sync.Mutex
	order *list.List // front is most recently used
	items map[memoKey]*list.Element
	group singleflight.Group
}

// NewMemoCache returns a cache with the given TTL and capacity.
// A non-positive TTL or capacity disables memoization.
func NewMemoCache[V any](ttl time.Duration, capacity int, clock contract.Clock) *MemoCache[V] {
	if clock == nil {
		clock = contract.SystemClock
	}
	return &MemoCache[V]{
		ttl:      ttl,
		capacity: capacity,
		clock:    clock,
		order:    list.New(),
		items:    make(map[memoKey]*list.Element),
	}
}

func (c *MemoCache[V]) enabled() bool {
	return c.ttl > 0 && c.capacity > 0
}

func (c *MemoCache[V]) currentKey(key string) memoKey {
	return memoKey{key: key, bucket: c.clock.Now().UnixNano() / int64(c.ttl)}
}

// Get returns the value memoized for key in the current bucket.
func (c *MemoCache[V]) Get(key string) (V, bool) {
	var zero V
	if !c.enabled() {
		return zero, false
	}
	mk := c.currentKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[mk]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*memoEntry[V]).value, true
	}
	return zero, false
}

// GetOrCompute returns the memoized value for key or computes and stores it.
// The boolean reports a cache hit. Errors are returned to every waiter and
// never memoized. A shared computation is detached from the cancellation of
// the caller that started it; each caller stops waiting when its own ctx ends.
func (c *MemoCache[V]) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (V, error)) (V, bool, error) {
	if !c.enabled() {
		v, err := compute(ctx)
		return v, false, err
	}
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	mk := c.currentKey(key)
	flightKey := mk.key + "@" + strconv.FormatInt(mk.bucket, 10)
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		v, err := compute(detached)
		if err != nil {
			return v, err
		}
		c.put(mk, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		var zero V
		return zero, false, ctx.Err()
	case res := <-ch:
		v, _ := res.Val.(V)
		return v, false, res.Err
	}
}

func (c *MemoCache[V]) put(mk memoKey, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[mk]; ok {
		el.Value.(*memoEntry[V]).value = v
		c.order.MoveToFront(el)
		return
	}
	c.items[mk] = c.order.PushFront(&memoEntry[V]{key: mk, value: v})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*memoEntry[V]).key)
	}
}

// Len returns the number of memoized entries, including stale buckets not yet evicted.
func (c *MemoCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Purge drops every entry.
func (c *MemoCache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	clear(c.items)
}
