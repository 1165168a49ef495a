// Package dedupe remembers which keys were already handled by this process.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

const defaultMaxSize = 10000

// Deduper records seen keys.
type Deduper interface {
	// SeenAndRecord reports whether key was seen before and records it if not.
	SeenAndRecord(ctx context.Context, key string) bool
	// Unrecord forgets key so the next SeenAndRecord reports it as new.
	Unrecord(ctx context.Context, key string)
	Size() int
}

// InMemory is a Deduper bounded to maxSize keys; the oldest key is evicted
// first. A non-positive maxSize disables eviction.
type InMemory struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
}

// NewInMemory creates an InMemory deduper.
func NewInMemory(opts ...Option) *InMemory {
	d := &InMemory{
		seen:    make(map[string]*list.Element),
		order:   list.New(),
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SeenAndRecord implements Deduper.
func (d *InMemory) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(string))
	}
	d.seen[key] = d.order.PushBack(key)
	return false
}

// Unrecord implements Deduper.
func (d *InMemory) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
	}
}

// Size implements Deduper.
func (d *InMemory) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}

// PairKey joins an (id, name) pair into a single key.
func PairKey(id, name string) string {
	return id + "\x00" + name
}
