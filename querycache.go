package baxend

import (
	"sync"

	"github.com/baxend-go/baxend/internal/wire"
)

// queryCache maps a compiled query source string to its open
// QueryHandle, opening on first reference and closing on removal.
// Invariant: at Close, every cached handle has been closed.
type queryCache struct {
	sess *wire.Session

	mu      sync.Mutex
	handles map[string]*QueryHandle
}

func newQueryCache(sess *wire.Session) *queryCache {
	return &queryCache{sess: sess, handles: make(map[string]*QueryHandle)}
}

// Get returns the open handle for source, opening one if this is the
// first reference.
func (c *queryCache) Get(source string) (*QueryHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.handles[source]; ok {
		return h, nil
	}
	h, err := openQuery(c.sess, source)
	if err != nil {
		return nil, err
	}
	c.handles[source] = h
	return h, nil
}

// Evict closes and removes the handle for source, if any.
func (c *queryCache) Evict(source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictLocked(source)
}

func (c *queryCache) evictLocked(source string) error {
	h, ok := c.handles[source]
	if !ok {
		return nil
	}
	delete(c.handles, source)
	return h.Close()
}

// CloseAll closes and removes every cached handle.
func (c *queryCache) CloseAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for source := range c.handles {
		if err := c.evictLocked(source); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
