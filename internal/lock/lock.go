// Package lock implements per-key reader/writer coordination: a
// write-exclusive / reader-shared lock per key, with a composite lock
// and composite counter so one critical section can atomically span
// several keys (a Cartesian-product query touching more than one
// document).
//
// This targets single-process concurrency, goroutines sharing one
// Coordinator; cross-process coordination is left to an external
// supervisor speaking the same get-or-create-by-key interface.
package lock

import "sync"

// resource is the write-mutex / reader-count / reader-condition triple
// for one key. mu guards readCount and backs cond; writeMu is the
// write-exclusive lock itself.
type resource struct {
	key     string
	writeMu sync.Mutex

	mu        sync.Mutex
	cond      *sync.Cond
	readCount int
}

func newResource(key string) *resource {
	r := &resource{key: key}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Coordinator is a process-wide registry of resources, one per key,
// created lazily on first reference.
type Coordinator struct {
	mu        sync.Mutex
	resources map[string]*resource
}

// NewCoordinator returns an empty registry.
func NewCoordinator() *Coordinator {
	return &Coordinator{resources: make(map[string]*resource)}
}

func (c *Coordinator) resourceFor(key string) *resource {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.resources[key]
	if !ok {
		r = newResource(key)
		c.resources[key] = r
	}
	return r
}

// resourcesFor resolves keys to their resources, deduplicated and
// sorted into a canonical order. Acquiring composite locks in this
// fixed order — rather than insertion order — is what lets two
// overlapping composites never deadlock against each other; see
// CompositeLock.Acquire.
func (c *Coordinator) resourcesFor(keys []string) []*resource {
	seen := make(map[string]bool, len(keys))
	unique := make([]string, 0, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			unique = append(unique, k)
		}
	}
	sortStrings(unique)

	ress := make([]*resource, len(unique))
	for i, k := range unique {
		ress[i] = c.resourceFor(k)
	}
	return ress
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Lock returns the composite write-lock for the given keys (one key
// locks a single resource; several keys lock all of them together, in
// canonical order).
func (c *Coordinator) Lock(keys ...string) *CompositeLock {
	return &CompositeLock{resources: c.resourcesFor(keys)}
}

// Counter returns the composite reader-counter for the given keys.
func (c *Coordinator) Counter(keys ...string) *CompositeCounter {
	return &CompositeCounter{resources: c.resourcesFor(keys)}
}
