package lock

// ReadGuard holds a composite read registration open across a
// streamed operation. Release (idempotent) must be called exactly
// once, typically via defer, when the caller is done consuming —
// whether that's after normal exhaustion or an early abandonment.
type ReadGuard struct {
	coordinator *Coordinator
	counter     *CompositeCounter
	released    bool
}

// AcquireRead registers one reader against every key, then returns
// immediately: unlike AcquireWrite, a read guard does not hold the
// write-mutexes for its lifetime, only while registering/unregistering
// (acquire write-mutex, increment reader-count, release write-mutex).
func (c *Coordinator) AcquireRead(keys ...string) *ReadGuard {
	lock := c.Lock(keys...)
	counter := c.Counter(keys...)

	lock.Acquire()
	counter.Add(len(counter.resources))
	lock.Release()

	return &ReadGuard{coordinator: c, counter: counter}
}

// Release unregisters this reader and notifies any writer waiting for
// the reader count to drain.
func (g *ReadGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.counter.Add(-len(g.counter.resources))
}

// WriteGuard holds the composite write-mutex for its lifetime: every
// underlying resource is locked from AcquireWrite until Release.
type WriteGuard struct {
	lock     *CompositeLock
	released bool
}

// AcquireWrite locks every key's write-mutex, then blocks until each
// key's reader count has drained to zero, before returning. The
// returned guard must be released exactly once.
func (c *Coordinator) AcquireWrite(keys ...string) *WriteGuard {
	lock := c.Lock(keys...)
	lock.Acquire()
	lock.waitReadersDrained()
	return &WriteGuard{lock: lock}
}

// Release unlocks every underlying write-mutex.
func (g *WriteGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.lock.Release()
}

// ReadSection runs fn as a read-shared critical section over keys.
// Equivalent to locked_ro: any number of readers may be inside
// simultaneously, but a writer cannot enter until they have all left.
func (c *Coordinator) ReadSection(fn func() error, keys ...string) error {
	g := c.AcquireRead(keys...)
	defer g.Release()
	return fn()
}

// WriteSection runs fn as a write-exclusive critical section over
// keys, after waiting for every current reader to drain. Equivalent to
// locked_rw.
func (c *Coordinator) WriteSection(fn func() error, keys ...string) error {
	g := c.AcquireWrite(keys...)
	defer g.Release()
	return fn()
}
