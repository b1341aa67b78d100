package lock

import "github.com/baxend-go/baxend/internal/bxerr"

// CompositeCounter presents the sum of N underlying reader counters as
// one value. Setting (via Add) a delta that isn't evenly divisible by
// N is a programming error, not a recoverable one: it would mean some
// keys in the composite end up with a different reader count than
// others, breaking the "composite counter sum invariant" every RW
// section depends on.
type CompositeCounter struct {
	resources []*resource
}

// Value returns the sum of the underlying reader counts.
func (c *CompositeCounter) Value() int {
	total := 0
	for _, r := range c.resources {
		r.mu.Lock()
		total += r.readCount
		r.mu.Unlock()
	}
	return total
}

// Add distributes delta evenly across the underlying counters and
// notifies each one's condition. delta must be a multiple of the
// number of underlying resources.
func (c *CompositeCounter) Add(delta int) error {
	n := len(c.resources)
	if n == 0 {
		return nil
	}
	if delta%n != 0 {
		return &bxerr.LockInvariantError{Message: "composite counter delta not divisible by resource count"}
	}
	per := delta / n
	for _, r := range c.resources {
		r.mu.Lock()
		r.readCount += per
		r.cond.Broadcast()
		r.mu.Unlock()
	}
	return nil
}

// SetValue sets the composite value to v, which must differ from the
// current value by a multiple of the number of underlying resources.
func (c *CompositeCounter) SetValue(v int) error {
	return c.Add(v - c.Value())
}
