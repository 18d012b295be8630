package orchestrator

import "sync/atomic"

// acquisitionCap is the run-scoped submission counter. A zero limit is unlimited.
type acquisitionCap struct {
	limit int64
	used  atomic.Int64
}

func newAcquisitionCap(limit int) *acquisitionCap {
	return &acquisitionCap{limit: int64(limit)}
}

// reserve claims one submission slot.
func (c *acquisitionCap) reserve() bool {
	for {
		used := c.used.Load()
		if c.limit > 0 && used >= c.limit {
			return false
		}
		if c.used.CompareAndSwap(used, used+1) {
			return true
		}
	}
}

// release returns a slot claimed by reserve after a failed submission.
func (c *acquisitionCap) release() {
	c.used.Add(-1)
}

func (c *acquisitionCap) reached() bool {
	return c.limit > 0 && c.used.Load() >= c.limit
}

func (c *acquisitionCap) count() int {
	return int(c.used.Load())
}
