package analyzer

import "github.com/spectravision/core/internal/frames"

// frameCache is a bounded frame-index keyed cache. Insertion order is
// the recency proxy: inserting beyond capacity evicts exactly the
// oldest entry by insertion. Not safe for concurrent use; the Analyzer
// is its single writer.
type frameCache struct {
	maxSize int
	entries map[int]*frames.Frame
	order   []int
}

func newFrameCache(maxSize int) *frameCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &frameCache{
		maxSize: maxSize,
		entries: make(map[int]*frames.Frame),
	}
}

func (c *frameCache) Get(index int) (*frames.Frame, bool) {
	f, ok := c.entries[index]
	return f, ok
}

// Put inserts or replaces a frame. Replacing keeps the original
// insertion position.
func (c *frameCache) Put(index int, f *frames.Frame) {
	if _, exists := c.entries[index]; exists {
		c.entries[index] = f
		return
	}
	if len(c.entries) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[index] = f
	c.order = append(c.order, index)
}

func (c *frameCache) Len() int {
	return len(c.entries)
}

func (c *frameCache) Clear() {
	c.entries = make(map[int]*frames.Frame)
	c.order = nil
}

// All returns the cached frames in insertion order.
func (c *frameCache) All() []*frames.Frame {
	out := make([]*frames.Frame, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.entries[key])
	}
	return out
}
