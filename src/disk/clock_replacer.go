package disk

import "sync"

// ClockReplacer is a second-chance approximation of LRU. Frames sit in a
// fixed ring; Add sets the frame's reference bit. Victim sweeps from the
// current hand position, clearing set bits, and evicts the first candidate
// whose bit is already clear. The sweep order is fixed by frame index, so
// eviction order is deterministic for a given access sequence.
type ClockReplacer struct {
	present []bool
	refBit  []bool
	hand    int
	size    int
	mu      sync.Mutex
}

func NewClockReplacer(numFrames int) *ClockReplacer {
	return &ClockReplacer{
		present: make([]bool, numFrames),
		refBit:  make([]bool, numFrames),
	}
}

func (c *ClockReplacer) Victim() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.size == 0 {
		return 0, false
	}
	// At most two sweeps: the first clears reference bits, the second is
	// then guaranteed to find a clear one.
	for i := 0; i < 2*len(c.present); i++ {
		frameId := c.hand
		c.hand = (c.hand + 1) % len(c.present)
		if !c.present[frameId] {
			continue
		}
		if c.refBit[frameId] {
			c.refBit[frameId] = false
			continue
		}
		c.present[frameId] = false
		c.size--
		return frameId, true
	}
	return 0, false
}

func (c *ClockReplacer) Add(frameId int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.present[frameId] {
		c.present[frameId] = true
		c.size++
	}
	c.refBit[frameId] = true
}

func (c *ClockReplacer) Remove(frameId int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.present[frameId] {
		c.present[frameId] = false
		c.refBit[frameId] = false
		c.size--
	}
}

func (c *ClockReplacer) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}
