package disk

// PoolStats is a snapshot of one BufferPool's counters. All counters are
// deterministic functions of the access sequence and the pool capacity.
type PoolStats struct {
	Hits         int64
	Misses       int64
	Evictions    int64
	PagesRead    int64
	PagesWritten int64
}

// HitRate derives hits / (hits + misses); zero when the pool is untouched.
func (s PoolStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// EvictionRecord is one entry of the optional eviction log.
type EvictionRecord struct {
	PageId   int64
	WasDirty bool
}
