package disk

// Replacer picks eviction victims among unpinned frames. Add marks a frame
// evictable, Remove withdraws it (pinned again or freed). Both policies
// shipped here are deterministic for a given access sequence.
type Replacer interface {
	Victim() (int, bool)
	Add(int)
	Remove(int)
	Size() int
}
