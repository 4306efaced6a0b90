package disk

import (
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Policy names the replacement strategy of a pool.
type Policy string

const (
	PolicyLRU   Policy = "lru"
	PolicyClock Policy = "clock"
)

// HandleOptions configure the (Pager, BufferPool) pair built on the first
// Acquire of a path. Later Acquires of the same path ignore them.
type HandleOptions struct {
	PageSize    int
	Capacity    int
	Policy      Policy
	EvictionLog bool
}

// Handle is a borrowed reference to the shared pair for one page file.
type Handle struct {
	Pager *Pager
	Pool  *BufferPool
}

type handleEntry struct {
	pager *Pager
	pool  *BufferPool
	refs  int
}

// HandlePool guarantees exactly one (Pager, BufferPool) pair per physical
// page file for the lifetime of a session, so repeated statements against the
// same table or index reuse warm cache state. Construct one per process and
// inject it; there is no package-level instance.
type HandlePool struct {
	entries map[string]*handleEntry
	mu      sync.Mutex
}

func NewHandlePool() *HandlePool {
	return &HandlePool{entries: make(map[string]*handleEntry)}
}

// Acquire opens the pair for path, or returns the existing one. Idempotent
// per path; each Acquire must be balanced by one Release.
func (hp *HandlePool) Acquire(path string, opts HandleOptions) (*Handle, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", path)
	}

	hp.mu.Lock()
	defer hp.mu.Unlock()

	if entry, ok := hp.entries[key]; ok {
		entry.refs++
		return &Handle{Pager: entry.pager, Pool: entry.pool}, nil
	}

	pager, err := NewPager(key, opts.PageSize)
	if err != nil {
		return nil, err
	}
	var replacer Replacer
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultPoolCapacity
	}
	switch opts.Policy {
	case PolicyClock:
		replacer = NewClockReplacer(capacity)
	default:
		replacer = NewLRUReplacer()
	}
	pool := NewBufferPool(capacity, pager, replacer)
	if opts.EvictionLog {
		pool.EnableEvictionLog()
	}
	hp.entries[key] = &handleEntry{pager: pager, pool: pool, refs: 1}
	return &Handle{Pager: pager, Pool: pool}, nil
}

// Release drops one reference. At zero the pool is flushed and the file
// closed; dropping an index must Release before removing the backing file so
// no write-back lands on a deleted file.
func (hp *HandlePool) Release(path string) error {
	key, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", path)
	}

	hp.mu.Lock()
	defer hp.mu.Unlock()

	entry, ok := hp.entries[key]
	if !ok {
		log.Warnf("Release of %s, which is not open.", key)
		return nil
	}
	entry.refs--
	if entry.refs > 0 {
		return nil
	}
	delete(hp.entries, key)
	if err := entry.pool.FlushAll(); err != nil {
		return err
	}
	return entry.pager.Close()
}

// Open reports whether a pair is currently registered for path.
func (hp *HandlePool) Open(path string) bool {
	key, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	hp.mu.Lock()
	defer hp.mu.Unlock()
	_, ok := hp.entries[key]
	return ok
}
