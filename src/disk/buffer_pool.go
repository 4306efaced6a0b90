package disk

import (
	"container/list"
	"sync"

	"github.com/ncw/directio"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pagedb/src/common"
)

// DefaultPoolCapacity bounds the number of resident frames per pool.
const DefaultPoolCapacity = 256

// BufferPool is a bounded cache of page frames over one Pager. On a miss it
// selects a victim through the Replacer, writes the victim back if dirty and
// reads the requested page in its place. A frame with pin count > 0 is never
// a victim; when every frame is pinned the fetch fails with ErrPoolExhausted
// instead of growing the pool.
type BufferPool struct {
	capacity  int
	frames    []Frame
	replacer  Replacer
	freeList  list.List
	pageTable map[common.PageId]int
	pager     *Pager

	stats       PoolStats
	evictionLog []EvictionRecord
	logEvicts   bool

	mu sync.Mutex
}

func NewBufferPool(capacity int, pager *Pager, replacer Replacer) *BufferPool {
	if capacity <= 0 {
		capacity = DefaultPoolCapacity
	}
	bp := &BufferPool{
		capacity:  capacity,
		frames:    make([]Frame, capacity),
		replacer:  replacer,
		pageTable: make(map[common.PageId]int),
		pager:     pager,
	}
	for i := 0; i < capacity; i++ {
		bp.frames[i] = Frame{
			data:   directio.AlignedBlock(pager.PageSize()),
			pageId: common.InvalidPageId,
		}
		bp.freeList.PushBack(i)
	}
	return bp
}

// EnableEvictionLog turns on the append-only {page id, was dirty} record of
// every eviction.
func (bp *BufferPool) EnableEvictionLog() {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.logEvicts = true
}

func (bp *BufferPool) Pager() *Pager { return bp.pager }

func (bp *BufferPool) Capacity() int { return bp.capacity }

// FetchPage returns a pinned frame holding the page's bytes. The caller must
// UnpinPage on every path once done with the frame.
func (bp *BufferPool) FetchPage(pageId common.PageId) (*Frame, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if frameId, ok := bp.pageTable[pageId]; ok {
		bp.stats.Hits++
		bp.replacer.Remove(frameId)
		frame := &bp.frames[frameId]
		frame.pinCount++
		return frame, nil
	}

	frameId, err := bp.takeFrame()
	if err != nil {
		return nil, err
	}
	frame := &bp.frames[frameId]
	bp.stats.Misses++
	if err := bp.pager.ReadPage(pageId, frame.data); err != nil {
		// The frame goes back on the free list for the next fetch.
		bp.freeList.PushBack(frameId)
		return nil, err
	}
	bp.stats.PagesRead++
	frame.pageId = pageId
	frame.pinCount = 1
	frame.isDirty = false
	bp.pageTable[pageId] = frameId
	return frame, nil
}

// AllocatePage extends the file by one page and returns it pinned in a frame.
func (bp *BufferPool) AllocatePage() (*Frame, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameId, err := bp.takeFrame()
	if err != nil {
		return nil, err
	}
	frame := &bp.frames[frameId]
	pageId, err := bp.pager.AllocatePage()
	if err != nil {
		bp.freeList.PushBack(frameId)
		return nil, err
	}
	for i := range frame.data {
		frame.data[i] = 0
	}
	frame.pageId = pageId
	frame.pinCount = 1
	frame.isDirty = false
	bp.pageTable[pageId] = frameId
	return frame, nil
}

// UnpinPage releases one pin. A frame at pin count zero becomes eligible for
// eviction; its recency is refreshed at that point.
func (bp *BufferPool) UnpinPage(pageId common.PageId, markDirty bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameId, ok := bp.pageTable[pageId]
	if !ok {
		log.Warnf("Unpin of page %d, which is not resident.", pageId)
		return
	}
	frame := &bp.frames[frameId]
	if frame.pinCount == 0 {
		log.Warnf("Unpin of page %d, whose pin count is already zero.", pageId)
		return
	}
	frame.pinCount--
	frame.isDirty = frame.isDirty || markDirty
	if frame.pinCount == 0 {
		bp.replacer.Add(frameId)
	}
}

// FlushPage writes the page back if resident and dirty.
func (bp *BufferPool) FlushPage(pageId common.PageId) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameId, ok := bp.pageTable[pageId]
	if !ok {
		return nil
	}
	return bp.flushFrame(&bp.frames[frameId])
}

// FlushAll writes back every dirty resident frame. Used on graceful release
// of a handle.
func (bp *BufferPool) FlushAll() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for _, frameId := range bp.pageTable {
		if err := bp.flushFrame(&bp.frames[frameId]); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns a snapshot of the pool's counters.
func (bp *BufferPool) Stats() PoolStats {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.stats
}

// EvictionLog returns a copy of the eviction records collected so far. Empty
// unless EnableEvictionLog was called.
func (bp *BufferPool) EvictionLog() []EvictionRecord {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	out := make([]EvictionRecord, len(bp.evictionLog))
	copy(out, bp.evictionLog)
	return out
}

func (bp *BufferPool) flushFrame(frame *Frame) error {
	if !frame.isDirty {
		return nil
	}
	if err := bp.pager.WritePage(frame.pageId, frame.data); err != nil {
		log.WithError(err).Errorf("Flush of page %d failed.", frame.pageId)
		return err
	}
	bp.stats.PagesWritten++
	frame.isDirty = false
	return nil
}

// takeFrame hands out a free frame index, evicting a victim when none is
// free. Caller holds bp.mu.
func (bp *BufferPool) takeFrame() (int, error) {
	if bp.freeList.Len() > 0 {
		elem := bp.freeList.Front()
		bp.freeList.Remove(elem)
		return elem.Value.(int), nil
	}
	frameId, found := bp.replacer.Victim()
	if !found {
		log.Warnf("Buffer pool exhausted: all %d frames pinned.", bp.capacity)
		return 0, errors.Wrapf(common.ErrPoolExhausted, "capacity %d", bp.capacity)
	}
	frame := &bp.frames[frameId]
	wasDirty := frame.isDirty
	if err := bp.flushFrame(frame); err != nil {
		return 0, err
	}
	bp.stats.Evictions++
	if bp.logEvicts {
		bp.evictionLog = append(bp.evictionLog, EvictionRecord{
			PageId:   int64(frame.pageId),
			WasDirty: wasDirty,
		})
	}
	delete(bp.pageTable, frame.pageId)
	frame.pageId = common.InvalidPageId
	return frameId, nil
}
