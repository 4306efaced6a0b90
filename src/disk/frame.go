package disk

import (
	"sync"

	"pagedb/src/common"
)

// Frame is one cache slot of a BufferPool: one page's bytes plus the pool's
// bookkeeping. Frames are owned by the pool; callers borrow them between
// FetchPage and UnpinPage and must not touch the data afterwards.
type Frame struct {
	data     []byte
	pageId   common.PageId
	pinCount int
	isDirty  bool
	sync.RWMutex
}

func (f *Frame) Data() []byte { return f.data }

func (f *Frame) PageId() common.PageId { return f.pageId }

func (f *Frame) PinCount() int { return f.pinCount }

func (f *Frame) IsDirty() bool { return f.isDirty }
