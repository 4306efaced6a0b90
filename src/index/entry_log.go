package index

import (
	"github.com/pkg/errors"

	"pagedb/src/common"
	"pagedb/src/disk"
	"pagedb/src/tuple"
)

// EntryLog is the persisted form of one index: a sequence of entry pages
// written through the shared buffer pool. Entries are only appended, never
// mutated; the in-memory tree supersedes them logically.
type EntryLog struct {
	pool   *disk.BufferPool
	schema tuple.Schema
}

func NewEntryLog(pool *disk.BufferPool, schema tuple.Schema) *EntryLog {
	return &EntryLog{pool: pool, schema: schema}
}

// Append persists one {key, row} entry, allocating a fresh page and retrying
// once when the last page is full.
func (el *EntryLog) Append(key tuple.Value, row tuple.Row) error {
	rowBytes, err := tuple.Encode(el.schema, row)
	if err != nil {
		return err
	}
	keyBytes := tuple.EncodeKey(key)

	numPages, err := el.pool.Pager().PageCount()
	if err != nil {
		return err
	}
	if numPages > 0 {
		last := common.PageId(numPages - 1)
		err := el.appendTo(last, keyBytes, rowBytes)
		if err == nil {
			return nil
		}
		if errors.Cause(err) != common.ErrPageFull {
			return err
		}
	}

	frame, err := el.pool.AllocatePage()
	if err != nil {
		return err
	}
	page := FormatEntryPage(frame.Data())
	err = page.Append(keyBytes, rowBytes)
	el.pool.UnpinPage(frame.PageId(), true)
	if err != nil {
		return errors.Wrapf(err, "entry of %d bytes does not fit an empty page", len(keyBytes)+len(rowBytes))
	}
	return nil
}

func (el *EntryLog) appendTo(pageId common.PageId, keyBytes, rowBytes []byte) error {
	frame, err := el.pool.FetchPage(pageId)
	if err != nil {
		return err
	}
	page, err := LoadEntryPage(frame.Data())
	if err != nil {
		el.pool.UnpinPage(pageId, false)
		return err
	}
	if err := page.Append(keyBytes, rowBytes); err != nil {
		el.pool.UnpinPage(pageId, false)
		return err
	}
	el.pool.UnpinPage(pageId, true)
	return nil
}

// Replay walks every entry in file order, decoding rows against the table
// schema. This is the index rebuild path.
func (el *EntryLog) Replay(fn func(key tuple.Value, row tuple.Row) error) error {
	numPages, err := el.pool.Pager().PageCount()
	if err != nil {
		return err
	}
	for pageId := common.PageId(0); int64(pageId) < numPages; pageId++ {
		frame, err := el.pool.FetchPage(pageId)
		if err != nil {
			return err
		}
		page, err := LoadEntryPage(frame.Data())
		if err != nil {
			el.pool.UnpinPage(pageId, false)
			return err
		}
		err = page.ForEach(func(key tuple.Value, rowBytes []byte) error {
			row, err := tuple.Decode(el.schema, rowBytes)
			if err != nil {
				return err
			}
			return fn(key, row)
		})
		el.pool.UnpinPage(pageId, false)
		if err != nil {
			return err
		}
	}
	return nil
}
