package table

import (
	"github.com/pkg/errors"

	"pagedb/src/common"
	"pagedb/src/disk"
	"pagedb/src/tuple"
)

// TableHeap is the logical append/scan/update/delete surface over one
// table's page file. Every page of the file is a data page; the page count
// is derived from the file size, so there is no heap metadata page. All I/O
// goes through the injected BufferPool.
type TableHeap struct {
	pool   *disk.BufferPool
	schema tuple.Schema
}

func NewTableHeap(pool *disk.BufferPool, schema tuple.Schema) *TableHeap {
	return &TableHeap{pool: pool, schema: schema}
}

func (th *TableHeap) Schema() tuple.Schema { return th.schema }

// Append serializes row and inserts it into the last page, allocating a new
// page and retrying once when that page is full.
func (th *TableHeap) Append(row tuple.Row) (common.RID, error) {
	payload, err := tuple.Encode(th.schema, row)
	if err != nil {
		return common.RID{}, err
	}
	return th.appendPayload(payload)
}

func (th *TableHeap) appendPayload(payload []byte) (common.RID, error) {
	numPages, err := th.pool.Pager().PageCount()
	if err != nil {
		return common.RID{}, err
	}
	if numPages > 0 {
		last := common.PageId(numPages - 1)
		rid, err := th.insertInto(last, payload)
		if err == nil {
			return rid, nil
		}
		if errors.Cause(err) != common.ErrPageFull {
			return common.RID{}, err
		}
	}

	// PageFull (or empty file): allocate a fresh page and retry once.
	frame, err := th.pool.AllocatePage()
	if err != nil {
		return common.RID{}, err
	}
	page := FormatDataPage(frame.Data())
	slot, err := page.InsertRecord(payload)
	th.pool.UnpinPage(frame.PageId(), true)
	if err != nil {
		return common.RID{}, errors.Wrapf(err, "record of %d bytes does not fit an empty page", len(payload))
	}
	return common.RID{PageId: frame.PageId(), SlotNum: slot}, nil
}

func (th *TableHeap) insertInto(pageId common.PageId, payload []byte) (common.RID, error) {
	frame, err := th.pool.FetchPage(pageId)
	if err != nil {
		return common.RID{}, err
	}
	page, err := LoadDataPage(frame.Data())
	if err != nil {
		th.pool.UnpinPage(pageId, false)
		return common.RID{}, err
	}
	slot, err := page.InsertRecord(payload)
	if err != nil {
		th.pool.UnpinPage(pageId, false)
		return common.RID{}, err
	}
	th.pool.UnpinPage(pageId, true)
	return common.RID{PageId: pageId, SlotNum: slot}, nil
}

// Get reads the row at rid; ok is false for a tombstoned slot.
func (th *TableHeap) Get(rid common.RID) (tuple.Row, bool, error) {
	frame, err := th.pool.FetchPage(rid.PageId)
	if err != nil {
		return nil, false, err
	}
	defer th.pool.UnpinPage(rid.PageId, false)

	page, err := LoadDataPage(frame.Data())
	if err != nil {
		return nil, false, err
	}
	payload, ok, err := page.ReadRecord(rid.SlotNum)
	if err != nil || !ok {
		return nil, false, err
	}
	row, err := tuple.Decode(th.schema, payload)
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// Update rewrites the row at rid in place when the new encoding fits the old
// slot; otherwise it tombstones the slot and appends the row as a fresh
// tuple. The returned RID is only equal to rid in the first case, so callers
// must not assume location stability across updates.
func (th *TableHeap) Update(rid common.RID, row tuple.Row) (common.RID, error) {
	payload, err := tuple.Encode(th.schema, row)
	if err != nil {
		return common.RID{}, err
	}

	frame, err := th.pool.FetchPage(rid.PageId)
	if err != nil {
		return common.RID{}, err
	}
	page, err := LoadDataPage(frame.Data())
	if err != nil {
		th.pool.UnpinPage(rid.PageId, false)
		return common.RID{}, err
	}
	fit, err := page.OverwriteRecord(rid.SlotNum, payload)
	if err != nil {
		th.pool.UnpinPage(rid.PageId, false)
		return common.RID{}, err
	}
	if fit {
		th.pool.UnpinPage(rid.PageId, true)
		return rid, nil
	}
	if err := page.DeleteRecord(rid.SlotNum); err != nil {
		th.pool.UnpinPage(rid.PageId, false)
		return common.RID{}, err
	}
	th.pool.UnpinPage(rid.PageId, true)
	return th.appendPayload(payload)
}

// Delete tombstones the row at rid.
func (th *TableHeap) Delete(rid common.RID) error {
	frame, err := th.pool.FetchPage(rid.PageId)
	if err != nil {
		return err
	}
	page, err := LoadDataPage(frame.Data())
	if err != nil {
		th.pool.UnpinPage(rid.PageId, false)
		return err
	}
	if err := page.DeleteRecord(rid.SlotNum); err != nil {
		th.pool.UnpinPage(rid.PageId, false)
		return err
	}
	th.pool.UnpinPage(rid.PageId, true)
	return nil
}

// DeleteAll reformats every page, truncating the table's logical content
// while keeping the file and its handle valid.
func (th *TableHeap) DeleteAll() error {
	numPages, err := th.pool.Pager().PageCount()
	if err != nil {
		return err
	}
	for pageId := common.PageId(0); int64(pageId) < numPages; pageId++ {
		frame, err := th.pool.FetchPage(pageId)
		if err != nil {
			return err
		}
		FormatDataPage(frame.Data())
		th.pool.UnpinPage(pageId, true)
	}
	return nil
}

// Iterator starts a fresh scan from page 0. The scan is a pure read view:
// rows appended while it runs have unspecified visibility.
func (th *TableHeap) Iterator() (*Iterator, error) {
	numPages, err := th.pool.Pager().PageCount()
	if err != nil {
		return nil, err
	}
	return &Iterator{th: th, numPages: numPages}, nil
}

// Iterator walks rows in page order, then slot order, skipping tombstones.
type Iterator struct {
	th       *TableHeap
	numPages int64
	pageId   common.PageId
	slot     int
}

// Next returns the next live row. ok is false once the scan is exhausted.
func (it *Iterator) Next() (tuple.Row, common.RID, bool, error) {
	for int64(it.pageId) < it.numPages {
		row, rid, ok, err := it.nextInPage()
		if err != nil {
			return nil, common.RID{}, false, err
		}
		if ok {
			return row, rid, true, nil
		}
		it.pageId++
		it.slot = 0
	}
	return nil, common.RID{}, false, nil
}

func (it *Iterator) nextInPage() (tuple.Row, common.RID, bool, error) {
	frame, err := it.th.pool.FetchPage(it.pageId)
	if err != nil {
		return nil, common.RID{}, false, err
	}
	defer it.th.pool.UnpinPage(it.pageId, false)

	page, err := LoadDataPage(frame.Data())
	if err != nil {
		return nil, common.RID{}, false, err
	}
	for it.slot < page.SlotCount() {
		slot := it.slot
		it.slot++
		payload, ok, err := page.ReadRecord(slot)
		if err != nil {
			return nil, common.RID{}, false, err
		}
		if !ok {
			continue
		}
		row, err := tuple.Decode(it.th.schema, payload)
		if err != nil {
			return nil, common.RID{}, false, err
		}
		return row, common.RID{PageId: it.pageId, SlotNum: slot}, true, nil
	}
	return nil, common.RID{}, false, nil
}

// ScanAll collects every live row; convenience for callers that do not need
// laziness.
func (th *TableHeap) ScanAll() ([]tuple.Row, error) {
	it, err := th.Iterator()
	if err != nil {
		return nil, err
	}
	var rows []tuple.Row
	for {
		row, _, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return rows, nil
		}
		rows = append(rows, row)
	}
}
