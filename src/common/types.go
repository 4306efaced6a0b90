package common

import "fmt"

// PageId identifies a page within one physical file:
// page_id = byte offset / page size.
type PageId int64

const InvalidPageId = PageId(-1)

// RID locates one record: the page holding it and the slot inside that page.
// RIDs are not stable across updates that relocate the record.
type RID struct {
	PageId  PageId
	SlotNum int
}

func (rid RID) String() string {
	return fmt.Sprintf("[page %d, slot %d]", rid.PageId, rid.SlotNum)
}
