package table

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"pagedb/src/common"
)

// Data page layout. Tuples pack forward from the header, the slot directory
// grows backward from the page end.
//
//	header (8B): tag(1) | pad(1) | slot count(2) | free offset(2) | flags(2)
//	slot   (6B): offset(2) | length(2) | tombstone(1) | pad(1)
//
// A deleted slot keeps its bytes and is only tombstoned; scans skip it.
const (
	DataPageTag = 0xD1

	headerSize = 8
	slotSize   = 6

	offTag       = 0
	offSlotCount = 2
	offFreeOff   = 4
)

// DataPage is a view over one page buffer; it never copies page bytes except
// when handing a record out.
type DataPage struct {
	buf []byte
}

// FormatDataPage zeroes buf and writes a fresh data-page header.
func FormatDataPage(buf []byte) *DataPage {
	for i := range buf {
		buf[i] = 0
	}
	buf[offTag] = DataPageTag
	binary.LittleEndian.PutUint16(buf[offFreeOff:], headerSize)
	return &DataPage{buf: buf}
}

// LoadDataPage wraps buf, verifying the header tag.
func LoadDataPage(buf []byte) (*DataPage, error) {
	if len(buf) < headerSize {
		return nil, errors.Wrapf(common.ErrPageFormat, "page of %d bytes", len(buf))
	}
	if buf[offTag] != DataPageTag {
		return nil, errors.Wrapf(common.ErrPageFormat, "tag 0x%02x, want 0x%02x", buf[offTag], DataPageTag)
	}
	return &DataPage{buf: buf}, nil
}

func (dp *DataPage) SlotCount() int {
	return int(binary.LittleEndian.Uint16(dp.buf[offSlotCount:]))
}

func (dp *DataPage) freeOff() int {
	return int(binary.LittleEndian.Uint16(dp.buf[offFreeOff:]))
}

func (dp *DataPage) setHeader(slotCount, freeOff int) {
	binary.LittleEndian.PutUint16(dp.buf[offSlotCount:], uint16(slotCount))
	binary.LittleEndian.PutUint16(dp.buf[offFreeOff:], uint16(freeOff))
}

func (dp *DataPage) slotPos(slot int) int {
	return len(dp.buf) - (slot+1)*slotSize
}

func (dp *DataPage) readSlot(slot int) (offset, length int, tombstone bool) {
	pos := dp.slotPos(slot)
	offset = int(binary.LittleEndian.Uint16(dp.buf[pos:]))
	length = int(binary.LittleEndian.Uint16(dp.buf[pos+2:]))
	tombstone = dp.buf[pos+4] != 0
	return
}

func (dp *DataPage) writeSlot(slot, offset, length int, tombstone bool) {
	pos := dp.slotPos(slot)
	binary.LittleEndian.PutUint16(dp.buf[pos:], uint16(offset))
	binary.LittleEndian.PutUint16(dp.buf[pos+2:], uint16(length))
	if tombstone {
		dp.buf[pos+4] = 1
	} else {
		dp.buf[pos+4] = 0
	}
	dp.buf[pos+5] = 0
}

func (dp *DataPage) checkSlot(slot int) error {
	if slot < 0 || slot >= dp.SlotCount() {
		return errors.Wrapf(common.ErrPageFormat, "slot %d of %d", slot, dp.SlotCount())
	}
	offset, length, _ := dp.readSlot(slot)
	if offset < headerSize || offset+length > len(dp.buf)-dp.SlotCount()*slotSize {
		return errors.Wrapf(common.ErrPageFormat, "slot %d points at [%d,%d)", slot, offset, offset+length)
	}
	return nil
}

// FreeSpace is the contiguous room between the record area and the slot
// directory, minus the slot a new record would need.
func (dp *DataPage) FreeSpace() int {
	free := len(dp.buf) - dp.freeOff() - (dp.SlotCount()+1)*slotSize
	if free < 0 {
		return 0
	}
	return free
}

// InsertRecord appends payload and returns its slot number, or ErrPageFull
// when the record plus one directory entry does not fit.
func (dp *DataPage) InsertRecord(payload []byte) (int, error) {
	if len(payload) > dp.FreeSpace() {
		return 0, errors.Wrapf(common.ErrPageFull, "%d bytes, %d free", len(payload), dp.FreeSpace())
	}
	slotCount := dp.SlotCount()
	freeOff := dp.freeOff()
	copy(dp.buf[freeOff:], payload)
	dp.setHeader(slotCount+1, freeOff+len(payload))
	dp.writeSlot(slotCount, freeOff, len(payload), false)
	return slotCount, nil
}

// ReadRecord copies out the record in slot. Tombstoned slots read as absent.
func (dp *DataPage) ReadRecord(slot int) ([]byte, bool, error) {
	if err := dp.checkSlot(slot); err != nil {
		return nil, false, err
	}
	offset, length, tombstone := dp.readSlot(slot)
	if tombstone {
		return nil, false, nil
	}
	out := make([]byte, length)
	copy(out, dp.buf[offset:offset+length])
	return out, true, nil
}

// DeleteRecord tombstones the slot. Space is not compacted.
func (dp *DataPage) DeleteRecord(slot int) error {
	if err := dp.checkSlot(slot); err != nil {
		return err
	}
	offset, length, _ := dp.readSlot(slot)
	dp.writeSlot(slot, offset, length, true)
	return nil
}

// OverwriteRecord replaces the record in place when the new payload fits the
// original slot; reports false when the caller must tombstone and re-append.
func (dp *DataPage) OverwriteRecord(slot int, payload []byte) (bool, error) {
	if err := dp.checkSlot(slot); err != nil {
		return false, err
	}
	offset, length, tombstone := dp.readSlot(slot)
	if tombstone {
		return false, errors.Wrapf(common.ErrPageFormat, "overwrite of tombstoned slot %d", slot)
	}
	if len(payload) > length {
		return false, nil
	}
	copy(dp.buf[offset:], payload)
	dp.writeSlot(slot, offset, len(payload), false)
	return true, nil
}
