package index

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"pagedb/src/common"
	"pagedb/src/tuple"
)

// Index pages hold a flat, append-only array of {key, row} entries in write
// order. There is no on-disk ordering or tree structure; the B+tree is
// derived by replaying these entries in file order.
//
//	header (8B): tag(1) | pad(1) | entry count(2) | free offset(2) | pad(2)
//	entry      : key (self-describing, see tuple.EncodeKey) |
//	             row length(2) | row bytes
const (
	EntryPageTag = 0xE1

	entryHeaderSize = 8

	offEntryTag   = 0
	offEntryCount = 2
	offEntryFree  = 4
)

type EntryPage struct {
	buf []byte
}

func FormatEntryPage(buf []byte) *EntryPage {
	for i := range buf {
		buf[i] = 0
	}
	buf[offEntryTag] = EntryPageTag
	binary.LittleEndian.PutUint16(buf[offEntryFree:], entryHeaderSize)
	return &EntryPage{buf: buf}
}

func LoadEntryPage(buf []byte) (*EntryPage, error) {
	if len(buf) < entryHeaderSize {
		return nil, errors.Wrapf(common.ErrPageFormat, "page of %d bytes", len(buf))
	}
	if buf[offEntryTag] != EntryPageTag {
		return nil, errors.Wrapf(common.ErrPageFormat, "tag 0x%02x, want 0x%02x", buf[offEntryTag], EntryPageTag)
	}
	return &EntryPage{buf: buf}, nil
}

func (ep *EntryPage) EntryCount() int {
	return int(binary.LittleEndian.Uint16(ep.buf[offEntryCount:]))
}

func (ep *EntryPage) freeOff() int {
	return int(binary.LittleEndian.Uint16(ep.buf[offEntryFree:]))
}

// Append writes one serialized entry, or ErrPageFull when it does not fit.
func (ep *EntryPage) Append(keyBytes, rowBytes []byte) error {
	need := len(keyBytes) + 2 + len(rowBytes)
	freeOff := ep.freeOff()
	if freeOff+need > len(ep.buf) {
		return errors.Wrapf(common.ErrPageFull, "%d bytes, %d free", need, len(ep.buf)-freeOff)
	}
	off := freeOff
	copy(ep.buf[off:], keyBytes)
	off += len(keyBytes)
	binary.LittleEndian.PutUint16(ep.buf[off:], uint16(len(rowBytes)))
	off += 2
	copy(ep.buf[off:], rowBytes)
	off += len(rowBytes)
	binary.LittleEndian.PutUint16(ep.buf[offEntryCount:], uint16(ep.EntryCount()+1))
	binary.LittleEndian.PutUint16(ep.buf[offEntryFree:], uint16(off))
	return nil
}

// ForEach replays the page's entries in write order.
func (ep *EntryPage) ForEach(fn func(key tuple.Value, rowBytes []byte) error) error {
	off := entryHeaderSize
	for i := 0; i < ep.EntryCount(); i++ {
		key, n, err := tuple.DecodeKey(ep.buf[off:])
		if err != nil {
			return errors.Wrapf(common.ErrPageFormat, "entry %d: %v", i, err)
		}
		off += n
		if off+2 > len(ep.buf) {
			return errors.Wrapf(common.ErrPageFormat, "entry %d truncated", i)
		}
		rowLen := int(binary.LittleEndian.Uint16(ep.buf[off:]))
		off += 2
		if off+rowLen > len(ep.buf) {
			return errors.Wrapf(common.ErrPageFormat, "entry %d truncated", i)
		}
		if err := fn(key, ep.buf[off:off+rowLen]); err != nil {
			return err
		}
		off += rowLen
	}
	return nil
}
