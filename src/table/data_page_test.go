package table

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"pagedb/src/common"
	"pagedb/src/disk"
)

func TestDataPage_InsertAndRead(t *testing.T) {
	buf := make([]byte, disk.DefaultPageSize)
	page := FormatDataPage(buf)

	records := [][]byte{
		[]byte("first"),
		[]byte("second record"),
		[]byte("third"),
	}
	for i, rec := range records {
		slot, err := page.InsertRecord(rec)
		require.NoError(t, err)
		require.Equal(t, i, slot)
	}
	require.Equal(t, 3, page.SlotCount())

	for i, rec := range records {
		out, ok, err := page.ReadRecord(i)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, rec, out)
	}
}

func TestDataPage_TombstoneDelete(t *testing.T) {
	buf := make([]byte, disk.DefaultPageSize)
	page := FormatDataPage(buf)

	for _, rec := range []string{"a", "b", "c"} {
		_, err := page.InsertRecord([]byte(rec))
		require.NoError(t, err)
	}
	require.NoError(t, page.DeleteRecord(1))

	// Deleted slot reads as absent, others untouched; slot count unchanged.
	_, ok, err := page.ReadRecord(1)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 3, page.SlotCount())
	out, ok, err := page.ReadRecord(2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("c"), out)
}

func TestDataPage_PageFull(t *testing.T) {
	buf := make([]byte, 64)
	page := FormatDataPage(buf)

	// 64 = 8 header; each record costs len + 6 slot bytes.
	_, err := page.InsertRecord(bytes.Repeat([]byte("x"), 20))
	require.NoError(t, err)
	_, err = page.InsertRecord(bytes.Repeat([]byte("y"), 20))
	require.NoError(t, err)
	_, err = page.InsertRecord(bytes.Repeat([]byte("z"), 20))
	require.ErrorIs(t, err, common.ErrPageFull)
	require.Equal(t, 2, page.SlotCount())
}

func TestDataPage_Overwrite(t *testing.T) {
	buf := make([]byte, disk.DefaultPageSize)
	page := FormatDataPage(buf)

	slot, err := page.InsertRecord([]byte("original"))
	require.NoError(t, err)

	// Shorter fits in place.
	fit, err := page.OverwriteRecord(slot, []byte("orig"))
	require.NoError(t, err)
	require.True(t, fit)
	out, ok, err := page.ReadRecord(slot)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("orig"), out)

	// Longer does not.
	fit, err = page.OverwriteRecord(slot, []byte("this is much longer"))
	require.NoError(t, err)
	require.False(t, fit)
}

func TestDataPage_BadTag(t *testing.T) {
	buf := make([]byte, disk.DefaultPageSize)
	FormatDataPage(buf)
	buf[0] = 0x00
	_, err := LoadDataPage(buf)
	require.ErrorIs(t, err, common.ErrPageFormat)
}

func TestDataPage_BadSlot(t *testing.T) {
	buf := make([]byte, disk.DefaultPageSize)
	page := FormatDataPage(buf)
	_, _, err := page.ReadRecord(0)
	require.ErrorIs(t, err, common.ErrPageFormat)
	err = page.DeleteRecord(-1)
	require.ErrorIs(t, err, common.ErrPageFormat)
}
