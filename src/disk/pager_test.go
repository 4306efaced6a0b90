package disk

import (
	"os"
	"testing"

	"github.com/ncw/directio"
	"github.com/stretchr/testify/require"

	"pagedb/src/common"
)

func TestPager_AllocatePage(t *testing.T) {
	fileName := "tmp-pager-alloc"
	defer os.Remove(fileName)
	pager, err := NewPager(fileName, DefaultPageSize)
	require.NoError(t, err)
	defer pager.Close()

	count, err := pager.PageCount()
	require.NoError(t, err)
	require.Equal(t, int64(0), count)

	for i := 0; i < 4; i++ {
		pageId, err := pager.AllocatePage()
		require.NoError(t, err)
		require.Equal(t, common.PageId(i), pageId)
	}
	count, err = pager.PageCount()
	require.NoError(t, err)
	require.Equal(t, int64(4), count)
}

func TestPager_ReadWriteRoundTrip(t *testing.T) {
	fileName := "tmp-pager-rw"
	defer os.Remove(fileName)
	pager, err := NewPager(fileName, DefaultPageSize)
	require.NoError(t, err)
	defer pager.Close()

	pageId, err := pager.AllocatePage()
	require.NoError(t, err)

	out := directio.AlignedBlock(DefaultPageSize)
	for i := range out {
		out[i] = byte(i % 251)
	}
	require.NoError(t, pager.WritePage(pageId, out))

	in := directio.AlignedBlock(DefaultPageSize)
	require.NoError(t, pager.ReadPage(pageId, in))
	require.Equal(t, out, in)
}

func TestPager_OutOfRange(t *testing.T) {
	fileName := "tmp-pager-oob"
	defer os.Remove(fileName)
	pager, err := NewPager(fileName, DefaultPageSize)
	require.NoError(t, err)
	defer pager.Close()

	_, err = pager.AllocatePage()
	require.NoError(t, err)

	buf := directio.AlignedBlock(DefaultPageSize)
	err = pager.ReadPage(common.PageId(1), buf)
	require.ErrorIs(t, err, common.ErrOutOfRange)
	err = pager.WritePage(common.PageId(1), buf)
	require.ErrorIs(t, err, common.ErrOutOfRange)
	err = pager.ReadPage(common.PageId(-1), buf)
	require.ErrorIs(t, err, common.ErrOutOfRange)
}

func TestPager_ExactPageSizeRequired(t *testing.T) {
	fileName := "tmp-pager-size"
	defer os.Remove(fileName)
	pager, err := NewPager(fileName, DefaultPageSize)
	require.NoError(t, err)
	defer pager.Close()

	pageId, err := pager.AllocatePage()
	require.NoError(t, err)
	err = pager.WritePage(pageId, make([]byte, 100))
	require.Error(t, err)
	err = pager.ReadPage(pageId, make([]byte, 100))
	require.Error(t, err)
}

func TestPager_Persistence(t *testing.T) {
	fileName := "tmp-pager-persist"
	defer os.Remove(fileName)

	out := directio.AlignedBlock(DefaultPageSize)
	for i := range out {
		out[i] = byte(i % 13)
	}
	{
		pager, err := NewPager(fileName, DefaultPageSize)
		require.NoError(t, err)
		pageId, err := pager.AllocatePage()
		require.NoError(t, err)
		require.NoError(t, pager.WritePage(pageId, out))
		require.NoError(t, pager.Sync())
		require.NoError(t, pager.Close())
	}
	{
		pager, err := NewPager(fileName, DefaultPageSize)
		require.NoError(t, err)
		defer pager.Close()
		count, err := pager.PageCount()
		require.NoError(t, err)
		require.Equal(t, int64(1), count)
		in := directio.AlignedBlock(DefaultPageSize)
		require.NoError(t, pager.ReadPage(common.PageId(0), in))
		require.Equal(t, out, in)
	}
}
