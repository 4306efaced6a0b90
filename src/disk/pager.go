package disk

import (
	"io"
	"os"

	"github.com/ncw/directio"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pagedb/src/common"
)

// DefaultPageSize is the unit of I/O and caching. Fixed per data directory.
const DefaultPageSize = 4096

// Pager translates page ids to byte-range I/O on one physical file. It does
// no caching of its own; that is the BufferPool's job. Page count is always
// derived from the file size, so there is no metadata page and a freed page
// id is never reused (space is reclaimed only by destroying the file).
type Pager struct {
	path     string
	pageSize int
	fi       *os.File
}

func NewPager(path string, pageSize int) (*Pager, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	fi, err := directio.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_SYNC, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open page file %s", path)
	}
	return &Pager{path: path, pageSize: pageSize, fi: fi}, nil
}

func (p *Pager) Path() string { return p.path }

func (p *Pager) PageSize() int { return p.pageSize }

// PageCount reports file_size / page_size. The file size is kept a multiple
// of the page size by construction.
func (p *Pager) PageCount() (int64, error) {
	size, err := p.fileSize()
	if err != nil {
		return 0, err
	}
	return size / int64(p.pageSize), nil
}

// AllocatePage extends the file by one zeroed page and returns its id.
func (p *Pager) AllocatePage() (common.PageId, error) {
	size, err := p.fileSize()
	if err != nil {
		return common.InvalidPageId, err
	}
	pageId := common.PageId(size / int64(p.pageSize))
	zero := directio.AlignedBlock(p.pageSize)
	if _, err := p.fi.Seek(size, io.SeekStart); err != nil {
		return common.InvalidPageId, errors.Wrap(common.ErrAllocation, err.Error())
	}
	if _, err := p.fi.Write(zero); err != nil {
		return common.InvalidPageId, errors.Wrap(common.ErrAllocation, err.Error())
	}
	return pageId, nil
}

// ReadPage fills buf (exactly one page) with the page's on-disk bytes.
func (p *Pager) ReadPage(pageId common.PageId, buf []byte) error {
	if len(buf) != p.pageSize {
		return errors.Errorf("read buffer is %d bytes, want %d", len(buf), p.pageSize)
	}
	if err := p.checkBounds(pageId); err != nil {
		return err
	}
	if _, err := p.fi.Seek(int64(pageId)*int64(p.pageSize), io.SeekStart); err != nil {
		return errors.Wrapf(err, "seek to page %d", pageId)
	}
	n, err := p.fi.Read(buf)
	if err != nil {
		return errors.Wrapf(err, "read page %d", pageId)
	}
	if n < p.pageSize {
		return errors.Errorf("short read on page %d: %d bytes", pageId, n)
	}
	return nil
}

// WritePage writes exactly one page at the page's offset. The page must have
// been allocated already.
func (p *Pager) WritePage(pageId common.PageId, buf []byte) error {
	if len(buf) != p.pageSize {
		return errors.Errorf("write buffer is %d bytes, want %d", len(buf), p.pageSize)
	}
	if err := p.checkBounds(pageId); err != nil {
		return err
	}
	if _, err := p.fi.Seek(int64(pageId)*int64(p.pageSize), io.SeekStart); err != nil {
		return errors.Wrapf(err, "seek to page %d", pageId)
	}
	if _, err := p.fi.Write(buf); err != nil {
		return errors.Wrapf(err, "write page %d", pageId)
	}
	return nil
}

func (p *Pager) Sync() error {
	return errors.Wrapf(p.fi.Sync(), "sync %s", p.path)
}

func (p *Pager) Close() error {
	if err := p.fi.Close(); err != nil {
		log.WithError(err).Warnf("Closing %s failed.", p.path)
		return err
	}
	return nil
}

func (p *Pager) checkBounds(pageId common.PageId) error {
	if pageId < 0 {
		return errors.Wrapf(common.ErrOutOfRange, "page %d", pageId)
	}
	size, err := p.fileSize()
	if err != nil {
		return err
	}
	if int64(pageId)*int64(p.pageSize) >= size {
		return errors.Wrapf(common.ErrOutOfRange, "page %d, file has %d pages", pageId, size/int64(p.pageSize))
	}
	return nil
}

func (p *Pager) fileSize() (int64, error) {
	stat, err := p.fi.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "stat %s", p.path)
	}
	return stat.Size(), nil
}
