package index

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pagedb/src/disk"
	"pagedb/src/table"
	"pagedb/src/tuple"
)

// IndexRecord is the metadata row for one index, persisted by the external
// catalog collaborator.
type IndexRecord struct {
	Table  string
	Column string
	Name   string
	Path   string
}

// MetaStore is the boundary to the catalog's index bookkeeping. The storage
// core only reads and writes records through it; validation and persistence
// are the collaborator's business.
type MetaStore interface {
	AddIndex(rec IndexRecord) error
	GetIndex(table, name string) (IndexRecord, bool)
	FindByColumn(table, column string) (IndexRecord, bool)
	DropIndex(table, name string) error
	ListIndexes(table string) []IndexRecord
}

// SchemaProvider supplies table schemas, again a catalog concern.
type SchemaProvider interface {
	Schema(table string) (tuple.Schema, bool)
}

// Index couples the in-memory tree with its persisted entry log: Insert
// writes both, lookups hit only the tree.
type Index struct {
	Record IndexRecord
	tree   *BPTree
	logSt  *EntryLog
}

func (ix *Index) Insert(key tuple.Value, row tuple.Row) error {
	if err := ix.logSt.Append(key, row); err != nil {
		return err
	}
	ix.tree.Insert(key, row)
	return nil
}

func (ix *Index) Find(key tuple.Value) []tuple.Row {
	return ix.tree.Find(key)
}

func (ix *Index) Range(lower, upper *tuple.Value, inclLower, inclUpper bool) *Cursor {
	return ix.tree.Range(lower, upper, inclLower, inclUpper)
}

func (ix *Index) Tree() *BPTree { return ix.tree }

// Registry maps (table, column, index name) to backing index files and hands
// out lazily built trees. One Registry per data directory, injected where
// needed.
type Registry struct {
	dataDir string
	handles *disk.HandlePool
	opts    disk.HandleOptions
	meta    MetaStore
	schemas SchemaProvider

	resident map[string]*Index
	mu       sync.Mutex
}

func NewRegistry(dataDir string, handles *disk.HandlePool, opts disk.HandleOptions, meta MetaStore, schemas SchemaProvider) *Registry {
	return &Registry{
		dataDir:  dataDir,
		handles:  handles,
		opts:     opts,
		meta:     meta,
		schemas:  schemas,
		resident: make(map[string]*Index),
	}
}

func (r *Registry) key(tableName, name string) string {
	return tableName + "\x00" + name
}

// IndexPath names the backing file for an index under the data directory.
func (r *Registry) IndexPath(tableName, name string) string {
	return filepath.Join(r.dataDir, fmt.Sprintf("__idx__%s__%s.idx", tableName, name))
}

// Create builds a new index over one column: full scan of the table heap,
// every (column value, row) pair inserted into a fresh tree and persisted,
// then the mapping recorded in the metadata store.
func (r *Registry) Create(tableName, column, name string, heap *table.TableHeap) (*Index, error) {
	schema := heap.Schema()
	colIdx := schema.ColumnIndex(column)
	if colIdx < 0 {
		return nil, errors.Errorf("table %s has no column %s", tableName, column)
	}
	if _, ok := r.meta.GetIndex(tableName, name); ok {
		return nil, errors.Errorf("index %s on %s already exists", name, tableName)
	}

	path := r.IndexPath(tableName, name)
	handle, err := r.handles.Acquire(path, r.opts)
	if err != nil {
		return nil, err
	}

	ix := &Index{
		Record: IndexRecord{Table: tableName, Column: column, Name: name, Path: path},
		tree:   NewBPTree(DefaultOrder),
		logSt:  NewEntryLog(handle.Pool, schema),
	}

	it, err := heap.Iterator()
	if err != nil {
		r.handles.Release(path)
		return nil, err
	}
	for {
		row, _, ok, err := it.Next()
		if err != nil {
			r.handles.Release(path)
			return nil, err
		}
		if !ok {
			break
		}
		if err := ix.Insert(row[colIdx], row); err != nil {
			r.handles.Release(path)
			return nil, err
		}
	}
	if err := handle.Pool.FlushAll(); err != nil {
		r.handles.Release(path)
		return nil, err
	}
	if err := r.meta.AddIndex(ix.Record); err != nil {
		r.handles.Release(path)
		return nil, err
	}

	r.mu.Lock()
	r.resident[r.key(tableName, name)] = ix
	r.mu.Unlock()
	return ix, nil
}

// Load returns the resident index, or rebuilds the tree by replaying the
// persisted entry log. The rebuild happens at most once per session per
// index.
func (r *Registry) Load(tableName, name string) (*Index, error) {
	r.mu.Lock()
	if ix, ok := r.resident[r.key(tableName, name)]; ok {
		r.mu.Unlock()
		return ix, nil
	}
	r.mu.Unlock()

	rec, ok := r.meta.GetIndex(tableName, name)
	if !ok {
		return nil, errors.Errorf("no index %s on table %s", name, tableName)
	}
	schema, ok := r.schemas.Schema(tableName)
	if !ok {
		return nil, errors.Errorf("no schema for table %s", tableName)
	}

	handle, err := r.handles.Acquire(rec.Path, r.opts)
	if err != nil {
		return nil, err
	}
	ix := &Index{
		Record: rec,
		tree:   NewBPTree(DefaultOrder),
		logSt:  NewEntryLog(handle.Pool, schema),
	}
	if err := ix.logSt.Replay(func(key tuple.Value, row tuple.Row) error {
		ix.tree.Insert(key, row)
		return nil
	}); err != nil {
		r.handles.Release(rec.Path)
		return nil, err
	}

	r.mu.Lock()
	r.resident[r.key(tableName, name)] = ix
	r.mu.Unlock()
	return ix, nil
}

// FindByColumn exposes the catalog's column-to-index mapping so a planner
// can turn a sargable predicate into an index lookup.
func (r *Registry) FindByColumn(tableName, column string) (IndexRecord, bool) {
	return r.meta.FindByColumn(tableName, column)
}

// Invalidate discards the resident tree so the next Load replays the file.
// Used after an out-of-band rebuild of the entry log.
func (r *Registry) Invalidate(tableName, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.resident[r.key(tableName, name)]; ok {
		delete(r.resident, r.key(tableName, name))
		r.handles.Release(r.IndexPath(tableName, name))
	}
}

// Drop removes the metadata record, releases the handle pool entry and
// discards the in-memory tree. The backing file itself is not deleted;
// cleaning it up is the operator's responsibility.
func (r *Registry) Drop(tableName, name string) error {
	rec, ok := r.meta.GetIndex(tableName, name)
	if !ok {
		return errors.Errorf("no index %s on table %s", name, tableName)
	}
	if err := r.meta.DropIndex(tableName, name); err != nil {
		return err
	}

	r.mu.Lock()
	_, resident := r.resident[r.key(tableName, name)]
	delete(r.resident, r.key(tableName, name))
	r.mu.Unlock()

	if resident {
		// Release before anyone removes the file, so no write-back lands
		// on a deleted file.
		if err := r.handles.Release(rec.Path); err != nil {
			return err
		}
	}
	log.Debugf("Dropped index %s on %s; backing file %s left in place.", name, tableName, rec.Path)
	return nil
}

// MemMetaStore is an in-process MetaStore, enough for a single session and
// for tests. A real catalog persists these records in its system tables.
type MemMetaStore struct {
	recs map[string]IndexRecord
	mu   sync.Mutex
}

func NewMemMetaStore() *MemMetaStore {
	return &MemMetaStore{recs: make(map[string]IndexRecord)}
}

func (m *MemMetaStore) key(table, name string) string { return table + "\x00" + name }

func (m *MemMetaStore) AddIndex(rec IndexRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(rec.Table, rec.Name)
	if _, ok := m.recs[k]; ok {
		return errors.Errorf("index %s on %s already registered", rec.Name, rec.Table)
	}
	m.recs[k] = rec
	return nil
}

func (m *MemMetaStore) GetIndex(table, name string) (IndexRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[m.key(table, name)]
	return rec, ok
}

func (m *MemMetaStore) FindByColumn(table, column string) (IndexRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.recs {
		if rec.Table == table && rec.Column == column {
			return rec, true
		}
	}
	return IndexRecord{}, false
}

func (m *MemMetaStore) DropIndex(table, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, m.key(table, name))
	return nil
}

func (m *MemMetaStore) ListIndexes(table string) []IndexRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []IndexRecord
	for _, rec := range m.recs {
		if rec.Table == table {
			out = append(out, rec)
		}
	}
	return out
}
