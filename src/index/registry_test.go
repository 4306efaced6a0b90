package index

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pagedb/src/disk"
	"pagedb/src/table"
	"pagedb/src/tuple"
)

type mapSchemas map[string]tuple.Schema

func (m mapSchemas) Schema(tableName string) (tuple.Schema, bool) {
	s, ok := m[tableName]
	return s, ok
}

type registryFixture struct {
	dataDir  string
	handles  *disk.HandlePool
	meta     *MemMetaStore
	schemas  mapSchemas
	registry *Registry
	heap     *table.TableHeap
}

func newRegistryFixture(t *testing.T, dataDir string) (*registryFixture, func()) {
	require.NoError(t, os.MkdirAll(dataDir, 0755))
	handles := disk.NewHandlePool()
	opts := disk.HandleOptions{Capacity: 8}

	schema := entrySchema()
	tablePath := filepath.Join(dataDir, "users.tbl")
	handle, err := handles.Acquire(tablePath, opts)
	require.NoError(t, err)

	fx := &registryFixture{
		dataDir: dataDir,
		handles: handles,
		meta:    NewMemMetaStore(),
		schemas: mapSchemas{"users": schema},
		heap:    table.NewTableHeap(handle.Pool, schema),
	}
	fx.registry = NewRegistry(dataDir, handles, opts, fx.meta, fx.schemas)
	return fx, func() {
		handles.Release(tablePath)
		os.RemoveAll(dataDir)
	}
}

func (fx *registryFixture) fill(t *testing.T, n int) {
	for i := 0; i < n; i++ {
		_, err := fx.heap.Append(tuple.Row{
			tuple.NewInt(int32(i % 10)),
			tuple.NewVarchar(fmt.Sprintf("user-%03d", i)),
		})
		require.NoError(t, err)
	}
}

func TestRegistry_CreateAndFind(t *testing.T) {
	fx, cleanup := newRegistryFixture(t, "tmp-reg-create")
	defer cleanup()
	fx.fill(t, 50)

	ix, err := fx.registry.Create("users", "id", "idx_users_id", fx.heap)
	require.NoError(t, err)

	// 50 rows over 10 distinct ids: five per key, in insertion order.
	rows := ix.Find(tuple.NewInt(3))
	require.Len(t, rows, 5)
	require.Equal(t, "user-003", rows[0][1].Str)
	require.Equal(t, "user-043", rows[4][1].Str)

	// Backing file exists and is registered.
	rec, ok := fx.meta.GetIndex("users", "idx_users_id")
	require.True(t, ok)
	_, err = os.Stat(rec.Path)
	require.NoError(t, err)
}

func TestRegistry_CreateUnknownColumn(t *testing.T) {
	fx, cleanup := newRegistryFixture(t, "tmp-reg-badcol")
	defer cleanup()
	_, err := fx.registry.Create("users", "nope", "idx", fx.heap)
	require.Error(t, err)
}

// Building a tree, discarding it and rebuilding from the persisted log must
// give identical find and range results.
func TestRegistry_RebuildRoundTrip(t *testing.T) {
	fx, cleanup := newRegistryFixture(t, "tmp-reg-rebuild")
	defer cleanup()
	fx.fill(t, 120)

	original, err := fx.registry.Create("users", "id", "idx_users_id", fx.heap)
	require.NoError(t, err)

	// A fresh registry over the same metadata simulates a new session; the
	// tree must be rebuilt lazily from the entry log.
	rebuilt := NewRegistry(fx.dataDir, fx.handles, disk.HandleOptions{Capacity: 8}, fx.meta, fx.schemas)
	loaded, err := rebuilt.Load("users", "idx_users_id")
	require.NoError(t, err)

	for key := int32(0); key < 10; key++ {
		require.Equal(t, original.Find(tuple.NewInt(key)), loaded.Find(tuple.NewInt(key)))
	}
	lower, upper := tuple.NewInt(2), tuple.NewInt(7)
	collect := func(ix *Index) []string {
		var out []string
		cursor := ix.Range(&lower, &upper, true, false)
		for {
			row, ok := cursor.Next()
			if !ok {
				return out
			}
			out = append(out, row[1].Str)
		}
	}
	require.Equal(t, collect(original), collect(loaded))
}

func TestRegistry_LoadIsCached(t *testing.T) {
	fx, cleanup := newRegistryFixture(t, "tmp-reg-cache")
	defer cleanup()
	fx.fill(t, 10)

	_, err := fx.registry.Create("users", "id", "idx_users_id", fx.heap)
	require.NoError(t, err)
	first, err := fx.registry.Load("users", "idx_users_id")
	require.NoError(t, err)
	second, err := fx.registry.Load("users", "idx_users_id")
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestRegistry_InsertThroughIndexPersists(t *testing.T) {
	fx, cleanup := newRegistryFixture(t, "tmp-reg-insert")
	defer cleanup()
	fx.fill(t, 5)

	ix, err := fx.registry.Create("users", "id", "idx_users_id", fx.heap)
	require.NoError(t, err)
	extra := tuple.Row{tuple.NewInt(42), tuple.NewVarchar("late-arrival")}
	require.NoError(t, ix.Insert(extra[0], extra))

	rebuilt := NewRegistry(fx.dataDir, fx.handles, disk.HandleOptions{Capacity: 8}, fx.meta, fx.schemas)
	loaded, err := rebuilt.Load("users", "idx_users_id")
	require.NoError(t, err)
	rows := loaded.Find(tuple.NewInt(42))
	require.Len(t, rows, 1)
	require.Equal(t, "late-arrival", rows[0][1].Str)
}

func TestRegistry_FindByColumn(t *testing.T) {
	fx, cleanup := newRegistryFixture(t, "tmp-reg-bycol")
	defer cleanup()
	fx.fill(t, 5)

	_, err := fx.registry.Create("users", "id", "idx_users_id", fx.heap)
	require.NoError(t, err)

	rec, ok := fx.registry.FindByColumn("users", "id")
	require.True(t, ok)
	require.Equal(t, "idx_users_id", rec.Name)
	_, ok = fx.registry.FindByColumn("users", "name")
	require.False(t, ok)
}

// Drop removes metadata and releases the handle but leaves the backing file
// on disk; cleaning it up is the operator's business.
func TestRegistry_DropLeavesFile(t *testing.T) {
	fx, cleanup := newRegistryFixture(t, "tmp-reg-drop")
	defer cleanup()
	fx.fill(t, 5)

	ix, err := fx.registry.Create("users", "id", "idx_users_id", fx.heap)
	require.NoError(t, err)
	path := ix.Record.Path

	require.NoError(t, fx.registry.Drop("users", "idx_users_id"))
	_, ok := fx.meta.GetIndex("users", "idx_users_id")
	require.False(t, ok)
	require.False(t, fx.handles.Open(path))
	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = fx.registry.Load("users", "idx_users_id")
	require.Error(t, err)
}

func TestRegistry_DuplicateCreateRejected(t *testing.T) {
	fx, cleanup := newRegistryFixture(t, "tmp-reg-dup")
	defer cleanup()
	fx.fill(t, 5)

	_, err := fx.registry.Create("users", "id", "idx_users_id", fx.heap)
	require.NoError(t, err)
	_, err = fx.registry.Create("users", "id", "idx_users_id", fx.heap)
	require.Error(t, err)
}
