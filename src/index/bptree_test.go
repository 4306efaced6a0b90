package index

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"pagedb/src/tuple"
)

func rowOf(id int32, name string) tuple.Row {
	return tuple.Row{tuple.NewInt(id), tuple.NewVarchar(name)}
}

func TestBPTree_DuplicateKeysKeepInsertionOrder(t *testing.T) {
	tree := NewBPTree(DefaultOrder)
	tree.Insert(tuple.NewInt(1), rowOf(1, "A"))
	tree.Insert(tuple.NewInt(3), rowOf(3, "B"))
	tree.Insert(tuple.NewInt(3), rowOf(3, "C"))

	rows := tree.Find(tuple.NewInt(3))
	require.Len(t, rows, 2)
	require.Equal(t, "B", rows[0][1].Str)
	require.Equal(t, "C", rows[1][1].Str)

	require.Empty(t, tree.Find(tuple.NewInt(2)))
}

func TestBPTree_SplitsKeepAllKeys(t *testing.T) {
	// Order 4 forces plenty of leaf and inner splits.
	tree := NewBPTree(4)
	const n = 500
	perm := rand.New(rand.NewSource(1)).Perm(n)
	for _, k := range perm {
		tree.Insert(tuple.NewInt(int32(k)), rowOf(int32(k), "v"))
	}
	for k := 0; k < n; k++ {
		rows := tree.Find(tuple.NewInt(int32(k)))
		require.Len(t, rows, 1, "key %d", k)
		require.Equal(t, int64(k), rows[0][0].Int)
	}
}

func collectRange(tree *BPTree, lower, upper *tuple.Value, inclLower, inclUpper bool) []int64 {
	out := []int64{}
	cursor := tree.Range(lower, upper, inclLower, inclUpper)
	for {
		row, ok := cursor.Next()
		if !ok {
			return out
		}
		out = append(out, row[0].Int)
	}
}

// Range output must equal a brute-force filter-and-sort for every bound and
// inclusivity combination.
func TestBPTree_RangeAgainstBruteForce(t *testing.T) {
	tree := NewBPTree(4)
	keys := []int32{5, 1, 9, 3, 7, 3, 5, 11, 0, 2, 8, 5}
	for _, k := range keys {
		tree.Insert(tuple.NewInt(k), rowOf(k, "v"))
	}

	bruteForce := func(check func(int32) bool) []int64 {
		var out []int32
		for _, k := range keys {
			if check(k) {
				out = append(out, k)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i] < out[j] })
		res := make([]int64, len(out))
		for i, k := range out {
			res[i] = int64(k)
		}
		return res
	}

	bounds := []int32{-1, 0, 1, 3, 5, 6, 11, 12}
	for _, lo := range bounds {
		for _, hi := range bounds {
			for _, inclLo := range []bool{true, false} {
				for _, inclHi := range []bool{true, false} {
					lower := tuple.NewInt(lo)
					upper := tuple.NewInt(hi)
					got := collectRange(tree, &lower, &upper, inclLo, inclHi)
					want := bruteForce(func(k int32) bool {
						if k < lo || (k == lo && !inclLo) {
							return false
						}
						if k > hi || (k == hi && !inclHi) {
							return false
						}
						return true
					})
					require.Equal(t, want, got, "range [%d,%d] incl (%v,%v)", lo, hi, inclLo, inclHi)
				}
			}
		}
	}
}

func TestBPTree_OpenEndedRanges(t *testing.T) {
	tree := NewBPTree(4)
	for k := int32(0); k < 50; k++ {
		tree.Insert(tuple.NewInt(k), rowOf(k, "v"))
	}

	all := collectRange(tree, nil, nil, true, true)
	require.Len(t, all, 50)
	require.True(t, sort.SliceIsSorted(all, func(i, j int) bool { return all[i] < all[j] }))

	lower := tuple.NewInt(45)
	tail := collectRange(tree, &lower, nil, true, true)
	require.Equal(t, []int64{45, 46, 47, 48, 49}, tail)

	upper := tuple.NewInt(4)
	head := collectRange(tree, nil, &upper, true, false)
	require.Equal(t, []int64{0, 1, 2, 3}, head)
}

func TestBPTree_TextKeys(t *testing.T) {
	tree := NewBPTree(4)
	for _, name := range []string{"pear", "apple", "fig", "banana", "date"} {
		tree.Insert(tuple.NewVarchar(name), tuple.Row{tuple.NewVarchar(name)})
	}
	lower := tuple.NewVarchar("banana")
	upper := tuple.NewVarchar("fig")
	cursor := tree.Range(&lower, &upper, true, true)
	var got []string
	for {
		row, ok := cursor.Next()
		if !ok {
			break
		}
		got = append(got, row[0].Str)
	}
	require.Equal(t, []string{"banana", "date", "fig"}, got)
}

func TestBPTree_RangeThroughDuplicatesKeepsInsertionOrder(t *testing.T) {
	tree := NewBPTree(4)
	tree.Insert(tuple.NewInt(3), rowOf(3, "first"))
	tree.Insert(tuple.NewInt(1), rowOf(1, "x"))
	tree.Insert(tuple.NewInt(3), rowOf(3, "second"))
	tree.Insert(tuple.NewInt(3), rowOf(3, "third"))

	lower := tuple.NewInt(3)
	upper := tuple.NewInt(3)
	cursor := tree.Range(&lower, &upper, true, true)
	var got []string
	for {
		row, ok := cursor.Next()
		if !ok {
			break
		}
		got = append(got, row[1].Str)
	}
	require.Equal(t, []string{"first", "second", "third"}, got)
}
