// Package storetest holds a conformance suite every store backend must pass.
package storetest

import (
	"context"
	"sort"
	"testing"

	"github.com/openmined/aclstore/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Families are the column families created for the suite.
var Families = []string{"acl", "aces"}

// Run runs the suite. newStore must return an empty store whose schema has been
// created for Families.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("PutExistsDelete", func(t *testing.T) {
		testPutExistsDelete(t, newStore(t))
	})
	t.Run("ReadRowsBatch", func(t *testing.T) {
		testReadRowsBatch(t, newStore(t))
	})
	t.Run("QualifierOrder", func(t *testing.T) {
		testQualifierOrder(t, newStore(t))
	})
	t.Run("Overwrite", func(t *testing.T) {
		testOverwrite(t, newStore(t))
	})
	t.Run("BinaryKeys", func(t *testing.T) {
		testBinaryKeys(t, newStore(t))
	})
	t.Run("DeleteMissing", func(t *testing.T) {
		testDeleteMissing(t, newStore(t))
	})
}

func openTable(t *testing.T, s store.Store) store.Table {
	t.Helper()
	tbl, err := s.Table(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { tbl.Close() })
	return tbl
}

func header(value string) []store.Cell {
	return []store.Cell{
		{Family: "acl", Qualifier: []byte("type"), Value: []byte(value)},
	}
}

func testPutExistsDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	tbl := openTable(t, s)
	key := []byte("row-1")

	ok, err := tbl.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tbl.Put(ctx, key, header("Document")))

	ok, err = tbl.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, tbl.DeleteRow(ctx, key))

	ok, err = tbl.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	rows, err := tbl.ReadRows(ctx, [][]byte{key})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func testReadRowsBatch(t *testing.T, s store.Store) {
	ctx := context.Background()
	tbl := openTable(t, s)

	require.NoError(t, tbl.Put(ctx, []byte("a"), header("A")))
	require.NoError(t, tbl.Put(ctx, []byte("c"), header("C")))

	rows, err := tbl.ReadRows(ctx, [][]byte{[]byte("a"), []byte("b"), []byte("c")})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	sort.Slice(rows, func(i, j int) bool { return string(rows[i].Key) < string(rows[j].Key) })
	assert.Equal(t, []byte("a"), rows[0].Key)
	assert.Equal(t, []byte("c"), rows[1].Key)

	v, ok := rows[1].Value("acl", []byte("type"))
	require.True(t, ok)
	assert.Equal(t, []byte("C"), v)

	rows, err = tbl.ReadRows(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func testQualifierOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	tbl := openTable(t, s)
	key := []byte("ordered")

	// written out of order on purpose
	qualifiers := []string{"0000000010", "0000000002", "0000000000", "0000000001", "0000000009"}
	cells := header("Document")
	for _, q := range qualifiers {
		cells = append(cells, store.Cell{Family: "aces", Qualifier: []byte(q), Value: []byte("v" + q)})
	}
	require.NoError(t, tbl.Put(ctx, key, cells))

	rows, err := tbl.ReadRows(ctx, [][]byte{key})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	var got []string
	for _, c := range rows[0].Family("aces") {
		assert.Equal(t, "aces", c.Family)
		assert.Equal(t, "v"+string(c.Qualifier), string(c.Value))
		got = append(got, string(c.Qualifier))
	}
	assert.Equal(t, []string{"0000000000", "0000000001", "0000000002", "0000000009", "0000000010"}, got)
	assert.Len(t, rows[0].Family("acl"), 1)
}

func testOverwrite(t *testing.T, s store.Store) {
	ctx := context.Background()
	tbl := openTable(t, s)
	key := []byte("row")

	require.NoError(t, tbl.Put(ctx, key, header("first")))
	require.NoError(t, tbl.Put(ctx, key, header("second")))

	rows, err := tbl.ReadRows(ctx, [][]byte{key})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Len(t, rows[0].Family("acl"), 1)

	v, ok := rows[0].Value("acl", []byte("type"))
	require.True(t, ok)
	assert.Equal(t, []byte("second"), v)
}

func testBinaryKeys(t *testing.T, s store.Store) {
	ctx := context.Background()
	tbl := openTable(t, s)

	// a key that is a prefix of another must not see the other's cells
	short := []byte{0x00, 0x00, 0x00, 0x01}
	long := []byte{0x00, 0x00, 0x00, 0x01, 0x00}

	require.NoError(t, tbl.Put(ctx, short, header("short")))
	require.NoError(t, tbl.Put(ctx, long, header("long")))

	rows, err := tbl.ReadRows(ctx, [][]byte{short})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, short, rows[0].Key)
	require.Len(t, rows[0].Family("acl"), 1)

	v, _ := rows[0].Value("acl", []byte("type"))
	assert.Equal(t, []byte("short"), v)

	require.NoError(t, tbl.DeleteRow(ctx, short))
	ok, err := tbl.Exists(ctx, long)
	require.NoError(t, err)
	assert.True(t, ok)
}

func testDeleteMissing(t *testing.T, s store.Store) {
	tbl := openTable(t, s)
	assert.NoError(t, tbl.DeleteRow(context.Background(), []byte("never-written")))
}
