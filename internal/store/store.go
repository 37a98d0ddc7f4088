// Package store defines the column-family table contract the ACL repository is
// written against. Backends live in sub-packages.
package store

import (
	"bytes"
	"context"
	"sort"
)

// Cell is a single qualifier/value pair inside a column family.
type Cell struct {
	Family    string
	Qualifier []byte
	Value     []byte
}

// Row is a stored row. Families maps a family name to its cells, ordered by
// qualifier bytes.
type Row struct {
	Key      []byte
	Families map[string][]Cell
}

// Empty reports whether the row holds no cells.
func (r *Row) Empty() bool {
	if r == nil {
		return true
	}
	for _, cells := range r.Families {
		if len(cells) > 0 {
			return false
		}
	}
	return true
}

// Family returns the cells of family, ordered by qualifier.
func (r *Row) Family(family string) []Cell {
	if r == nil {
		return nil
	}
	return r.Families[family]
}

// Value returns the value of a single cell.
func (r *Row) Value(family string, qualifier []byte) ([]byte, bool) {
	for _, c := range r.Family(family) {
		if bytes.Equal(c.Qualifier, qualifier) {
			return c.Value, true
		}
	}
	return nil, false
}

// NewRow groups cells by family and sorts each family by qualifier.
func NewRow(key []byte, cells []Cell) Row {
	row := Row{Key: key, Families: make(map[string][]Cell)}
	for _, c := range cells {
		row.Families[c.Family] = append(row.Families[c.Family], c)
	}
	for _, fc := range row.Families {
		SortCells(fc)
	}
	return row
}

// SortCells orders cells by qualifier bytes.
func SortCells(cells []Cell) {
	sort.SliceStable(cells, func(i, j int) bool {
		return bytes.Compare(cells[i].Qualifier, cells[j].Qualifier) < 0
	})
}

// Table is a handle on the ACL table. Handles are acquired per operation from a
// Store and must be closed on every exit path.
//
// Implementations wrap I/O failures; callers wrap them once more with
// acl.ErrStorageIO.
type Table interface {
	// Exists reports whether any cell is stored under key.
	Exists(ctx context.Context, key []byte) (bool, error)

	// ReadRows fetches the given rows in one round trip. Rows without cells are
	// omitted; the order of the result is unspecified.
	ReadRows(ctx context.Context, keys [][]byte) ([]Row, error)

	// Put writes cells into the row at key, overwriting cells with the same
	// family and qualifier.
	Put(ctx context.Context, key []byte, cells []Cell) error

	// DeleteRow removes every cell of the row at key. Deleting a missing row is
	// not an error.
	DeleteRow(ctx context.Context, key []byte) error

	// Close releases the handle.
	Close() error
}

// Store hands out table handles.
type Store interface {
	// Table acquires a handle on the ACL table.
	Table(ctx context.Context) (Table, error)

	// EnsureSchema creates the table and the given column families if missing.
	EnsureSchema(ctx context.Context, families ...string) error

	// Close releases the underlying client.
	Close() error
}
