// Package btstore stores ACL rows in Google Cloud Bigtable.
package btstore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"cloud.google.com/go/bigtable"
	"github.com/openmined/aclstore/internal/store"
	"google.golang.org/api/option"
)

// DefaultTable is the name of the Bigtable table holding ACL rows.
const DefaultTable = "acls"

// Options is a set of configuration options for Bigtable storage.
type Options struct {
	// Project is the name of the project to connect to.
	Project string
	// Instance is the name of the Bigtable instance.
	Instance string
	// Table is the name of the table to use for ACLs.
	Table string
	// ClientOptions are additional client options to use when instantiating the
	// client instances.
	ClientOptions []option.ClientOption
}

// btStore is a store.Store backed by a Bigtable client.
type btStore struct {
	opts   Options
	client *bigtable.Client
	admin  *bigtable.AdminClient
}

// New connects to a Bigtable instance.
//
// The returned Store closes both clients when its Close method is called.
func New(ctx context.Context, opts Options) (store.Store, error) {
	if opts.Table == "" {
		opts.Table = DefaultTable
	}

	client, err := bigtable.NewClient(ctx, opts.Project, opts.Instance, opts.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	admin, err := bigtable.NewAdminClient(ctx, opts.Project, opts.Instance, opts.ClientOptions...)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create admin client: %w", err)
	}

	slog.Debug("bigtable store", "project", opts.Project, "instance", opts.Instance, "table", opts.Table)
	return &btStore{opts: opts, client: client, admin: admin}, nil
}

func (s *btStore) Table(ctx context.Context) (store.Table, error) {
	return &btTable{Table: s.client.Open(s.opts.Table)}, nil
}

// EnsureSchema creates the table and any missing families. Every family keeps a
// single cell version, since rows are rewritten rather than versioned.
func (s *btStore) EnsureSchema(ctx context.Context, families ...string) error {
	tables, err := s.admin.Tables(ctx)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}

	if !slices.Contains(tables, s.opts.Table) {
		slog.Info("bigtable create table", "table", s.opts.Table)
		if err := s.admin.CreateTable(ctx, s.opts.Table); err != nil {
			return fmt.Errorf("create table %q: %w", s.opts.Table, err)
		}
	}

	info, err := s.admin.TableInfo(ctx, s.opts.Table)
	if err != nil {
		return fmt.Errorf("table info %q: %w", s.opts.Table, err)
	}

	for _, family := range families {
		if slices.Contains(info.Families, family) {
			continue
		}
		slog.Info("bigtable create family", "table", s.opts.Table, "family", family)
		if err := s.admin.CreateColumnFamily(ctx, s.opts.Table, family); err != nil {
			return fmt.Errorf("create family %q: %w", family, err)
		}
		if err := s.admin.SetGCPolicy(ctx, s.opts.Table, family, bigtable.MaxVersionsPolicy(1)); err != nil {
			return fmt.Errorf("set gc policy on %q: %w", family, err)
		}
	}
	return nil
}

func (s *btStore) Close() error {
	adminErr := s.admin.Close()
	if err := s.client.Close(); err != nil {
		return err
	}
	return adminErr
}

// btTable is a store.Table on top of a Bigtable table handle.
type btTable struct {
	*bigtable.Table
}

func (t *btTable) Exists(ctx context.Context, key []byte) (bool, error) {
	row, err := t.ReadRow(ctx, string(key), bigtable.RowFilter(bigtable.ChainFilters(
		bigtable.CellsPerRowLimitFilter(1),
		bigtable.StripValueFilter(),
	)))
	if err != nil {
		return false, fmt.Errorf("bigtable read row: %w", err)
	}
	return len(row) > 0, nil
}

func (t *btTable) ReadRows(ctx context.Context, keys [][]byte) ([]store.Row, error) {
	// an empty RowList would scan the whole table
	if len(keys) == 0 {
		return nil, nil
	}

	rowList := make(bigtable.RowList, 0, len(keys))
	for _, k := range keys {
		rowList = append(rowList, string(k))
	}

	var rows []store.Row
	err := t.Table.ReadRows(ctx, rowList, func(r bigtable.Row) bool {
		if row := toRow(r); !row.Empty() {
			rows = append(rows, row)
		}
		return true
	}, bigtable.RowFilter(bigtable.LatestNFilter(1)))
	if err != nil {
		return nil, fmt.Errorf("bigtable read rows: %w", err)
	}
	return rows, nil
}

func (t *btTable) Put(ctx context.Context, key []byte, cells []store.Cell) error {
	if len(cells) == 0 {
		return nil
	}

	ts := bigtable.Now().TruncateToMilliseconds()
	m := bigtable.NewMutation()
	for _, c := range cells {
		m.Set(c.Family, string(c.Qualifier), ts, c.Value)
	}

	if err := t.Apply(ctx, string(key), m); err != nil {
		return fmt.Errorf("bigtable apply: %w", err)
	}
	return nil
}

func (t *btTable) DeleteRow(ctx context.Context, key []byte) error {
	m := bigtable.NewMutation()
	m.DeleteRow()

	if err := t.Apply(ctx, string(key), m); err != nil {
		return fmt.Errorf("bigtable delete row: %w", err)
	}
	return nil
}

// Close is a no-op: table handles share the client connection.
func (t *btTable) Close() error {
	return nil
}

// toRow converts a Bigtable row. ReadItem columns are "family:qualifier".
func toRow(r bigtable.Row) store.Row {
	var cells []store.Cell
	for family, items := range r {
		for _, item := range items {
			cells = append(cells, store.Cell{
				Family:    family,
				Qualifier: []byte(strings.TrimPrefix(item.Column, family+":")),
				Value:     item.Value,
			})
		}
	}
	return store.NewRow([]byte(r.Key()), cells)
}

var _ store.Store = (*btStore)(nil)
