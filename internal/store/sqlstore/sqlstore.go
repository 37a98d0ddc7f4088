// Package sqlstore keeps the ACL table in a single SQLite table of cells.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/openmined/aclstore/internal/db"
	"github.com/openmined/aclstore/internal/store"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cells (
	row_key BLOB NOT NULL,
	family TEXT NOT NULL,
	qualifier BLOB NOT NULL,
	value BLOB NOT NULL,
	PRIMARY KEY (row_key, family, qualifier)
) WITHOUT ROWID;
`

// readRowsSQL selects the cells of the rows whose hex encoded keys are listed
// in a JSON array. unhex needs SQLite 3.41 or later.
const readRowsSQL = `
SELECT row_key, family, qualifier, value FROM cells
WHERE row_key IN (SELECT unhex(value) FROM json_each(?))
ORDER BY row_key, family, qualifier
`

type cellRow struct {
	RowKey    []byte `db:"row_key"`
	Family    string `db:"family"`
	Qualifier []byte `db:"qualifier"`
	Value     []byte `db:"value"`
}

type sqlStore struct {
	db *sqlx.DB
}

// New opens a SQLite database with the given options.
func New(opts ...db.SqliteOption) (store.Store, error) {
	conn, err := db.NewSqliteDB(opts...)
	if err != nil {
		return nil, err
	}
	return &sqlStore{db: conn}, nil
}

// NewFromDB wraps an open database. The store takes ownership of it.
func NewFromDB(conn *sqlx.DB) store.Store {
	return &sqlStore{db: conn}
}

// Table pins one pooled connection for the lifetime of the handle.
func (s *sqlStore) Table(ctx context.Context) (store.Table, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &sqlTable{conn: conn}, nil
}

// EnsureSchema creates the cells table. Families need no declaration.
func (s *sqlStore) EnsureSchema(ctx context.Context, families ...string) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

type sqlTable struct {
	conn *sqlx.Conn
}

func (t *sqlTable) Exists(ctx context.Context, key []byte) (bool, error) {
	var found bool
	err := t.conn.GetContext(ctx, &found, "SELECT EXISTS(SELECT 1 FROM cells WHERE row_key = ?)", key)
	if err != nil {
		return false, fmt.Errorf("sqlite exists: %w", err)
	}
	return found, nil
}

// ReadRows fetches every key in one statement. The keys travel as a single JSON
// array of hex strings, so the bound parameter limit never splits the read.
func (t *sqlTable) ReadRows(ctx context.Context, keys [][]byte) ([]store.Row, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	hexKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		hexKeys = append(hexKeys, hex.EncodeToString(k))
	}
	param, err := json.Marshal(hexKeys)
	if err != nil {
		return nil, fmt.Errorf("sqlite encode keys: %w", err)
	}

	var cells []cellRow
	if err := t.conn.SelectContext(ctx, &cells, readRowsSQL, string(param)); err != nil {
		return nil, fmt.Errorf("sqlite read rows: %w", err)
	}

	byKey := make(map[string][]store.Cell)
	var order []string
	for _, c := range cells {
		k := string(c.RowKey)
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], store.Cell{Family: c.Family, Qualifier: c.Qualifier, Value: c.Value})
	}

	rows := make([]store.Row, 0, len(order))
	for _, k := range order {
		rows = append(rows, store.NewRow([]byte(k), byKey[k]))
	}
	return rows, nil
}

func (t *sqlTable) Put(ctx context.Context, key []byte, cells []store.Cell) error {
	if len(cells) == 0 {
		return nil
	}

	tx, err := t.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx,
		`INSERT OR REPLACE INTO cells (row_key, family, qualifier, value) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range cells {
		// NOT NULL columns reject a nil slice
		value := c.Value
		if value == nil {
			value = []byte{}
		}
		if _, err := stmt.ExecContext(ctx, key, c.Family, c.Qualifier, value); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert cell %s:%s: %w", c.Family, c.Qualifier, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *sqlTable) DeleteRow(ctx context.Context, key []byte) error {
	if _, err := t.conn.ExecContext(ctx, "DELETE FROM cells WHERE row_key = ?", key); err != nil {
		return fmt.Errorf("sqlite delete row: %w", err)
	}
	return nil
}

// Close returns the pinned connection to the pool.
func (t *sqlTable) Close() error {
	if err := t.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}

var _ store.Store = (*sqlStore)(nil)
