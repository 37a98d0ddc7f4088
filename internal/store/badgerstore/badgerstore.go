// Package badgerstore emulates a column-family table on an embedded Badger database.
//
// Every cell is one Badger key laid out as
//
//	uint32 len(row) | row | family | 0x00 | qualifier
//
// so all cells of a row share a prefix and Badger's key order yields cells
// ordered by family, then by qualifier bytes.
package badgerstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v3"
	"github.com/openmined/aclstore/internal/store"
)

// config holds internal configuration for store creation
type config struct {
	dir      string
	inMemory bool
	logger   *slog.Logger
}

// Option configures the store.
type Option func(*config)

// WithDir sets the directory holding the database files.
func WithDir(dir string) Option {
	return func(c *config) {
		c.dir = dir
		c.inMemory = false
	}
}

// WithInMemory keeps the database in memory only.
func WithInMemory() Option {
	return func(c *config) {
		c.dir = ""
		c.inMemory = true
	}
}

// WithLogger routes Badger's internal logging to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

type badgerStore struct {
	db *badger.DB
}

// New opens a Badger database. Without options it is in memory.
func New(opts ...Option) (store.Store, error) {
	cfg := &config{inMemory: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	bopts := badger.DefaultOptions(cfg.dir).
		WithInMemory(cfg.inMemory).
		WithLogger(&slogLogger{logger: cfg.logger.With("component", "badger")})

	slog.Info("db", "driver", "badger", "path", cfg.dir, "inMemory", cfg.inMemory)
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &badgerStore{db: db}, nil
}

func (s *badgerStore) Table(ctx context.Context) (store.Table, error) {
	if s.db.IsClosed() {
		return nil, errors.New("badger store is closed")
	}
	return &badgerTable{db: s.db}, nil
}

// EnsureSchema is a no-op: families exist implicitly.
func (s *badgerStore) EnsureSchema(ctx context.Context, families ...string) error {
	for _, f := range families {
		if strings.IndexByte(f, 0) >= 0 {
			return fmt.Errorf("family %q contains a NUL byte", f)
		}
	}
	return nil
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}

type badgerTable struct {
	db *badger.DB
}

func (t *badgerTable) Exists(ctx context.Context, key []byte) (bool, error) {
	prefix := rowPrefix(key)
	found := false
	err := t.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		it.Seek(prefix)
		found = it.ValidForPrefix(prefix)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("badger exists: %w", err)
	}
	return found, nil
}

func (t *badgerTable) ReadRows(ctx context.Context, keys [][]byte) ([]store.Row, error) {
	var rows []store.Row
	err := t.db.View(func(txn *badger.Txn) error {
		for _, key := range keys {
			cells, err := readCells(txn, key)
			if err != nil {
				return err
			}
			if len(cells) > 0 {
				rows = append(rows, store.NewRow(key, cells))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger read rows: %w", err)
	}
	return rows, nil
}

func (t *badgerTable) Put(ctx context.Context, key []byte, cells []store.Cell) error {
	err := t.db.Update(func(txn *badger.Txn) error {
		for _, c := range cells {
			if err := txn.Set(cellKey(key, c.Family, c.Qualifier), c.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	return nil
}

func (t *badgerTable) DeleteRow(ctx context.Context, key []byte) error {
	prefix := rowPrefix(key)
	err := t.db.Update(func(txn *badger.Txn) error {
		var keys [][]byte
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger delete row: %w", err)
	}
	return nil
}

// Close is a no-op: table handles share the database.
func (t *badgerTable) Close() error {
	return nil
}

func readCells(txn *badger.Txn, key []byte) ([]store.Cell, error) {
	prefix := rowPrefix(key)
	it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 16, Prefix: prefix})
	defer it.Close()

	var cells []store.Cell
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		family, qualifier, err := splitCellKey(item.KeyCopy(nil)[len(prefix):])
		if err != nil {
			return nil, err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		cells = append(cells, store.Cell{Family: family, Qualifier: qualifier, Value: value})
	}
	return cells, nil
}

func rowPrefix(key []byte) []byte {
	prefix := make([]byte, 4, 4+len(key))
	binary.BigEndian.PutUint32(prefix, uint32(len(key)))
	return append(prefix, key...)
}

func cellKey(key []byte, family string, qualifier []byte) []byte {
	k := rowPrefix(key)
	k = append(k, family...)
	k = append(k, 0)
	return append(k, qualifier...)
}

func splitCellKey(rest []byte) (string, []byte, error) {
	i := bytes.IndexByte(rest, 0)
	if i < 0 {
		return "", nil, fmt.Errorf("corrupt cell key %q", rest)
	}
	return string(rest[:i]), rest[i+1:], nil
}

// slogLogger adapts slog to badger.Logger.
type slogLogger struct {
	logger *slog.Logger
}

func (l *slogLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *slogLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *slogLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *slogLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

var _ store.Store = (*badgerStore)(nil)
