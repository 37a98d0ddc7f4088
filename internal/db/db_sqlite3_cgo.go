//go:build cgo && sqlite3_cgo

package db

import (
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

// Built with -tags sqlite3_cgo: the C amalgamation through cgo.
const (
	driverID   = "mattn/go-sqlite3"
	driverName = "sqlite3"
)

// DSN parameters go-sqlite3 applies on every connection. Other pragmas are
// executed once after connecting and so only reach the first connection.
var dsnParams = map[string]string{
	"journal_mode": "_journal_mode",
	"busy_timeout": "_busy_timeout",
	"synchronous":  "_synchronous",
	"cache_size":   "_cache_size",
	"foreign_keys": "_foreign_keys",
	"locking_mode": "_locking_mode",
}

func buildDSN(path string, pragmas []Pragma) string {
	q := url.Values{}
	q.Set("_txlock", "immediate")
	for _, p := range pragmas {
		if param, ok := dsnParams[p.Name]; ok {
			q.Set(param, p.Value)
		}
	}
	if path == MemoryPath {
		return "file::memory:?" + q.Encode()
	}
	q.Set("mode", "rwc")
	return "file:" + path + "?" + q.Encode()
}
