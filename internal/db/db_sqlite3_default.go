//go:build !(cgo && sqlite3_cgo)

package db

import (
	"fmt"
	"net/url"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// The default driver runs SQLite compiled to wasm, so CGO_ENABLED=0 builds
// still get a store. A sqlite3_cgo build without cgo falls back here too.
const (
	driverID   = "ncruces/go-sqlite3"
	driverName = "sqlite3"
)

// buildDSN passes every pragma as a _pragma parameter, which the driver runs
// on each new connection.
func buildDSN(path string, pragmas []Pragma) string {
	q := url.Values{}
	q.Set("_txlock", "immediate")
	for _, p := range pragmas {
		q.Add("_pragma", fmt.Sprintf("%s(%s)", p.Name, p.Value))
	}
	if path == MemoryPath {
		return "file::memory:?" + q.Encode()
	}
	q.Set("mode", "rwc")
	return "file:" + path + "?" + q.Encode()
}
