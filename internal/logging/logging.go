// Package logging builds the slog handlers of the aclstore binary: a colored
// console handler and an optional JSON log file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/aclstore/internal/fsutil"
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// Console writes human readable records to w. Colors are used only when w is a
// terminal.
func Console(w io.Writer, level slog.Leveler) slog.Handler {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: timeFormat,
		NoColor:    noColor,
	})
}

// File appends JSON records to the file at path, creating it and its directory
// when missing. The caller closes the returned file.
func File(path string, level slog.Leveler) (slog.Handler, io.Closer, error) {
	resolved, err := fsutil.ResolvePath(path)
	if err != nil {
		return nil, nil, fmt.Errorf("log file: %w", err)
	}
	if err := fsutil.EnsureParent(resolved); err != nil {
		return nil, nil, fmt.Errorf("log file: %w", err)
	}

	f, err := os.OpenFile(resolved, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("log file: %w", err)
	}
	return slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}), f, nil
}
