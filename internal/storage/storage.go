// Package storage persists extraction records.
package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/IshaanNene/PaperStalk/internal/types"
)

// Sink receives drained records one at a time.
type Sink interface {
	// Append persists rec.
	Append(rec types.Record) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the backend identifier.
	Name() string
}

// Extension returns the file extension for a table format.
func Extension(format string) (string, error) {
	switch format {
	case "csv", "json", "jsonl":
		return format, nil
	default:
		return "", fmt.Errorf("unsupported storage format: %s", format)
	}
}

var filenameReplacer = strings.NewReplacer("/", "_", `\`, "_", ":", "_", "\x00", "")

// OutputFilename returns <prefix>_<query>_<YYYYMMDD_HHMMSS>.<ext>.
func OutputFilename(prefix, query string, t time.Time, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", prefix, filenameReplacer.Replace(query), t.Format("20060102_150405"), ext)
}
