package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/IshaanNene/PaperStalk/internal/observability"
	"github.com/IshaanNene/PaperStalk/internal/types"
)

// TableWriter owns the output table. Every Append rewrites the whole
// artifact, so the file on disk always holds every record drained so far.
// It is not safe for concurrent use; only the drain loop touches it.
type TableWriter struct {
	path    string
	format  string
	records []types.Record
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewTableWriter creates a writer for path. The file is not created until
// the first Append. metrics may be nil.
func NewTableWriter(path, format string, metrics *observability.Metrics, logger *slog.Logger) (*TableWriter, error) {
	if _, err := Extension(format); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &TableWriter{
		path:    path,
		format:  format,
		metrics: metrics,
		logger:  logger.With("component", "table_writer", "format", format),
	}, nil
}

func (w *TableWriter) Name() string { return w.format }

// Path returns the artifact path.
func (w *TableWriter) Path() string { return w.path }

// Len returns the number of records in the table.
func (w *TableWriter) Len() int { return len(w.records) }

// Records returns a copy of the table in completion order.
func (w *TableWriter) Records() []types.Record { return slices.Clone(w.records) }

// Append adds rec to the table and persists the full table. The record is
// kept in memory even when the write fails.
func (w *TableWriter) Append(rec types.Record) error {
	w.records = append(w.records, rec)
	if err := w.flush(); err != nil {
		if w.metrics != nil {
			w.metrics.WriteErrors.Add(1)
		}
		return &types.StorageError{Backend: w.format, Err: err}
	}
	if w.metrics != nil {
		w.metrics.TableWrites.Add(1)
	}
	w.logger.Debug("table written", "path", w.path, "rows", len(w.records))
	return nil
}

// Close is a no-op; the artifact is complete after every Append.
func (w *TableWriter) Close() error {
	w.logger.Info("table closed", "path", w.path, "rows", len(w.records))
	return nil
}

// flush writes into a temp file beside the artifact and renames it over the
// old one so a reader never sees a half-written table.
func (w *TableWriter) flush() error {
	tmp, err := os.CreateTemp(filepath.Dir(w.path), "."+filepath.Base(w.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := w.encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("replace output file: %w", err)
	}
	return nil
}

func (w *TableWriter) encode(out io.Writer) error {
	switch w.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(w.records); err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
	case "jsonl":
		enc := json.NewEncoder(out)
		for _, rec := range w.records {
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("encode JSONL: %w", err)
			}
		}
	default:
		return encodeCSV(out, w.records)
	}
	return nil
}

// encodeCSV writes UTF-8 with a byte order mark so spreadsheet programs
// detect the encoding of Korean text.
func encodeCSV(out io.Writer, records []types.Record) error {
	bom := transform.NewWriter(out, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(bom)

	if err := cw.Write(types.Columns); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(rec.Row()); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush CSV: %w", err)
	}
	return bom.Close()
}

// ReadTable reads a CSV artifact back. A leading byte order mark is
// optional.
func ReadTable(path string) ([]types.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	rows, err := csv.NewReader(dec).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty table", path)
	}
	if !slices.Equal(rows[0], types.Columns) {
		return nil, fmt.Errorf("%s: unexpected header %v", path, rows[0])
	}

	records := make([]types.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := types.RecordFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", path, i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
