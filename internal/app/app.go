// Package app wires collection, extraction and persistence into one run.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/IshaanNene/PaperStalk/internal/collector"
	"github.com/IshaanNene/PaperStalk/internal/config"
	"github.com/IshaanNene/PaperStalk/internal/engine"
	"github.com/IshaanNene/PaperStalk/internal/extractor"
	"github.com/IshaanNene/PaperStalk/internal/fetcher"
	"github.com/IshaanNene/PaperStalk/internal/observability"
	"github.com/IshaanNene/PaperStalk/internal/pipeline"
	"github.com/IshaanNene/PaperStalk/internal/storage"
	"github.com/IshaanNene/PaperStalk/internal/types"
)

// PreviewCount is the number of records shown after a run.
const PreviewCount = 5

// Report is the outcome of a successful run.
type Report struct {
	Query      string
	Path       string
	AbsPath    string
	Records    []types.Record
	Collection *collector.Result
	Summary    *engine.Summary
	Metrics    map[string]int64
}

// App runs one search-and-extract job.
type App struct {
	cfg      *config.Config
	launcher fetcher.Launcher
	metrics  *observability.Metrics
	mirrors  []storage.Sink
	now      func() time.Time
	logger   *slog.Logger
}

// New creates an App that opens every session through launcher.
func New(cfg *config.Config, launcher fetcher.Launcher, logger *slog.Logger) *App {
	return &App{
		cfg:      cfg,
		launcher: launcher,
		metrics:  observability.NewMetrics(logger),
		now:      time.Now,
		logger:   logger.With("component", "app"),
	}
}

// AddSink registers an extra destination that receives every record after
// the local table. Its failures are logged and never fail the run.
func (a *App) AddSink(s storage.Sink) {
	a.mirrors = append(a.mirrors, s)
}

// Run collects every paper link for query, extracts them concurrently and
// writes the output table. Collection failures are fatal and leave no output
// file. A persistence error is returned together with the report.
func (a *App) Run(ctx context.Context, query string) (*Report, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}

	if a.cfg.Metrics.Enabled {
		a.metrics.StartServer(a.cfg.Metrics.Port, a.cfg.Metrics.Path)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.metrics.Shutdown(shutdownCtx)
		}()
	}

	a.logger.Info("starting run", "query", query, "fetcher", a.launcher.Type(), "workers", a.cfg.Pool.MaxWorkers)

	collected, err := collector.New(a.cfg, a.launcher, a.metrics, a.logger).Collect(ctx, query)
	if err != nil {
		return nil, err
	}

	table, sink, err := a.openSinks(ctx, query)
	if err != nil {
		return nil, err
	}

	coord := engine.New(
		a.cfg.Pool,
		extractor.New(a.cfg, a.launcher, a.logger),
		pipeline.FromConfig(a.cfg.Pipeline, a.logger),
		sink,
		a.metrics,
		a.logger,
	)
	summary, runErr := coord.Run(ctx, collected.Locators)

	if err := sink.Close(); err != nil {
		a.logger.Warn("sink close failed", "error", err)
	}

	abs, err := filepath.Abs(table.Path())
	if err != nil {
		abs = table.Path()
	}
	report := &Report{
		Query:      query,
		Path:       table.Path(),
		AbsPath:    abs,
		Records:    table.Records(),
		Collection: collected,
		Summary:    summary,
		Metrics:    a.metrics.Snapshot(),
	}
	return report, runErr
}

// openSinks creates the table writer and, when enabled, the upload sink.
// Registered extra sinks are added after the table.
// An unreachable upload endpoint is logged and skipped; the local table is
// always written.
func (a *App) openSinks(ctx context.Context, query string) (*storage.TableWriter, storage.Sink, error) {
	ext, err := storage.Extension(a.cfg.Storage.Format)
	if err != nil {
		return nil, nil, err
	}
	name := storage.OutputFilename(a.cfg.Storage.Prefix, query, a.now(), ext)
	path := filepath.Join(a.cfg.Storage.OutputDir, name)

	table, err := storage.NewTableWriter(path, a.cfg.Storage.Format, a.metrics, a.logger)
	if err != nil {
		return nil, nil, err
	}
	secondaries := a.mirrors
	if a.cfg.Upload.Enabled {
		mongo, err := storage.NewMongoSink(ctx, a.cfg.Upload, a.logger)
		if err != nil {
			a.logger.Warn("upload disabled for this run", "error", err)
		} else {
			secondaries = append(secondaries, mongo)
		}
	}
	if len(secondaries) == 0 {
		return table, table, nil
	}
	return table, storage.NewMultiSink(table, secondaries, a.metrics, a.logger), nil
}

// PrintReport writes the human-readable run summary.
func PrintReport(w io.Writer, r *Report) {
	fmt.Fprintf(w, "\n=== Crawl complete ===\n")
	fmt.Fprintf(w, "File:     %s\n", r.Path)
	fmt.Fprintf(w, "Location: %s\n", r.AbsPath)
	fmt.Fprintf(w, "Papers:   %d", len(r.Records))
	if r.Summary != nil && r.Summary.Failed > 0 {
		fmt.Fprintf(w, " (%d failed)", r.Summary.Failed)
	}
	fmt.Fprintln(w)
	if r.Summary != nil {
		fmt.Fprintf(w, "Elapsed:  %s with %d workers\n", r.Summary.Elapsed.Round(time.Millisecond), r.Summary.Workers)
	}
	PrintPreview(w, r.Records)
}

// PrintPreview lists the first PreviewCount records.
func PrintPreview(w io.Writer, records []types.Record) {
	PrintRecords(w, records, PreviewCount)
}

// PrintRecords lists the first n records and how many were left out.
func PrintRecords(w io.Writer, records []types.Record, n int) {
	if len(records) == 0 || n <= 0 {
		return
	}
	fmt.Fprintf(w, "\n=== Collected papers ===\n")
	for i, rec := range records[:min(n, len(records))] {
		fmt.Fprintf(w, "%d. %s\n", i+1, rec.Title)
		fmt.Fprintf(w, "   Authors: %s\n", rec.Authors)
		fmt.Fprintf(w, "   Journal: %s\n", rec.Journal)
		fmt.Fprintf(w, "   Pages:   %s\n", rec.Pages)
		fmt.Fprintln(w)
	}
	if len(records) > n {
		fmt.Fprintf(w, "... and %d more\n", len(records)-n)
	}
}
