package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters for one run.
type Metrics struct {
	// Collection
	PagesVisited   atomic.Int64
	LinksCollected atomic.Int64

	// Extraction
	ItemsDispatched atomic.Int64
	ItemsCompleted  atomic.Int64
	ItemsFailed     atomic.Int64
	ActiveWorkers   atomic.Int32

	// Drain loop
	DrainStalls atomic.Int64

	// Persistence
	TableWrites  atomic.Int64
	WriteErrors  atomic.Int64
	UploadErrors atomic.Int64

	logger *slog.Logger
	server *http.Server
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		kind  string
		value int64
	}{
		{"paperstalk_pages_visited_total", "Search result pages visited", "counter", m.PagesVisited.Load()},
		{"paperstalk_links_collected_total", "Unique paper links collected", "counter", m.LinksCollected.Load()},
		{"paperstalk_items_dispatched_total", "Papers handed to extraction workers", "counter", m.ItemsDispatched.Load()},
		{"paperstalk_items_completed_total", "Papers drained from the completion channel", "counter", m.ItemsCompleted.Load()},
		{"paperstalk_items_failed_total", "Papers recorded as failed", "counter", m.ItemsFailed.Load()},
		{"paperstalk_active_workers", "Extraction workers currently running", "gauge", int64(m.ActiveWorkers.Load())},
		{"paperstalk_drain_stalls_total", "Poll intervals that passed without a result", "counter", m.DrainStalls.Load()},
		{"paperstalk_table_writes_total", "Full rewrites of the output table", "counter", m.TableWrites.Load()},
		{"paperstalk_write_errors_total", "Failed output writes", "counter", m.WriteErrors.Load()},
		{"paperstalk_upload_errors_total", "Records a secondary sink failed to store", "counter", m.UploadErrors.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", metric.name, metric.kind)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server in the background.
func (m *Metrics) StartServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	m.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", m.server.Addr, "path", path)

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
}

// Shutdown stops the metrics server if it was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"pages_visited":    m.PagesVisited.Load(),
		"links_collected":  m.LinksCollected.Load(),
		"items_dispatched": m.ItemsDispatched.Load(),
		"items_completed":  m.ItemsCompleted.Load(),
		"items_failed":     m.ItemsFailed.Load(),
		"active_workers":   int64(m.ActiveWorkers.Load()),
		"drain_stalls":     m.DrainStalls.Load(),
		"table_writes":     m.TableWrites.Load(),
		"write_errors":     m.WriteErrors.Load(),
		"upload_errors":    m.UploadErrors.Load(),
	}
}
