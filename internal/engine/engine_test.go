package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IshaanNene/PaperStalk/internal/config"
	"github.com/IshaanNene/PaperStalk/internal/extractor"
	"github.com/IshaanNene/PaperStalk/internal/fetcher/fetchertest"
	"github.com/IshaanNene/PaperStalk/internal/observability"
	"github.com/IshaanNene/PaperStalk/internal/pipeline"
	"github.com/IshaanNene/PaperStalk/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type extractFunc func(ctx context.Context, loc types.Locator) types.Record

func (f extractFunc) Extract(ctx context.Context, loc types.Locator) types.Record { return f(ctx, loc) }

type memSink struct {
	mu      sync.Mutex
	recs    []types.Record
	failFor map[int]bool
}

func (s *memSink) Name() string { return "memory" }

func (s *memSink) Append(rec types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	if s.failFor[rec.Index] {
		return fmt.Errorf("disk full at %d", rec.Index)
	}
	return nil
}

func locators(n int) []types.Locator {
	links := make([]string, n)
	for i := range links {
		links[i] = fmt.Sprintf("https://dbpia.test/p/%d", i+1)
	}
	return types.NewLocators(links)
}

func poolConfig(workers int) config.PoolConfig {
	return config.PoolConfig{MaxWorkers: workers, PollInterval: 10 * time.Millisecond}
}

func TestRunDeliversOneRecordPerLocator(t *testing.T) {
	ext := extractFunc(func(ctx context.Context, loc types.Locator) types.Record {
		time.Sleep(time.Duration(loc.Index%3) * time.Millisecond)
		return types.NewRecord(loc)
	})
	sink := &memSink{}
	metrics := observability.NewMetrics(testLogger)

	summary, err := New(poolConfig(4), ext, nil, sink, metrics, testLogger).Run(context.Background(), locators(20))
	if err != nil {
		t.Fatal(err)
	}
	if summary.Completed != 20 || summary.Dispatched != 20 || summary.Failed != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	seen := make(map[int]bool)
	for _, rec := range sink.recs {
		if seen[rec.Index] {
			t.Errorf("index %d delivered twice", rec.Index)
		}
		seen[rec.Index] = true
	}
	for i := 1; i <= 20; i++ {
		if !seen[i] {
			t.Errorf("index %d missing", i)
		}
	}
	if metrics.ActiveWorkers.Load() != 0 {
		t.Errorf("workers still active after Run: %d", metrics.ActiveWorkers.Load())
	}
}

func TestRunCapsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	ext := extractFunc(func(ctx context.Context, loc types.Locator) types.Record {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return types.NewRecord(loc)
	})

	summary, err := New(poolConfig(3), ext, nil, &memSink{}, nil, testLogger).Run(context.Background(), locators(12))
	if err != nil {
		t.Fatal(err)
	}
	if peak.Load() > 3 {
		t.Errorf("expected at most 3 concurrent extractions, saw %d", peak.Load())
	}
	if summary.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", summary.Workers)
	}
}

func TestRunWorkersBoundedByItemCount(t *testing.T) {
	ext := extractFunc(func(ctx context.Context, loc types.Locator) types.Record { return types.NewRecord(loc) })
	summary, err := New(poolConfig(8), ext, nil, &memSink{}, nil, testLogger).Run(context.Background(), locators(2))
	if err != nil {
		t.Fatal(err)
	}
	if summary.Workers != 2 {
		t.Errorf("expected 2 workers, got %d", summary.Workers)
	}
}

func TestRunWithFailingItem(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Extractor.Settle = 0

	locs := locators(5)
	site := fetchertest.NewSite()
	for _, loc := range locs {
		site.Page(loc.URL, fmt.Sprintf(`<html><body><h1 class="thesis__title">Paper %d</h1></body></html>`, loc.Index))
	}
	site.Fail(locs[2].URL, errors.New("connection reset"))

	sink := &memSink{}
	ext := extractor.New(cfg, site, testLogger)
	pl := pipeline.FromConfig(cfg.Pipeline, testLogger)

	summary, err := New(poolConfig(2), ext, pl, sink, nil, testLogger).Run(context.Background(), locs)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Completed != 5 || summary.Failed != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	for _, rec := range sink.recs {
		if rec.Index == 3 {
			if !rec.Failed || rec.Title != types.FailedValue || rec.Link != locs[2].URL {
				t.Errorf("item 3 should be the failure variant: %+v", rec)
			}
			continue
		}
		if rec.Title != fmt.Sprintf("Paper %d", rec.Index) {
			t.Errorf("item %d title = %q", rec.Index, rec.Title)
		}
	}
	if site.Launched() != 5 || site.Closed() != 5 {
		t.Errorf("sessions launched/closed = %d/%d, want 5/5", site.Launched(), site.Closed())
	}
	if site.MaxOpen() > 2 {
		t.Errorf("expected at most 2 open sessions, saw %d", site.MaxOpen())
	}
}

func TestRunCountsStalls(t *testing.T) {
	ext := extractFunc(func(ctx context.Context, loc types.Locator) types.Record {
		time.Sleep(60 * time.Millisecond)
		return types.NewRecord(loc)
	})
	metrics := observability.NewMetrics(testLogger)

	summary, err := New(poolConfig(1), ext, nil, &memSink{}, metrics, testLogger).Run(context.Background(), locators(1))
	if err != nil {
		t.Fatal(err)
	}
	if summary.Stalls == 0 {
		t.Error("expected at least one stall while the only worker was busy")
	}
	if metrics.DrainStalls.Load() != int64(summary.Stalls) {
		t.Errorf("metric %d != summary %d", metrics.DrainStalls.Load(), summary.Stalls)
	}
}

func TestRunItemTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Extractor.Settle = 0

	locs := locators(2)
	site := fetchertest.NewSite().
		Page(locs[0].URL, `<html></html>`).
		Page(locs[1].URL, `<html></html>`).
		Delay(locs[1].URL, time.Hour)

	pool := poolConfig(2)
	pool.ItemTimeout = 50 * time.Millisecond
	sink := &memSink{}

	summary, err := New(pool, extractor.New(cfg, site, testLogger), nil, sink, nil, testLogger).Run(context.Background(), locs)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Completed != 2 || summary.Failed != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestRunReturnsSinkError(t *testing.T) {
	ext := extractFunc(func(ctx context.Context, loc types.Locator) types.Record { return types.NewRecord(loc) })
	sink := &memSink{failFor: map[int]bool{2: true}}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelError}))

	summary, err := New(poolConfig(2), ext, nil, sink, nil, logger).Run(context.Background(), locators(4))
	if err == nil {
		t.Fatal("expected sink error")
	}
	if summary == nil || summary.Completed != 4 || len(sink.recs) != 4 {
		t.Errorf("drain should continue past sink errors: %+v, %d records", summary, len(sink.recs))
	}
	if !strings.Contains(logs.String(), "sink=memory") {
		t.Errorf("sink error log should name the sink:\n%s", logs.String())
	}
}

func TestRunRecoversExtractorPanic(t *testing.T) {
	ext := extractFunc(func(ctx context.Context, loc types.Locator) types.Record {
		if loc.Index == 1 {
			panic("boom")
		}
		return types.NewRecord(loc)
	})
	sink := &memSink{}

	summary, err := New(poolConfig(2), ext, nil, sink, nil, testLogger).Run(context.Background(), locators(2))
	if err != nil {
		t.Fatal(err)
	}
	if summary.Completed != 2 || summary.Failed != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestRunNoLocators(t *testing.T) {
	ext := extractFunc(func(ctx context.Context, loc types.Locator) types.Record {
		t.Error("extractor should not be called")
		return types.Record{}
	})
	summary, err := New(poolConfig(4), ext, nil, &memSink{}, nil, testLogger).Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Dispatched != 0 || summary.Completed != 0 {
		t.Errorf("expected empty summary, got %+v", summary)
	}
}

func TestRunOnlyOnce(t *testing.T) {
	ext := extractFunc(func(ctx context.Context, loc types.Locator) types.Record { return types.NewRecord(loc) })
	c := New(poolConfig(1), ext, nil, &memSink{}, nil, testLogger)

	if _, err := c.Run(context.Background(), locators(1)); err != nil {
		t.Fatal(err)
	}
	if c.GetState() != StateStopped {
		t.Errorf("expected stopped, got %s", c.GetState())
	}
	if _, err := c.Run(context.Background(), locators(1)); err == nil {
		t.Error("second Run should fail")
	}
}
