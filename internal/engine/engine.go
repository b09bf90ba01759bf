// Package engine runs extraction over a fixed set of locators with a
// bounded worker pool and a single drain loop.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/PaperStalk/internal/config"
	"github.com/IshaanNene/PaperStalk/internal/observability"
	"github.com/IshaanNene/PaperStalk/internal/types"
)

// State represents the coordinator's lifecycle state.
type State int32

const (
	StateIdle    State = 0
	StateRunning State = 1
	StateStopped State = 2
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Extractor produces exactly one record per locator.
type Extractor interface {
	Extract(ctx context.Context, loc types.Locator) types.Record
}

// Pipeline transforms a drained record before it is persisted.
type Pipeline interface {
	Process(rec types.Record) types.Record
}

// Sink persists drained records.
type Sink interface {
	Append(rec types.Record) error
	Name() string
}

// Summary describes a finished run.
type Summary struct {
	Dispatched int
	Completed  int
	Failed     int
	Stalls     int
	Workers    int
	Elapsed    time.Duration
}

// Coordinator fans locators out to extraction workers and drains their
// results in completion order. A Coordinator runs once.
type Coordinator struct {
	extractor    Extractor
	pipeline     Pipeline
	sink         Sink
	maxWorkers   int
	pollInterval time.Duration
	itemTimeout  time.Duration
	metrics      *observability.Metrics
	logger       *slog.Logger

	state atomic.Int32
}

// New creates a Coordinator. pipeline and metrics may be nil.
func New(cfg config.PoolConfig, extractor Extractor, pipeline Pipeline, sink Sink, metrics *observability.Metrics, logger *slog.Logger) *Coordinator {
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Coordinator{
		extractor:    extractor,
		pipeline:     pipeline,
		sink:         sink,
		maxWorkers:   cfg.MaxWorkers,
		pollInterval: cfg.PollInterval,
		itemTimeout:  cfg.ItemTimeout,
		metrics:      metrics,
		logger:       logger.With("component", "coordinator"),
	}
}

// GetState returns the current coordinator state.
func (c *Coordinator) GetState() State {
	return State(c.state.Load())
}

// Run extracts every locator and hands each record to the pipeline and
// then the sink, one at a time, as it completes. It returns once every
// record is drained and every worker has released its session. The error
// is the last sink error, if any; the summary is valid either way.
func (c *Coordinator) Run(ctx context.Context, locators []types.Locator) (*Summary, error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, fmt.Errorf("coordinator is in state %s, cannot run", c.GetState())
	}
	defer c.state.Store(int32(StateStopped))

	start := time.Now()
	total := len(locators)
	if total == 0 {
		c.logger.Info("no locators to extract")
		return &Summary{}, nil
	}

	workers := min(c.maxWorkers, total)
	summary := &Summary{Dispatched: total, Workers: workers}
	c.logger.Info("starting extraction", "items", total, "workers", workers)

	// Buffered to total so a worker never waits on the drain loop.
	results := make(chan types.Record, total)

	var g errgroup.Group
	g.SetLimit(workers)

	submitted := make(chan struct{})
	go func() {
		defer close(submitted)
		for _, loc := range locators {
			loc := loc
			g.Go(func() error {
				results <- c.work(ctx, loc)
				return nil
			})
		}
	}()

	sinkErr := c.drain(results, summary)

	<-submitted
	_ = g.Wait()

	summary.Elapsed = time.Since(start)
	c.logger.Info("extraction finished",
		"completed", summary.Completed,
		"failed", summary.Failed,
		"stalls", summary.Stalls,
		"elapsed", summary.Elapsed.Round(time.Millisecond),
	)
	return summary, sinkErr
}

// drain receives exactly summary.Dispatched records. A poll interval with no
// delivery is logged as a stall and the loop keeps waiting.
func (c *Coordinator) drain(results <-chan types.Record, summary *Summary) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var sinkErr error
	delivered := false
	for summary.Completed < summary.Dispatched {
		select {
		case rec := <-results:
			delivered = true
			if err := c.persist(rec, summary); err != nil {
				sinkErr = err
			}
		case <-ticker.C:
			if !delivered {
				summary.Stalls++
				c.metrics.DrainStalls.Add(1)
				c.logger.Warn("no result within poll interval",
					"interval", c.pollInterval,
					"pending", summary.Dispatched-summary.Completed,
					"active_workers", c.metrics.ActiveWorkers.Load(),
				)
			}
			delivered = false
		}
	}
	return sinkErr
}

func (c *Coordinator) persist(rec types.Record, summary *Summary) error {
	if c.pipeline != nil {
		rec = c.pipeline.Process(rec)
	}

	summary.Completed++
	c.metrics.ItemsCompleted.Add(1)
	if rec.Failed {
		summary.Failed++
		c.metrics.ItemsFailed.Add(1)
	}

	err := c.sink.Append(rec)
	if err != nil {
		c.logger.Error("sink append failed", "sink", c.sink.Name(), "index", rec.Index, "error", err)
	}

	c.logger.Info("progress",
		"completed", summary.Completed,
		"total", summary.Dispatched,
		"percent", fmt.Sprintf("%.1f", float64(summary.Completed)*100/float64(summary.Dispatched)),
	)
	return err
}

// work runs one extraction. It always yields a record, even if the
// extractor panics.
func (c *Coordinator) work(ctx context.Context, loc types.Locator) (rec types.Record) {
	c.metrics.ItemsDispatched.Add(1)
	c.metrics.ActiveWorkers.Add(1)
	defer c.metrics.ActiveWorkers.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("worker panicked", "index", loc.Index, "url", loc.URL, "panic", r)
			rec = types.NewFailedRecord(loc)
		}
	}()

	if c.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.itemTimeout)
		defer cancel()
	}
	return c.extractor.Extract(ctx, loc)
}
