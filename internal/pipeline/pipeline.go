// Package pipeline cleans records between extraction and persistence.
package pipeline

import (
	"log/slog"

	"github.com/IshaanNene/PaperStalk/internal/config"
	"github.com/IshaanNene/PaperStalk/internal/types"
)

// Middleware transforms a record in place.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process modifies rec. On error the record is restored to its state
	// before this stage.
	Process(rec *types.Record) error
}

// Pipeline chains middleware processors together. It never drops a record.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// FromConfig builds the standard chain described by cfg.
func FromConfig(cfg config.PipelineConfig, logger *slog.Logger) *Pipeline {
	p := New(logger)
	if cfg.Normalize {
		p.Use(&TextCleanMiddleware{})
		p.Use(&UnicodeNormalizeMiddleware{})
		p.Use(&SentinelMiddleware{})
	}
	if cfg.MaxAbstractLen > 0 {
		p.Use(&AbstractCapMiddleware{MaxLen: cfg.MaxAbstractLen})
	}
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs rec through all middleware in order. Failure-variant records
// pass through untouched.
func (p *Pipeline) Process(rec types.Record) types.Record {
	if rec.Failed {
		return rec
	}

	current := rec
	for _, mw := range p.middlewares {
		before := current
		if err := p.run(mw, &current); err != nil {
			p.logger.Warn("middleware failed, keeping record as is",
				"stage", mw.Name(), "index", rec.Index, "error", err)
			current = before
		}
	}
	return current
}

func (p *Pipeline) run(mw Middleware, rec *types.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: mw.Name(), Panic: r}
		}
	}()
	return mw.Process(rec)
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}
