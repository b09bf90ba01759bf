// Package extractor builds one paper Record from one detail page.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/PaperStalk/internal/config"
	"github.com/IshaanNene/PaperStalk/internal/fetcher"
	"github.com/IshaanNene/PaperStalk/internal/parser"
	"github.com/IshaanNene/PaperStalk/internal/types"
)

// Extractor loads a paper detail page in a session of its own and resolves
// every field. It never returns an error: failures become sentinel values
// or the failure-variant record.
type Extractor struct {
	launcher fetcher.Launcher
	rules    []parser.FieldRule
	settle   time.Duration
	logger   *slog.Logger
}

// New creates an Extractor.
func New(cfg *config.Config, launcher fetcher.Launcher, logger *slog.Logger) *Extractor {
	return &Extractor{
		launcher: launcher,
		rules:    parser.PaperRules(cfg.Extractor.Fields),
		settle:   cfg.Extractor.Settle,
		logger:   logger.With("component", "extractor"),
	}
}

// Extract returns exactly one record for loc.
func (e *Extractor) Extract(ctx context.Context, loc types.Locator) (rec types.Record) {
	logger := e.logger.With("index", loc.Index, "url", loc.URL)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("extraction panicked", "panic", r)
			rec = types.NewFailedRecord(loc)
		}
	}()

	doc, err := e.load(ctx, loc)
	if err != nil {
		logger.Warn("extraction failed", "error", err)
		return types.NewFailedRecord(loc)
	}

	rec = types.NewRecord(loc)
	for _, rule := range e.rules {
		value, source := e.resolve(logger, doc, rule)
		assign(&rec, rule.Name, value)
		logger.Debug("field resolved", "field", rule.Name, "source", source)
	}
	rec.CrawledAt = time.Now()

	logger.Info("paper extracted", "title", truncate(rec.Title, 30))
	return rec
}

// load acquires a session, fetches the page and releases the session
// before returning, whatever the outcome.
func (e *Extractor) load(ctx context.Context, loc types.Locator) (*parser.Document, error) {
	session, err := e.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			e.logger.Warn("session close failed", "url", loc.URL, "error", err)
		}
	}()

	if err := session.Navigate(ctx, loc.URL); err != nil {
		return nil, err
	}
	if err := fetcher.Settle(ctx, e.settle); err != nil {
		return nil, err
	}
	markup, err := session.HTML(ctx)
	if err != nil {
		return nil, err
	}

	url := session.URL()
	if url == "" {
		url = loc.URL
	}
	return parser.NewDocument(url, markup)
}

// resolve isolates one field so a fault there only costs that field.
func (e *Extractor) resolve(logger *slog.Logger, doc *parser.Document, rule parser.FieldRule) (value string, source parser.Source) {
	defer func() {
		if r := recover(); r != nil {
			err := &types.ParseError{URL: doc.URL, Field: rule.Name, Err: fmt.Errorf("%v", r)}
			logger.Warn("field extraction failed", "error", err)
			value, source = rule.Sentinel, parser.SourceSentinel
		}
	}()
	return doc.Resolve(rule)
}

func assign(rec *types.Record, field, value string) {
	switch field {
	case parser.FieldTitle:
		rec.Title = value
	case parser.FieldAuthors:
		rec.Authors = value
	case parser.FieldAbstract:
		rec.Abstract = value
	case parser.FieldYear:
		rec.Year = value
	case parser.FieldJournal:
		rec.Journal = value
	case parser.FieldPages:
		rec.Pages = value
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
