// Package collector walks paginated search results and gathers paper links.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/PaperStalk/internal/config"
	"github.com/IshaanNene/PaperStalk/internal/fetcher"
	"github.com/IshaanNene/PaperStalk/internal/observability"
	"github.com/IshaanNene/PaperStalk/internal/parser"
	"github.com/IshaanNene/PaperStalk/internal/types"
)

// StopReason tells why pagination ended. Every reason means "no more
// results"; they are kept apart so a broken selector can be told from an
// exhausted listing.
type StopReason string

const (
	StopExhausted       StopReason = "exhausted"        // a page added no new links
	StopNavigationError StopReason = "navigation_error" // the next page could not be reached
	StopPageLimit       StopReason = "page_limit"       // collector.max_pages reached
)

// Result is the outcome of a collection pass.
type Result struct {
	Locators []types.Locator
	Pages    int
	Selector string
	Stop     StopReason
	StopErr  error
}

// Collector gathers deduplicated paper links from a search listing.
type Collector struct {
	cfg      *config.Config
	launcher fetcher.Launcher
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// New creates a Collector. metrics may be nil.
func New(cfg *config.Config, launcher fetcher.Launcher, metrics *observability.Metrics, logger *slog.Logger) *Collector {
	return &Collector{
		cfg:      cfg,
		launcher: launcher,
		metrics:  metrics,
		logger:   logger.With("component", "collector"),
	}
}

// SearchURL builds the listing URL for query.
func (c *Collector) SearchURL(query string) string {
	return strings.ReplaceAll(c.cfg.Search.URLTemplate, "{query}", url.QueryEscape(query))
}

// Collect returns the links for query in first-seen order, numbered from 1.
// It fails with types.ErrSearchUnreachable when the first page cannot be
// loaded and with types.ErrNoResults when nothing was found.
func (c *Collector) Collect(ctx context.Context, query string) (*Result, error) {
	session, err := c.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: launch session: %v", types.ErrSearchUnreachable, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			c.logger.Warn("session close failed", "error", err)
		}
	}()

	searchURL := c.SearchURL(query)
	c.logger.Info("loading search page", "url", searchURL)

	if err := session.Navigate(ctx, searchURL); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSearchUnreachable, err)
	}
	if err := fetcher.Settle(ctx, c.cfg.Collector.SearchSettle); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSearchUnreachable, err)
	}
	doc, err := c.document(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSearchUnreachable, err)
	}

	registry := NewRegistry()
	res := &Result{Pages: 1}

	selector, links := c.firstPageLinks(doc)
	res.Selector = selector
	for _, link := range links {
		if !registry.Add(link) {
			c.logger.Debug("duplicate link skipped", "url", link)
		}
	}
	c.pageVisited(1, registry.Len())

	if registry.Len() == 0 {
		for _, marker := range c.cfg.Collector.NoResultsMarkers {
			if doc.Contains(marker) {
				c.logger.Info("search reported no results", "marker", marker)
				break
			}
		}
		return nil, fmt.Errorf("%w for %q", types.ErrNoResults, query)
	}

	for page := 2; ; page++ {
		if limit := c.cfg.Collector.MaxPages; limit > 0 && page > limit {
			res.Stop = StopPageLimit
			break
		}

		added, err := c.nextPage(ctx, session, page, selector, registry)
		if err != nil {
			res.Stop = StopNavigationError
			res.StopErr = err
			c.logger.Warn("pagination stopped on navigation error", "page", page, "error", err)
			break
		}
		res.Pages = page
		c.pageVisited(page, added)

		if added == 0 {
			res.Stop = StopExhausted
			c.logger.Info("pagination stopped, no new links", "page", page)
			break
		}
		c.logger.Info("page collected", "page", page, "new_links", added)
	}

	res.Locators = types.NewLocators(registry.Links())
	c.logger.Info("link collection complete",
		"links", len(res.Locators),
		"pages", res.Pages,
		"stop", res.Stop,
	)
	return res, nil
}

// firstPageLinks tries the configured selectors in order and returns the
// first one that matches any link, with its links.
func (c *Collector) firstPageLinks(doc *parser.Document) (string, []string) {
	for i, sel := range c.cfg.Collector.LinkSelectors {
		links := c.links(doc, sel)
		c.logger.Debug("link selector tried", "selector", sel, "count", len(links))
		if len(links) > 0 {
			if i > 0 {
				c.logger.Info("primary link selector found nothing, using fallback", "selector", sel)
			}
			return sel, links
		}
	}
	return "", nil
}

// nextPage moves to page and returns how many links it added.
func (c *Collector) nextPage(ctx context.Context, session fetcher.Session, page int, selector string, registry *Registry) (int, error) {
	expr := fmt.Sprintf(c.cfg.Collector.PaginationXPath, page)
	if err := session.FollowXPath(ctx, expr); err != nil {
		return 0, err
	}
	if err := fetcher.Settle(ctx, c.cfg.Collector.PageSettle); err != nil {
		return 0, err
	}
	doc, err := c.document(ctx, session)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, link := range c.links(doc, selector) {
		if registry.Add(link) {
			added++
		}
	}
	return added, nil
}

func (c *Collector) document(ctx context.Context, session fetcher.Session) (*parser.Document, error) {
	markup, err := session.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return parser.NewDocument(session.URL(), markup)
}

// links returns the absolute hrefs matched by selector in document order.
func (c *Collector) links(doc *parser.Document, selector string) []string {
	var out []string
	doc.Selection(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		abs, err := fetcher.ResolveURL(doc.URL, href)
		if err != nil {
			c.logger.Debug("unparseable link skipped", "href", href, "error", err)
			return
		}
		out = append(out, abs)
	})
	return out
}

func (c *Collector) pageVisited(page, added int) {
	if c.metrics == nil {
		return
	}
	c.metrics.PagesVisited.Add(1)
	c.metrics.LinksCollected.Add(int64(added))
}

// IsFatal reports whether err ends the run before any extraction.
func IsFatal(err error) bool {
	return errors.Is(err, types.ErrSearchUnreachable) || errors.Is(err, types.ErrNoResults)
}
