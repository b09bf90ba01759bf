// Package fetchertest provides an in-memory fetcher.Launcher for tests.
package fetchertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/PaperStalk/internal/fetcher"
	"github.com/IshaanNene/PaperStalk/internal/types"
)

// ErrUnknownPage is returned when navigating to a URL the site does not serve.
var ErrUnknownPage = errors.New("unknown page")

// Site serves fixed documents keyed by URL.
type Site struct {
	mu        sync.Mutex
	pages     map[string]string
	failures  map[string]error
	delays    map[string]time.Duration
	visits    map[string]int
	launchErr error

	launched atomic.Int32
	closed   atomic.Int32
	open     atomic.Int32
	maxOpen  atomic.Int32
}

// NewSite creates an empty site.
func NewSite() *Site {
	return &Site{
		pages:    make(map[string]string),
		failures: make(map[string]error),
		delays:   make(map[string]time.Duration),
		visits:   make(map[string]int),
	}
}

// Page registers markup for url.
func (s *Site) Page(url, markup string) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = markup
	return s
}

// Fail makes navigation to url return err.
func (s *Site) Fail(url string, err error) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[url] = err
	return s
}

// Delay makes navigation to url block for d or until the context is done.
func (s *Site) Delay(url string, d time.Duration) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[url] = d
	return s
}

// FailLaunch makes every Launch call fail with err.
func (s *Site) FailLaunch(err error) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launchErr = err
	return s
}

// Visits returns how many times url was navigated to.
func (s *Site) Visits(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visits[url]
}

// Launched returns the number of sessions created.
func (s *Site) Launched() int { return int(s.launched.Load()) }

// Closed returns the number of sessions closed.
func (s *Site) Closed() int { return int(s.closed.Load()) }

// MaxOpen returns the peak number of simultaneously open sessions.
func (s *Site) MaxOpen() int { return int(s.maxOpen.Load()) }

// Type returns the launcher type identifier.
func (s *Site) Type() string { return "memory" }

// Launch implements fetcher.Launcher.
func (s *Site) Launch(ctx context.Context) (fetcher.Session, error) {
	s.mu.Lock()
	launchErr := s.launchErr
	s.mu.Unlock()
	if launchErr != nil {
		return nil, launchErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.launched.Add(1)
	n := s.open.Add(1)
	for {
		peak := s.maxOpen.Load()
		if n <= peak || s.maxOpen.CompareAndSwap(peak, n) {
			break
		}
	}
	return &session{site: s}, nil
}

type session struct {
	site   *Site
	url    string
	markup string
	loaded bool
	closed bool
}

func (ss *session) Navigate(ctx context.Context, url string) error {
	if ss.closed {
		return types.ErrSessionClosed
	}

	s := ss.site
	s.mu.Lock()
	s.visits[url]++
	markup, ok := s.pages[url]
	failErr := s.failures[url]
	delay := s.delays[url]
	s.mu.Unlock()

	if delay > 0 {
		if err := fetcher.Settle(ctx, delay); err != nil {
			return &types.FetchError{URL: url, Err: err}
		}
	}
	if failErr != nil {
		return &types.FetchError{URL: url, Err: failErr}
	}
	if !ok {
		return &types.FetchError{URL: url, StatusCode: 404, Err: ErrUnknownPage}
	}

	ss.url = url
	ss.markup = markup
	ss.loaded = true
	return nil
}

func (ss *session) HTML(ctx context.Context) (string, error) {
	if ss.closed {
		return "", types.ErrSessionClosed
	}
	if !ss.loaded {
		return "", types.ErrNoPage
	}
	return ss.markup, ctx.Err()
}

func (ss *session) URL() string { return ss.url }

func (ss *session) FollowXPath(ctx context.Context, expr string) error {
	if !ss.loaded {
		return types.ErrNoPage
	}
	next, err := fetcher.ResolveXPathLink(ss.markup, ss.url, expr)
	if err != nil {
		return err
	}
	return ss.Navigate(ctx, next)
}

func (ss *session) Close() error {
	if ss.closed {
		return fmt.Errorf("session closed twice")
	}
	ss.closed = true
	ss.site.closed.Add(1)
	ss.site.open.Add(-1)
	return nil
}
