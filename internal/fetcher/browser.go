package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/PaperStalk/internal/config"
	"github.com/IshaanNene/PaperStalk/internal/types"
)

// BrowserLauncher starts a dedicated Chromium process for every session so
// concurrent sessions never share cookies, tabs or navigation state.
type BrowserLauncher struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewBrowserLauncher creates a launcher backed by Rod.
func NewBrowserLauncher(cfg *config.Config, logger *slog.Logger) *BrowserLauncher {
	return &BrowserLauncher{
		cfg:    cfg,
		logger: logger.With("component", "browser_launcher"),
	}
}

// Type returns the launcher type identifier.
func (bl *BrowserLauncher) Type() string {
	return "browser"
}

// Launch starts a browser, connects to it and opens one page.
func (bl *BrowserLauncher) Launch(ctx context.Context) (Session, error) {
	l := bl.newLauncher().Context(ctx)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	var page *rod.Page
	if bl.cfg.Browser.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("open page: %w", err)
	}

	if ua := bl.cfg.Fetcher.UserAgent; ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			bl.logger.Warn("failed to set user agent", "error", err)
		}
	}

	bl.logger.Debug("browser session ready", "stealth", bl.cfg.Browser.Stealth)

	return &browserSession{
		launcher: l,
		browser:  browser,
		page:     page,
		timeout:  bl.cfg.Fetcher.RequestTimeout,
		logger:   bl.logger,
	}, nil
}

// newLauncher configures Chromium with the fixed flag set.
func (bl *BrowserLauncher) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(bl.cfg.Browser.Headless).
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("disable-extensions").
		Set("disable-logging").
		Set("disable-web-security").
		Set("disable-features", "VizDisplayCompositor").
		Set("disable-blink-features", "AutomationControlled").
		Set("log-level", "3").
		Set("start-maximized")

	if bl.cfg.Browser.Bin != "" {
		l = l.Bin(bl.cfg.Browser.Bin)
	}
	return l
}

// browserSession owns one browser process and its single page.
type browserSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	lastURL string
	closed  bool
}

func (s *browserSession) Navigate(ctx context.Context, rawURL string) error {
	if s.isClosed() {
		return types.ErrSessionClosed
	}

	p := s.page.Context(ctx).Timeout(s.timeout)
	if err := p.Navigate(rawURL); err != nil {
		return &types.FetchError{URL: rawURL, Err: err}
	}
	if err := p.WaitLoad(); err != nil {
		s.logger.Warn("page load wait failed, continuing", "url", rawURL, "error", err)
	}

	s.mu.Lock()
	s.lastURL = rawURL
	s.mu.Unlock()
	return nil
}

func (s *browserSession) HTML(ctx context.Context) (string, error) {
	if s.isClosed() {
		return "", types.ErrSessionClosed
	}
	html, err := s.page.Context(ctx).Timeout(s.timeout).HTML()
	if err != nil {
		return "", &types.FetchError{URL: s.URL(), Err: err}
	}
	return html, nil
}

func (s *browserSession) URL() string {
	if !s.isClosed() {
		if info, err := s.page.Info(); err == nil && info != nil && info.URL != "" {
			return info.URL
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastURL
}

// FollowXPath clicks the anchor through script so overlays or off-screen
// positions cannot swallow the click.
func (s *browserSession) FollowXPath(ctx context.Context, expr string) error {
	if s.isClosed() {
		return types.ErrSessionClosed
	}

	el, err := s.page.Context(ctx).Timeout(10 * time.Second).ElementX(expr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrNoPaginationLink, expr, err)
	}
	if _, err := el.Eval(`() => this.click()`); err != nil {
		return fmt.Errorf("click %s: %w", expr, err)
	}

	p := s.page.Context(ctx).Timeout(s.timeout)
	if err := p.WaitStable(300 * time.Millisecond); err != nil {
		s.logger.Warn("page stability timeout, continuing", "xpath", expr, "error", err)
	}
	return nil
}

// Close tears down page, browser and process. Safe to call more than once.
func (s *browserSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.page.Close()
	err := s.browser.Close()
	s.launcher.Kill()
	s.launcher.Cleanup()
	return err
}

func (s *browserSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
