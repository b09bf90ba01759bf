package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/PaperStalk/internal/config"
	"github.com/IshaanNene/PaperStalk/internal/types"
)

// HTTPLauncher creates plain HTTP sessions for portals that render results
// server-side. Each session gets its own client and cookie jar.
type HTTPLauncher struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewHTTPLauncher creates a new HTTP launcher.
func NewHTTPLauncher(cfg *config.Config, logger *slog.Logger) *HTTPLauncher {
	return &HTTPLauncher{
		cfg:    cfg,
		logger: logger.With("component", "http_launcher"),
	}
}

// Type returns the launcher type identifier.
func (hl *HTTPLauncher) Type() string {
	return "http"
}

// Launch builds an isolated HTTP session.
func (hl *HTTPLauncher) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	fc := hl.cfg.Fetcher
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // decompression handled below, including brotli
	}

	client := &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   fc.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !fc.FollowRedirects {
				return http.ErrUseLastResponse
			}
			if len(via) >= fc.MaxRedirects {
				return fmt.Errorf("max redirects (%d) reached", fc.MaxRedirects)
			}
			return nil
		},
	}

	return &httpSession{
		client:      client,
		userAgent:   fc.UserAgent,
		maxBodySize: fc.MaxBodySize,
		logger:      hl.logger,
	}, nil
}

// httpSession keeps the last fetched document as its current page.
type httpSession struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	logger      *slog.Logger

	mu     sync.Mutex
	url    string
	body   string
	loaded bool
	closed bool
}

func (s *httpSession) Navigate(ctx context.Context, rawURL string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return types.ErrSessionClosed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &types.FetchError{URL: rawURL, Err: err}
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return &types.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &types.FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	var reader io.Reader = resp.Body
	if s.maxBodySize > 0 {
		reader = io.LimitReader(reader, s.maxBodySize)
	}
	reader, err = decompressReader(resp, reader)
	if err != nil {
		return &types.FetchError{URL: rawURL, Err: err}
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return &types.FetchError{URL: rawURL, Err: err}
	}

	s.mu.Lock()
	s.url = resp.Request.URL.String()
	s.body = string(body)
	s.loaded = true
	s.mu.Unlock()

	s.logger.Debug("fetch complete",
		"url", rawURL,
		"status", resp.StatusCode,
		"size", len(body),
		"duration", time.Since(start),
	)
	return nil
}

func (s *httpSession) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", types.ErrSessionClosed
	}
	if !s.loaded {
		return "", types.ErrNoPage
	}
	return s.body, nil
}

func (s *httpSession) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// FollowXPath resolves the anchor's href and fetches it. Script-only
// anchors cannot be followed without a browser.
func (s *httpSession) FollowXPath(ctx context.Context, expr string) error {
	markup, err := s.HTML(ctx)
	if err != nil {
		return err
	}
	next, err := ResolveXPathLink(markup, s.URL(), expr)
	if err != nil {
		return err
	}
	return s.Navigate(ctx, next)
}

func (s *httpSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.body = ""
	s.client.CloseIdleConnections()
	return nil
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}
