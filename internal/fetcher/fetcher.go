package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/PaperStalk/internal/config"
)

// Session is one isolated page context: its own cookies, history and
// current document. A Session is used by a single goroutine and must be
// closed on every exit path.
type Session interface {
	// Navigate loads rawURL and waits for it to settle.
	Navigate(ctx context.Context, rawURL string) error

	// HTML returns the current document markup.
	HTML(ctx context.Context) (string, error)

	// URL returns the URL of the current document.
	URL() string

	// FollowXPath activates the anchor matched by expr on the current
	// document, the way a user click would.
	FollowXPath(ctx context.Context, expr string) error

	// Close releases every resource held by the session.
	Close() error
}

// Launcher creates independent sessions. Implementations must not share
// page state between the sessions they return.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)

	// Type returns the launcher type identifier.
	Type() string
}

// NewLauncher builds the launcher selected by cfg.Fetcher.Type.
func NewLauncher(cfg *config.Config, logger *slog.Logger) (Launcher, error) {
	switch cfg.Fetcher.Type {
	case "browser":
		return NewBrowserLauncher(cfg, logger), nil
	case "http":
		return NewHTTPLauncher(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported fetcher type: %s", cfg.Fetcher.Type)
	}
}
