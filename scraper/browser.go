package scraper

import (
	"context"

	"github.com/leafsignal/menuwatch/cdp"
)

// Page is the slice of page automation the orchestrator needs. It is
// satisfied by *cdp.Page.
type Page interface {
	Navigate(ctx context.Context, url string, opts cdp.NavigateOptions) error
	Call(ctx context.Context, script string, out any, args ...any) error
	Close(ctx context.Context) error
}

// Session is the browser façade the orchestrator drives.
type Session interface {
	Goto(ctx context.Context, url string, opts cdp.NavigateOptions) error
	Call(ctx context.Context, script string, out any, args ...any) error
	Screenshot(ctx context.Context, opts cdp.ScreenshotOptions) ([]byte, error)
	CreatePage(ctx context.Context) (Page, error)
	Close()
}

// SessionFactory produces a connected session. Acquisition failures are
// retried behind the circuit breaker by the orchestrator.
type SessionFactory func(ctx context.Context) (Session, error)
