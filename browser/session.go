// Package browser turns "I need a browser" into a ready page: it
// acquires a remote session from the provider, opens the CDP transport,
// and exposes a narrow façade over the default page.
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/leafsignal/menuwatch/cdp"
	"github.com/leafsignal/menuwatch/config"
	"github.com/leafsignal/menuwatch/resilience"
)

// Viewport applied to every page.
const (
	viewportWidth  = 1280
	viewportHeight = 800
)

// ErrNotInitialized is returned when a page operation runs before Init.
var ErrNotInitialized = errors.New("browser: session not initialized")

// Session owns one remote browser: the provider session, the transport,
// and the default page.
type Session struct {
	cfg        config.ProviderConfig
	httpClient *http.Client
	log        *slog.Logger

	providerID string
	client     *cdp.Client
	page       *cdp.Page
}

// NewSession creates an unconnected session.
func NewSession(cfg config.ProviderConfig) *Session {
	return &Session{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        slog.Default().With("component", "browser"),
	}
}

// Init acquires a provider session, connects the transport, obtains or
// creates the default page, and sets the viewport.
func (s *Session) Init(ctx context.Context) error {
	connectURL, err := s.createProviderSession(ctx)
	if err != nil {
		return err
	}

	client := cdp.NewClient(connectURL, cdp.Options{
		ConnectTimeout: s.cfg.ConnectTimeout,
		CommandTimeout: s.cfg.CommandTimeout,
	})
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("browser: connect transport: %w", err)
	}
	s.client = client

	page, err := s.defaultPage(ctx)
	if err != nil {
		_ = client.Close()
		s.client = nil
		return err
	}
	s.page = page

	if err := page.SetViewport(ctx, viewportWidth, viewportHeight); err != nil {
		s.log.Warn("viewport override failed", "error", err)
	}

	s.log.Info("browser session ready",
		"providerSession", s.providerID,
		"target", page.TargetID(),
	)
	return nil
}

// createProviderSession issues the provider REST call and returns the
// CDP connect URL. A 5xx/429 response surfaces as an HTTPStatusError so
// the caller's retry layer treats it as transient.
func (s *Session) createProviderSession(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{"projectId": s.cfg.ProjectID})
	if err != nil {
		return "", fmt.Errorf("browser: encode session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.BaseURL+"/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("browser: build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-BB-API-Key", s.cfg.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("browser: create session: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("browser: read session response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		truncated := string(respBody)
		if len(truncated) > 256 {
			truncated = truncated[:256]
		}
		return "", fmt.Errorf("browser: create session: %w",
			&resilience.HTTPStatusError{Status: resp.StatusCode, Body: truncated})
	}

	var session struct {
		ID         string `json:"id"`
		ConnectURL string `json:"connectUrl"`
	}
	if err := json.Unmarshal(respBody, &session); err != nil {
		return "", fmt.Errorf("browser: parse session response: %w", err)
	}
	if session.ConnectURL == "" {
		return "", fmt.Errorf("browser: provider response missing connectUrl")
	}
	s.providerID = session.ID
	return session.ConnectURL, nil
}

// defaultPage attaches to the first existing page target, creating one
// when the browser came up empty.
func (s *Session) defaultPage(ctx context.Context) (*cdp.Page, error) {
	targetID, err := s.client.FirstPageTarget(ctx)
	if err != nil {
		return nil, fmt.Errorf("browser: list targets: %w", err)
	}
	if targetID == "" {
		page, err := s.client.CreatePage(ctx, "about:blank")
		if err != nil {
			return nil, fmt.Errorf("browser: create default page: %w", err)
		}
		return page, nil
	}
	page, err := s.client.AttachToTarget(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("browser: attach default page: %w", err)
	}
	return page, nil
}

// Goto navigates the default page.
func (s *Session) Goto(ctx context.Context, url string, opts cdp.NavigateOptions) error {
	if s.page == nil {
		return ErrNotInitialized
	}
	return s.page.Navigate(ctx, url, opts)
}

// Evaluate runs a literal expression on the default page.
func (s *Session) Evaluate(ctx context.Context, expression string) (json.RawMessage, error) {
	if s.page == nil {
		return nil, ErrNotInitialized
	}
	return s.page.Evaluate(ctx, expression)
}

// Call invokes a named page script on the default page.
func (s *Session) Call(ctx context.Context, script string, out any, args ...any) error {
	if s.page == nil {
		return ErrNotInitialized
	}
	return s.page.Call(ctx, script, out, args...)
}

// Screenshot captures the default page.
func (s *Session) Screenshot(ctx context.Context, opts cdp.ScreenshotOptions) ([]byte, error) {
	if s.page == nil {
		return nil, ErrNotInitialized
	}
	return s.page.Screenshot(ctx, opts)
}

// CreatePage opens an additional page session on the same transport.
// Failures are recoverable; callers continue with fewer pages.
func (s *Session) CreatePage(ctx context.Context) (*cdp.Page, error) {
	if s.client == nil {
		return nil, ErrNotInitialized
	}
	return s.client.CreatePage(ctx, "about:blank")
}

// Close tears the session down best-effort. It runs on cleanup paths
// and never returns an error.
func (s *Session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.page != nil {
		if err := s.page.Close(ctx); err != nil {
			s.log.Debug("default page close failed", "error", err)
		}
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.log.Debug("transport close failed", "error", err)
		}
	}
}
