package cdp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// selectorPollInterval is the fixed interval for WaitForSelector.
const selectorPollInterval = 100 * time.Millisecond

// Page is a handle to one attached target. Every command issued
// through it carries the page's session id.
type Page struct {
	client    *Client
	targetID  string
	sessionID string
}

// TargetID returns the browser-level target id.
func (p *Page) TargetID() string { return p.targetID }

// SessionID returns the attachment session id.
func (p *Page) SessionID() string { return p.sessionID }

// CreatePage opens a new target, attaches to it with a flattened
// session, and enables the Page and Runtime domains.
func (c *Client) CreatePage(ctx context.Context, url string) (*Page, error) {
	if url == "" {
		url = "about:blank"
	}

	res, err := c.Send(ctx, "Target.createTarget", map[string]any{"url": url}, "")
	if err != nil {
		return nil, fmt.Errorf("cdp: create target: %w", err)
	}
	var created struct {
		TargetID string `json:"targetId"`
	}
	if err := json.Unmarshal(res, &created); err != nil {
		return nil, fmt.Errorf("cdp: parse createTarget result: %w", err)
	}

	return c.AttachToTarget(ctx, created.TargetID)
}

// AttachToTarget attaches to an existing target and enables the Page
// and Runtime domains on the new session.
func (c *Client) AttachToTarget(ctx context.Context, targetID string) (*Page, error) {
	res, err := c.Send(ctx, "Target.attachToTarget", map[string]any{
		"targetId": targetID,
		"flatten":  true,
	}, "")
	if err != nil {
		return nil, fmt.Errorf("cdp: attach to target: %w", err)
	}
	var attached struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(res, &attached); err != nil {
		return nil, fmt.Errorf("cdp: parse attachToTarget result: %w", err)
	}

	page := &Page{client: c, targetID: targetID, sessionID: attached.SessionID}
	if _, err := c.Send(ctx, "Page.enable", nil, page.sessionID); err != nil {
		return nil, fmt.Errorf("cdp: enable Page domain: %w", err)
	}
	if _, err := c.Send(ctx, "Runtime.enable", nil, page.sessionID); err != nil {
		return nil, fmt.Errorf("cdp: enable Runtime domain: %w", err)
	}
	return page, nil
}

// FirstPageTarget returns the id of the first existing page-type
// target, or "" when the browser has none.
func (c *Client) FirstPageTarget(ctx context.Context) (string, error) {
	res, err := c.Send(ctx, "Target.getTargets", nil, "")
	if err != nil {
		return "", fmt.Errorf("cdp: get targets: %w", err)
	}
	var targets struct {
		TargetInfos []struct {
			TargetID string `json:"targetId"`
			Type     string `json:"type"`
		} `json:"targetInfos"`
	}
	if err := json.Unmarshal(res, &targets); err != nil {
		return "", fmt.Errorf("cdp: parse getTargets result: %w", err)
	}
	for _, t := range targets.TargetInfos {
		if t.Type == "page" {
			return t.TargetID, nil
		}
	}
	return "", nil
}

// NavigateOptions controls Navigate.
type NavigateOptions struct {
	// WaitUntil: "" resolves on navigation commit, "load" additionally
	// waits for Page.loadEventFired on this session.
	WaitUntil string

	// Timeout bounds the whole navigation. Zero uses the command timeout.
	Timeout time.Duration
}

// Navigate drives the page to url. A CDP errorText fails immediately;
// with WaitUntil "load" the call resolves on the first load event or
// fails on timeout.
func (p *Page) Navigate(ctx context.Context, url string, opts NavigateOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.client.opts.CommandTimeout
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// The subscription must exist before Page.navigate is sent, or a
	// fast load event would be missed.
	var loaded chan struct{}
	if opts.WaitUntil == "load" {
		loaded = make(chan struct{}, 1)
		off := p.client.On("Page.loadEventFired", func(ev Event) {
			if ev.SessionID != p.sessionID {
				return
			}
			select {
			case loaded <- struct{}{}:
			default:
			}
		})
		defer off()
	}

	res, err := p.client.Send(navCtx, "Page.navigate", map[string]any{"url": url}, p.sessionID)
	if err != nil {
		return &NavigationError{URL: url, Reason: err.Error()}
	}
	var nav struct {
		ErrorText string `json:"errorText"`
	}
	if err := json.Unmarshal(res, &nav); err != nil {
		return fmt.Errorf("cdp: parse navigate result: %w", err)
	}
	if nav.ErrorText != "" {
		return &NavigationError{URL: url, Reason: nav.ErrorText}
	}

	if loaded == nil {
		return nil
	}
	select {
	case <-loaded:
		return nil
	case <-navCtx.Done():
		return &NavigationError{URL: url, Reason: "load event timeout"}
	}
}

// Evaluate runs a literal expression in the page and returns its
// JSON-encoded value. Page-side exceptions become EvalError.
func (p *Page) Evaluate(ctx context.Context, expression string) (json.RawMessage, error) {
	res, err := p.client.Send(ctx, "Runtime.evaluate", map[string]any{
		"expression":    expression,
		"returnByValue": true,
		"awaitPromise":  true,
	}, p.sessionID)
	if err != nil {
		return nil, err
	}

	var eval struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text      string `json:"text"`
			Exception *struct {
				Description string `json:"description"`
			} `json:"exception"`
		} `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(res, &eval); err != nil {
		return nil, fmt.Errorf("cdp: parse evaluate result: %w", err)
	}
	if eval.ExceptionDetails != nil {
		desc := eval.ExceptionDetails.Text
		if eval.ExceptionDetails.Exception != nil && eval.ExceptionDetails.Exception.Description != "" {
			desc = eval.ExceptionDetails.Exception.Description
		}
		return nil, &EvalError{Description: desc}
	}
	return eval.Result.Value, nil
}

// EvaluateInto evaluates expression and unmarshals the value into out.
func (p *Page) EvaluateInto(ctx context.Context, expression string, out any) error {
	value, err := p.Evaluate(ctx, expression)
	if err != nil {
		return err
	}
	if out == nil || len(value) == 0 {
		return nil
	}
	if err := json.Unmarshal(value, out); err != nil {
		return fmt.Errorf("cdp: decode evaluate value: %w", err)
	}
	return nil
}

// Call invokes a named page script (a JS function literal) with
// JSON-encoded arguments and unmarshals the returned value into out.
// Scripts are fixed source text with explicit JSON-serializable
// parameters, never serialized host closures.
func (p *Page) Call(ctx context.Context, script string, out any, args ...any) error {
	encoded := make([]string, len(args))
	for i, arg := range args {
		data, err := json.Marshal(arg)
		if err != nil {
			return fmt.Errorf("cdp: encode script arg %d: %w", i, err)
		}
		encoded[i] = string(data)
	}
	expr := "(" + script + ")(" + strings.Join(encoded, ",") + ")"
	return p.EvaluateInto(ctx, expr, out)
}

// WaitOptions controls WaitForSelector.
type WaitOptions struct {
	Timeout time.Duration // default: 10s
	Visible bool          // require non-zero rendered size
}

// WaitForSelector polls for the selector at a fixed interval until it
// matches or the timeout elapses.
func (p *Page) WaitForSelector(ctx context.Context, selector string, opts WaitOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.Now().Add(timeout)

	check, err := json.Marshal(selector)
	if err != nil {
		return err
	}
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		if (!%t) return true;
		const r = el.getBoundingClientRect();
		return r.width > 0 && r.height > 0;
	})()`, check, opts.Visible)

	for {
		var found bool
		if err := p.EvaluateInto(ctx, expr, &found); err != nil {
			return err
		}
		if found {
			return nil
		}
		if time.Now().After(deadline) {
			return &SelectorTimeoutError{Selector: selector, Timeout: timeout}
		}
		select {
		case <-time.After(selectorPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ScreenshotOptions controls Screenshot.
type ScreenshotOptions struct {
	Format   string // "png" (default) or "jpeg"
	FullPage bool
}

// Screenshot captures the page. FullPage computes a clip region from
// Page.getLayoutMetrics so content below the fold is included.
func (p *Page) Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error) {
	format := opts.Format
	if format == "" {
		format = "png"
	}
	params := map[string]any{"format": format}

	if opts.FullPage {
		res, err := p.client.Send(ctx, "Page.getLayoutMetrics", nil, p.sessionID)
		if err != nil {
			return nil, fmt.Errorf("cdp: layout metrics: %w", err)
		}
		var metrics struct {
			CSSContentSize struct {
				Width  float64 `json:"width"`
				Height float64 `json:"height"`
			} `json:"cssContentSize"`
		}
		if err := json.Unmarshal(res, &metrics); err != nil {
			return nil, fmt.Errorf("cdp: parse layout metrics: %w", err)
		}
		params["clip"] = map[string]any{
			"x": 0, "y": 0,
			"width":  metrics.CSSContentSize.Width,
			"height": metrics.CSSContentSize.Height,
			"scale":  1,
		}
		params["captureBeyondViewport"] = true
	}

	res, err := p.client.Send(ctx, "Page.captureScreenshot", params, p.sessionID)
	if err != nil {
		return nil, fmt.Errorf("cdp: capture screenshot: %w", err)
	}
	var shot struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(res, &shot); err != nil {
		return nil, fmt.Errorf("cdp: parse screenshot result: %w", err)
	}
	return base64.StdEncoding.DecodeString(shot.Data)
}

// SetViewport overrides the device metrics for this page.
func (p *Page) SetViewport(ctx context.Context, width, height int) error {
	_, err := p.client.Send(ctx, "Emulation.setDeviceMetricsOverride", map[string]any{
		"width":             width,
		"height":            height,
		"deviceScaleFactor": 1,
		"mobile":            false,
	}, p.sessionID)
	return err
}

// Close closes the target. Errors are reported but callers treat them
// as non-fatal; this runs on cleanup paths.
func (p *Page) Close(ctx context.Context) error {
	_, err := p.client.Send(ctx, "Target.closeTarget", map[string]any{
		"targetId": p.targetID,
	}, "")
	return err
}
