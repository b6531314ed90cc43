// Package scraper drives scheduled scrape batches: one browser session
// per batch, sequential locations, concurrent detail-page resolution,
// and delivery to the downstream collaborators.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/leafsignal/menuwatch/cdp"
	"github.com/leafsignal/menuwatch/config"
	"github.com/leafsignal/menuwatch/models"
	"github.com/leafsignal/menuwatch/resilience"
)

// breakerKey names the remote-browser dependency in the breaker registry.
const breakerKey = "browserbase"

// ErrRunInProgress rejects a batch trigger while one is running.
var ErrRunInProgress = errors.New("scraper: batch already in progress")

// BatchSink receives finished batches.
type BatchSink interface {
	PostBatch(ctx context.Context, payload models.BatchPayload) error
	Notify(ctx context.Context) error
}

// SummarySender delivers the operator-facing roll-up.
type SummarySender interface {
	SendSummary(ctx context.Context, summary models.BatchSummary) error
}

// Service is the batch orchestrator. One Run owns exactly one browser
// session; concurrent Run calls are rejected.
type Service struct {
	cfg        *config.Config
	locations  []models.Location
	newSession SessionFactory
	breakers   *resilience.Registry
	sink       BatchSink
	sender     SummarySender
	metrics    *Metrics
	limiter    *rate.Limiter
	log        *slog.Logger

	mu          sync.Mutex
	running     bool
	lastSummary *models.BatchSummary
}

// NewService wires the orchestrator. metrics may be nil in tests.
func NewService(cfg *config.Config, locations []models.Location, factory SessionFactory, breakers *resilience.Registry, sink BatchSink, sender SummarySender, metrics *Metrics) *Service {
	return &Service{
		cfg:        cfg,
		locations:  locations,
		newSession: factory,
		breakers:   breakers,
		sink:       sink,
		sender:     sender,
		metrics:    metrics,
		limiter:    rate.NewLimiter(rate.Every(cfg.Scrape.LocationDelay), 1),
		log:        slog.Default().With("component", "scraper"),
	}
}

// Running reports whether a batch is in flight.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastSummary returns the most recent batch roll-up, or nil.
func (s *Service) LastSummary() *models.BatchSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSummary
}

// Run executes one full scrape batch. It is terminal on completion:
// partial failure still posts downstream and notifies; only a second
// concurrent invocation is rejected outright.
func (s *Service) Run(ctx context.Context) (*models.BatchSummary, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	// 1. Batch identity and the active location subset.
	batchID := uuid.NewString()
	active := models.ActiveLocations(s.locations)
	started := time.Now()
	log := s.log.With("batchId", batchID)
	log.Info("batch starting", "locations", len(active))

	results := make([]models.BatchResult, 0, len(active))
	var topErrors []string

	// 2. One browser session for the whole batch, guarded by the
	// circuit breaker and retry. Total failure here still falls through
	// to delivery so operators get notified.
	session, err := s.acquireSession(ctx)
	if err != nil {
		log.Error("browser session acquisition failed", "error", err)
		code := models.ErrCodeSession
		var openErr *resilience.CircuitOpenError
		if errors.As(err, &openErr) {
			code = models.ErrCodeCircuitOpen
		}
		topErrors = append(topErrors,
			models.NewScrapeError(code, "browser session acquisition failed", err).Error())
	} else {
		// 3. Locations run sequentially with a fixed inter-location
		// delay. This is rate limiting against the target sites, not a
		// parallelism opportunity.
		for i, loc := range active {
			if i > 0 {
				if err := s.limiter.Wait(ctx); err != nil {
					break
				}
			}
			result := s.scrapeLocation(ctx, session, loc, log)
			results = append(results, result)
			if s.metrics != nil {
				s.observeLocation(result)
			}
		}
		// 4. Best-effort close before delivery; the session is no
		// longer needed.
		session.Close()
	}

	// 5. Deliver downstream regardless of how the batch itself went.
	payload := models.BatchPayload{BatchID: batchID, Results: results}
	if err := s.sink.PostBatch(ctx, payload); err != nil {
		log.Error("batch ingestion failed", "error", err)
		topErrors = append(topErrors, models.NewScrapeError(
			models.ErrCodeDownstream, "batch ingestion failed", err).Error())
	}
	if err := s.sink.Notify(ctx); err != nil {
		log.Warn("downstream notification failed", "error", err)
	}

	summary := buildSummary(batchID, started, results, topErrors)
	if err := s.sender.SendSummary(ctx, summary); err != nil {
		log.Warn("summary webhook failed", "error", err)
	}

	if s.metrics != nil {
		status := "ok"
		if len(summary.Errors) > 0 {
			status = "partial"
		}
		s.metrics.BatchesTotal.WithLabelValues(status).Inc()
		s.metrics.BatchDuration.Observe(summary.Duration.Seconds())
	}

	s.mu.Lock()
	s.lastSummary = &summary
	s.mu.Unlock()

	log.Info("batch finished",
		"duration", summary.Duration.Round(time.Second),
		"locationsOk", summary.LocationsOK,
		"products", summary.Products,
		"withQuantity", summary.WithQuantity,
		"errors", len(summary.Errors),
	)
	return &summary, nil
}

// acquireSession creates a connected browser session behind the
// circuit breaker, retrying transient provider failures.
func (s *Service) acquireSession(ctx context.Context) (Session, error) {
	return resilience.WithBreaker(ctx, s.breakers, breakerKey, func(ctx context.Context) (Session, error) {
		return resilience.WithRetry(ctx, s.newSession, resilience.RetryOptions{
			MaxRetries: s.cfg.Resilience.SessionRetries - 1,
			BaseDelay:  s.cfg.Resilience.SessionBaseDelay,
			OnRetry: func(attempt int, err error, delay time.Duration) {
				s.log.Warn("session retry", "attempt", attempt, "delay", delay, "error", err)
			},
		})
	}, resilience.BreakerOptions{
		FailureThreshold: s.cfg.Resilience.BreakerThreshold,
		ResetTime:        s.cfg.Resilience.BreakerResetTime,
	})
}

// scrapeLocation runs the per-location attempt loop. It always returns
// a result entry; a location's failure never blocks the others.
func (s *Service) scrapeLocation(ctx context.Context, session Session, loc models.Location, log *slog.Logger) models.BatchResult {
	log = log.With("retailer", loc.RetailerSlug)
	result := models.BatchResult{
		RetailerID: loc.RetailerSlug,
		Items:      []models.ScrapedProduct{},
		Status:     models.BatchStatusError,
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.Scrape.LocationAttempts; attempt++ {
		result.Attempts = attempt
		items, err := s.scrapeOnce(ctx, session, loc, log)
		if err == nil {
			result.Items = items
			result.Status = models.BatchStatusOK
			log.Info("location scraped", "attempt", attempt, "products", len(items))
			return result
		}
		lastErr = err
		log.Warn("location attempt failed", "attempt", attempt, "error", err)
		if ctx.Err() != nil {
			break
		}
	}

	result.Error = classifyError(lastErr).Error()
	s.captureFailure(ctx, session, loc, log)
	return result
}

// classifyError assigns a stable error code for downstream reporting.
func classifyError(err error) *models.ScrapeError {
	var (
		openErr    *resilience.CircuitOpenError
		navErr     *cdp.NavigationError
		closedErr  *cdp.ConnectionClosedError
		timeoutErr *cdp.CommandTimeoutError
		connErr    *cdp.ConnectionError
		statusErr  *resilience.HTTPStatusError
	)
	switch {
	case errors.As(err, &openErr):
		return models.NewScrapeError(models.ErrCodeCircuitOpen, "browser dependency unavailable", err)
	case errors.As(err, &navErr):
		return models.NewScrapeError(models.ErrCodeNavigation, "menu navigation failed", err)
	case errors.As(err, &closedErr), errors.As(err, &timeoutErr), errors.As(err, &connErr):
		return models.NewScrapeError(models.ErrCodeTransport, "browser transport failed", err)
	case errors.As(err, &statusErr):
		return models.NewScrapeError(models.ErrCodeSession, "browser provider rejected session", err)
	default:
		return models.NewScrapeError(models.ErrCodeExtraction, "listing extraction failed", err)
	}
}

// scrapeOnce is one full location attempt: navigate, render, age gate,
// listing extraction, detail resolution.
func (s *Service) scrapeOnce(ctx context.Context, session Session, loc models.Location, log *slog.Logger) ([]models.ScrapedProduct, error) {
	// 1. Navigation gets its own small inline retry; transient load
	// failures are common on heavy menu pages.
	navOpts := cdp.NavigateOptions{WaitUntil: "load", Timeout: s.cfg.Scrape.NavTimeout}
	var navErr error
	for n := 0; n < s.cfg.Scrape.NavAttempts; n++ {
		if navErr = session.Goto(ctx, loc.MenuURL, navOpts); navErr == nil {
			break
		}
		log.Debug("navigation retry", "attempt", n+1, "error", navErr)
		select {
		case <-time.After(s.cfg.Scrape.NavRetryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if navErr != nil {
		return nil, fmt.Errorf("navigate %s: %w", loc.MenuURL, navErr)
	}

	// 2. Let client-side rendering settle.
	if err := sleep(ctx, s.cfg.Scrape.RenderDelay); err != nil {
		return nil, err
	}

	// 3. Dismiss an age gate if one is up. Failures here are ignored;
	// absence of a gate is the common case.
	var clicked bool
	if err := session.Call(ctx, scriptDismissAgeGate, &clicked, s.cfg.Scrape.AgeGateTexts); err != nil {
		log.Debug("age gate check failed", "error", err)
	}
	if clicked {
		log.Debug("age gate dismissed")
		if err := sleep(ctx, s.cfg.Scrape.RenderDelay); err != nil {
			return nil, err
		}
	}

	// 4. Collect listing cards and page links in raw form.
	var cards []cardData
	if err := session.Call(ctx, scriptCollectCards, &cards, cardSelectors); err != nil {
		return nil, fmt.Errorf("collect cards: %w", err)
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("no product cards found")
	}
	var links []pageLink
	if err := session.Call(ctx, scriptPageLinks, &links); err != nil {
		log.Debug("page link collection failed", "error", err)
	}

	// 5. Parse cards on the Go side.
	now := time.Now()
	items := make([]*listingItem, 0, len(cards))
	for _, card := range cards {
		item, ok := parseCard(card, loc, now)
		if !ok {
			continue
		}
		items = append(items, &item)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no products parsed from %d cards", len(cards))
	}

	// 6. Resolve quantities for products that lack a listing signal.
	s.resolveDetails(ctx, session, items, links, log)

	products := make([]models.ScrapedProduct, len(items))
	for i, item := range items {
		products[i] = item.product
	}
	return products, nil
}

// resolveDetails fans out to the page pool for every in-stock product
// without a quantity signal. Per-item failures are logged and skipped;
// nothing here aborts the location.
func (s *Service) resolveDetails(ctx context.Context, session Session, items []*listingItem, links []pageLink, log *slog.Logger) {
	candidates := make([]*listingItem, 0, len(items))
	for _, item := range items {
		if !item.needsDetail || !item.product.InStock {
			continue
		}
		if item.detailURL == "" {
			item.detailURL = matchDetailURL(item.product.Name, links)
		}
		if item.detailURL == "" {
			continue
		}
		candidates = append(candidates, item)
		if len(candidates) >= s.cfg.Scrape.DetailPageLimit {
			break
		}
	}
	if len(candidates) == 0 {
		return
	}

	poolSize := s.cfg.Scrape.PoolSize
	if poolSize > len(candidates) {
		poolSize = len(candidates)
	}
	pool := newPagePool(ctx, session, poolSize, log)
	if pool.size() == 0 {
		log.Warn("no pool pages available, skipping detail resolution")
		return
	}
	defer pool.close(ctx)

	log.Debug("resolving detail pages", "candidates", len(candidates), "pool", pool.size())
	pool.run(ctx, len(candidates), s.cfg.Scrape.PoolBatchDelay, func(ctx context.Context, page Page, index int) error {
		item := candidates[index]
		if err := s.resolveOne(ctx, page, item, index); err != nil {
			log.Debug("detail resolution failed", "url", item.detailURL, "error", err)
			return err
		}
		return nil
	})
}

// resolveOne visits a single detail page and merges whatever the
// heuristic chain found. Early candidates additionally get the slow
// cart-hack fallback when the text heuristics came up empty.
func (s *Service) resolveOne(ctx context.Context, page Page, item *listingItem, index int) error {
	navOpts := cdp.NavigateOptions{WaitUntil: "load", Timeout: s.cfg.Scrape.NavTimeout}
	if err := page.Navigate(ctx, item.detailURL, navOpts); err != nil {
		return err
	}
	if err := sleep(ctx, s.cfg.Scrape.RenderDelay); err != nil {
		return err
	}

	var probe detailProbe
	if err := page.Call(ctx, scriptDetailProbe, &probe); err != nil {
		return err
	}
	res := resolveInventory(probe, s.cfg.Inventory.DropdownCeiling)

	if res.Confidence == models.ConfidenceBoolean && index < s.cfg.Scrape.CartHackLimit {
		if cartRes, ok, err := runCartHack(ctx, page, s.cfg.Inventory.CartSentinel); err == nil && ok {
			res = cartRes
		}
	}

	item.product.Merge(res)
	return nil
}

// captureFailure saves a debug screenshot of the failed page when a
// screenshot directory is configured.
func (s *Service) captureFailure(ctx context.Context, session Session, loc models.Location, log *slog.Logger) {
	dir := s.cfg.Scrape.DebugScreenshotDir
	if dir == "" {
		return
	}
	data, err := session.Screenshot(ctx, cdp.ScreenshotOptions{Format: "png", FullPage: true})
	if err != nil {
		log.Debug("failure screenshot failed", "error", err)
		return
	}
	name := fmt.Sprintf("%s-%s.png", loc.RetailerSlug, time.Now().UTC().Format("20060102-150405"))
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		log.Debug("failure screenshot write failed", "error", err)
	}
}

// observeLocation records per-location metrics.
func (s *Service) observeLocation(result models.BatchResult) {
	s.metrics.LocationsTotal.WithLabelValues(result.Status).Inc()
	s.metrics.ProductsScraped.Add(float64(len(result.Items)))
	for _, item := range result.Items {
		if item.Quantity != nil && item.QuantitySource != models.QuantitySourceNone {
			s.metrics.QuantityResolved.WithLabelValues(item.QuantitySource).Inc()
		}
	}
}

// buildSummary rolls a batch up for operators.
func buildSummary(batchID string, started time.Time, results []models.BatchResult, topErrors []string) models.BatchSummary {
	summary := models.BatchSummary{
		BatchID:        batchID,
		StartedAt:      started,
		Duration:       time.Since(started),
		LocationsTotal: len(results),
		Errors:         topErrors,
	}
	for _, r := range results {
		if r.Status == models.BatchStatusOK {
			summary.LocationsOK++
		} else {
			summary.Errors = append(summary.Errors, r.RetailerID+": "+r.Error)
		}
		summary.Products += len(r.Items)
		for _, item := range r.Items {
			if item.Quantity != nil {
				summary.WithQuantity++
			}
		}
	}
	return summary
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
