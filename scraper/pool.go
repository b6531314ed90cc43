package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// retireThreshold is the error score at which a pooled page is closed
// and replaced. Errors raise the score faster than successes lower it,
// so a page that keeps failing gets swapped for a fresh one while an
// occasional failure is forgiven.
const retireThreshold = 3

type pooledPage struct {
	page     Page
	errScore int
}

// pagePool runs detail-page work over up to P concurrent pages on one
// session. Work proceeds in fixed-size batches of P, fully parallel
// within a batch, serial between batches with a delay.
type pagePool struct {
	session Session
	pages   []*pooledPage
	log     *slog.Logger
}

// newPagePool creates up to size pages. Page creation failures shrink
// the pool rather than failing it; only a pool of zero pages is an
// error for the caller to handle.
func newPagePool(ctx context.Context, session Session, size int, log *slog.Logger) *pagePool {
	pool := &pagePool{session: session, log: log}
	for i := 0; i < size; i++ {
		page, err := session.CreatePage(ctx)
		if err != nil {
			log.Warn("pool page creation failed, continuing with fewer",
				"wanted", size, "have", len(pool.pages), "error", err)
			break
		}
		pool.pages = append(pool.pages, &pooledPage{page: page})
	}
	return pool
}

func (p *pagePool) size() int { return len(p.pages) }

// run processes items in batches of pool size. worker errors are
// recorded against the page's health but never stop the run; a failed
// item is simply skipped.
func (p *pagePool) run(ctx context.Context, count int, batchDelay time.Duration, worker func(ctx context.Context, page Page, index int) error) {
	if len(p.pages) == 0 || count == 0 {
		return
	}

	for start := 0; start < count; start += len(p.pages) {
		if start > 0 {
			select {
			case <-time.After(batchDelay):
			case <-ctx.Done():
				return
			}
		}

		var wg sync.WaitGroup
		for slot := 0; slot < len(p.pages) && start+slot < count; slot++ {
			wg.Add(1)
			go func(pp *pooledPage, index int) {
				defer wg.Done()
				err := worker(ctx, pp.page, index)
				p.score(ctx, pp, err)
			}(p.pages[slot], start+slot)
		}
		wg.Wait()

		if ctx.Err() != nil {
			return
		}
	}
}

// score updates a page's health after one work item and retires it when
// it keeps failing.
func (p *pagePool) score(ctx context.Context, pp *pooledPage, err error) {
	if err == nil {
		if pp.errScore > 0 {
			pp.errScore--
		}
		return
	}

	pp.errScore += 2
	if pp.errScore < retireThreshold {
		return
	}

	p.log.Warn("retiring unhealthy pool page", "errScore", pp.errScore)
	_ = pp.page.Close(ctx)
	fresh, createErr := p.session.CreatePage(ctx)
	if createErr != nil {
		// Keep the old handle; the next batch may still get through.
		p.log.Warn("pool page replacement failed", "error", createErr)
		pp.errScore = 0
		return
	}
	pp.page = fresh
	pp.errScore = 0
}

// close releases every pooled page, best-effort.
func (p *pagePool) close(ctx context.Context) {
	for _, pp := range p.pages {
		if err := pp.page.Close(ctx); err != nil {
			p.log.Debug("pool page close failed", "error", err)
		}
	}
	p.pages = nil
}
