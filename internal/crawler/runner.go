package crawler

import (
	"context"
	"sync"
	"sync/atomic"

	"webtoonhub/internal/progress"
)

// Runner lets at most one crawl run per process.
type Runner struct {
	engine  *Engine
	running atomic.Bool

	mu     sync.RWMutex
	last   *Summary
	status *Status
}

// NewRunner hooks the runner into e's state transitions; an Observe already
// set on e keeps being called.
func NewRunner(e *Engine) *Runner {
	r := &Runner{engine: e}
	prev := e.Observe
	e.Observe = func(s Status) {
		r.mu.Lock()
		r.status = &s
		r.mu.Unlock()
		if prev != nil {
			prev(s)
		}
	}
	return r
}

// Claim is a reserved crawl slot. Run it once; the slot is released when
// Run returns.
type Claim struct {
	r    *Runner
	once sync.Once
}

// Start reserves the runner without running anything yet, so a caller can
// refuse a request before committing to a response.
func (r *Runner) Start() (*Claim, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrCrawlInProgress
	}
	return &Claim{r: r}, nil
}

// Run performs the crawl. A second call returns ErrCrawlInProgress.
func (c *Claim) Run(ctx context.Context, sink progress.Sink) (Summary, error) {
	ran := false
	var (
		sum Summary
		err error
	)
	c.once.Do(func() {
		ran = true
		defer c.r.running.Store(false)
		sum, err = c.r.engine.Run(ctx, sink)
		c.r.mu.Lock()
		c.r.last = &sum
		c.r.mu.Unlock()
	})
	if !ran {
		return Summary{}, ErrCrawlInProgress
	}
	return sum, err
}

// Release gives the slot back without running.
func (c *Claim) Release() {
	c.once.Do(func() { c.r.running.Store(false) })
}

// Run claims the runner and crawls.
func (r *Runner) Run(ctx context.Context, sink progress.Sink) (Summary, error) {
	claim, err := r.Start()
	if err != nil {
		return Summary{}, err
	}
	return claim.Run(ctx, sink)
}

// Running reports whether a crawl is in flight.
func (r *Runner) Running() bool { return r.running.Load() }

// Last returns the summary of the most recent finished crawl.
func (r *Runner) Last() (Summary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return Summary{}, false
	}
	return *r.last, true
}

// Status returns the state of the current crawl, or the terminal state of
// the last one when idle. ok is false before any crawl.
func (r *Runner) Status() (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.status == nil {
		return Status{}, false
	}
	return *r.status, true
}
