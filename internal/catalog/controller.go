// Package catalog drives the external book-catalog search: a debounced,
// cancellable controller with a short-lived result cache and a bounded
// retry on rate limiting, plus conversion of catalog volumes into books.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"

	"github.com/recoread/recoread-client/internal/domain"
	domainerrors "github.com/recoread/recoread-client/internal/errors"
)

// Defaults mirror the interactive search box.
const (
	DefaultDebounce    = 500 * time.Millisecond
	DefaultCacheTTL    = 5 * time.Minute
	DefaultMaxAttempts = 3
	DefaultRetryBase   = 600 * time.Millisecond
	DefaultMaxResults  = 20

	// MinQueryLength is the shortest trimmed query that reaches the network.
	MinQueryLength = 2
)

// ErrSuperseded is returned to a Search call replaced by a newer one.
// Callers should ignore it; the newer call reports the current result.
var ErrSuperseded = errors.New("search superseded by newer input")

// State is the controller's position in its search lifecycle.
type State int

// Controller states.
const (
	Idle State = iota
	Pending
	InFlight
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case InFlight:
		return "in_flight"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Searcher performs one catalog query against the backend.
type Searcher interface {
	SearchCatalog(ctx context.Context, query string, maxResults int) (*domain.CatalogSearchResponse, error)
}

// Options configures a Controller. Zero values take the defaults.
type Options struct {
	Debounce    time.Duration
	CacheTTL    time.Duration
	MaxAttempts int
	RetryBase   time.Duration
	MaxResults  int
	Logger      *slog.Logger

	// Now overrides the clock used for cache expiry.
	Now func() time.Time
}

// Controller coalesces rapid search input into at most one backend call.
//
// Every Search supersedes the previous one: a pending call never fires and
// an in-flight call has its context cancelled. It is safe for concurrent use.
type Controller struct {
	searcher    Searcher
	logger      *slog.Logger
	debounce    time.Duration
	maxAttempts int
	retryBase   time.Duration
	maxResults  int
	cache       *resultCache

	// sleep waits between retry attempts.
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	state  State
	gen    uint64
	cancel context.CancelFunc
}

// NewController creates a controller that queries through s.
func NewController(s Searcher, opts Options) *Controller {
	if opts.Debounce < 0 {
		opts.Debounce = 0
	} else if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = DefaultRetryBase
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Controller{
		searcher:    s,
		logger:      opts.Logger,
		debounce:    opts.Debounce,
		maxAttempts: opts.MaxAttempts,
		retryBase:   opts.RetryBase,
		maxResults:  opts.MaxResults,
		cache:       newResultCache(opts.CacheTTL, opts.Now),
		sleep:       sleepContext,
	}
}

// State reports where the controller is in its lifecycle.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Search runs query after the quiet period unless a newer call supersedes it.
//
// Queries shorter than MinQueryLength return an empty list at once and
// cancel whatever was pending. A superseded call returns ErrSuperseded.
func (c *Controller) Search(ctx context.Context, query string) ([]Item, error) {
	key := cacheKey(query)

	c.mu.Lock()
	c.gen++
	gen := c.gen
	superseded := c.supersedeLocked()

	if utf8.RuneCountInString(key) < MinQueryLength {
		if superseded {
			c.state = Cancelled
		} else {
			c.state = Idle
		}
		c.mu.Unlock()
		return []Item{}, nil
	}

	callCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = Pending
	c.mu.Unlock()

	if err := c.wait(callCtx); err != nil {
		return nil, c.abandon(ctx, gen)
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil, ErrSuperseded
	}
	c.state = InFlight
	c.mu.Unlock()

	items, err := c.fetch(callCtx, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return nil, ErrSuperseded
	}
	c.cancel = nil
	cancel()

	if err != nil && ctx.Err() != nil {
		c.state = Cancelled
		return nil, ctx.Err()
	}
	c.state = Idle
	return items, err
}

// Cancel abandons any pending or in-flight search.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.supersedeLocked() {
		c.state = Cancelled
	}
}

// supersedeLocked cancels the current call, if any, and reports whether
// there was one.
func (c *Controller) supersedeLocked() bool {
	if c.cancel == nil {
		return false
	}
	c.cancel()
	c.cancel = nil
	return c.state == Pending || c.state == InFlight
}

// abandon decides what a call whose wait was interrupted returns.
func (c *Controller) abandon(parent context.Context, gen uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return ErrSuperseded
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = Cancelled
	if err := parent.Err(); err != nil {
		return err
	}
	return ErrSuperseded
}

func (c *Controller) wait(ctx context.Context) error {
	if c.debounce == 0 {
		return ctx.Err()
	}
	return sleepContext(ctx, c.debounce)
}

// fetch serves key from the cache or queries the backend, retrying on 429.
func (c *Controller) fetch(ctx context.Context, key string) ([]Item, error) {
	if items, ok := c.cache.get(key); ok {
		c.logger.Debug("catalog search cache hit", "query", key)
		return items, nil
	}
	fetchedAt := c.cache.now()

	schedule := c.retrySchedule()
	for attempt := 1; ; attempt++ {
		resp, err := c.searcher.SearchCatalog(ctx, key, c.maxResults)
		if err == nil {
			items := itemsFrom(resp)
			if ctx.Err() == nil {
				c.cache.put(key, items, fetchedAt)
			}
			return items, nil
		}

		delay := schedule.NextBackOff()
		if domainerrors.CodeOf(err) != domainerrors.CodeRateLimited {
			return nil, err
		}
		if attempt >= c.maxAttempts {
			limited := domainerrors.RateLimited(domainerrors.MsgSearchRateLimit).WithCause(err)
			limited.RetryAfter = delay
			return nil, limited
		}

		c.logger.Debug("catalog search rate limited, retrying", "query", key, "attempt", attempt, "delay", delay)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// retrySchedule yields base, 2×base, 4×base... with no jitter.
func (c *Controller) retrySchedule() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.retryBase,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         c.retryBase << 10,
	}
	b.Reset()
	return b
}

func itemsFrom(resp *domain.CatalogSearchResponse) []Item {
	if resp == nil {
		return []Item{}
	}
	items := make([]Item, 0, len(resp.Items))
	for _, v := range resp.Items {
		items = append(items, NewItem(v))
	}
	return items
}

func cacheKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
