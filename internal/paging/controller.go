// Package paging accumulates a server-paginated list page by page.
//
// A Controller loads page 1, then appends the following pages on demand. At most one page
// request is in flight per controller: LoadMore while a load is running is a no-op. The lock is
// never held across the fetch. Results arriving after Close, or after a Reload superseded the
// request, are dropped without touching state.
package paging

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned by loads on a closed controller.
var ErrClosed = errors.New("paging: controller closed")

// State is the lifecycle position of a Controller.
type State int

const (
	StateIdle State = iota
	StateLoadingFirst
	StateReady
	StateLoadingMore
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingFirst:
		return "loading-first"
	case StateReady:
		return "ready"
	case StateLoadingMore:
		return "loading-more"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Page is one server response: the items of the page and the current total of the list.
type Page[T any] struct {
	Items []T
	Total int
}

// FetchFunc requests page number page (1-based).
type FetchFunc[T any] func(ctx context.Context, page, pageSize int) (Page[T], error)

// Snapshot is a copy of the controller state.
type Snapshot[T any] struct {
	Items    []T
	Total    int
	Page     int
	PageSize int
	State    State
	Err      error
}

// HasMore reports whether a further page exists.
func (s Snapshot[T]) HasMore() bool {
	return (s.State == StateReady || s.State == StateLoadingMore) && len(s.Items) < s.Total
}

// Controller owns the growing result set of one list.
type Controller[T any] struct {
	fetch    FetchFunc[T]
	pageSize int
	name     string
	log      *zap.Logger

	mu       sync.Mutex
	items    []T
	total    int
	page     int
	state    State
	err      error
	closed   bool
	gen      uint64
	onChange []func(Snapshot[T])
}

// Option configures a Controller.
type Option func(*options)

type options struct {
	name string
	log  *zap.Logger
}

// WithName labels the controller in log entries.
func WithName(name string) Option { return func(o *options) { o.name = name } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// New returns an idle controller. pageSize is passed to fetch unchanged.
func New[T any](fetch FetchFunc[T], pageSize int, opts ...Option) *Controller[T] {
	o := options{name: "list", log: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	return &Controller[T]{fetch: fetch, pageSize: pageSize, name: o.name, log: o.log}
}

// OnChange registers fn to receive a snapshot after every state change.
// fn runs on the goroutine that caused the change, outside the lock.
func (c *Controller[T]) OnChange(fn func(Snapshot[T])) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

// Load fetches page 1 unless the list is already loaded or loading.
func (c *Controller[T]) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateIdle && c.state != StateError {
		c.mu.Unlock()
		return nil
	}
	return c.loadFirstLocked(ctx)
}

// Reload discards the accumulated items and fetches page 1 again, superseding any load in flight.
func (c *Controller[T]) Reload(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	return c.loadFirstLocked(ctx)
}

// loadFirstLocked is entered with c.mu held and releases it.
func (c *Controller[T]) loadFirstLocked(ctx context.Context) error {
	c.gen++
	gen := c.gen
	c.items, c.total, c.page, c.err = nil, 0, 0, nil
	c.state = StateLoadingFirst
	c.emitUnlock()

	res, err := c.fetch(ctx, 1, c.pageSize)

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		c.log.Debug("page discarded", zap.String("list", c.name), zap.Int("page", 1))
		return nil
	}
	if err != nil {
		c.state, c.err = StateError, err
		c.emitUnlock()
		return err
	}
	c.merge(res, 1)
	c.emitUnlock()
	return nil
}

// LoadMore appends the next page. It reports whether items were appended. It is a no-op returning
// false when a load is in flight, the list is not loaded yet, or every item is already present.
// On failure the items and page are kept, so calling again retries the same page.
func (c *Controller[T]) LoadMore(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	if c.state != StateReady || len(c.items) >= c.total {
		c.mu.Unlock()
		return false, nil
	}
	gen := c.gen
	next := c.page + 1
	c.state, c.err = StateLoadingMore, nil
	c.emitUnlock()

	res, err := c.fetch(ctx, next, c.pageSize)

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		c.log.Debug("page discarded", zap.String("list", c.name), zap.Int("page", next))
		return false, nil
	}
	if err != nil {
		c.state, c.err = StateReady, err
		c.emitUnlock()
		return false, err
	}
	before := len(c.items)
	c.merge(res, next)
	added := len(c.items) > before
	c.emitUnlock()
	return added, nil
}

// merge appends res as page number page. Caller holds c.mu.
func (c *Controller[T]) merge(res Page[T], page int) {
	c.items = append(c.items, res.Items...)
	c.total = max(res.Total, 0)
	if len(res.Items) == 0 && len(c.items) < c.total {
		// an empty page ends the list even if the server still reports more
		c.total = len(c.items)
	}
	if len(c.items) > c.total {
		c.items = c.items[:c.total]
	}
	c.page = page
	c.state = StateReady
	c.err = nil
	c.log.Debug("page merged",
		zap.String("list", c.name),
		zap.Int("page", page),
		zap.Int("items", len(c.items)),
		zap.Int("total", c.total),
	)
}

// Close tears the controller down. Loads in flight finish but their results are dropped.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.onChange = nil
}

// Snapshot returns a copy of the current state.
func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// HasMore reports whether LoadMore could append anything.
func (c *Controller[T]) HasMore() bool { return c.Snapshot().HasMore() }

// Items returns a copy of the accumulated items.
func (c *Controller[T]) Items() []T { return c.Snapshot().Items }

func (c *Controller[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		Items:    append([]T(nil), c.items...),
		Total:    c.total,
		Page:     c.page,
		PageSize: c.pageSize,
		State:    c.state,
		Err:      c.err,
	}
}

// emitUnlock releases c.mu and then notifies listeners.
func (c *Controller[T]) emitUnlock() {
	snap := c.snapshotLocked()
	fns := slices.Clone(c.onChange)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}
