package hypothesis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("hypothesis: closed")

// Lazy computes a value on first use and caches it. Concurrent callers share one
// in-flight build. A failed build caches nothing, so the next caller tries again.
// Once a value is cached, Get is a single atomic load.
type Lazy[T any] struct {
	build  func(ctx context.Context) (T, error)
	retire func(T)

	value atomic.Pointer[T]

	mu       sync.Mutex
	inflight *lazyCall[T]
	gen      uint64
	stale    []T
	closed   bool
}

type lazyCall[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// NewLazy returns a cell that computes its value with build.
func NewLazy[T any](build func(ctx context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{build: build}
}

// WithRetire sets a hook for values a Reset has replaced. A replaced value stays
// usable by whoever holds it until the next build is cached; then retire receives it.
func (l *Lazy[T]) WithRetire(retire func(T)) *Lazy[T] {
	l.mu.Lock()
	l.retire = retire
	l.mu.Unlock()
	return l
}

// Get returns the cached value, building it if needed. The build runs on a context
// detached from ctx, so a caller that gives up does not abort a build other callers
// wait on; the caller itself returns ctx.Err() as soon as ctx is done.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	if v := l.value.Load(); v != nil {
		return *v, nil
	}

	l.mu.Lock()
	if v := l.value.Load(); v != nil {
		l.mu.Unlock()
		return *v, nil
	}
	if l.closed {
		l.mu.Unlock()
		var zero T
		return zero, ErrClosed
	}
	c := l.inflight
	if c == nil {
		c = &lazyCall[T]{done: make(chan struct{})}
		l.inflight = c
		go l.run(context.WithoutCancel(ctx), c, l.gen)
	}
	l.mu.Unlock()

	select {
	case <-c.done:
		if c.err != nil {
			var zero T
			return zero, c.err
		}
		return c.val, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (l *Lazy[T]) run(ctx context.Context, c *lazyCall[T], gen uint64) {
	val, err := l.safeBuild(ctx)

	l.mu.Lock()
	c.val, c.err = val, err
	if l.inflight == c {
		l.inflight = nil
	}
	var retired []T
	if err == nil {
		switch {
		case gen == l.gen:
			l.value.Store(&val)
			retired, l.stale = l.stale, nil
		case l.closed:
			retired = []T{val}
		default:
			// a Reset during the build makes this result stale; its waiters still get it
			l.replaced(val)
		}
	}
	retire := l.retire
	l.mu.Unlock()
	retireAll(retire, retired)
	close(c.done)
}

// replaced queues v for retirement. Callers hold l.mu.
func (l *Lazy[T]) replaced(v T) {
	if l.retire != nil {
		l.stale = append(l.stale, v)
	}
}

func retireAll[T any](retire func(T), vals []T) {
	if retire == nil {
		return
	}
	for _, v := range vals {
		retire(v)
	}
}

func (l *Lazy[T]) safeBuild(ctx context.Context) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("build panicked: %v", r)
		}
	}()
	return l.build(ctx)
}

// Peek returns the cached value without building it.
func (l *Lazy[T]) Peek() (T, bool) {
	if v := l.value.Load(); v != nil {
		return *v, true
	}
	var zero T
	return zero, false
}

// Reset drops the cached value. The next Get starts a fresh build.
func (l *Lazy[T]) Reset() {
	l.mu.Lock()
	l.gen++
	l.inflight = nil
	if v := l.value.Swap(nil); v != nil {
		l.replaced(*v)
	}
	l.mu.Unlock()
}

// Close stops the cell. Replaced values are retired, the current one is handed to
// the caller, and builds still running are retired when they finish. Get then
// returns ErrClosed.
func (l *Lazy[T]) Close() (T, bool) {
	l.mu.Lock()
	l.closed = true
	l.gen++
	l.inflight = nil
	retired := l.stale
	l.stale = nil
	v := l.value.Swap(nil)
	retire := l.retire
	l.mu.Unlock()

	retireAll(retire, retired)
	if v == nil {
		var zero T
		return zero, false
	}
	return *v, true
}
