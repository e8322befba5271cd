package sql

import (
	"context"
	"sync/atomic"

	"github.com/opentracing/opentracing-go"
	uuid "github.com/satori/go.uuid"
)

const (
	// DefaultGroupConcatMaxLen bounds the byte length of a GROUP_CONCAT
	// result.
	DefaultGroupConcatMaxLen = 1024
	// DefaultMultiRangeOptLimit is the largest ORDER BY ... LIMIT upper
	// bound for which the multi-range optimization is considered.
	DefaultMultiRangeOptLimit = 10000
	// DefaultSortBufferTuples is the number of tuples a list file keeps in
	// memory before spilling them, in arrival order, to a run file.
	DefaultSortBufferTuples = 4096
)

// Session holds the per-session state threaded through every entry point.
// There is no ambient global state; a session is created once at connect
// time. The tunables are exported fields that callers assign directly; there
// are no setters for them. The interrupt flag changes only through Interrupt
// and ClearInterrupt.
type Session struct {
	id uuid.UUID

	// GroupConcatMaxLen is the result size cap for GROUP_CONCAT.
	GroupConcatMaxLen int
	// MultiRangeOptLimit caps the key limit for multi-range optimization.
	MultiRangeOptLimit int
	// SortBufferTuples is the list-file spill threshold.
	SortBufferTuples int
	// TempDir is where list files spill. Empty means the OS default.
	TempDir string

	interrupted atomic.Bool
	warnedOnce  atomic.Bool
}

// NewSession creates a session with default tunables.
func NewSession() *Session {
	return &Session{
		id:                 uuid.NewV4(),
		GroupConcatMaxLen:  DefaultGroupConcatMaxLen,
		MultiRangeOptLimit: DefaultMultiRangeOptLimit,
		SortBufferTuples:   DefaultSortBufferTuples,
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Interrupt requests cancellation of the running query. It may be called
// from a watchdog thread; the engine observes it at the next row boundary.
func (s *Session) Interrupt() { s.interrupted.Store(true) }

// ClearInterrupt resets the interrupt flag before a new query starts.
func (s *Session) ClearInterrupt() { s.interrupted.Store(false) }

// Interrupted reports whether an interrupt was requested.
func (s *Session) Interrupted() bool { return s.interrupted.Load() }

// WarnOnce returns true the first time it is called on this session. It
// backs the GROUP_CONCAT truncation warning.
func (s *Session) WarnOnce() bool { return s.warnedOnce.CompareAndSwap(false, true) }

// Context wraps a standard context with the session and the tracer used to
// start spans.
type Context struct {
	context.Context
	*Session
	tracer opentracing.Tracer
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithSession sets the session of the context.
func WithSession(s *Session) ContextOption {
	return func(ctx *Context) { ctx.Session = s }
}

// WithTracer sets the tracer used to start spans.
func WithTracer(t opentracing.Tracer) ContextOption {
	return func(ctx *Context) { ctx.tracer = t }
}

// NewContext creates a query context.
func NewContext(ctx context.Context, opts ...ContextOption) *Context {
	c := &Context{Context: ctx, Session: NewSession(), tracer: opentracing.NoopTracer{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewEmptyContext creates a context with a fresh session, for tests and
// internal callers.
func NewEmptyContext() *Context { return NewContext(context.Background()) }

// WithContext returns a copy of the query context carrying the given
// standard context.
func (ctx *Context) WithContext(inner context.Context) *Context {
	return &Context{Context: inner, Session: ctx.Session, tracer: ctx.tracer}
}

// Span starts a tracing span with the given operation name.
func (ctx *Context) Span(op string, opts ...opentracing.StartSpanOption) (opentracing.Span, *Context) {
	span := ctx.tracer.StartSpan(op, opts...)
	return span, &Context{Context: ctx.Context, Session: ctx.Session, tracer: ctx.tracer}
}

// CheckInterrupt reports cancellation, either from the wrapped context or
// from the session interrupt flag. It is called between rows.
func (ctx *Context) CheckInterrupt() error {
	if ctx.Session != nil && ctx.Session.Interrupted() {
		return ErrInterrupted.New()
	}
	if err := ctx.Context.Err(); err != nil {
		return ErrInterrupted.New()
	}
	return nil
}
