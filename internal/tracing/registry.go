package tracing

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nm90/educational-mvc-sub001/internal/pkg/metrics"
)

type contextKey struct{}

// Registry hands out one RequestContext per request and tracks the ones
// that have not been released yet. Lookups never cross requests: the
// RequestContext travels in the context.Context of the request that began
// it, and Current only ever reads from the caller's context.
type Registry struct {
	snap *snapshotter

	mtx  sync.Mutex
	live map[string]*RequestContext
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxValueLength sets the length, in bytes of serialized JSON, above
// which a captured value is truncated. Zero or less disables truncation.
func WithMaxValueLength(n int) Option {
	return func(r *Registry) { r.snap.maxLen = n }
}

// WithRedactedKeys sets the object keys whose values are replaced with
// "***" in every snapshot. Matching is case-insensitive.
func WithRedactedKeys(keys ...string) Option {
	return func(r *Registry) {
		r.snap = newSnapshotter(r.snap.maxLen, keys)
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		snap: newSnapshotter(defaultMaxValueLength, nil),
		live: map[string]*RequestContext{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Begin creates a RequestContext with a fresh request ID and returns a
// derived context carrying it. Every successful Begin must be paired with
// End, typically deferred.
func (r *Registry) Begin(ctx context.Context, info RequestInfo) (context.Context, *RequestContext, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return ctx, nil, fmt.Errorf("generate request id: %w", err)
	}

	rc := newRequestContext(id.String(), info, r.snap)

	r.mtx.Lock()
	r.live[rc.id] = rc
	r.mtx.Unlock()
	metrics.LiveRequestContexts.Inc()

	return context.WithValue(ctx, contextKey{}, rc), rc, nil
}

// End finalizes rc if needed and releases it. Calling End more than once is
// safe; a nil rc is ignored.
func (r *Registry) End(rc *RequestContext) {
	if rc == nil {
		return
	}
	if !rc.release() {
		return
	}

	r.mtx.Lock()
	delete(r.live, rc.id)
	r.mtx.Unlock()
	metrics.LiveRequestContexts.Dec()
}

// Live returns the number of contexts begun and not yet ended.
func (r *Registry) Live() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return len(r.live)
}

// Lookup returns the live context with the given request ID.
func (r *Registry) Lookup(id string) (*RequestContext, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	rc, ok := r.live[id]
	return rc, ok
}

// Current returns the RequestContext of the request ctx belongs to. It
// reports false outside a request and after the request has been released.
func Current(ctx context.Context) (*RequestContext, bool) {
	if ctx == nil {
		return nil, false
	}
	rc, ok := ctx.Value(contextKey{}).(*RequestContext)
	if !ok || rc == nil || rc.Released() {
		return nil, false
	}
	return rc, true
}

// NewContext returns a copy of ctx carrying rc. It is used to hand an
// existing RequestContext to a context that didn't derive from Begin's.
func NewContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}
