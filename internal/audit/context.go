package audit

import (
	"context"
	"sync"
)

// Context is the request metadata needed to attribute a later audit
// record to an actor.
type Context struct {
	TenantID      string `json:"tenantId,omitempty"`
	BranchID      string `json:"branchId,omitempty"`
	UserID        string `json:"userId,omitempty"`
	IPAddress     string `json:"ipAddress,omitempty"`
	UserAgent     string `json:"userAgent,omitempty"`
	RequestPath   string `json:"requestPath,omitempty"`
	RequestMethod string `json:"requestMethod,omitempty"`
}

// holder is the per-request cell. It lives in a context.Context value, so
// two requests never share one.
type holder struct {
	mu  sync.RWMutex
	cur Context
}

type holderKey struct{}

// WithScope returns a copy of ctx carrying a fresh, empty audit context.
// Call it once at request entry.
func WithScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, holderKey{}, &holder{})
}

// SetContext replaces the active audit context. Fields are not merged. If
// ctx has no scope yet one is installed, and the returned context must be
// used from then on.
func SetContext(ctx context.Context, c Context) context.Context {
	h, ok := ctx.Value(holderKey{}).(*holder)
	if !ok {
		h = &holder{}
		ctx = context.WithValue(ctx, holderKey{}, h)
	}
	h.mu.Lock()
	h.cur = c
	h.mu.Unlock()
	return ctx
}

// GetContext returns the active audit context, or the zero Context.
func GetContext(ctx context.Context) Context {
	if ctx == nil {
		return Context{}
	}
	h, ok := ctx.Value(holderKey{}).(*holder)
	if !ok {
		return Context{}
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cur
}

// ClearContext resets the active audit context to empty.
func ClearContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	if h, ok := ctx.Value(holderKey{}).(*holder); ok {
		h.mu.Lock()
		h.cur = Context{}
		h.mu.Unlock()
	}
}
