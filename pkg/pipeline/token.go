package pipeline

import (
	"context"
	"sync/atomic"
)

// Token is a per-call cancellation handle. A stage invalidates the previous
// token before issuing a new call, so a stale response can never be applied:
// result application is guarded by Invalidated, not by timestamp comparison.
type Token struct {
	ctx     context.Context
	cancel  context.CancelFunc
	invalid atomic.Bool
}

func NewToken(parent context.Context) *Token {
	ctx, cancel := context.WithCancel(parent)
	return &Token{ctx: ctx, cancel: cancel}
}

// Context carries the cancellation to the external call.
func (t *Token) Context() context.Context {
	return t.ctx
}

// Cancel invalidates the token first, then aborts the in-flight call.
// The order matters: once Cancel returns, the call's eventual resolution is
// guaranteed to be discarded even if its response races the context abort.
func (t *Token) Cancel() {
	t.invalid.Store(true)
	t.cancel()
}

// Invalidated reports whether the call's result must be discarded.
func (t *Token) Invalidated() bool {
	return t.invalid.Load()
}
