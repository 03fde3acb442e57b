package live

import (
	"context"
	"sync"
)

// turnToken identifies "the current turn". At most one token is live at a
// time; superseding it invalidates all outstanding work for the prior turn.
type turnToken uint64

// tokenSource issues and invalidates turn tokens. Completion handlers check
// isCurrent before mutating shared state, giving compare-and-swap semantics
// without true parallel turn execution.
type tokenSource struct {
	mu     sync.Mutex
	gen    turnToken
	cancel context.CancelFunc
}

// begin supersedes any previous token, cancels its pending I/O, and returns
// a fresh token with a context bound to it.
func (ts *tokenSource) begin(parent context.Context) (context.Context, turnToken) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.cancel != nil {
		ts.cancel()
	}
	ts.gen++
	ctx, cancel := context.WithCancel(parent)
	ts.cancel = cancel
	return ctx, ts.gen
}

// isCurrent reports whether tok still identifies the live turn.
func (ts *tokenSource) isCurrent(tok turnToken) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return tok == ts.gen
}

// cancelAll invalidates the live token and cancels its pending I/O. Used on
// session teardown; any in-flight result arriving afterwards is dropped.
func (ts *tokenSource) cancelAll() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.cancel != nil {
		ts.cancel()
		ts.cancel = nil
	}
	ts.gen++
}
