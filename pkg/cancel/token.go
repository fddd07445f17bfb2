// Package cancel implements the cooperative cancellation token shared
// between a caller and a running conversion. Cancellation is checkpoint
// based, not preemptive: jobs call Check at well-defined points and the
// process-termination callback covers the window in between.
package cancel

import (
	"context"
	"sync"

	"github.com/psantana5/mediaconv/pkg/converr"
)

// Token is a cooperative cancellation flag with callbacks. The zero value
// is not usable; create tokens with NewToken.
type Token struct {
	mu        sync.Mutex
	cancelled bool
	done      chan struct{}
	callbacks []func()
}

// NewToken creates an uncancelled token
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancel flips the token exactly once and runs every registered callback.
// A second call is a no-op.
func (t *Token) Cancel() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	callbacks := t.callbacks
	t.callbacks = nil
	close(t.done)
	t.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// Cancelled reports whether Cancel has been called
func (t *Token) Cancelled() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// OnCancel registers a callback to run when the token is cancelled. If the
// token is already cancelled the callback runs immediately on the caller's
// goroutine.
func (t *Token) OnCancel(cb func()) {
	if t == nil {
		return
	}
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		cb()
		return
	}
	t.callbacks = append(t.callbacks, cb)
	t.mu.Unlock()
}

// Done returns a channel closed on cancellation, for use in select loops.
// A nil token returns a nil channel, which never fires.
func (t *Token) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.done
}

// Check returns the terminal cancellation error when the token has been
// cancelled, nil otherwise. Jobs call this before validation, before
// spawning the encoder and on every progress tick.
func (t *Token) Check() error {
	if t.Cancelled() {
		return converr.NewCancellation()
	}
	return nil
}

// Bind derives a context that is cancelled when either the parent context
// or the token fires. The returned stop function releases the watcher
// goroutine and must be called when the job finishes.
func (t *Token) Bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	if t == nil {
		return ctx, cancel
	}
	stopped := make(chan struct{})
	go func() {
		select {
		case <-t.Done():
			cancel()
		case <-ctx.Done():
		case <-stopped:
		}
	}()
	var once sync.Once
	return ctx, func() {
		once.Do(func() { close(stopped) })
		cancel()
	}
}
