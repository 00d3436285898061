package tui

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// requestKind groups requests where only the latest one matters.
type requestKind int

const (
	requestTasks requestKind = iota
	requestSuggestions
	requestChat
)

// requests tracks in-flight work for one mounted view. A newer request of
// the same kind supersedes the older one, and close cancels everything so
// responses arriving after unmount are dropped.
type requests struct {
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	latest    map[requestKind]string
	contexts  map[string]context.CancelFunc
	closed    bool
	closeOnce sync.Once
}

func newRequests() *requests {
	ctx, cancel := context.WithCancel(context.Background())
	return &requests{
		ctx:      ctx,
		cancel:   cancel,
		latest:   make(map[requestKind]string),
		contexts: make(map[string]context.CancelFunc),
	}
}

// begin registers a request of kind and cancels the previous one.
func (r *requests) begin(kind requestKind) (string, context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	requestID := uuid.New().String()
	ctx, cancel := context.WithCancel(r.ctx)
	if r.closed {
		cancel()
		return requestID, ctx
	}

	if prev, ok := r.latest[kind]; ok {
		if c, ok := r.contexts[prev]; ok {
			c()
			delete(r.contexts, prev)
		}
	}
	r.latest[kind] = requestID
	r.contexts[requestID] = cancel
	return requestID, ctx
}

// current reports whether requestID is still the latest of its kind.
func (r *requests) current(kind requestKind, requestID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && r.latest[kind] == requestID
}

// finish releases the context of a completed request.
func (r *requests) finish(requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.contexts[requestID]; ok {
		c()
		delete(r.contexts, requestID)
	}
}

// context is the parent context for untracked work such as mutations.
func (r *requests) context() context.Context {
	return r.ctx
}

// close cancels every in-flight request.
func (r *requests) close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		for id, c := range r.contexts {
			c()
			delete(r.contexts, id)
		}
		r.mu.Unlock()
		r.cancel()
	})
}
