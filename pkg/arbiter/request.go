package arbiter

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/parley/pkg/domain"
)

// completion is a one-shot result slot. done is closed exactly once.
type completion struct {
	once  sync.Once
	done  chan struct{}
	value any
	err   error
}

func newCompletion() *completion {
	return &completion{done: make(chan struct{})}
}

func (c *completion) settle(value any, err error) error {
	settled := false
	c.once.Do(func() {
		c.value, c.err = value, err
		close(c.done)
		settled = true
	})
	if !settled {
		return &domain.InvariantError{Reason: "completion handle settled twice"}
	}
	return nil
}

// Request is a queue item as seen by the loop, with its completion handle.
type Request struct {
	Item       domain.QueueItem
	EnqueuedAt time.Time
	done       *completion
}

// NewRequest wraps item with a fresh completion no producer is waiting on.
// The loop uses it for reinjected intents.
func NewRequest(item domain.QueueItem) *Request {
	return &Request{Item: item, EnqueuedAt: time.Now(), done: newCompletion()}
}

// Resolve completes the request successfully. A second call on the same
// request returns a *domain.InvariantError.
func (r *Request) Resolve(value any) error {
	return r.done.settle(value, nil)
}

// Reject completes the request with err. A second call on the same
// request returns a *domain.InvariantError.
func (r *Request) Reject(err error) error {
	return r.done.settle(nil, err)
}

// Settled reports whether Resolve or Reject was called.
func (r *Request) Settled() bool {
	select {
	case <-r.done.done:
		return true
	default:
		return false
	}
}

// Future returns the producer side of the request.
func (r *Request) Future() *Future {
	return &Future{c: r.done}
}

// Future is the producer's view of a submitted item.
type Future struct {
	c *completion
}

// Done is closed once the loop has finished with the item.
func (f *Future) Done() <-chan struct{} {
	return f.c.done
}

// Wait blocks until the item is complete or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.c.done:
		return f.c.value, f.c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
