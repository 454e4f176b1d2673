package arbiter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
)

// Phase is what the consumer loop is currently doing.
type Phase int

const (
	// PhaseBusy means a turn is in flight; the ready gate is closed.
	PhaseBusy Phase = iota
	// PhaseIdle means the loop is parked on the notification queue.
	PhaseIdle
	// PhaseDialogue means the loop is parked on the intent queue, waiting for the user.
	PhaseDialogue
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDialogue:
		return "dialogue"
	default:
		return "busy"
	}
}

// Arbiter gates every producer against the single conversation loop.
//
// Producers block at the ready gate until the loop parks. The first producer
// whose item wakes the loop closes the gate again, so at most one turn is ever
// in flight. User input goes to the intent queue while the loop waits for an
// answer, and to the notification queue otherwise. System work always goes to
// the notification queue.
type Arbiter struct {
	mu      sync.Mutex
	phase   Phase
	ready   chan struct{}
	notify  fifo
	intents fifo
	// inflight holds user input consumed through the intent queue; it is
	// resolved when the loop next parks.
	inflight []*Request
	closed   error
	logger   *slog.Logger
}

// Option configures the Arbiter.
type Option func(*Arbiter)

// WithLogger configures a logger for the Arbiter.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Arbiter) {
		a.logger = logger
	}
}

// New creates an Arbiter. The gate stays closed until the loop first parks.
func New(opts ...Option) *Arbiter {
	a := &Arbiter{
		phase:  PhaseBusy,
		ready:  make(chan struct{}),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SubmitUserInput delivers a user utterance to the conversation. It blocks
// until the loop is ready to take it, and returns a future that completes
// once the loop is done with it.
func (a *Arbiter) SubmitUserInput(ctx context.Context, intent domain.Intent, confident bool) (*Future, error) {
	if intent == nil {
		return nil, fmt.Errorf("%w: nil intent", domain.ErrInvalidItem)
	}
	return a.submit(ctx, NewRequest(domain.UserInput{Intent: intent, Confident: confident}))
}

// SubmitSystemWork delivers system-initiated work to the notification queue.
// The future resolves with the loop's reply value, or rejects with its failure.
func (a *Arbiter) SubmitSystemWork(ctx context.Context, item domain.QueueItem) (*Future, error) {
	if item == nil {
		return nil, fmt.Errorf("%w: nil item", domain.ErrInvalidItem)
	}
	if _, ok := item.(domain.UserInput); ok {
		return nil, fmt.Errorf("%w: user input must use SubmitUserInput", domain.ErrInvalidItem)
	}
	return a.submit(ctx, NewRequest(item))
}

func (a *Arbiter) submit(ctx context.Context, req *Request) (*Future, error) {
	_, isUser := req.Item.(domain.UserInput)
	for {
		a.mu.Lock()
		if a.closed != nil {
			err := a.closed
			a.mu.Unlock()
			return nil, err
		}

		switch {
		case a.phase == PhaseIdle:
			if a.notify.push(req) {
				a.phase = PhaseBusy
			}
		case a.phase == PhaseDialogue && isUser:
			if a.intents.push(req) {
				a.phase = PhaseBusy
			}
		case a.phase == PhaseDialogue:
			// Queued behind the sub-dialogue; the gate stays open for the user's answer.
			a.notify.push(req)
		default:
			gate := a.ready
			a.mu.Unlock()
			select {
			case <-gate:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		a.logger.Debug("Queue item delivered", "kind", domain.ItemKind(req.Item), "phase", a.phase.String())
		a.mu.Unlock()
		return req.Future(), nil
	}
}

// NextQueueItem is called by the loop at the top of its cycle. Pending items
// are returned immediately; otherwise the loop parks and the gate opens.
func (a *Arbiter) NextQueueItem(ctx context.Context) (*Request, error) {
	return a.next(ctx, &a.notify, PhaseIdle)
}

// NextIntent is called by the loop when a sub-dialogue needs the user's next
// utterance. Only user input reaches it.
func (a *Arbiter) NextIntent(ctx context.Context) (*Request, error) {
	req, err := a.next(ctx, &a.intents, PhaseDialogue)
	if req != nil {
		a.mu.Lock()
		a.inflight = append(a.inflight, req)
		a.mu.Unlock()
	}
	return req, err
}

func (a *Arbiter) next(ctx context.Context, q *fifo, parked Phase) (*Request, error) {
	a.mu.Lock()
	if a.closed != nil {
		err := a.closed
		a.mu.Unlock()
		return nil, err
	}
	if a.phase != PhaseBusy {
		a.mu.Unlock()
		return nil, &domain.InvariantError{Reason: "loop parked twice"}
	}
	settled := a.takeInflight()
	if req := q.pop(); req != nil {
		a.mu.Unlock()
		settleAll(settled)
		return req, nil
	}

	w := q.park()
	a.phase = parked
	close(a.ready)
	a.ready = make(chan struct{})
	a.mu.Unlock()
	settleAll(settled)

	select {
	case d := <-w:
		return d.req, d.err
	case <-ctx.Done():
		a.mu.Lock()
		if q.waiter == w {
			q.waiter = nil
			a.phase = PhaseBusy
			a.mu.Unlock()
			return nil, ctx.Err()
		}
		a.mu.Unlock()
		// A delivery raced with cancellation; hand it over rather than lose it.
		d := <-w
		return d.req, d.err
	}
}

func (a *Arbiter) takeInflight() []*Request {
	reqs := a.inflight
	a.inflight = nil
	return reqs
}

func settleAll(reqs []*Request) {
	for _, req := range reqs {
		_ = req.Resolve(nil)
	}
}

// Cancel aborts the loop's wait for the user's next utterance with a
// *domain.CancellationError. It reports whether a wait was aborted.
func (a *Arbiter) Cancel() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.phase != PhaseDialogue {
		return false
	}
	if !a.intents.abort(domain.Cancelled()) {
		return false
	}
	a.phase = PhaseBusy
	a.logger.Debug("Pending question cancelled")
	return true
}

// Phase returns what the loop is currently doing.
func (a *Arbiter) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// AwaitDialogue blocks until done is closed or the loop parks waiting for
// the user's next utterance. It reports whether the loop is waiting.
func (a *Arbiter) AwaitDialogue(ctx context.Context, done <-chan struct{}) (bool, error) {
	for {
		a.mu.Lock()
		if a.closed != nil {
			err := a.closed
			a.mu.Unlock()
			return false, err
		}
		if a.phase == PhaseDialogue {
			a.mu.Unlock()
			return true, nil
		}
		gate := a.ready
		a.mu.Unlock()

		select {
		case <-done:
			return false, nil
		case <-gate:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// Pending returns the number of queued, undelivered items per queue.
func (a *Arbiter) Pending() (notifications, intents int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.notify.len(), a.intents.len()
}

// Close shuts the arbiter down. Queued items are rejected with
// domain.ErrClosed, gated producers are released, and a parked loop is woken.
func (a *Arbiter) Close(cause error) {
	a.mu.Lock()
	if a.closed != nil {
		a.mu.Unlock()
		return
	}
	closedErr := domain.ErrClosed
	if cause != nil {
		closedErr = fmt.Errorf("%w: %v", domain.ErrClosed, cause)
	}
	a.closed = closedErr
	pending := append(a.notify.drain(), a.intents.drain()...)
	inflight := a.takeInflight()
	a.notify.abort(closedErr)
	a.intents.abort(closedErr)
	close(a.ready)
	a.mu.Unlock()

	settleAll(inflight)
	for _, req := range pending {
		_ = req.Reject(closedErr)
	}
	a.logger.Debug("Arbiter closed", "rejected", len(pending))
}
