package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/arbiter"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/executor"
	"github.com/aretw0/parley/pkg/policy"
	"github.com/aretw0/parley/pkg/ports"
)

// Loop is the single consumer of an Arbiter. It owns the dialogue state and
// the expectation marker; nothing else may touch them.
type Loop struct {
	arbiter  *arbiter.Arbiter
	registry *policy.Registry
	executor *executor.Executor
	sink     ports.Sink

	resolver       ports.SlotResolver
	contexts       ports.ContextListener
	store          ports.SnapshotStore
	conversationID string
	hooks          domain.LifecycleHooks
	logger         *slog.Logger

	// Owned by the Run goroutine.
	state    *domain.DialogueState
	expect   domain.ValueCategory
	lastApp  string
	reinject *arbiter.Request

	mu        sync.RWMutex
	snapshot  *domain.Snapshot
	expecting atomic.Value
}

// New creates a Loop consuming arb and replying through sink.
func New(arb *arbiter.Arbiter, registry *policy.Registry, exec *executor.Executor, sink ports.Sink, opts ...Option) *Loop {
	l := &Loop{
		arbiter:  arb,
		registry: registry,
		executor: exec,
		sink:     sink,
		resolver: AskResolver,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.snapshot = domain.NewSnapshot(l.conversationID, nil, domain.CategoryNone)
	return l
}

// AskResolver fills slots by asking the user.
var AskResolver = ports.SlotResolverFunc(func(ctx context.Context, dlg ports.Dialogue, stmt domain.Statement, slot domain.Slot) (any, error) {
	expect := slot.Category
	if expect == domain.CategoryNone {
		expect = domain.CategoryRawString
	}
	return dlg.Ask(ctx, expect, slot.Question())
})

// Run consumes queue items until ctx is done or the arbiter is closed.
// A nil return means the arbiter was closed by its owner; any other error
// is an invariant violation and the conversation cannot continue.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("Conversation loop started", "conversation_id", l.conversationID)
	for {
		if err := ctx.Err(); err != nil {
			l.arbiter.Close(err)
			return err
		}

		req, err := l.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.arbiter.Close(ctx.Err())
				return ctx.Err()
			}
			if errors.Is(err, domain.ErrClosed) {
				l.logger.Debug("Conversation loop stopped", "conversation_id", l.conversationID)
				return nil
			}
			l.arbiter.Close(err)
			return &domain.InvariantError{Reason: "waiting for the next queue item", Err: err}
		}

		if err := l.turn(ctx, req); err != nil {
			l.logger.Error("Conversation loop aborted", "conversation_id", l.conversationID, "err", err)
			l.arbiter.Close(err)
			return err
		}
	}
}

func (l *Loop) next(ctx context.Context) (*arbiter.Request, error) {
	if req := l.reinject; req != nil {
		l.reinject = nil
		return req, nil
	}
	return l.arbiter.NextQueueItem(ctx)
}

// Snapshot returns the projection written after the last turn.
func (l *Loop) Snapshot() *domain.Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	snap := *l.snapshot
	return &snap
}

// Expecting returns the category the conversation is waiting for right now.
// Unlike the snapshot it is updated in the middle of a turn, so transports
// can parse the user's next utterance against it.
func (l *Loop) Expecting() domain.ValueCategory {
	if v, ok := l.expecting.Load().(domain.ValueCategory); ok {
		return v
	}
	return domain.CategoryNone
}

// turn processes one queue item and settles its completion. Only invariant
// violations are returned; the request is rejected with the same error and
// no apology is sent.
func (l *Loop) turn(ctx context.Context, req *arbiter.Request) error {
	start := time.Now()
	kind := domain.ItemKind(req.Item)
	ev := &domain.TurnEvent{
		EventBase: domain.EventBase{Timestamp: start, Type: domain.EventTurnStart, ConversationID: l.conversationID},
		Kind:      kind,
	}
	l.emit(ctx, l.hooks.OnQueueItem, ev)
	l.emit(ctx, l.hooks.OnTurnStart, ev)
	l.logger.Debug("Turn started", "kind", kind)

	dlg := newDialogue(l)
	value, err := l.process(ctx, dlg, req.Item)

	end := &domain.TurnEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventTurnEnd, ConversationID: l.conversationID},
		Kind:      kind,
		Duration:  time.Since(start),
		Err:       err,
	}

	var settle func() error
	var inv *domain.InvariantError
	if ce, ok := domain.IsCancellation(err); ok {
		l.reset(ctx)
		if ce.Intent != nil {
			l.reinject = arbiter.NewRequest(domain.UserInput{Intent: ce.Intent, Confident: ce.Confident})
			l.logger.Debug("Turn cancelled, switching subject", "intent", domain.DescribeIntent(ce.Intent))
		} else {
			l.logger.Debug("Turn cancelled")
		}
		end.Outcome = domain.OutcomeCancelled
		l.emit(ctx, l.hooks.OnCancel, end)
		settle = func() error { return req.Reject(ce) }
	} else if errors.As(err, &inv) {
		l.reset(ctx)
		end.Outcome = domain.OutcomeFailed
		settle = func() error {
			if rerr := req.Reject(err); rerr != nil {
				return rerr
			}
			return err
		}
	} else if err != nil {
		l.reset(ctx)
		end.Outcome = domain.OutcomeFailed
		l.logger.Error("Turn failed", "kind", kind, "err", err)
		if ctx.Err() == nil {
			l.replyFailure(ctx, dlg, req.Item, err)
		}
		settle = func() error { return req.Reject(err) }
	} else {
		end.Outcome = domain.OutcomeDone
		if l.state != nil {
			end.Outcome = domain.OutcomeResting
		}
		settle = func() error { return req.Resolve(value) }
	}

	if l.state != nil {
		end.Policy = l.state.Policy
		end.Act = l.state.DialogueAct
	}
	// The producer observes the completion last, after replies, snapshot and hooks.
	l.commit(ctx)
	l.emit(ctx, l.hooks.OnTurnEnd, end)
	l.logger.Debug("Turn ended", "kind", kind, "outcome", end.Outcome, "duration", end.Duration)
	return settle()
}

func (l *Loop) emit(ctx context.Context, hook func(context.Context, *domain.TurnEvent), ev *domain.TurnEvent) {
	if hook != nil {
		hook(ctx, ev)
	}
}

// process dispatches one item. Panics become turn-local failures.
func (l *Loop) process(ctx context.Context, dlg *Dialogue, item domain.QueueItem) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Recovered from panic in turn", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	switch it := item.(type) {
	case domain.UserInput:
		l.lastApp = ""
		if domain.IsDialogueStateIntent(it.Intent) {
			return nil, l.handleDialogueState(ctx, dlg, it.Intent)
		}
		l.state = nil
		legacy := l.registry.Legacy()
		if legacy == nil {
			return nil, errNoLegacy
		}
		return legacy.HandleInput(ctx, dlg, it.Intent, it.Confident)

	case nil:
		return nil, domain.ErrInvalidItem

	default:
		l.state = nil
		legacy := l.registry.Legacy()
		if legacy == nil {
			return nil, errNoLegacy
		}
		res, app, err := legacy.HandleAPICall(ctx, dlg, item, l.lastApp)
		l.lastApp = app
		return res, err
	}
}

var errNoLegacy = errors.New("no legacy policy registered")

func (l *Loop) replyFailure(ctx context.Context, dlg *Dialogue, item domain.QueueItem, err error) {
	var rerr error
	if _, ok := item.(domain.UserInput); ok {
		rerr = dlg.Replyf(ctx, "Sorry, I had an error processing your command: %v.", err)
	} else {
		rerr = dlg.Replyf(ctx, "Sorry, that did not work: %v.", err)
	}
	if rerr != nil {
		l.logger.Warn("Failed to report turn failure", "err", rerr)
	}
}

// reset drops the conversation after a cancellation or failure.
func (l *Loop) reset(ctx context.Context) {
	l.state = nil
	l.lastApp = ""
	if l.expect == domain.CategoryNone {
		return
	}
	if err := l.setExpected(context.WithoutCancel(ctx), domain.CategoryNone); err != nil {
		l.logger.Warn("Failed to clear expectation", "err", err)
	}
}

func (l *Loop) setExpected(ctx context.Context, expect domain.ValueCategory) error {
	l.expect = expect
	l.expecting.Store(expect)
	return l.sink.SetExpected(ctx, expect)
}

// commit publishes and stores the snapshot of the current state.
func (l *Loop) commit(ctx context.Context) {
	snap := domain.NewSnapshot(l.conversationID, l.state, l.expect)
	l.mu.Lock()
	l.snapshot = snap
	l.mu.Unlock()

	if l.store == nil || l.conversationID == "" {
		return
	}
	saveCtx := ctx
	if ctx.Err() != nil {
		saveCtx = context.WithoutCancel(ctx)
	}
	if err := l.store.Save(saveCtx, snap); err != nil {
		l.logger.Error("Failed to save snapshot", "conversation_id", l.conversationID, "err", err)
		return
	}
	l.logger.Debug("Snapshot saved", "conversation_id", l.conversationID, "idle", snap.Idle())
}
