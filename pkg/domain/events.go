package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventQueueItem EventType = "queue_item"
	EventTurnStart EventType = "turn_start"
	EventTurnEnd   EventType = "turn_end"
	EventCancel    EventType = "cancel"
	EventExecute   EventType = "execute"
)

// Turn outcomes reported in TurnEvent.Outcome.
const (
	OutcomeDone      = "done"
	OutcomeResting   = "resting"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp      time.Time `json:"timestamp"`
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
}

// TurnEvent describes one queue item going through the loop.
type TurnEvent struct {
	EventBase
	Kind     string        `json:"kind"`
	Policy   string        `json:"policy,omitempty"`
	Act      string        `json:"act,omitempty"`
	Outcome  string        `json:"outcome,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// ExecutionEvent describes one statement run by the executor.
type ExecutionEvent struct {
	EventBase
	Statement string        `json:"statement"`
	Count     int           `json:"count"`
	More      bool          `json:"more"`
	ErrorCode string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnQueueItem func(context.Context, *TurnEvent)
	OnTurnStart func(context.Context, *TurnEvent)
	OnTurnEnd   func(context.Context, *TurnEvent)
	OnCancel    func(context.Context, *TurnEvent)
	OnExecute   func(context.Context, *ExecutionEvent)
}

// Merge combines two sets of hooks; both are called, a first.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnQueueItem: chainTurn(h.OnQueueItem, other.OnQueueItem),
		OnTurnStart: chainTurn(h.OnTurnStart, other.OnTurnStart),
		OnTurnEnd:   chainTurn(h.OnTurnEnd, other.OnTurnEnd),
		OnCancel:    chainTurn(h.OnCancel, other.OnCancel),
		OnExecute:   chainExec(h.OnExecute, other.OnExecute),
	}
}

func chainTurn(a, b func(context.Context, *TurnEvent)) func(context.Context, *TurnEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *TurnEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainExec(a, b func(context.Context, *ExecutionEvent)) func(context.Context, *ExecutionEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *ExecutionEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
