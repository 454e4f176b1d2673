// Package policy defines the contract between the conversation loop and the
// pluggable dialogue policies, and the registry that resolves them by name.
package policy

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Policy is a dialogue state machine. The loop looks it up through the
// Policy field of the current state.
type Policy interface {
	Name() string

	// ChooseAction picks the agent's next dialogue act for a state whose
	// pending statements have just been executed.
	ChooseAction(ctx context.Context, state *domain.DialogueState) (*domain.DialogueState, error)

	// Reply renders the agent act to the user.
	Reply(ctx context.Context, dlg ports.Dialogue, state *domain.DialogueState) error

	// InteractionState tells the loop whether to stop, rest or wait for an answer.
	InteractionState(state *domain.DialogueState) domain.InteractionState

	// HandleAnswer turns an answer to the pending question into a new
	// prediction. It returns nil, nil for answers it does not handle.
	HandleAnswer(ctx context.Context, state *domain.DialogueState, answer domain.Intent) (*domain.DialogueState, error)
}

// AutoConfirmer is implemented by policies that decide themselves which
// accepted statements run without confirmation.
type AutoConfirmer interface {
	AutoConfirm(stmt domain.Statement) bool
}

// LegacyPolicy handles everything the state machines do not: input that is
// not a dialogue state, and system work coming from the background.
type LegacyPolicy interface {
	HandleInput(ctx context.Context, dlg ports.Dialogue, intent domain.Intent, confident bool) (any, error)

	// HandleAPICall processes one system work item. It returns the value that
	// completes the item and the app that produced it, which the loop hands
	// back as lastApp on the next call.
	HandleAPICall(ctx context.Context, dlg ports.Dialogue, item domain.QueueItem, lastApp string) (any, string, error)
}
