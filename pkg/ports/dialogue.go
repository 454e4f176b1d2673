package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// Sink delivers messages to the user. It owns all formatting.
type Sink interface {
	Send(ctx context.Context, msg domain.Message) error
	// SetExpected tells the transport what kind of answer is being waited for,
	// e.g. to show yes/no buttons or switch to raw input.
	SetExpected(ctx context.Context, expect domain.ValueCategory) error
}

// Parser turns free text into an intent. expect is the category the
// conversation is currently waiting for, if any.
type Parser interface {
	Parse(ctx context.Context, text string, expect domain.ValueCategory) (domain.Intent, error)
}

// ContextListener is an optional interface of a Parser (or any collaborator)
// that wants the trimmed dialogue state after every agent reply.
type ContextListener interface {
	SetContext(ctx context.Context, state *domain.DialogueState) error
}

// Dialogue is the conversation handle given to policies and slot resolvers
// for the duration of one call. It must not be retained after the call.
type Dialogue interface {
	Reply(ctx context.Context, text string) error
	Replyf(ctx context.Context, format string, args ...any) error
	ReplyPicture(ctx context.Context, url string) error
	ReplyLink(ctx context.Context, title, url string) error
	ReplyButton(ctx context.Context, title, payload string) error
	ReplyChoice(ctx context.Context, idx int, title string) error

	// SetIcon sets the icon attached to subsequent replies.
	SetIcon(icon string)

	// Expecting returns the category the conversation is waiting for.
	Expecting() domain.ValueCategory
	SetExpected(ctx context.Context, expect domain.ValueCategory) error

	// NextIntent blocks until the user says something.
	NextIntent(ctx context.Context) (domain.UserInput, error)

	// Ask poses question and returns the answer's value.
	// A subject change fails with a *domain.CancellationError carrying the new intent.
	Ask(ctx context.Context, expect domain.ValueCategory, question string) (any, error)

	// AskChoices offers choices and returns the zero-based index picked.
	AskChoices(ctx context.Context, question string, choices []string) (int, error)

	// Fail tells the user the last input was not understood.
	Fail(ctx context.Context, detail string) error

	// LookingFor reprompts for the current expectation.
	LookingFor(ctx context.Context) error
}

// SlotResolver fills an unresolved slot, returning its value or a cancellation.
type SlotResolver interface {
	Resolve(ctx context.Context, dlg Dialogue, stmt domain.Statement, slot domain.Slot) (any, error)
}

// SlotResolverFunc adapts a function to SlotResolver.
type SlotResolverFunc func(ctx context.Context, dlg Dialogue, stmt domain.Statement, slot domain.Slot) (any, error)

func (f SlotResolverFunc) Resolve(ctx context.Context, dlg Dialogue, stmt domain.Statement, slot domain.Slot) (any, error) {
	return f(ctx, dlg, stmt, slot)
}
