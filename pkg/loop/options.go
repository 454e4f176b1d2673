package loop

import (
	"log/slog"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Option defines a functional option for configuring the Loop.
type Option func(*Loop)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithSlotResolver replaces the default resolver, which asks the user.
func WithSlotResolver(r ports.SlotResolver) Option {
	return func(l *Loop) {
		l.resolver = r
	}
}

// WithContextListener receives the trimmed state after every agent reply,
// typically the parser.
func WithContextListener(c ports.ContextListener) Option {
	return func(l *Loop) {
		l.contexts = c
	}
}

// WithStore writes a snapshot of the conversation after every turn.
func WithStore(store ports.SnapshotStore) Option {
	return func(l *Loop) {
		l.store = store
	}
}

// WithConversationID sets the ID used for snapshots and events.
func WithConversationID(id string) Option {
	return func(l *Loop) {
		l.conversationID = id
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(l *Loop) {
		l.hooks = hooks
	}
}
