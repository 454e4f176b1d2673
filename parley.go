package parley

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/arbiter"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/executor"
	"github.com/aretw0/parley/pkg/loop"
	"github.com/aretw0/parley/pkg/policy"
	"github.com/aretw0/parley/pkg/policy/legacy"
	"github.com/aretw0/parley/pkg/policy/transaction"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/google/uuid"
)

// ErrNoParser is returned by HandleText when the assistant has no parser.
var ErrNoParser = errors.New("parley: no parser configured")

// Assistant is one conversation: an arbiter taking work from any number of
// producers and the single loop consuming it.
type Assistant struct {
	arbiter  *arbiter.Arbiter
	loop     *loop.Loop
	registry *policy.Registry
	executor *executor.Executor
	parser   ports.Parser
	logger   *slog.Logger

	conversationID string
}

type config struct {
	schemas        ports.SchemaRetriever
	parser         ports.Parser
	store          ports.SnapshotStore
	resolver       ports.SlotResolver
	contexts       ports.ContextListener
	hooks          domain.LifecycleHooks
	logger         *slog.Logger
	conversationID string
	defaultPolicy  string
	policies       []policy.Policy
	legacy         policy.LegacyPolicy
	legacyOpts     []legacy.Option
}

// Option defines a functional option for configuring the Assistant.
type Option func(*config)

// WithSchemas sets where result schemas are looked up.
func WithSchemas(s ports.SchemaRetriever) Option {
	return func(c *config) {
		c.schemas = s
	}
}

// WithParser sets the NLU used by HandleText. If it also implements
// ports.ContextListener it receives the dialogue context after every reply.
func WithParser(p ports.Parser) Option {
	return func(c *config) {
		c.parser = p
	}
}

// WithStore writes a snapshot of the conversation after every turn.
func WithStore(s ports.SnapshotStore) Option {
	return func(c *config) {
		c.store = s
	}
}

// WithSlotResolver replaces the default resolver, which asks the user.
func WithSlotResolver(r ports.SlotResolver) Option {
	return func(c *config) {
		c.resolver = r
	}
}

// WithContextListener receives the trimmed dialogue state after every reply.
func WithContextListener(l ports.ContextListener) Option {
	return func(c *config) {
		c.contexts = l
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls add up.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *config) {
		c.hooks = c.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithConversationID names the conversation. A random ID is used otherwise.
func WithConversationID(id string) Option {
	return func(c *config) {
		c.conversationID = id
	}
}

// WithPolicy registers an extra dialogue policy.
func WithPolicy(p policy.Policy) Option {
	return func(c *config) {
		c.policies = append(c.policies, p)
	}
}

// WithDefaultPolicy names the policy used for directly parsed programs.
func WithDefaultPolicy(name string) Option {
	return func(c *config) {
		c.defaultPolicy = name
	}
}

// WithLegacyPolicy replaces the built-in legacy policy.
func WithLegacyPolicy(p policy.LegacyPolicy) Option {
	return func(c *config) {
		c.legacy = p
	}
}

// WithLegacyHandler routes legacy intents of kind to fn in the built-in
// legacy policy.
func WithLegacyHandler(kind string, fn legacy.HandlerFunc) Option {
	return func(c *config) {
		c.legacyOpts = append(c.legacyOpts, legacy.WithHandler(kind, fn))
	}
}

// WithConfigurator handles interactive configuration requests in the
// built-in legacy policy.
func WithConfigurator(cfg legacy.Configurator) Option {
	return func(c *config) {
		c.legacyOpts = append(c.legacyOpts, legacy.WithConfigurator(cfg))
	}
}

// New creates an Assistant running statements on engine and replying through sink.
// Call Run to start the conversation.
func New(engine ports.Engine, sink ports.Sink, opts ...Option) (*Assistant, error) {
	if engine == nil || sink == nil {
		return nil, errors.New("parley: engine and sink are required")
	}

	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}
	if cfg.conversationID == "" {
		cfg.conversationID = uuid.NewString()
	}
	logger := cfg.logger.With("conversation_id", cfg.conversationID)

	execOpts := []executor.Option{executor.WithLogger(logger), executor.WithHooks(cfg.hooks)}
	if cfg.schemas != nil {
		execOpts = append(execOpts, executor.WithSchemas(cfg.schemas))
	}
	exec := executor.New(engine, execOpts...)

	regOpts := []policy.RegistryOption{}
	if cfg.defaultPolicy != "" {
		regOpts = append(regOpts, policy.WithDefault(cfg.defaultPolicy))
	}
	registry := policy.NewRegistry(regOpts...)
	for _, p := range cfg.policies {
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	if _, err := registry.Lookup(domain.PolicyTransaction); err != nil {
		if err := registry.Register(transaction.New(transaction.WithLogger(logger))); err != nil {
			return nil, err
		}
	}
	if _, err := registry.Default(); err != nil {
		return nil, fmt.Errorf("parley: default policy: %w", err)
	}

	if cfg.legacy != nil {
		registry.SetLegacy(cfg.legacy)
	} else {
		registry.SetLegacy(legacy.New(exec, append(cfg.legacyOpts, legacy.WithLogger(logger))...))
	}

	arb := arbiter.New(arbiter.WithLogger(logger))

	loopOpts := []loop.Option{
		loop.WithLogger(logger),
		loop.WithConversationID(cfg.conversationID),
		loop.WithHooks(cfg.hooks),
	}
	if cfg.store != nil {
		loopOpts = append(loopOpts, loop.WithStore(cfg.store))
	}
	if cfg.resolver != nil {
		loopOpts = append(loopOpts, loop.WithSlotResolver(cfg.resolver))
	}
	contexts := cfg.contexts
	if contexts == nil {
		contexts, _ = cfg.parser.(ports.ContextListener)
	}
	if contexts != nil {
		loopOpts = append(loopOpts, loop.WithContextListener(contexts))
	}

	return &Assistant{
		arbiter:        arb,
		loop:           loop.New(arb, registry, exec, sink, loopOpts...),
		registry:       registry,
		executor:       exec,
		parser:         cfg.parser,
		logger:         logger,
		conversationID: cfg.conversationID,
	}, nil
}

// Run drives the conversation until ctx is done or Close is called.
// It returns nil after Close and ctx.Err() after cancellation.
func (a *Assistant) Run(ctx context.Context) error {
	return a.loop.Run(ctx)
}

// Close stops the conversation. Pending work is rejected with domain.ErrClosed.
func (a *Assistant) Close() {
	a.arbiter.Close(nil)
}

// ConversationID returns the conversation's ID.
func (a *Assistant) ConversationID() string {
	return a.conversationID
}

// Registry returns the policy registry.
func (a *Assistant) Registry() *policy.Registry {
	return a.registry
}

// Snapshot returns the state as of the last completed turn.
func (a *Assistant) Snapshot() *domain.Snapshot {
	return a.loop.Snapshot()
}

// Expecting returns what the conversation is waiting for right now.
func (a *Assistant) Expecting() domain.ValueCategory {
	return a.loop.Expecting()
}

// HandleText parses text against the current expectation and submits the
// resulting intent. Text the parser rejects is submitted as a failed intent,
// so the user still gets an answer.
func (a *Assistant) HandleText(ctx context.Context, text string) (*arbiter.Future, error) {
	if a.parser == nil {
		return nil, ErrNoParser
	}
	intent, err := a.parser.Parse(ctx, text, a.Expecting())
	if err != nil {
		a.logger.Warn("Failed to parse input", "err", err)
		intent = domain.FailedIntent{Utterance: text}
	}
	return a.arbiter.SubmitUserInput(ctx, intent, true)
}

// HandleIntent submits an already parsed intent.
func (a *Assistant) HandleIntent(ctx context.Context, intent domain.Intent, confident bool) (*arbiter.Future, error) {
	return a.arbiter.SubmitUserInput(ctx, intent, confident)
}

// AwaitReply blocks until fut settles or the conversation waits for the
// user, so every reply to the utterance behind fut has been sent. It
// reports whether the assistant is waiting for an answer.
func (a *Assistant) AwaitReply(ctx context.Context, fut *arbiter.Future) (bool, error) {
	return a.arbiter.AwaitDialogue(ctx, fut.Done())
}

// Cancel aborts the question the user is being asked, if any.
func (a *Assistant) Cancel() bool {
	return a.arbiter.Cancel()
}

// Notify tells the user about an app's output.
func (a *Assistant) Notify(ctx context.Context, appID, icon, outputType string, value any) (*arbiter.Future, error) {
	return a.arbiter.DispatchNotify(ctx, appID, icon, outputType, value)
}

// NotifyError tells the user an app failed.
func (a *Assistant) NotifyError(ctx context.Context, appID, icon string, err error) (*arbiter.Future, error) {
	return a.arbiter.DispatchNotifyError(ctx, appID, icon, err)
}

// AskQuestion asks the user on behalf of an app; the future yields the answer.
func (a *Assistant) AskQuestion(ctx context.Context, appID, icon string, expect domain.ValueCategory, question string) (*arbiter.Future, error) {
	return a.arbiter.DispatchAskQuestion(ctx, appID, icon, expect, question)
}

// AskForPermission asks whether principal may run program; the future yields a bool.
func (a *Assistant) AskForPermission(ctx context.Context, principal, identity string, program domain.Statement) (*arbiter.Future, error) {
	return a.arbiter.DispatchAskForPermission(ctx, principal, identity, program)
}

// InteractiveConfigure starts the configuration dialogue for a device kind.
func (a *Assistant) InteractiveConfigure(ctx context.Context, kind string) (*arbiter.Future, error) {
	return a.arbiter.DispatchInteractiveConfigure(ctx, kind)
}

// RunProgram runs program as system work and reports the result to the user.
// The future yields the *domain.ResultList.
func (a *Assistant) RunProgram(ctx context.Context, program domain.Statement, identity string) (*arbiter.Future, error) {
	return a.arbiter.DispatchRunProgram(ctx, program, uuid.NewString(), identity)
}
