// Package legacy implements the procedural handler for input that is not a
// dialogue state and for work submitted by background apps.
package legacy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/executor"
	"github.com/aretw0/parley/pkg/policy"
	"github.com/aretw0/parley/pkg/ports"
)

var _ policy.LegacyPolicy = (*Policy)(nil)

// HandlerFunc handles one kind of free-form intent.
type HandlerFunc func(ctx context.Context, dlg ports.Dialogue, intent domain.LegacyIntent) (any, error)

// Configurator runs the configuration sub-dialogue for a device kind.
type Configurator interface {
	Configure(ctx context.Context, dlg ports.Dialogue, kind string) (any, error)
}

// Policy is the default legacy policy.
type Policy struct {
	executor     *executor.Executor
	handlers     map[string]HandlerFunc
	configurator Configurator
	logger       *slog.Logger
}

// Option configures the Policy.
type Option func(*Policy)

// WithHandler registers fn for legacy intents of kind.
func WithHandler(kind string, fn HandlerFunc) Option {
	return func(p *Policy) {
		p.handlers[kind] = fn
	}
}

// WithConfigurator sets the handler for interactive configuration requests.
func WithConfigurator(c Configurator) Option {
	return func(p *Policy) {
		p.configurator = c
	}
}

// WithLogger configures a logger for the Policy.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) {
		p.logger = logger
	}
}

// New creates a legacy policy. exec runs programs submitted as system work;
// it may be nil if none are expected.
func New(exec *executor.Executor, opts ...Option) *Policy {
	p := &Policy{
		executor: exec,
		handlers: make(map[string]HandlerFunc),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleInput answers user input that does not carry a dialogue state.
func (p *Policy) HandleInput(ctx context.Context, dlg ports.Dialogue, intent domain.Intent, confident bool) (any, error) {
	switch it := intent.(type) {
	case domain.FailedIntent:
		return nil, dlg.Reply(ctx, "Sorry, I did not understand that. Can you rephrase it?")

	case domain.AnswerIntent:
		if yes, ok := domain.IsYesNo(it); ok {
			if yes {
				return nil, dlg.Reply(ctx, "I agree, but to what?")
			}
			return nil, dlg.Reply(ctx, "No way!")
		}
		return nil, dlg.LookingFor(ctx)

	case domain.ChoiceIntent:
		return nil, dlg.LookingFor(ctx)

	case domain.ControlIntent:
		switch it.Command {
		case domain.CommandDebug:
			return nil, dlg.Reply(ctx, "I'm in the default state.")
		case domain.CommandTrain:
			return nil, dlg.Reply(ctx, "Sorry, training is not available.")
		case domain.CommandNeverMind:
			return nil, dlg.Reply(ctx, "Sorry I couldn't help on that.")
		default:
			// stop and wake-up need no answer at rest
			return nil, nil
		}

	case domain.LegacyIntent:
		fn, ok := p.handlers[it.Kind]
		if !ok {
			p.logger.Debug("No handler for legacy intent", "kind", it.Kind)
			return nil, dlg.Reply(ctx, "Sorry, I don't know how to do that yet.")
		}
		return fn(ctx, dlg, it)

	default:
		return nil, dlg.Reply(ctx, "Sorry, I did not understand that. Can you rephrase it?")
	}
}

// HandleAPICall processes one item of system work.
func (p *Policy) HandleAPICall(ctx context.Context, dlg ports.Dialogue, item domain.QueueItem, lastApp string) (any, string, error) {
	switch it := item.(type) {
	case domain.Notification:
		dlg.SetIcon(it.Icon)
		text := formatOutput(it.OutputValue)
		if it.AppID == "" || it.AppID == lastApp {
			return nil, it.AppID, dlg.Reply(ctx, text)
		}
		return nil, it.AppID, dlg.Replyf(ctx, "Notification from %s: %s", it.AppID, text)

	case domain.ErrorReport:
		dlg.SetIcon(it.Icon)
		if it.AppID == "" {
			return nil, "", dlg.Replyf(ctx, "Sorry, that did not work: %v.", it.Err)
		}
		return nil, it.AppID, dlg.Replyf(ctx, "%s had an error: %v.", it.AppID, it.Err)

	case domain.Question:
		dlg.SetIcon(it.Icon)
		answer, err := dlg.Ask(ctx, it.ValueType, it.Text)
		if err != nil {
			return nil, it.AppID, err
		}
		return answer, it.AppID, nil

	case domain.PermissionRequest:
		dlg.SetIcon("")
		question := fmt.Sprintf("%s wants to %s. Do you allow it?", it.Principal, it.Program)
		answer, err := dlg.Ask(ctx, domain.CategoryYesNo, question)
		if err != nil {
			return nil, "", err
		}
		allowed, _ := answer.(bool)
		return allowed, "", nil

	case domain.InteractiveConfigure:
		if p.configurator != nil {
			res, err := p.configurator.Configure(ctx, dlg, it.Kind)
			return res, "", err
		}
		if it.Kind == "" {
			return nil, "", dlg.Reply(ctx, "Sorry, I don't know how to configure that.")
		}
		return nil, "", dlg.Replyf(ctx, "Sorry, I don't know how to configure %s.", it.Kind)

	case domain.RunProgram:
		return p.runProgram(ctx, dlg, it)

	default:
		return nil, "", fmt.Errorf("%w: %T", domain.ErrInvalidItem, item)
	}
}

func (p *Policy) runProgram(ctx context.Context, dlg ports.Dialogue, run domain.RunProgram) (any, string, error) {
	if p.executor == nil || run.Program == nil {
		return nil, "", fmt.Errorf("%w: nothing to run for %s", domain.ErrNotExecutable, run.UniqueID)
	}
	if !run.Program.Executable() {
		return nil, "", fmt.Errorf("%w: %s", domain.ErrNotExecutable, run.Program)
	}
	dlg.SetIcon("")

	results, err := p.executor.ExecuteStatement(ctx, run.Program)
	if err != nil {
		return nil, "", err
	}
	p.logger.Info("Program executed", "id", run.UniqueID, "identity", run.Identity, "count", results.Count)

	switch {
	case results.Failed():
		err = dlg.Replyf(ctx, "Sorry, that did not work: %s.", results.ErrorCode)
	case len(results.Items) == 0:
		err = dlg.Reply(ctx, "Consider it done.")
	default:
		for _, row := range results.Items {
			if err = dlg.Reply(ctx, row.String()); err != nil {
				break
			}
		}
	}
	return results, "", err
}

func formatOutput(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
