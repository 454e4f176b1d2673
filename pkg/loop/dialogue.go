package loop

import (
	"context"
	"fmt"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

var _ ports.Dialogue = (*Dialogue)(nil)

// Dialogue is the handle a policy gets for the duration of one turn. It
// sends through the loop's sink and reads answers from its arbiter.
type Dialogue struct {
	loop *Loop
	icon string
}

func newDialogue(l *Loop) *Dialogue {
	return &Dialogue{loop: l}
}

func (d *Dialogue) send(ctx context.Context, msg domain.Message) error {
	if msg.Icon == "" {
		msg.Icon = d.icon
	}
	return d.loop.sink.Send(ctx, msg)
}

func (d *Dialogue) Reply(ctx context.Context, text string) error {
	return d.send(ctx, domain.TextMessage(text, ""))
}

func (d *Dialogue) Replyf(ctx context.Context, format string, args ...any) error {
	return d.Reply(ctx, fmt.Sprintf(format, args...))
}

func (d *Dialogue) ReplyPicture(ctx context.Context, url string) error {
	return d.send(ctx, domain.Message{Type: domain.MessagePicture, URL: url})
}

func (d *Dialogue) ReplyLink(ctx context.Context, title, url string) error {
	return d.send(ctx, domain.Message{Type: domain.MessageLink, Title: title, URL: url})
}

func (d *Dialogue) ReplyButton(ctx context.Context, title, payload string) error {
	return d.send(ctx, domain.Message{Type: domain.MessageButton, Title: title, Payload: payload})
}

func (d *Dialogue) ReplyChoice(ctx context.Context, idx int, title string) error {
	return d.send(ctx, domain.Message{Type: domain.MessageChoice, Title: title, Index: idx})
}

func (d *Dialogue) SetIcon(icon string) {
	d.icon = icon
}

func (d *Dialogue) Expecting() domain.ValueCategory {
	return d.loop.expect
}

func (d *Dialogue) SetExpected(ctx context.Context, expect domain.ValueCategory) error {
	return d.loop.setExpected(ctx, expect)
}

// NextIntent waits for the user's next utterance. Cancel on the arbiter
// aborts the wait with a *domain.CancellationError.
func (d *Dialogue) NextIntent(ctx context.Context) (domain.UserInput, error) {
	req, err := d.loop.arbiter.NextIntent(ctx)
	if err != nil {
		return domain.UserInput{}, err
	}
	in, ok := req.Item.(domain.UserInput)
	if !ok {
		return domain.UserInput{}, &domain.InvariantError{Reason: fmt.Sprintf("%s delivered as user input", domain.ItemKind(req.Item))}
	}
	return in, nil
}

// Ask poses question and waits for an answer of category expect.
// Multiple-choice questions return the chosen index.
func (d *Dialogue) Ask(ctx context.Context, expect domain.ValueCategory, question string) (any, error) {
	if err := d.SetExpected(ctx, expect); err != nil {
		return nil, err
	}
	defer func() {
		_ = d.loop.clearExpected(context.WithoutCancel(ctx))
	}()

	if question != "" {
		if err := d.Reply(ctx, question); err != nil {
			return nil, err
		}
	}
	return d.waitAnswer(ctx, expect, -1)
}

// AskChoices offers choices and returns the index picked.
func (d *Dialogue) AskChoices(ctx context.Context, question string, choices []string) (int, error) {
	if err := d.SetExpected(ctx, domain.CategoryMultipleChoice); err != nil {
		return 0, err
	}
	defer func() {
		_ = d.loop.clearExpected(context.WithoutCancel(ctx))
	}()

	if err := d.Reply(ctx, question); err != nil {
		return 0, err
	}
	for i, choice := range choices {
		if err := d.ReplyChoice(ctx, i, choice); err != nil {
			return 0, err
		}
	}

	v, err := d.waitAnswer(ctx, domain.CategoryMultipleChoice, len(choices))
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (d *Dialogue) waitAnswer(ctx context.Context, expect domain.ValueCategory, choices int) (any, error) {
	for {
		in, err := d.NextIntent(ctx)
		if err != nil {
			return nil, err
		}

		switch it := in.Intent.(type) {
		case domain.ControlIntent:
			if err := d.control(ctx, it.Command); err != nil {
				return nil, err
			}
			continue

		case domain.FailedIntent:
			if err := d.Fail(ctx, it.Utterance); err != nil {
				return nil, err
			}
			continue

		case domain.AnswerIntent:
			if yes, ok := domain.IsYesNo(it); ok && !expect.Accepts(domain.CategoryYesNo) {
				if !yes {
					return nil, domain.Cancelled()
				}
				if err := d.Reply(ctx, "Yes what?"); err != nil {
					return nil, err
				}
				continue
			}
			if expect.Accepts(it.Category) {
				return it.Value, nil
			}
			if err := d.notWhatIAsked(ctx); err != nil {
				return nil, err
			}
			continue

		case domain.ChoiceIntent:
			if expect != domain.CategoryMultipleChoice {
				if err := d.notWhatIAsked(ctx); err != nil {
					return nil, err
				}
				continue
			}
			if it.Index < 0 || (choices >= 0 && it.Index >= choices) {
				if err := d.LookingFor(ctx); err != nil {
					return nil, err
				}
				continue
			}
			return it.Index, nil
		}

		return nil, domain.SwitchTo(in.Intent, in.Confident)
	}
}

// control applies a universal command received while waiting for an answer.
// Commands that end the wait are returned as cancellations.
func (d *Dialogue) control(ctx context.Context, cmd domain.ControlCommand) error {
	switch cmd {
	case domain.CommandStop:
		return domain.Cancelled()
	case domain.CommandNeverMind:
		if err := d.Reply(ctx, "Sorry I couldn't help on that."); err != nil {
			return err
		}
		return domain.Cancelled()
	case domain.CommandDebug:
		if d.loop.state == nil {
			return d.Replyf(ctx, "I'm waiting for %s.", describeExpect(d.Expecting()))
		}
		return d.Reply(ctx, d.loop.state.String())
	case domain.CommandWakeUp:
		return nil
	default:
		return domain.SwitchTo(domain.ControlIntent{Command: cmd}, true)
	}
}

func (d *Dialogue) notWhatIAsked(ctx context.Context) error {
	if err := d.Reply(ctx, "Sorry, but that's not what I asked."); err != nil {
		return err
	}
	return d.LookingFor(ctx)
}

// Fail reports input that could not be understood. detail is only logged.
func (d *Dialogue) Fail(ctx context.Context, detail string) error {
	if detail != "" {
		d.loop.logger.Debug("Input not understood", "utterance", detail)
	}
	return d.Reply(ctx, "Sorry, I did not understand that. Can you rephrase it?")
}

func (d *Dialogue) LookingFor(ctx context.Context) error {
	return d.Reply(ctx, d.Expecting().LookingFor())
}

func describeExpect(c domain.ValueCategory) string {
	if c == domain.CategoryNone {
		return "nothing"
	}
	return "an answer of type " + string(c)
}
