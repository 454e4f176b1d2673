package loop

import (
	"context"
	"fmt"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/executor"
	"github.com/aretw0/parley/pkg/policy"
)

// handleDialogueState runs the turn cycle for a prediction until the policy
// either ends the conversation or lets it rest.
func (l *Loop) handleDialogueState(ctx context.Context, dlg *Dialogue, intent domain.Intent) error {
	prediction, err := l.predict(intent)
	if err != nil {
		return err
	}

	for {
		p, err := l.step(ctx, dlg, prediction)
		if err != nil {
			return err
		}

		is := p.InteractionState(l.state)
		switch {
		case is.IsTerminal:
			l.state = nil
			return l.clearExpected(ctx)
		case is.Expect == domain.CategoryNone:
			return l.clearExpected(ctx)
		}

		prediction, err = l.awaitAnswer(ctx, dlg, p, is.Expect)
		if err != nil {
			return err
		}
	}
}

// step merges one prediction, fills slots, executes, and replies.
func (l *Loop) step(ctx context.Context, dlg *Dialogue, prediction *domain.DialogueState) (policy.Policy, error) {
	state := domain.ComputeNewState(l.state, prediction)
	p, err := l.registry.Lookup(state.Policy)
	if err != nil {
		return nil, err
	}

	state, err = l.resolveSlots(ctx, dlg, state)
	if err != nil {
		return nil, err
	}

	state, err = l.executor.ExecuteState(ctx, state, autoConfirm(p))
	if err != nil {
		return nil, err
	}

	fragment, err := p.ChooseAction(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("%s: choosing action: %w", p.Name(), err)
	}
	if fragment != nil {
		state = domain.ComputeNewState(state, fragment)
	}
	l.state = state
	l.logger.Debug("Agent act chosen", "policy", state.Policy, "act", state.DialogueAct)

	if err := p.Reply(ctx, dlg, state); err != nil {
		return nil, err
	}
	l.pushContext(ctx)
	return p, nil
}

func autoConfirm(p policy.Policy) executor.AutoConfirmFunc {
	if ac, ok := p.(policy.AutoConfirmer); ok {
		return ac.AutoConfirm
	}
	return executor.DefaultAutoConfirm
}

// predict turns a state-bearing intent into a prediction.
func (l *Loop) predict(intent domain.Intent) (*domain.DialogueState, error) {
	switch it := intent.(type) {
	case domain.DialogueStateIntent:
		return it.Prediction, nil
	case domain.ProgramIntent:
		return domain.NewDialogueState(l.registry.DefaultName(), domain.ActExecute,
			domain.HistoryItem{Statement: it.Program, Confirm: domain.ConfirmAccepted}), nil
	default:
		return nil, fmt.Errorf("%w: %s carries no dialogue state", domain.ErrInvalidItem, domain.DescribeIntent(intent))
	}
}

// resolveSlots fills the missing slots of the next item when it is already
// confirmed and would otherwise fail to run. Accepted items are left to the
// policy, which may fill them from context.
func (l *Loop) resolveSlots(ctx context.Context, dlg *Dialogue, state *domain.DialogueState) (*domain.DialogueState, error) {
	i, ok := state.Pending()
	if !ok {
		return state, nil
	}
	item := state.History[i]
	if item.Confirm != domain.ConfirmConfirmed || item.Statement.Executable() {
		return state, nil
	}

	stmt := item.Statement
	for _, slot := range stmt.Slots() {
		value, err := l.resolver.Resolve(ctx, dlg, stmt, slot)
		if err != nil {
			return nil, err
		}
		if stmt, err = stmt.WithSlot(slot.Name, value); err != nil {
			return nil, err
		}
	}

	item.Statement = stmt
	next := state.Clone()
	next.History[i] = item
	return next, nil
}

// awaitAnswer blocks until the user says something that moves the
// conversation forward, and returns it as the next prediction.
func (l *Loop) awaitAnswer(ctx context.Context, dlg *Dialogue, p policy.Policy, expect domain.ValueCategory) (*domain.DialogueState, error) {
	if err := l.setExpected(ctx, expect); err != nil {
		return nil, err
	}

	for {
		in, err := dlg.NextIntent(ctx)
		if err != nil {
			return nil, err
		}

		switch it := in.Intent.(type) {
		case domain.ControlIntent:
			if err := dlg.control(ctx, it.Command); err != nil {
				return nil, err
			}
			continue

		case domain.FailedIntent:
			if err := dlg.Fail(ctx, it.Utterance); err != nil {
				return nil, err
			}
			continue

		case domain.DialogueStateIntent, domain.ProgramIntent:
			if domain.IsDialogueStateIntent(in.Intent) {
				return l.predict(in.Intent)
			}

		case domain.AnswerIntent:
			if !expect.Accepts(it.Category) {
				if err := dlg.notWhatIAsked(ctx); err != nil {
					return nil, err
				}
				continue
			}
			if fragment, err := l.answer(ctx, dlg, p, in.Intent); fragment != nil || err != nil {
				return fragment, err
			}
			continue

		case domain.ChoiceIntent:
			if fragment, err := l.answer(ctx, dlg, p, in.Intent); fragment != nil || err != nil {
				return fragment, err
			}
			continue
		}

		return nil, domain.SwitchTo(in.Intent, in.Confident)
	}
}

// answer hands an answer to the policy; unhandled answers are reported as
// not understood and yield a nil fragment.
func (l *Loop) answer(ctx context.Context, dlg *Dialogue, p policy.Policy, answer domain.Intent) (*domain.DialogueState, error) {
	fragment, err := p.HandleAnswer(ctx, l.state, answer)
	if err != nil {
		return nil, err
	}
	if fragment == nil {
		return nil, dlg.Fail(ctx, "")
	}
	return fragment, nil
}

func (l *Loop) clearExpected(ctx context.Context) error {
	if l.expect == domain.CategoryNone {
		return nil
	}
	return l.setExpected(ctx, domain.CategoryNone)
}

func (l *Loop) pushContext(ctx context.Context) {
	if l.contexts == nil {
		return
	}
	trimmed := domain.PrepareContextForPrediction(l.state, domain.TargetUser)
	if err := l.contexts.SetContext(ctx, trimmed); err != nil {
		l.logger.Warn("Failed to push dialogue context", "err", err)
	}
}
