// Package transaction implements the reference state-machine policy: confirm
// what the user asked for, run it, and report the outcome.
package transaction

import (
	"context"
	"log/slog"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/policy"
)

var (
	_ policy.Policy        = (*Policy)(nil)
	_ policy.AutoConfirmer = (*Policy)(nil)
)

// Agent dialogue acts chosen by the policy.
const (
	ActConfirmAction = "sys_confirm_action"
	ActSlotFill      = "sys_slot_fill"
	ActActionError   = "sys_action_error"
	ActActionSuccess = "sys_action_success"
	ActEmptySearch   = "sys_empty_search"
	ActRecommendOne  = "sys_recommend_one"
	ActRecommendMany = "sys_recommend_many"
)

// IDSlot is the slot pre-filled from a unique search result.
const IDSlot = "id"

// Policy is the org.thingpedia.dialogue.transaction policy.
type Policy struct {
	logger *slog.Logger
}

// Option configures the Policy.
type Option func(*Policy)

// WithLogger configures a logger for the Policy.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) {
		p.logger = logger
	}
}

// New creates the transaction policy.
func New(opts ...Option) *Policy {
	p := &Policy{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Policy) Name() string {
	return domain.PolicyTransaction
}

// AutoConfirm runs queries without asking; actions always need a yes.
func (p *Policy) AutoConfirm(stmt domain.Statement) bool {
	return stmt.AutoConfirm()
}

// ChooseAction returns a fragment carrying the next act. Its history is
// empty unless an item was pre-filled, in which case it holds that item and
// everything after it.
func (p *Policy) ChooseAction(ctx context.Context, state *domain.DialogueState) (*domain.DialogueState, error) {
	if state == nil || len(state.History) == 0 {
		return domain.NewDialogueState(p.Name(), domain.ActEnd), nil
	}

	if i, ok := state.Pending(); ok {
		item := state.History[i]
		var fragment []domain.HistoryItem

		if filled, ok := p.prefill(state, i); ok {
			item.Statement = filled
			fragment = append([]domain.HistoryItem{item}, state.History[i+1:]...)
		}
		if slot, ok := firstSlot(item.Statement); ok {
			return p.act(ActSlotFill, slot.Name, fragment...), nil
		}
		return p.act(ActConfirmAction, nil, fragment...), nil
	}

	j, _ := state.LastExecuted()
	item := state.History[j]
	results := item.Results
	switch {
	case results.Failed():
		return p.act(ActActionError, results.ErrorCode), nil
	case !item.Statement.AutoConfirm():
		return p.act(ActActionSuccess, nil), nil
	case results.Count == 0:
		return p.act(ActEmptySearch, nil), nil
	case results.Count == 1:
		return p.act(ActRecommendOne, nil), nil
	default:
		return p.act(ActRecommendMany, results.Count), nil
	}
}

func (p *Policy) act(name string, param any, history ...domain.HistoryItem) *domain.DialogueState {
	s := domain.NewDialogueState(p.Name(), name, history...)
	s.DialogueActParam = param
	return s
}

// prefill fills the id slot of the pending item at i from the item just
// before it, when that one returned exactly one result.
func (p *Policy) prefill(state *domain.DialogueState, i int) (domain.Statement, bool) {
	if i == 0 {
		return nil, false
	}
	prev := state.History[i-1]
	if prev.Results == nil || prev.Results.Count != 1 || len(prev.Results.Items) != 1 {
		return nil, false
	}
	if !hasSlot(state.History[i].Statement, IDSlot) {
		return nil, false
	}
	id := prev.Results.Items[0].Get(IDSlot)
	if id == nil {
		return nil, false
	}
	filled, err := state.History[i].Statement.WithSlot(IDSlot, id)
	if err != nil {
		p.logger.Warn("Failed to pre-fill slot", "slot", IDSlot, "err", err)
		return nil, false
	}
	return filled, true
}

// HandleAnswer converts an answer to a confirmation or slot question into a
// fragment that replaces the pending item.
func (p *Policy) HandleAnswer(ctx context.Context, state *domain.DialogueState, answer domain.Intent) (*domain.DialogueState, error) {
	if state == nil {
		return nil, nil
	}
	i, ok := state.Pending()
	if !ok {
		return nil, nil
	}
	item := state.History[i]

	switch state.DialogueAct {
	case ActConfirmAction:
		yes, ok := domain.IsYesNo(answer)
		if !ok {
			return nil, nil
		}
		if !yes {
			return nil, domain.Cancelled()
		}
		item.Confirm = domain.ConfirmConfirmed

	case ActSlotFill:
		name, _ := state.DialogueActParam.(string)
		value, ok := p.slotValue(state, i, answer)
		if !ok || name == "" {
			return nil, nil
		}
		filled, err := item.Statement.WithSlot(name, value)
		if err != nil {
			return nil, err
		}
		item.Statement = filled

	default:
		return nil, nil
	}

	fragment := append([]domain.HistoryItem{item}, state.History[i+1:]...)
	return domain.NewDialogueState(p.Name(), domain.ActExecute, fragment...), nil
}

// slotValue extracts the value of an answer. A choice picks the id of one of
// the results shown just before the pending item.
func (p *Policy) slotValue(state *domain.DialogueState, i int, answer domain.Intent) (any, bool) {
	switch a := answer.(type) {
	case domain.AnswerIntent:
		return a.Value, true
	case domain.ChoiceIntent:
		if i == 0 || state.History[i-1].Results == nil {
			return nil, false
		}
		items := state.History[i-1].Results.Items
		if a.Index < 0 || a.Index >= len(items) {
			return nil, false
		}
		id := items[a.Index].Get(IDSlot)
		return id, id != nil
	}
	return nil, false
}

// InteractionState maps the act to what the loop does next.
func (p *Policy) InteractionState(state *domain.DialogueState) domain.InteractionState {
	if state == nil {
		return domain.InteractionState{IsTerminal: true}
	}
	switch state.DialogueAct {
	case ActConfirmAction:
		return domain.InteractionState{Expect: domain.CategoryYesNo}
	case ActSlotFill:
		return domain.InteractionState{Expect: p.slotCategory(state)}
	case ActEmptySearch, ActRecommendOne, ActRecommendMany:
		return domain.InteractionState{}
	default:
		return domain.InteractionState{IsTerminal: true}
	}
}

func (p *Policy) slotCategory(state *domain.DialogueState) domain.ValueCategory {
	i, ok := state.Pending()
	name, _ := state.DialogueActParam.(string)
	if !ok {
		return domain.CategoryRawString
	}
	for _, slot := range state.History[i].Statement.Slots() {
		if slot.Name == name {
			if slot.Category == domain.CategoryNone {
				return domain.CategoryRawString
			}
			return slot.Category
		}
	}
	return domain.CategoryRawString
}

func firstSlot(stmt domain.Statement) (domain.Slot, bool) {
	slots := stmt.Slots()
	if len(slots) == 0 {
		return domain.Slot{}, false
	}
	return slots[0], true
}

func hasSlot(stmt domain.Statement, name string) bool {
	for _, slot := range stmt.Slots() {
		if slot.Name == name {
			return true
		}
	}
	return false
}
