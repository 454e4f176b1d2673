package transaction

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Reply renders the chosen act.
func (p *Policy) Reply(ctx context.Context, dlg ports.Dialogue, state *domain.DialogueState) error {
	if state == nil {
		return nil
	}

	switch state.DialogueAct {
	case ActConfirmAction:
		i, ok := state.Pending()
		if !ok {
			return nil
		}
		return dlg.Replyf(ctx, "Okay, so you want me to %s. Is that right?", state.History[i].Statement)

	case ActSlotFill:
		i, ok := state.Pending()
		if !ok {
			return nil
		}
		name, _ := state.DialogueActParam.(string)
		for _, slot := range state.History[i].Statement.Slots() {
			if slot.Name == name {
				return dlg.Reply(ctx, slot.Question())
			}
		}
		return dlg.Replyf(ctx, "What is the value of %s?", name)

	case ActActionError:
		return dlg.Replyf(ctx, "Sorry, there was an error: %v.", state.DialogueActParam)

	case ActActionSuccess:
		return dlg.Reply(ctx, "Consider it done.")

	case ActEmptySearch:
		return dlg.Reply(ctx, "Sorry, I did not find any result for that.")

	case ActRecommendOne:
		return dlg.Replyf(ctx, "I found %s.", p.lastResults(state).Items[0])

	case ActRecommendMany:
		results := p.lastResults(state)
		if results.More {
			if err := dlg.Replyf(ctx, "I found more than %d results. Here are the first ones:", results.Count); err != nil {
				return err
			}
		} else if err := dlg.Replyf(ctx, "I found %d results. Here are the first ones:", results.Count); err != nil {
			return err
		}
		for idx, item := range results.Items {
			if err := dlg.ReplyChoice(ctx, idx, item.String()); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

func (p *Policy) lastResults(state *domain.DialogueState) *domain.ResultList {
	j, ok := state.LastExecuted()
	if !ok || len(state.History[j].Results.Items) == 0 {
		return &domain.ResultList{Items: []domain.ResultItem{{}}}
	}
	return state.History[j].Results
}
