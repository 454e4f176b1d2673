package domain

// ComputeNewState merges a freshly predicted dialogue fragment into the
// current conversation state and returns the resulting state.
//
// previous is never modified. The returned state may share history items
// with both inputs.
func ComputeNewState(previous, predicted *DialogueState) *DialogueState {
	if previous == nil {
		return predicted
	}
	if predicted.Policy != previous.Policy {
		return predicted
	}

	next := previous.Clone()
	next.DialogueAct = predicted.DialogueAct
	next.DialogueActParam = predicted.DialogueActParam
	if len(predicted.History) == 0 {
		return next
	}

	first := predicted.History[0]
	for i := len(previous.History) - 1; i >= 0; i-- {
		if previous.History[i].Compatible(first) {
			next.History = append(next.History[:i:i], predicted.History...)
			return next
		}
	}

	next.History = append(next.History, predicted.History...)
	return next
}

// Prediction targets for PrepareContextForPrediction.
const (
	TargetUser  = "user"
	TargetAgent = "agent"
)

const maxContextItems = 3

// PrepareContextForPrediction trims a state before handing it to the NLU as
// context. Within the executed prefix, only the last item of each run of
// compatible items is kept, and at most the last three of those; their result
// pages are cut to one row for the user target and three for the agent
// target. Unexecuted items are appended unchanged.
func PrepareContextForPrediction(state *DialogueState, target string) *DialogueState {
	if state == nil {
		return nil
	}
	clone := &DialogueState{
		Policy:           state.Policy,
		DialogueAct:      state.DialogueAct,
		DialogueActParam: state.DialogueActParam,
	}

	var last []HistoryItem
	i := 0
	for ; i < len(state.History); i++ {
		item := state.History[i]
		if item.Results == nil {
			break
		}
		if n := len(last); n > 0 && item.Compatible(last[n-1]) {
			last[n-1] = item
		} else {
			last = append(last, item)
		}
	}
	if len(last) > maxContextItems {
		last = last[len(last)-maxContextItems:]
	}

	limit := maxContextItems
	if target == TargetUser {
		limit = 1
	}
	for _, item := range last {
		results := *item.Results
		if len(results.Items) > limit {
			results.Items = results.Items[:limit]
		}
		item.Results = &results
		clone.History = append(clone.History, item)
	}
	clone.History = append(clone.History, state.History[i:]...)
	return clone
}
