package domain

import (
	"fmt"
	"strings"
)

// ConfirmState tracks whether the user agreed to run a statement.
type ConfirmState string

const (
	// ConfirmProposed means the agent suggested the statement; the user did not ask for it.
	ConfirmProposed ConfirmState = "proposed"
	// ConfirmAccepted means the user asked for it but has not confirmed its details.
	ConfirmAccepted ConfirmState = "accepted"
	// ConfirmConfirmed means the statement may run.
	ConfirmConfirmed ConfirmState = "confirmed"
)

// Well-known policy names.
const (
	PolicyTransaction = "org.thingpedia.dialogue.transaction"
	PolicyNull        = "org.thingpedia.dialogue.null"
)

// Dialogue acts shared by the loop and the reference policies.
const (
	ActExecute = "execute"
	ActEnd     = "sys_end"
)

// HistoryItem is one statement tracked by the conversation.
type HistoryItem struct {
	Statement Statement
	Confirm   ConfirmState
	// Results is nil until the statement has been executed.
	Results *ResultList
}

// Compatible reports whether both items refer to the same logical statement.
func (h HistoryItem) Compatible(other HistoryItem) bool {
	if h.Statement == nil || other.Statement == nil {
		return false
	}
	return h.Statement.Compatible(other.Statement)
}

// Executed reports whether results are attached.
func (h HistoryItem) Executed() bool {
	return h.Results != nil
}

func (h HistoryItem) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]", h.Statement, h.Confirm)
	if h.Results != nil {
		fmt.Fprintf(&b, " -> %d result(s)", h.Results.Count)
		if h.Results.More {
			b.WriteString(" (more)")
		}
		if h.Results.ErrorCode != "" {
			fmt.Fprintf(&b, " error=%s", h.Results.ErrorCode)
		}
	}
	return b.String()
}

// DialogueState is the declarative state of one conversation.
// Values are treated as immutable: transitions build new instances, sharing items.
type DialogueState struct {
	Policy           string
	DialogueAct      string
	DialogueActParam any
	History          []HistoryItem
}

// NewDialogueState creates a state with the given policy, act and history.
func NewDialogueState(policy, act string, history ...HistoryItem) *DialogueState {
	return &DialogueState{
		Policy:      policy,
		DialogueAct: act,
		History:     history,
	}
}

// Clone returns a shallow copy with its own history slice.
func (s *DialogueState) Clone() *DialogueState {
	if s == nil {
		return nil
	}
	clone := *s
	clone.History = make([]HistoryItem, len(s.History))
	copy(clone.History, s.History)
	return &clone
}

// Pending returns the index of the first item without results.
func (s *DialogueState) Pending() (int, bool) {
	if s == nil {
		return -1, false
	}
	for i, item := range s.History {
		if item.Results == nil {
			return i, true
		}
	}
	return -1, false
}

// LastExecuted returns the index of the most recent item with results.
func (s *DialogueState) LastExecuted() (int, bool) {
	if s == nil {
		return -1, false
	}
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Results != nil {
			return i, true
		}
	}
	return -1, false
}

// WithAct returns a copy of the state with the dialogue act replaced.
func (s *DialogueState) WithAct(act string, param any) *DialogueState {
	clone := s.Clone()
	clone.DialogueAct = act
	clone.DialogueActParam = param
	return clone
}

func (s *DialogueState) String() string {
	if s == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "$dialogue @%s.%s", s.Policy, s.DialogueAct)
	if s.DialogueActParam != nil {
		fmt.Fprintf(&b, "(%v)", s.DialogueActParam)
	}
	b.WriteString(";")
	for _, item := range s.History {
		b.WriteString("\n  ")
		b.WriteString(item.String())
	}
	return b.String()
}

// InteractionState tells the loop what happens after a reply.
type InteractionState struct {
	// IsTerminal ends the conversation and returns the loop to idle.
	IsTerminal bool
	// Expect is the category of the next user input the conversation blocks on.
	// When empty and not terminal, the conversation rests with its state kept.
	Expect ValueCategory
}
