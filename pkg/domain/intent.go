package domain

import "fmt"

// Intent is the structured form of one user utterance.
// The set of variants is closed.
type Intent interface {
	intent()
}

// DialogueStateIntent carries a full dialogue state predicted by the NLU.
type DialogueStateIntent struct {
	Prediction *DialogueState
}

// ProgramIntent carries a single program parsed directly from the user,
// e.g. typed in a programming syntax or picked from a suggestion.
type ProgramIntent struct {
	Program Statement
}

// AnswerIntent answers a pending question with a value of Category.
// Yes/no answers use CategoryYesNo with a bool value.
type AnswerIntent struct {
	Category ValueCategory
	Value    any
}

// ChoiceIntent picks one entry, zero-based, from a multiple-choice prompt.
type ChoiceIntent struct {
	Index int
}

// ControlCommand enumerates the universal control intents.
type ControlCommand string

const (
	CommandStop      ControlCommand = "stop"
	CommandNeverMind ControlCommand = "nevermind"
	CommandDebug     ControlCommand = "debug"
	CommandWakeUp    ControlCommand = "wakeup"
	CommandTrain     ControlCommand = "train"
)

// ControlIntent is a universal command understood in every context.
type ControlIntent struct {
	Command ControlCommand
}

// FailedIntent means the utterance could not be understood.
type FailedIntent struct {
	Utterance string
}

// LegacyIntent is a free-form intent the core does not interpret.
type LegacyIntent struct {
	Kind    string
	Payload any
}

func (DialogueStateIntent) intent() {}
func (ProgramIntent) intent()       {}
func (AnswerIntent) intent()        {}
func (ChoiceIntent) intent()        {}
func (ControlIntent) intent()       {}
func (FailedIntent) intent()        {}
func (LegacyIntent) intent()        {}

// Yes and No are the canonical yes/no answers.
var (
	Yes = AnswerIntent{Category: CategoryYesNo, Value: true}
	No  = AnswerIntent{Category: CategoryYesNo, Value: false}
)

// IsDialogueStateIntent reports whether intent should drive the state-machine turn
// cycle rather than the legacy handler.
func IsDialogueStateIntent(intent Intent) bool {
	switch it := intent.(type) {
	case DialogueStateIntent:
		return it.Prediction != nil
	case ProgramIntent:
		return it.Program != nil
	default:
		return false
	}
}

// IsYesNo reports whether intent is a yes/no answer, and which one.
func IsYesNo(intent Intent) (yes bool, ok bool) {
	a, isAnswer := intent.(AnswerIntent)
	if !isAnswer || a.Category != CategoryYesNo {
		return false, false
	}
	b, isBool := a.Value.(bool)
	return b, isBool
}

// DescribeIntent renders an intent for logs.
func DescribeIntent(intent Intent) string {
	switch it := intent.(type) {
	case nil:
		return "<nil>"
	case DialogueStateIntent:
		return "prediction(" + it.Prediction.String() + ")"
	case ProgramIntent:
		return "program(" + it.Program.String() + ")"
	case AnswerIntent:
		return fmt.Sprintf("answer(%s=%v)", it.Category, it.Value)
	case ChoiceIntent:
		return fmt.Sprintf("choice(%d)", it.Index)
	case ControlIntent:
		return "control(" + string(it.Command) + ")"
	case FailedIntent:
		return "failed"
	case LegacyIntent:
		return "legacy(" + it.Kind + ")"
	default:
		return fmt.Sprintf("%T", intent)
	}
}
