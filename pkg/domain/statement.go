package domain

// Statement is the opaque program representation the conversation manipulates.
// Implementations must be immutable: WithSlot returns a new value.
type Statement interface {
	// Compatible reports whether other refers to the same logical statement,
	// ignoring the values of slots that are still unresolved in either.
	Compatible(other Statement) bool

	// Slots lists the inputs that must be filled before the statement can run.
	Slots() []Slot

	// WithSlot returns a copy of the statement with the named slot filled.
	WithSlot(name string, value any) (Statement, error)

	// Executable reports whether every required input is known.
	Executable() bool

	// AutoConfirm reports whether the statement is safe to run without an
	// explicit confirmation (queries are, actions and rules are not).
	AutoConfirm() bool

	// OutputType names the statement's output, used to look up its schema.
	OutputType() string

	String() string
}

// Slot is a named, unresolved input of a statement.
type Slot struct {
	Name     string
	Category ValueCategory
	// Prompt is an optional question to ask the user for this slot.
	Prompt string
}

// Question returns the sentence used to ask the user to fill the slot.
func (s Slot) Question() string {
	if s.Prompt != "" {
		return s.Prompt
	}
	return "What is the value of " + s.Name + "?"
}
