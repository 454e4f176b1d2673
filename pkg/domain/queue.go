package domain

// QueueItem is a unit of work submitted to the conversation.
// The set of variants is closed: only the types in this file implement it.
type QueueItem interface {
	queueItem()
}

// UserInput is something the user said, already parsed into an intent.
type UserInput struct {
	Intent    Intent
	Confident bool
}

// Notification is a message a background app wants to show to the user.
type Notification struct {
	AppID       string
	Icon        string
	OutputType  string
	OutputValue any
}

// ErrorReport is a failure raised by a background app.
type ErrorReport struct {
	AppID string
	Icon  string
	Err   error
}

// Question is an app asking the user for a value of the given category.
type Question struct {
	AppID     string
	Icon      string
	ValueType ValueCategory
	Text      string
}

// PermissionRequest asks the user whether principal may run program.
type PermissionRequest struct {
	Principal string
	Identity  string
	Program   Statement
}

// InteractiveConfigure starts a configuration sub-dialogue for a device kind.
// An empty Kind means "configure something".
type InteractiveConfigure struct {
	Kind string
}

// RunProgram asks the conversation to run a program on behalf of identity.
type RunProgram struct {
	Program  Statement
	UniqueID string
	Identity string
}

func (UserInput) queueItem()            {}
func (Notification) queueItem()         {}
func (ErrorReport) queueItem()          {}
func (Question) queueItem()             {}
func (PermissionRequest) queueItem()    {}
func (InteractiveConfigure) queueItem() {}
func (RunProgram) queueItem()           {}

// Item kinds, as reported by ItemKind.
const (
	KindUserInput            = "user_input"
	KindNotification         = "notification"
	KindError                = "error"
	KindQuestion             = "question"
	KindPermissionRequest    = "permission_request"
	KindInteractiveConfigure = "interactive_configure"
	KindRunProgram           = "run_program"
)

// ItemKind returns a stable label for a queue item, used in logs and metrics.
func ItemKind(item QueueItem) string {
	switch item.(type) {
	case UserInput:
		return KindUserInput
	case Notification:
		return KindNotification
	case ErrorReport:
		return KindError
	case Question:
		return KindQuestion
	case PermissionRequest:
		return KindPermissionRequest
	case InteractiveConfigure:
		return KindInteractiveConfigure
	case RunProgram:
		return KindRunProgram
	default:
		return "unknown"
	}
}

// AppOf returns the app a system item originates from, if any.
func AppOf(item QueueItem) string {
	switch it := item.(type) {
	case Notification:
		return it.AppID
	case ErrorReport:
		return it.AppID
	case Question:
		return it.AppID
	default:
		return ""
	}
}
