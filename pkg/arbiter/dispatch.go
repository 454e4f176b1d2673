package arbiter

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/google/uuid"
)

// DispatchNotify submits a notification from a background app.
func (a *Arbiter) DispatchNotify(ctx context.Context, appID, icon, outputType string, value any) (*Future, error) {
	return a.SubmitSystemWork(ctx, domain.Notification{AppID: appID, Icon: icon, OutputType: outputType, OutputValue: value})
}

// DispatchNotifyError submits a failure report from a background app.
func (a *Arbiter) DispatchNotifyError(ctx context.Context, appID, icon string, err error) (*Future, error) {
	return a.SubmitSystemWork(ctx, domain.ErrorReport{AppID: appID, Icon: icon, Err: err})
}

// DispatchAskQuestion asks the user a question on behalf of an app.
// The future resolves with the answer's value.
func (a *Arbiter) DispatchAskQuestion(ctx context.Context, appID, icon string, valueType domain.ValueCategory, question string) (*Future, error) {
	return a.SubmitSystemWork(ctx, domain.Question{AppID: appID, Icon: icon, ValueType: valueType, Text: question})
}

// DispatchAskForPermission asks the user whether principal may run program.
// The future resolves with a bool.
func (a *Arbiter) DispatchAskForPermission(ctx context.Context, principal, identity string, program domain.Statement) (*Future, error) {
	return a.SubmitSystemWork(ctx, domain.PermissionRequest{Principal: principal, Identity: identity, Program: program})
}

// DispatchInteractiveConfigure starts configuring a device kind.
func (a *Arbiter) DispatchInteractiveConfigure(ctx context.Context, kind string) (*Future, error) {
	return a.SubmitSystemWork(ctx, domain.InteractiveConfigure{Kind: kind})
}

// DispatchRunProgram runs program on behalf of identity. An empty uniqueID is
// replaced by a fresh one.
func (a *Arbiter) DispatchRunProgram(ctx context.Context, program domain.Statement, uniqueID, identity string) (*Future, error) {
	if uniqueID == "" {
		uniqueID = uuid.NewString()
	}
	return a.SubmitSystemWork(ctx, domain.RunProgram{Program: program, UniqueID: uniqueID, Identity: identity})
}
