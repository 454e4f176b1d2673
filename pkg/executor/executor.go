package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

const (
	// MoreSize is the number of results collected before the rest is only flagged as "more".
	MoreSize = 50
	// PageSize is the number of collected results retained in a ResultList.
	PageSize = 10
)

// AutoConfirmFunc decides whether an accepted, executable statement may run
// without asking the user.
type AutoConfirmFunc func(domain.Statement) bool

// DefaultAutoConfirm defers to the statement's own hint.
func DefaultAutoConfirm(stmt domain.Statement) bool {
	return stmt.AutoConfirm()
}

// Executor runs confirmed statements and collects their results.
type Executor struct {
	engine  ports.Engine
	schemas ports.SchemaRetriever
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
}

// Option configures the Executor.
type Option func(*Executor)

// WithSchemas sets where declared output schemas are looked up.
func WithSchemas(s ports.SchemaRetriever) Option {
	return func(e *Executor) {
		e.schemas = s
	}
}

// WithLogger configures a logger for the Executor.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Executor) {
		e.hooks = hooks
	}
}

// New creates an Executor running statements on engine.
func New(engine ports.Engine, opts ...Option) *Executor {
	e := &Executor{
		engine: engine,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteState runs, in order, every history item without results. Accepted
// items are promoted to confirmed when executable and autoConfirm allows it.
// Execution stops at the first item that is still not confirmed, since later
// items may depend on its results.
//
// The input state is not modified; if nothing ran, it is returned as is.
func (e *Executor) ExecuteState(ctx context.Context, state *domain.DialogueState, autoConfirm AutoConfirmFunc) (*domain.DialogueState, error) {
	if state == nil {
		return nil, nil
	}
	if autoConfirm == nil {
		autoConfirm = DefaultAutoConfirm
	}

	var clone *domain.DialogueState
	for i, item := range state.History {
		if item.Results != nil {
			continue
		}
		if item.Confirm == domain.ConfirmAccepted && item.Statement.Executable() && autoConfirm(item.Statement) {
			item.Confirm = domain.ConfirmConfirmed
		}
		if item.Confirm != domain.ConfirmConfirmed {
			break
		}
		if !item.Statement.Executable() {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotExecutable, item.Statement)
		}

		results, err := e.ExecuteStatement(ctx, item.Statement)
		if err != nil {
			return nil, err
		}
		item.Results = results

		if clone == nil {
			clone = state.Clone()
		}
		clone.History[i] = item
	}

	if clone == nil {
		return state, nil
	}
	return clone, nil
}

// ExecuteStatement runs one statement and collects a bounded, paginated result list.
func (e *Executor) ExecuteStatement(ctx context.Context, stmt domain.Statement) (*domain.ResultList, error) {
	start := time.Now()
	list, err := e.run(ctx, stmt)

	if e.hooks.OnExecute != nil {
		ev := &domain.ExecutionEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventExecute},
			Statement: stmt.String(),
			Duration:  time.Since(start),
			Err:       err,
		}
		if list != nil {
			ev.Count, ev.More, ev.ErrorCode = list.Count, list.More, list.ErrorCode
		}
		e.hooks.OnExecute(ctx, ev)
	}

	if err != nil {
		e.logger.Error("Statement failed", "statement", stmt.String(), "err", err)
		return nil, err
	}
	e.logger.Debug("Statement executed", "statement", stmt.String(), "count", list.Count, "more", list.More)
	return list, nil
}

func (e *Executor) run(ctx context.Context, stmt domain.Statement) (*domain.ResultList, error) {
	stream, err := e.engine.Execute(ctx, stmt)
	if err != nil {
		return nil, &domain.ExecutionError{Statement: stmt.String(), Err: err}
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			e.logger.Warn("Failed to close output stream", "statement", stmt.String(), "err", cerr)
		}
	}()

	list := &domain.ResultList{}
	var items []domain.ResultItem
	for {
		out, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.ExecutionError{Statement: stmt.String(), Err: err}
		}
		if len(items) >= MoreSize {
			list.More = true
			break
		}
		if out.Err != nil {
			// A later error replaces an earlier one.
			list.ErrorCode = errorCode(out.Err)
			continue
		}

		outputType := out.Type
		if outputType == "" {
			outputType = stmt.OutputType()
		}
		item, err := e.mapResult(ctx, outputType, out.Value)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	list.Count = len(items)
	if len(items) > PageSize {
		items = items[:PageSize]
	}
	list.Items = items
	return list, nil
}

// errorCode prefers the error's code and falls back to its message.
func errorCode(err error) string {
	var coded ports.CodedError
	if errors.As(err, &coded) {
		if code := coded.Code(); code != "" {
			return code
		}
	}
	return err.Error()
}

func (e *Executor) lookupSchema(ctx context.Context, outputType string) map[string]domain.Type {
	if strings.HasPrefix(outputType, "count(") {
		return map[string]domain.Type{"count": domain.TypeNumber}
	}
	if e.schemas == nil || outputType == "" {
		return nil
	}
	// Joins report "a+b"; the projection is the last function.
	if i := strings.LastIndex(outputType, "+"); i >= 0 {
		outputType = outputType[i+1:]
	}
	schema, err := e.schemas.OutputSchema(ctx, outputType)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			e.logger.Warn("Schema lookup failed", "output_type", outputType, "err", err)
		}
		return nil
	}
	return schema
}
