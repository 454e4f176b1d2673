package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// Output is one raw value produced by a running statement.
type Output struct {
	// Type names the function that produced the value, e.g. "com.example:search".
	// It may be empty when unknown.
	Type  string
	Value any
	// Err is set when the statement reported a failure instead of a value.
	Err error
}

// OutputStream yields a statement's outputs.
// Next returns io.EOF once the statement is done.
type OutputStream interface {
	Next(ctx context.Context) (Output, error)
	Close() error
}

// Engine runs statements.
type Engine interface {
	Execute(ctx context.Context, stmt domain.Statement) (OutputStream, error)
}

// SchemaRetriever resolves the declared output fields of a function.
// Implementations return domain.ErrNotFound for unknown functions.
type SchemaRetriever interface {
	OutputSchema(ctx context.Context, outputType string) (map[string]domain.Type, error)
}

// CodedError is implemented by errors carrying a machine-readable code.
type CodedError interface {
	error
	Code() string
}
