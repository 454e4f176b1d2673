package skill

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Error is the coded failure a skill reports when its catalog entry sets "error".
type Error struct {
	Function string
	code     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Function, e.code)
}

func (e *Error) Code() string {
	return e.code
}

// Execute runs an invocation against its canned results. String values may
// reference inputs as {name}.
func (c *Catalog) Execute(ctx context.Context, stmt domain.Statement) (ports.OutputStream, error) {
	inv, ok := stmt.(Invocation)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a skill invocation", domain.ErrNotExecutable, stmt)
	}
	s, ok := c.byFunction[inv.Function]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSkill, inv.Function)
	}
	if !inv.Executable() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotExecutable, inv)
	}

	if s.Error != "" {
		return &stream{outputs: []ports.Output{{Type: s.Function, Err: &Error{Function: s.Function, code: s.Error}}}}, nil
	}

	args := inv.Args()
	outputs := make([]ports.Output, 0, len(s.Results))
	for _, row := range s.Results {
		outputs = append(outputs, ports.Output{Type: s.Function, Value: fill(row, args)})
	}
	return &stream{outputs: outputs}, nil
}

func fill(row map[string]any, args map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		if str, ok := v.(string); ok {
			for name, arg := range args {
				str = strings.ReplaceAll(str, "{"+name+"}", fmt.Sprint(arg))
			}
			v = str
		}
		out[k] = v
	}
	return out
}

type stream struct {
	outputs []ports.Output
	closed  bool
}

func (s *stream) Next(ctx context.Context) (ports.Output, error) {
	if err := ctx.Err(); err != nil {
		return ports.Output{}, err
	}
	if s.closed || len(s.outputs) == 0 {
		return ports.Output{}, io.EOF
	}
	out := s.outputs[0]
	s.outputs = s.outputs[1:]
	return out, nil
}

func (s *stream) Close() error {
	s.closed = true
	return nil
}
