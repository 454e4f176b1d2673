package executor_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/executor"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stmt struct {
	name     string
	action   bool
	unfilled bool
}

func (s stmt) Compatible(other domain.Statement) bool {
	o, ok := other.(stmt)
	return ok && o.name == s.name
}
func (s stmt) Slots() []domain.Slot {
	if s.unfilled {
		return []domain.Slot{{Name: "x", Category: domain.CategoryRawString}}
	}
	return nil
}
func (s stmt) WithSlot(string, any) (domain.Statement, error) {
	s.unfilled = false
	return s, nil
}
func (s stmt) Executable() bool   { return !s.unfilled }
func (s stmt) AutoConfirm() bool  { return !s.action }
func (s stmt) OutputType() string { return "com.example:" + s.name }
func (s stmt) String() string     { return "@com.example." + s.name + "()" }

type sliceStream struct {
	outputs []ports.Output
	closed  bool
}

func (s *sliceStream) Next(ctx context.Context) (ports.Output, error) {
	if len(s.outputs) == 0 {
		return ports.Output{}, io.EOF
	}
	out := s.outputs[0]
	s.outputs = s.outputs[1:]
	return out, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

type fakeEngine struct {
	outputs map[string][]ports.Output
	ran     []string
	err     error
	streams []*sliceStream
}

func (e *fakeEngine) Execute(ctx context.Context, st domain.Statement) (ports.OutputStream, error) {
	if e.err != nil {
		return nil, e.err
	}
	name := st.(stmt).name
	e.ran = append(e.ran, name)
	s := &sliceStream{outputs: append([]ports.Output(nil), e.outputs[name]...)}
	e.streams = append(e.streams, s)
	return s, nil
}

func rows(n int) []ports.Output {
	out := make([]ports.Output, n)
	for i := range out {
		out[i] = ports.Output{Value: map[string]any{"id": i, "title": "row"}}
	}
	return out
}

type MockSchemas struct {
	mock.Mock
}

func (m *MockSchemas) OutputSchema(ctx context.Context, outputType string) (map[string]domain.Type, error) {
	args := m.Called(ctx, outputType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.Type), args.Error(1)
}

func TestExecuteStatement_Pagination(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		wantItems int
		wantCount int
		wantMore  bool
	}{
		{"Empty", 0, 0, 0, false},
		{"Single Page", 7, 7, 7, false},
		{"Exactly Page Size", 10, 10, 10, false},
		{"Beyond Page", 23, 10, 23, false},
		{"Exactly More Size", 50, 10, 50, false},
		{"Beyond More Size", 73, 10, 50, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{outputs: map[string][]ports.Output{"search": rows(tt.rows)}}
			exec := executor.New(engine)

			list, err := exec.ExecuteStatement(context.Background(), stmt{name: "search"})
			require.NoError(t, err)
			assert.Len(t, list.Items, tt.wantItems)
			assert.Equal(t, tt.wantCount, list.Count)
			assert.Equal(t, tt.wantMore, list.More)
			assert.True(t, engine.streams[0].closed, "stream must be closed")
		})
	}
}

func TestExecuteState_PromotionAndOrdering(t *testing.T) {
	engine := &fakeEngine{outputs: map[string][]ports.Output{
		"done":   rows(1),
		"search": rows(2),
		"send":   rows(1),
		"later":  rows(1),
	}}
	exec := executor.New(engine)

	executed := domain.HistoryItem{Statement: stmt{name: "done"}, Confirm: domain.ConfirmConfirmed, Results: &domain.ResultList{Count: 1}}
	state := domain.NewDialogueState("p", "execute",
		executed,
		domain.HistoryItem{Statement: stmt{name: "search"}, Confirm: domain.ConfirmAccepted},
		domain.HistoryItem{Statement: stmt{name: "send", action: true}, Confirm: domain.ConfirmAccepted},
		domain.HistoryItem{Statement: stmt{name: "later"}, Confirm: domain.ConfirmConfirmed},
	)

	got, err := exec.ExecuteState(context.Background(), state, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"search"}, engine.ran, "must stop at the action awaiting confirmation")
	assert.Same(t, executed.Results, got.History[0].Results, "executed items are left alone")
	assert.Equal(t, domain.ConfirmConfirmed, got.History[1].Confirm, "query is auto-confirmed")
	require.NotNil(t, got.History[1].Results)
	assert.Equal(t, 2, got.History[1].Results.Count)
	assert.Equal(t, domain.ConfirmAccepted, got.History[2].Confirm)
	assert.Nil(t, got.History[2].Results)
	assert.Nil(t, got.History[3].Results)

	assert.Nil(t, state.History[1].Results, "input state is not modified")
	assert.Equal(t, domain.ConfirmAccepted, state.History[1].Confirm)
}

func TestExecuteState_AutoConfirmOverride(t *testing.T) {
	engine := &fakeEngine{outputs: map[string][]ports.Output{"send": rows(1)}}
	exec := executor.New(engine)
	state := domain.NewDialogueState("p", "execute",
		domain.HistoryItem{Statement: stmt{name: "send", action: true}, Confirm: domain.ConfirmAccepted})

	got, err := exec.ExecuteState(context.Background(), state, func(domain.Statement) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, []string{"send"}, engine.ran)
	assert.NotNil(t, got.History[0].Results)
}

func TestExecuteState_NothingToRun(t *testing.T) {
	exec := executor.New(&fakeEngine{})
	state := domain.NewDialogueState("p", "execute",
		domain.HistoryItem{Statement: stmt{name: "x", unfilled: true}, Confirm: domain.ConfirmAccepted})

	got, err := exec.ExecuteState(context.Background(), state, nil)
	require.NoError(t, err)
	assert.Same(t, state, got)

	got, err = exec.ExecuteState(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExecuteState_ConfirmedButNotExecutable(t *testing.T) {
	exec := executor.New(&fakeEngine{})
	state := domain.NewDialogueState("p", "execute",
		domain.HistoryItem{Statement: stmt{name: "x", unfilled: true}, Confirm: domain.ConfirmConfirmed})

	_, err := exec.ExecuteState(context.Background(), state, nil)
	assert.ErrorIs(t, err, domain.ErrNotExecutable)
}

type codedErr struct{ code string }

func (e codedErr) Error() string { return "failed with " + e.code }
func (e codedErr) Code() string  { return e.code }

func TestExecuteStatement_Errors(t *testing.T) {
	t.Run("Engine Failure", func(t *testing.T) {
		exec := executor.New(&fakeEngine{err: errors.New("no such device")})
		_, err := exec.ExecuteStatement(context.Background(), stmt{name: "x"})

		var execErr *domain.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "@com.example.x()", execErr.Statement)
	})

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"Application Code", codedErr{"unsupported_location"}, "unsupported_location"},
		{"System Code", codedErr{"ECONNREFUSED"}, "ECONNREFUSED"},
		{"Empty Code", codedErr{""}, "failed with "},
		{"Plain Error", errors.New("quota exceeded"), "quota exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{outputs: map[string][]ports.Output{
				"x": {{Value: map[string]any{"a": 1}}, {Err: errors.New("earlier")}, {Err: tt.err}},
			}}
			list, err := executor.New(engine).ExecuteStatement(context.Background(), stmt{name: "x"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, list.ErrorCode)
			assert.Equal(t, 1, list.Count)
			assert.True(t, list.Failed())
		})
	}
}

type forecast struct {
	Summary string  `mapstructure:"summary"`
	High    float64 `mapstructure:"high"`
	Place   place   `mapstructure:"place"`
}

type place struct {
	City string `mapstructure:"city"`
}

func TestExecuteStatement_Mapping(t *testing.T) {
	schemas := new(MockSchemas)
	schemas.On("OutputSchema", mock.Anything, "com.example:forecast").
		Return(map[string]domain.Type{"high": domain.MeasureOf("C"), "place.city": domain.TypeLocation}, nil)
	schemas.On("OutputSchema", mock.Anything, "com.example:raw").
		Return(nil, domain.ErrNotFound)

	engine := &fakeEngine{outputs: map[string][]ports.Output{
		"forecast": {{Type: "com.example:weather+com.example:forecast", Value: forecast{
			Summary: "sunny", High: 21.5, Place: place{City: "Lisbon"},
		}}},
		"raw": {{Value: map[string]any{
			"tags":    []any{"a", "b"},
			"ok":      true,
			"at":      time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC),
			"venue":   domain.Entity{ID: "r1", Display: "Tasca"},
			"missing": nil,
		}}},
		"count":  {{Type: "count(com.example:raw)", Value: map[string]any{"count": 12}}},
		"scalar": {{Value: 42}},
	}}
	exec := executor.New(engine, executor.WithSchemas(schemas))
	ctx := context.Background()

	list, err := exec.ExecuteStatement(ctx, stmt{name: "forecast"})
	require.NoError(t, err)
	row := list.Items[0].Value
	assert.Equal(t, domain.Value{Type: domain.MeasureOf("C"), Raw: 21.5}, row["high"])
	assert.Equal(t, domain.TypeString, row["summary"].Type)
	require.Equal(t, domain.TypeObject, row["place"].Type)
	nested := row["place"].Raw.(map[string]domain.Value)
	assert.Equal(t, domain.Value{Type: domain.TypeLocation, Raw: "Lisbon"}, nested["city"])

	list, err = exec.ExecuteStatement(ctx, stmt{name: "raw"})
	require.NoError(t, err)
	row = list.Items[0].Value
	assert.Equal(t, domain.ArrayOf(domain.TypeString), row["tags"].Type)
	assert.Equal(t, domain.TypeBoolean, row["ok"].Type)
	assert.Equal(t, domain.TypeEntity, row["venue"].Type)
	assert.Equal(t, domain.TypeDate, row["at"].Type)
	assert.NotContains(t, row, "missing")

	list, err = exec.ExecuteStatement(ctx, stmt{name: "count"})
	require.NoError(t, err)
	assert.Equal(t, domain.TypeNumber, list.Items[0].Value["count"].Type)

	list, err = executor.New(engine).ExecuteStatement(ctx, stmt{name: "scalar"})
	require.NoError(t, err)
	assert.Equal(t, domain.Value{Type: domain.TypeNumber, Raw: 42}, list.Items[0].Value["value"])

	schemas.AssertExpectations(t)
}

func TestExecuteStatement_Hooks(t *testing.T) {
	var events []*domain.ExecutionEvent
	engine := &fakeEngine{outputs: map[string][]ports.Output{"search": rows(73)}}
	exec := executor.New(engine, executor.WithHooks(domain.LifecycleHooks{
		OnExecute: func(ctx context.Context, e *domain.ExecutionEvent) { events = append(events, e) },
	}))

	_, err := exec.ExecuteStatement(context.Background(), stmt{name: "search"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 50, events[0].Count)
	assert.True(t, events[0].More)
	assert.Equal(t, "@com.example.search()", events[0].Statement)
}

func TestInferType(t *testing.T) {
	assert.Equal(t, domain.TypeNumber, executor.InferType(3))
	assert.Equal(t, domain.MeasureOf("ms"), executor.InferType(2*time.Second))
	assert.Equal(t, domain.ArrayOf(domain.TypeAny), executor.InferType([]any{}))
	assert.Equal(t, domain.ArrayOf(domain.TypeNumber), executor.InferType([]int{1, 2}))
	assert.Equal(t, domain.TypeObject, executor.InferType(map[string]any{"a": 1}))
	assert.Equal(t, domain.TypeCurrency, executor.InferType(domain.Currency{Amount: 3, Code: "EUR"}))
	assert.Equal(t, domain.TypeAny, executor.InferType(nil))
}
