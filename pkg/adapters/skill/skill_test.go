package skill_test

import (
	"context"
	"io"
	"testing"

	"github.com/aretw0/parley/pkg/adapters/skill"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/executor"
	"github.com/aretw0/parley/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadCatalog(t *testing.T) *skill.Catalog {
	t.Helper()
	c, err := skill.LoadFile("testdata/catalog.yaml")
	require.NoError(t, err)
	return c
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"Bad YAML", "skills: [\n"},
		{"Unknown Field", "skills:\n  - id: a\n    function: f\n    colour: red\n"},
		{"Missing Function", "skills:\n  - id: a\n"},
		{"Bad Kind", "skills:\n  - id: a\n    function: f\n    kind: rule\n"},
		{"Duplicate", "skills:\n  - id: a\n    function: f\n  - id: a\n    function: g\n"},
		{"Unknown Output Type", "skills:\n  - id: a\n    function: f\n    output: {x: Decimal}\n"},
		{"Result Mismatch", "skills:\n  - id: a\n    function: f\n    output: {temp: Measure(C)}\n    results:\n      - temp: hot\n"},
		{"Unnamed Slot", "skills:\n  - id: a\n    function: f\n    slots:\n      - category: number\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := skill.Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestParse_ResultMismatchNamesField(t *testing.T) {
	_, err := skill.Parse([]byte("skills:\n  - id: a\n    function: f\n    output: {temp: Measure(C)}\n    results:\n      - temp: 20\n      - temp: hot\n"))
	require.ErrorIs(t, err, skill.ErrInvalidSkill)
	assert.EqualError(t, err, skill.ErrInvalidSkill.Error()+": a result 1: temp (Measure(C)): expected a measure in C, got string")

	fields := schema.Fields(err)
	require.Len(t, fields, 1)
	assert.Equal(t, "temp", fields[0].Field)
	assert.Equal(t, domain.MeasureOf("C"), fields[0].Type)
	assert.Equal(t, "hot", fields[0].Value)
}

func TestCatalog_Load(t *testing.T) {
	c := loadCatalog(t)
	require.Len(t, c.Skills(), 4)

	s, err := c.Lookup("weather")
	require.NoError(t, err)
	assert.Equal(t, skill.KindQuery, s.Kind)
	assert.Equal(t, []string{"weather", "forecast"}, s.Keywords)

	lamp, err := c.Lookup("lamp")
	require.NoError(t, err)
	assert.True(t, lamp.IsAction())

	_, err = c.Lookup("nope")
	assert.ErrorIs(t, err, skill.ErrUnknownSkill)

	assert.Equal(t, "I can help with: the weather, finding restaurants, booking a table, lamp.", c.HelpText())
}

func TestInvocation(t *testing.T) {
	c := loadCatalog(t)

	inv, err := c.Invoke("book", nil)
	require.NoError(t, err)
	assert.False(t, inv.Executable())
	assert.False(t, inv.AutoConfirm())
	assert.Equal(t, "@com.example.food:book(id=$?, people=$?)", inv.String())
	require.Len(t, inv.Slots(), 2)
	assert.Equal(t, domain.CategoryNumber, inv.Slots()[1].Category)

	filled, err := inv.WithSlot("id", "trattoria")
	require.NoError(t, err)
	assert.Equal(t, "@com.example.food:book(id=trattoria, people=$?)", filled.String())
	assert.Equal(t, "@com.example.food:book(id=$?, people=$?)", inv.String(), "WithSlot does not modify the receiver")

	_, err = filled.WithSlot("id", "again")
	assert.Error(t, err)

	assert.True(t, inv.Compatible(filled))
	assert.True(t, filled.Compatible(inv))
	other, err := c.Invoke("book", map[string]any{"id": "sushi-bar"})
	require.NoError(t, err)
	assert.False(t, filled.Compatible(other))

	weather, err := c.Invoke("weather", nil)
	require.NoError(t, err)
	assert.False(t, weather.Compatible(inv))
	assert.Equal(t, "com.example.weather:current", weather.OutputType())

	restaurants, err := c.Invoke("restaurants", nil)
	require.NoError(t, err)
	assert.True(t, restaurants.Executable())
	assert.True(t, restaurants.AutoConfirm())
}

func TestCatalog_Execute(t *testing.T) {
	c := loadCatalog(t)
	ctx := context.Background()

	inv, err := c.Invoke("weather", map[string]any{"city": "Lisbon"})
	require.NoError(t, err)

	stream, err := c.Execute(ctx, inv)
	require.NoError(t, err)
	out, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "com.example.weather:current", out.Type)
	assert.Equal(t, "sunny in Lisbon", out.Value.(map[string]any)["summary"])
	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, stream.Close())

	missing, err := c.Invoke("weather", nil)
	require.NoError(t, err)
	_, err = c.Execute(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrNotExecutable)
}

func TestCatalog_WithExecutor(t *testing.T) {
	c := loadCatalog(t)
	exec := executor.New(c, executor.WithSchemas(c))
	ctx := context.Background()

	inv, err := c.Invoke("weather", map[string]any{"city": "Lisbon"})
	require.NoError(t, err)
	list, err := exec.ExecuteStatement(ctx, inv)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, domain.MeasureOf("C"), list.Items[0].Value["temperature"].Type)
	assert.Equal(t, "w1", list.Items[0].Get("id"))

	lamp, err := c.Invoke("lamp", nil)
	require.NoError(t, err)
	list, err = exec.ExecuteStatement(ctx, lamp)
	require.NoError(t, err)
	assert.True(t, list.Failed())
	assert.Equal(t, "unsupported_device", list.ErrorCode)
}

func TestCatalog_OutputSchema(t *testing.T) {
	c := loadCatalog(t)
	ctx := context.Background()

	schema, err := c.OutputSchema(ctx, "com.example.weather:current")
	require.NoError(t, err)
	assert.Equal(t, domain.TypeString, schema["summary"])

	_, err = c.OutputSchema(ctx, "com.example.food:restaurants")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = c.OutputSchema(ctx, "com.example.nothing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
