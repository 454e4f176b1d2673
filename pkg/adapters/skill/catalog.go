package skill

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/schema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownSkill = errors.New("unknown skill")
	ErrInvalidSkill = errors.New("invalid skill")
)

// Skill is one function the assistant can run, with canned results.
type Skill struct {
	ID          string   `mapstructure:"id"`
	Function    string   `mapstructure:"function"`
	Kind        string   `mapstructure:"kind"`
	Description string   `mapstructure:"description"`
	Keywords    []string `mapstructure:"keywords"`
	Icon        string   `mapstructure:"icon"`

	// Confirm forces a confirmation even for queries.
	Confirm bool       `mapstructure:"confirm"`
	Slots   []SlotSpec `mapstructure:"slots"`

	// Output declares the result schema, field name to type name.
	Output  map[string]string `mapstructure:"output"`
	Results []map[string]any  `mapstructure:"results"`

	// Error makes every run fail with this code.
	Error string `mapstructure:"error"`
}

// SlotSpec declares a required input of a skill.
type SlotSpec struct {
	Name     string `mapstructure:"name"`
	Category string `mapstructure:"category"`
	Prompt   string `mapstructure:"prompt"`
}

const (
	KindQuery  = "query"
	KindAction = "action"
)

// IsAction reports whether running the skill changes the world.
func (s *Skill) IsAction() bool {
	return s.Kind == KindAction
}

// Catalog is a set of skills loaded from YAML. It serves as the Engine
// running invocations and as their SchemaRetriever.
type Catalog struct {
	skills     []*Skill
	byID       map[string]*Skill
	byFunction map[string]*Skill
}

var (
	_ ports.Engine          = (*Catalog)(nil)
	_ ports.SchemaRetriever = (*Catalog)(nil)
)

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read skill catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog document: a top-level "skills" list.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse skill catalog: %w", err)
	}

	var doc struct {
		Skills []*Skill `mapstructure:"skills"`
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode skill catalog: %w", err)
	}
	return New(doc.Skills...)
}

// New builds a catalog from skills, validating them.
func New(skills ...*Skill) (*Catalog, error) {
	c := &Catalog{
		byID:       make(map[string]*Skill, len(skills)),
		byFunction: make(map[string]*Skill, len(skills)),
	}
	for _, s := range skills {
		if err := validate(s); err != nil {
			return nil, err
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidSkill, s.ID)
		}
		if _, dup := c.byFunction[s.Function]; dup {
			return nil, fmt.Errorf("%w: duplicate function %q", ErrInvalidSkill, s.Function)
		}
		c.skills = append(c.skills, s)
		c.byID[s.ID] = s
		c.byFunction[s.Function] = s
	}
	return c, nil
}

func validate(s *Skill) error {
	switch {
	case s == nil:
		return fmt.Errorf("%w: empty entry", ErrInvalidSkill)
	case s.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidSkill)
	case s.Function == "":
		return fmt.Errorf("%w: %s has no function", ErrInvalidSkill, s.ID)
	}
	if s.Kind == "" {
		s.Kind = KindQuery
	}
	if s.Kind != KindQuery && s.Kind != KindAction {
		return fmt.Errorf("%w: %s has kind %q", ErrInvalidSkill, s.ID, s.Kind)
	}
	if len(s.Keywords) == 0 {
		s.Keywords = []string{s.ID}
	}
	for i, kw := range s.Keywords {
		s.Keywords[i] = strings.ToLower(kw)
	}
	for _, slot := range s.Slots {
		if slot.Name == "" {
			return fmt.Errorf("%w: %s has a slot without name", ErrInvalidSkill, s.ID)
		}
	}
	return validateResults(s)
}

// validateResults checks the canned results against the declared output.
// Rows may leave declared fields out.
func validateResults(s *Skill) error {
	if len(s.Output) == 0 {
		return nil
	}
	types := make(map[string]domain.Type, len(s.Output))
	for field, typ := range s.Output {
		types[field] = domain.Type(typ)
	}
	out, err := schema.ParseTypeMap(types)
	if err != nil {
		return fmt.Errorf("%w: %s output: %v", ErrInvalidSkill, s.ID, err)
	}
	for i, row := range s.Results {
		if err := schema.ValidatePresent(out, row); err != nil {
			return fmt.Errorf("%w: %s result %d: %w", ErrInvalidSkill, s.ID, i, err)
		}
	}
	return nil
}

// Skills returns the skills in catalog order.
func (c *Catalog) Skills() []*Skill {
	return append([]*Skill(nil), c.skills...)
}

// Lookup finds a skill by ID.
func (c *Catalog) Lookup(id string) (*Skill, error) {
	s, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSkill, id)
	}
	return s, nil
}

// Invoke returns an invocation of the skill with the given arguments filled.
func (c *Catalog) Invoke(id string, args map[string]any) (Invocation, error) {
	s, err := c.Lookup(id)
	if err != nil {
		return Invocation{}, err
	}
	inv := NewInvocation(s)
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stmt, err := inv.WithSlot(k, args[k])
		if err != nil {
			return Invocation{}, err
		}
		inv = stmt.(Invocation)
	}
	return inv, nil
}

// OutputSchema returns the declared output fields of a skill function.
func (c *Catalog) OutputSchema(ctx context.Context, outputType string) (map[string]domain.Type, error) {
	s, ok := c.byFunction[outputType]
	if !ok || len(s.Output) == 0 {
		return nil, domain.ErrNotFound
	}
	types := make(map[string]domain.Type, len(s.Output))
	for field, typ := range s.Output {
		types[field] = domain.Type(typ)
	}
	return types, nil
}
