package skill

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
)

var _ domain.Statement = Invocation{}

// Invocation is a call of a skill, possibly with inputs still missing.
type Invocation struct {
	Skill    string
	Function string
	action   bool
	confirm  bool
	missing  []domain.Slot
	args     map[string]any
}

// NewInvocation returns an invocation of s with every slot missing.
func NewInvocation(s *Skill) Invocation {
	inv := Invocation{
		Skill:    s.ID,
		Function: s.Function,
		action:   s.IsAction(),
		confirm:  s.Confirm,
	}
	for _, spec := range s.Slots {
		inv.missing = append(inv.missing, domain.Slot{
			Name:     spec.Name,
			Category: domain.ValueCategory(spec.Category),
			Prompt:   spec.Prompt,
		})
	}
	return inv
}

// Args returns a copy of the filled inputs.
func (i Invocation) Args() map[string]any {
	out := make(map[string]any, len(i.args))
	for k, v := range i.args {
		out[k] = v
	}
	return out
}

// Compatible matches invocations of the same function whose common inputs agree.
func (i Invocation) Compatible(other domain.Statement) bool {
	o, ok := other.(Invocation)
	if !ok || o.Function != i.Function {
		return false
	}
	for k, v := range i.args {
		if ov, ok := o.args[k]; ok && fmt.Sprint(ov) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

func (i Invocation) Slots() []domain.Slot {
	return append([]domain.Slot(nil), i.missing...)
}

func (i Invocation) WithSlot(name string, value any) (domain.Statement, error) {
	idx := -1
	for n, slot := range i.missing {
		if slot.Name == name {
			idx = n
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%s has no missing input %q", i.Function, name)
	}

	out := i
	out.missing = append(append([]domain.Slot(nil), i.missing[:idx]...), i.missing[idx+1:]...)
	out.args = i.Args()
	out.args[name] = value
	return out, nil
}

func (i Invocation) Executable() bool {
	return len(i.missing) == 0
}

// AutoConfirm is true for queries not marked as needing confirmation.
func (i Invocation) AutoConfirm() bool {
	return !i.action && !i.confirm
}

func (i Invocation) OutputType() string {
	return i.Function
}

func (i Invocation) String() string {
	keys := make([]string, 0, len(i.args))
	for k := range i.args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+len(i.missing))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, i.args[k]))
	}
	for _, slot := range i.missing {
		parts = append(parts, slot.Name+"=$?")
	}
	return "@" + i.Function + "(" + strings.Join(parts, ", ") + ")"
}
