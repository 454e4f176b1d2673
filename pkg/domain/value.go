package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Type names the type of a result value.
type Type string

const (
	TypeAny      Type = "Any"
	TypeBoolean  Type = "Boolean"
	TypeString   Type = "String"
	TypeNumber   Type = "Number"
	TypeCurrency Type = "Currency"
	TypeDate     Type = "Date"
	TypeTime     Type = "Time"
	TypeEntity   Type = "Entity"
	TypeLocation Type = "Location"
	TypeObject   Type = "Object"
)

// MeasureOf returns the measure type with the given base unit.
func MeasureOf(unit string) Type {
	return Type("Measure(" + unit + ")")
}

// ArrayOf returns the array type of elem.
func ArrayOf(elem Type) Type {
	return Type("Array(" + string(elem) + ")")
}

// IsArray reports whether t is an array type.
func (t Type) IsArray() bool {
	return strings.HasPrefix(string(t), "Array(")
}

// IsMeasure reports whether t is a measure type.
func (t Type) IsMeasure() bool {
	return strings.HasPrefix(string(t), "Measure(")
}

// Value is a typed result value.
type Value struct {
	Type Type `json:"type"`
	Raw  any  `json:"value"`
}

func (v Value) String() string {
	return fmt.Sprintf("%v", v.Raw)
}

// Entity is a named reference to a real-world thing (a restaurant, a song).
type Entity struct {
	ID      string `json:"id"`
	Display string `json:"display,omitempty"`
}

func (e Entity) String() string {
	if e.Display != "" {
		return e.Display
	}
	return e.ID
}

// Currency is an amount of money.
type Currency struct {
	Amount float64 `json:"amount"`
	Code   string  `json:"code"`
}

func (c Currency) String() string {
	return fmt.Sprintf("%.2f %s", c.Amount, c.Code)
}

// Location is a point on Earth.
type Location struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Display string  `json:"display,omitempty"`
}

func (l Location) String() string {
	if l.Display != "" {
		return l.Display
	}
	return fmt.Sprintf("[%.4f, %.4f]", l.Lat, l.Lon)
}

// ResultItem is one row of a statement's output.
type ResultItem struct {
	Value map[string]Value `json:"value"`
	Raw   any              `json:"-"`
}

// Get returns the raw value of a field, or nil.
func (r ResultItem) Get(name string) any {
	if v, ok := r.Value[name]; ok {
		return v.Raw
	}
	return nil
}

// String renders the row with its fields sorted by name.
func (r ResultItem) String() string {
	if v, ok := r.Value["id"]; ok {
		return v.String()
	}
	keys := make([]string, 0, len(r.Value))
	for k := range r.Value {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+r.Value[k].String())
	}
	return strings.Join(parts, ", ")
}

// ResultList is the bounded output attached to an executed history item.
type ResultList struct {
	// Items holds at most one page of results.
	Items []ResultItem `json:"items"`
	// Count is the number of results collected, which may exceed len(Items).
	Count int `json:"count"`
	// More is true when the source had results beyond the collected ones.
	More bool `json:"more"`
	// ErrorCode is set when the statement reported an error while running.
	ErrorCode string `json:"error,omitempty"`
}

// Failed reports whether execution reported an error.
func (r *ResultList) Failed() bool {
	return r != nil && r.ErrorCode != ""
}
