package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/aretw0/parley/pkg/domain"
)

// Type defines the contract for field validation.
type Type interface {
	// Name returns the domain type name, e.g. "String" or "Measure(C)".
	Name() domain.Type
	// Validate checks if a value conforms to this type.
	Validate(value any) error
}

type anyType struct{}

func (anyType) Name() domain.Type        { return domain.TypeAny }
func (anyType) Validate(value any) error { return nil }

type stringType struct{}

func (stringType) Name() domain.Type { return domain.TypeString }

func (stringType) Validate(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

type boolType struct{}

func (boolType) Name() domain.Type { return domain.TypeBoolean }

func (boolType) Validate(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected bool, got %T", value)
	}
	return nil
}

type numberType struct{}

func (numberType) Name() domain.Type { return domain.TypeNumber }

func (numberType) Validate(value any) error {
	if !isNumber(value) {
		return fmt.Errorf("expected number, got %T", value)
	}
	return nil
}

// measureType accepts plain numbers, expressed in the base unit.
type measureType struct {
	unit string
}

func (t measureType) Name() domain.Type { return domain.MeasureOf(t.unit) }

func (t measureType) Validate(value any) error {
	if !isNumber(value) {
		return fmt.Errorf("expected a measure in %s, got %T", t.unit, value)
	}
	return nil
}

type currencyType struct{}

func (currencyType) Name() domain.Type { return domain.TypeCurrency }

func (currencyType) Validate(value any) error {
	switch v := value.(type) {
	case domain.Currency, *domain.Currency:
		return nil
	case map[string]any:
		if !isNumber(v["amount"]) {
			return fmt.Errorf("currency needs a numeric amount")
		}
		return nil
	default:
		if isNumber(value) {
			return nil
		}
		return fmt.Errorf("expected currency, got %T", value)
	}
}

type entityType struct{}

func (entityType) Name() domain.Type { return domain.TypeEntity }

func (entityType) Validate(value any) error {
	switch v := value.(type) {
	case domain.Entity, *domain.Entity, string:
		return nil
	case map[string]any:
		if id, ok := v["id"].(string); !ok || id == "" {
			return fmt.Errorf("entity needs an id")
		}
		return nil
	default:
		return fmt.Errorf("expected entity, got %T", value)
	}
}

type locationType struct{}

func (locationType) Name() domain.Type { return domain.TypeLocation }

func (locationType) Validate(value any) error {
	switch v := value.(type) {
	case domain.Location, *domain.Location, string:
		return nil
	case map[string]any:
		if !isNumber(v["lat"]) || !isNumber(v["lon"]) {
			return fmt.Errorf("location needs numeric lat and lon")
		}
		return nil
	default:
		return fmt.Errorf("expected location, got %T", value)
	}
}

// Dates and times accept time.Time or their textual layouts.
type timeType struct {
	name    domain.Type
	layouts []string
}

func (t timeType) Name() domain.Type { return t.name }

func (t timeType) Validate(value any) error {
	switch v := value.(type) {
	case time.Time, *time.Time:
		return nil
	case string:
		for _, layout := range t.layouts {
			if _, err := time.Parse(layout, v); err == nil {
				return nil
			}
		}
		return fmt.Errorf("%q is not a valid %s", v, strings.ToLower(string(t.name)))
	default:
		return fmt.Errorf("expected %s, got %T", strings.ToLower(string(t.name)), value)
	}
}

type objectType struct{}

func (objectType) Name() domain.Type { return domain.TypeObject }

func (objectType) Validate(value any) error {
	if value == nil || reflect.ValueOf(value).Kind() != reflect.Map {
		return fmt.Errorf("expected object, got %T", value)
	}
	return nil
}

type arrayType struct {
	elemType Type
}

func (t arrayType) Name() domain.Type { return domain.ArrayOf(t.elemType.Name()) }

func (t arrayType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected array, got %T", value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elemType.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

func isNumber(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// ParseType converts a domain type name to a Type. Array and Measure
// types nest: "Array(Measure(C))".
func ParseType(name domain.Type) (Type, error) {
	switch {
	case name.IsArray():
		inner := strings.TrimSuffix(strings.TrimPrefix(string(name), "Array("), ")")
		elem, err := ParseType(domain.Type(inner))
		if err != nil {
			return nil, err
		}
		return arrayType{elemType: elem}, nil
	case name.IsMeasure():
		unit := strings.TrimSuffix(strings.TrimPrefix(string(name), "Measure("), ")")
		if unit == "" {
			return nil, fmt.Errorf("measure type %s has no unit", name)
		}
		return measureType{unit: unit}, nil
	}

	switch name {
	case domain.TypeAny, "":
		return anyType{}, nil
	case domain.TypeString:
		return stringType{}, nil
	case domain.TypeBoolean:
		return boolType{}, nil
	case domain.TypeNumber:
		return numberType{}, nil
	case domain.TypeCurrency:
		return currencyType{}, nil
	case domain.TypeEntity:
		return entityType{}, nil
	case domain.TypeLocation:
		return locationType{}, nil
	case domain.TypeDate:
		return timeType{name: domain.TypeDate, layouts: []string{time.RFC3339, time.DateOnly}}, nil
	case domain.TypeTime:
		return timeType{name: domain.TypeTime, layouts: []string{time.RFC3339, time.TimeOnly, "15:04"}}, nil
	case domain.TypeObject:
		return objectType{}, nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", name)
	}
}

// ParseTypeMap converts a map of field names to type names into a Schema.
func ParseTypeMap(typeMap map[string]domain.Type) (Schema, error) {
	result := make(Schema, len(typeMap))
	for key, name := range typeMap {
		t, err := ParseType(name)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		result[key] = t
	}
	return result, nil
}
