package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

func (e *Executor) mapResult(ctx context.Context, outputType string, raw any) (domain.ResultItem, error) {
	fields, err := toFields(raw)
	if err != nil {
		return domain.ResultItem{}, fmt.Errorf("mapping %s output: %w", outputType, err)
	}
	schema := e.lookupSchema(ctx, outputType)
	return domain.ResultItem{Value: mapFields("", schema, fields), Raw: raw}, nil
}

// toFields turns a raw output into named fields. Structs are flattened
// through their mapstructure tags; scalars become a single "value" field.
func toFields(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	}
	if !isRecord(raw) {
		return map[string]any{"value": raw}, nil
	}
	out := make(map[string]any)
	if err := mapstructure.Decode(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// isRecord reports whether v is a struct or map that should be split into
// fields, as opposed to a leaf value such as an Entity.
func isRecord(v any) bool {
	switch v.(type) {
	case domain.Entity, *domain.Entity, domain.Currency, *domain.Currency,
		domain.Location, *domain.Location, time.Time, *time.Time:
		return false
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Struct:
		return true
	case reflect.Map:
		return rv.Type().Key().Kind() == reflect.String
	default:
		return false
	}
}

func mapFields(prefix string, schema map[string]domain.Type, fields map[string]any) map[string]domain.Value {
	out := make(map[string]domain.Value, len(fields))
	for key, value := range fields {
		if value == nil {
			continue
		}
		typ, ok := schema[prefix+key]
		if !ok {
			typ = InferType(value)
		}
		if typ == domain.TypeObject && isRecord(value) {
			nested, err := toFields(value)
			if err == nil {
				out[key] = domain.Value{Type: domain.TypeObject, Raw: mapFields(prefix+key+".", schema, nested)}
				continue
			}
		}
		out[key] = domain.Value{Type: typ, Raw: value}
	}
	return out
}

// InferType guesses the type of a raw value from its shape.
func InferType(v any) domain.Type {
	switch x := v.(type) {
	case bool:
		return domain.TypeBoolean
	case string:
		return domain.TypeString
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return domain.TypeNumber
	case time.Time, *time.Time:
		return domain.TypeDate
	case time.Duration:
		return domain.MeasureOf("ms")
	case domain.Entity, *domain.Entity:
		return domain.TypeEntity
	case domain.Currency, *domain.Currency:
		return domain.TypeCurrency
	case domain.Location, *domain.Location:
		return domain.TypeLocation
	case []any:
		if len(x) == 0 {
			return domain.ArrayOf(domain.TypeAny)
		}
		return domain.ArrayOf(InferType(x[0]))
	}

	rv := reflect.Indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return domain.ArrayOf(domain.TypeAny)
		}
		return domain.ArrayOf(InferType(rv.Index(0).Interface()))
	case reflect.Struct, reflect.Map:
		return domain.TypeObject
	default:
		return domain.TypeAny
	}
}
