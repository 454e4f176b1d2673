package schema

import "sort"

// Schema is a map of field names to their expected types.
type Schema map[string]Type

// Validate checks that data has every field of the schema with a value of
// the right type. Fields outside the schema are ignored.
func Validate(schema Schema, data map[string]any) error {
	return validate(schema, data, true)
}

// ValidatePresent is Validate with every field optional.
func ValidatePresent(schema Schema, data map[string]any) error {
	return validate(schema, data, false)
}

func validate(schema Schema, data map[string]any, required bool) error {
	if len(schema) == 0 {
		return nil
	}

	// Sorted so the errors come out in a stable order.
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)

	var row RowError
	for _, name := range names {
		typ := schema[name]
		value, exists := data[name]
		if !exists {
			if required {
				row = append(row, &FieldError{Field: name, Type: typ.Name()})
			}
			continue
		}
		if err := typ.Validate(value); err != nil {
			row = append(row, &FieldError{Field: name, Type: typ.Name(), Value: value, Err: err})
		}
	}

	if len(row) > 0 {
		return row
	}
	return nil
}
