// Package schema validates result values against the types of
// domain.Type.
//
// A Schema maps field names to types, usually parsed from the type names an
// app declares for its output:
//
//	s, err := schema.ParseTypeMap(map[string]domain.Type{
//	    "summary":     domain.TypeString,
//	    "temperature": domain.MeasureOf("C"),
//	    "tags":        domain.ArrayOf(domain.TypeString),
//	})
//
//	if err := schema.Validate(s, row); err != nil {
//	    // Handle validation errors
//	}
//
// Validate treats every field as required; ValidatePresent only checks the
// fields the row has. Failures are reported together in a RowError.
package schema
