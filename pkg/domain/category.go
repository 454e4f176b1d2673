package domain

import (
	"fmt"
	"strings"
)

// ValueCategory is the kind of answer the conversation is waiting for.
// The zero value means the conversation is not expecting anything.
type ValueCategory string

const (
	CategoryNone               ValueCategory = ""
	CategoryYesNo              ValueCategory = "yes_no"
	CategoryMultipleChoice     ValueCategory = "multiple_choice"
	CategoryNumber             ValueCategory = "number"
	CategoryDate               ValueCategory = "date"
	CategoryTime               ValueCategory = "time"
	CategoryPicture            ValueCategory = "picture"
	CategoryLocation           ValueCategory = "location"
	CategoryPhoneNumber        ValueCategory = "phone_number"
	CategoryEmailAddress       ValueCategory = "email_address"
	CategoryRawString          ValueCategory = "raw_string"
	CategoryPassword           ValueCategory = "password"
	CategoryCommand            ValueCategory = "command"
	CategoryMore               ValueCategory = "more"
	CategoryPermissionResponse ValueCategory = "permission_response"
)

const measurePrefix = "measure:"

// MeasureCategory expects a measurement in the given base unit ("C", "m", "ms"...).
func MeasureCategory(unit string) ValueCategory {
	return ValueCategory(measurePrefix + unit)
}

// IsMeasure reports whether c expects a measurement.
func (c ValueCategory) IsMeasure() bool {
	return strings.HasPrefix(string(c), measurePrefix)
}

// Unit returns the base unit of a measure category, or "".
func (c ValueCategory) Unit() string {
	if !c.IsMeasure() {
		return ""
	}
	return strings.TrimPrefix(string(c), measurePrefix)
}

var measureNames = map[string]string{
	"ms":   "a time interval",
	"m":    "a length",
	"mps":  "a speed",
	"kg":   "a weight",
	"Pa":   "a pressure",
	"C":    "a temperature",
	"kcal": "an energy",
	"byte": "a size",
}

var measureUnits = map[string][]string{
	"ms":   {"ms", "s", "min", "h", "day", "week", "mon", "year"},
	"m":    {"m", "km", "mm", "cm", "mi", "in"},
	"mps":  {"mps", "kmph", "mph"},
	"kg":   {"kg", "g", "lb", "oz"},
	"Pa":   {"Pa", "bar", "psi", "mmHg", "inHg", "atm"},
	"C":    {"C", "F", "K"},
	"kcal": {"kcal", "kJ"},
	"byte": {"byte", "KB", "KiB", "MB", "MiB", "GB", "GiB", "TB", "TiB"},
}

// LookingFor is the reprompt used when the user answered with the wrong kind of value.
func (c ValueCategory) LookingFor() string {
	if c.IsMeasure() {
		unit := c.Unit()
		name, ok := measureNames[unit]
		if !ok {
			return fmt.Sprintf("I'm looking for a measurement in %s.", unit)
		}
		return fmt.Sprintf("I'm looking for %s in any of the supported units (%s).", name, strings.Join(measureUnits[unit], ", "))
	}
	switch c {
	case CategoryNone:
		return "In fact, I did not ask for anything at all!"
	case CategoryYesNo:
		return "Sorry, I need you to confirm the last question first."
	case CategoryMultipleChoice:
		return "Could you choose one of the following?"
	case CategoryNumber:
		return "Could you give me a number?"
	case CategoryDate:
		return "Could you give me a date?"
	case CategoryTime:
		return "Could you give me a time of day?"
	case CategoryPicture:
		return "Could you upload a picture?"
	case CategoryLocation:
		return "Could you give me a place?"
	case CategoryPhoneNumber:
		return "Could you give me a phone number?"
	case CategoryEmailAddress:
		return "Could you give me an email address?"
	case CategoryRawString, CategoryPassword:
		return "Which is interesting, because I'll take anything at all. Just type your mind!"
	case CategoryCommand:
		return "I'm looking for a trigger, an action, or a query."
	default:
		return "In fact, I'm not even sure what I asked. Sorry!"
	}
}

// Accepts reports whether an answer of category got satisfies an expectation of c.
// Raw string expectations take any textual answer.
func (c ValueCategory) Accepts(got ValueCategory) bool {
	if c == got {
		return true
	}
	switch c {
	case CategoryRawString, CategoryPassword:
		return got == CategoryRawString || got == CategoryPassword
	case CategoryPermissionResponse:
		return got == CategoryYesNo
	}
	return false
}
