// Package profile defines the fixed set of profile slots collected
// during an intake conversation. Each slot is a table entry providing
// its extraction patterns, its normalizer, and its validity predicate;
// adding a slot means adding an entry, not a new type.
package profile

import (
	"fmt"
	"strings"
)

// Kind discriminates the variants a slot value can hold.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindRange  Kind = "range"
	KindEnum   Kind = "enum"
	KindList   Kind = "list"
	// KindSkipped marks a slot the user declined to answer. A skipped
	// value counts as present for stage gating and always validates.
	KindSkipped Kind = "skipped"
)

// Value is a tagged variant holding one normalized slot value.
type Value struct {
	Kind Kind     `json:"kind"`
	Str  string   `json:"str,omitempty"`
	Int  int      `json:"int,omitempty"`
	Min  int      `json:"min,omitempty"`
	Max  int      `json:"max,omitempty"`
	List []string `json:"list,omitempty"`
}

// StringValue returns a string-kinded value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// IntValue returns an int-kinded value.
func IntValue(n int) Value { return Value{Kind: KindInt, Int: n} }

// RangeValue returns an inclusive (min, max) range value.
func RangeValue(min, max int) Value { return Value{Kind: KindRange, Min: min, Max: max} }

// EnumValue returns an enum-kinded value holding a canonical member.
func EnumValue(s string) Value { return Value{Kind: KindEnum, Str: s} }

// ListValue returns a list-kinded value.
func ListValue(items []string) Value { return Value{Kind: KindList, List: items} }

// SkippedValue returns the declined-to-answer sentinel.
func SkippedValue() Value { return Value{Kind: KindSkipped} }

// IsZero reports whether the value is the absent zero value.
func (v Value) IsZero() bool { return v.Kind == "" }

// Skipped reports whether the user declined this slot.
func (v Value) Skipped() bool { return v.Kind == KindSkipped }

// String renders the value for transcripts and log fields.
func (v Value) String() string {
	switch v.Kind {
	case KindString, KindEnum:
		return v.Str
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindRange:
		return fmt.Sprintf("%d-%d", v.Min, v.Max)
	case KindList:
		return strings.Join(v.List, ", ")
	case KindSkipped:
		return "(skipped)"
	}
	return ""
}

// Store maps slot names to their current value, last write wins.
type Store map[string]Value

// Set writes a value, replacing any previous one.
func (s Store) Set(slot string, v Value) { s[slot] = v }

// Get returns the current value and whether the slot is filled.
func (s Store) Get(slot string) (Value, bool) {
	v, ok := s[slot]
	return v, ok
}

// Has reports whether the slot holds a value (including skipped).
func (s Store) Has(slot string) bool {
	_, ok := s[slot]
	return ok
}

// Clone returns an independent copy of the store.
func (s Store) Clone() Store {
	out := make(Store, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ValidationError reports a parsed value rejected by a slot's validity
// predicate. The store is never updated with a rejected value.
type ValidationError struct {
	Slot   string
	Value  Value
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value for slot %s: %s", e.Slot, e.Reason)
}

// Pattern is one slot-specific extraction rule. Regexes use a single
// capture group for the fragment handed to the slot's normalizer; a
// group-less pattern passes the whole match.
type Pattern struct {
	Name       string
	Regex      string
	Confidence float64
}

// Definition is one entry of the slot dispatch table.
type Definition struct {
	Name        string
	Kind        Kind
	Description string // sent to the external text-understanding service
	Entity      string // entity name used by the upstream recognizer
	Patterns    []Pattern
	Normalize   func(text string) (Value, error)
	Validate    func(v Value) error
}
