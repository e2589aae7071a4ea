package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/profiled/internal/normalize"
)

// Age and height bounds enforced by the validity predicates.
const (
	MinAge   = 13
	MaxAge   = 120
	MinCm    = 90
	MaxCm    = 250
	maxName  = 64
	maxItems = 20
)

// Canonical enum members.
var (
	genders           = []string{"male", "female", "non-binary"}
	genderPreferences = []string{"male", "female", "non-binary", "any"}
)

// Registry holds the fixed slot dispatch table.
type Registry struct {
	defs  map[string]*Definition
	order []string
}

// NewRegistry builds the registry with the standard intake slots.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]*Definition)}
	for _, d := range standardSlots() {
		r.register(d)
	}
	return r
}

func (r *Registry) register(d *Definition) {
	r.defs[d.Name] = d
	r.order = append(r.order, d.Name)
}

// Lookup returns the definition for a slot name.
func (r *Registry) Lookup(slot string) (*Definition, bool) {
	d, ok := r.defs[slot]
	return d, ok
}

// Names returns all slot names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Validate runs the slot's validity predicate. Skipped values always
// pass; unknown slots are rejected.
func (r *Registry) Validate(slot string, v Value) error {
	d, ok := r.defs[slot]
	if !ok {
		return &ValidationError{Slot: slot, Value: v, Reason: "unknown slot"}
	}
	if v.Skipped() {
		return nil
	}
	if d.Validate == nil {
		return nil
	}
	return d.Validate(v)
}

func standardSlots() []*Definition {
	return []*Definition{
		{
			Name:        "name",
			Kind:        KindString,
			Description: "the user's first name",
			Entity:      "name",
			Patterns: []Pattern{
				{Name: "name_intro", Regex: `(?i)\b(?:my name is|call me|i go by|it'?s)\s+([A-Za-z][A-Za-z'-]+)`, Confidence: 0.8},
				{Name: "name_im", Regex: `(?i)^i'?m\s+([A-Z][A-Za-z'-]+)\s*[.!]?$`, Confidence: 0.7},
				{Name: "name_bare", Regex: `^([A-Z][A-Za-z'-]+)\s*[.!]?$`, Confidence: 0.7},
			},
			Normalize: normalizeName,
			Validate:  validateName,
		},
		{
			Name:        "age",
			Kind:        KindInt,
			Description: "the user's age in years, as a number",
			Entity:      "age",
			Patterns: []Pattern{
				{Name: "age_years_old", Regex: `(?i)\b(\d{1,3})\s*(?:years?[\s-]*old|yrs?\b|yo\b)`, Confidence: 0.8},
				{Name: "age_im", Regex: `(?i)\bi(?:'?m| am)\s+(\d{1,3})\b`, Confidence: 0.8},
				{Name: "age_bare", Regex: `^\s*(\d{1,3})\s*[.!]?$`, Confidence: 0.8},
				{Name: "age_words", Regex: `(?i)\b((?:twenty|thirty|forty|fifty|sixty|seventy|eighty|ninety)(?:[-\s](?:one|two|three|four|five|six|seven|eight|nine))?)\s*(?:years?[\s-]*old)?\b`, Confidence: 0.7},
			},
			Normalize: normalizeAge,
			Validate:  validateAge,
		},
		{
			Name:        "dob",
			Kind:        KindString,
			Description: "the user's date of birth in YYYY-MM-DD format",
			Entity:      "dob",
			Patterns: []Pattern{
				{Name: "dob_iso", Regex: `\b(\d{4}-\d{2}-\d{2})\b`, Confidence: 0.8},
			},
			Normalize: normalizeDOB,
			Validate:  validateDOB,
		},
		{
			Name:        "gender",
			Kind:        KindEnum,
			Description: "the user's gender: male, female, or non-binary",
			Entity:      "gender",
			Patterns: []Pattern{
				{Name: "gender_female", Regex: `(?i)\b(female|woman|girl|lady|gal)\b`, Confidence: 0.8},
				{Name: "gender_male", Regex: `(?i)\b(male|man|guy|boy|dude|gentleman)\b`, Confidence: 0.8},
				{Name: "gender_nonbinary", Regex: `(?i)\b(non.?binary|enby|nb|genderqueer)\b`, Confidence: 0.8},
			},
			Normalize: normalizeGender,
			Validate:  enumValidator("gender", genders),
		},
		{
			Name:        "gender_preference",
			Kind:        KindEnum,
			Description: "which gender the user wants to date: male, female, non-binary, or any",
			Entity:      "gender_preference",
			Patterns: []Pattern{
				{Name: "pref_any", Regex: `(?i)\b(anyone|any|anybody|everybody|all genders|open to all)\b`, Confidence: 0.8},
				{Name: "pref_female", Regex: `(?i)\b(females?|women|girls|ladies)\b`, Confidence: 0.7},
				{Name: "pref_male", Regex: `(?i)\b(males?|men|guys)\b`, Confidence: 0.7},
				{Name: "pref_nonbinary", Regex: `(?i)\b(non.?binary|enby)\b`, Confidence: 0.7},
			},
			Normalize: normalizeGenderPreference,
			Validate:  enumValidator("gender_preference", genderPreferences),
		},
		{
			Name:        "age_preference",
			Kind:        KindRange,
			Description: "the age range the user wants to date, like 25-35",
			Entity:      "age_preference",
			Patterns: []Pattern{
				{Name: "range_pair", Regex: `\b(\d{1,3}\s*(?:-|–|to)\s*\d{1,3})\b`, Confidence: 0.8},
				{Name: "range_decade", Regex: `(?i)\b(\d{1,2}0'?s)\b`, Confidence: 0.7},
			},
			Normalize: normalizeAgeRange,
			Validate:  validateAgeRange,
		},
		{
			Name:        "height",
			Kind:        KindInt,
			Description: "the user's height, in centimeters or feet and inches",
			Entity:      "height",
			Patterns: []Pattern{
				{Name: "height_cm", Regex: `(?i)\b(\d{2,3}\s*cm)\b`, Confidence: 0.8},
				{Name: "height_meters", Regex: `(?i)\b(\d[.,]\d{1,2}\s*m)\b`, Confidence: 0.8},
				{Name: "height_feet", Regex: `(\d\s*'\s*\d{1,2}\s*(?:"|'')?)`, Confidence: 0.8},
				{Name: "height_ft_words", Regex: `(?i)\b(\d\s*(?:ft|feet|foot)(?:\s*\d{1,2}\s*(?:in|inches)?)?)\b`, Confidence: 0.7},
			},
			Normalize: normalizeHeight,
			Validate:  validateHeight,
		},
		{
			Name:        "interests",
			Kind:        KindList,
			Description: "the user's hobbies and interests, as a list",
			Entity:      "user_detail",
			Patterns: []Pattern{
				{Name: "interests_like", Regex: `(?i)\bi\s+(?:really\s+)?(?:like|love|enjoy)\s+(.+?)[.!]?$`, Confidence: 0.7},
				{Name: "interests_into", Regex: `(?i)\bi'?m\s+(?:big\s+)?into\s+(.+?)[.!]?$`, Confidence: 0.7},
				{Name: "interests_hobbies", Regex: `(?i)\bmy\s+hobbies\s+(?:are|include)\s+(.+?)[.!]?$`, Confidence: 0.8},
			},
			Normalize: normalizeList,
			Validate:  listValidator("interests"),
		},
		{
			Name:        "preferences",
			Kind:        KindList,
			Description: "qualities the user is looking for in a partner, as a list",
			Entity:      "preference",
			Patterns: []Pattern{
				{Name: "pref_looking_for", Regex: `(?i)\b(?:i'?m\s+)?looking\s+for\s+(?:someone\s+(?:who(?:'s| is)?\s+)?)?(.+?)[.!]?$`, Confidence: 0.7},
				{Name: "pref_want", Regex: `(?i)\bi\s+(?:want|prefer|value)\s+(.+?)[.!]?$`, Confidence: 0.7},
			},
			Normalize: normalizeList,
			Validate:  listValidator("preferences"),
		},
		{
			Name:        "deal_breakers",
			Kind:        KindList,
			Description: "traits the user will not accept in a partner, as a list",
			Entity:      "deal_breaker",
			Patterns: []Pattern{
				{Name: "db_explicit", Regex: `(?i)\bdeal.?breakers?\s+(?:for me\s+)?(?:are|is|:)?\s*(.+?)[.!]?$`, Confidence: 0.8},
				{Name: "db_cant_stand", Regex: `(?i)\bi\s+(?:can'?t stand|hate|won'?t accept)\s+(.+?)[.!]?$`, Confidence: 0.7},
			},
			Normalize: normalizeList,
			Validate:  listValidator("deal_breakers"),
		},
	}
}

// Normalizers

func normalizeName(text string) (Value, error) {
	s := strings.TrimSpace(text)
	s = strings.Trim(s, `"'.`)
	if s == "" {
		return Value{}, &normalize.NormalizationError{Fragment: text, Kind: "name"}
	}
	// Capitalize the first rune, keep the rest as given.
	s = strings.ToUpper(s[:1]) + s[1:]
	return StringValue(s), nil
}

func normalizeAge(text string) (Value, error) {
	n, err := normalize.Int(text)
	if err != nil {
		return Value{}, err
	}
	return IntValue(n), nil
}

func normalizeDOB(text string) (Value, error) {
	s := strings.TrimSpace(text)
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return Value{}, &normalize.NormalizationError{Fragment: text, Kind: "dob"}
	}
	return StringValue(s), nil
}

func normalizeGender(text string) (Value, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	// Female vocabulary is checked first: "female" contains "male" and
	// "women" contains "men".
	switch {
	case containsAny(s, "female", "woman", "women", "girl", "lady", "gal"):
		return EnumValue("female"), nil
	case containsAny(s, "non-binary", "nonbinary", "non binary", "enby", "genderqueer"), s == "nb":
		return EnumValue("non-binary"), nil
	case containsAny(s, "male", "man", "men", "guy", "boy", "dude", "gentleman"):
		return EnumValue("male"), nil
	}
	return Value{}, &normalize.NormalizationError{Fragment: text, Kind: "gender"}
}

func normalizeGenderPreference(text string) (Value, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	if containsAny(s, "any", "anyone", "anybody", "everybody", "all genders", "open to all") {
		return EnumValue("any"), nil
	}
	v, err := normalizeGender(s)
	if err != nil {
		return Value{}, &normalize.NormalizationError{Fragment: text, Kind: "gender_preference"}
	}
	return v, nil
}

func normalizeAgeRange(text string) (Value, error) {
	lo, hi, err := normalize.AgeRange(text)
	if err != nil {
		return Value{}, err
	}
	return RangeValue(lo, hi), nil
}

func normalizeHeight(text string) (Value, error) {
	cm, err := normalize.Height(text)
	if err != nil {
		return Value{}, err
	}
	return IntValue(cm), nil
}

var listSeparators = strings.NewReplacer(" and ", ",", " & ", ",", ";", ",")

func normalizeList(text string) (Value, error) {
	s := listSeparators.Replace(strings.TrimSpace(text))
	parts := strings.Split(s, ",")
	items := make([]string, 0, len(parts))
	seen := make(map[string]bool)
	for _, p := range parts {
		item := strings.ToLower(strings.TrimSpace(strings.Trim(p, `."'`)))
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		items = append(items, item)
	}
	if len(items) == 0 {
		return Value{}, &normalize.NormalizationError{Fragment: text, Kind: "list"}
	}
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return ListValue(items), nil
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Validators

func validateName(v Value) error {
	if v.Kind != KindString {
		return &ValidationError{Slot: "name", Value: v, Reason: "expected a string"}
	}
	s := strings.TrimSpace(v.Str)
	if s == "" {
		return &ValidationError{Slot: "name", Value: v, Reason: "empty name"}
	}
	if len(s) > maxName {
		return &ValidationError{Slot: "name", Value: v, Reason: "name too long"}
	}
	for _, r := range s {
		if !isNameRune(r) {
			return &ValidationError{Slot: "name", Value: v, Reason: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	return nil
}

func isNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r == '-' || r == '\'' || r == ' ':
		return true
	}
	return false
}

func validateAge(v Value) error {
	if v.Kind != KindInt {
		return &ValidationError{Slot: "age", Value: v, Reason: "expected an integer"}
	}
	if v.Int < MinAge || v.Int > MaxAge {
		return &ValidationError{Slot: "age", Value: v, Reason: fmt.Sprintf("age %d outside [%d,%d]", v.Int, MinAge, MaxAge)}
	}
	return nil
}

func validateDOB(v Value) error {
	if v.Kind != KindString {
		return &ValidationError{Slot: "dob", Value: v, Reason: "expected a date string"}
	}
	t, err := time.Parse("2006-01-02", v.Str)
	if err != nil {
		return &ValidationError{Slot: "dob", Value: v, Reason: "not a YYYY-MM-DD date"}
	}
	if t.After(time.Now()) {
		return &ValidationError{Slot: "dob", Value: v, Reason: "date of birth in the future"}
	}
	return nil
}

func validateAgeRange(v Value) error {
	if v.Kind != KindRange {
		return &ValidationError{Slot: "age_preference", Value: v, Reason: "expected a range"}
	}
	if v.Min > v.Max {
		return &ValidationError{Slot: "age_preference", Value: v, Reason: "min greater than max"}
	}
	if v.Min < MinAge || v.Max > MaxAge {
		return &ValidationError{Slot: "age_preference", Value: v, Reason: fmt.Sprintf("range %d-%d outside [%d,%d]", v.Min, v.Max, MinAge, MaxAge)}
	}
	return nil
}

func validateHeight(v Value) error {
	if v.Kind != KindInt {
		return &ValidationError{Slot: "height", Value: v, Reason: "expected centimeters"}
	}
	if v.Int < MinCm || v.Int > MaxCm {
		return &ValidationError{Slot: "height", Value: v, Reason: fmt.Sprintf("height %dcm outside [%d,%d]", v.Int, MinCm, MaxCm)}
	}
	return nil
}

func enumValidator(slot string, members []string) func(Value) error {
	allowed := make(map[string]bool, len(members))
	for _, m := range members {
		allowed[m] = true
	}
	return func(v Value) error {
		if v.Kind != KindEnum {
			return &ValidationError{Slot: slot, Value: v, Reason: "expected an enum member"}
		}
		if !allowed[v.Str] {
			return &ValidationError{Slot: slot, Value: v, Reason: fmt.Sprintf("%q is not one of %s", v.Str, strings.Join(members, "|"))}
		}
		return nil
	}
}

func listValidator(slot string) func(Value) error {
	return func(v Value) error {
		if v.Kind != KindList {
			return &ValidationError{Slot: slot, Value: v, Reason: "expected a list"}
		}
		if len(v.List) == 0 {
			return &ValidationError{Slot: slot, Value: v, Reason: "empty list"}
		}
		return nil
	}
}
