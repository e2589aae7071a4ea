// Package stage tracks per-session progress through the ordered
// collection flow. The machine is the sole authority on a session's
// current stage: stages only move forward, one step at a time, and only
// once every mandatory slot of the current stage holds a valid value.
package stage

// Stage is one phase of the collection flow.
type Stage string

const (
	Greeting     Stage = "greeting"
	PersonalData Stage = "personal_data_collection"
	Interests    Stage = "interests"
	Preferences  Stage = "preferences"
	Done         Stage = "done"
)

// Order is the fixed progression of stages.
var Order = []Stage{Greeting, PersonalData, Interests, Preferences, Done}

// mandatory lists the slots that must be filled (or explicitly skipped)
// before each stage hands off to the next. Slots absent from every set,
// like dob and deal_breakers, are collected opportunistically and never
// gate progression.
var mandatory = map[Stage][]string{
	Greeting:     {},
	PersonalData: {"name", "age", "gender", "gender_preference", "age_preference", "height"},
	Interests:    {"interests"},
	Preferences:  {"preferences"},
	Done:         {},
}

// Index returns the stage's position in the flow, or -1 if unknown.
func (s Stage) Index() int {
	for i, st := range Order {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool { return s.Index() >= 0 }

// Terminal reports whether s is the final stage.
func (s Stage) Terminal() bool { return s == Order[len(Order)-1] }

// Next returns the stage after s. The terminal stage returns itself.
func (s Stage) Next() Stage {
	i := s.Index()
	if i < 0 || i >= len(Order)-1 {
		return s
	}
	return Order[i+1]
}

// MandatorySlots returns the slots gating advancement out of s.
func MandatorySlots(s Stage) []string {
	out := make([]string, len(mandatory[s]))
	copy(out, mandatory[s])
	return out
}
