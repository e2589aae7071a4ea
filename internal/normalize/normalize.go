// Package normalize provides pure conversions from free-text fragments
// into the typed values stored in a profile. Functions either return a
// normalized value or a *NormalizationError naming the fragment that
// could not be parsed; callers decide how to fall back.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// NormalizationError reports a text fragment that could not be converted.
type NormalizationError struct {
	Fragment string
	Kind     string // target kind, e.g. "int", "height", "age_range"
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("cannot normalize %q as %s", e.Fragment, e.Kind)
}

// TriState is a normalized yes/no/maybe answer.
type TriState string

const (
	Yes   TriState = "yes"
	No    TriState = "no"
	Maybe TriState = "maybe"
)

var smallNumbers = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17,
	"eighteen": 18, "nineteen": 19,
}

var tensNumbers = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

var digitRe = regexp.MustCompile(`-?\d+`)

// Int converts a text fragment to an integer. Accepts digit sequences
// ("25") and spelled-out numbers up to one hundred ("twenty-five",
// "thirty two").
func Int(text string) (int, error) {
	s := strings.TrimSpace(strings.ToLower(text))
	if s == "" {
		return 0, &NormalizationError{Fragment: text, Kind: "int"}
	}

	if m := digitRe.FindString(s); m != "" && strings.TrimSpace(s) == m {
		n, err := strconv.Atoi(m)
		if err != nil {
			return 0, &NormalizationError{Fragment: text, Kind: "int"}
		}
		return n, nil
	}

	if s == "one hundred" || s == "a hundred" || s == "hundred" {
		return 100, nil
	}
	if n, ok := smallNumbers[s]; ok {
		return n, nil
	}
	if n, ok := tensNumbers[s]; ok {
		return n, nil
	}

	// Compound forms: "twenty-five", "twenty five".
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == ' '
	})
	if len(parts) == 2 {
		tens, okTens := tensNumbers[parts[0]]
		ones, okOnes := smallNumbers[parts[1]]
		if okTens && okOnes && ones < 10 {
			return tens + ones, nil
		}
	}

	return 0, &NormalizationError{Fragment: text, Kind: "int"}
}

// AgeFromDOB computes calendar age at the given instant.
func AgeFromDOB(dob, now time.Time) (int, error) {
	if dob.After(now) {
		return 0, &NormalizationError{Fragment: dob.Format("2006-01-02"), Kind: "age"}
	}
	age := now.Year() - dob.Year()
	// Birthday not yet reached this year.
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age, nil
}

// DOBFromAge estimates a date of birth for someone of the given age.
// The estimate is pinned to January 1, matching how the intake flow
// derives a DOB when only an age was collected.
func DOBFromAge(age int, now time.Time) time.Time {
	return time.Date(now.Year()-age, time.January, 1, 0, 0, 0, 0, time.UTC)
}

var (
	cmRe         = regexp.MustCompile(`^(\d{2,3})\s*(?:cm|centimeters?)$`)
	metersRe     = regexp.MustCompile(`^(\d)[.,](\d{1,2})\s*(?:m|meters?)$`)
	feetInchesRe = regexp.MustCompile(`^(\d)\s*(?:'|ft\.?|feet|foot)\s*(\d{1,2})?\s*(?:"|''|in\.?|inches)?$`)
	bareRe       = regexp.MustCompile(`^(\d{2,3})$`)
)

// Height converts a free-text height into whole centimeters. Accepted
// forms: 5'10", 5 ft 10, 178cm, 178 cm, 1.78m, and a bare 90..250
// number which is taken as already-normalized centimeters, making the
// conversion idempotent.
func Height(text string) (int, error) {
	s := strings.TrimSpace(strings.ToLower(text))
	if s == "" {
		return 0, &NormalizationError{Fragment: text, Kind: "height"}
	}

	if m := cmRe.FindStringSubmatch(s); m != nil {
		cm, _ := strconv.Atoi(m[1])
		return cm, nil
	}
	if m := metersRe.FindStringSubmatch(s); m != nil {
		whole, _ := strconv.Atoi(m[1])
		frac := m[2]
		if len(frac) == 1 {
			frac += "0"
		}
		cents, _ := strconv.Atoi(frac)
		return whole*100 + cents, nil
	}
	if m := feetInchesRe.FindStringSubmatch(s); m != nil {
		feet, _ := strconv.Atoi(m[1])
		inches := 0
		if m[2] != "" {
			inches, _ = strconv.Atoi(m[2])
		}
		if inches > 11 {
			return 0, &NormalizationError{Fragment: text, Kind: "height"}
		}
		totalInches := float64(feet*12 + inches)
		return int(totalInches*2.54 + 0.5), nil
	}
	if m := bareRe.FindStringSubmatch(s); m != nil {
		cm, _ := strconv.Atoi(m[1])
		if cm >= 90 && cm <= 250 {
			return cm, nil
		}
	}

	return 0, &NormalizationError{Fragment: text, Kind: "height"}
}

var (
	yesWords   = map[string]bool{"yes": true, "yeah": true, "yep": true, "yup": true, "sure": true, "definitely": true, "absolutely": true, "of course": true, "y": true}
	noWords    = map[string]bool{"no": true, "nope": true, "nah": true, "never": true, "not really": true, "n": true}
	maybeWords = map[string]bool{"maybe": true, "perhaps": true, "possibly": true, "not sure": true, "sometimes": true, "depends": true, "it depends": true}
)

// ParseTriState converts a yes/no/maybe answer into its normalized form.
func ParseTriState(text string) (TriState, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimRight(s, ".!?,")
	switch {
	case yesWords[s]:
		return Yes, nil
	case noWords[s]:
		return No, nil
	case maybeWords[s]:
		return Maybe, nil
	}
	return "", &NormalizationError{Fragment: text, Kind: "tri_state"}
}

var (
	rangeRe  = regexp.MustCompile(`^(\d{1,3})\s*(?:-|–|to)\s*(\d{1,3})$`)
	decadeRe = regexp.MustCompile(`^(\d{1,2}0)'?s$`)
	singleRe = regexp.MustCompile(`^(\d{1,3})$`)
)

// AgeRange converts a free-text age range into an inclusive (min, max)
// pair. Accepted forms: "25-35", "25 to 35", "30s" (the decade 30..39),
// and a single age which collapses to (n, n).
func AgeRange(text string) (int, int, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	if m := rangeRe.FindStringSubmatch(s); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		if lo > hi {
			lo, hi = hi, lo
		}
		return lo, hi, nil
	}
	if m := decadeRe.FindStringSubmatch(s); m != nil {
		lo, _ := strconv.Atoi(m[1])
		return lo, lo + 9, nil
	}
	if m := singleRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, n, nil
	}
	return 0, 0, &NormalizationError{Fragment: text, Kind: "age_range"}
}
