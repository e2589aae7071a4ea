// Package engine drives conversation turns end to end: it extracts a
// value for the slot currently being solicited, applies it to the
// session's collection state, and records the exchange in the
// conversation log. The dialogue policy deciding which prompt to show
// next sits outside; it consumes the TurnResult.
package engine

import (
	"github.com/fyrsmithlabs/profiled/internal/extract"
	"github.com/fyrsmithlabs/profiled/internal/stage"
)

// TurnRequest is one inbound user message.
type TurnRequest struct {
	SessionID string
	Utterance string
	// Intent is the upstream recognizer's intent label, if any.
	Intent string
	// Entities are tagged by the upstream recognizer.
	Entities []extract.RecognizedEntity
}

// TurnResult is everything the dialogue policy needs to pick the next
// prompt. Exactly one of Extraction, Failure, or Rejection is set when
// a slot was being solicited; all three are nil for a pure stage
// handoff turn.
type TurnResult struct {
	SessionID string
	Stage     stage.Stage
	Advanced  bool
	// ExpectedSlot is the slot to solicit next, "" if none pending.
	ExpectedSlot string

	Extraction *extract.Result
	Failure    *extract.Failure
	// Rejection is set when a value parsed but failed its slot's
	// validity predicate; the caller should re-prompt.
	Rejection string

	// EventID references the logged user event, for later metadata
	// amendments once the chosen action is known.
	EventID string
	// LogDegraded is set when a log append failed. The turn's result
	// is still good; the gap is detectable on replay.
	LogDegraded bool
}
