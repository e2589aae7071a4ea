// Package convlog is the append-only, per-session conversation store.
// Every inbound and outbound message and every slot or stage mutation
// is appended as one JSON line to the session's log file. Events are
// immutable once written; later metadata amendments are appended as
// patch records and folded in at read time, so the file is only ever
// appended to, never rewritten.
package convlog

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/profiled/internal/extract"
	"github.com/fyrsmithlabs/profiled/internal/profile"
	"github.com/fyrsmithlabs/profiled/internal/stage"
)

// Sender identifies who produced an event.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
	SenderSystem Sender = "system"
)

// Metadata carries the structured annotations attached to an event.
// All fields are optional; patches overwrite only the fields they set.
type Metadata struct {
	Intent     string                     `json:"intent,omitempty"`
	Action     string                     `json:"action,omitempty"`
	Confidence float64                    `json:"confidence,omitempty"`
	Strategy   string                     `json:"strategy,omitempty"`
	Entities   []extract.RecognizedEntity `json:"entities,omitempty"`

	// Slot mutations recorded by system events; replayed on snapshot.
	Slot  string         `json:"slot,omitempty"`
	Value *profile.Value `json:"value,omitempty"`
}

// merge folds a patch into m, field by field. Zero-valued patch fields
// leave the original untouched.
func (m Metadata) merge(patch Metadata) Metadata {
	if patch.Intent != "" {
		m.Intent = patch.Intent
	}
	if patch.Action != "" {
		m.Action = patch.Action
	}
	if patch.Confidence != 0 {
		m.Confidence = patch.Confidence
	}
	if patch.Strategy != "" {
		m.Strategy = patch.Strategy
	}
	if len(patch.Entities) > 0 {
		m.Entities = patch.Entities
	}
	if patch.Slot != "" {
		m.Slot = patch.Slot
	}
	if patch.Value != nil {
		m.Value = patch.Value
	}
	return m
}

// Event is one immutable record in a session's log. Ordering is append
// order; timestamps are informational.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata,omitempty"`
}

// Snapshot is the replayed view of one session: the full event sequence
// with patches folded in, plus the slot store and stage derived from
// the recorded mutations.
type Snapshot struct {
	SessionID string
	Events    []Event
	Store     profile.Store
	Stage     stage.Stage
}

// record is the on-disk line format. A line is either a full event or a
// metadata patch referencing an earlier event by ID.
type record struct {
	Type     string    `json:"type"` // "event" or "patch"
	Event    *Event    `json:"event,omitempty"`
	Ref      string    `json:"ref,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// NotFoundError reports a query for a session with no recorded log.
type NotFoundError struct {
	SessionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session %s not found", e.SessionID)
}

// StorageWriteError reports a failed append. The caller's in-memory
// result is still good; the gap is detectable on replay.
type StorageWriteError struct {
	SessionID string
	Err       error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("log append failed for session %s: %v", e.SessionID, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }
