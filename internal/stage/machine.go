package stage

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/profiled/internal/logging"
	"github.com/fyrsmithlabs/profiled/internal/profile"
)

// State is a point-in-time view of a session's collection progress.
type State struct {
	Stage Stage
	Store profile.Store
}

// Applied reports the outcome of a successful slot write.
type Applied struct {
	Stage    Stage
	Advanced bool
}

type sessionState struct {
	mu    sync.Mutex
	stage Stage
	store profile.Store
}

// Machine holds the live stage and slot store for every active session.
// Calls against the same session are serialized; distinct sessions
// proceed concurrently.
type Machine struct {
	registry *profile.Registry
	logger   *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*sessionState
}

// NewMachine creates a machine validating against the given registry.
func NewMachine(registry *profile.Registry, logger *logging.Logger) *Machine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Machine{
		registry: registry,
		logger:   logger,
		sessions: make(map[string]*sessionState),
	}
}

// session returns the state for id, creating it at the initial stage.
func (m *Machine) session(id string) *sessionState {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.sessions[id]; ok {
		return s
	}
	s = &sessionState{stage: Order[0], store: make(profile.Store)}
	m.sessions[id] = s
	return s
}

// Apply writes a validated value into the session's store, then
// advances the stage if the current stage's mandatory set is now
// satisfied. At most one transition happens per call even when later
// stages' prerequisites are already met, keeping prompting one stage at
// a time. A value failing its slot's validity predicate is rejected:
// the store is untouched and the stage does not move.
func (m *Machine) Apply(ctx context.Context, sessionID, slot string, v profile.Value) (*Applied, error) {
	if err := m.registry.Validate(slot, v); err != nil {
		return nil, err
	}

	s := m.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Set(slot, v)

	advanced := false
	if !s.stage.Terminal() && satisfied(s.stage, s.store) {
		from := s.stage
		s.stage = s.stage.Next()
		advanced = true
		m.logger.Info(ctx, "stage advanced",
			zap.String("from", string(from)),
			zap.String("to", string(s.stage)))
	}

	return &Applied{Stage: s.stage, Advanced: advanced}, nil
}

// Advance moves the session forward one stage if its gate is satisfied,
// without writing a slot. Used for stages with no pending mandatory
// slots, like the greeting handoff. Returns the resulting stage and
// whether a transition happened.
func (m *Machine) Advance(ctx context.Context, sessionID string) (Stage, bool) {
	s := m.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage.Terminal() || !satisfied(s.stage, s.store) {
		return s.stage, false
	}
	from := s.stage
	s.stage = s.stage.Next()
	m.logger.Info(ctx, "stage advanced",
		zap.String("from", string(from)),
		zap.String("to", string(s.stage)))
	return s.stage, true
}

// ExpectedSlot returns the slot the session should be prompted for: the
// first unfilled mandatory slot of the current stage, or "" when the
// stage has none pending.
func (m *Machine) ExpectedSlot(sessionID string) string {
	s := m.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, slot := range mandatory[s.stage] {
		if !s.store.Has(slot) {
			return slot
		}
	}
	return ""
}

// Snapshot returns an independent copy of the session's state.
func (m *Machine) Snapshot(sessionID string) State {
	s := m.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Stage: s.stage, Store: s.store.Clone()}
}

// Restore seeds a session from replayed log state, e.g. after restart.
// It refuses to move an existing session backwards.
func (m *Machine) Restore(sessionID string, st State) error {
	if !st.Stage.Valid() {
		return fmt.Errorf("unknown stage %q", st.Stage)
	}

	s := m.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.Stage.Index() < s.stage.Index() {
		return fmt.Errorf("cannot restore session %s from %s back to %s", sessionID, s.stage, st.Stage)
	}
	s.stage = st.Stage
	if st.Store != nil {
		s.store = st.Store.Clone()
	}
	return nil
}

// satisfied reports whether every mandatory slot of st holds a value.
// Values reaching the store have already passed validation, so presence
// is sufficient; an explicit skip counts as present.
func satisfied(st Stage, store profile.Store) bool {
	for _, slot := range mandatory[st] {
		if !store.Has(slot) {
			return false
		}
	}
	return true
}
