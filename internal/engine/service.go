package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/profiled/internal/convlog"
	"github.com/fyrsmithlabs/profiled/internal/extract"
	"github.com/fyrsmithlabs/profiled/internal/logging"
	"github.com/fyrsmithlabs/profiled/internal/profile"
	"github.com/fyrsmithlabs/profiled/internal/stage"
)

const instrumentationName = "github.com/fyrsmithlabs/profiled/internal/engine"

// Service processes conversation turns.
type Service interface {
	// StartSession registers a session and logs its opening event.
	StartSession(ctx context.Context, sessionID string) error

	// ProcessTurn handles one inbound user message.
	ProcessTurn(ctx context.Context, req *TurnRequest) (*TurnResult, error)

	// RecordBotMessage logs an outbound message chosen by the dialogue
	// policy, returning the stored event.
	RecordBotMessage(ctx context.Context, sessionID, content string, meta convlog.Metadata) (convlog.Event, error)

	// AmendTurn patches an earlier turn's metadata, e.g. once the
	// chosen action for it is known.
	AmendTurn(ctx context.Context, sessionID, eventID string, patch convlog.Metadata) error

	// Resume rebuilds a session's live state from its recorded log.
	Resume(ctx context.Context, sessionID string) error

	// Close releases resources.
	Close() error
}

// service implements the Service interface.
type service struct {
	extractor *extract.Extractor
	machine   *stage.Machine
	store     *convlog.Logger
	logger    *logging.Logger

	// Telemetry
	tracer         trace.Tracer
	meter          metric.Meter
	turnCounter    metric.Int64Counter
	failureCounter metric.Int64Counter
	logDropCounter metric.Int64Counter
	advanceCounter metric.Int64Counter

	// Per-session turn locks: one in-flight apply+record pair per
	// session, full concurrency across sessions.
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	closedMu sync.RWMutex
	closed   bool
}

// NewService wires the turn pipeline together.
func NewService(extractor *extract.Extractor, machine *stage.Machine, store *convlog.Logger, logger *logging.Logger) (Service, error) {
	if extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if machine == nil {
		return nil, errors.New("stage machine is required")
	}
	if store == nil {
		return nil, errors.New("conversation store is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	s := &service{
		extractor: extractor,
		machine:   machine,
		store:     store,
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
		locks:     make(map[string]*sync.Mutex),
	}
	s.initMetrics(context.Background())
	return s, nil
}

func (s *service) initMetrics(ctx context.Context) {
	var err error

	s.turnCounter, err = s.meter.Int64Counter(
		"profiled.engine.turns_total",
		metric.WithDescription("Total number of processed turns"),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		s.logger.Warn(ctx, "failed to create turn counter", zap.Error(err))
	}

	s.failureCounter, err = s.meter.Int64Counter(
		"profiled.engine.extraction_failures_total",
		metric.WithDescription("Total number of turns where no strategy produced a value"),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		s.logger.Warn(ctx, "failed to create failure counter", zap.Error(err))
	}

	s.logDropCounter, err = s.meter.Int64Counter(
		"profiled.engine.log_appends_dropped_total",
		metric.WithDescription("Total number of failed conversation log appends"),
		metric.WithUnit("{append}"),
	)
	if err != nil {
		s.logger.Warn(ctx, "failed to create log drop counter", zap.Error(err))
	}

	s.advanceCounter, err = s.meter.Int64Counter(
		"profiled.engine.stage_advances_total",
		metric.WithDescription("Total number of stage transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		s.logger.Warn(ctx, "failed to create advance counter", zap.Error(err))
	}
}

func (s *service) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

func (s *service) isClosed() bool {
	s.closedMu.RLock()
	defer s.closedMu.RUnlock()
	return s.closed
}

// StartSession registers the session at the initial stage and logs the
// opening system event.
func (s *service) StartSession(ctx context.Context, sessionID string) error {
	if s.isClosed() {
		return errors.New("service is closed")
	}
	ctx = logging.WithSessionID(ctx, sessionID)
	ctx, span := s.tracer.Start(ctx, "engine.start_session")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID))

	st := s.machine.Snapshot(sessionID)
	_, err := s.store.Record(ctx, sessionID, convlog.Event{
		Stage:   string(st.Stage),
		Sender:  convlog.SenderSystem,
		Content: "session started",
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "session started")
	return nil
}

// ProcessTurn runs one inbound message through extraction, state
// application, and logging. Extraction failures and validation
// rejections are normal outcomes carried in the result, never errors;
// a log append failure degrades the turn but does not fail it.
func (s *service) ProcessTurn(ctx context.Context, req *TurnRequest) (*TurnResult, error) {
	if s.isClosed() {
		return nil, errors.New("service is closed")
	}
	if req == nil || req.SessionID == "" {
		return nil, errors.New("session id is required")
	}

	ctx = logging.WithSessionID(ctx, req.SessionID)
	ctx, span := s.tracer.Start(ctx, "engine.process_turn")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", req.SessionID))

	lock := s.sessionLock(req.SessionID)
	lock.Lock()
	defer lock.Unlock()

	result := &TurnResult{SessionID: req.SessionID}

	before := s.machine.Snapshot(req.SessionID)
	expected := s.machine.ExpectedSlot(req.SessionID)
	span.SetAttributes(
		attribute.String("stage", string(before.Stage)),
		attribute.String("expected_slot", expected),
	)

	// Log the inbound message first so the transcript holds every
	// exchange, including ones nothing could be extracted from.
	userMeta := convlog.Metadata{Intent: req.Intent, Entities: req.Entities}
	userEv, err := s.store.Record(ctx, req.SessionID, convlog.Event{
		Stage:    string(before.Stage),
		Sender:   convlog.SenderUser,
		Content:  req.Utterance,
		Metadata: userMeta,
	})
	if err != nil {
		s.warnStorage(ctx, err, result)
	}
	result.EventID = userEv.ID

	if expected == "" {
		// Nothing is being solicited: this is a stage handoff turn,
		// e.g. the greeting exchange.
		st, advanced := s.machine.Advance(ctx, req.SessionID)
		result.Stage = st
		result.Advanced = advanced
		if advanced {
			s.recordStageAdvance(ctx, req.SessionID, st, result)
		}
		result.ExpectedSlot = s.machine.ExpectedSlot(req.SessionID)
		s.countTurn(ctx, result)
		return result, nil
	}

	res, fail := s.extractor.Extract(ctx, expected, req.Utterance, req.Entities)
	if fail != nil {
		result.Failure = fail
		result.Stage = before.Stage
		result.ExpectedSlot = expected
		if s.failureCounter != nil {
			s.failureCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("slot", expected),
				attribute.Bool("service_unavailable", fail.ServiceUnavailable),
			))
		}
		s.logger.Info(ctx, "extraction failed",
			zap.String("slot", expected),
			zap.String("reason", fail.Reason))
		s.countTurn(ctx, result)
		return result, nil
	}

	applied, err := s.machine.Apply(ctx, req.SessionID, res.Slot, res.Value)
	if err != nil {
		var ve *profile.ValidationError
		if !errors.As(err, &ve) {
			return nil, fmt.Errorf("failed to apply slot %s: %w", res.Slot, err)
		}
		result.Rejection = ve.Reason
		result.Stage = before.Stage
		result.ExpectedSlot = expected
		s.logger.Info(ctx, "value rejected",
			zap.String("slot", res.Slot),
			zap.String("reason", ve.Reason))
		s.countTurn(ctx, result)
		return result, nil
	}

	result.Extraction = res
	result.Stage = applied.Stage
	result.Advanced = applied.Advanced

	// Patch the user event with what was understood, and append the
	// slot mutation as a system event so replay can rebuild the store.
	if err := s.store.UpdateMetadata(ctx, req.SessionID, userEv.ID, convlog.Metadata{
		Confidence: res.Confidence,
		Strategy:   string(res.Strategy),
		Slot:       res.Slot,
	}); err != nil {
		s.warnStorage(ctx, err, result)
	}
	value := res.Value
	if _, err := s.store.Record(ctx, req.SessionID, convlog.Event{
		Stage:   string(applied.Stage),
		Sender:  convlog.SenderSystem,
		Content: fmt.Sprintf("slot %s set", res.Slot),
		Metadata: convlog.Metadata{
			Slot:       res.Slot,
			Value:      &value,
			Confidence: res.Confidence,
			Strategy:   string(res.Strategy),
		},
	}); err != nil {
		s.warnStorage(ctx, err, result)
	}
	if applied.Advanced {
		s.recordStageAdvance(ctx, req.SessionID, applied.Stage, result)
	}

	result.ExpectedSlot = s.machine.ExpectedSlot(req.SessionID)
	s.countTurn(ctx, result)
	return result, nil
}

// RecordBotMessage logs an outbound message at the session's current
// stage.
func (s *service) RecordBotMessage(ctx context.Context, sessionID, content string, meta convlog.Metadata) (convlog.Event, error) {
	if s.isClosed() {
		return convlog.Event{}, errors.New("service is closed")
	}
	ctx = logging.WithSessionID(ctx, sessionID)

	st := s.machine.Snapshot(sessionID)
	return s.store.Record(ctx, sessionID, convlog.Event{
		Stage:    string(st.Stage),
		Sender:   convlog.SenderBot,
		Content:  content,
		Metadata: meta,
	})
}

// AmendTurn patches an earlier event's metadata.
func (s *service) AmendTurn(ctx context.Context, sessionID, eventID string, patch convlog.Metadata) error {
	if s.isClosed() {
		return errors.New("service is closed")
	}
	ctx = logging.WithSessionID(ctx, sessionID)
	return s.store.UpdateMetadata(ctx, sessionID, eventID, patch)
}

// Resume replays the session's log into the live stage machine.
func (s *service) Resume(ctx context.Context, sessionID string) error {
	if s.isClosed() {
		return errors.New("service is closed")
	}
	ctx = logging.WithSessionID(ctx, sessionID)

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	snap, err := s.store.Snapshot(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.machine.Restore(sessionID, stage.State{Stage: snap.Stage, Store: snap.Store}); err != nil {
		return err
	}
	s.logger.Info(ctx, "session resumed",
		zap.String("stage", string(snap.Stage)),
		zap.Int("events", len(snap.Events)))
	return nil
}

// Close marks the service closed and releases the log store.
func (s *service) Close() error {
	s.closedMu.Lock()
	defer s.closedMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.store.Close()
}

func (s *service) recordStageAdvance(ctx context.Context, sessionID string, st stage.Stage, result *TurnResult) {
	if s.advanceCounter != nil {
		s.advanceCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", string(st)),
		))
	}
	if _, err := s.store.Record(ctx, sessionID, convlog.Event{
		Stage:   string(st),
		Sender:  convlog.SenderSystem,
		Content: fmt.Sprintf("stage advanced to %s", st),
	}); err != nil {
		s.warnStorage(ctx, err, result)
	}
}

// warnStorage handles a failed log append: warn, count, mark the turn
// degraded, and carry on so a logging outage never blocks the
// conversation.
func (s *service) warnStorage(ctx context.Context, err error, result *TurnResult) {
	result.LogDegraded = true
	if s.logDropCounter != nil {
		s.logDropCounter.Add(ctx, 1)
	}
	var we *convlog.StorageWriteError
	if errors.As(err, &we) {
		s.logger.Warn(ctx, "log append failed", zap.Error(we))
		return
	}
	s.logger.Warn(ctx, "log append failed", zap.Error(err))
}

func (s *service) countTurn(ctx context.Context, result *TurnResult) {
	if s.turnCounter == nil {
		return
	}
	outcome := "applied"
	switch {
	case result.Failure != nil:
		outcome = "extraction_failed"
	case result.Rejection != "":
		outcome = "rejected"
	case result.Extraction == nil:
		outcome = "handoff"
	}
	s.turnCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", string(result.Stage)),
		attribute.String("outcome", outcome),
	))
}

var _ Service = (*service)(nil)
