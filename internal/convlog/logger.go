package convlog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/profiled/internal/logging"
	"github.com/fyrsmithlabs/profiled/internal/profile"
	"github.com/fyrsmithlabs/profiled/internal/stage"
)

const logExt = ".jsonl"

// Session identifiers double as file names, so they are restricted to
// a filesystem-safe alphabet.
var sessionIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// Logger persists one append-only JSONL file per session under a root
// directory. Appends for the same session are serialized; distinct
// sessions write concurrently to their own files.
type Logger struct {
	dir    string
	logger *logging.Logger

	mu    sync.Mutex
	files map[string]*sessionFile
}

type sessionFile struct {
	mu sync.Mutex
	f  *os.File
}

// NewLogger creates the store, making the root directory if needed.
func NewLogger(dir string, logger *logging.Logger) (*Logger, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &Logger{
		dir:    dir,
		logger: logger,
		files:  make(map[string]*sessionFile),
	}, nil
}

func (l *Logger) path(sessionID string) string {
	return filepath.Join(l.dir, sessionID+logExt)
}

// file returns the open append handle for a session, creating the file
// on first use.
func (l *Logger) file(sessionID string) (*sessionFile, error) {
	if !sessionIDRe.MatchString(sessionID) {
		return nil, fmt.Errorf("invalid session id %q", sessionID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if sf, ok := l.files[sessionID]; ok {
		return sf, nil
	}

	f, err := os.OpenFile(l.path(sessionID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	sf := &sessionFile{f: f}
	l.files[sessionID] = sf
	return sf, nil
}

// append writes one record as a single line. The line is written in one
// call on an O_APPEND handle, so a crash leaves at most a torn final
// line, which readers discard.
func (l *Logger) append(sessionID string, rec record) error {
	sf, err := l.file(sessionID)
	if err != nil {
		return &StorageWriteError{SessionID: sessionID, Err: err}
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return &StorageWriteError{SessionID: sessionID, Err: err}
	}
	line = append(line, '\n')

	sf.mu.Lock()
	defer sf.mu.Unlock()
	if _, err := sf.f.Write(line); err != nil {
		return &StorageWriteError{SessionID: sessionID, Err: err}
	}
	return nil
}

// Record appends an event to the session's log. A missing ID or
// timestamp is filled in. Returns the event as stored.
func (l *Logger) Record(ctx context.Context, sessionID string, ev Event) (Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	if err := l.append(sessionID, record{Type: "event", Event: &ev}); err != nil {
		return ev, err
	}
	l.logger.Debug(ctx, "event recorded",
		zap.String("event.id", ev.ID),
		zap.String("sender", string(ev.Sender)),
		zap.String("stage", ev.Stage))
	return ev, nil
}

// UpdateMetadata amends an earlier event's metadata, appending a patch
// record rather than rewriting the event in place. The amendment shows
// up folded into the event on the next snapshot. Amendments are
// accepted at any point in the session's life, including after it has
// reached the terminal stage.
func (l *Logger) UpdateMetadata(ctx context.Context, sessionID, eventID string, patch Metadata) error {
	if eventID == "" {
		return fmt.Errorf("event reference required")
	}
	if err := l.append(sessionID, record{Type: "patch", Ref: eventID, Metadata: &patch}); err != nil {
		return err
	}
	l.logger.Debug(ctx, "event metadata patched", zap.String("event.id", eventID))
	return nil
}

// Snapshot replays the session's log: events in append order with
// patches folded in, plus the slot store and stage derived from the
// recorded mutations. A torn final line from an interrupted append is
// ignored; everything before it is returned intact.
func (l *Logger) Snapshot(ctx context.Context, sessionID string) (*Snapshot, error) {
	if !sessionIDRe.MatchString(sessionID) {
		return nil, &NotFoundError{SessionID: sessionID}
	}

	// Serialize against an in-flight append so a reader never sees a
	// half-written line from a live writer.
	if sf, ok := l.openFile(sessionID); ok {
		sf.mu.Lock()
		defer sf.mu.Unlock()
	}

	f, err := os.Open(l.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{SessionID: sessionID}
		}
		return nil, fmt.Errorf("failed to open session log: %w", err)
	}
	defer f.Close()

	snap := &Snapshot{
		SessionID: sessionID,
		Store:     make(profile.Store),
		Stage:     stage.Order[0],
	}
	index := make(map[string]int)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			// Torn tail from an interrupted append.
			l.logger.Warn(ctx, "discarding unparseable log line",
				zap.String("session.id", sessionID),
				zap.Error(err))
			continue
		}
		switch rec.Type {
		case "event":
			if rec.Event == nil {
				continue
			}
			index[rec.Event.ID] = len(snap.Events)
			snap.Events = append(snap.Events, *rec.Event)
		case "patch":
			if rec.Metadata == nil {
				continue
			}
			i, ok := index[rec.Ref]
			if !ok {
				l.logger.Warn(ctx, "patch references unknown event",
					zap.String("session.id", sessionID),
					zap.String("event.id", rec.Ref))
				continue
			}
			snap.Events[i].Metadata = snap.Events[i].Metadata.merge(*rec.Metadata)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session log: %w", err)
	}

	for _, ev := range snap.Events {
		if ev.Sender == SenderSystem && ev.Metadata.Slot != "" && ev.Metadata.Value != nil {
			snap.Store.Set(ev.Metadata.Slot, *ev.Metadata.Value)
		}
		if s := stage.Stage(ev.Stage); s.Valid() && s.Index() > snap.Stage.Index() {
			snap.Stage = s
		}
	}
	return snap, nil
}

func (l *Logger) openFile(sessionID string) (*sessionFile, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sf, ok := l.files[sessionID]
	return sf, ok
}

// Sessions lists every session with a recorded log, sorted.
func (l *Logger) Sessions() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list log directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), logExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), logExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// Close releases every open file handle.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for id, sf := range l.files {
		sf.mu.Lock()
		if err := sf.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		sf.mu.Unlock()
		delete(l.files, id)
	}
	return firstErr
}
