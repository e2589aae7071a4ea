// Package export renders recorded conversations into alternate views.
// It is strictly read-only over the conversation store: structured JSON
// keeps full fidelity, flat text is a human-readable transcript, and
// tabular flattens each event to one CSV row.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/profiled/internal/convlog"
	"github.com/fyrsmithlabs/profiled/internal/logging"
	"github.com/fyrsmithlabs/profiled/internal/profile"
)

// Format selects an export rendering.
type Format string

const (
	FormatStructured Format = "structured"
	FormatFlatText   Format = "flat-text"
	FormatTabular    Format = "tabular"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatStructured, FormatFlatText, FormatTabular}
}

// ParseFormat validates a format name from the command line.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatStructured, FormatFlatText, FormatTabular:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown format %q (structured, flat-text, tabular)", s)
}

// Exporter projects session logs into the export formats.
type Exporter struct {
	store  *convlog.Logger
	logger *logging.Logger
}

// New creates an exporter over the conversation store.
func New(store *convlog.Logger, logger *logging.Logger) *Exporter {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Exporter{store: store, logger: logger}
}

// List returns every known session identifier.
func (e *Exporter) List(ctx context.Context) ([]string, error) {
	return e.store.Sessions()
}

// Export renders the session in the given format. The rendering is
// buffered and written in one piece, so an unknown session or a render
// failure leaves the output target untouched.
func (e *Exporter) Export(ctx context.Context, sessionID string, format Format, w io.Writer) error {
	snap, err := e.store.Snapshot(ctx, sessionID)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	switch format {
	case FormatStructured:
		err = renderStructured(&buf, snap)
	case FormatFlatText:
		err = renderFlatText(&buf, snap)
	case FormatTabular:
		err = renderTabular(&buf, snap)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return fmt.Errorf("failed to render session %s: %w", sessionID, err)
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	e.logger.Debug(ctx, "session exported",
		zap.String("format", string(format)),
		zap.Int("events", len(snap.Events)))
	return nil
}

// structuredView is the full-fidelity JSON document.
type structuredView struct {
	SessionID string                   `json:"session_id"`
	Stage     string                   `json:"stage"`
	Slots     map[string]profile.Value `json:"slots"`
	Events    []convlog.Event          `json:"events"`
}

func renderStructured(buf *bytes.Buffer, snap *convlog.Snapshot) error {
	view := structuredView{
		SessionID: snap.SessionID,
		Stage:     string(snap.Stage),
		Slots:     snap.Store,
		Events:    snap.Events,
	}
	enc := json.NewEncoder(buf)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func renderFlatText(buf *bytes.Buffer, snap *convlog.Snapshot) error {
	fmt.Fprintf(buf, "Session %s (stage: %s, %d events)\n\n", snap.SessionID, snap.Stage, len(snap.Events))
	for _, ev := range snap.Events {
		fmt.Fprintf(buf, "%s [%s] %s: %s",
			ev.Timestamp.Format(time.RFC3339), ev.Stage, ev.Sender, ev.Content)
		if ev.Metadata.Intent != "" {
			fmt.Fprintf(buf, " [intent: %s]", ev.Metadata.Intent)
		}
		if ev.Metadata.Action != "" {
			fmt.Fprintf(buf, " [action: %s]", ev.Metadata.Action)
		}
		buf.WriteByte('\n')
	}
	return nil
}

// tabularHeader defines the flattened columns. Nested metadata the
// table cannot hold, like the entity list, is dropped; timestamp,
// sender, and content always survive.
var tabularHeader = []string{
	"timestamp", "stage", "sender", "content",
	"intent", "action", "confidence", "strategy", "slot", "value",
}

func renderTabular(buf *bytes.Buffer, snap *convlog.Snapshot) error {
	w := csv.NewWriter(buf)
	if err := w.Write(tabularHeader); err != nil {
		return err
	}
	for _, ev := range snap.Events {
		confidence := ""
		if ev.Metadata.Confidence != 0 {
			confidence = strconv.FormatFloat(ev.Metadata.Confidence, 'f', -1, 64)
		}
		value := ""
		if ev.Metadata.Value != nil {
			value = ev.Metadata.Value.String()
		}
		row := []string{
			ev.Timestamp.Format(time.RFC3339Nano),
			ev.Stage,
			string(ev.Sender),
			ev.Content,
			ev.Metadata.Intent,
			ev.Metadata.Action,
			confidence,
			ev.Metadata.Strategy,
			ev.Metadata.Slot,
			value,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
