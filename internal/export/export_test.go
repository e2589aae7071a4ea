package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/profiled/internal/convlog"
	"github.com/fyrsmithlabs/profiled/internal/logging"
	"github.com/fyrsmithlabs/profiled/internal/profile"
	"github.com/fyrsmithlabs/profiled/internal/stage"
)

func newTestExporter(t *testing.T) (*Exporter, *convlog.Logger) {
	t.Helper()
	store, err := convlog.NewLogger(t.TempDir(), logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, logging.Nop()), store
}

func seedSession(t *testing.T, store *convlog.Logger, sessionID string) {
	t.Helper()
	ctx := context.Background()

	age := profile.IntValue(25)
	events := []convlog.Event{
		{Stage: string(stage.Greeting), Sender: convlog.SenderUser, Content: "hi there"},
		{Stage: string(stage.PersonalData), Sender: convlog.SenderBot, Content: "How old are you?"},
		{
			Stage: string(stage.PersonalData), Sender: convlog.SenderUser, Content: "I am 25 years old",
			Metadata: convlog.Metadata{Intent: "inform", Confidence: 0.8, Strategy: "pattern"},
		},
		{
			Stage: string(stage.PersonalData), Sender: convlog.SenderSystem, Content: "slot age set",
			Metadata: convlog.Metadata{Slot: "age", Value: &age, Action: "collect_age"},
		},
	}
	for _, ev := range events {
		_, err := store.Record(ctx, sessionID, ev)
		require.NoError(t, err)
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats() {
		got, err := ParseFormat(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseFormat("yaml")
	assert.Error(t, err)
}

func TestExporter_List(t *testing.T) {
	e, store := newTestExporter(t)

	ids, err := e.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)

	seedSession(t, store, "sess-1")
	seedSession(t, store, "sess-2")

	ids, err = e.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-1", "sess-2"}, ids)
}

func TestExporter_Structured(t *testing.T) {
	e, store := newTestExporter(t)
	seedSession(t, store, "sess-1")

	var buf bytes.Buffer
	require.NoError(t, e.Export(context.Background(), "sess-1", FormatStructured, &buf))

	var view struct {
		SessionID string                   `json:"session_id"`
		Stage     string                   `json:"stage"`
		Slots     map[string]profile.Value `json:"slots"`
		Events    []convlog.Event          `json:"events"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &view))

	assert.Equal(t, "sess-1", view.SessionID)
	assert.Equal(t, string(stage.PersonalData), view.Stage)
	assert.Equal(t, profile.IntValue(25), view.Slots["age"])
	require.Len(t, view.Events, 4)
	assert.Equal(t, "inform", view.Events[2].Metadata.Intent)
	assert.Equal(t, 0.8, view.Events[2].Metadata.Confidence)
}

func TestExporter_FlatText(t *testing.T) {
	e, store := newTestExporter(t)
	seedSession(t, store, "sess-1")

	var buf bytes.Buffer
	require.NoError(t, e.Export(context.Background(), "sess-1", FormatFlatText, &buf))

	out := buf.String()
	assert.Contains(t, out, "Session sess-1")
	assert.Contains(t, out, "user: hi there")
	assert.Contains(t, out, "bot: How old are you?")

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 6) // header, blank, four events
}

// Structured and tabular exports of the same session must agree on the
// timestamp, sender, and content of every event.
func TestExporter_StructuredTabularAgree(t *testing.T) {
	e, store := newTestExporter(t)
	seedSession(t, store, "sess-1")

	var structured, tabular bytes.Buffer
	require.NoError(t, e.Export(context.Background(), "sess-1", FormatStructured, &structured))
	require.NoError(t, e.Export(context.Background(), "sess-1", FormatTabular, &tabular))

	var view struct {
		Events []convlog.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(structured.Bytes(), &view))

	rows, err := csv.NewReader(&tabular).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(view.Events)+1)
	assert.Equal(t, tabularHeader, rows[0])

	for i, ev := range view.Events {
		row := rows[i+1]
		ts, err := time.Parse(time.RFC3339Nano, row[0])
		require.NoError(t, err)
		assert.True(t, ts.Equal(ev.Timestamp), "event %d timestamp", i)
		assert.Equal(t, string(ev.Sender), row[2], "event %d sender", i)
		assert.Equal(t, ev.Content, row[3], "event %d content", i)
	}
}

func TestExporter_TabularFlattensMetadata(t *testing.T) {
	e, store := newTestExporter(t)
	seedSession(t, store, "sess-1")

	var buf bytes.Buffer
	require.NoError(t, e.Export(context.Background(), "sess-1", FormatTabular, &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	// The user inform turn.
	assert.Equal(t, "inform", rows[3][4])
	assert.Equal(t, "0.8", rows[3][6])
	assert.Equal(t, "pattern", rows[3][7])
	// The system slot mutation.
	assert.Equal(t, "age", rows[4][8])
	assert.Equal(t, "25", rows[4][9])
}

func TestExporter_UnknownSessionWritesNothing(t *testing.T) {
	e, _ := newTestExporter(t)

	var buf bytes.Buffer
	err := e.Export(context.Background(), "ghost", FormatStructured, &buf)

	var nf *convlog.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Zero(t, buf.Len(), "no partial output on a failed export")
}

func TestExporter_UnknownFormat(t *testing.T) {
	e, store := newTestExporter(t)
	seedSession(t, store, "sess-1")

	var buf bytes.Buffer
	err := e.Export(context.Background(), "sess-1", Format("yaml"), &buf)
	require.Error(t, err)
	assert.Zero(t, buf.Len())
}
