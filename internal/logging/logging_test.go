package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: *NewDefaultConfig()},
		{name: "console debug", cfg: Config{Level: "debug", Format: "console"}},
		{name: "bad level", cfg: Config{Level: "loud", Format: "json"}, wantErr: true},
		{name: "bad format", cfg: Config{Level: "info", Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, logger.Underlying())

	_, err = NewLogger(&Config{Level: "nope", Format: "json"})
	assert.Error(t, err)
}

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ContextFields(ctx))

	ctx = WithSessionID(ctx, "sess-1")
	ctx = WithTurnID(ctx, "turn-9")

	fields := ContextFields(ctx)
	require.Len(t, fields, 2)
	assert.Equal(t, "session.id", fields[0].Key)
	assert.Equal(t, "sess-1", fields[0].String)
	assert.Equal(t, "turn.id", fields[1].Key)
	assert.Equal(t, "turn-9", fields[1].String)
}

func TestLogger_CarriesContextFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := FromZap(zap.New(core))

	ctx := WithSessionID(context.Background(), "sess-42")
	logger.Info(ctx, "turn handled", zap.String("slot", "age"))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "sess-42", fields["session.id"])
	assert.Equal(t, "age", fields["slot"])
}

func TestFromContext(t *testing.T) {
	// Missing logger falls back to a usable nop.
	l := FromContext(context.Background())
	require.NotNil(t, l)
	l.Info(context.Background(), "dropped")

	want := Nop()
	ctx := WithLogger(context.Background(), want)
	assert.Same(t, want, FromContext(ctx))
}
