package logging

import (
	"context"

	"go.uber.org/zap"
)

type sessionCtxKey struct{}
type turnCtxKey struct{}
type loggerCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 2)
	if sessionID := SessionIDFromContext(ctx); sessionID != "" {
		fields = append(fields, zap.String("session.id", sessionID))
	}
	if turnID := TurnIDFromContext(ctx); turnID != "" {
		fields = append(fields, zap.String("turn.id", turnID))
	}
	return fields
}

// WithSessionID adds the session identifier to the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, sessionID)
}

// SessionIDFromContext extracts the session identifier, or "".
func SessionIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(sessionCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithTurnID adds the turn identifier to the context.
func WithTurnID(ctx context.Context, turnID string) context.Context {
	return context.WithValue(ctx, turnCtxKey{}, turnID)
}

// TurnIDFromContext extracts the turn identifier, or "".
func TurnIDFromContext(ctx context.Context) string {
	if t, ok := ctx.Value(turnCtxKey{}).(string); ok {
		return t
	}
	return ""
}

// WithLogger stores the logger in the context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves the logger from the context, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return Nop()
}
