package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const (
	sessionIDKey ctxKey = "session_id"
	projectIDKey ctxKey = "project_id"
	requestIDKey ctxKey = "request_id"
)

// WithSession stores the review session and its project in the context.
func WithSession(ctx context.Context, sessionID string, projectID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	return context.WithValue(ctx, projectIDKey, projectID)
}

// SessionIDFromCtx extracts the review session ID from the context.
// Returns "" and false if the value is missing or empty.
func SessionIDFromCtx(ctx context.Context) (string, bool) {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id, id != ""
}

// ProjectIDFromCtx extracts the project of the review session.
// Returns uuid.Nil and false if the value is missing, nil UUID, or wrong type.
func ProjectIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(projectIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromCtx extracts the request ID from the context.
// Returns an empty string if absent.
func RequestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
