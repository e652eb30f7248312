package api

import (
	"context"

	"github.com/google/uuid"
)

type contextKey int

const (
	contextKeyUserID contextKey = iota
	contextKeyRequestID
)

// SetUserID returns a new context carrying the authenticated user's id.
func SetUserID(ctx context.Context, uid int64) context.Context {
	return context.WithValue(ctx, contextKeyUserID, uid)
}

// UserIDFromContext extracts the authenticated user's id. ok is false when
// the request was not authenticated.
func UserIDFromContext(ctx context.Context) (uid int64, ok bool) {
	uid, ok = ctx.Value(contextKeyUserID).(int64)
	return uid, ok
}

// SetRequestID returns a new context with the request ID attached.
func SetRequestID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(contextKeyRequestID).(uuid.UUID)
	return id
}
