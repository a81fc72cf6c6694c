package common

import (
	"context"

	"github.com/google/uuid"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyOrgID     contextKey = "org_id"
	ContextKeyUserID    contextKey = "user_id"
)

// AuthContext carries the verified tenant identity for one request. It is
// produced by the identity-verifier middleware; how the session token is
// verified is outside this module.
type AuthContext struct {
	OrgID  uuid.UUID
	UserID uuid.UUID
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}
