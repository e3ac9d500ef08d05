package logging

import (
	"context"

	"github.com/google/uuid"
)

type correlationIDKey struct{}
type nodeIDKey struct{}

// WithCorrelationID stores the provided correlation identifier inside the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// GetCorrelationID retrieves the correlation identifier from the context, returning
// an empty string when none is present.
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GenerateCorrelationID creates a new correlation identifier suitable for run tracing.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// WithNodeID scopes the context to the node currently executing, so log
// entries and metrics emitted underneath are automatically attributed.
func WithNodeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, nodeIDKey{}, id)
}

// NodeIDFromContext returns the current node id, or "" if none is scoped.
func NodeIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(nodeIDKey{}).(string); ok {
		return id
	}
	return ""
}
