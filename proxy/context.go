package proxy

import (
	"context"

	"github.com/google/uuid"

	"github.com/ImogeneOctaviap794/Toolify-code/internal"
)

// withRequestID adds a request ID to the context (wraps internal function)
func withRequestID(ctx context.Context, requestID string) context.Context {
	return internal.WithRequestID(ctx, requestID)
}

// GetRequestID retrieves the request ID from context (wraps internal function)
func GetRequestID(ctx context.Context) string {
	return internal.GetRequestID(ctx)
}

// generateRequestID creates a unique request ID, prefixed for readability
// in logs alongside tool-call IDs (toolmap.NewClientID uses "call_").
func generateRequestID() string {
	return "req_" + uuid.New().String()
}
