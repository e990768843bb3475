package common

import "context"

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyBatchID   contextKey = "batch_id"
	ContextKeyTaskID    contextKey = "task_id"
)

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

// WithTask tags ctx with the batch and task being processed.
func WithTask(ctx context.Context, batchID, taskID string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyBatchID, batchID)
	return context.WithValue(ctx, ContextKeyTaskID, taskID)
}

// TaskFromContext returns the batch and task ids set by WithTask.
func TaskFromContext(ctx context.Context) (batchID, taskID string) {
	batchID, _ = ctx.Value(ContextKeyBatchID).(string)
	taskID, _ = ctx.Value(ContextKeyTaskID).(string)
	return batchID, taskID
}
