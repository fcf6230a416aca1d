package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RunIDKey is the context key for the orchestrated run ID
	RunIDKey ContextKey = "run_id"
	// CaseIDKey is the context key for the case under investigation
	CaseIDKey ContextKey = "case_id"
	// ThreadIDKey is the context key for the conversation thread
	ThreadIDKey ContextKey = "thread_id"
	// RoleKey is the context key for the role executing the current turn
	RoleKey ContextKey = "role"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID  string
	RunID    string
	CaseID   string
	ThreadID string
	Role     string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRunID generates a new run ID
func NewRunID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithCaseID adds a case ID to the context
func WithCaseID(ctx context.Context, caseID string) context.Context {
	return context.WithValue(ctx, CaseIDKey, caseID)
}

// WithThreadID adds a thread ID to the context
func WithThreadID(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, ThreadIDKey, threadID)
}

// WithRole adds the executing role to the context
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, RoleKey, role)
}

func stringValue(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string { return stringValue(ctx, TraceIDKey) }

// GetRunID retrieves the run ID from the context
func GetRunID(ctx context.Context) string { return stringValue(ctx, RunIDKey) }

// GetCaseID retrieves the case ID from the context
func GetCaseID(ctx context.Context) string { return stringValue(ctx, CaseIDKey) }

// GetThreadID retrieves the thread ID from the context
func GetThreadID(ctx context.Context) string { return stringValue(ctx, ThreadIDKey) }

// GetRole retrieves the executing role from the context
func GetRole(ctx context.Context) string { return stringValue(ctx, RoleKey) }

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:  GetTraceID(ctx),
		RunID:    GetRunID(ctx),
		CaseID:   GetCaseID(ctx),
		ThreadID: GetThreadID(ctx),
		Role:     GetRole(ctx),
	}
}

// NewContext creates a new context with tracing information
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.RunID != "" {
		ctx = WithRunID(ctx, tc.RunID)
	}
	if tc.CaseID != "" {
		ctx = WithCaseID(ctx, tc.CaseID)
	}
	if tc.ThreadID != "" {
		ctx = WithThreadID(ctx, tc.ThreadID)
	}
	if tc.Role != "" {
		ctx = WithRole(ctx, tc.Role)
	}
	return ctx
}

// NewRunContext starts a run scope for a case thread, keeping any trace ID already present
func NewRunContext(ctx context.Context, caseID, threadID string) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	ctx = WithRunID(ctx, NewRunID())
	ctx = WithCaseID(ctx, caseID)
	return WithThreadID(ctx, threadID)
}
