package tracing

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PropagateToTurn scopes a context to one role's turn. The trace, run, case and
// thread identifiers are kept.
func PropagateToTurn(ctx context.Context, role string) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	return WithRole(ctx, role)
}

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	lc := logger.With()
	if tc.TraceID != "" {
		lc = lc.Str("trace_id", tc.TraceID)
	}
	if tc.RunID != "" {
		lc = lc.Str("run_id", tc.RunID)
	}
	if tc.CaseID != "" {
		lc = lc.Str("case_id", tc.CaseID)
	}
	if tc.ThreadID != "" {
		lc = lc.Str("thread_id", tc.ThreadID)
	}
	if tc.Role != "" {
		lc = lc.Str("role", tc.Role)
	}

	return lc.Logger()
}

// LoggerFromContext creates a logger with tracing context from the given context
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	return PropagateToLogger(ctx, baseLogger)
}

// MergeContext copies tracing values from source into target where target has none
func MergeContext(target, source context.Context) context.Context {
	tc := FromContext(source)

	if tc.TraceID != "" && GetTraceID(target) == "" {
		target = WithTraceID(target, tc.TraceID)
	}
	if tc.RunID != "" && GetRunID(target) == "" {
		target = WithRunID(target, tc.RunID)
	}
	if tc.CaseID != "" && GetCaseID(target) == "" {
		target = WithCaseID(target, tc.CaseID)
	}
	if tc.ThreadID != "" && GetThreadID(target) == "" {
		target = WithThreadID(target, tc.ThreadID)
	}

	return target
}

// FailSpan records err on span and marks it as errored
func FailSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
