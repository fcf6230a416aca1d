package observability

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuditEvent is one structured line in the case audit trail
type AuditEvent struct {
	Type      string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor,omitempty"`
	CaseID    string         `json:"case_id,omitempty"`
	ThreadID  string         `json:"thread_id,omitempty"`
	Action    string         `json:"action"` // e.g. "run_started", "run_aborted"
	Status    string         `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
}

// AuditLogger writes audit events as JSON lines and mirrors them onto spans
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
}

var (
	auditMu   sync.Mutex
	auditInst *AuditLogger
)

// NewAuditLogger creates an audit logger writing to w
func NewAuditLogger(w io.Writer) *AuditLogger {
	return &AuditLogger{
		logger: zerolog.New(w).With().Timestamp().Logger(),
	}
}

// GetAuditLogger returns the process audit logger, defaulting to stderr
func GetAuditLogger() *AuditLogger {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditInst == nil {
		auditInst = NewAuditLogger(os.Stderr)
	}
	return auditInst
}

// SetAuditLogger replaces the process audit logger
func SetAuditLogger(a *AuditLogger) {
	auditMu.Lock()
	defer auditMu.Unlock()
	auditInst = a
}

// InitAuditLogger points the process audit logger at a file
func InitAuditLogger(path string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}

	a := NewAuditLogger(file)
	a.file = file
	SetAuditLogger(a)
	return nil
}

// Record emits an audit event to the log and, when a span is active, as a span event
func (a *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		event.TraceID = span.SpanContext().TraceID().String()
		span.AddEvent(event.Action, trace.WithAttributes(
			attribute.String("audit.type", event.Type),
			attribute.String("audit.status", event.Status),
			attribute.String("audit.case_id", event.CaseID),
		))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("type", event.Type).
		Str("actor", event.Actor).
		Str("case_id", event.CaseID).
		Str("thread_id", event.ThreadID).
		Str("action", event.Action).
		Str("status", event.Status).
		Time("at", event.Timestamp)
	if event.TraceID != "" {
		entry.Str("trace_id", event.TraceID)
	}
	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// Close closes the audit file, if any
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

// RecordRunAudit records a run lifecycle event
func RecordRunAudit(ctx context.Context, action, actor, caseID, threadID, status string, metadata map[string]any) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     "run",
		Actor:    actor,
		CaseID:   caseID,
		ThreadID: threadID,
		Action:   action,
		Status:   status,
		Metadata: metadata,
	})
}

// RecordGateAudit records a QA gating decision such as privilege review
func RecordGateAudit(ctx context.Context, gate, caseID, threadID string, metadata map[string]any) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     "gate",
		CaseID:   caseID,
		ThreadID: threadID,
		Action:   gate,
		Status:   "raised",
		Metadata: metadata,
	})
}

// RecordPolicyAudit records a policy reload
func RecordPolicyAudit(ctx context.Context, source, status string, metadata map[string]any) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     "policy",
		Action:   "reload:" + source,
		Status:   status,
		Metadata: metadata,
	})
}
