package orchestrator

import (
	"context"
	"fmt"

	"github.com/ahouse2/co-counsel-nexus/pkg/memory"
)

// CaseThreadMemory binds a thread to the case memory store for one run
type CaseThreadMemory struct {
	thread *AgentThread
	store  memory.Store
	logger Logger
}

// NewCaseThreadMemory wraps thread and store. A nil store falls back to in-process memory.
func NewCaseThreadMemory(thread *AgentThread, store memory.Store, logger Logger) *CaseThreadMemory {
	if store == nil {
		store = memory.NewInMemory(thread.CaseID)
	}
	return &CaseThreadMemory{thread: thread, store: store, logger: logger}
}

// Thread returns the bound thread
func (m *CaseThreadMemory) Thread() *AgentThread {
	return m.thread
}

// AppendConversation adds a transcript line
func (m *CaseThreadMemory) AppendConversation(ctx context.Context, role, content string, metadata map[string]any) {
	err := m.store.AppendConversation(ctx, memory.Entry{
		Role:     role,
		Content:  content,
		Metadata: copyMap(metadata),
	})
	m.warn("append conversation", err)
}

// RecordTurn mirrors an executed turn into memory
func (m *CaseThreadMemory) RecordTurn(ctx context.Context, turn AgentTurn) {
	err := m.store.RecordTurn(ctx, memory.TurnRecord{
		ID:          turn.ID,
		Role:        string(turn.Role),
		Action:      turn.Action,
		StartedAt:   turn.StartedAt,
		CompletedAt: turn.CompletedAt,
		DurationMS:  turn.DurationMS(),
		Annotations: copyMap(turn.Annotations),
	})
	m.warn("record turn", err)
}

// MergePlan merges a strategy payload into the plan section
func (m *CaseThreadMemory) MergePlan(ctx context.Context, plan map[string]any) {
	m.warn("merge plan", m.store.Merge(ctx, memory.SectionPlan, plan))
}

// MergeArtifacts merges co-counsel output into the artifacts section
func (m *CaseThreadMemory) MergeArtifacts(ctx context.Context, artifacts map[string]any) {
	m.warn("merge artifacts", m.store.Merge(ctx, memory.SectionArtifacts, artifacts))
}

// AddNote appends a free-text note to case memory
func (m *CaseThreadMemory) AddNote(ctx context.Context, note string) {
	m.warn("add note", m.store.AddNote(ctx, note))
}

// Plan returns the current plan section
func (m *CaseThreadMemory) Plan() map[string]any {
	plan, _ := m.store.Snapshot()[memory.SectionPlan].(map[string]any)
	return plan
}

// MarkUpdated stamps the store as modified
func (m *CaseThreadMemory) MarkUpdated() {
	m.store.MarkUpdated()
}

// Persist flushes the backing store
func (m *CaseThreadMemory) Persist(ctx context.Context) error {
	if err := m.store.Persist(ctx); err != nil {
		return fmt.Errorf("failed to persist case memory: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the working memory
func (m *CaseThreadMemory) Snapshot() map[string]any {
	return m.store.Snapshot()
}

func (m *CaseThreadMemory) warn(op string, err error) {
	if err != nil && m.logger != nil {
		m.logger.Error("Case memory "+op+" failed", err, "case_id", m.thread.CaseID)
	}
}
