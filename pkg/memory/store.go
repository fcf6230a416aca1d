package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// SectionPlan holds the merged strategy plan
	SectionPlan = "plan"
	// SectionArtifacts holds drafted co-counsel artifacts
	SectionArtifacts = "artifacts"
)

// ErrInvalidCaseID is returned for case ids that cannot be used as storage keys
var ErrInvalidCaseID = errors.New("invalid case id")

// Entry is one line of the case conversation transcript
type Entry struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TurnRecord is the memory-side view of an executed turn
type TurnRecord struct {
	ID          string         `json:"id"`
	Role        string         `json:"role"`
	Action      string         `json:"action"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	DurationMS  float64        `json:"duration_ms"`
	Annotations map[string]any `json:"annotations,omitempty"`
}

// Store is the case working memory consumed by the session runner
type Store interface {
	AppendConversation(ctx context.Context, entry Entry) error
	RecordTurn(ctx context.Context, turn TurnRecord) error
	Merge(ctx context.Context, section string, values map[string]any) error
	AddNote(ctx context.Context, note string) error
	MarkUpdated()
	Persist(ctx context.Context) error
	Snapshot() map[string]any
}

// Provider opens the store for a case
type Provider interface {
	Open(ctx context.Context, caseID string) (Store, error)
	Close() error
}

// ValidateCaseID rejects ids that could escape a storage directory
func ValidateCaseID(caseID string) error {
	if caseID == "" {
		return fmt.Errorf("%w: case id cannot be empty", ErrInvalidCaseID)
	}
	if strings.Contains(caseID, "..") {
		return fmt.Errorf("%w: case id cannot contain '..'", ErrInvalidCaseID)
	}
	if strings.ContainsAny(caseID, "/\\\x00") {
		return fmt.Errorf("%w: case id cannot contain path separators or null bytes", ErrInvalidCaseID)
	}
	return nil
}

// workingSet is the state shared by every backend
type workingSet struct {
	CaseID       string                    `json:"case_id"`
	Sections     map[string]map[string]any `json:"sections"`
	Notes        []string                  `json:"notes"`
	Conversation []Entry                   `json:"-"`
	Turns        []TurnRecord              `json:"turns"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

func newWorkingSet(caseID string) *workingSet {
	return &workingSet{
		CaseID:   caseID,
		Sections: make(map[string]map[string]any),
		Notes:    []string{},
		Turns:    []TurnRecord{},
	}
}

func (w *workingSet) appendConversation(entry Entry) error {
	if entry.Role == "" {
		return fmt.Errorf("conversation entry role cannot be empty")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.Metadata = cloneMap(entry.Metadata)
	w.Conversation = append(w.Conversation, entry)
	return nil
}

func (w *workingSet) recordTurn(turn TurnRecord) {
	turn.Annotations = cloneMap(turn.Annotations)
	w.Turns = append(w.Turns, turn)
}

func (w *workingSet) merge(section string, values map[string]any) error {
	if section == "" {
		return fmt.Errorf("memory section cannot be empty")
	}
	dst, ok := w.Sections[section]
	if !ok {
		dst = make(map[string]any, len(values))
		w.Sections[section] = dst
	}
	for k, v := range values {
		dst[k] = cloneValue(v)
	}
	return nil
}

func (w *workingSet) snapshot() map[string]any {
	sections := make([]string, 0, len(w.Sections))
	for name := range w.Sections {
		sections = append(sections, name)
	}
	sort.Strings(sections)

	snap := map[string]any{
		"case_id": w.CaseID,
		"notes":   append([]string(nil), w.Notes...),
		"turns":   len(w.Turns),
	}
	for _, name := range sections {
		snap[name] = cloneMap(w.Sections[name])
	}

	conversation := make([]map[string]any, 0, len(w.Conversation))
	for _, e := range w.Conversation {
		item := map[string]any{
			"role":      e.Role,
			"content":   e.Content,
			"timestamp": e.Timestamp,
		}
		if len(e.Metadata) > 0 {
			item["metadata"] = cloneMap(e.Metadata)
		}
		conversation = append(conversation, item)
	}
	snap["conversation"] = conversation
	if !w.UpdatedAt.IsZero() {
		snap["updated_at"] = w.UpdatedAt
	}
	return snap
}

// InMemory keeps case memory in process; Persist is a no-op
type InMemory struct {
	mu sync.Mutex
	ws *workingSet
}

// NewInMemory creates an in-process store for a case
func NewInMemory(caseID string) *InMemory {
	return &InMemory{ws: newWorkingSet(caseID)}
}

func (s *InMemory) AppendConversation(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.appendConversation(entry)
}

func (s *InMemory) RecordTurn(_ context.Context, turn TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ws.recordTurn(turn)
	return nil
}

func (s *InMemory) Merge(_ context.Context, section string, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.merge(section, values)
}

func (s *InMemory) AddNote(_ context.Context, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ws.Notes = append(s.ws.Notes, note)
	return nil
}

func (s *InMemory) MarkUpdated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ws.UpdatedAt = time.Now().UTC()
}

func (s *InMemory) Persist(context.Context) error { return nil }

func (s *InMemory) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.snapshot()
}

// InMemoryProvider hands out one in-process store per case
type InMemoryProvider struct {
	mu     sync.Mutex
	stores map[string]*InMemory
}

// NewInMemoryProvider creates an empty provider
func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{stores: make(map[string]*InMemory)}
}

func (p *InMemoryProvider) Open(_ context.Context, caseID string) (Store, error) {
	if err := ValidateCaseID(caseID); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.stores[caseID]; ok {
		return s, nil
	}
	s := NewInMemory(caseID)
	p.stores[caseID] = s
	return s, nil
}

func (p *InMemoryProvider) Close() error { return nil }

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return val
	}
}
