package orchestrator

import (
	"math"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// AgentRole is the lowercase key used for graph lookups
type AgentRole string

const (
	RoleStrategy  AgentRole = "strategy"  // Plans the investigation
	RoleIngestion AgentRole = "ingestion" // Pulls case documents into the working set
	RoleResearch  AgentRole = "research"  // Produces the answer and its citations
	RoleForensics AgentRole = "forensics" // Authenticity and financial analysis
	RoleCoCounsel AgentRole = "cocounsel" // Drafts artifacts from the findings
	RoleQA        AgentRole = "qa"        // Scores the run and gates privilege review
)

// ThreadStatus is the lifecycle state of an AgentThread
type ThreadStatus string

const (
	StatusPending              ThreadStatus = "pending"
	StatusSucceeded            ThreadStatus = "succeeded"
	StatusDegraded             ThreadStatus = "degraded"
	StatusNeedsPrivilegeReview ThreadStatus = "needs_privilege_review"
)

// AgentTurn records one execution of a role's tool
type AgentTurn struct {
	ID          string             `json:"id"`
	Role        AgentRole          `json:"role"`
	Action      string             `json:"action"`
	Input       map[string]any     `json:"input,omitempty"`
	Output      map[string]any     `json:"output,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Annotations map[string]any     `json:"annotations,omitempty"`
}

// NewTurn creates a turn stamped with a fresh id and start time
func NewTurn(role AgentRole, action string, input map[string]any) AgentTurn {
	return AgentTurn{
		ID:          newTurnID(),
		Role:        role,
		Action:      action,
		Input:       copyMap(input),
		StartedAt:   time.Now().UTC(),
		Metrics:     make(map[string]float64),
		Annotations: make(map[string]any),
	}
}

// Complete stamps the completion time and output payload
func (t *AgentTurn) Complete(output map[string]any) {
	t.Output = copyMap(output)
	t.CompletedAt = time.Now().UTC()
}

// Annotate sets a free-form annotation on the turn
func (t *AgentTurn) Annotate(key string, value any) {
	if t.Annotations == nil {
		t.Annotations = make(map[string]any)
	}
	t.Annotations[key] = value
}

// DurationMS returns the wall-clock duration in milliseconds rounded to 2 decimals
func (t AgentTurn) DurationMS() float64 {
	if t.CompletedAt.IsZero() || t.CompletedAt.Before(t.StartedAt) {
		return 0
	}
	return roundMS(float64(t.CompletedAt.Sub(t.StartedAt)) / float64(time.Millisecond))
}

// ToolInvocation is the result of one agent turn
type ToolInvocation struct {
	Turn     AgentTurn      `json:"turn"`
	Payload  map[string]any `json:"payload,omitempty"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Failed reports whether the invocation metadata marks a failure
func (inv *ToolInvocation) Failed() bool {
	status, _ := inv.Metadata["status"].(string)
	return status == "failed"
}

// ErrorCode returns the error code carried in metadata, if any
func (inv *ToolInvocation) ErrorCode() string {
	code, _ := inv.Metadata["error_code"].(string)
	return code
}

// AgentThread is the case-level conversation accumulated across a run
type AgentThread struct {
	ThreadID    string             `json:"thread_id"`
	CaseID      string             `json:"case_id"`
	Question    string             `json:"question"`
	Turns       []AgentTurn        `json:"turns"`
	FinalAnswer string             `json:"final_answer"`
	Citations   []map[string]any   `json:"citations"`
	QAScores    map[string]float64 `json:"qa_scores"`
	QANotes     []string           `json:"qa_notes"`
	Status      ThreadStatus       `json:"status"`
	Errors      []WorkflowError    `json:"errors"`
	Telemetry   *Telemetry         `json:"telemetry"`
	Memory      map[string]any     `json:"memory"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// NewThread creates a pending thread for a case question
func NewThread(threadID, caseID, question string) *AgentThread {
	now := time.Now().UTC()
	return &AgentThread{
		ThreadID:  threadID,
		CaseID:    caseID,
		Question:  question,
		Turns:     []AgentTurn{},
		Citations: []map[string]any{},
		QAScores:  make(map[string]float64),
		QANotes:   []string{},
		Status:    StatusPending,
		Errors:    []WorkflowError{},
		Memory:    make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddError appends err unless an equal error is already recorded
func (t *AgentThread) AddError(err WorkflowError) bool {
	for _, existing := range t.Errors {
		if existing == err {
			return false
		}
	}
	t.Errors = append(t.Errors, err)
	return true
}

// Touch bumps the update timestamp
func (t *AgentThread) Touch() {
	t.UpdatedAt = time.Now().UTC()
}

func newTurnID() string {
	id, err := gonanoid.New()
	if err != nil {
		return time.Now().UTC().Format("20060102T150405.000000000")
	}
	return id
}

func roundMS(v float64) float64 {
	return math.Round(v*100) / 100
}

// copyMap returns a deep copy of a JSON-like map
func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case []map[string]any:
		out := make([]map[string]any, len(val))
		for i, item := range val {
			out[i] = copyMap(item)
		}
		return out
	default:
		return val
	}
}
