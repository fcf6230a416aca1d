package orchestrator

import "sync"

// Delegation records a turn that carried metadata
type Delegation struct {
	Role     AgentRole      `json:"role"`
	Tool     string         `json:"tool"`
	Metadata map[string]any `json:"metadata"`
}

// HandOff records the transition between consecutive turns
type HandOff struct {
	From AgentRole `json:"from"`
	To   AgentRole `json:"to"`
	Via  string    `json:"via"`
}

// Branch records a research failure that changed control flow
type Branch struct {
	Role      AgentRole `json:"role"`
	ErrorCode string    `json:"error_code"`
	Decision  string    `json:"decision"`
}

// PlanRevision records one re-plan insertion
type PlanRevision struct {
	Revision int       `json:"revision"`
	Reason   string    `json:"reason"`
	Trigger  AgentRole `json:"trigger"`
}

// Telemetry accumulates run-scoped observations. It is owned by one run.
type Telemetry struct {
	mu sync.Mutex

	Team                    string          `json:"team,omitempty"`
	Delegations             []Delegation    `json:"delegations"`
	HandOffs                []HandOff       `json:"hand_offs"`
	Branching               []Branch        `json:"branching"`
	Errors                  []WorkflowError `json:"errors"`
	PlanRevisions           []PlanRevision  `json:"plan_revisions"`
	Notes                   []string        `json:"notes"`
	Status                  ThreadStatus    `json:"status,omitempty"`
	SequenceValid           bool            `json:"sequence_valid"`
	TurnRoles               []AgentRole     `json:"turn_roles"`
	DurationsMS             []float64       `json:"durations_ms"`
	TotalDurationMS         float64         `json:"total_duration_ms"`
	QAAverage               *float64        `json:"qa_average,omitempty"`
	RequiresPrivilegeReview bool            `json:"requires_privilege_review,omitempty"`
	Fields                  map[string]any  `json:"fields,omitempty"`
}

// NewTelemetry creates an empty accumulator
func NewTelemetry() *Telemetry {
	return &Telemetry{
		Delegations:   []Delegation{},
		HandOffs:      []HandOff{},
		Branching:     []Branch{},
		Errors:        []WorkflowError{},
		PlanRevisions: []PlanRevision{},
		Notes:         []string{},
		TurnRoles:     []AgentRole{},
		DurationsMS:   []float64{},
		Fields:        make(map[string]any),
	}
}

func (t *Telemetry) AddDelegation(d Delegation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d.Metadata = copyMap(d.Metadata)
	t.Delegations = append(t.Delegations, d)
}

func (t *Telemetry) AddHandOff(h HandOff) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.HandOffs = append(t.HandOffs, h)
}

func (t *Telemetry) AddBranch(b Branch) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Branching = append(t.Branching, b)
}

// AddError appends err unless an equal error is already present
func (t *Telemetry) AddError(err WorkflowError) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, existing := range t.Errors {
		if existing == err {
			return
		}
	}
	t.Errors = append(t.Errors, err)
}

func (t *Telemetry) AddPlanRevision(r PlanRevision) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.PlanRevisions = append(t.PlanRevisions, r)
}

func (t *Telemetry) AddNote(note string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Notes = append(t.Notes, note)
}

// PlanRevisionCount returns the number of re-plans inserted so far
func (t *Telemetry) PlanRevisionCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.PlanRevisions)
}

func (t *Telemetry) SetQAAverage(avg float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.QAAverage = &avg
}

func (t *Telemetry) SetStatus(status ThreadStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = status
}

func (t *Telemetry) SetPrivilegeReview() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.RequiresPrivilegeReview = true
	t.Status = StatusNeedsPrivilegeReview
}

// Set stores a free-form field
func (t *Telemetry) Set(key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Fields == nil {
		t.Fields = make(map[string]any)
	}
	t.Fields[key] = copyValue(value)
}

// Get reads a free-form field
func (t *Telemetry) Get(key string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.Fields[key]
	return v, ok
}

// finalize records the executed sequence and timings
func (t *Telemetry) finalize(status ThreadStatus, turns []AgentTurn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Status = status
	t.SequenceValid = true
	t.TurnRoles = make([]AgentRole, 0, len(turns))
	t.DurationsMS = make([]float64, 0, len(turns))
	total := 0.0
	for _, turn := range turns {
		d := turn.DurationMS()
		t.TurnRoles = append(t.TurnRoles, turn.Role)
		t.DurationsMS = append(t.DurationsMS, d)
		total += d
	}
	t.TotalDurationMS = roundMS(total)
}
