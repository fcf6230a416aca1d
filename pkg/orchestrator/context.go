package orchestrator

// Actor identifies who requested the run
type Actor struct {
	ID    string   `json:"id" yaml:"id"`
	Name  string   `json:"name,omitempty" yaml:"name,omitempty"`
	Roles []string `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// ToolContext is the shared state handed to every tool in a run
type ToolContext struct {
	CaseID    string
	Question  string
	TopK      int
	Actor     Actor
	Memory    *CaseThreadMemory
	Telemetry *Telemetry
}

// Thread returns the thread bound to the context memory
func (tc *ToolContext) Thread() *AgentThread {
	if tc.Memory == nil {
		return nil
	}
	return tc.Memory.Thread()
}
