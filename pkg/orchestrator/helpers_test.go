package orchestrator

import (
	"context"
	"sync"
)

// mockLogger implements the Logger interface for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
	debugs []string
}

func (m *mockLogger) Info(msg string, fields ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, err error, fields ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) Debug(msg string, fields ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugs = append(m.debugs, msg)
}

// scriptedTool returns one step per call; the last step repeats
type scriptedTool struct {
	name  string
	steps []func(tc *ToolContext) (*ToolInvocation, error)
	calls int
}

func (s *scriptedTool) Name() string { return s.name }

func (s *scriptedTool) Invoke(ctx context.Context, tc *ToolContext) (*ToolInvocation, error) {
	i := min(s.calls, len(s.steps)-1)
	s.calls++
	return s.steps[i](tc)
}

func succeed(payload map[string]any, metadata map[string]any) func(*ToolContext) (*ToolInvocation, error) {
	return func(tc *ToolContext) (*ToolInvocation, error) {
		turn := NewTurn("", "scripted", map[string]any{"question": tc.Question})
		turn.Complete(payload)
		return &ToolInvocation{Turn: turn, Payload: payload, Message: "done", Metadata: metadata}, nil
	}
}

func fail(werr WorkflowError) func(*ToolContext) (*ToolInvocation, error) {
	return func(*ToolContext) (*ToolInvocation, error) {
		return nil, werr
	}
}

func newScripted(name string, steps ...func(*ToolContext) (*ToolInvocation, error)) *scriptedTool {
	if len(steps) == 0 {
		steps = append(steps, succeed(map[string]any{}, nil))
	}
	return &scriptedTool{name: name, steps: steps}
}

func researchPayload(answer string, citations int) map[string]any {
	list := make([]any, 0, citations)
	for i := 0; i < citations; i++ {
		list = append(list, map[string]any{"source": "doc", "index": i})
	}
	return map[string]any{"answer": answer, "citations": list}
}

// pipeline holds the base five-role roster with replaceable tools
type pipeline struct {
	strategy  *scriptedTool
	ingestion *scriptedTool
	research  *scriptedTool
	cocounsel *scriptedTool
	qa        *scriptedTool
}

func newPipeline() *pipeline {
	return &pipeline{
		strategy:  newScripted("strategy", succeed(map[string]any{"steps": []any{"research"}}, nil)),
		ingestion: newScripted("ingestion", succeed(map[string]any{"documents": []any{"doc-1"}}, nil)),
		research:  newScripted("research", succeed(researchPayload("Exposure is capped.", 2), map[string]any{"citation_count": 2})),
		cocounsel: newScripted("cocounsel", succeed(map[string]any{"memo": "draft"}, nil)),
		qa: newScripted("qa", succeed(map[string]any{
			"scores": map[string]any{"accuracy": 0.9},
			"notes":  []any{"looks good"},
		}, map[string]any{"qa_average": 0.9})),
	}
}

func (p *pipeline) definitions() []AgentDefinition {
	return []AgentDefinition{
		NewAgentDefinition("Strategy Agent", RoleStrategy, "plans", p.strategy, "Ingestion Agent"),
		NewAgentDefinition("Ingestion Agent", RoleIngestion, "ingests", p.ingestion, "Research Agent"),
		NewAgentDefinition("Research Agent", RoleResearch, "researches", p.research, "CoCounsel Agent"),
		NewAgentDefinition("CoCounsel Agent", RoleCoCounsel, "drafts", p.cocounsel, "QA Agent"),
		NewAgentDefinition("QA Agent", RoleQA, "reviews", p.qa),
	}
}

// passthrough runs the operation once and applies the partial factory on failure
func passthrough() ExecutorFunc {
	return func(ctx context.Context, component string, op Operation, allowPartial bool, partial PartialFactory) (*ToolInvocation, error) {
		inv, err := op(ctx)
		if err == nil {
			return inv, nil
		}
		werr, ok := AsWorkflowError(err)
		if !ok {
			return nil, err
		}
		if allowPartial && partial != nil {
			return partial(werr), nil
		}
		if werr.Retryable {
			return nil, &WorkflowException{Component: component, Err: werr}
		}
		return nil, &WorkflowAbort{Component: component, Err: werr}
	}
}

func newToolContext(caseID, question string) *ToolContext {
	thread := NewThread("thread-1", caseID, question)
	return &ToolContext{
		CaseID:    caseID,
		Question:  question,
		TopK:      5,
		Memory:    NewCaseThreadMemory(thread, nil, nil),
		Telemetry: NewTelemetry(),
	}
}
