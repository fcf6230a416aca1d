package tools

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/ahouse2/co-counsel-nexus/pkg/llm"
	"github.com/ahouse2/co-counsel-nexus/pkg/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolContext() *orchestrator.ToolContext {
	thread := orchestrator.NewThread("thread-1", "case-1", "What is our indemnification exposure?")
	return &orchestrator.ToolContext{
		CaseID:    "case-1",
		Question:  thread.Question,
		TopK:      3,
		Memory:    orchestrator.NewCaseThreadMemory(thread, nil, nil),
		Telemetry: orchestrator.NewTelemetry(),
	}
}

func TestResearchToolSuccess(t *testing.T) {
	provider := llm.NewStaticProvider().Script("research",
		"```json\n{\"answer\": \"Exposure is capped.\", \"citations\": [{\"source\": \"doc-1\"}, \"doc-2\"]}\n```")
	tool, err := NewRoleTool("research", provider, Config{Model: "test"})
	require.NoError(t, err)

	inv, err := tool.Invoke(context.Background(), toolContext())

	require.NoError(t, err)
	assert.Equal(t, "research", tool.Name())
	assert.Equal(t, "Exposure is capped.", inv.Payload["answer"])
	assert.Equal(t, 2, inv.Metadata["citation_count"])
	assert.Equal(t, "succeeded", inv.Metadata["status"])
	assert.False(t, inv.Failed())
	assert.Equal(t, "research", inv.Turn.Action)
	assert.Empty(t, inv.Turn.Role, "the runner stamps the role")
	assert.Contains(t, inv.Message, "2 citations")
}

func TestQAToolAverage(t *testing.T) {
	provider := llm.NewStaticProvider().Script("qa",
		`{"scores": {"accuracy": 0.9, "completeness": 0.6}, "notes": ["ok"], "gating": {"requires_privilege_review": true}}`)
	tool, err := NewRoleTool("qa", provider, Config{})
	require.NoError(t, err)

	inv, err := tool.Invoke(context.Background(), toolContext())

	require.NoError(t, err)
	assert.InDelta(t, 0.75, inv.Metadata["qa_average"], 1e-9)

	out := orchestrator.ClassifyOutcome(orchestrator.RoleQA, inv).(orchestrator.QAOutcome)
	assert.True(t, out.RequiresPrivilegeReview)
	require.NotNil(t, out.Average)
	assert.InDelta(t, 0.75, *out.Average, 1e-9)
}

func TestToolFailuresMapToWorkflowErrors(t *testing.T) {
	tests := []struct {
		name          string
		provider      *llm.StaticProvider
		key           string
		wantCode      string
		wantRetryable bool
	}{
		{
			name:          "rate limited completion",
			provider:      llm.NewStaticProvider().Fail("research", errors.New("429 rate limit")),
			key:           "research",
			wantCode:      CodeLLMError,
			wantRetryable: true,
		},
		{
			name:          "auth failure",
			provider:      llm.NewStaticProvider().Fail("strategy", errors.New("401 unauthorized")),
			key:           "strategy",
			wantCode:      CodeLLMError,
			wantRetryable: false,
		},
		{
			name:          "prose instead of JSON",
			provider:      llm.NewStaticProvider().Script("cocounsel", "I cannot help with that."),
			key:           "cocounsel",
			wantCode:      CodeInvalidResponse,
			wantRetryable: true,
		},
		{
			name:          "research output missing citations",
			provider:      llm.NewStaticProvider().Script("research", `{"answer": "no sources"}`),
			key:           "research",
			wantCode:      CodeInvalidResponse,
			wantRetryable: true,
		},
		{
			name:          "qa score of wrong type",
			provider:      llm.NewStaticProvider().Script("qa", `{"scores": {"accuracy": "high"}}`),
			key:           "qa",
			wantCode:      CodeInvalidResponse,
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool, err := NewRoleTool(tt.key, tt.provider, Config{})
			require.NoError(t, err)

			inv, err := tool.Invoke(context.Background(), toolContext())

			assert.Nil(t, inv)
			werr, ok := orchestrator.AsWorkflowError(err)
			require.True(t, ok, "expected WorkflowError, got %v", err)
			assert.Equal(t, tt.wantCode, werr.Code)
			assert.Equal(t, tt.wantRetryable, werr.Retryable)
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    map[string]any
		wantErr bool
	}{
		{"prose around object", "Here you go:\n{\"a\": {\"b\": 1}}\nThanks", map[string]any{"a": map[string]any{"b": float64(1)}}, false},
		{"code fence", "```json\n{\"answer\": \"ok\"}\n```", map[string]any{"answer": "ok"}, false},
		{"brace in trailing prose", "{\"answer\": \"ok\"}\nSee section {4} for details.", map[string]any{"answer": "ok"}, false},
		{"no braces", "no braces", nil, true},
		{"not json", "{not json}", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "abc", 5, "abc"},
		{"ascii", "abcdef", 3, "abc..."},
		{"multi-byte boundary", "§§§", 3, "§..."},
		{"inside first rune", "€uro", 2, "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestRegister(t *testing.T) {
	registry := orchestrator.NewToolRegistry()
	require.NoError(t, Register(registry, llm.NewStaticProvider(), Config{Model: "test"}))

	assert.Equal(t, BuiltinKeys(), registry.Keys())

	tool, err := registry.Resolve("knowledge_graph")
	require.NoError(t, err)
	assert.Equal(t, "knowledge_graph", tool.Name())
	assert.Contains(t, registry.Keys(), "knowledge_graph")

	assert.Error(t, Register(registry, llm.NewStaticProvider(), Config{}), "keys are registered once")
}

func TestDefaultRosterRunsOffline(t *testing.T) {
	registry := orchestrator.NewToolRegistry()
	require.NoError(t, Register(registry, llm.NewStaticProvider(), Config{}))
	roster, err := orchestrator.DefaultRoster(registry)
	require.NoError(t, err)

	orch, err := orchestrator.New(roster)
	require.NoError(t, err)

	passthrough := orchestrator.ExecutorFunc(func(ctx context.Context, _ string, op orchestrator.Operation, _ bool, _ orchestrator.PartialFactory) (*orchestrator.ToolInvocation, error) {
		return op(ctx)
	})
	thread, err := orch.Run(context.Background(), orchestrator.RunRequest{
		CaseID:   "case-1",
		Question: "What is our indemnification exposure?",
		Executor: passthrough,
	})

	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusSucceeded, thread.Status)
	assert.Len(t, thread.Citations, 2)
	assert.NotEmpty(t, thread.FinalAnswer)
	assert.Equal(t, []orchestrator.AgentRole{"strategy", "ingestion", "research", "cocounsel", "qa"}, thread.Telemetry.TurnRoles)
}
