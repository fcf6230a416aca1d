package orchestrator

import (
	"context"
	"testing"

	"github.com/ahouse2/co-counsel-nexus/pkg/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPolicy struct {
	state *PolicyState
}

func (s staticPolicy) Current() *PolicyState { return s.state }

// newTestOrchestrator binds the built-in roster to the pipeline tools; roles
// without a pipeline tool get an empty scripted tool
func newTestOrchestrator(t *testing.T, p *pipeline, opts ...Option) *Orchestrator {
	t.Helper()
	registry := NewToolRegistry()
	for _, tool := range []*scriptedTool{p.strategy, p.ingestion, p.research, p.cocounsel, p.qa} {
		require.NoError(t, registry.Register(tool.name, tool))
	}
	registry.SetFallback(func(key string) Tool { return newScripted(key) })

	roster, err := DefaultRoster(registry)
	require.NoError(t, err)
	o, err := New(roster, opts...)
	require.NoError(t, err)
	return o
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	o := newTestOrchestrator(t, newPipeline())
	assert.Equal(t, DefaultMaxRounds, o.maxRounds)
	assert.Equal(t, DefaultTopK, o.topK)
	assert.Len(t, o.teamGraphs, 7)
	assert.Equal(t, []AgentRole{RoleStrategy, RoleIngestion, RoleResearch, RoleCoCounsel, RoleQA}, o.baseGraph.Order())
}

func TestOrchestratorRun(t *testing.T) {
	logger := &mockLogger{}
	o := newTestOrchestrator(t, newPipeline(), WithLogger(logger))

	thread, err := o.Run(context.Background(), RunRequest{
		CaseID:   "case-1",
		Question: "What is our indemnification exposure?",
		Actor:    Actor{ID: "attorney-7"},
		Executor: passthrough(),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, thread.ThreadID)
	assert.Equal(t, "case-1", thread.CaseID)
	assert.Equal(t, StatusSucceeded, thread.Status)
	assert.Equal(t, string(TeamBase), thread.Telemetry.Team)
	assert.Len(t, thread.Turns, 5)

	conversation := thread.Memory["conversation"].([]map[string]any)
	require.NotEmpty(t, conversation)
	assert.Equal(t, "user", conversation[0]["role"])
	assert.Equal(t, "What is our indemnification exposure?", conversation[0]["content"])
	assert.Contains(t, logger.infos, "Session run completed")
}

func TestOrchestratorRoutesToTeamGraph(t *testing.T) {
	o := newTestOrchestrator(t, newPipeline())

	thread, err := o.Run(context.Background(), RunRequest{
		CaseID:   "case-1",
		Question: "Trace the crypto transfers in the ledger",
		Executor: passthrough(),
	})
	require.NoError(t, err)

	assert.Equal(t, string(TeamForensics), thread.Telemetry.Team)
	assert.Equal(t, []AgentRole{
		RoleStrategy, "forensics_documents", "forensics_crypto", "forensics_financial", RoleQA,
	}, thread.Telemetry.TurnRoles)

	g, team, err := o.ResolveGraph("Draft a motion to dismiss", nil)
	require.NoError(t, err)
	assert.Equal(t, TeamLitigationSupport, team)
	assert.Equal(t, []AgentRole{RoleStrategy, RoleResearch, RoleCoCounsel, RoleQA}, g.Order())
}

func TestOrchestratorResumesThread(t *testing.T) {
	o := newTestOrchestrator(t, newPipeline())
	ctx := context.Background()

	first, err := o.Run(ctx, RunRequest{CaseID: "case-1", Question: "Initial question", Executor: passthrough()})
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, first.Status)

	second, err := o.Run(ctx, RunRequest{
		CaseID:   "case-2",
		Question: "Follow-up question",
		Thread:   first,
		ThreadID: "redirected",
		Executor: passthrough(),
	})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, "redirected", second.ThreadID)
	assert.Equal(t, "case-2", second.CaseID)
	assert.Equal(t, "Follow-up question", second.Question)
	assert.Len(t, second.Turns, 10)
	assert.Len(t, second.Telemetry.TurnRoles, 5, "timings cover this run only")

	review := NewThread("held", "case-3", "q")
	review.Status = StatusNeedsPrivilegeReview
	third, err := o.Run(ctx, RunRequest{CaseID: "case-3", Question: "q", Thread: review, Executor: passthrough()})
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsPrivilegeReview, third.Status)
}

func TestOrchestratorResumeClearsPreviousErrors(t *testing.T) {
	o := newTestOrchestrator(t, newPipeline())
	ctx := context.Background()

	degraded := NewThread("thread-1", "case-1", "Initial question")
	degraded.Status = StatusDegraded
	degraded.AddError(WorkflowError{Code: "x", Message: "y"})

	resumed, err := o.Run(ctx, RunRequest{CaseID: "case-1", Question: "Follow-up question", Thread: degraded, Executor: passthrough()})
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, resumed.Status)
	assert.Empty(t, resumed.Errors)
	assert.Empty(t, resumed.Telemetry.Errors)
	assert.Equal(t, StatusSucceeded, resumed.Telemetry.Status)
}

func TestOrchestratorPolicy(t *testing.T) {
	source := staticPolicy{state: &PolicyState{
		Enabled:         true,
		SuppressedRoles: []AgentRole{RoleIngestion},
		GraphOverrides:  map[AgentRole][]string{RoleStrategy: {"research"}},
		ElevatedRoles:   []AgentRole{RoleResearch},
	}}
	o := newTestOrchestrator(t, newPipeline(), WithPolicySource(source))

	thread, err := o.Run(context.Background(), RunRequest{CaseID: "case-1", Question: "What now?", Executor: passthrough()})
	require.NoError(t, err)
	assert.Equal(t, []AgentRole{RoleResearch, RoleStrategy, RoleCoCounsel, RoleQA}, thread.Telemetry.TurnRoles)

	thread, err = o.Run(context.Background(), RunRequest{
		CaseID:      "case-1",
		Question:    "What now?",
		Executor:    passthrough(),
		PolicyState: &PolicyState{Enabled: false},
	})
	require.NoError(t, err)
	assert.Len(t, thread.Telemetry.TurnRoles, 5, "a request policy replaces the source policy")
}

func TestOrchestratorMaxRoundsFallback(t *testing.T) {
	o := newTestOrchestrator(t, newPipeline(), WithMaxRounds(2))

	thread, err := o.Run(context.Background(), RunRequest{CaseID: "case-1", Question: "q", Executor: passthrough()})
	require.NoError(t, err)
	assert.Len(t, thread.Turns, 2)

	thread, err = o.Run(context.Background(), RunRequest{CaseID: "case-1", Question: "q", Executor: passthrough(), MaxTurns: 3})
	require.NoError(t, err)
	assert.Len(t, thread.Turns, 3)
}

func TestOrchestratorRunErrors(t *testing.T) {
	o := newTestOrchestrator(t, newPipeline())
	ctx := context.Background()

	_, err := o.Run(ctx, RunRequest{CaseID: "case-1", Question: "q"})
	assert.ErrorIs(t, err, ErrNoExecutor)

	_, err = o.Run(ctx, RunRequest{CaseID: "../escape", Question: "q", Executor: passthrough()})
	assert.ErrorIs(t, err, memory.ErrInvalidCaseID)

	abortAll := ExecutorFunc(func(ctx context.Context, component string, _ Operation, _ bool, _ PartialFactory) (*ToolInvocation, error) {
		return nil, &WorkflowAbort{Component: component, Err: WorkflowError{Code: "fatal", Message: "stop"}}
	})
	thread, err := o.Run(ctx, RunRequest{CaseID: "case-1", Question: "q", Executor: abortAll})
	assert.Nil(t, thread)
	var abort *WorkflowAbort
	assert.ErrorAs(t, err, &abort)
}

func TestOrchestratorPersistsCaseMemory(t *testing.T) {
	dir := t.TempDir()
	provider, err := memory.NewFileProvider(dir)
	require.NoError(t, err)
	o := newTestOrchestrator(t, newPipeline(), WithMemoryProvider(provider))

	_, err = o.Run(context.Background(), RunRequest{CaseID: "case-9", Question: "Persist me", Executor: passthrough()})
	require.NoError(t, err)

	reopened, err := memory.NewFileProvider(dir)
	require.NoError(t, err)
	store, err := reopened.Open(context.Background(), "case-9")
	require.NoError(t, err)
	snap := store.Snapshot()
	assert.NotEmpty(t, snap["conversation"])
	assert.Equal(t, 5, snap["turns"])
	plan, _ := snap[memory.SectionPlan].(map[string]any)
	assert.Contains(t, plan, "steps")
}

func TestTeamGraph(t *testing.T) {
	o := newTestOrchestrator(t, newPipeline())

	g, err := o.TeamGraph(TeamDocumentIngestion, nil)
	require.NoError(t, err)
	assert.Equal(t, []AgentRole{RoleStrategy, RoleIngestion, "knowledge_graph", RoleQA}, g.Order())

	g, err = o.TeamGraph(TeamForensics, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Forensics Reviewer -> QA Oversight Lead"}, g.ExternalReferences())

	_, err = o.TeamGraph("unknown", nil)
	assert.Error(t, err)
}
