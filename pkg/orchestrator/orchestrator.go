package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahouse2/co-counsel-nexus/internal/observability"
	"github.com/ahouse2/co-counsel-nexus/internal/tracing"
	"github.com/ahouse2/co-counsel-nexus/pkg/memory"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultMaxRounds is the turn budget when a run does not set one
const DefaultMaxRounds = 10

// DefaultTopK is the retrieval depth when a run does not set one
const DefaultTopK = 5

// Logger interface for logging
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})         {}
func (nopLogger) Error(string, error, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{})        {}

// PolicySource supplies the policy applied when a run does not carry one
type PolicySource interface {
	Current() *PolicyState
}

// Orchestrator resolves the graph for each question and drives a fresh
// SessionRunner over it
type Orchestrator struct {
	roster     *Roster
	baseGraph  *SessionGraph
	teamGraphs map[TeamName]*SessionGraph
	memory     memory.Provider
	policies   PolicySource
	maxRounds  int
	topK       int
	logger     Logger
}

// Option is a functional option for configuring the Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger for the orchestrator
func WithLogger(logger Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxRounds sets the default turn budget
func WithMaxRounds(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxRounds = n
		}
	}
}

// WithDefaultTopK sets the retrieval depth used when a request omits it
func WithDefaultTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithMemoryProvider sets the case memory backend
func WithMemoryProvider(p memory.Provider) Option {
	return func(o *Orchestrator) {
		o.memory = p
	}
}

// WithPolicySource sets the fallback policy source
func WithPolicySource(src PolicySource) Option {
	return func(o *Orchestrator) {
		o.policies = src
	}
}

// New creates an Orchestrator over roster. Every team graph is built up front
// so roster defects surface here rather than mid-run.
func New(roster *Roster, opts ...Option) (*Orchestrator, error) {
	if roster == nil {
		return nil, fmt.Errorf("roster is required")
	}

	graphs, err := roster.Graphs()
	if err != nil {
		return nil, fmt.Errorf("failed to build session graphs: %w", err)
	}

	o := &Orchestrator{
		roster:     roster,
		baseGraph:  graphs[TeamBase],
		teamGraphs: graphs,
		memory:     memory.NewInMemoryProvider(),
		maxRounds:  DefaultMaxRounds,
		topK:       DefaultTopK,
		logger:     nopLogger{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// RunRequest carries the inputs of one question
type RunRequest struct {
	CaseID        string
	Question      string
	TopK          int
	Actor         Actor
	Executor      ComponentExecutor
	ThreadID      string
	Thread        *AgentThread
	Telemetry     *Telemetry
	AutonomyLevel string
	MaxTurns      int
	PolicyState   *PolicyState
}

// Run answers one question. It returns the finalized thread, or a
// *WorkflowAbort when a turn aborts the run. Persisting the thread is left
// to the caller.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*AgentThread, error) {
	if req.Executor == nil {
		return nil, ErrNoExecutor
	}
	if err := memory.ValidateCaseID(req.CaseID); err != nil {
		return nil, err
	}

	thread := o.prepareThread(req)
	ctx = tracing.NewRunContext(ctx, thread.CaseID, thread.ThreadID)

	policy := req.PolicyState
	if policy == nil && o.policies != nil {
		policy = o.policies.Current()
	}
	graph, team, err := o.resolveGraph(req.Question, policy)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "cocounsel.orchestrator", "session.run",
		attribute.String("case_id", thread.CaseID),
		attribute.String("thread_id", thread.ThreadID),
		attribute.String("team", string(team)),
	)
	defer span.End()
	start := time.Now()

	store, err := o.memory.Open(ctx, thread.CaseID)
	if err != nil {
		tracing.FailSpan(span, err)
		return nil, fmt.Errorf("failed to open case memory: %w", err)
	}
	mem := NewCaseThreadMemory(thread, store, o.logger)
	mem.AppendConversation(ctx, "user", req.Question, map[string]any{
		"thread_id": thread.ThreadID,
		"actor":     req.Actor.ID,
	})

	telemetry := req.Telemetry
	if telemetry == nil {
		telemetry = NewTelemetry()
	}
	telemetry.Team = string(team)

	topK := req.TopK
	if topK <= 0 {
		topK = o.topK
	}
	maxTurns := req.MaxTurns
	if maxTurns <= 0 {
		maxTurns = o.maxRounds
	}
	level := ParseAutonomyLevel(req.AutonomyLevel)

	runner := NewSessionRunner(graph, req.Executor,
		WithAutonomyPolicy(PolicyFor(level)),
		WithMaxTurns(maxTurns),
		WithInitialOrder(ElevateQueue(graph.Order(), policy)),
		WithRunnerLogger(o.logger),
	)

	observability.RecordRunAudit(ctx, "run_started", req.Actor.ID, thread.CaseID, thread.ThreadID, "pending", map[string]any{
		"team":      string(team),
		"autonomy":  string(level),
		"max_turns": maxTurns,
	})
	o.logger.Info("Session run started",
		"case_id", thread.CaseID,
		"thread_id", thread.ThreadID,
		"team", team,
		"order", graph.Order(),
		"max_turns", maxTurns)

	result, runErr := runner.Run(ctx, &ToolContext{
		CaseID:    thread.CaseID,
		Question:  req.Question,
		TopK:      topK,
		Actor:     req.Actor,
		Memory:    mem,
		Telemetry: telemetry,
	})

	if err := mem.Persist(ctx); err != nil {
		o.logger.Error("Failed to persist case memory", err, "case_id", thread.CaseID)
	}

	if runErr != nil {
		status := "failed"
		var abort *WorkflowAbort
		if errors.As(runErr, &abort) {
			status = "aborted"
		}
		tracing.FailSpan(span, runErr)
		observability.RecordRun(string(team), status, time.Since(start))
		observability.RecordRunAudit(ctx, "run_"+status, req.Actor.ID, thread.CaseID, thread.ThreadID, status, map[string]any{
			"error": runErr.Error(),
		})
		o.logger.Error("Session run did not complete", runErr, "case_id", thread.CaseID, "thread_id", thread.ThreadID)
		return nil, runErr
	}

	span.SetAttributes(attribute.String("status", string(result.Status)))
	observability.RecordRun(string(team), string(result.Status), time.Since(start))
	observability.RecordRunAudit(ctx, "run_completed", req.Actor.ID, result.CaseID, result.ThreadID, string(result.Status), map[string]any{
		"turns":  len(result.Turns),
		"errors": len(result.Errors),
	})
	o.logger.Info("Session run completed",
		"case_id", result.CaseID,
		"thread_id", result.ThreadID,
		"status", result.Status,
		"turns", len(result.Turns))

	return result, nil
}

// prepareThread creates a thread or redirects an existing one to the request
func (o *Orchestrator) prepareThread(req RunRequest) *AgentThread {
	if req.Thread == nil {
		id := req.ThreadID
		if id == "" {
			id = uuid.New().String()
		}
		return NewThread(id, req.CaseID, req.Question)
	}

	thread := req.Thread
	thread.CaseID = req.CaseID
	thread.Question = req.Question
	if req.ThreadID != "" {
		thread.ThreadID = req.ThreadID
	}
	if thread.ThreadID == "" {
		thread.ThreadID = uuid.New().String()
	}
	if thread.Status != StatusNeedsPrivilegeReview {
		thread.Status = StatusPending
	}
	// Errors describe the run that recorded them; status and telemetry are
	// derived from the current run only.
	thread.Errors = []WorkflowError{}
	thread.Touch()
	return thread
}

// resolveGraph applies policy to the base graph, then swaps in the routed team graph
func (o *Orchestrator) resolveGraph(question string, policy *PolicyState) (*SessionGraph, TeamName, error) {
	graph, err := BuildSessionGraph(o.baseGraph, policy)
	if err != nil {
		return nil, "", fmt.Errorf("failed to apply policy: %w", err)
	}

	team := RouteQuestion(question)
	if team == TeamBase {
		return graph, TeamBase, nil
	}
	if g, ok := o.teamGraphs[team]; ok {
		return g, team, nil
	}
	o.logger.Debug("Routed team missing from roster, using base graph", "team", team)
	return graph, TeamBase, nil
}

// ResolveGraph returns the graph a question would run against
func (o *Orchestrator) ResolveGraph(question string, policy *PolicyState) (*SessionGraph, TeamName, error) {
	return o.resolveGraph(question, policy)
}

// TeamGraph returns the graph for a named team, with policy applied to the base team
func (o *Orchestrator) TeamGraph(team TeamName, policy *PolicyState) (*SessionGraph, error) {
	if team == "" || team == TeamBase {
		return BuildSessionGraph(o.baseGraph, policy)
	}
	g, ok := o.teamGraphs[team]
	if !ok {
		return nil, fmt.Errorf("unknown team: %s", team)
	}
	return g, nil
}

// Roster returns the roster the orchestrator was built from
func (o *Orchestrator) Roster() *Roster {
	return o.roster
}
