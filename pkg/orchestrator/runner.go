package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahouse2/co-counsel-nexus/internal/observability"
	"github.com/ahouse2/co-counsel-nexus/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

const (
	reasonResearchFailed   = "research_failed"
	reasonMissingCitations = "missing_citations"

	degradedNote = "Research proceeding with degraded findings"
)

// workItem is one queued role execution
type workItem struct {
	role     AgentRole
	revision int
	reason   string
}

// SessionRunner walks a session graph turn by turn. A runner is built per run.
type SessionRunner struct {
	graph        *SessionGraph
	executor     ComponentExecutor
	policy       AutonomyPolicy
	maxTurns     int
	initialOrder []AgentRole
	logger       Logger
}

// RunnerOption configures a SessionRunner
type RunnerOption func(*SessionRunner)

// WithAutonomyPolicy sets the re-plan and partial-continuation flags
func WithAutonomyPolicy(policy AutonomyPolicy) RunnerOption {
	return func(r *SessionRunner) {
		r.policy = policy
	}
}

// WithMaxTurns sets the turn budget
func WithMaxTurns(n int) RunnerOption {
	return func(r *SessionRunner) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

// WithInitialOrder seeds the queue with a reordering of the graph order
func WithInitialOrder(order []AgentRole) RunnerOption {
	return func(r *SessionRunner) {
		r.initialOrder = append([]AgentRole(nil), order...)
	}
}

// WithRunnerLogger sets the runner logger
func WithRunnerLogger(logger Logger) RunnerOption {
	return func(r *SessionRunner) {
		r.logger = logger
	}
}

// NewSessionRunner creates a runner over graph using executor for every turn
func NewSessionRunner(graph *SessionGraph, executor ComponentExecutor, opts ...RunnerOption) *SessionRunner {
	r := &SessionRunner{
		graph:    graph,
		executor: executor,
		policy:   PolicyFor(AutonomyBalanced),
		maxTurns: DefaultMaxRounds,
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if len(r.initialOrder) == 0 {
		r.initialOrder = graph.Order()
	}
	return r
}

// RevisionLimit is the per-run cap on re-plan insertions
func (r *SessionRunner) RevisionLimit() int {
	n := len(r.graph.Order())
	if n == 0 {
		return 1
	}
	return max(1, r.maxTurns/n)
}

// runState is the mutable bookkeeping of one Run call
type runState struct {
	tc             *ToolContext
	thread         *AgentThread
	queue          []workItem
	turnsRemaining int
	planRevision   int
	revisionLimit  int
	previous       *AgentTurn
	executed       []AgentTurn
}

// Run executes the graph against the thread bound to tc.Memory. It returns
// the finalized thread, or a *WorkflowAbort when a turn aborts the run.
func (r *SessionRunner) Run(ctx context.Context, tc *ToolContext) (*AgentThread, error) {
	if r.executor == nil {
		return nil, ErrNoExecutor
	}
	if tc == nil || tc.Memory == nil {
		return nil, fmt.Errorf("tool context with case memory is required")
	}
	if tc.Telemetry == nil {
		tc.Telemetry = NewTelemetry()
	}

	s := &runState{
		tc:             tc,
		thread:         tc.Memory.Thread(),
		turnsRemaining: r.maxTurns,
		revisionLimit:  r.RevisionLimit(),
	}
	s.thread.Telemetry = tc.Telemetry
	for _, role := range r.initialOrder {
		s.queue = append(s.queue, workItem{role: role})
	}

	for len(s.queue) > 0 && s.turnsRemaining > 0 {
		item := s.queue[0]
		s.queue = s.queue[1:]
		s.turnsRemaining--

		node, ok := r.graph.Node(item.role)
		if !ok {
			r.logger.Debug("Skipping queued role with no node", "role", item.role)
			continue
		}

		inv, err := r.invoke(ctx, s, node, item)
		if err != nil {
			s.thread.Memory = tc.Memory.Snapshot()
			s.thread.Touch()
			return nil, err
		}

		r.recordTransition(s, node, inv)
		r.interpret(ctx, s, node, inv)
	}

	r.finalize(s)
	return s.thread, nil
}

// recordTransition appends delegation and hand-off telemetry
func (r *SessionRunner) recordTransition(s *runState, node *SessionNode, inv *ToolInvocation) {
	tool := node.Definition.toolName()
	if len(inv.Metadata) > 0 {
		s.tc.Telemetry.AddDelegation(Delegation{
			Role:     node.Definition.Role(),
			Tool:     tool,
			Metadata: inv.Metadata,
		})
	}
	if s.previous != nil {
		via, _ := inv.Turn.Annotations["tool"].(string)
		if via == "" {
			via = inv.Turn.Action
		}
		s.tc.Telemetry.AddHandOff(HandOff{From: s.previous.Role, To: inv.Turn.Role, Via: via})
	}
	turn := inv.Turn
	s.previous = &turn
}

// interpret applies role-specific control flow. A re-plan rewrites the queue
// and skips the rest of the research handling.
func (r *SessionRunner) interpret(ctx context.Context, s *runState, node *SessionNode, inv *ToolInvocation) {
	role := node.Definition.Role()

	switch out := ClassifyOutcome(role, inv).(type) {
	case StrategyOutcome:
		if len(out.Plan) > 0 {
			s.tc.Memory.MergePlan(ctx, out.Plan)
		}

	case ResearchOutcome:
		if out.Failed {
			if r.canReplan(s) {
				s.tc.Telemetry.AddBranch(Branch{Role: role, ErrorCode: out.ErrorCode, Decision: "replan"})
				r.replan(ctx, s, role, reasonResearchFailed)
				return
			}
			decision := "accept"
			if r.policy.AllowPartial {
				decision = "degrade"
				s.tc.Memory.AddNote(ctx, degradedNote)
				s.tc.Telemetry.AddNote(degradedNote)
			}
			s.tc.Telemetry.AddBranch(Branch{Role: role, ErrorCode: out.ErrorCode, Decision: decision})
		} else if out.CitationCount == 0 && r.canReplan(s) {
			r.replan(ctx, s, role, reasonMissingCitations)
			return
		}
		if out.HasAnswer {
			s.thread.FinalAnswer = out.Answer
		}
		if out.HasCitations {
			s.thread.Citations = out.Citations
		}

	case CoCounselOutcome:
		if len(out.Artifacts) > 0 {
			s.tc.Memory.MergeArtifacts(ctx, out.Artifacts)
		}

	case QAOutcome:
		if out.Scores != nil {
			s.thread.QAScores = out.Scores
		}
		if out.Notes != nil {
			s.thread.QANotes = out.Notes
		}
		if out.RequiresPrivilegeReview {
			s.thread.Status = StatusNeedsPrivilegeReview
			s.tc.Telemetry.SetPrivilegeReview()
			observability.RecordGateAudit(ctx, "privilege_review", s.thread.CaseID, s.thread.ThreadID, map[string]any{
				"turn_id": inv.Turn.ID,
			})
			r.logger.Info("Privilege review required", "case_id", s.thread.CaseID, "thread_id", s.thread.ThreadID)
		}
		if out.Average != nil {
			s.tc.Telemetry.SetQAAverage(*out.Average)
		}

	case IngestionOutcome, GenericOutcome:
	}
}

func (r *SessionRunner) canReplan(s *runState) bool {
	return r.policy.AllowReplan && s.planRevision < s.revisionLimit && s.turnsRemaining > 0
}

// replan puts a strategy revision and a retry of the trigger at the front of the queue
func (r *SessionRunner) replan(ctx context.Context, s *runState, trigger AgentRole, reason string) {
	s.planRevision++
	front := []workItem{
		{role: RoleStrategy, revision: s.planRevision, reason: reason},
		{role: trigger, revision: s.planRevision, reason: reason},
	}
	s.queue = append(front, s.queue...)

	note := fmt.Sprintf("Plan revision %d requested after %s: %s", s.planRevision, trigger, reason)
	s.tc.Memory.AddNote(ctx, note)
	s.tc.Telemetry.AddNote(note)
	s.tc.Telemetry.AddPlanRevision(PlanRevision{Revision: s.planRevision, Reason: reason, Trigger: trigger})
	observability.RecordPlanRevision(reason)

	r.logger.Info("Plan revision queued",
		"revision", s.planRevision,
		"limit", s.revisionLimit,
		"reason", reason,
		"turns_remaining", s.turnsRemaining)
}

// invoke runs one node through the executor. It returns a usable invocation
// or an error; an abort is returned after its synthetic turn is registered.
func (r *SessionRunner) invoke(ctx context.Context, s *runState, node *SessionNode, item workItem) (*ToolInvocation, error) {
	def := node.Definition
	role := def.Role()
	tool := def.Tool()
	if tool == nil {
		return nil, fmt.Errorf("%w: role %s has no tool bound", ErrNilInvocation, role)
	}

	ctx = tracing.PropagateToTurn(ctx, string(role))
	ctx, span := tracing.StartSpan(ctx, "cocounsel.orchestrator", "session.turn",
		attribute.String("role", string(role)),
		attribute.String("tool", tool.Name()),
		attribute.Int("revision", item.revision),
	)
	defer span.End()
	start := time.Now()

	allowPartial := r.policy.AllowPartial && partialRoles[role]

	op := func(ctx context.Context) (*ToolInvocation, error) {
		inv, err := tool.Invoke(ctx, s.tc)
		if err != nil {
			return nil, err
		}
		if inv == nil {
			return nil, ErrNilInvocation
		}
		if item.revision > 0 {
			inv.Turn.Annotate("plan_revision", item.revision)
			if item.reason != "" {
				inv.Turn.Annotate("revision_reason", item.reason)
			}
		}
		return inv, nil
	}

	var partial PartialFactory
	if allowPartial {
		partial = func(werr WorkflowError) *ToolInvocation {
			return r.handleFailure(s, def, werr)
		}
	}

	inv, err := r.executor.Execute(ctx, tool.Name(), op, allowPartial, partial)

	var abort *WorkflowAbort
	var exc *WorkflowException
	switch {
	case errors.As(err, &abort):
		failed := r.handleFailure(s, def, abort.Err)
		r.register(ctx, s, def, failed, start)
		tracing.FailSpan(span, abort)
		observability.RecordRunAbort(string(role))
		r.logger.Error("Turn aborted run", abort, "role", role)
		return nil, abort
	case errors.As(err, &exc):
		inv = r.handleFailure(s, def, exc.Err)
		r.logger.Error("Turn failed, continuing", exc, "role", role)
	case err != nil:
		tracing.FailSpan(span, err)
		return nil, err
	}
	if inv == nil {
		tracing.FailSpan(span, ErrNilInvocation)
		return nil, fmt.Errorf("%w: role %s", ErrNilInvocation, role)
	}

	r.register(ctx, s, def, inv, start)
	return inv, nil
}

// handleFailure builds the synthetic failed invocation for a turn
func (r *SessionRunner) handleFailure(s *runState, def AgentDefinition, werr WorkflowError) *ToolInvocation {
	toolName := def.toolName()
	turn := NewTurn(def.Role(), toolName+"_failed", map[string]any{
		"case_id":  s.tc.CaseID,
		"question": s.tc.Question,
	})
	turn.Annotate("error_code", werr.Code)
	turn.Annotate("retryable", werr.Retryable)
	turn.Annotate("tool", toolName)
	turn.Complete(nil)

	s.tc.Telemetry.AddError(werr)
	s.thread.AddError(werr)

	return &ToolInvocation{
		Turn:    turn,
		Payload: map[string]any{},
		Message: fmt.Sprintf("%s encountered %s: %s", displayRole(def.Role()), werr.Code, werr.Message),
		Metadata: map[string]any{
			"status":     "failed",
			"error_code": werr.Code,
			"retryable":  werr.Retryable,
			"error":      werr.Payload(),
		},
	}
}

// register appends the invocation to the thread and the case memory
func (r *SessionRunner) register(ctx context.Context, s *runState, def AgentDefinition, inv *ToolInvocation, start time.Time) {
	if inv.Turn.ID == "" {
		inv.Turn.ID = newTurnID()
	}
	if inv.Turn.Role == "" {
		inv.Turn.Role = def.Role()
	}
	if inv.Turn.CompletedAt.IsZero() {
		inv.Turn.Complete(inv.Turn.Output)
	}
	inv.Turn.Annotate("tool", def.toolName())

	s.thread.Turns = append(s.thread.Turns, inv.Turn)
	s.executed = append(s.executed, inv.Turn)
	s.tc.Memory.RecordTurn(ctx, inv.Turn)
	if inv.Message != "" {
		s.tc.Memory.AppendConversation(ctx, string(def.Role()), inv.Message, map[string]any{
			"turn_id": inv.Turn.ID,
			"action":  inv.Turn.Action,
		})
	}

	observability.RecordTurn(string(def.Role()), time.Since(start), !inv.Failed())
	r.logger.Debug("Turn registered",
		"role", def.Role(),
		"action", inv.Turn.Action,
		"duration_ms", inv.Turn.DurationMS())
}

// finalize settles the status and records timings
func (r *SessionRunner) finalize(s *runState) {
	if s.thread.Status == "" || s.thread.Status == StatusPending {
		if len(s.thread.Errors) > 0 {
			s.thread.Status = StatusDegraded
		} else {
			s.thread.Status = StatusSucceeded
		}
	}
	s.tc.Telemetry.finalize(s.thread.Status, s.executed)
	s.tc.Memory.MarkUpdated()
	s.thread.Memory = s.tc.Memory.Snapshot()
	s.thread.Touch()
}

func displayRole(role AgentRole) string {
	r := string(role)
	if r == "" {
		return r
	}
	return strings.ToUpper(r[:1]) + r[1:]
}
