// Package orchestrator runs a case question through a graph of agent roles.
//
// Invariants:
// - Roles are unique within a graph; the first definition is the entry role.
// - Turns execute one at a time and are appended to the thread in execution order.
// - A re-plan puts strategy and the triggering role at the front of the queue.
// - needs_privilege_review is never downgraded once set.
// - A WorkflowAbort returns no thread; the synthetic failed turn is still recorded.
//
// Usage:
//
//	registry := orchestrator.NewToolRegistry()
//	tools.Register(registry, provider, "claude-sonnet-4-5")
//	roster, _ := orchestrator.DefaultRoster(registry)
//	orch, _ := orchestrator.New(roster, orchestrator.WithMaxRounds(12))
//	thread, err := orch.Run(ctx, orchestrator.RunRequest{
//		CaseID:   "case-1",
//		Question: "Summarize the indemnification exposure",
//		Executor: executor.New(executor.DefaultConfig()),
//	})
package orchestrator
