// Package executor wraps component invocations with retry, exponential
// backoff and a per-component circuit breaker.
//
// Invariants:
// - Only retryable WorkflowErrors are retried, at most MaxAttempts times.
// - A component whose circuit is open fails immediately with code circuit_open.
// - Final failures degrade through the partial factory when allowed, abort when
//   non-retryable or when the circuit just opened, and raise a recoverable
//   exception otherwise.
//
// Usage:
//
//	exec := executor.New(executor.DefaultConfig())
//	inv, err := exec.Execute(ctx, "research", op, true, partial)
package executor
