package orchestrator

import "context"

// Operation performs one attempt of a component's work
type Operation func(ctx context.Context) (*ToolInvocation, error)

// PartialFactory builds the degraded invocation used when a failure is absorbed
type PartialFactory func(err WorkflowError) *ToolInvocation

// ComponentExecutor wraps a component invocation with retry and circuit
// breaking. It returns the successful invocation, the partial factory's
// invocation, or a *WorkflowAbort / *WorkflowException error. partial is nil
// when the component may not degrade.
type ComponentExecutor interface {
	Execute(ctx context.Context, component string, op Operation, allowPartial bool, partial PartialFactory) (*ToolInvocation, error)
}

// ExecutorFunc adapts a function to ComponentExecutor
type ExecutorFunc func(ctx context.Context, component string, op Operation, allowPartial bool, partial PartialFactory) (*ToolInvocation, error)

// Execute calls f
func (f ExecutorFunc) Execute(ctx context.Context, component string, op Operation, allowPartial bool, partial PartialFactory) (*ToolInvocation, error) {
	return f(ctx, component, op, allowPartial, partial)
}

// partialRoles are the only roles allowed to continue after a failed turn
var partialRoles = map[AgentRole]bool{
	RoleResearch:  true,
	RoleCoCounsel: true,
}
