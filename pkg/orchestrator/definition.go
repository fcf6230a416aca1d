package orchestrator

import (
	"context"
	"fmt"
	"strings"
)

// Tool is the capability a role invokes to produce a turn. Expected failures
// are returned as a WorkflowError; other errors are treated as exceptional.
type Tool interface {
	Name() string
	Invoke(ctx context.Context, tc *ToolContext) (*ToolInvocation, error)
}

// ToolFunc adapts a function to the Tool interface
type ToolFunc struct {
	ToolName string
	Fn       func(ctx context.Context, tc *ToolContext) (*ToolInvocation, error)
}

// Name returns the tool name
func (f ToolFunc) Name() string {
	return f.ToolName
}

// Invoke calls the wrapped function
func (f ToolFunc) Invoke(ctx context.Context, tc *ToolContext) (*ToolInvocation, error) {
	return f.Fn(ctx, tc)
}

// AgentDefinition describes one agent. Values are immutable: the With*
// methods return modified copies.
type AgentDefinition struct {
	name        string
	role        AgentRole
	description string
	tool        Tool
	delegates   []string
}

// NewAgentDefinition creates a definition. Delegates are agent names, not roles.
func NewAgentDefinition(name string, role AgentRole, description string, tool Tool, delegates ...string) AgentDefinition {
	return AgentDefinition{
		name:        name,
		role:        AgentRole(strings.ToLower(string(role))),
		description: description,
		tool:        tool,
		delegates:   append([]string(nil), delegates...),
	}
}

// Name returns the display name
func (d AgentDefinition) Name() string { return d.name }

// Role returns the lookup key
func (d AgentDefinition) Role() AgentRole { return d.role }

// Description returns the description
func (d AgentDefinition) Description() string { return d.description }

// Tool returns the capability
func (d AgentDefinition) Tool() Tool { return d.tool }

// Delegates returns a copy of the delegate names
func (d AgentDefinition) Delegates() []string {
	return append([]string(nil), d.delegates...)
}

// WithDelegates returns a copy with the delegate list replaced
func (d AgentDefinition) WithDelegates(delegates ...string) AgentDefinition {
	d.delegates = append([]string(nil), delegates...)
	return d
}

// WithTool returns a copy bound to a different tool
func (d AgentDefinition) WithTool(tool Tool) AgentDefinition {
	d.tool = tool
	return d
}

// Validate checks that the definition can be placed in a graph. Tools are
// checked when the node is invoked.
func (d AgentDefinition) Validate() error {
	if d.name == "" {
		return fmt.Errorf("agent name is required")
	}
	if d.role == "" {
		return fmt.Errorf("agent role is required for %q", d.name)
	}
	return nil
}

func (d AgentDefinition) toolName() string {
	if d.tool == nil {
		return string(d.role)
	}
	return d.tool.Name()
}
