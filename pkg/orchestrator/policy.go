package orchestrator

import (
	"strings"
)

// PolicyState is the administrator-controlled adjustment applied per run
type PolicyState struct {
	Enabled         bool                   `json:"enabled" yaml:"enabled"`
	SuppressedRoles []AgentRole            `json:"suppressed_roles,omitempty" yaml:"suppressed_roles,omitempty"`
	GraphOverrides  map[AgentRole][]string `json:"graph_overrides,omitempty" yaml:"graph_overrides,omitempty"`
	ElevatedRoles   []AgentRole            `json:"elevated_roles,omitempty" yaml:"elevated_roles,omitempty"`
}

func (p *PolicyState) active() bool {
	return p != nil && p.Enabled
}

func (p *PolicyState) suppressed() map[AgentRole]bool {
	out := make(map[AgentRole]bool, len(p.SuppressedRoles))
	for _, role := range p.SuppressedRoles {
		out[AgentRole(strings.ToLower(string(role)))] = true
	}
	return out
}

// AdjustDefinitions applies suppression and overrides to a roster. When
// suppression would remove every definition the roster is returned unchanged.
func AdjustDefinitions(definitions []AgentDefinition, policy *PolicyState) []AgentDefinition {
	if !policy.active() {
		return append([]AgentDefinition(nil), definitions...)
	}

	suppressed := policy.suppressed()
	nameToRole := make(map[string]AgentRole, len(definitions))
	for _, def := range definitions {
		nameToRole[def.Name()] = def.Role()
	}

	adjusted := make([]AgentDefinition, 0, len(definitions))
	for _, def := range definitions {
		if suppressed[def.Role()] {
			continue
		}
		if targets, ok := policy.GraphOverrides[def.Role()]; ok {
			adjusted = append(adjusted, def.WithDelegates(targets...))
			continue
		}

		kept := make([]string, 0, len(def.Delegates()))
		for _, name := range def.Delegates() {
			if suppressed[AgentRole(strings.ToLower(name))] {
				continue
			}
			if role, ok := nameToRole[name]; ok && suppressed[role] {
				continue
			}
			kept = append(kept, name)
		}
		adjusted = append(adjusted, def.WithDelegates(kept...))
	}

	if len(adjusted) == 0 {
		return append([]AgentDefinition(nil), definitions...)
	}
	return adjusted
}

// BuildSessionGraph returns the base graph, or a rebuilt one when policy is enabled
func BuildSessionGraph(base *SessionGraph, policy *PolicyState) (*SessionGraph, error) {
	if !policy.active() {
		return base, nil
	}
	return FromDefinitions(AdjustDefinitions(base.Definitions(), policy))
}

// ElevateQueue moves elevated roles to the front of the initial order. Roles
// are moved one at a time in declaration order, so the last declared role
// ends up first.
func ElevateQueue(order []AgentRole, policy *PolicyState) []AgentRole {
	out := append([]AgentRole(nil), order...)
	if !policy.active() {
		return out
	}
	for _, elevated := range policy.ElevatedRoles {
		role := AgentRole(strings.ToLower(string(elevated)))
		for i, r := range out {
			if r != role {
				continue
			}
			moved := append([]AgentRole{role}, out[:i]...)
			out = append(moved, out[i+1:]...)
			break
		}
	}
	return out
}
