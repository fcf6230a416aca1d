package orchestrator

import (
	"fmt"
	"strings"
)

// SessionNode pairs a definition with its resolved outgoing edges
type SessionNode struct {
	Definition AgentDefinition
	NextRoles  []AgentRole
	// External lists delegate names that resolve to no node in this graph
	External []string
}

// SessionGraph is the role-delegation structure plus its visitation order
type SessionGraph struct {
	nodes       map[AgentRole]*SessionNode
	entryRole   AgentRole
	order       []AgentRole
	definitions []AgentDefinition
}

// FromDefinitions builds a graph. Delegate names that match no agent fall back
// to their lowercased form; those that still match no role are kept as
// external references on the node.
func FromDefinitions(definitions []AgentDefinition) (*SessionGraph, error) {
	return buildGraph(definitions, false)
}

// FromDefinitionsStrict is FromDefinitions but fails on external references
func FromDefinitionsStrict(definitions []AgentDefinition) (*SessionGraph, error) {
	return buildGraph(definitions, true)
}

func buildGraph(definitions []AgentDefinition, strict bool) (*SessionGraph, error) {
	if len(definitions) == 0 {
		return nil, ErrEmptyDefinitions
	}

	// Validate and index before resolving any edges.
	byName := make(map[string]AgentRole, len(definitions))
	roles := make(map[AgentRole]bool, len(definitions))
	for i, def := range definitions {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("agent definition at index %d is invalid: %w", i, err)
		}
		if roles[def.Role()] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRole, def.Role())
		}
		if _, exists := byName[def.Name()]; exists {
			return nil, fmt.Errorf("duplicate agent name: %s", def.Name())
		}
		roles[def.Role()] = true
		byName[def.Name()] = def.Role()
	}

	g := &SessionGraph{
		nodes:       make(map[AgentRole]*SessionNode, len(definitions)),
		entryRole:   definitions[0].Role(),
		definitions: append([]AgentDefinition(nil), definitions...),
	}

	for _, def := range definitions {
		node := &SessionNode{Definition: def}
		for _, name := range def.Delegates() {
			role, ok := byName[name]
			if !ok {
				role = AgentRole(strings.ToLower(strings.TrimSpace(name)))
				if !roles[role] {
					if strict {
						return nil, fmt.Errorf("%w: %s delegates to %q", ErrUnresolvedDelegate, def.Name(), name)
					}
					node.External = append(node.External, name)
				}
			}
			node.NextRoles = append(node.NextRoles, role)
		}
		g.nodes[def.Role()] = node
	}

	g.order = g.traverse()
	return g, nil
}

// traverse walks breadth-first from the entry role, visiting each role once
func (g *SessionGraph) traverse() []AgentRole {
	visited := map[AgentRole]bool{g.entryRole: true}
	order := []AgentRole{}
	queue := []AgentRole{g.entryRole}

	for len(queue) > 0 {
		role := queue[0]
		queue = queue[1:]
		order = append(order, role)

		for _, next := range g.nodes[role].NextRoles {
			if visited[next] {
				continue
			}
			if _, ok := g.nodes[next]; !ok {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}

	return order
}

// Node returns the node for role
func (g *SessionGraph) Node(role AgentRole) (*SessionNode, bool) {
	n, ok := g.nodes[role]
	return n, ok
}

// HasRole reports whether role is a node of the graph
func (g *SessionGraph) HasRole(role AgentRole) bool {
	_, ok := g.nodes[role]
	return ok
}

// Roles returns every node role in declaration order
func (g *SessionGraph) Roles() []AgentRole {
	out := make([]AgentRole, 0, len(g.definitions))
	for _, def := range g.definitions {
		out = append(out, def.Role())
	}
	return out
}

// EntryRole returns the role of the first definition
func (g *SessionGraph) EntryRole() AgentRole {
	return g.entryRole
}

// Order returns a copy of the breadth-first visitation order
func (g *SessionGraph) Order() []AgentRole {
	return append([]AgentRole(nil), g.order...)
}

// Definitions returns the definitions the graph was built from
func (g *SessionGraph) Definitions() []AgentDefinition {
	return append([]AgentDefinition(nil), g.definitions...)
}

// ExternalReferences lists every unresolved delegate as "name -> delegate"
func (g *SessionGraph) ExternalReferences() []string {
	var refs []string
	for _, def := range g.definitions {
		for _, ext := range g.nodes[def.Role()].External {
			refs = append(refs, def.Name()+" -> "+ext)
		}
	}
	return refs
}
