package orchestrator

import (
	"fmt"
	"sort"
)

// Roster holds the bound agent definitions of every team
type Roster struct {
	teams map[TeamName][]AgentDefinition
}

// NewRoster creates a roster from already bound definitions. The base team
// is required.
func NewRoster(teams map[TeamName][]AgentDefinition) (*Roster, error) {
	if len(teams[TeamBase]) == 0 {
		return nil, fmt.Errorf("roster: %w for the %s team", ErrEmptyDefinitions, TeamBase)
	}
	r := &Roster{teams: make(map[TeamName][]AgentDefinition, len(teams))}
	for name, defs := range teams {
		r.teams[name] = append([]AgentDefinition(nil), defs...)
	}
	return r, nil
}

// BindRoster resolves every agent's tool from registry
func BindRoster(file *RosterFile, registry *ToolRegistry) (*Roster, error) {
	if file == nil {
		return nil, fmt.Errorf("roster file is nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}

	teams := make(map[TeamName][]AgentDefinition, len(file.Teams))
	for team, specs := range file.Teams {
		defs := make([]AgentDefinition, 0, len(specs))
		for _, spec := range specs {
			key := spec.Tool
			if key == "" {
				key = spec.Role
			}
			tool, err := registry.Resolve(key)
			if err != nil {
				return nil, fmt.Errorf("team %s agent %q: %w", team, spec.Name, err)
			}
			defs = append(defs, NewAgentDefinition(spec.Name, AgentRole(spec.Role), spec.Description, tool, spec.Delegates...))
		}
		teams[TeamName(team)] = defs
	}
	return NewRoster(teams)
}

// Team returns a copy of a team's definitions
func (r *Roster) Team(name TeamName) ([]AgentDefinition, bool) {
	defs, ok := r.teams[name]
	if !ok {
		return nil, false
	}
	return append([]AgentDefinition(nil), defs...), true
}

// Base returns the base pipeline definitions
func (r *Roster) Base() []AgentDefinition {
	defs, _ := r.Team(TeamBase)
	return defs
}

// TeamNames returns every team name in sorted order
func (r *Roster) TeamNames() []TeamName {
	names := make([]TeamName, 0, len(r.teams))
	for name := range r.teams {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Graphs builds one session graph per team
func (r *Roster) Graphs() (map[TeamName]*SessionGraph, error) {
	graphs := make(map[TeamName]*SessionGraph, len(r.teams))
	for name, defs := range r.teams {
		g, err := FromDefinitions(defs)
		if err != nil {
			return nil, fmt.Errorf("team %s: %w", name, err)
		}
		graphs[name] = g
	}
	return graphs, nil
}
