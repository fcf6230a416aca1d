package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func def(name string, role AgentRole, delegates ...string) AgentDefinition {
	return NewAgentDefinition(name, role, "", newScripted(string(role)), delegates...)
}

func TestFromDefinitions(t *testing.T) {
	t.Run("base pipeline order", func(t *testing.T) {
		g, err := FromDefinitions(newPipeline().definitions())
		require.NoError(t, err)

		assert.Equal(t, RoleStrategy, g.EntryRole())
		assert.Equal(t, []AgentRole{RoleStrategy, RoleIngestion, RoleResearch, RoleCoCounsel, RoleQA}, g.Order())
		node, ok := g.Node(RoleStrategy)
		require.True(t, ok)
		assert.Equal(t, []AgentRole{RoleIngestion}, node.NextRoles)
		assert.Empty(t, g.ExternalReferences())
	})

	t.Run("deterministic", func(t *testing.T) {
		defs := []AgentDefinition{
			def("Lead", "lead", "B", "C"),
			def("B", "b", "D"),
			def("C", "c", "D"),
			def("D", "d"),
		}
		first, err := FromDefinitions(defs)
		require.NoError(t, err)
		for i := 0; i < 20; i++ {
			g, err := FromDefinitions(defs)
			require.NoError(t, err)
			assert.Equal(t, first.Order(), g.Order())
			assert.Equal(t, first.EntryRole(), g.EntryRole())
		}
		assert.Equal(t, []AgentRole{"lead", "b", "c", "d"}, first.Order())
	})

	t.Run("cycles visit each role once", func(t *testing.T) {
		g, err := FromDefinitions([]AgentDefinition{
			def("A", "a", "B"),
			def("B", "b", "A", "B"),
		})
		require.NoError(t, err)
		assert.Equal(t, []AgentRole{"a", "b"}, g.Order())
	})

	t.Run("unreachable roles are excluded from order", func(t *testing.T) {
		g, err := FromDefinitions([]AgentDefinition{
			def("A", "a"),
			def("Island", "island"),
		})
		require.NoError(t, err)
		assert.Equal(t, []AgentRole{"a"}, g.Order())
		assert.True(t, g.HasRole("island"))
		assert.Equal(t, []AgentRole{"a", "island"}, g.Roles())
	})

	t.Run("delegates fall back to lowercased names", func(t *testing.T) {
		g, err := FromDefinitions([]AgentDefinition{
			def("Lead", "lead", "Research", "QA Oversight Lead"),
			def("Researcher", "research"),
		})
		require.NoError(t, err)

		node, _ := g.Node("lead")
		assert.Equal(t, []AgentRole{"research", "qa oversight lead"}, node.NextRoles)
		assert.Equal(t, []string{"QA Oversight Lead"}, node.External)
		assert.Equal(t, []string{"Lead -> QA Oversight Lead"}, g.ExternalReferences())
		assert.Equal(t, []AgentRole{"lead", "research"}, g.Order())
	})

	t.Run("roles are lowercased", func(t *testing.T) {
		g, err := FromDefinitions([]AgentDefinition{def("Lead", "Strategy")})
		require.NoError(t, err)
		assert.Equal(t, RoleStrategy, g.EntryRole())
	})
}

func TestFromDefinitionsErrors(t *testing.T) {
	tests := []struct {
		name    string
		defs    []AgentDefinition
		wantErr error
	}{
		{"empty", nil, ErrEmptyDefinitions},
		{"duplicate role", []AgentDefinition{def("A", "a"), def("B", "a")}, ErrDuplicateRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := FromDefinitions(tt.defs)
			assert.Nil(t, g)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("duplicate name", func(t *testing.T) {
		_, err := FromDefinitions([]AgentDefinition{def("A", "a"), def("A", "b")})
		assert.ErrorContains(t, err, "duplicate agent name")
	})

	t.Run("missing role", func(t *testing.T) {
		_, err := FromDefinitions([]AgentDefinition{NewAgentDefinition("A", "", "", nil)})
		assert.ErrorContains(t, err, "role is required")
	})
}

func TestFromDefinitionsStrict(t *testing.T) {
	_, err := FromDefinitionsStrict([]AgentDefinition{
		def("Lead", "lead", "Ghost"),
	})
	assert.ErrorIs(t, err, ErrUnresolvedDelegate)

	g, err := FromDefinitionsStrict([]AgentDefinition{
		def("Lead", "lead", "Helper", "helper"),
		def("Helper", "helper"),
	})
	require.NoError(t, err)
	assert.Equal(t, []AgentRole{"lead", "helper"}, g.Order())
}

func TestAgentDefinitionIsImmutable(t *testing.T) {
	d := NewAgentDefinition("Lead", "lead", "", nil, "A")
	delegates := d.Delegates()
	delegates[0] = "mutated"

	changed := d.WithDelegates("B")

	assert.Equal(t, []string{"A"}, d.Delegates())
	assert.Equal(t, []string{"B"}, changed.Delegates())
	assert.Equal(t, "lead", d.toolName(), "unbound definitions name their tool after the role")
}
