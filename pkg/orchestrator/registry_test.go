package orchestrator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolRegistry(t *testing.T) {
	registry := NewToolRegistry()

	require.NoError(t, registry.Register("research", newScripted("research")))
	require.NoError(t, registry.Register("qa", newScripted("qa")))

	assert.ErrorContains(t, registry.Register("qa", newScripted("qa")), "already registered")
	assert.Error(t, registry.Register("", newScripted("x")))
	assert.Error(t, registry.Register("x", nil))

	tool, err := registry.Get("research")
	require.NoError(t, err)
	assert.Equal(t, "research", tool.Name())

	_, err = registry.Get("missing")
	assert.ErrorContains(t, err, "tool not found")

	assert.Equal(t, []string{"qa", "research"}, registry.Keys())
	assert.Equal(t, 2, registry.Count())

	require.NoError(t, registry.Unregister("qa"))
	assert.Error(t, registry.Unregister("qa"))
	assert.Equal(t, 1, registry.Count())
}

func TestToolRegistryResolve(t *testing.T) {
	registry := NewToolRegistry()

	_, err := registry.Resolve("statutes")
	assert.Error(t, err, "no fallback installed")

	built := 0
	registry.SetFallback(func(key string) Tool {
		built++
		if key == "broken" {
			return nil
		}
		return newScripted(key)
	})

	first, err := registry.Resolve("statutes")
	require.NoError(t, err)
	second, err := registry.Resolve("statutes")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, built)

	_, err = registry.Resolve("broken")
	assert.ErrorContains(t, err, "fallback produced no tool")
	assert.NotContains(t, registry.Keys(), "broken")
}

func TestToolRegistryConcurrentResolve(t *testing.T) {
	registry := NewToolRegistry()
	registry.SetFallback(func(key string) Tool { return newScripted(key) })

	var wg sync.WaitGroup
	tools := make([]Tool, 16)
	for i := range tools {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tool, err := registry.Resolve("forensics")
			if err == nil {
				tools[i] = tool
			}
		}(i)
	}
	wg.Wait()

	for _, tool := range tools {
		assert.Same(t, tools[0], tool)
	}
	assert.Equal(t, 1, registry.Count())
}
