package tools

import (
	"fmt"
	"sort"

	"github.com/ahouse2/co-counsel-nexus/pkg/llm"
	"github.com/ahouse2/co-counsel-nexus/pkg/orchestrator"
	"github.com/rs/zerolog/log"
)

// BuiltinKeys lists the tool keys with dedicated prompts
func BuiltinKeys() []string {
	keys := make([]string, 0, len(rolePrompts))
	for k := range rolePrompts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Register adds every built-in role tool to registry and installs a fallback
// that builds generic tools for team-specific roles
func Register(registry *orchestrator.ToolRegistry, provider llm.Provider, cfg Config) error {
	for _, key := range BuiltinKeys() {
		tool, err := NewRoleTool(key, provider, cfg)
		if err != nil {
			return fmt.Errorf("failed to build %s tool: %w", key, err)
		}
		if err := registry.Register(key, tool); err != nil {
			return err
		}
	}

	registry.SetFallback(func(key string) orchestrator.Tool {
		tool, err := NewRoleTool(key, provider, cfg)
		if err != nil {
			log.Error().Err(err).Str("tool", key).Msg("Failed to build fallback tool")
			return nil
		}
		return tool
	})

	log.Debug().Int("count", registry.Count()).Str("provider", provider.Name()).Msg("Registered role tools")
	return nil
}
