package orchestrator

import (
	"fmt"
	"sort"
	"sync"
)

// ToolRegistry maps tool keys to tools. A fallback factory, when set, builds
// tools for keys that were never registered.
type ToolRegistry struct {
	tools    map[string]Tool
	fallback func(key string) Tool
	mu       sync.RWMutex
}

// NewToolRegistry creates an empty registry
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool under key
func (r *ToolRegistry) Register(key string, tool Tool) error {
	if key == "" {
		return fmt.Errorf("tool key is required")
	}
	if tool == nil {
		return fmt.Errorf("tool for %q is nil", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[key]; exists {
		return fmt.Errorf("tool already registered: %s", key)
	}
	r.tools[key] = tool
	return nil
}

// SetFallback installs the factory used by Resolve for unknown keys
func (r *ToolRegistry) SetFallback(factory func(key string) Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = factory
}

// Get returns the tool registered under key
func (r *ToolRegistry) Get(key string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[key]
	if !exists {
		return nil, fmt.Errorf("tool not found: %s", key)
	}
	return tool, nil
}

// Resolve returns the registered tool or one built by the fallback factory.
// Fallback tools are cached so every role sharing a key shares the tool.
func (r *ToolRegistry) Resolve(key string) (Tool, error) {
	if tool, err := r.Get(key); err == nil {
		return tool, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if tool, exists := r.tools[key]; exists {
		return tool, nil
	}
	if r.fallback == nil {
		return nil, fmt.Errorf("tool not found: %s", key)
	}
	tool := r.fallback(key)
	if tool == nil {
		return nil, fmt.Errorf("fallback produced no tool for %s", key)
	}
	r.tools[key] = tool
	return tool, nil
}

// Unregister removes a tool
func (r *ToolRegistry) Unregister(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[key]; !exists {
		return fmt.Errorf("tool not found: %s", key)
	}
	delete(r.tools, key)
	return nil
}

// Keys returns registered keys in sorted order
func (r *ToolRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.tools))
	for k := range r.tools {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the number of registered tools
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
