package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ahouse2/co-counsel-nexus/internal/observability"
	"github.com/ahouse2/co-counsel-nexus/pkg/orchestrator"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// LoadPolicyFile reads a policy state JSON document
func LoadPolicyFile(path string) (*orchestrator.PolicyState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	var state orchestrator.PolicyState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	return &state, nil
}

// PolicyWatcher serves the policy stored in a file and reloads it when the
// file changes. A failed reload keeps the last good policy.
type PolicyWatcher struct {
	path               string
	watcher            *fsnotify.Watcher
	stabilityThreshold time.Duration
	onChange           func(*orchestrator.PolicyState)

	mu      sync.RWMutex
	current *orchestrator.PolicyState

	debounceMu sync.Mutex
	timer      *time.Timer
	done       chan struct{}
	stopOnce   sync.Once
}

// PolicyWatcherConfig holds configuration for the watcher
type PolicyWatcherConfig struct {
	Path               string
	StabilityThreshold time.Duration
	OnChange           func(*orchestrator.PolicyState)
}

// NewPolicyWatcher loads the policy file and prepares the watcher. A missing
// file starts with no policy.
func NewPolicyWatcher(config PolicyWatcherConfig) (*PolicyWatcher, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("policy file path is required")
	}
	if config.StabilityThreshold == 0 {
		config.StabilityThreshold = 100 * time.Millisecond
	}

	path, err := filepath.Abs(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve policy path: %w", err)
	}

	w := &PolicyWatcher{
		path:               path,
		stabilityThreshold: config.StabilityThreshold,
		onChange:           config.OnChange,
		done:               make(chan struct{}),
	}
	if _, err := os.Stat(path); err == nil {
		state, err := LoadPolicyFile(path)
		if err != nil {
			return nil, err
		}
		w.current = state
	}
	return w, nil
}

// Current returns the active policy, or nil when none is loaded
func (w *PolicyWatcher) Current() *orchestrator.PolicyState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.current == nil {
		return nil
	}
	state := *w.current
	return &state
}

// Start watches the policy file's directory so atomic replaces are seen
func (w *PolicyWatcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch policy directory: %w", err)
	}
	w.watcher = watcher

	go w.eventLoop()

	log.Info().Str("path", w.path).Msg("Policy watcher started")
	return nil
}

// Stop stops the watcher
func (w *PolicyWatcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.debounceMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.debounceMu.Unlock()

	if w.watcher == nil {
		return nil
	}
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	log.Info().Msg("Policy watcher stopped")
	return nil
}

func (w *PolicyWatcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			w.debounce()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Policy watcher error")

		case <-w.done:
			return
		}
	}
}

// debounce collapses bursts of events into one reload
func (w *PolicyWatcher) debounce() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.stabilityThreshold, func() {
		select {
		case <-w.done:
			return
		default:
			w.Reload()
		}
	})
}

// Reload rereads the policy file. A removed file clears the policy.
func (w *PolicyWatcher) Reload() {
	ctx := context.Background()

	if _, err := os.Stat(w.path); os.IsNotExist(err) {
		w.set(nil)
		observability.RecordPolicyAudit(ctx, w.path, "cleared", nil)
		log.Info().Str("path", w.path).Msg("Policy file removed, policy cleared")
		return
	}

	state, err := LoadPolicyFile(w.path)
	if err != nil {
		observability.RecordPolicyAudit(ctx, w.path, "rejected", map[string]any{"error": err.Error()})
		log.Error().Err(err).Str("path", w.path).Msg("Policy reload failed, keeping previous policy")
		return
	}

	w.set(state)
	observability.RecordPolicyAudit(ctx, w.path, "reloaded", map[string]any{
		"enabled":    state.Enabled,
		"suppressed": len(state.SuppressedRoles),
		"elevated":   len(state.ElevatedRoles),
	})
	log.Info().Str("path", w.path).Bool("enabled", state.Enabled).Msg("Policy reloaded")
}

func (w *PolicyWatcher) set(state *orchestrator.PolicyState) {
	w.mu.Lock()
	w.current = state
	w.mu.Unlock()

	if w.onChange != nil {
		w.onChange(state)
	}
}

var _ orchestrator.PolicySource = (*PolicyWatcher)(nil)
