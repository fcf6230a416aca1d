package cli

import (
	"fmt"

	"github.com/ahouse2/co-counsel-nexus/internal/config"
	"github.com/ahouse2/co-counsel-nexus/internal/logger"
	"github.com/ahouse2/co-counsel-nexus/pkg/executor"
	"github.com/ahouse2/co-counsel-nexus/pkg/llm"
	"github.com/ahouse2/co-counsel-nexus/pkg/memory"
	"github.com/ahouse2/co-counsel-nexus/pkg/orchestrator"
	"github.com/ahouse2/co-counsel-nexus/pkg/tools"
)

// app is the wired orchestration stack for one command invocation
type app struct {
	orchestrator *orchestrator.Orchestrator
	executor     *executor.Executor
	threads      *orchestrator.FileStore
	memory       memory.Provider
	policy       *config.PolicyWatcher
}

// newApp wires the orchestrator from cfg. Offline runs use the static
// provider and need no credentials.
func newApp(cfg *config.Config, l *logger.Logger, offline bool) (*app, error) {
	if err := cfg.Validate(!offline); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	provider, toolCfg, err := newProvider(cfg, offline)
	if err != nil {
		return nil, err
	}

	registry := orchestrator.NewToolRegistry()
	if err := tools.Register(registry, provider, toolCfg); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	roster, err := orchestrator.NewRosterLoader(l.Fields("roster")).LoadRoster(cfg.Orchestrator.RosterFile, registry)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}

	mem, err := newMemoryProvider(cfg, l)
	if err != nil {
		return nil, err
	}

	threads, err := orchestrator.NewFileStore(cfg.Orchestrator.ThreadDir)
	if err != nil {
		mem.Close()
		return nil, err
	}

	a := &app{
		executor: executor.New(cfg.ExecutorSettings(), executor.WithLogger(l.GetZerolog())),
		threads:  threads,
		memory:   mem,
	}

	opts := []orchestrator.Option{
		orchestrator.WithLogger(l.Fields("orchestrator")),
		orchestrator.WithMaxRounds(cfg.Orchestrator.MaxRounds),
		orchestrator.WithDefaultTopK(cfg.Orchestrator.TopK),
		orchestrator.WithMemoryProvider(mem),
	}
	if cfg.Orchestrator.PolicyFile != "" {
		watcher, err := config.NewPolicyWatcher(config.PolicyWatcherConfig{Path: cfg.Orchestrator.PolicyFile})
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := watcher.Start(); err != nil {
			a.Close()
			return nil, err
		}
		a.policy = watcher
		opts = append(opts, orchestrator.WithPolicySource(watcher))
	}

	a.orchestrator, err = orchestrator.New(roster, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func newProvider(cfg *config.Config, offline bool) (llm.Provider, tools.Config, error) {
	profile := llm.Profile{Provider: "static", Model: "offline"}
	if !offline {
		var err error
		profile, err = cfg.PrimaryProfile()
		if err != nil {
			return nil, tools.Config{}, err
		}
	}

	provider, err := llm.NewProvider(profile)
	if err != nil {
		return nil, tools.Config{}, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	return provider, tools.Config{
		Model:       profile.Model,
		MaxTokens:   profile.MaxTokens,
		Temperature: profile.Temperature,
	}, nil
}

func newMemoryProvider(cfg *config.Config, l *logger.Logger) (memory.Provider, error) {
	switch cfg.Memory.Backend {
	case "memory":
		return memory.NewInMemoryProvider(), nil
	case "sqlite":
		p, err := memory.NewSQLiteProvider(cfg.Memory.SQLitePath, l.GetZerolog())
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite memory: %w", err)
		}
		return p, nil
	default:
		p, err := memory.NewFileProvider(cfg.Memory.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open file memory: %w", err)
		}
		return p, nil
	}
}

// Close stops the policy watcher and closes the memory backend
func (a *app) Close() error {
	if a.policy != nil {
		_ = a.policy.Stop()
	}
	if a.memory != nil {
		return a.memory.Close()
	}
	return nil
}

func openThreadStore(root *rootOptions) (*orchestrator.FileStore, error) {
	return orchestrator.NewFileStore(root.cfg.Orchestrator.ThreadDir)
}
