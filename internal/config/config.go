package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/ahouse2/co-counsel-nexus/pkg/executor"
	"github.com/ahouse2/co-counsel-nexus/pkg/llm"
)

// Config represents the main Co-Counsel configuration
type Config struct {
	// Orchestrator
	Orchestrator OrchestratorConfig `json:"orchestrator" mapstructure:"orchestrator"`

	// Executor retry and circuit breaker settings
	Executor ExecutorConfig `json:"executor" mapstructure:"executor"`

	// Case memory backend
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`

	// LLM profiles
	LLM LLMConfig `json:"llm" mapstructure:"llm"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// OrchestratorConfig holds session defaults
type OrchestratorConfig struct {
	MaxRounds     int    `json:"max_rounds" mapstructure:"max_rounds"`
	AutonomyLevel string `json:"autonomy_level" mapstructure:"autonomy_level"` // low, balanced, high
	TopK          int    `json:"top_k" mapstructure:"top_k"`
	RosterFile    string `json:"roster_file" mapstructure:"roster_file"`
	PolicyFile    string `json:"policy_file" mapstructure:"policy_file"`
	ThreadDir     string `json:"thread_dir" mapstructure:"thread_dir"`
}

// ExecutorConfig holds retry and circuit breaker settings in milliseconds
type ExecutorConfig struct {
	MaxAttempts      int `json:"max_attempts" mapstructure:"max_attempts"`
	BaseBackoffMS    int `json:"base_backoff_ms" mapstructure:"base_backoff_ms"`
	MaxBackoffMS     int `json:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold int `json:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownMS       int `json:"cooldown_ms" mapstructure:"cooldown_ms"`
}

// MemoryConfig selects the case memory backend
type MemoryConfig struct {
	Backend    string `json:"backend" mapstructure:"backend"` // memory, file, sqlite
	Dir        string `json:"dir" mapstructure:"dir"`
	SQLitePath string `json:"sqlite_path" mapstructure:"sqlite_path"`
}

// LLMConfig holds LLM provider profiles
type LLMConfig struct {
	Profiles []LLMProfile `json:"profiles" mapstructure:"profiles"`
}

// LLMProfile represents an LLM provider profile
type LLMProfile struct {
	ID          string  `json:"id" mapstructure:"id"`
	Provider    string  `json:"provider" mapstructure:"provider"` // anthropic, openai, static
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	BaseURL     string  `json:"base_url,omitempty" mapstructure:"base_url"`
	Model       string  `json:"model" mapstructure:"model"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	Priority    int     `json:"priority" mapstructure:"priority"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	exec := executor.DefaultConfig()
	return &Config{
		Orchestrator: OrchestratorConfig{
			MaxRounds:     10,
			AutonomyLevel: "balanced",
			TopK:          5,
		},
		Executor: ExecutorConfig{
			MaxAttempts:      exec.MaxAttempts,
			BaseBackoffMS:    int(exec.BaseBackoff / time.Millisecond),
			MaxBackoffMS:     int(exec.MaxBackoff / time.Millisecond),
			FailureThreshold: exec.FailureThreshold,
			CooldownMS:       int(exec.Cooldown / time.Millisecond),
		},
		Memory: MemoryConfig{
			Backend: "file",
		},
		LLM: LLMConfig{
			Profiles: []LLMProfile{},
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// AuditFile is the JSON-lines audit trail under the data directory
func (c *Config) AuditFile() string {
	return filepath.Join(c.DataDir, "audit.log")
}

// ExecutorSettings converts the executor section to executor.Config
func (c *Config) ExecutorSettings() executor.Config {
	return executor.Config{
		MaxAttempts:      c.Executor.MaxAttempts,
		BaseBackoff:      time.Duration(c.Executor.BaseBackoffMS) * time.Millisecond,
		MaxBackoff:       time.Duration(c.Executor.MaxBackoffMS) * time.Millisecond,
		FailureThreshold: c.Executor.FailureThreshold,
		Cooldown:         time.Duration(c.Executor.CooldownMS) * time.Millisecond,
	}
}

// PrimaryProfile returns the profile with the lowest priority value
func (c *Config) PrimaryProfile() (llm.Profile, error) {
	if len(c.LLM.Profiles) == 0 {
		return llm.Profile{}, fmt.Errorf("no LLM profiles configured")
	}
	profiles := append([]LLMProfile(nil), c.LLM.Profiles...)
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].Priority < profiles[j].Priority
	})
	return profiles[0].Profile(), nil
}

// Profile converts the profile to llm.Profile
func (p LLMProfile) Profile() llm.Profile {
	return llm.Profile{
		Provider:    p.Provider,
		APIKey:      p.APIKey,
		BaseURL:     p.BaseURL,
		Model:       p.Model,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	}
}

// Validate checks if the configuration is valid. requireLLM is false for
// offline runs, which need no credentials.
func (c *Config) Validate(requireLLM bool) error {
	v := NewValidator()

	if requireLLM && len(c.LLM.Profiles) == 0 {
		return fmt.Errorf("no LLM credentials configured: at least one LLM profile is required")
	}
	for i, profile := range c.LLM.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("LLM profile %d: ID is required", i)
		}
		if err := v.ValidateProvider(profile.Provider); err != nil {
			return fmt.Errorf("LLM profile %s: %w", profile.ID, err)
		}
		if profile.Provider != "static" {
			if err := v.ValidateAPIKey(profile.APIKey, profile.Provider); err != nil {
				return fmt.Errorf("LLM profile %s: %w", profile.ID, err)
			}
		}
	}

	if err := v.ValidateAutonomyLevel(c.Orchestrator.AutonomyLevel); err != nil {
		return err
	}
	if err := v.ValidatePositive("orchestrator.max_rounds", c.Orchestrator.MaxRounds); err != nil {
		return err
	}
	if err := v.ValidatePositive("orchestrator.top_k", c.Orchestrator.TopK); err != nil {
		return err
	}
	if err := v.ValidatePositive("executor.max_attempts", c.Executor.MaxAttempts); err != nil {
		return err
	}
	if err := v.ValidatePositive("executor.failure_threshold", c.Executor.FailureThreshold); err != nil {
		return err
	}
	if c.Executor.MaxBackoffMS < c.Executor.BaseBackoffMS {
		return fmt.Errorf("executor.max_backoff_ms must be at least executor.base_backoff_ms")
	}
	if err := v.ValidateMemoryBackend(c.Memory.Backend); err != nil {
		return err
	}
	if err := v.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}

	return nil
}
