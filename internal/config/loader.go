package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	appDir         = ".cocounsel"
	configFileName = "cocounsel.json"
	envPrefix      = "COCOUNSEL"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file. Environment variables such as
// COCOUNSEL_ORCHESTRATOR_MAX_ROUNDS override file values.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return nil, fmt.Errorf("failed to resolve config path")
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v, DefaultConfig())

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.applyDefaultPaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindDefaults registers every scalar key so AutomaticEnv can override keys
// that are absent from the file
func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("orchestrator.max_rounds", cfg.Orchestrator.MaxRounds)
	v.SetDefault("orchestrator.autonomy_level", cfg.Orchestrator.AutonomyLevel)
	v.SetDefault("orchestrator.top_k", cfg.Orchestrator.TopK)
	v.SetDefault("orchestrator.roster_file", cfg.Orchestrator.RosterFile)
	v.SetDefault("orchestrator.policy_file", cfg.Orchestrator.PolicyFile)
	v.SetDefault("orchestrator.thread_dir", cfg.Orchestrator.ThreadDir)
	v.SetDefault("executor.max_attempts", cfg.Executor.MaxAttempts)
	v.SetDefault("executor.base_backoff_ms", cfg.Executor.BaseBackoffMS)
	v.SetDefault("executor.max_backoff_ms", cfg.Executor.MaxBackoffMS)
	v.SetDefault("executor.failure_threshold", cfg.Executor.FailureThreshold)
	v.SetDefault("executor.cooldown_ms", cfg.Executor.CooldownMS)
	v.SetDefault("memory.backend", cfg.Memory.Backend)
	v.SetDefault("memory.dir", cfg.Memory.Dir)
	v.SetDefault("memory.sqlite_path", cfg.Memory.SQLitePath)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.max_size", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_age", cfg.Logging.MaxAge)
	v.SetDefault("logging.compress", cfg.Logging.Compress)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)
	v.SetDefault("data_dir", cfg.DataDir)
}

func (c *Config) applyDefaultPaths() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, appDir)
	}
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(c.DataDir, "cocounsel.log")
	}
	if c.Orchestrator.ThreadDir == "" {
		c.Orchestrator.ThreadDir = filepath.Join(c.DataDir, "threads")
	}
	if c.Memory.Dir == "" {
		c.Memory.Dir = filepath.Join(c.DataDir, "memory")
	}
	if c.Memory.SQLitePath == "" {
		c.Memory.SQLitePath = filepath.Join(c.DataDir, "memory.db")
	}
	return nil
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to resolve config path")
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("orchestrator", cfg.Orchestrator)
	v.Set("executor", cfg.Executor)
	v.Set("memory", cfg.Memory)
	v.Set("llm", cfg.LLM)
	v.Set("logging", cfg.Logging)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
		} else {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, appDir, configFileName)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
