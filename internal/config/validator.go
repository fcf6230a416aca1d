package config

import (
	"fmt"
	"strings"
)

var (
	validProviders      = []string{"anthropic", "openai", "static"}
	validAutonomyLevels = []string{"low", "balanced", "high"}
	validBackends       = []string{"memory", "file", "sqlite"}
	validLogLevels      = []string{"debug", "info", "warn", "error"}
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateProvider validates an LLM provider name
func (v *Validator) ValidateProvider(provider string) error {
	return oneOf("provider", provider, validProviders)
}

// ValidateAutonomyLevel validates an autonomy level. Empty selects balanced.
func (v *Validator) ValidateAutonomyLevel(level string) error {
	if level == "" {
		return nil
	}
	return oneOf("autonomy level", strings.ToLower(level), validAutonomyLevels)
}

// ValidateMemoryBackend validates a case memory backend name
func (v *Validator) ValidateMemoryBackend(backend string) error {
	return oneOf("memory backend", backend, validBackends)
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidatePositive rejects zero and negative budgets
func (v *Validator) ValidatePositive(field string, n int) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", field, n)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	return oneOf("log level", level, validLogLevels)
}

// ValidateConfig performs comprehensive validation and reports every problem
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	for i, profile := range cfg.LLM.Profiles {
		if err := v.ValidateProvider(profile.Provider); err != nil {
			errors = append(errors, fmt.Errorf("LLM profile %d (%s): %w", i, profile.ID, err))
			continue
		}
		if profile.Provider != "static" {
			if err := v.ValidateAPIKey(profile.APIKey, profile.Provider); err != nil {
				errors = append(errors, fmt.Errorf("LLM profile %d (%s): %w", i, profile.ID, err))
			}
		}
		if profile.Temperature != 0 {
			if err := v.ValidateTemperature(profile.Temperature); err != nil {
				errors = append(errors, fmt.Errorf("LLM profile %d (%s): %w", i, profile.ID, err))
			}
		}
		if profile.MaxTokens != 0 {
			if err := v.ValidateMaxTokens(profile.MaxTokens); err != nil {
				errors = append(errors, fmt.Errorf("LLM profile %d (%s): %w", i, profile.ID, err))
			}
		}
	}

	if err := v.ValidateAutonomyLevel(cfg.Orchestrator.AutonomyLevel); err != nil {
		errors = append(errors, err)
	}
	for field, n := range map[string]int{
		"orchestrator.max_rounds":    cfg.Orchestrator.MaxRounds,
		"orchestrator.top_k":         cfg.Orchestrator.TopK,
		"executor.max_attempts":      cfg.Executor.MaxAttempts,
		"executor.failure_threshold": cfg.Executor.FailureThreshold,
	} {
		if err := v.ValidatePositive(field, n); err != nil {
			errors = append(errors, err)
		}
	}
	if cfg.Executor.BaseBackoffMS < 0 {
		errors = append(errors, fmt.Errorf("executor.base_backoff_ms must be >= 0"))
	}
	if cfg.Executor.CooldownMS < 0 {
		errors = append(errors, fmt.Errorf("executor.cooldown_ms must be >= 0"))
	}

	if err := v.ValidateMemoryBackend(cfg.Memory.Backend); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}

func oneOf(what, value string, valid []string) error {
	for _, candidate := range valid {
		if value == candidate {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %q (must be one of: %s)", what, value, strings.Join(valid, ", "))
}
