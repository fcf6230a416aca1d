package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAPIKey(t *testing.T) {
	v := NewValidator()

	t.Run("valid anthropic key", func(t *testing.T) {
		err := v.ValidateAPIKey("sk-ant-test123", "anthropic")
		assert.NoError(t, err)
	})

	t.Run("invalid anthropic key", func(t *testing.T) {
		err := v.ValidateAPIKey("invalid-key", "anthropic")
		assert.Error(t, err)
	})

	t.Run("valid openai key", func(t *testing.T) {
		err := v.ValidateAPIKey("sk-test123", "openai")
		assert.NoError(t, err)
	})

	t.Run("invalid openai key", func(t *testing.T) {
		err := v.ValidateAPIKey("invalid-key", "openai")
		assert.Error(t, err)
	})

	t.Run("empty key", func(t *testing.T) {
		err := v.ValidateAPIKey("", "anthropic")
		assert.Error(t, err)
	})
}

func TestValidateNames(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateProvider("static"))
	assert.Error(t, v.ValidateProvider("gemini"))

	assert.NoError(t, v.ValidateAutonomyLevel(""))
	assert.NoError(t, v.ValidateAutonomyLevel("LOW"))
	assert.Error(t, v.ValidateAutonomyLevel("max"))

	for _, backend := range []string{"memory", "file", "sqlite"} {
		assert.NoError(t, v.ValidateMemoryBackend(backend))
	}
	assert.Error(t, v.ValidateMemoryBackend(""))

	assert.NoError(t, v.ValidateLogLevel("debug"))
	assert.ErrorContains(t, v.ValidateLogLevel("verbose"), "must be one of")
}

func TestValidateTemperature(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateTemperature(0))
	assert.NoError(t, v.ValidateTemperature(0.7))
	assert.NoError(t, v.ValidateTemperature(1))
	assert.Error(t, v.ValidateTemperature(-0.1))
	assert.Error(t, v.ValidateTemperature(1.5))
}

func TestValidateMaxTokens(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateMaxTokens(2048))
	assert.Error(t, v.ValidateMaxTokens(0))
	assert.Error(t, v.ValidateMaxTokens(300000))
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	t.Run("defaults are valid", func(t *testing.T) {
		assert.Empty(t, v.ValidateConfig(DefaultConfig()))
	})

	t.Run("every problem is reported", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LLM.Profiles = []LLMProfile{
			{ID: "bad-key", Provider: "anthropic", APIKey: "nope"},
			{ID: "bad-provider", Provider: "gemini"},
			{ID: "hot", Provider: "static", Temperature: 2},
		}
		cfg.Orchestrator.TopK = 0
		cfg.Executor.CooldownMS = -1
		cfg.Memory.Backend = "redis"

		errs := v.ValidateConfig(cfg)
		assert.Len(t, errs, 6)
	})
}
