package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.configPath)
}

func TestLoaderLoad(t *testing.T) {
	t.Run("load default config when file doesn't exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nonexistent.json")

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, 10, cfg.Orchestrator.MaxRounds)
		assert.Equal(t, "file", cfg.Memory.Backend)
	})

	t.Run("load config from file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{
			"orchestrator": {"max_rounds": 6, "autonomy_level": "low"},
			"memory": {"backend": "sqlite"},
			"llm": {"profiles": [{"id": "main", "provider": "anthropic", "api_key": "sk-ant-x", "model": "claude-sonnet-4"}]},
			"data_dir": "` + filepath.ToSlash(tmpDir) + `"
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, 6, cfg.Orchestrator.MaxRounds)
		assert.Equal(t, "low", cfg.Orchestrator.AutonomyLevel)
		assert.Equal(t, 5, cfg.Orchestrator.TopK, "unset keys keep defaults")
		assert.Equal(t, "sqlite", cfg.Memory.Backend)
		require.Len(t, cfg.LLM.Profiles, 1)
		assert.Equal(t, "sk-ant-x", cfg.LLM.Profiles[0].APIKey)
		assert.Equal(t, filepath.Join(tmpDir, "threads"), cfg.Orchestrator.ThreadDir)
		assert.Equal(t, filepath.Join(tmpDir, "memory.db"), cfg.Memory.SQLitePath)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"orchestrator": {"max_rounds": 6}}`), 0644))
		t.Setenv("COCOUNSEL_ORCHESTRATOR_MAX_ROUNDS", "12")
		t.Setenv("COCOUNSEL_MEMORY_BACKEND", "memory")

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, 12, cfg.Orchestrator.MaxRounds)
		assert.Equal(t, "memory", cfg.Memory.Backend)
	})

	t.Run("set default paths", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{}`), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.NotEmpty(t, cfg.DataDir)
		assert.NotEmpty(t, cfg.Logging.File)
		assert.NotEmpty(t, cfg.Orchestrator.ThreadDir)
		assert.NotEmpty(t, cfg.Memory.Dir)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "invalid.json")
		require.NoError(t, os.WriteFile(configPath, []byte("invalid json"), 0644))

		_, err := NewLoader(configPath).Load()

		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	t.Run("save config to file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		cfg := DefaultConfig()
		cfg.DataDir = tmpDir
		cfg.Orchestrator.AutonomyLevel = "high"
		cfg.LLM.Profiles = []LLMProfile{{ID: "main", Provider: "openai", APIKey: "sk-test", Model: "gpt-4o"}}

		require.NoError(t, NewLoader(configPath).Save(cfg))

		_, err := os.Stat(configPath)
		require.NoError(t, err)

		loaded, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, "high", loaded.Orchestrator.AutonomyLevel)
		require.Len(t, loaded.LLM.Profiles, 1)
		assert.Equal(t, "gpt-4o", loaded.LLM.Profiles[0].Model)
	})

	t.Run("create directory if not exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "subdir", "config.json")

		require.NoError(t, NewLoader(configPath).Save(DefaultConfig()))

		_, err := os.Stat(filepath.Dir(configPath))
		assert.NoError(t, err)
	})
}

func TestLoaderGetConfigPath(t *testing.T) {
	t.Run("custom path", func(t *testing.T) {
		loader := NewLoader("/custom/path/config.json")
		assert.Equal(t, "/custom/path/config.json", loader.GetConfigPath())
	})

	t.Run("default path", func(t *testing.T) {
		path := NewLoader("").GetConfigPath()
		assert.NotEmpty(t, path)
		assert.Contains(t, path, ".cocounsel")
	})
}
