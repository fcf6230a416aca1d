package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ahouse2/co-counsel-nexus/pkg/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeThread(t *testing.T, output string) *orchestrator.AgentThread {
	t.Helper()
	var thread orchestrator.AgentThread
	require.NoError(t, json.Unmarshal([]byte(output), &thread))
	return &thread
}

func TestRunOffline(t *testing.T) {
	cfgPath := writeConfig(t, nil)

	output, err := execute(t, "--config", cfgPath, "run", "--offline",
		"--case", "case-1", "--question", "Summarize the engagement letter")
	require.NoError(t, err)

	thread := decodeThread(t, output)
	assert.NotEmpty(t, thread.ThreadID)
	assert.Equal(t, "case-1", thread.CaseID)
	assert.Equal(t, orchestrator.StatusSucceeded, thread.Status)
	assert.NotEmpty(t, thread.FinalAnswer)
	assert.NotEmpty(t, thread.Turns)
	assert.Equal(t, "base", thread.Telemetry.Team)

	saved := filepath.Join(filepath.Dir(cfgPath), "threads", thread.ThreadID+".json")
	assert.FileExists(t, saved)
	assert.FileExists(t, filepath.Join(filepath.Dir(cfgPath), "audit.log"))
}

func TestRunResumesThread(t *testing.T) {
	cfgPath := writeConfig(t, nil)

	output, err := execute(t, "--config", cfgPath, "run", "--offline",
		"--case", "case-1", "--question", "First question", "--thread", "thread-42")
	require.NoError(t, err)
	first := decodeThread(t, output)
	assert.Equal(t, "thread-42", first.ThreadID)

	output, err = execute(t, "--config", cfgPath, "run", "--offline",
		"--case", "case-1", "--question", "Follow-up question", "--thread", "thread-42")
	require.NoError(t, err)
	second := decodeThread(t, output)

	assert.Equal(t, "thread-42", second.ThreadID)
	assert.Equal(t, "Follow-up question", second.Question)
	assert.Greater(t, len(second.Turns), len(first.Turns))
}

func TestRunWithPolicyAndBudget(t *testing.T) {
	cfgPath := writeConfig(t, nil)
	policyPath := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(policyPath, []byte(`{
		"enabled": true,
		"suppressed_roles": ["ingestion"],
		"graph_overrides": {"strategy": ["research"]}
	}`), 0644))

	output, err := execute(t, "--config", cfgPath, "run", "--offline",
		"--case", "case-1", "--question", "What now?", "--policy", policyPath)
	require.NoError(t, err)
	thread := decodeThread(t, output)
	assert.Equal(t, []orchestrator.AgentRole{"strategy", "research", "cocounsel", "qa"}, thread.Telemetry.TurnRoles)

	output, err = execute(t, "--config", cfgPath, "run", "--offline",
		"--case", "case-1", "--question", "What now?", "--max-turns", "2")
	require.NoError(t, err)
	assert.Len(t, decodeThread(t, output).Turns, 2)
}

func TestRunErrors(t *testing.T) {
	cfgPath := writeConfig(t, nil)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "missing flags",
			args: []string{"run", "--offline", "--case", "case-1"},
			want: "required flag",
		},
		{
			name: "no credentials",
			args: []string{"run", "--case", "case-1", "--question", "q"},
			want: "no LLM credentials configured",
		},
		{
			name: "bad autonomy",
			args: []string{"run", "--offline", "--case", "case-1", "--question", "q", "--autonomy", "reckless"},
			want: "invalid autonomy level",
		},
		{
			name: "unsafe case id",
			args: []string{"run", "--offline", "--case", "../escape", "--question", "q"},
			want: "run failed",
		},
		{
			name: "missing policy file",
			args: []string{"run", "--offline", "--case", "case-1", "--question", "q", "--policy", "/nonexistent/policy.json"},
			want: "failed to read policy file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"--config", cfgPath}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunFlags(t *testing.T) {
	cmd := newRunCmd(&rootOptions{})
	for _, name := range []string{"case", "question", "thread", "autonomy", "max-turns", "top-k", "policy", "offline", "actor"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}
