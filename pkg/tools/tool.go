package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/ahouse2/co-counsel-nexus/pkg/llm"
	"github.com/ahouse2/co-counsel-nexus/pkg/orchestrator"
	"github.com/xeipuuv/gojsonschema"
)

const (
	// CodeLLMError marks a failed completion call
	CodeLLMError = "llm_error"
	// CodeInvalidResponse marks a completion that was not usable JSON
	CodeInvalidResponse = "invalid_response"
)

// Config selects the model used by every role tool
type Config struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// RoleTool is an LLM-backed orchestrator.Tool
type RoleTool struct {
	key      string
	prompt   string
	provider llm.Provider
	cfg      Config
	schema   *gojsonschema.Schema
}

// NewRoleTool creates the tool for key. Keys with a built-in prompt use it;
// others get the generic team prompt.
func NewRoleTool(key string, provider llm.Provider, cfg Config) (*RoleTool, error) {
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}

	prompt, ok := rolePrompts[key]
	if !ok {
		prompt = fmt.Sprintf(genericPrompt, strings.ReplaceAll(key, "_", " "))
	}

	t := &RoleTool{key: key, prompt: prompt, provider: provider, cfg: cfg}
	if src, ok := outputSchemas[key]; ok {
		schema, err := compileSchema(src)
		if err != nil {
			return nil, err
		}
		t.schema = schema
	}
	return t, nil
}

// Name returns the tool key
func (t *RoleTool) Name() string {
	return t.key
}

// Invoke asks the model for this role's output. The returned turn leaves the
// role empty for the runner to stamp.
func (t *RoleTool) Invoke(ctx context.Context, tc *orchestrator.ToolContext) (*orchestrator.ToolInvocation, error) {
	input := map[string]any{
		"case_id":  tc.CaseID,
		"question": tc.Question,
		"top_k":    tc.TopK,
	}
	turn := orchestrator.NewTurn("", t.key, input)

	resp, err := t.provider.Complete(ctx, llm.Request{
		Tag:          t.key,
		Model:        t.cfg.Model,
		SystemPrompt: t.prompt + "\n\n" + jsonInstruction,
		Messages:     []llm.Message{{Role: "user", Content: t.userMessage(tc)}},
		Temperature:  t.cfg.Temperature,
		MaxTokens:    t.cfg.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, orchestrator.WorkflowError{
			Code:      CodeLLMError,
			Message:   err.Error(),
			Retryable: llm.IsRetryableError(err),
		}
	}

	payload, err := ExtractJSON(resp.Content)
	if err == nil {
		err = validateOutput(t.schema, payload)
	}
	if err != nil {
		return nil, orchestrator.WorkflowError{
			Code:      CodeInvalidResponse,
			Message:   fmt.Sprintf("%s: %v", t.key, err),
			Retryable: true,
		}
	}

	if resp.Usage != nil {
		turn.Metrics["input_tokens"] = float64(resp.Usage.InputTokens)
		turn.Metrics["output_tokens"] = float64(resp.Usage.OutputTokens)
	}
	turn.Complete(payload)

	return &orchestrator.ToolInvocation{
		Turn:     turn,
		Payload:  payload,
		Message:  t.summarize(payload),
		Metadata: t.metadata(payload),
	}, nil
}

func (t *RoleTool) userMessage(tc *orchestrator.ToolContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Case: %s\nQuestion: %s\n", tc.CaseID, tc.Question)
	if tc.TopK > 0 {
		fmt.Fprintf(&b, "Consider at most %d sources.\n", tc.TopK)
	}
	if tc.Memory != nil {
		if plan := tc.Memory.Plan(); len(plan) > 0 {
			if data, err := json.Marshal(plan); err == nil {
				fmt.Fprintf(&b, "Current plan: %s\n", data)
			}
		}
	}
	return b.String()
}

func (t *RoleTool) metadata(payload map[string]any) map[string]any {
	md := map[string]any{"status": "succeeded", "tool": t.key}
	switch t.key {
	case "research":
		citations, _ := payload["citations"].([]any)
		md["citation_count"] = len(citations)
	case "qa":
		if avg, ok := scoreAverage(payload["scores"]); ok {
			md["qa_average"] = avg
		}
	}
	return md
}

func (t *RoleTool) summarize(payload map[string]any) string {
	switch t.key {
	case "research":
		answer, _ := payload["answer"].(string)
		citations, _ := payload["citations"].([]any)
		return fmt.Sprintf("%s (%d citations)", truncate(answer, 280), len(citations))
	case "qa":
		if avg, ok := scoreAverage(payload["scores"]); ok {
			return fmt.Sprintf("QA average %.2f", avg)
		}
	case "ingestion":
		docs, _ := payload["documents"].([]any)
		return fmt.Sprintf("Ingested %d documents", len(docs))
	}
	return fmt.Sprintf("%s completed", t.key)
}

// ExtractJSON decodes the first JSON object in text, tolerating code fences
// and prose around it
func ExtractJSON(text string) (map[string]any, error) {
	start := strings.Index(text, "{")
	if start < 0 {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var payload map[string]any
	if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return payload, nil
}

func scoreAverage(raw any) (float64, bool) {
	scores, ok := raw.(map[string]any)
	if !ok || len(scores) == 0 {
		return 0, false
	}
	var sum float64
	var n int
	for _, v := range scores {
		if f, ok := v.(float64); ok {
			sum += f
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return math.Round(sum/float64(n)*100) / 100, true
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

var _ orchestrator.Tool = (*RoleTool)(nil)
