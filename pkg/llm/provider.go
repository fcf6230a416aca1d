package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahouse2/co-counsel-nexus/internal/observability"
	"github.com/ahouse2/co-counsel-nexus/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Provider is a chat completion backend
type Provider interface {
	// Complete sends one request and returns the assistant text
	Complete(ctx context.Context, request Request) (*Response, error)

	// Name returns the provider name
	Name() string
}

// Message is one chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request contains the parameters for a completion
type Request struct {
	// Tag names the calling component. Remote providers ignore it.
	Tag          string
	Model        string
	SystemPrompt string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
}

// Response contains the completion text
type Response struct {
	Content string
	Usage   *TokenUsage
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Profile selects and authenticates a provider
type Profile struct {
	Provider    string  `json:"provider" mapstructure:"provider"` // "anthropic", "openai", "static"
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	BaseURL     string  `json:"base_url,omitempty" mapstructure:"base_url"`
	Model       string  `json:"model" mapstructure:"model"`
	MaxTokens   int     `json:"max_tokens,omitempty" mapstructure:"max_tokens"`
	Temperature float64 `json:"temperature,omitempty" mapstructure:"temperature"`
}

// DefaultMaxTokens is used when a request sets no limit
const DefaultMaxTokens = 2048

// ErrEmptyResponse is returned when a provider produced no text
var ErrEmptyResponse = errors.New("provider returned an empty response")

// NewProvider creates a provider for profile. Every provider is wrapped with
// tracing and metrics.
func NewProvider(profile Profile) (Provider, error) {
	var p Provider
	switch profile.Provider {
	case "anthropic":
		if profile.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an api key")
		}
		p = NewAnthropicProvider(profile.APIKey, profile.BaseURL)
	case "openai":
		if profile.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an api key")
		}
		p = NewOpenAIProvider(profile.APIKey, profile.BaseURL)
	case "static", "offline":
		p = NewStaticProvider()
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
	return Instrument(p), nil
}

// Instrument wraps p with a span and call metrics
func Instrument(p Provider) Provider {
	if _, ok := p.(*instrumented); ok {
		return p
	}
	return &instrumented{next: p}
}

type instrumented struct {
	next Provider
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) Complete(ctx context.Context, request Request) (*Response, error) {
	ctx, span := tracing.StartSpan(ctx, "cocounsel.llm", "llm.complete",
		attribute.String("provider", i.next.Name()),
		attribute.String("model", request.Model),
		attribute.String("tag", request.Tag),
	)
	defer span.End()

	start := time.Now()
	resp, err := i.next.Complete(ctx, request)
	if err == nil && (resp == nil || strings.TrimSpace(resp.Content) == "") {
		err = ErrEmptyResponse
	}
	observability.RecordLLMCall(i.next.Name(), time.Since(start), err == nil)
	if err != nil {
		tracing.FailSpan(span, err)
		return nil, err
	}
	if resp.Usage != nil {
		span.SetAttributes(
			attribute.Int("input_tokens", resp.Usage.InputTokens),
			attribute.Int("output_tokens", resp.Usage.OutputTokens),
		)
	}
	return resp, nil
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrEmptyResponse) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"econnreset", "etimedout", "connection reset", "timeout",
		"429", "rate limit", "overloaded",
		"500", "502", "503", "504", "529",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
