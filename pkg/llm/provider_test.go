package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    string
		wantErr bool
	}{
		{"anthropic", Profile{Provider: "anthropic", APIKey: "sk-ant"}, "anthropic", false},
		{"openai", Profile{Provider: "openai", APIKey: "sk-oa"}, "openai", false},
		{"static", Profile{Provider: "static"}, "static", false},
		{"offline alias", Profile{Provider: "offline"}, "static", false},
		{"missing key", Profile{Provider: "anthropic"}, "", true},
		{"unknown", Profile{Provider: "gemini", APIKey: "k"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.profile)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("429 Too Many Requests"), true},
		{errors.New("rate limit exceeded"), true},
		{errors.New("POST /v1/messages: 529 Overloaded"), true},
		{errors.New("503 Service Unavailable"), true},
		{errors.New("read: connection reset by peer"), true},
		{fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{ErrEmptyResponse, true},
		{context.Canceled, false},
		{errors.New("400 invalid request"), false},
		{errors.New("401 unauthorized"), false},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}

func TestStaticProviderScripts(t *testing.T) {
	p := NewStaticProvider().
		Script("research", `{"answer": "a", "citations": []}`, `{"answer": "b", "citations": [{"source": "x"}]}`).
		Fail("qa", errors.New("503 unavailable"))
	ctx := context.Background()

	first, err := p.Complete(ctx, Request{Tag: "research"})
	require.NoError(t, err)
	assert.Contains(t, first.Content, `"a"`)

	second, err := p.Complete(ctx, Request{Tag: "research"})
	require.NoError(t, err)
	assert.Contains(t, second.Content, `"b"`)

	third, err := p.Complete(ctx, Request{Tag: "research"})
	require.NoError(t, err)
	assert.Equal(t, second.Content, third.Content, "last response repeats")
	assert.Equal(t, 3, p.Calls("research"))

	_, err = p.Complete(ctx, Request{Tag: "qa"})
	assert.Error(t, err)
	resp, err := p.Complete(ctx, Request{Tag: "qa"})
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "scores")

	resp, err = p.Complete(ctx, Request{Tag: "dev_engineer"})
	require.NoError(t, err)
	assert.Equal(t, offlineFallback, resp.Content)
}

func TestInstrumentRejectsEmptyResponse(t *testing.T) {
	p := Instrument(NewStaticProvider().Script("strategy", "   "))

	_, err := p.Complete(context.Background(), Request{Tag: "strategy"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Same(t, p, Instrument(p))
}

func TestStaticProviderHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStaticProvider().Complete(ctx, Request{Tag: "research"})
	assert.ErrorIs(t, err, context.Canceled)
}
