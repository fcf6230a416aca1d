// Package llm adapts chat completion backends to a single Provider interface.
//
// Usage:
//
//	p, _ := llm.NewProvider(llm.Profile{Provider: "anthropic", APIKey: key})
//	resp, _ := p.Complete(ctx, llm.Request{Model: "claude-sonnet-4-5", Messages: []llm.Message{{Role: "user", Content: "hi"}}})
package llm
