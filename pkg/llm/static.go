package llm

import (
	"context"
	"sync"
)

// offlineResponses are the canned completions used for dry runs
var offlineResponses = map[string]string{
	"strategy":  `{"objectives": ["Identify controlling authority", "Assess exposure"], "steps": ["ingest", "research", "draft", "review"]}`,
	"ingestion": `{"documents": [{"id": "doc-1", "title": "Engagement agreement"}, {"id": "doc-2", "title": "Correspondence log"}]}`,
	"research": `{"answer": "Offline answer: the agreement's indemnification clause limits exposure to direct damages.", "citations": [` +
		`{"source": "doc-1", "excerpt": "Section 9.2 limits liability to direct damages"}, ` +
		`{"source": "doc-2", "excerpt": "Counsel confirmed the cap in writing"}]}`,
	"forensics": `{"findings": [], "confidence": 0.5}`,
	"cocounsel": `{"memo": "Offline draft memo summarizing the research findings."}`,
	"qa":        `{"scores": {"accuracy": 0.9, "completeness": 0.8}, "notes": ["Offline review"], "gating": {"requires_privilege_review": false}}`,
}

const offlineFallback = `{"summary": "Offline response"}`

// StaticProvider returns scripted completions keyed by request tag. Unscripted
// tags get the built-in offline response.
type StaticProvider struct {
	mu      sync.Mutex
	scripts map[string][]string
	errs    map[string][]error
	calls   map[string]int
}

// NewStaticProvider creates a provider with only the offline responses
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		scripts: make(map[string][]string),
		errs:    make(map[string][]error),
		calls:   make(map[string]int),
	}
}

// Name returns the provider name
func (p *StaticProvider) Name() string {
	return "static"
}

// Script queues responses for tag. The last response repeats once the queue
// is drained.
func (p *StaticProvider) Script(tag string, responses ...string) *StaticProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[tag] = append(p.scripts[tag], responses...)
	return p
}

// Fail queues errors returned for tag before any scripted response
func (p *StaticProvider) Fail(tag string, errs ...error) *StaticProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[tag] = append(p.errs[tag], errs...)
	return p
}

// Calls returns how many completions were requested for tag
func (p *StaticProvider) Calls(tag string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[tag]
}

// Complete returns the next scripted completion for request.Tag
func (p *StaticProvider) Complete(ctx context.Context, request Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tag := request.Tag
	p.calls[tag]++

	if errs := p.errs[tag]; len(errs) > 0 {
		p.errs[tag] = errs[1:]
		return nil, errs[0]
	}

	content := offlineFallback
	if queued := p.scripts[tag]; len(queued) > 0 {
		content = queued[0]
		if len(queued) > 1 {
			p.scripts[tag] = queued[1:]
		}
	} else if canned, ok := offlineResponses[tag]; ok {
		content = canned
	}

	return &Response{Content: content, Usage: &TokenUsage{}}, nil
}
