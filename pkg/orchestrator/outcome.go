package orchestrator

import (
	"fmt"
)

// TurnOutcome is the typed interpretation of one invocation. The runner
// switches on the concrete type to decide control flow.
type TurnOutcome interface {
	outcome()
}

// StrategyOutcome carries the plan to merge into case memory
type StrategyOutcome struct {
	Plan map[string]any
}

// IngestionOutcome carries the ingested document summary
type IngestionOutcome struct {
	Documents []any
}

// ResearchOutcome carries the answer and its citations
type ResearchOutcome struct {
	Failed        bool
	ErrorCode     string
	Answer        string
	HasAnswer     bool
	Citations     []map[string]any
	HasCitations  bool
	CitationCount int
}

// CoCounselOutcome carries drafted artifacts
type CoCounselOutcome struct {
	Artifacts map[string]any
}

// QAOutcome carries scores, notes and the privilege gate
type QAOutcome struct {
	Scores                  map[string]float64
	Notes                   []string
	RequiresPrivilegeReview bool
	Average                 *float64
}

// GenericOutcome is any role without special handling
type GenericOutcome struct {
	Payload map[string]any
}

func (StrategyOutcome) outcome()  {}
func (IngestionOutcome) outcome() {}
func (ResearchOutcome) outcome()  {}
func (CoCounselOutcome) outcome() {}
func (QAOutcome) outcome()        {}
func (GenericOutcome) outcome()   {}

// ClassifyOutcome interprets an invocation according to the role that produced it
func ClassifyOutcome(role AgentRole, inv *ToolInvocation) TurnOutcome {
	payload := inv.Payload
	switch role {
	case RoleStrategy:
		return StrategyOutcome{Plan: copyMap(payload)}
	case RoleIngestion:
		docs, _ := payload["documents"].([]any)
		return IngestionOutcome{Documents: docs}
	case RoleResearch:
		return classifyResearch(inv)
	case RoleCoCounsel:
		return CoCounselOutcome{Artifacts: copyMap(payload)}
	case RoleQA:
		return classifyQA(inv)
	default:
		return GenericOutcome{Payload: copyMap(payload)}
	}
}

func classifyResearch(inv *ToolInvocation) ResearchOutcome {
	out := ResearchOutcome{
		Failed:    inv.Failed(),
		ErrorCode: inv.ErrorCode(),
	}
	if answer, ok := inv.Payload["answer"].(string); ok {
		out.Answer = answer
		out.HasAnswer = true
	}
	if raw, ok := inv.Payload["citations"]; ok {
		out.Citations = toCitations(raw)
		out.HasCitations = true
	}
	out.CitationCount = len(out.Citations)
	if n, ok := toFloat(inv.Metadata["citation_count"]); ok && int(n) > out.CitationCount {
		out.CitationCount = int(n)
	}
	return out
}

func classifyQA(inv *ToolInvocation) QAOutcome {
	out := QAOutcome{}
	if raw, ok := inv.Payload["scores"].(map[string]any); ok {
		out.Scores = make(map[string]float64, len(raw))
		for k, v := range raw {
			if f, ok := toFloat(v); ok {
				out.Scores[k] = f
			}
		}
	} else if scores, ok := inv.Payload["scores"].(map[string]float64); ok {
		out.Scores = make(map[string]float64, len(scores))
		for k, v := range scores {
			out.Scores[k] = v
		}
	}
	if raw, ok := inv.Payload["notes"]; ok {
		out.Notes = toStrings(raw)
	}
	if gating, ok := inv.Payload["gating"].(map[string]any); ok {
		out.RequiresPrivilegeReview, _ = gating["requires_privilege_review"].(bool)
	}
	if avg, ok := toFloat(inv.Metadata["qa_average"]); ok {
		out.Average = &avg
	}
	return out
}

// toCitations normalises a citations payload into citation records. Bare
// strings and scalars become {"source": ...} records; nil items are skipped.
func toCitations(raw any) []map[string]any {
	switch v := raw.(type) {
	case []map[string]any:
		out := make([]map[string]any, len(v))
		for i, c := range v {
			out[i] = copyMap(c)
		}
		return out
	case []string:
		out := make([]map[string]any, len(v))
		for i, c := range v {
			out[i] = map[string]any{"source": c}
		}
		return out
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			switch c := item.(type) {
			case nil:
			case map[string]any:
				out = append(out, copyMap(c))
			case string:
				out = append(out, map[string]any{"source": c})
			default:
				out = append(out, map[string]any{"source": fmt.Sprint(c)})
			}
		}
		return out
	case nil:
		return []map[string]any{}
	default:
		return []map[string]any{{"source": fmt.Sprint(v)}}
	}
}

func toStrings(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
