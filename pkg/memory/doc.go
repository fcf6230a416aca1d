// Package memory stores case working memory: the conversation transcript,
// executed turns, and named sections such as the plan and drafted artifacts.
//
// Invariants:
// - A Store belongs to exactly one case id; case ids are validated before any path or row is touched.
// - Changes are buffered in process until Persist is called.
// - Snapshot returns a deep copy that callers may mutate freely.
//
// Usage:
//
//	provider, _ := memory.NewFileProvider("/data/memory")
//	store, _ := provider.Open(ctx, "case-1")
//	_ = store.AppendConversation(ctx, memory.Entry{Role: "user", Content: "question"})
//	_ = store.Persist(ctx)
package memory
