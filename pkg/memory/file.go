package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ahouse2/co-counsel-nexus/internal/observability"
	"github.com/ahouse2/co-counsel-nexus/internal/tracing"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const (
	stateFileName   = "state.json"
	journalFileName = "conversation.jsonl"
)

// FileProvider stores each case under its own directory
type FileProvider struct {
	baseDir string
	locks   map[string]*sync.Mutex
	locksMu sync.Mutex
}

// NewFileProvider creates a provider rooted at baseDir
func NewFileProvider(baseDir string) (*FileProvider, error) {
	observability.EnsureRegistered()

	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".cocounsel", "memory")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create memory directory: %w", err)
	}

	log.Info().Str("dir", baseDir).Msg("File memory provider initialized")
	return &FileProvider{baseDir: baseDir, locks: make(map[string]*sync.Mutex)}, nil
}

// caseLock serializes writers of the same case across stores
func (p *FileProvider) caseLock(caseID string) *sync.Mutex {
	p.locksMu.Lock()
	defer p.locksMu.Unlock()
	if l, ok := p.locks[caseID]; ok {
		return l
	}
	l := &sync.Mutex{}
	p.locks[caseID] = l
	return l
}

// Open loads the case state and conversation journal from disk
func (p *FileProvider) Open(ctx context.Context, caseID string) (Store, error) {
	if err := ValidateCaseID(caseID); err != nil {
		return nil, err
	}

	ctx = tracing.WithCaseID(ctx, caseID)
	ctx, span := tracing.StartSpan(ctx, "cocounsel.memory", "memory.open",
		attribute.String("case_id", caseID),
		attribute.String("backend", "file"),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	dir := filepath.Join(p.baseDir, caseID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		tracing.FailSpan(span, err)
		return nil, fmt.Errorf("failed to create case directory: %w", err)
	}

	s := &FileStore{
		dir:    dir,
		lock:   p.caseLock(caseID),
		ws:     newWorkingSet(caseID),
		logger: logger,
	}
	if err := s.load(); err != nil {
		tracing.FailSpan(span, err)
		return nil, err
	}
	return s, nil
}

// Close is a no-op; stores hold no open handles between calls
func (p *FileProvider) Close() error { return nil }

// FileStore persists a case as a JSON state file plus a JSONL conversation journal
type FileStore struct {
	dir       string
	lock      *sync.Mutex
	mu        sync.Mutex
	ws        *workingSet
	journaled int
	logger    zerolog.Logger
}

func (s *FileStore) statePath() string   { return filepath.Join(s.dir, stateFileName) }
func (s *FileStore) journalPath() string { return filepath.Join(s.dir, journalFileName) }

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.statePath())
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return fmt.Errorf("failed to read memory state: %w", err)
	default:
		if err := json.Unmarshal(data, s.ws); err != nil {
			return fmt.Errorf("failed to parse memory state: %w", err)
		}
		if s.ws.Sections == nil {
			s.ws.Sections = make(map[string]map[string]any)
		}
	}

	file, err := os.Open(s.journalPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open conversation journal: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil || entry.Role == "" {
			s.logger.Warn().Int("line", lineNum).Msg("Skipping malformed conversation entry")
			continue
		}
		s.ws.Conversation = append(s.ws.Conversation, entry)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read conversation journal: %w", err)
	}
	s.journaled = len(s.ws.Conversation)
	return nil
}

func (s *FileStore) AppendConversation(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.appendConversation(entry)
}

func (s *FileStore) RecordTurn(_ context.Context, turn TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ws.recordTurn(turn)
	return nil
}

func (s *FileStore) Merge(_ context.Context, section string, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.merge(section, values)
}

func (s *FileStore) AddNote(_ context.Context, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ws.Notes = append(s.ws.Notes, note)
	return nil
}

func (s *FileStore) MarkUpdated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ws.UpdatedAt = time.Now().UTC()
}

func (s *FileStore) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.snapshot()
}

// Persist appends new conversation entries to the journal and rewrites the state file
func (s *FileStore) Persist(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "cocounsel.memory", "memory.persist",
		attribute.String("case_id", s.ws.CaseID),
		attribute.String("backend", "file"),
	)
	defer span.End()
	start := time.Now()
	defer func() {
		observability.RecordMemoryPersist("file", time.Since(start))
	}()

	s.lock.Lock()
	defer s.lock.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.appendJournal(); err != nil {
		tracing.FailSpan(span, err)
		return err
	}

	data, err := json.MarshalIndent(s.ws, "", "  ")
	if err != nil {
		tracing.FailSpan(span, err)
		return fmt.Errorf("failed to marshal memory state: %w", err)
	}
	tmp := s.statePath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		tracing.FailSpan(span, err)
		return fmt.Errorf("failed to write memory state: %w", err)
	}
	if err := os.Rename(tmp, s.statePath()); err != nil {
		tracing.FailSpan(span, err)
		return fmt.Errorf("failed to replace memory state: %w", err)
	}

	plog := tracing.LoggerFromContext(ctx, s.logger)
	plog.Debug().
		Int("conversation", len(s.ws.Conversation)).
		Int("turns", len(s.ws.Turns)).
		Msg("Case memory persisted")
	return nil
}

func (s *FileStore) appendJournal() error {
	if s.journaled >= len(s.ws.Conversation) {
		return nil
	}
	file, err := os.OpenFile(s.journalPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open conversation journal: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, entry := range s.ws.Conversation[s.journaled:] {
		line, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation entry: %w", err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("failed to write conversation entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush conversation journal: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync conversation journal: %w", err)
	}
	s.journaled = len(s.ws.Conversation)
	return nil
}
