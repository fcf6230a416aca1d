package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ahouse2/co-counsel-nexus/internal/observability"
	"github.com/ahouse2/co-counsel-nexus/internal/tracing"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// SQLiteProvider keeps every case in one SQLite database
type SQLiteProvider struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteProvider opens (and migrates) the database at path
func NewSQLiteProvider(path string, logger zerolog.Logger) (*SQLiteProvider, error) {
	observability.EnsureRegistered()

	if path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	p := &SQLiteProvider{db: db, logger: logger}
	if err := p.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return p, nil
}

func (p *SQLiteProvider) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS cases (
			case_id TEXT PRIMARY KEY,
			notes TEXT NOT NULL DEFAULT '[]',
			updated_at INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS sections (
			case_id TEXT NOT NULL,
			name TEXT NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (case_id, name),
			FOREIGN KEY (case_id) REFERENCES cases(case_id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS conversation (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			case_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (case_id) REFERENCES cases(case_id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_conversation_case ON conversation(case_id, id);

		CREATE TABLE IF NOT EXISTS turns (
			turn_id TEXT NOT NULL,
			case_id TEXT NOT NULL,
			role TEXT NOT NULL,
			action TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			completed_at INTEGER NOT NULL,
			duration_ms REAL NOT NULL,
			annotations TEXT,
			seq INTEGER NOT NULL,
			PRIMARY KEY (case_id, seq),
			FOREIGN KEY (case_id) REFERENCES cases(case_id) ON DELETE CASCADE
		);
	`
	_, err := p.db.Exec(schema)
	return err
}

// Close closes the database
func (p *SQLiteProvider) Close() error {
	return p.db.Close()
}

// Open loads the case rows into a store
func (p *SQLiteProvider) Open(ctx context.Context, caseID string) (Store, error) {
	if err := ValidateCaseID(caseID); err != nil {
		return nil, err
	}
	ctx = tracing.WithCaseID(ctx, caseID)
	ctx, span := tracing.StartSpan(ctx, "cocounsel.memory", "memory.open",
		attribute.String("case_id", caseID),
		attribute.String("backend", "sqlite"),
	)
	defer span.End()

	s := &SQLiteStore{
		db:     p.db,
		ws:     newWorkingSet(caseID),
		logger: tracing.LoggerFromContext(ctx, p.logger),
	}
	if err := s.load(ctx); err != nil {
		tracing.FailSpan(span, err)
		return nil, err
	}
	return s, nil
}

// SQLiteStore buffers mutations in memory and writes them on Persist
type SQLiteStore struct {
	db             *sql.DB
	mu             sync.Mutex
	ws             *workingSet
	persistedConvo int
	persistedTurns int
	logger         zerolog.Logger
}

func (s *SQLiteStore) load(ctx context.Context) error {
	caseID := s.ws.CaseID

	var notes string
	var updated int64
	err := s.db.QueryRowContext(ctx, "SELECT notes, updated_at FROM cases WHERE case_id = ?", caseID).Scan(&notes, &updated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("failed to load case: %w", err)
	}
	if err := json.Unmarshal([]byte(notes), &s.ws.Notes); err != nil {
		return fmt.Errorf("failed to decode case notes: %w", err)
	}
	if updated > 0 {
		s.ws.UpdatedAt = time.UnixMilli(updated).UTC()
	}

	rows, err := s.db.QueryContext(ctx, "SELECT name, data FROM sections WHERE case_id = ?", caseID)
	if err != nil {
		return fmt.Errorf("failed to load sections: %w", err)
	}
	for rows.Next() {
		var name, data string
		if err := rows.Scan(&name, &data); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan section: %w", err)
		}
		values := make(map[string]any)
		if err := json.Unmarshal([]byte(data), &values); err != nil {
			rows.Close()
			return fmt.Errorf("failed to decode section %s: %w", name, err)
		}
		s.ws.Sections[name] = values
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, "SELECT role, content, metadata, created_at FROM conversation WHERE case_id = ? ORDER BY id", caseID)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	for rows.Next() {
		var e Entry
		var meta sql.NullString
		var created int64
		if err := rows.Scan(&e.Role, &e.Content, &meta, &created); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan conversation: %w", err)
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &e.Metadata); err != nil {
				s.logger.Warn().Err(err).Msg("Skipping unreadable conversation metadata")
			}
		}
		e.Timestamp = time.UnixMilli(created).UTC()
		s.ws.Conversation = append(s.ws.Conversation, e)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, "SELECT turn_id, role, action, started_at, completed_at, duration_ms, annotations FROM turns WHERE case_id = ? ORDER BY seq", caseID)
	if err != nil {
		return fmt.Errorf("failed to load turns: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t TurnRecord
		var started, completed int64
		var ann sql.NullString
		if err := rows.Scan(&t.ID, &t.Role, &t.Action, &started, &completed, &t.DurationMS, &ann); err != nil {
			return fmt.Errorf("failed to scan turn: %w", err)
		}
		t.StartedAt = time.UnixMilli(started).UTC()
		t.CompletedAt = time.UnixMilli(completed).UTC()
		if ann.Valid && ann.String != "" {
			_ = json.Unmarshal([]byte(ann.String), &t.Annotations)
		}
		s.ws.Turns = append(s.ws.Turns, t)
	}

	s.persistedConvo = len(s.ws.Conversation)
	s.persistedTurns = len(s.ws.Turns)
	return rows.Err()
}

func (s *SQLiteStore) AppendConversation(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.appendConversation(entry)
}

func (s *SQLiteStore) RecordTurn(_ context.Context, turn TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ws.recordTurn(turn)
	return nil
}

func (s *SQLiteStore) Merge(_ context.Context, section string, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.merge(section, values)
}

func (s *SQLiteStore) AddNote(_ context.Context, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ws.Notes = append(s.ws.Notes, note)
	return nil
}

func (s *SQLiteStore) MarkUpdated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ws.UpdatedAt = time.Now().UTC()
}

func (s *SQLiteStore) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.snapshot()
}

// Persist writes pending rows in one transaction
func (s *SQLiteStore) Persist(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "cocounsel.memory", "memory.persist",
		attribute.String("case_id", s.ws.CaseID),
		attribute.String("backend", "sqlite"),
	)
	defer span.End()
	start := time.Now()
	defer func() {
		observability.RecordMemoryPersist("sqlite", time.Since(start))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persistLocked(ctx); err != nil {
		tracing.FailSpan(span, err)
		return err
	}
	return nil
}

func (s *SQLiteStore) persistLocked(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	caseID := s.ws.CaseID
	notes, err := json.Marshal(s.ws.Notes)
	if err != nil {
		return fmt.Errorf("failed to encode notes: %w", err)
	}
	var updated int64
	if !s.ws.UpdatedAt.IsZero() {
		updated = s.ws.UpdatedAt.UnixMilli()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cases (case_id, notes, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(case_id) DO UPDATE SET notes = excluded.notes, updated_at = excluded.updated_at
	`, caseID, string(notes), updated); err != nil {
		return fmt.Errorf("failed to upsert case: %w", err)
	}

	for name, values := range s.ws.Sections {
		data, err := json.Marshal(values)
		if err != nil {
			return fmt.Errorf("failed to encode section %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sections (case_id, name, data) VALUES (?, ?, ?)
			ON CONFLICT(case_id, name) DO UPDATE SET data = excluded.data
		`, caseID, name, string(data)); err != nil {
			return fmt.Errorf("failed to upsert section %s: %w", name, err)
		}
	}

	for _, e := range s.ws.Conversation[s.persistedConvo:] {
		var meta any
		if len(e.Metadata) > 0 {
			b, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode conversation metadata: %w", err)
			}
			meta = string(b)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO conversation (case_id, role, content, metadata, created_at) VALUES (?, ?, ?, ?, ?)",
			caseID, e.Role, e.Content, meta, e.Timestamp.UnixMilli(),
		); err != nil {
			return fmt.Errorf("failed to insert conversation entry: %w", err)
		}
	}

	for i, t := range s.ws.Turns[s.persistedTurns:] {
		var ann any
		if len(t.Annotations) > 0 {
			b, err := json.Marshal(t.Annotations)
			if err != nil {
				return fmt.Errorf("failed to encode turn annotations: %w", err)
			}
			ann = string(b)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO turns (turn_id, case_id, role, action, started_at, completed_at, duration_ms, annotations, seq) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			t.ID, caseID, t.Role, t.Action, t.StartedAt.UnixMilli(), t.CompletedAt.UnixMilli(), t.DurationMS, ann, s.persistedTurns+i,
		); err != nil {
			return fmt.Errorf("failed to insert turn: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit memory: %w", err)
	}
	s.persistedConvo = len(s.ws.Conversation)
	s.persistedTurns = len(s.ws.Turns)

	s.logger.Debug().
		Int("conversation", s.persistedConvo).
		Int("turns", s.persistedTurns).
		Msg("Case memory persisted")
	return nil
}
