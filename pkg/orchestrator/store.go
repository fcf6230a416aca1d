package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ThreadStore persists AgentThreads between runs
type ThreadStore interface {
	Save(thread *AgentThread) error
	Get(threadID string) (*AgentThread, error)
	List() ([]*AgentThread, error)
	Delete(threadID string) error
}

// FileStore keeps one JSON file per thread
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates a file-based thread store rooted at baseDir
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(threadID string) (string, error) {
	if threadID == "" || strings.ContainsAny(threadID, `/\`) || strings.Contains(threadID, "..") {
		return "", fmt.Errorf("invalid thread id %q", threadID)
	}
	return filepath.Join(s.baseDir, threadID+".json"), nil
}

// Save writes the thread, replacing any previous version
func (s *FileStore) Save(thread *AgentThread) error {
	if thread == nil {
		return fmt.Errorf("thread is nil")
	}
	path, err := s.path(thread.ThreadID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(thread, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal thread: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write thread file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace thread file: %w", err)
	}
	return nil
}

// Get loads a thread by id
func (s *FileStore) Get(threadID string) (*AgentThread, error) {
	path, err := s.path(threadID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return readThread(path, threadID)
}

func readThread(path, threadID string) (*AgentThread, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read thread file: %w", err)
	}

	var thread AgentThread
	if err := json.Unmarshal(data, &thread); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thread %s: %w", threadID, err)
	}
	return &thread, nil
}

// List returns every stored thread, most recently updated first. Unreadable
// files are skipped.
func (s *FileStore) List() ([]*AgentThread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	var threads []*AgentThread
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		thread, err := readThread(filepath.Join(s.baseDir, entry.Name()), id)
		if err != nil {
			continue
		}
		threads = append(threads, thread)
	}

	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})
	return threads, nil
}

// Delete removes a thread. Deleting a missing thread is not an error.
func (s *FileStore) Delete(threadID string) error {
	path, err := s.path(threadID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove thread file: %w", err)
	}
	return nil
}

// Prune deletes threads last updated before now minus maxAge and returns the
// deleted ids. Threads awaiting privilege review are kept.
func (s *FileStore) Prune(maxAge time.Duration, now time.Time) ([]string, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("max age must be positive, got %s", maxAge)
	}

	threads, err := s.List()
	if err != nil {
		return nil, err
	}

	cutoff := now.Add(-maxAge)
	var deleted []string
	for _, thread := range threads {
		if thread.Status == StatusNeedsPrivilegeReview || !thread.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := s.Delete(thread.ThreadID); err != nil {
			return deleted, fmt.Errorf("failed to prune thread %s: %w", thread.ThreadID, err)
		}
		deleted = append(deleted, thread.ThreadID)
	}
	return deleted, nil
}
