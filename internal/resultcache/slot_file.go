package resultcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/snapsight/client/internal/models"
)

// FileSlot persists the record to a JSON file so a separate invocation
// (the CLI's result command) can display it, mirroring the browser
// client's session-scoped storage.
type FileSlot struct {
	path string
	mu   sync.Mutex
}

// NewFileSlot constructs a Slot backed by the file at path.
func NewFileSlot(path string) *FileSlot {
	return &FileSlot{path: path}
}

// Put writes rec to the backing file, overwriting any prior record.
func (s *FileSlot) Put(rec models.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode analysis record: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create result directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write analysis record: %w", err)
	}
	return nil
}

// Take reads the stored record and removes the backing file.
func (s *FileSlot) Take() (models.AnalysisRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.read()
	if ok {
		_ = os.Remove(s.path)
	}
	return rec, ok
}

// Peek reads the stored record without removing it.
func (s *FileSlot) Peek() (models.AnalysisRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileSlot) read() (models.AnalysisRecord, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return models.AnalysisRecord{}, false
	}

	var rec models.AnalysisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.AnalysisRecord{}, false
	}
	return rec, true
}
