package respcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nomadai/concierge/internal/logging"
)

// SnapshotVersion is the current snapshot format version
const SnapshotVersion = 2

// SnapshotData is the on-disk format. Entries can also be authored by
// hand to pre-seed answers.
type SnapshotData struct {
	Version   int          `json:"version"`
	UpdatedAt time.Time    `json:"updated_at"`
	Entries   []CacheEntry `json:"entries"`
}

// Snapshot persists a Cache to a JSON file so frequent answers survive a
// restart. Loss of the file is harmless.
type Snapshot struct {
	filePath string
	cache    *Cache
	logger   *logging.Logger

	mu       sync.Mutex
	stopSave chan struct{}
	done     chan struct{}
}

// NewSnapshot creates a snapshot bound to cache
func NewSnapshot(filePath string, cache *Cache, logger *logging.Logger) *Snapshot {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Snapshot{
		filePath: filePath,
		cache:    cache,
		logger:   logger,
	}
}

// Load restores live entries from disk and returns how many were loaded.
// A missing file is not an error; a corrupted file is moved aside.
func (s *Snapshot) Load() (int, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read cache snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		s.backupCorrupted()
		s.logger.Warn("cache snapshot corrupted, starting empty",
			logging.String("path", s.filePath), logging.Error(err))
		return 0, nil
	}
	if snap.Version != SnapshotVersion {
		return 0, nil
	}

	loaded := 0
	for _, entry := range snap.Entries {
		if s.cache.Restore(entry) {
			loaded++
		}
	}
	return loaded, nil
}

// Save writes all live entries atomically (temp file then rename)
func (s *Snapshot) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(SnapshotData{
		Version:   SnapshotVersion,
		UpdatedAt: time.Now(),
		Entries:   s.cache.Entries(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to save cache: %w", err)
	}
	return nil
}

// Remove deletes the snapshot file
func (s *Snapshot) Remove() error {
	if err := os.Remove(s.filePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// backupCorrupted moves a corrupted snapshot out of the way
func (s *Snapshot) backupCorrupted() {
	timestamp := time.Now().Format("20060102-150405")
	_ = os.Rename(s.filePath, s.filePath+".corrupted."+timestamp)
}

// StartAutoSave periodically drops expired entries and saves
func (s *Snapshot) StartAutoSave(interval time.Duration) {
	s.mu.Lock()
	if s.stopSave != nil || interval <= 0 {
		s.mu.Unlock()
		return
	}
	s.stopSave = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopSave, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.cache.CleanupExpired()
				if err := s.Save(); err != nil {
					s.logger.Warn("cache autosave failed", logging.Error(err))
				}
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts autosave and performs a final save
func (s *Snapshot) Stop() error {
	s.mu.Lock()
	stop, done := s.stopSave, s.done
	s.stopSave, s.done = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return s.Save()
}
