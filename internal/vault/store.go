package vault

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store persists a vault Snapshot as a JSON file. All mutations go through
// Mutate, which serializes the read-modify-write cycle under a per-store
// mutex — a last-write-wins race would let an approval silently vanish or
// duplicate, so concurrent decision cycles against the same vault always
// queue behind one another.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewStore creates a Store for the vault file at path.
// A nil logger is replaced with slog.Default().
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the vault file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads and parses the vault file. A missing file yields an empty
// snapshot rather than an error, so a fresh install starts clean.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{}, nil
		}
		return nil, fmt.Errorf("reading vault %q: %w", s.path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing vault %q: %w", s.path, err)
	}
	return &snap, nil
}

// Save writes the snapshot atomically: marshal to a temp file in the same
// directory, then rename over the vault file.
func (s *Store) Save(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding vault: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".vault-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp vault file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp vault file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp vault file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing vault %q: %w", s.path, err)
	}
	return nil
}

// Mutate runs fn on the current snapshot and persists the result, all under
// the store lock. If fn returns an error the vault file is left untouched.
func (s *Store) Mutate(fn func(*Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(snap); err != nil {
		return err
	}
	if err := s.Save(snap); err != nil {
		return err
	}
	s.logger.Debug("vault saved",
		"path", s.path,
		"pending", len(snap.Pending),
		"audit_entries", len(snap.Audit),
	)
	return nil
}

// Ping reports whether the vault file can currently be loaded and parsed.
func (s *Store) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.Load()
	return err
}

// View runs fn on a freshly loaded snapshot under the store lock without
// persisting anything. Read-only consumers (status command, list endpoints)
// use this to observe a consistent state.
func (s *Store) View(fn func(*Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.Load()
	if err != nil {
		return err
	}
	return fn(snap)
}
