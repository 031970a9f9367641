// Package store persists operator state as JSON files.
//
// Two documents live in the data directory: settings.json, the trading
// settings last applied through the control surface, and history.json, a
// snapshot of the cycle history taken when the scheduler stops. Writes
// use atomic file replacement (write to .tmp, then rename) so a crash
// mid-save never leaves a partial document.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lunara-kim/market-auto-trader-sub000/internal/engine"
	"github.com/lunara-kim/market-auto-trader-sub000/pkg/types"
)

const (
	settingsFile = "settings.json"
	historyFile  = "history.json"
)

// Store persists operator state in a designated directory. All
// operations are mutex-protected to prevent concurrent file corruption.
type Store struct {
	dir string
	mu  sync.Mutex
}

// Open creates a store backed by the given directory.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// SaveSettings persists the settings applied through the control
// surface so a restart resumes with the operator's last configuration.
func (s *Store) SaveSettings(settings engine.Settings) error {
	return s.write(settingsFile, settings)
}

// LoadSettings restores persisted settings. Returns nil, nil when none
// were ever saved (fresh install runs on file config alone).
func (s *Store) LoadSettings() (*engine.Settings, error) {
	var settings engine.Settings
	ok, err := s.read(settingsFile, &settings)
	if err != nil || !ok {
		return nil, err
	}
	return &settings, nil
}

// SaveHistory snapshots the cycle history ring.
func (s *Store) SaveHistory(history []types.CycleResult) error {
	return s.write(historyFile, history)
}

// LoadHistory restores the last history snapshot; nil when none exists.
func (s *Store) LoadHistory() ([]types.CycleResult, error) {
	var history []types.CycleResult
	if _, err := s.read(historyFile, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// write atomically replaces one document.
func (s *Store) write(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return os.Rename(tmp, path)
}

// read loads one document; ok is false when the file does not exist.
func (s *Store) read(name string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return true, nil
}
