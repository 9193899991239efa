// Package memory persists per-tool installation history and user preferences
// across runs. Records feed the skip/retry policy and the self-healing
// coordinator.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ToolRecord is the persisted history for one tool.
type ToolRecord struct {
	Name           string    `json:"name"`
	InstallCommand string    `json:"install_command,omitempty"`
	CheckCommand   string    `json:"check_command,omitempty"`
	Version        string    `json:"version,omitempty"`
	Installed      bool      `json:"installed"`
	FailureCount   int       `json:"failure_count,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	FirstRecorded  time.Time `json:"first_recorded"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Store is a write-through JSON store of tool records. Safe for concurrent
// use.
type Store struct {
	mu      sync.Mutex
	path    string
	records map[string]*ToolRecord
}

type storeFile struct {
	Tools map[string]*ToolRecord `json:"tools"`
}

// Open loads the store at path, creating parent directories as needed. A
// missing file yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{
		path:    path,
		records: make(map[string]*ToolRecord),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory store: %w", err)
	}

	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse memory store %s: %w", path, err)
	}
	if f.Tools != nil {
		s.records = f.Tools
	}
	return s, nil
}

// Get returns the record for a tool, or nil.
func (s *Store) Get(name string) *ToolRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[name]
}

// Record updates (or creates) a tool record and writes the store to disk.
// A successful result resets the failure count; a failure increments it.
// Install and check commands recorded earlier are kept when the update
// carries none, so healing can replay the command that once worked.
func (s *Store) Record(name string, installed bool, version, installCmd, checkCmd, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	r := s.records[name]
	if r == nil {
		r = &ToolRecord{Name: name, FirstRecorded: now}
		s.records[name] = r
	}

	r.Installed = installed
	r.LastUpdated = now
	if version != "" {
		r.Version = version
	}
	if installCmd != "" {
		r.InstallCommand = installCmd
	}
	if checkCmd != "" {
		r.CheckCommand = checkCmd
	}
	if installed {
		r.FailureCount = 0
		r.LastError = ""
	} else {
		r.FailureCount++
		r.LastError = lastError
	}

	return s.flushLocked()
}

// FailedTools returns the names of tools whose latest result was a failure,
// sorted for stable output.
func (s *Store) FailedTools() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	for name, r := range s.records {
		if !r.Installed && r.FailureCount > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// All returns every record, sorted by name.
func (s *Store) All() []*ToolRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*ToolRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Clear removes all records and deletes the backing file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*ToolRecord)
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear memory store: %w", err)
	}
	return nil
}

func (s *Store) flushLocked() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create memory dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(storeFile{Tools: s.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal memory store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write memory store: %w", err)
	}
	return nil
}
