package runtime

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/toolforge/forge/pkg/schema"
)

// GenerateRunID returns a timestamp-plus-random run identifier, filesystem
// safe and sortable.
func GenerateRunID() string {
	ts := time.Now().Format("20060102T150405")
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return fmt.Sprintf("%s-%x", ts, suffix)
}

// RunState captures the engine state at a point in time. Snapshots are
// written after every step transition so an interrupted run can be
// inspected or resumed.
type RunState struct {
	RunID     string       `json:"run_id"`
	PlanPath  string       `json:"plan_path,omitempty"`
	Plan      *schema.Plan `json:"plan"`
	StepIndex int          `json:"step_index"`
	StartedAt time.Time    `json:"started_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// SaveSnapshot persists the run state to a JSON file.
func SaveSnapshot(state *RunState, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	state.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a persisted run state.
func LoadSnapshot(path string) (*RunState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &state, nil
}
