// Package policy decides whether a tool should be skipped or retried based on
// persisted history and user preferences.
package policy

import (
	"fmt"

	"github.com/toolforge/forge/pkg/memory"
)

// RecordSource yields the persisted record for a tool, or nil when the tool
// has never been seen.
type RecordSource interface {
	Get(name string) *memory.ToolRecord
}

// Decider applies preferences to persisted tool history.
type Decider struct {
	Records RecordSource
	Prefs   memory.Preferences
}

// NewDecider builds a Decider over a record source and preferences.
func NewDecider(records RecordSource, prefs memory.Preferences) *Decider {
	return &Decider{Records: records, Prefs: prefs}
}

// ShouldSkip reports whether validation of a tool should be skipped, and why.
// A tool is skipped when it was previously installed and the user opted to
// skip installed tools, or when its failure count has exhausted the retry
// budget.
func (d *Decider) ShouldSkip(name string) (bool, string) {
	r := d.Records.Get(name)
	if r == nil {
		return false, ""
	}
	if r.Installed && d.Prefs.SkipAlreadyInstalled {
		reason := "already installed"
		if r.Version != "" {
			reason = fmt.Sprintf("already installed (version %s)", r.Version)
		}
		return true, reason
	}
	if r.FailureCount >= d.Prefs.MaxRetryAttempts {
		return true, fmt.Sprintf("failed %d times, retry budget exhausted", r.FailureCount)
	}
	return false, ""
}

// ShouldRetry reports whether a previously failed tool is eligible for
// another attempt. Tools with no history are always eligible.
func (d *Decider) ShouldRetry(name string) bool {
	r := d.Records.Get(name)
	if r == nil {
		return true
	}
	return d.Prefs.AutoRetryFailed && r.FailureCount < d.Prefs.MaxRetryAttempts
}
