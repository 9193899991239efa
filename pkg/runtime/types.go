package runtime

import (
	"time"

	"github.com/toolforge/forge/pkg/healing"
	"github.com/toolforge/forge/pkg/validate"
)

// RunReport summarizes one full plan execution.
type RunReport struct {
	RunID       string             `json:"run_id"`
	PlanID      string             `json:"plan_id"`
	Environment string             `json:"environment"`
	Total       int                `json:"total_steps"`
	Completed   int                `json:"completed_steps"`
	Failed      int                `json:"failed_steps"`
	Skipped     int                `json:"skipped_steps"`
	Healed      int                `json:"healed_steps,omitempty"`
	Duration    time.Duration      `json:"duration"`
	Validations []*validate.Result `json:"validations,omitempty"`
	Healings    []*healing.Result  `json:"healings,omitempty"`
}

// Success reports whether every step reached a non-failed terminal state.
func (r *RunReport) Success() bool {
	return r.Failed == 0
}
