package validate

import (
	"fmt"
	"strings"
)

// Report aggregates validation results for a batch run.
type Report struct {
	TotalTools      int       `json:"total_tools"`
	Successful      int       `json:"successful"`
	Failed          int       `json:"failed"`
	Skipped         int       `json:"skipped"`
	Results         []*Result `json:"results"`
	SuccessRate     float64   `json:"success_rate"` // fraction of attempted
	Recommendations []string  `json:"recommendations,omitempty"`
}

// Healthy reports whether every attempted validation succeeded.
func (r *Report) Healthy() bool {
	return r.Failed == 0
}

// FailedResults returns the results that did not validate.
func (r *Report) FailedResults() []*Result {
	var out []*Result
	for _, res := range r.Results {
		if !res.Installed {
			out = append(out, res)
		}
	}
	return out
}

// recommendations derives human-readable guidance from a result set.
func recommendations(results []*Result) []string {
	var recs []string

	var failed []*Result
	for _, r := range results {
		if !r.Installed {
			failed = append(failed, r)
		}
	}

	if len(failed) > 0 {
		recs = append(recs, fmt.Sprintf("Found %d failed tools that may need attention.", len(failed)))
		for _, r := range failed {
			if strings.Contains(r.Error, "timed out") {
				recs = append(recs, "Some tools timed out during validation. Consider increasing timeout values.")
				break
			}
		}
		for _, r := range failed {
			if strings.Contains(r.Error, "Command failed") {
				recs = append(recs, "Some tools failed command execution. Check if they are properly installed.")
				break
			}
		}
	}

	if total := len(results); total > 0 {
		rate := float64(total-len(failed)) / float64(total)
		if rate < 0.8 {
			recs = append(recs, "Low success rate detected. Consider reviewing installation procedures.")
		} else if rate >= 0.95 {
			recs = append(recs, "Excellent validation results! All tools are working correctly.")
		}
	}

	return recs
}

// Render formats the report for terminal output.
func (r *Report) Render() string {
	var b strings.Builder

	b.WriteString("VALIDATION REPORT\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "Total tools:  %d\n", r.TotalTools)
	fmt.Fprintf(&b, "Successful:   %d\n", r.Successful)
	fmt.Fprintf(&b, "Failed:       %d\n", r.Failed)
	fmt.Fprintf(&b, "Skipped:      %d\n", r.Skipped)
	fmt.Fprintf(&b, "Success rate: %.1f%%\n\n", r.SuccessRate*100)

	var valid, invalid []*Result
	for _, res := range r.Results {
		if res.Installed {
			valid = append(valid, res)
		} else {
			invalid = append(invalid, res)
		}
	}

	if len(valid) > 0 {
		b.WriteString("Valid tools:\n")
		for _, res := range valid {
			if res.Version != "" {
				fmt.Fprintf(&b, "  ✓ %s (v%s)\n", res.Tool, res.Version)
			} else {
				fmt.Fprintf(&b, "  ✓ %s\n", res.Tool)
			}
		}
		b.WriteString("\n")
	}

	if len(invalid) > 0 {
		b.WriteString("Failed tools:\n")
		for _, res := range invalid {
			if res.Error != "" {
				fmt.Fprintf(&b, "  ✗ %s - %s\n", res.Tool, res.Error)
			} else {
				fmt.Fprintf(&b, "  ✗ %s\n", res.Tool)
			}
		}
		b.WriteString("\n")
	}

	for _, rec := range r.Recommendations {
		fmt.Fprintf(&b, "• %s\n", rec)
	}

	if r.Healthy() {
		b.WriteString("Overall status: HEALTHY\n")
	} else {
		b.WriteString("Overall status: ISSUES DETECTED\n")
	}
	return b.String()
}
