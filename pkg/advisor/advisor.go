// Package advisor suggests alternative commands when a tool check fails.
// Suggestions come from an LLM reached through a local CLI binary; a Nop
// implementation keeps the rest of the system functional without one.
package advisor

import (
	"context"
	"strings"
)

// FixContext describes a failed check for which a fix is wanted.
type FixContext struct {
	Tool          string
	FailedCommand string
	ErrorMessage  string
}

// FixGenerator produces a replacement command for a failed check. The bool
// result reports whether a suggestion was produced.
type FixGenerator interface {
	SuggestFix(ctx context.Context, fc FixContext) (string, bool)
}

// Nop never suggests anything. Used when no advisor binary is configured.
type Nop struct{}

func (Nop) SuggestFix(context.Context, FixContext) (string, bool) {
	return "", false
}

// firstLine returns the first non-empty trimmed line of s.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}
