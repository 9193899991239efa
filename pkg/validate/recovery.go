package validate

import (
	"context"
	"strings"
	"time"

	"github.com/toolforge/forge/pkg/advisor"
)

// recoveryTestTimeout bounds each candidate probe.
const recoveryTestTimeout = 10 * time.Second

// recoveryCandidates returns alternative check commands to try for a failed
// tool. Ordering matters: python3 is probed before python before py.
func recoveryCandidates(toolName, errorMsg string) []string {
	tool := strings.ToLower(toolName)
	var candidates []string

	if strings.Contains(strings.ToLower(errorMsg), "command not found") {
		switch {
		case strings.Contains(tool, "python"):
			candidates = append(candidates,
				"python3 --version",
				"python --version",
				"py --version",
			)
		case strings.Contains(tool, "node"):
			candidates = append(candidates,
				"node --version",
				"nodejs --version",
			)
		case strings.Contains(tool, "git"):
			candidates = append(candidates,
				"git --version",
				"git version",
			)
		case strings.Contains(tool, "docker"):
			candidates = append(candidates,
				"docker --version",
				"docker version",
			)
		case strings.Contains(tool, "code"):
			candidates = append(candidates,
				"code --version",
				"code -v",
			)
		}
	}

	switch {
	case strings.Contains(tool, "python"):
		// Probed on any failure, not just a missing binary. -V keeps the
		// probe quote-free; the executor splits on whitespace and does no
		// shell quoting.
		candidates = append(candidates,
			"python3 -V",
			"python -V",
		)
	case strings.Contains(tool, "pip"):
		candidates = append(candidates,
			"pip3 --version",
			"pip --version",
		)
	case strings.Contains(tool, "npm"):
		candidates = append(candidates,
			"npm --version",
			"npm -v",
		)
	}

	return candidates
}

// attemptRecovery looks for a replacement check command after a failure. The
// advisor suggestion, when present, is trusted as-is; static candidates are
// probed and the first one that exits zero wins. Returns "" when nothing
// helps.
func (v *Validator) attemptRecovery(ctx context.Context, toolName, failedCommand, errorMsg string) string {
	if v.Advisor != nil {
		if fix, ok := v.Advisor.SuggestFix(ctx, advisor.FixContext{
			Tool:          toolName,
			FailedCommand: failedCommand,
			ErrorMessage:  errorMsg,
		}); ok && fix != failedCommand {
			v.Log.Info().Str("tool", toolName).Str("command", fix).Msg("advisor suggested recovery")
			return fix
		}
	}

	for _, candidate := range recoveryCandidates(toolName, errorMsg) {
		if candidate == failedCommand {
			continue
		}
		res, err := v.Exec.Run(ctx, candidate, recoveryTestTimeout)
		if err == nil && res.Success() {
			v.Log.Info().Str("tool", toolName).Str("command", candidate).Msg("recovery candidate works")
			return candidate
		}
	}
	return ""
}
