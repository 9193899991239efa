package advisor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const systemPrompt = "You are a command-line repair assistant. Given a tool " +
	"whose check command failed, reply with exactly one replacement shell " +
	"command on a single line. No explanation, no markdown, no backticks."

// CLI suggests fixes by shelling out to an LLM CLI binary (copilot, llm,
// ollama run, …). The prompt is passed via -p; the first non-empty line of
// stdout is taken as the suggested command.
type CLI struct {
	// Binary is the advisor executable (default: "copilot").
	Binary string
	// Timeout bounds one advisor invocation (default: 60s).
	Timeout time.Duration
	Log     zerolog.Logger
}

// NewCLI creates a CLI advisor with defaults.
func NewCLI(log zerolog.Logger) *CLI {
	return &CLI{
		Binary:  "copilot",
		Timeout: 60 * time.Second,
		Log:     log,
	}
}

// SuggestFix asks the advisor binary for a replacement command. Any failure
// (missing binary, timeout, empty output) yields no suggestion rather than
// an error; the caller falls back to its static candidates.
func (c *CLI) SuggestFix(ctx context.Context, fc FixContext) (string, bool) {
	binary := c.Binary
	if binary == "" {
		binary = "copilot"
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	prompt := fmt.Sprintf(
		"%s\n\nTool: %s\nFailed command: %s\nError: %s",
		systemPrompt, fc.Tool, fc.FailedCommand, fc.ErrorMessage,
	)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, "-p", prompt, "-s")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		c.Log.Debug().
			Err(err).
			Str("tool", fc.Tool).
			Str("stderr", strings.TrimSpace(stderr.String())).
			Msg("advisor invocation failed")
		return "", false
	}

	suggestion := firstLine(stdout.String())
	if suggestion == "" {
		return "", false
	}
	c.Log.Debug().Str("tool", fc.Tool).Str("suggestion", suggestion).Msg("advisor suggestion")
	return suggestion, true
}
