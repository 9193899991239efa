// Package healing remediates failed tools: it replays the install command
// remembered from a previous successful run, or asks the advisor for one.
package healing

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/toolforge/forge/pkg/advisor"
	"github.com/toolforge/forge/pkg/memory"
	"github.com/toolforge/forge/pkg/runner"
	"github.com/toolforge/forge/pkg/validate"
)

// Source identifies where a healing command came from.
type Source string

const (
	SourceMemory Source = "memory"
	SourceLLM    Source = "llm"
)

// DefaultHealTimeout bounds one healing command. Install commands run far
// longer than checks.
const DefaultHealTimeout = 60 * time.Second

// Result is the outcome of one healing attempt.
type Result struct {
	Tool          string `json:"tool"`
	Command       string `json:"command,omitempty"`
	Source        Source `json:"source,omitempty"`
	Success       bool   `json:"success"`
	OriginalError string `json:"original_error,omitempty"`
}

// RecordStore is the slice of the memory store healing needs.
type RecordStore interface {
	Get(name string) *memory.ToolRecord
	Record(name string, installed bool, version, installCmd, checkCmd, lastError string) error
}

// Coordinator drives healing for failed validations.
type Coordinator struct {
	Exec        runner.Executor
	Records     RecordStore
	Advisor     advisor.FixGenerator
	Log         zerolog.Logger
	HealTimeout time.Duration

	attempted map[string]bool
}

// New builds a Coordinator. Advisor may be nil.
func New(exec runner.Executor, records RecordStore, adv advisor.FixGenerator, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		Exec:        exec,
		Records:     records,
		Advisor:     adv,
		Log:         log,
		HealTimeout: DefaultHealTimeout,
		attempted:   make(map[string]bool),
	}
}

func (c *Coordinator) healTimeout() time.Duration {
	if c.HealTimeout > 0 {
		return c.HealTimeout
	}
	return DefaultHealTimeout
}

// HealAll attempts to heal every failed validation result, in order.
func (c *Coordinator) HealAll(ctx context.Context, failed []*validate.Result) []*Result {
	var out []*Result
	for _, f := range failed {
		out = append(out, c.Heal(ctx, f.Tool, f.Error))
	}
	return out
}

// Heal attempts one remediation for a tool. The memory store's remembered
// install command wins over an advisor suggestion. Each tool is healed at
// most once per coordinator; repeat calls report failure without running
// anything. The outcome, success or failure, is written back to the store.
func (c *Coordinator) Heal(ctx context.Context, tool, originalError string) *Result {
	res := &Result{Tool: tool, OriginalError: originalError}

	if c.attempted == nil {
		c.attempted = make(map[string]bool)
	}
	if c.attempted[tool] {
		c.Log.Debug().Str("tool", tool).Msg("healing already attempted")
		return res
	}
	c.attempted[tool] = true

	if c.Records != nil {
		if r := c.Records.Get(tool); r != nil && r.InstallCommand != "" {
			res.Command = r.InstallCommand
			res.Source = SourceMemory
		}
	}
	if res.Command == "" && c.Advisor != nil {
		errMsg := originalError
		if errMsg == "" {
			errMsg = "Validation failed"
		}
		if fix, ok := c.Advisor.SuggestFix(ctx, advisor.FixContext{
			Tool:         tool,
			ErrorMessage: errMsg,
		}); ok {
			res.Command = fix
			res.Source = SourceLLM
		}
	}

	if res.Command == "" {
		c.Log.Warn().Str("tool", tool).Msg("no healing suggestion available")
		return res
	}

	c.Log.Info().
		Str("tool", tool).
		Str("command", res.Command).
		Str("source", string(res.Source)).
		Msg("executing healing command")

	out, err := c.Exec.Run(ctx, res.Command, c.healTimeout())
	if err != nil {
		c.Log.Error().Err(err).Str("tool", tool).Msg("healing command failed to run")
		return res
	}
	if !out.Success() {
		errMsg := strings.TrimSpace(out.Stderr)
		if errMsg == "" {
			errMsg = strings.TrimSpace(out.Stdout)
		}
		c.Log.Error().Str("tool", tool).Str("error", errMsg).Msg("healing command failed")
		if c.Records != nil {
			if err := c.Records.Record(tool, false, "", res.Command, "", errMsg); err != nil {
				c.Log.Warn().Err(err).Str("tool", tool).Msg("record healing failure")
			}
		}
		return res
	}

	res.Success = true
	if c.Records != nil {
		if err := c.Records.Record(tool, true, "", res.Command, "", ""); err != nil {
			c.Log.Warn().Err(err).Str("tool", tool).Msg("record healing success")
		}
	}
	c.Log.Info().Str("tool", tool).Msg("healing command successful")
	return res
}
