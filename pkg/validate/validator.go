// Package validate checks that tools and editor extensions actually work
// after installation: it runs check commands, extracts versions, scores
// confidence, and attempts smart recovery when a check fails.
package validate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/toolforge/forge/pkg/advisor"
	"github.com/toolforge/forge/pkg/runner"
	"github.com/toolforge/forge/pkg/schema"
)

const (
	// DefaultCheckTimeout bounds one check command.
	DefaultCheckTimeout = 10 * time.Second
	// DefaultPace is the delay between tools in batch validation.
	DefaultPace = 100 * time.Millisecond
)

// Result is the outcome of validating one tool or extension.
type Result struct {
	Tool         string        `json:"tool"`
	Installed    bool          `json:"installed"`
	CheckCommand string        `json:"check_command"`
	Version      string        `json:"version,omitempty"`
	Confidence   float64       `json:"confidence"`
	Error        string        `json:"error,omitempty"`
	Skipped      bool          `json:"skipped,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// SkipPolicy decides whether a tool's validation should be skipped.
type SkipPolicy interface {
	ShouldSkip(name string) (bool, string)
}

// Recorder persists validation outcomes. Matches *memory.Store.
type Recorder interface {
	Record(name string, installed bool, version, installCmd, checkCmd, lastError string) error
}

// Validator runs check commands and interprets their output.
type Validator struct {
	Exec         runner.Executor
	Advisor      advisor.FixGenerator
	Recorder     Recorder
	Log          zerolog.Logger
	CheckTimeout time.Duration
	Pace         time.Duration
}

// New builds a Validator with default timeouts. Advisor and Recorder may be
// nil.
func New(exec runner.Executor, adv advisor.FixGenerator, rec Recorder, log zerolog.Logger) *Validator {
	return &Validator{
		Exec:         exec,
		Advisor:      adv,
		Recorder:     rec,
		Log:          log,
		CheckTimeout: DefaultCheckTimeout,
		Pace:         DefaultPace,
	}
}

func (v *Validator) checkTimeout() time.Duration {
	if v.CheckTimeout > 0 {
		return v.CheckTimeout
	}
	return DefaultCheckTimeout
}

// Validate checks a single step. It never returns an error: failures are
// encoded in the Result so batch runs always complete.
func (v *Validator) Validate(ctx context.Context, step *schema.Step) *Result {
	if step.Extension() {
		return v.validateExtension(ctx, step)
	}
	checkCmd := step.CheckCommand
	if checkCmd == "" {
		checkCmd = strings.ToLower(step.Name)
	}
	res := v.validateRegular(ctx, step.Name, checkCmd, false)
	v.record(res)
	return res
}

// validateRegular runs a check command for a non-extension tool. recovered
// guards the single smart-recovery re-validation.
func (v *Validator) validateRegular(ctx context.Context, toolName, checkCmd string, recovered bool) *Result {
	start := time.Now()
	v.Log.Debug().Str("tool", toolName).Str("command", checkCmd).Msg("validating")

	out, err := v.Exec.Run(ctx, checkCmd, v.checkTimeout())
	if err != nil {
		if errors.Is(err, runner.ErrTimeout) {
			return &Result{
				Tool:         toolName,
				CheckCommand: checkCmd,
				Error:        fmt.Sprintf("validation timed out after %v", v.checkTimeout()),
				Duration:     time.Since(start),
			}
		}
		// A spawn failure means the binary is absent, which is exactly what
		// recovery candidates exist for.
		var spawn *runner.SpawnError
		if errors.As(err, &spawn) && !recovered {
			if fix := v.attemptRecovery(ctx, toolName, checkCmd, spawn.Error()); fix != "" {
				return v.validateRegular(ctx, toolName, fix, true)
			}
		}
		return &Result{
			Tool:         toolName,
			CheckCommand: checkCmd,
			Error:        err.Error(),
			Duration:     time.Since(start),
		}
	}

	if out.Success() {
		output := out.Output()
		version := extractVersion(toolName, output)
		r := &Result{
			Tool:         toolName,
			Installed:    true,
			CheckCommand: checkCmd,
			Version:      version,
			Confidence:   confidenceScore(toolName, output),
			Duration:     time.Since(start),
		}
		v.Log.Info().Str("tool", toolName).Str("version", version).Msg("validation ok")
		return r
	}

	errMsg := strings.TrimSpace(out.Stderr)
	if errMsg == "" {
		errMsg = strings.TrimSpace(out.Stdout)
	}
	if errMsg == "" {
		errMsg = "Command failed"
	}

	if !recovered {
		if fix := v.attemptRecovery(ctx, toolName, checkCmd, errMsg); fix != "" {
			return v.validateRegular(ctx, toolName, fix, true)
		}
	}

	v.Log.Warn().Str("tool", toolName).Str("error", errMsg).Msg("validation failed")
	return &Result{
		Tool:         toolName,
		CheckCommand: checkCmd,
		Error:        errMsg,
		Duration:     time.Since(start),
	}
}

// validateExtension checks editor extension membership: the extension ID
// must appear as a whole line in the check command's output.
func (v *Validator) validateExtension(ctx context.Context, step *schema.Step) *Result {
	start := time.Now()
	checkCmd := step.CheckCommand
	if checkCmd == "" {
		checkCmd = "code --list-extensions"
	}

	extID := step.ExtensionID
	if extID == "" {
		extID = ExtensionID(step.Name)
	}
	if extID == "" {
		r := &Result{
			Tool:         step.Name,
			CheckCommand: checkCmd,
			Error:        fmt.Sprintf("could not determine extension ID for %s", step.Name),
			Duration:     time.Since(start),
		}
		v.record(r)
		return r
	}

	out, err := v.Exec.Run(ctx, checkCmd, v.checkTimeout())
	if err != nil {
		r := &Result{
			Tool:         step.Name,
			CheckCommand: checkCmd,
			Error:        err.Error(),
			Duration:     time.Since(start),
		}
		v.record(r)
		return r
	}

	r := &Result{
		Tool:         step.Name,
		CheckCommand: checkCmd,
		Duration:     time.Since(start),
	}
	switch {
	case !out.Success():
		errMsg := strings.TrimSpace(out.Stderr)
		if errMsg == "" {
			errMsg = strings.TrimSpace(out.Stdout)
		}
		if errMsg == "" {
			errMsg = "Command failed"
		}
		r.Error = errMsg
	case containsLine(out.Stdout, extID):
		r.Installed = true
		r.Confidence = 0.9
		v.Log.Info().Str("extension", step.Name).Str("id", extID).Msg("extension installed")
	default:
		r.Error = fmt.Sprintf("extension %s not found in installed extensions", step.Name)
	}
	v.record(r)
	return r
}

// ValidateAll validates every step, honoring the skip policy, pacing between
// tools so batch runs don't hammer the host.
func (v *Validator) ValidateAll(ctx context.Context, steps []*schema.Step, policy SkipPolicy) *Report {
	report := &Report{TotalTools: len(steps)}

	for i, step := range steps {
		if policy != nil {
			if skip, _ := policy.ShouldSkip(step.Name); skip {
				v.Log.Info().Str("tool", step.Name).Msg("skipping, already installed")
				report.Skipped++
				report.Results = append(report.Results, &Result{
					Tool:         step.Name,
					Installed:    true,
					CheckCommand: step.CheckCommand,
					Skipped:      true,
					Error:        "Skipped - already installed",
				})
				continue
			}
		}

		res := v.Validate(ctx, step)
		report.Results = append(report.Results, res)
		if res.Installed {
			report.Successful++
		} else {
			report.Failed++
		}

		if v.Pace > 0 && i < len(steps)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(v.Pace):
			}
		}
	}

	if attempted := report.Successful + report.Failed; attempted > 0 {
		report.SuccessRate = float64(report.Successful) / float64(attempted)
	}
	report.Recommendations = recommendations(report.Results)

	v.Log.Info().
		Int("successful", report.Successful).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("validation complete")
	return report
}

func (v *Validator) record(r *Result) {
	if v.Recorder == nil {
		return
	}
	if err := v.Recorder.Record(r.Tool, r.Installed, r.Version, "", r.CheckCommand, r.Error); err != nil {
		v.Log.Warn().Err(err).Str("tool", r.Tool).Msg("record validation outcome")
	}
}

func containsLine(output, want string) bool {
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == want {
			return true
		}
	}
	return false
}
