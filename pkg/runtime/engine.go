// Package runtime drives installation plans through their step state machine:
// scheduling around dependencies, install execution, validation, retries,
// healing, and run snapshots.
package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/rs/zerolog"

	"github.com/toolforge/forge/pkg/healing"
	"github.com/toolforge/forge/pkg/runner"
	"github.com/toolforge/forge/pkg/schema"
	"github.com/toolforge/forge/pkg/validate"
)

// DefaultInstallTimeout bounds one install or portal command.
const DefaultInstallTimeout = 60 * time.Second

// StepPolicy decides, per tool name, whether a step should be skipped
// outright and whether a failed step is eligible for another attempt.
type StepPolicy interface {
	validate.SkipPolicy
	ShouldRetry(name string) bool
}

// Engine executes an installation plan.
type Engine struct {
	Plan      *schema.Plan
	Exec      runner.Executor
	Validator *validate.Validator
	Healer    *healing.Coordinator
	Policy    StepPolicy
	Log       zerolog.Logger
	State     *RunState

	// BaseDir receives run snapshots; empty disables them.
	BaseDir        string
	InstallTimeout time.Duration
	Out            io.Writer

	report *RunReport
}

// NewEngine wires an engine for one plan run. Healer and Policy may be nil.
func NewEngine(plan *schema.Plan, exec runner.Executor, v *validate.Validator, h *healing.Coordinator, log zerolog.Logger) *Engine {
	runID := GenerateRunID()
	return &Engine{
		Plan:      plan,
		Exec:      exec,
		Validator: v,
		Healer:    h,
		Log:       log,
		State: &RunState{
			RunID:     runID,
			Plan:      plan,
			StartedAt: time.Now().UTC(),
		},
		InstallTimeout: DefaultInstallTimeout,
		Out:            os.Stdout,
	}
}

func (e *Engine) out() io.Writer {
	if e.Out != nil {
		return e.Out
	}
	return os.Stdout
}

func (e *Engine) installTimeout() time.Duration {
	if e.InstallTimeout > 0 {
		return e.InstallTimeout
	}
	return DefaultInstallTimeout
}

// NextStep returns the first pending step whose dependencies are satisfied,
// or nil when no step is currently runnable.
func (e *Engine) NextStep() *schema.Step {
	for _, s := range e.Plan.Steps {
		if s.Status != schema.StatusPending {
			continue
		}
		if ready, _ := e.depsState(s); ready {
			return s
		}
	}
	return nil
}

// depsState reports whether a step's dependencies are satisfied, and if they
// are permanently unsatisfiable, the name of the blocking dependency. A
// skipped dependency satisfies: skipping means the tool is already there.
func (e *Engine) depsState(s *schema.Step) (ready bool, blockedOn string) {
	for _, dep := range s.DependsOn {
		d := e.Plan.StepByName(dep)
		if d == nil {
			continue
		}
		switch d.Status {
		case schema.StatusCompleted, schema.StatusSkipped:
		case schema.StatusFailed:
			return false, dep
		default:
			return false, ""
		}
	}
	return true, ""
}

// StartStep moves a step into in_progress.
func (e *Engine) StartStep(s *schema.Step) {
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	s.Status = schema.StatusInProgress
}

// CompleteStep marks a step done and bumps the completed counter.
func (e *Engine) CompleteStep(s *schema.Step, version string) {
	s.Status = schema.StatusCompleted
	s.Version = version
	s.ErrorMessage = ""
	s.EndedAt = time.Now().UTC()
	e.Plan.CompletedSteps++
}

// FailStep marks a step terminally failed. Callers exhaust retries first.
func (e *Engine) FailStep(s *schema.Step, errMsg string) {
	s.Status = schema.StatusFailed
	s.ErrorMessage = errMsg
	s.EndedAt = time.Now().UTC()
	e.Plan.FailedSteps++
}

// SkipStep marks a step skipped with a reason.
func (e *Engine) SkipStep(s *schema.Step, reason string) {
	s.Status = schema.StatusSkipped
	s.ErrorMessage = reason
	s.EndedAt = time.Now().UTC()
	e.Plan.SkippedSteps++
}

// RetryStep moves a non-terminal failing step back through retrying. Returns
// false once the retry budget is spent.
func (e *Engine) RetryStep(s *schema.Step) bool {
	if s.RetryCount >= s.MaxRetries {
		return false
	}
	s.RetryCount++
	s.Status = schema.StatusRetrying
	return true
}

// IsComplete reports whether every step reached a terminal state.
func (e *Engine) IsComplete() bool {
	for _, s := range e.Plan.Steps {
		if !s.Status.Terminal() {
			return false
		}
	}
	return true
}

// FailedStepList returns the terminally failed steps.
func (e *Engine) FailedStepList() []*schema.Step {
	var out []*schema.Step
	for _, s := range e.Plan.Steps {
		if s.Status == schema.StatusFailed {
			out = append(out, s)
		}
	}
	return out
}

// RetryableSteps returns failed steps that still have retry budget.
func (e *Engine) RetryableSteps() []*schema.Step {
	var out []*schema.Step
	for _, s := range e.Plan.Steps {
		if s.Status == schema.StatusFailed && s.RetryCount < s.MaxRetries {
			out = append(out, s)
		}
	}
	return out
}

// evalCondition evaluates a step's when-guard against the plan vars. An
// empty guard is always true.
func (e *Engine) evalCondition(exprStr string) (bool, error) {
	exprStr = strings.TrimSpace(exprStr)
	if exprStr == "" {
		return true, nil
	}

	env := map[string]interface{}{
		"environment": e.Plan.Environment,
		"vars":        e.Plan.Vars,
	}
	for k, v := range e.Plan.Vars {
		env[k] = v
	}

	program, err := expr.Compile(exprStr, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compile condition %q: %w", exprStr, err)
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("eval condition %q: %w", exprStr, err)
	}
	return output.(bool), nil
}

// Run executes the plan to completion. Every step reaches a terminal state;
// individual failures never abort the run. The returned report is also
// reachable while running via the plan counters.
func (e *Engine) Run(ctx context.Context) (*RunReport, error) {
	start := time.Now()
	e.report = &RunReport{
		RunID:       e.State.RunID,
		PlanID:      e.Plan.PlanID,
		Environment: e.Plan.Environment,
		Total:       e.Plan.TotalSteps,
	}

	fmt.Fprintf(e.out(), "Plan %s: %d steps (%s)\n", e.Plan.PlanID, e.Plan.TotalSteps, e.Plan.Environment)

	for !e.IsComplete() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run cancelled: %w", err)
		}

		progressed := false
		for i, s := range e.Plan.Steps {
			if s.Status != schema.StatusPending {
				continue
			}

			matched, err := e.evalCondition(s.When)
			if err != nil {
				e.FailStep(s, err.Error())
				fmt.Fprintf(e.out(), "✗ Step %d/%d: %s — bad when-guard: %v\n", i+1, e.Plan.TotalSteps, s.Name, err)
				e.snapshot(i)
				progressed = true
				continue
			}
			if !matched {
				e.SkipStep(s, fmt.Sprintf("when: %s → false", s.When))
				fmt.Fprintf(e.out(), "⊘ Step %d/%d: %s — skipped (when: %s → false)\n", i+1, e.Plan.TotalSteps, s.Name, s.When)
				e.snapshot(i)
				progressed = true
				continue
			}

			ready, blockedOn := e.depsState(s)
			if blockedOn != "" {
				e.SkipStep(s, fmt.Sprintf("dependency %s failed", blockedOn))
				fmt.Fprintf(e.out(), "⊘ Step %d/%d: %s — skipped (dependency %s failed)\n", i+1, e.Plan.TotalSteps, s.Name, blockedOn)
				e.snapshot(i)
				progressed = true
				continue
			}
			if !ready {
				continue
			}

			if e.Policy != nil {
				if skip, reason := e.Policy.ShouldSkip(s.Name); skip {
					e.SkipStep(s, reason)
					fmt.Fprintf(e.out(), "⊘ Step %d/%d: %s — skipped (%s)\n", i+1, e.Plan.TotalSteps, s.Name, reason)
					e.snapshot(i)
					progressed = true
					continue
				}
			}

			e.executeStep(ctx, i, s)
			e.snapshot(i)
			progressed = true
		}

		// Whatever is still pending depends on something that will never
		// run. Domain validation rejects cycles, but plans built in memory
		// can still get here, and the run must terminate.
		if !progressed {
			for i, s := range e.Plan.Steps {
				if s.Status == schema.StatusPending {
					e.SkipStep(s, "unresolvable dependencies")
					e.snapshot(i)
				}
			}
		}
	}

	e.report.Completed = e.Plan.CompletedSteps
	e.report.Failed = e.Plan.FailedSteps
	e.report.Skipped = e.Plan.SkippedSteps
	e.report.Duration = time.Since(start)

	if e.report.Success() {
		fmt.Fprintf(e.out(), "\n✓ Plan completed: %d done, %d skipped\n", e.report.Completed, e.report.Skipped)
	} else {
		fmt.Fprintf(e.out(), "\n✗ Plan completed with failures: %d done, %d failed, %d skipped\n",
			e.report.Completed, e.report.Failed, e.report.Skipped)
	}

	e.Log.Info().
		Str("run_id", e.report.RunID).
		Int("completed", e.report.Completed).
		Int("failed", e.report.Failed).
		Int("skipped", e.report.Skipped).
		Dur("duration", e.report.Duration).
		Msg("run complete")
	return e.report, nil
}

// executeStep drives one step from in_progress to a terminal state: install
// and validate, plain retries while the policy allows them, then one healing
// pass once the retry budget is spent.
func (e *Engine) executeStep(ctx context.Context, index int, s *schema.Step) {
	fmt.Fprintf(e.out(), "\n▶ Step %d/%d: %s [%s]\n", index+1, e.Plan.TotalSteps, s.Name, s.Type)
	e.StartStep(s)

	version, errMsg := e.attemptStep(ctx, s)
	for errMsg != "" {
		if !e.retryEligible(s) || !e.RetryStep(s) {
			break
		}
		fmt.Fprintf(e.out(), "  ↻ %s retry %d/%d\n", s.Name, s.RetryCount, s.MaxRetries)
		s.Status = schema.StatusInProgress
		version, errMsg = e.attemptStep(ctx, s)
	}
	if errMsg == "" {
		e.CompleteStep(s, version)
		if version != "" {
			fmt.Fprintf(e.out(), "  ✓ %s ok (v%s)\n", s.Name, version)
		} else {
			fmt.Fprintf(e.out(), "  ✓ %s ok\n", s.Name)
		}
		return
	}

	// Retries are spent. Healing runs an install command, so it gets one
	// pass only, followed by a single re-validation.
	if e.Healer != nil && (s.Type == schema.StepToolInstall || s.Type == schema.StepExtensionInstall) {
		h := e.Healer.Heal(ctx, s.Name, errMsg)
		if h.Command != "" || h.Success {
			e.report.Healings = append(e.report.Healings, h)
		}
		if h.Success {
			version, healErr := e.attemptStep(ctx, s)
			if healErr == "" {
				e.report.Healed++
				e.CompleteStep(s, version)
				fmt.Fprintf(e.out(), "  ✓ %s healed (%s)\n", s.Name, h.Source)
				return
			}
			errMsg = healErr
		}
	}

	e.FailStep(s, errMsg)
	fmt.Fprintf(e.out(), "  ✗ %s failed: %s\n", s.Name, errMsg)
}

// retryEligible consults the policy before a retry. Steps with no history
// are always eligible; a nil policy allows every retry.
func (e *Engine) retryEligible(s *schema.Step) bool {
	if e.Policy == nil {
		return true
	}
	return e.Policy.ShouldRetry(s.Name)
}

// attemptStep runs one install-and-validate cycle. Empty errMsg means
// success; version carries the validated version when known.
func (e *Engine) attemptStep(ctx context.Context, s *schema.Step) (version, errMsg string) {
	switch s.Type {
	case schema.StepLoginPortal:
		return "", e.runCommand(ctx, s.InstallCommand)

	case schema.StepValidation:
		res := e.Validator.Validate(ctx, s)
		e.report.Validations = append(e.report.Validations, res)
		if res.Installed {
			return res.Version, ""
		}
		return "", res.Error

	default:
		if s.InstallCommand != "" {
			if msg := e.runCommand(ctx, s.InstallCommand); msg != "" {
				e.Log.Warn().Str("step", s.Name).Str("error", msg).Msg("install command failed")
			}
		}
		res := e.Validator.Validate(ctx, s)
		e.report.Validations = append(e.report.Validations, res)
		if res.Installed {
			return res.Version, ""
		}
		return "", res.Error
	}
}

// runCommand executes a command with the install timeout and reduces its
// outcome to an error message, empty on success.
func (e *Engine) runCommand(ctx context.Context, command string) string {
	if command == "" {
		return "no command to run"
	}
	out, err := e.Exec.Run(ctx, command, e.installTimeout())
	if err != nil {
		return err.Error()
	}
	if out.Success() {
		return ""
	}
	msg := strings.TrimSpace(out.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(out.Stdout)
	}
	if msg == "" {
		msg = fmt.Sprintf("exit status %d", out.ExitCode)
	}
	return msg
}

func (e *Engine) snapshot(stepIndex int) {
	if e.BaseDir == "" {
		return
	}
	e.State.StepIndex = stepIndex
	path := filepath.Join(e.BaseDir, "snapshots", fmt.Sprintf("step-%04d.json", stepIndex))
	if err := SaveSnapshot(e.State, path); err != nil {
		e.Log.Warn().Err(err).Msg("save snapshot")
	}
	if err := SaveSnapshot(e.State, filepath.Join(e.BaseDir, "state.json")); err != nil {
		e.Log.Warn().Err(err).Msg("save state")
	}
}
