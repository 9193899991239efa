// Package main provides the forge binary — developer tool stack setup.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/toolforge/forge/pkg/advisor"
	"github.com/toolforge/forge/pkg/healing"
	"github.com/toolforge/forge/pkg/logging"
	"github.com/toolforge/forge/pkg/memory"
	"github.com/toolforge/forge/pkg/policy"
	"github.com/toolforge/forge/pkg/runner"
	"github.com/toolforge/forge/pkg/runtime"
	"github.com/toolforge/forge/pkg/schema"
	"github.com/toolforge/forge/pkg/validate"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	loadDotEnv() // load .env file if present (gitignored)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file from the working directory and sets any
// variables that aren't already set in the environment. Lines are KEY=VALUE
// (or KEY="VALUE"). Comments (#) and blanks are skipped.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return // no .env file — that's fine
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "Developer tool stack setup engine",
	Long:  "forge — plans, installs, validates, and heals developer tool stacks.",
}

var (
	flagMemory  string
	flagPrefs   string
	flagAdvisor string
)

func openStore() (*memory.Store, error) {
	return memory.Open(flagMemory)
}

func buildAdvisor() advisor.FixGenerator {
	if flagAdvisor == "" {
		return advisor.Nop{}
	}
	a := advisor.NewCLI(logging.New("forge"))
	a.Binary = flagAdvisor
	return a
}

// --- validate ---

var (
	validateCheck string
	validateHeal  bool
)

var validateCmd = &cobra.Command{
	Use:   "validate [plan.yaml | tool-name]",
	Short: "Validate a plan file, or check that a single tool works",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	target := args[0]

	ext := strings.ToLower(filepath.Ext(target))
	if ext == ".yaml" || ext == ".yml" {
		return validatePlanFile(target)
	}
	return validateTool(cmd.Context(), target)
}

func validatePlanFile(path string) error {
	p, errs := schema.ValidateFile(path)

	var errors, warnings []*schema.ValidationError
	for _, e := range errs {
		if e.Severity == "warning" {
			warnings = append(warnings, e)
		} else {
			errors = append(errors, e)
		}
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", w.Phase, w.Message)
		if w.Path != "" {
			fmt.Fprintf(os.Stderr, "    at: %s\n", w.Path)
		}
	}
	if len(errors) > 0 {
		fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n\n", len(errors))
		for i, e := range errors {
			fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
			}
		}
		return fmt.Errorf("validation failed with %d error(s)", len(errors))
	}

	fmt.Printf("✓ plan %s is valid (%d steps, ~%s)\n", p.PlanID, p.TotalSteps, p.EstimatedDuration)
	return nil
}

func validateTool(ctx context.Context, tool string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	log := logging.New("forge")
	exec := &runner.Real{}
	v := validate.New(exec, buildAdvisor(), store, log)

	check := validateCheck
	if check == "" {
		if r := store.Get(tool); r != nil && r.CheckCommand != "" {
			check = r.CheckCommand
		} else {
			check = strings.ToLower(tool) + " --version"
		}
	}

	res := v.Validate(ctx, &schema.Step{Name: tool, Type: schema.StepToolInstall, CheckCommand: check})
	if res.Installed {
		if res.Version != "" {
			fmt.Printf("✓ %s ok (v%s, confidence %.2f)\n", tool, res.Version, res.Confidence)
		} else {
			fmt.Printf("✓ %s ok (confidence %.2f)\n", tool, res.Confidence)
		}
		return nil
	}

	fmt.Printf("✗ %s failed: %s\n", tool, res.Error)
	if validateHeal {
		h := healing.New(exec, store, buildAdvisor(), log)
		hr := h.Heal(ctx, tool, res.Error)
		if hr.Success {
			fmt.Printf("  healed via %s: %s\n", hr.Source, hr.Command)
			if again := v.Validate(ctx, &schema.Step{Name: tool, Type: schema.StepToolInstall, CheckCommand: check}); again.Installed {
				fmt.Printf("✓ %s ok after healing\n", tool)
				return nil
			}
		}
	}
	return fmt.Errorf("%s validation failed", tool)
}

// --- exec ---

var (
	execDryRun  bool
	execNoHeal  bool
	execRunsDir string
	execVars    []string
)

var execCmd = &cobra.Command{
	Use:   "exec [plan.yaml]",
	Short: "Execute an installation plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runExec,
}

func runExec(cmd *cobra.Command, args []string) error {
	path := args[0]

	p, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		for _, e := range errs {
			if e.Severity == "error" {
				fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Phase, e.Message)
			}
		}
		return fmt.Errorf("plan is not valid")
	}

	for _, kv := range execVars {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid --var %q, want key=value", kv)
		}
		if p.Vars == nil {
			p.Vars = make(map[string]string)
		}
		p.Vars[parts[0]] = parts[1]
	}

	if execDryRun {
		fmt.Printf("Plan %s (%s): %d steps, ~%s\n", p.PlanID, p.Environment, p.TotalSteps, p.EstimatedDuration)
		for i, s := range p.Steps {
			fmt.Printf("%d. %s [%s]", i+1, s.Name, s.Type)
			if len(s.DependsOn) > 0 {
				fmt.Printf(" after %s", strings.Join(s.DependsOn, ", "))
			}
			fmt.Println()
		}
		return nil
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	prefs, err := memory.LoadPreferences(flagPrefs)
	if err != nil {
		return err
	}

	log := logging.New("forge")
	exec := &runner.Real{}
	adv := buildAdvisor()
	v := validate.New(exec, adv, store, log)

	var h *healing.Coordinator
	if !execNoHeal {
		h = healing.New(exec, store, adv, log)
	}

	eng := runtime.NewEngine(p, exec, v, h, log)
	eng.Policy = policy.NewDecider(store, prefs)
	eng.BaseDir = filepath.Join(execRunsDir, eng.State.RunID)

	report, err := eng.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("  Artifacts: %s\n", eng.BaseDir)
	if !report.Success() {
		return fmt.Errorf("plan finished with %d failed step(s)", report.Failed)
	}
	return nil
}

// --- heal ---

var healCmd = &cobra.Command{
	Use:   "heal [tool]",
	Short: "Heal a failed tool, or every failed tool on record",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHeal,
}

func runHeal(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	var tools []string
	if len(args) == 1 {
		tools = args
	} else {
		tools = store.FailedTools()
	}
	if len(tools) == 0 {
		fmt.Println("no failed tools on record")
		return nil
	}

	log := logging.New("forge")
	h := healing.New(&runner.Real{}, store, buildAdvisor(), log)

	failed := 0
	for _, tool := range tools {
		var origErr string
		if r := store.Get(tool); r != nil {
			origErr = r.LastError
		}
		res := h.Heal(cmd.Context(), tool, origErr)
		switch {
		case res.Success:
			fmt.Printf("✓ %s healed (%s: %s)\n", tool, res.Source, res.Command)
		case res.Command == "":
			fmt.Printf("⚠ %s: no healing suggestion available\n", tool)
			failed++
		default:
			fmt.Printf("✗ %s: healing command failed (%s)\n", tool, res.Command)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d tool(s) not healed", failed)
	}
	return nil
}

// --- memory ---

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect or clear the tool memory store",
}

var memoryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print all tool records as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(store.All(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var memoryFailedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List tools whose last result was a failure",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		for _, name := range store.FailedTools() {
			r := store.Get(name)
			fmt.Printf("%s (failures: %d, last error: %s)\n", name, r.FailureCount, r.LastError)
		}
		return nil
	},
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all tool records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println("memory cleared")
		return nil
	},
}

// --- schema ---

var schemaOut string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export the installation plan JSON Schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := schema.GenerateJSONSchema()
		if err != nil {
			return err
		}
		if schemaOut == "" {
			fmt.Println(string(data))
			return nil
		}
		if err := os.WriteFile(schemaOut, data, 0o644); err != nil {
			return fmt.Errorf("write schema: %w", err)
		}
		fmt.Printf("✓ schema written to %s\n", schemaOut)
		return nil
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("forge %s (%s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagMemory, "memory", ".forge/tools.json", "path to the tool memory store")
	rootCmd.PersistentFlags().StringVar(&flagPrefs, "prefs", ".forge/preferences.toml", "path to the preferences file")
	rootCmd.PersistentFlags().StringVar(&flagAdvisor, "advisor", "", "LLM CLI binary for fix suggestions (empty disables)")

	validateCmd.Flags().StringVar(&validateCheck, "check", "", "check command for single-tool validation")
	validateCmd.Flags().BoolVar(&validateHeal, "heal", false, "attempt healing when single-tool validation fails")

	execCmd.Flags().BoolVar(&execDryRun, "dry-run", false, "list the steps without executing anything")
	execCmd.Flags().BoolVar(&execNoHeal, "no-heal", false, "disable self-healing")
	execCmd.Flags().StringVar(&execRunsDir, "runs-dir", ".forge/runs", "directory for run snapshots")
	execCmd.Flags().StringArrayVar(&execVars, "var", nil, "plan variable override (key=value, repeatable)")

	schemaCmd.Flags().StringVar(&schemaOut, "out", "", "write the schema to a file instead of stdout")

	memoryCmd.AddCommand(memoryShowCmd)
	memoryCmd.AddCommand(memoryFailedCmd)
	memoryCmd.AddCommand(memoryClearCmd)

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(healCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}
