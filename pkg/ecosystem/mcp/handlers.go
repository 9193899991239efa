package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/toolforge/forge/pkg/advisor"
	"github.com/toolforge/forge/pkg/healing"
	"github.com/toolforge/forge/pkg/memory"
	"github.com/toolforge/forge/pkg/policy"
	"github.com/toolforge/forge/pkg/runner"
	"github.com/toolforge/forge/pkg/runtime"
	"github.com/toolforge/forge/pkg/schema"
	"github.com/toolforge/forge/pkg/validate"
)

// DefaultMemoryPath is where tool history lives unless overridden.
const DefaultMemoryPath = ".forge/tools.json"

// HandleValidate implements the forge/validate MCP tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	p, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	return textResult(fmt.Sprintf("✓ plan %s is valid (%d steps, ~%s)", p.PlanID, p.TotalSteps, p.EstimatedDuration)), nil
}

// HandleSchema implements the forge/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleExec implements the forge/exec MCP tool. Dry-run validates the plan
// and lists the steps without running anything.
func HandleExec(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	mode, _ := args["mode"].(string)
	if mode == "" {
		mode = "dry-run" // safe default for AI agents
	}

	p, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}

	if mode == "dry-run" {
		var b strings.Builder
		fmt.Fprintf(&b, "Plan %s (%s): %d steps, ~%s\n", p.PlanID, p.Environment, p.TotalSteps, p.EstimatedDuration)
		for i, s := range p.Steps {
			fmt.Fprintf(&b, "%d. %s [%s]", i+1, s.Name, s.Type)
			if len(s.DependsOn) > 0 {
				fmt.Fprintf(&b, " after %s", strings.Join(s.DependsOn, ", "))
			}
			b.WriteString("\n")
		}
		return textResult(b.String()), nil
	}
	if mode != "real" {
		return errorResult(fmt.Sprintf("unknown mode %q — use 'real' or 'dry-run'", mode)), nil
	}

	memPath, _ := args["memory"].(string)
	if memPath == "" {
		memPath = DefaultMemoryPath
	}
	store, err := memory.Open(memPath)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	log := zerolog.Nop()
	exec := &runner.Real{}
	v := validate.New(exec, advisor.Nop{}, store, log)
	h := healing.New(exec, store, advisor.Nop{}, log)

	eng := runtime.NewEngine(p, exec, v, h, log)
	eng.Policy = policy.NewDecider(store, memory.DefaultPreferences())

	var out bytes.Buffer
	eng.Out = &out

	report, err := eng.Run(ctx)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	response := map[string]any{
		"run_id":    report.RunID,
		"success":   report.Success(),
		"completed": report.Completed,
		"failed":    report.Failed,
		"skipped":   report.Skipped,
		"duration":  report.Duration.String(),
		"output":    out.String(),
	}
	data, _ := json.MarshalIndent(response, "", "  ")
	return textResult(string(data)), nil
}

// HandleHeal implements the forge/heal MCP tool.
func HandleHeal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	memPath, _ := args["memory"].(string)
	if memPath == "" {
		memPath = DefaultMemoryPath
	}

	store, err := memory.Open(memPath)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	failed := store.FailedTools()
	if len(failed) == 0 {
		return textResult("no failed tools on record"), nil
	}

	log := zerolog.Nop()
	exec := &runner.Real{}
	h := healing.New(exec, store, advisor.Nop{}, log)

	var results []*healing.Result
	for _, tool := range failed {
		var origErr string
		if r := store.Get(tool); r != nil {
			origErr = r.LastError
		}
		results = append(results, h.Heal(ctx, tool, origErr))
	}

	data, _ := json.MarshalIndent(results, "", "  ")
	return textResult(string(data)), nil
}

func formatErrors(errs []*schema.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "error" {
			msgs = append(msgs, fmt.Sprintf("[%s] %s", e.Phase, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
