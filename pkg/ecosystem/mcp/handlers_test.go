package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

const planDoc = `
environment: test
steps:
  - name: git
    type: tool_install
    install_command: "apt-get install -y git"
    check_command: "git --version"
`

func writePlan(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHandleValidate_MissingPath(t *testing.T) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{}

	result, err := HandleValidate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for missing path")
	}
}

func TestHandleValidate_ValidPlan(t *testing.T) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"path": writePlan(t, planDoc)}

	result, err := HandleValidate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Errorf("expected success: %+v", result.Content)
	}
}

func TestHandleValidate_BadPlan(t *testing.T) {
	doc := `
environment: test
steps:
  - name: Jupyter
    type: tool_install
    check_command: "jupyter --version"
    depends_on: ["Python"]
`
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"path": writePlan(t, doc)}

	result, err := HandleValidate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for unresolved dependency")
	}
}

func TestHandleSchema(t *testing.T) {
	result, err := HandleSchema(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Error("expected success")
	}
	if len(result.Content) == 0 {
		t.Error("expected schema content")
	}
}

func TestHandleExec_DryRunDefault(t *testing.T) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"path": writePlan(t, planDoc)}

	result, err := HandleExec(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("expected success: %+v", result.Content)
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T", result.Content[0])
	}
	if !strings.Contains(text.Text, "git [tool_install]") {
		t.Errorf("dry-run listing missing step: %s", text.Text)
	}
}

func TestHandleExec_UnknownMode(t *testing.T) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"path": writePlan(t, planDoc), "mode": "probe"}

	result, err := HandleExec(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for unknown mode")
	}
}

func TestHandleHeal_EmptyStore(t *testing.T) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"memory": filepath.Join(t.TempDir(), "tools.json")}

	result, err := HandleHeal(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Errorf("expected success: %+v", result.Content)
	}
	text := result.Content[0].(mcp.TextContent)
	if !strings.Contains(text.Text, "no failed tools") {
		t.Errorf("text = %q", text.Text)
	}
}
