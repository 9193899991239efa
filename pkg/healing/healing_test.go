package healing

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/toolforge/forge/pkg/advisor"
	"github.com/toolforge/forge/pkg/memory"
	"github.com/toolforge/forge/pkg/runner"
	"github.com/toolforge/forge/pkg/validate"
)

type fakeExec struct {
	results map[string]*runner.CommandResult
	calls   []string
}

func (f *fakeExec) Run(_ context.Context, command string, _ time.Duration) (*runner.CommandResult, error) {
	f.calls = append(f.calls, command)
	if r, ok := f.results[command]; ok {
		return r, nil
	}
	return nil, &runner.SpawnError{Binary: strings.Fields(command)[0]}
}

type fakeStore struct {
	records  map[string]*memory.ToolRecord
	failures []string
}

func (f *fakeStore) Get(name string) *memory.ToolRecord { return f.records[name] }

func (f *fakeStore) Record(name string, installed bool, _, _, _, _ string) error {
	if !installed {
		f.failures = append(f.failures, name)
	}
	return nil
}

type fakeAdvisor struct {
	fix    string
	called bool
}

func (f *fakeAdvisor) SuggestFix(context.Context, advisor.FixContext) (string, bool) {
	f.called = true
	return f.fix, f.fix != ""
}

func TestHealFromMemoryBypassesAdvisor(t *testing.T) {
	exec := &fakeExec{results: map[string]*runner.CommandResult{
		"apt-get install docker.io": {ExitCode: 0},
	}}
	store := &fakeStore{records: map[string]*memory.ToolRecord{
		"docker": {Name: "docker", InstallCommand: "apt-get install docker.io"},
	}}
	adv := &fakeAdvisor{fix: "curl -fsSL https://get.docker.com | sh"}

	c := New(exec, store, adv, zerolog.Nop())
	res := c.Heal(context.Background(), "docker", "command not found: docker")

	if !res.Success {
		t.Fatalf("healing failed: %+v", res)
	}
	if res.Source != SourceMemory || res.Command != "apt-get install docker.io" {
		t.Errorf("result = %+v, want memory-sourced command", res)
	}
	if adv.called {
		t.Error("advisor consulted despite remembered install command")
	}
}

func TestHealFallsBackToAdvisor(t *testing.T) {
	exec := &fakeExec{results: map[string]*runner.CommandResult{
		"pip install jupyter": {ExitCode: 0},
	}}
	store := &fakeStore{records: map[string]*memory.ToolRecord{}}
	adv := &fakeAdvisor{fix: "pip install jupyter"}

	c := New(exec, store, adv, zerolog.Nop())
	res := c.Heal(context.Background(), "Jupyter", "jupyter: not found")

	if !res.Success || res.Source != SourceLLM {
		t.Errorf("result = %+v, want llm-sourced success", res)
	}
	if !adv.called {
		t.Error("advisor not consulted")
	}
}

func TestHealNoRemediation(t *testing.T) {
	c := New(&fakeExec{}, &fakeStore{}, advisor.Nop{}, zerolog.Nop())
	res := c.Heal(context.Background(), "obscure-tool", "not found")

	if res.Success || res.Command != "" || res.Source != "" {
		t.Errorf("result = %+v, want empty failure", res)
	}
}

func TestHealFailureRecorded(t *testing.T) {
	exec := &fakeExec{results: map[string]*runner.CommandResult{
		"apt-get install terraform": {ExitCode: 1, Stderr: "unable to locate package"},
	}}
	store := &fakeStore{records: map[string]*memory.ToolRecord{
		"terraform": {Name: "terraform", InstallCommand: "apt-get install terraform"},
	}}

	c := New(exec, store, advisor.Nop{}, zerolog.Nop())
	res := c.Heal(context.Background(), "terraform", "command not found: terraform")

	if res.Success {
		t.Fatal("expected failure")
	}
	if len(store.failures) != 1 || store.failures[0] != "terraform" {
		t.Errorf("failures recorded = %v", store.failures)
	}
}

func TestHealSuccessRecorded(t *testing.T) {
	// A successful heal clears the failed state in the store; the tool must
	// not stay marked failed until some later validation.
	exec := &fakeExec{results: map[string]*runner.CommandResult{
		"pip install jupyter": {ExitCode: 0},
	}}
	store, err := memory.Open(filepath.Join(t.TempDir(), "tools.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store.Record("Jupyter", false, "", "", "jupyter --version", "jupyter: not found")
	adv := &fakeAdvisor{fix: "pip install jupyter"}

	c := New(exec, store, adv, zerolog.Nop())
	res := c.Heal(context.Background(), "Jupyter", "jupyter: not found")
	if !res.Success {
		t.Fatalf("healing failed: %+v", res)
	}

	r := store.Get("Jupyter")
	if r == nil || !r.Installed || r.FailureCount != 0 || r.LastError != "" {
		t.Errorf("record = %+v, want installed with failure state cleared", r)
	}
	if r.InstallCommand != "pip install jupyter" {
		t.Errorf("install command = %q, want the healing command remembered", r.InstallCommand)
	}
}

func TestHealOncePerTool(t *testing.T) {
	exec := &fakeExec{results: map[string]*runner.CommandResult{
		"apt-get install docker.io": {ExitCode: 0},
	}}
	store := &fakeStore{records: map[string]*memory.ToolRecord{
		"docker": {Name: "docker", InstallCommand: "apt-get install docker.io"},
	}}

	c := New(exec, store, advisor.Nop{}, zerolog.Nop())
	first := c.Heal(context.Background(), "docker", "err")
	second := c.Heal(context.Background(), "docker", "err")

	if !first.Success {
		t.Fatal("first attempt should succeed")
	}
	if second.Success {
		t.Error("second attempt should not run")
	}
	if len(exec.calls) != 1 {
		t.Errorf("healing command ran %d times, want 1", len(exec.calls))
	}
}

func TestHealAll(t *testing.T) {
	exec := &fakeExec{results: map[string]*runner.CommandResult{
		"apt-get install docker.io": {ExitCode: 0},
	}}
	store := &fakeStore{records: map[string]*memory.ToolRecord{
		"docker": {Name: "docker", InstallCommand: "apt-get install docker.io"},
	}}

	c := New(exec, store, advisor.Nop{}, zerolog.Nop())
	results := c.HealAll(context.Background(), []*validate.Result{
		{Tool: "docker", Error: "command not found: docker"},
		{Tool: "ghost", Error: "command not found: ghost"},
	})

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if !results[0].Success || results[1].Success {
		t.Errorf("results = %+v", results)
	}
	if results[1].OriginalError != "command not found: ghost" {
		t.Errorf("original error = %q", results[1].OriginalError)
	}
}
