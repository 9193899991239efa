package schema

import (
	"strings"
	"testing"
)

func mustLoad(t *testing.T, doc string) *Plan {
	t.Helper()
	p, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return p
}

func domainMessages(errs []*ValidationError) []string {
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

func TestValidateDomainValidPlan(t *testing.T) {
	p := mustLoad(t, samplePlan)
	if errs := ValidateDomain(p); HasErrors(errs) {
		t.Errorf("unexpected errors: %v", domainMessages(errs))
	}
}

func TestValidateDomainEmptyPlan(t *testing.T) {
	p := &Plan{Environment: "test"}
	errs := ValidateDomain(p)
	if !HasErrors(errs) {
		t.Fatal("expected error for empty plan")
	}
}

func TestValidateDomainDuplicateNames(t *testing.T) {
	p := mustLoad(t, `
environment: test
steps:
  - name: Git
    type: tool_install
    check_command: "git --version"
  - name: Git
    type: tool_install
    check_command: "git --version"
`)
	errs := ValidateDomain(p)
	if !HasErrors(errs) {
		t.Fatal("expected duplicate-name error")
	}
	found := false
	for _, e := range errs {
		if strings.Contains(e.Message, "duplicate step name") {
			found = true
		}
	}
	if !found {
		t.Errorf("no duplicate-name message in %v", domainMessages(errs))
	}
}

func TestValidateDomainUnknownType(t *testing.T) {
	p := &Plan{
		Environment: "test",
		Steps:       []*Step{{Name: "X", Type: "mystery"}},
	}
	errs := ValidateDomain(p)
	if !HasErrors(errs) {
		t.Fatal("expected unknown-type error")
	}
}

func TestValidateDomainMissingCheckCommand(t *testing.T) {
	p := &Plan{
		Environment: "test",
		Steps:       []*Step{{Name: "Git", Type: StepToolInstall}},
	}
	errs := ValidateDomain(p)
	if !HasErrors(errs) {
		t.Fatal("expected missing check_command error")
	}
}

func TestValidateDomainUnresolvedDependency(t *testing.T) {
	p := mustLoad(t, `
environment: test
steps:
  - name: Jupyter
    type: tool_install
    check_command: "jupyter --version"
    depends_on: ["Python"]
`)
	errs := ValidateDomain(p)
	if !HasErrors(errs) {
		t.Fatal("expected unresolved dependency error")
	}
}

func TestValidateDomainCycle(t *testing.T) {
	p := mustLoad(t, `
environment: test
steps:
  - name: A
    type: tool_install
    check_command: "a --version"
    depends_on: ["B"]
  - name: B
    type: tool_install
    check_command: "b --version"
    depends_on: ["A"]
`)
	errs := ValidateDomain(p)
	found := false
	for _, e := range errs {
		if strings.Contains(e.Message, "circular dependency") {
			found = true
		}
	}
	if !found {
		t.Errorf("no cycle error in %v", domainMessages(errs))
	}
}

func TestValidateDomainExtensionWithoutIDWarns(t *testing.T) {
	p := mustLoad(t, `
environment: test
steps:
  - name: Python Extension
    type: extension_install
    check_command: "code --list-extensions"
`)
	errs := ValidateDomain(p)
	if HasErrors(errs) {
		t.Errorf("missing extension_id should warn, not error: %v", domainMessages(errs))
	}
	if len(errs) == 0 {
		t.Error("expected a warning for missing extension_id")
	}
}

func TestGenerateJSONSchema(t *testing.T) {
	out, err := GenerateJSONSchema()
	if err != nil {
		t.Fatalf("GenerateJSONSchema: %v", err)
	}
	for _, want := range []string{"Installation Plan", "steps", "confidence_score"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("schema missing %q", want)
		}
	}
}
