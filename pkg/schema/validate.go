package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g., "steps[2].type")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// HasErrors reports whether any entry has error severity.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// ValidateFile performs the full 3-phase validation pipeline on a plan file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (custom Go rules)
func ValidateFile(path string) (*Plan, []*ValidationError) {
	var all []*ValidationError

	p, err := LoadFile(path)
	if err != nil {
		all = append(all, &ValidationError{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		})
		return nil, all
	}

	all = append(all, validateSemantic(p)...)
	all = append(all, ValidateDomain(p)...)

	if len(all) > 0 {
		return p, all
	}
	return p, nil
}

// validateSemantic validates the plan against the generated JSON Schema.
func validateSemantic(p *Plan) []*ValidationError {
	semErr := func(msg string) []*ValidationError {
		return []*ValidationError{{Phase: "semantic", Message: msg, Severity: "error"}}
	}

	data, err := json.Marshal(p)
	if err != nil {
		return semErr(fmt.Sprintf("marshal for schema validation: %v", err))
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return semErr(fmt.Sprintf("generate schema: %v", err))
	}

	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return semErr(fmt.Sprintf("unmarshal schema: %v", err))
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("plan-v0.json", schemaDoc); err != nil {
		return semErr(fmt.Sprintf("add schema resource: %v", err))
	}
	sch, err := c.Compile("plan-v0.json")
	if err != nil {
		return semErr(fmt.Sprintf("compile schema: %v", err))
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return semErr(fmt.Sprintf("unmarshal document: %v", err))
	}

	if err := sch.Validate(doc); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				errs = append(errs, &ValidationError{
					Phase:    "semantic",
					Path:     strings.Join(cause.InstanceLocation, "/"),
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
					Severity: "error",
				})
			}
		} else {
			errs = semErr(err.Error())
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// ValidateDomain performs Phase 3 domain-level validation.
// Returns a slice of errors; empty means valid.
func ValidateDomain(p *Plan) []*ValidationError {
	var errs []*ValidationError

	if len(p.Steps) == 0 {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "steps",
			Message:  "plan must contain at least one step",
			Severity: "error",
		})
		return errs
	}

	validTypes := map[StepType]bool{
		StepToolInstall:      true,
		StepExtensionInstall: true,
		StepLoginPortal:      true,
		StepValidation:       true,
	}

	// Step name uniqueness.
	seen := make(map[string]int)
	for i, s := range p.Steps {
		if prev, ok := seen[s.Name]; ok {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("steps[%d].name", i),
				Message:  fmt.Sprintf("duplicate step name %q (first at steps[%d]); step names must be unique", s.Name, prev),
				Severity: "error",
			})
		}
		seen[s.Name] = i
	}

	// Type-specific field validation.
	for i, s := range p.Steps {
		if !validTypes[s.Type] {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("steps[%d].type", i),
				Message:  fmt.Sprintf("unknown step type %q", s.Type),
				Severity: "error",
			})
			continue
		}
		switch s.Type {
		case StepToolInstall, StepValidation:
			if s.CheckCommand == "" {
				errs = append(errs, &ValidationError{
					Phase:    "domain",
					Path:     fmt.Sprintf("steps[%d].check_command", i),
					Message:  fmt.Sprintf("step %q requires a check_command", s.Name),
					Severity: "error",
				})
			}
		case StepExtensionInstall:
			if s.ExtensionID == "" {
				errs = append(errs, &ValidationError{
					Phase:    "domain",
					Path:     fmt.Sprintf("steps[%d].extension_id", i),
					Message:  fmt.Sprintf("extension step %q has no extension_id; the validator will fall back to its static lookup table", s.Name),
					Severity: "warning",
				})
			}
		case StepLoginPortal:
			if s.InstallCommand == "" {
				errs = append(errs, &ValidationError{
					Phase:    "domain",
					Path:     fmt.Sprintf("steps[%d].install_command", i),
					Message:  fmt.Sprintf("login portal step %q requires an install_command to open the portal", s.Name),
					Severity: "error",
				})
			}
		}
		if s.ConfidenceScore < 0 || s.ConfidenceScore > 1 {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("steps[%d].confidence_score", i),
				Message:  fmt.Sprintf("confidence_score %v out of range [0,1]", s.ConfidenceScore),
				Severity: "error",
			})
		}
		if s.MaxRetries < 0 {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("steps[%d].max_retries", i),
				Message:  "max_retries must not be negative",
				Severity: "error",
			})
		}
	}

	// Dependency references resolve.
	for i, s := range p.Steps {
		for _, dep := range s.DependsOn {
			if _, ok := seen[dep]; !ok {
				errs = append(errs, &ValidationError{
					Phase:    "domain",
					Path:     fmt.Sprintf("steps[%d].depends_on", i),
					Message:  fmt.Sprintf("step %q depends on %q which is not in the plan", s.Name, dep),
					Severity: "error",
				})
			}
			if dep == s.Name {
				errs = append(errs, &ValidationError{
					Phase:    "domain",
					Path:     fmt.Sprintf("steps[%d].depends_on", i),
					Message:  fmt.Sprintf("step %q depends on itself", s.Name),
					Severity: "error",
				})
			}
		}
	}

	// Dependency cycles.
	if cyc := findCycle(p); cyc != "" {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "steps",
			Message:  fmt.Sprintf("circular dependency detected at step %q", cyc),
			Severity: "error",
		})
	}

	return errs
}

// findCycle runs a DFS over the dependency graph and returns the name of a
// step on a cycle, or "".
func findCycle(p *Plan) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(p.Steps))

	var visit func(name string) string
	visit = func(name string) string {
		switch color[name] {
		case gray:
			return name
		case black:
			return ""
		}
		color[name] = gray
		if s := p.StepByName(name); s != nil {
			for _, dep := range s.DependsOn {
				if hit := visit(dep); hit != "" {
					return hit
				}
			}
		}
		color[name] = black
		return ""
	}

	for _, s := range p.Steps {
		if hit := visit(s.Name); hit != "" {
			return hit
		}
	}
	return ""
}
