// Package schema defines the Go struct types for installation plan YAML
// documents and provides strict parsing and validation.
package schema

import (
	"time"

	"github.com/google/uuid"
)

// StepStatus is the lifecycle state of a plan step.
type StepStatus string

const (
	StatusPending    StepStatus = "pending"
	StatusInProgress StepStatus = "in_progress"
	StatusCompleted  StepStatus = "completed"
	StatusFailed     StepStatus = "failed"
	StatusSkipped    StepStatus = "skipped"
	StatusRetrying   StepStatus = "retrying"
)

// Terminal reports whether the status is a terminal state.
func (s StepStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// StepType selects how a step is executed and validated.
type StepType string

const (
	StepToolInstall      StepType = "tool_install"
	StepExtensionInstall StepType = "extension_install"
	StepLoginPortal      StepType = "login_portal"
	StepValidation       StepType = "validation"
)

// DefaultMaxRetries applies when a step does not declare max_retries.
const DefaultMaxRetries = 3

// Step is a single unit of plan work.
//
// The yaml-tagged fields come from the plan document (authored by the
// recommender). The remaining fields are runtime state, mutated only by the
// runtime engine and serialized into run snapshots.
type Step struct {
	Name            string            `yaml:"name"                       json:"name"                       jsonschema:"required"`
	Type            StepType          `yaml:"type"                       json:"type"                       jsonschema:"required,enum=tool_install,enum=extension_install,enum=login_portal,enum=validation"`
	InstallCommand  string            `yaml:"install_command,omitempty"  json:"install_command,omitempty"`
	CheckCommand    string            `yaml:"check_command,omitempty"    json:"check_command,omitempty"`
	Justification   string            `yaml:"justification,omitempty"    json:"justification,omitempty"`
	ConfidenceScore float64           `yaml:"confidence_score,omitempty" json:"confidence_score,omitempty" jsonschema:"minimum=0,maximum=1"`
	DependsOn       []string          `yaml:"depends_on,omitempty"       json:"depends_on,omitempty"`
	When            string            `yaml:"when,omitempty"             json:"when,omitempty"`
	ExtensionID     string            `yaml:"extension_id,omitempty"     json:"extension_id,omitempty"`
	MaxRetries      int               `yaml:"max_retries,omitempty"      json:"max_retries,omitempty"      jsonschema:"minimum=0"`
	Data            map[string]string `yaml:"data,omitempty"             json:"data,omitempty"`

	Status       StepStatus `yaml:"-" json:"status,omitempty"`
	RetryCount   int        `yaml:"-" json:"retry_count,omitempty"`
	Version      string     `yaml:"-" json:"version,omitempty"`
	ErrorMessage string     `yaml:"-" json:"error_message,omitempty"`
	StartedAt    time.Time  `yaml:"-" json:"started_at,omitempty"`
	EndedAt      time.Time  `yaml:"-" json:"ended_at,omitempty"`
}

// Extension reports whether the step installs an editor extension.
func (s *Step) Extension() bool {
	return s.Type == StepExtensionInstall
}

// Plan is the ordered collection of steps for one environment-setup run.
type Plan struct {
	PlanID      string            `yaml:"plan_id,omitempty"     json:"plan_id,omitempty"`
	Environment string            `yaml:"environment"           json:"environment" jsonschema:"required"`
	Vars        map[string]string `yaml:"vars,omitempty"        json:"vars,omitempty"`
	Steps       []*Step           `yaml:"steps"                 json:"steps"       jsonschema:"required"`

	TotalSteps        int           `yaml:"-" json:"total_steps"`
	CompletedSteps    int           `yaml:"-" json:"completed_steps"`
	FailedSteps       int           `yaml:"-" json:"failed_steps"`
	SkippedSteps      int           `yaml:"-" json:"skipped_steps"`
	EstimatedDuration time.Duration `yaml:"-" json:"estimated_duration,omitempty"`
}

// StepByName returns the step with the given name, or nil.
func (p *Plan) StepByName(name string) *Step {
	for _, s := range p.Steps {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Normalize fills defaults after decoding: plan ID, step statuses, retry
// bounds, confidence, dependency and duration tables. Safe to call more than
// once.
func (p *Plan) Normalize() {
	if p.PlanID == "" {
		p.PlanID = uuid.NewString()
	}
	for _, s := range p.Steps {
		if s.Status == "" {
			s.Status = StatusPending
		}
		if s.MaxRetries == 0 {
			s.MaxRetries = DefaultMaxRetries
		}
		if s.ConfidenceScore == 0 {
			s.ConfidenceScore = 0.8
		}
		if len(s.DependsOn) == 0 {
			if deps, ok := defaultDependencies[s.Name]; ok {
				for _, d := range deps {
					if p.StepByName(d) != nil {
						s.DependsOn = append(s.DependsOn, d)
					}
				}
			}
		}
		if s.Justification == "" {
			s.Justification = defaultJustification(s.Name)
		}
	}
	p.TotalSteps = len(p.Steps)
	p.EstimatedDuration = p.estimateDuration()
}

// estimateDuration sums per-type duty-cycle estimates.
func (p *Plan) estimateDuration() time.Duration {
	var total time.Duration
	for _, s := range p.Steps {
		switch s.Type {
		case StepToolInstall:
			total += 3 * time.Minute
		case StepExtensionInstall:
			total += time.Minute
		case StepLoginPortal:
			total += 2 * time.Minute
		case StepValidation:
			total += 30 * time.Second
		}
	}
	return total
}

// defaultDependencies maps well-known tools to the tools they need first.
// Applied only when the plan document leaves depends_on empty and the
// dependency is itself a step in the plan.
var defaultDependencies = map[string][]string{
	"Docker":            {"curl"},
	"Terraform":         {"curl"},
	"Google Cloud SDK":  {"curl"},
	"Azure CLI":         {"curl"},
	"Jupyter":           {"Python"},
	"GitHub Copilot":    {"VS Code"},
	"Python Extension":  {"VS Code"},
	"Jupyter Extension": {"VS Code"},
}

var defaultJustifications = map[string]string{
	"Python":           "Essential for Python development, data science, and AI/ML workflows",
	"Node.js":          "Required for JavaScript/TypeScript development and npm packages",
	"Git":              "Version control system essential for collaborative development",
	"Docker":           "Containerization platform for consistent development environments",
	"VS Code":          "Popular code editor with extensive extension ecosystem",
	"Jupyter":          "Interactive computing environment for data science and ML",
	"Postman":          "API development and testing tool",
	"Terraform":        "Infrastructure as Code tool for cloud resource management",
	"AWS CLI":          "Command line interface for AWS services",
	"Google Cloud SDK": "Command line tools for Google Cloud Platform",
	"Azure CLI":        "Command line interface for Microsoft Azure",
	"GitHub Copilot":   "AI-powered code completion and pair programming",
}

func defaultJustification(tool string) string {
	if j, ok := defaultJustifications[tool]; ok {
		return j
	}
	return "Required for " + tool + " development workflow"
}
