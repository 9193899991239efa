package validate

import (
	"regexp"
	"strings"
)

// Tool-specific version patterns, matched against check output before the
// generic fallbacks. Keys are lowercased tool names.
var versionPatterns = map[string]*regexp.Regexp{
	"python":    regexp.MustCompile(`(?i)Python (\d+\.\d+\.\d+)`),
	"node":      regexp.MustCompile(`(?i)v(\d+\.\d+\.\d+)`),
	"git":       regexp.MustCompile(`(?i)git version (\d+\.\d+\.\d+)`),
	"docker":    regexp.MustCompile(`(?i)Docker version (\d+\.\d+\.\d+)`),
	"code":      regexp.MustCompile(`(\d+\.\d+\.\d+)`),
	"cursor":    regexp.MustCompile(`(\d+\.\d+\.\d+)`),
	"jupyter":   regexp.MustCompile(`(\d+\.\d+\.\d+)`),
	"postman":   regexp.MustCompile(`(\d+\.\d+\.\d+)`),
	"terraform": regexp.MustCompile(`(?i)Terraform v(\d+\.\d+\.\d+)`),
	"aws":       regexp.MustCompile(`(?i)aws-cli/(\d+\.\d+\.\d+)`),
	"gcloud":    regexp.MustCompile(`(\d+\.\d+\.\d+)`),
}

var genericVersionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+\.\d+\.\d+)`),
	regexp.MustCompile(`(?i)version (\d+\.\d+\.\d+)`),
	regexp.MustCompile(`(?i)v(\d+\.\d+\.\d+)`),
}

// extractVersion pulls a semantic version out of check output. Tool-specific
// patterns win over the generic ones; the first match is taken.
func extractVersion(toolName, output string) string {
	if output == "" {
		return ""
	}
	if re, ok := versionPatterns[strings.ToLower(toolName)]; ok {
		if m := re.FindStringSubmatch(output); m != nil {
			return m[1]
		}
	}
	for _, re := range genericVersionPatterns {
		if m := re.FindStringSubmatch(output); m != nil {
			return m[1]
		}
	}
	return ""
}

// Keywords whose presence in check output raises confidence.
var expectedKeywords = map[string][]string{
	"python": {"python", "version"},
	"node":   {"node", "version"},
	"git":    {"git", "version"},
	"docker": {"docker", "version"},
	"code":   {"code", "version"},
	"cursor": {"cursor", "version"},
}

// confidenceScore rates how trustworthy a successful check is: base 0.8,
// +0.1 when a version was extracted, +0.05 per expected keyword present,
// capped at 1.0. Empty output scores 0.5.
func confidenceScore(toolName, output string) float64 {
	if output == "" {
		return 0.5
	}
	confidence := 0.8
	if extractVersion(toolName, output) != "" {
		confidence += 0.1
	}
	lower := strings.ToLower(output)
	for _, kw := range expectedKeywords[strings.ToLower(toolName)] {
		if strings.Contains(lower, kw) {
			confidence += 0.05
		}
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}
