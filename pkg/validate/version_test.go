package validate

import "testing"

func TestExtractVersion(t *testing.T) {
	cases := []struct {
		tool, output, want string
	}{
		{"Python", "Python 3.11.9", "3.11.9"},
		{"python", "python 3.11.9", "3.11.9"}, // case-insensitive
		{"node", "v20.11.1", "20.11.1"},
		{"git", "git version 2.43.0", "2.43.0"},
		{"docker", "Docker version 24.0.2, build cb74dfc", "24.0.2"},
		{"terraform", "Terraform v1.7.5\non linux_amd64", "1.7.5"},
		{"aws", "aws-cli/2.15.30 Python/3.11.8", "2.15.30"},
		{"unknown-tool", "tool version 1.2.3", "1.2.3"}, // generic fallback
		{"unknown-tool", "no digits here", ""},
		{"Python", "", ""},
	}
	for _, tc := range cases {
		if got := extractVersion(tc.tool, tc.output); got != tc.want {
			t.Errorf("extractVersion(%q, %q) = %q, want %q", tc.tool, tc.output, got, tc.want)
		}
	}
}

func TestConfidenceScore(t *testing.T) {
	// Base 0.8, +0.1 version, +0.05 per keyword, capped at 1.0.
	cases := []struct {
		tool, output string
		want         float64
	}{
		{"Python", "", 0.5},
		{"Python", "Python 3.11.9", 0.95}, // version + "python" keyword
		{"git", "git version 2.43.0", 1.0},        // version + both keywords, capped
		{"frobnicator", "frobnicator 1.2.3", 0.9}, // version only, no keywords
		{"frobnicator", "ready", 0.8},
	}
	for _, tc := range cases {
		got := confidenceScore(tc.tool, tc.output)
		if got < 0 || got > 1 {
			t.Fatalf("confidence out of bounds: %v", got)
		}
		if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("confidenceScore(%q, %q) = %v, want %v", tc.tool, tc.output, got, tc.want)
		}
	}
}
