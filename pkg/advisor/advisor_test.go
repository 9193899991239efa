package advisor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNopSuggestsNothing(t *testing.T) {
	var n Nop
	if fix, ok := n.SuggestFix(context.Background(), FixContext{Tool: "docker"}); ok || fix != "" {
		t.Errorf("Nop suggested %q", fix)
	}
}

func TestFirstLine(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"python3 --version\n", "python3 --version"},
		{"\n\n  docker -v  \nextra", "docker -v"},
		{"   \n\t\n", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := firstLine(tc.in); got != tc.want {
			t.Errorf("firstLine(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCLIMissingBinaryYieldsNoSuggestion(t *testing.T) {
	c := &CLI{
		Binary:  "definitely-not-a-real-advisor-xyz",
		Timeout: 2 * time.Second,
		Log:     zerolog.Nop(),
	}
	fix, ok := c.SuggestFix(context.Background(), FixContext{
		Tool:          "docker",
		FailedCommand: "docker --version",
		ErrorMessage:  "command not found: docker",
	})
	if ok || fix != "" {
		t.Errorf("expected no suggestion, got %q", fix)
	}
}
