package runner

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesStdout(t *testing.T) {
	r := &Real{}
	res, err := r.Run(context.Background(), "echo hello", 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Success() {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
	if got := strings.TrimSpace(res.Stdout); got != "hello" {
		t.Errorf("stdout = %q, want %q", got, "hello")
	}
}

func TestRunNonzeroExitIsNotError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on false(1)")
	}
	r := &Real{}
	res, err := r.Run(context.Background(), "false", 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Success() {
		t.Error("expected nonzero exit")
	}
}

func TestRunMissingBinary(t *testing.T) {
	r := &Real{}
	_, err := r.Run(context.Background(), "definitely-not-a-real-binary-xyz --version", 5*time.Second)
	var spawn *SpawnError
	if !errors.As(err, &spawn) {
		t.Fatalf("err = %v, want *SpawnError", err)
	}
	if spawn.Binary != "definitely-not-a-real-binary-xyz" {
		t.Errorf("binary = %q", spawn.Binary)
	}
	if !strings.Contains(spawn.Error(), "command not found") {
		t.Errorf("message = %q, want command not found prefix", spawn.Error())
	}
}

func TestRunTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sleep(1)")
	}
	r := &Real{}
	_, err := r.Run(context.Background(), "sleep 5", 100*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestRunEmptyCommand(t *testing.T) {
	r := &Real{}
	if _, err := r.Run(context.Background(), "   ", time.Second); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestOutputFallsBackToStderr(t *testing.T) {
	res := &CommandResult{Stdout: "  \n", Stderr: "Python 3.11.4\n"}
	if got := res.Output(); got != "Python 3.11.4\n" {
		t.Errorf("Output() = %q", got)
	}
	res = &CommandResult{Stdout: "v20.1.0\n", Stderr: "noise"}
	if got := res.Output(); got != "v20.1.0\n" {
		t.Errorf("Output() = %q", got)
	}
}
