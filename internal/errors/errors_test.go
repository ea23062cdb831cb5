package errors

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	if got := Format(nil); got != "" {
		t.Errorf("Format(nil) = %q, want empty", got)
	}
	if got := Format(errors.New("store locked")); got != "Error: store locked" {
		t.Errorf("Format() = %q, want %q", got, "Error: store locked")
	}
}

func TestFatalExitsNonZero(t *testing.T) {
	if os.Getenv("STRIDE_TEST_FATAL") == "1" {
		Fatal(errors.New("boom"))
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFatalExitsNonZero")
	cmd.Env = append(os.Environ(), "STRIDE_TEST_FATAL=1")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	e, ok := err.(*exec.ExitError)
	if !ok || e.Success() {
		t.Fatalf("Fatal() did not exit with error: %v", err)
	}
	if e.ExitCode() != 1 {
		t.Errorf("Fatal() exit code = %d, want 1", e.ExitCode())
	}
	if !strings.Contains(stderr.String(), "Error: boom") {
		t.Errorf("Fatal() stderr = %q, want to contain %q", stderr.String(), "Error: boom")
	}
}

func TestFatalNilIsNoop(t *testing.T) {
	if os.Getenv("STRIDE_TEST_FATAL_NIL") == "1" {
		Fatal(nil)
		os.Exit(0)
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFatalNilIsNoop")
	cmd.Env = append(os.Environ(), "STRIDE_TEST_FATAL_NIL=1")
	if err := cmd.Run(); err != nil {
		t.Errorf("Fatal(nil) should not exit, got: %v", err)
	}
}
