// Package exec abstracts invocation of the sops binary so internal/sopstool
// can run against a fake in tests instead of shelling out for real.
package exec

import (
	"bytes"
	"context"
	"os/exec"
)

// CommandExecutor runs an external binary (sops, in this repo) and captures
// its output. internal/sopstool.Driver depends on this rather than os/exec
// directly so Decrypt/Encrypt can be tested without a sops binary present.
type CommandExecutor interface {
	// Execute runs name with args and returns its captured stdout, stderr,
	// and any error from starting or waiting on the process.
	Execute(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)
}

// RealCommandExecutor shells out via os/exec. It's what DefaultExecutor
// returns in production; tests substitute a fake sops instead.
type RealCommandExecutor struct{}

// Execute runs name as a real subprocess, waiting for it to exit.
func (r *RealCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// DefaultExecutor returns the RealCommandExecutor used when no fake is
// injected.
func DefaultExecutor() CommandExecutor {
	return &RealCommandExecutor{}
}
