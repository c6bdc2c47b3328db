// Package errors defines the Gateway secrets core's error taxonomy: typed,
// suggestion-bearing errors that stay readable when surfaced by the CLI
// wrapper, while still supporting errors.Is/As through Unwrap.
package errors

import (
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with
// helpful context: what happened, optional details, and an optional
// actionable suggestion.
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ValidationError covers malformed SecretRefs, unsupported file-source
// types, and config validation failures surfaced with a JSON pointer path
// (spec.md §7, "Validation").
type ValidationError struct {
	Pointer    string
	Message    string
	Suggestion string
}

func (e ValidationError) Error() string {
	msg := "validation error"
	if e.Pointer != "" {
		msg += fmt.Sprintf(" at %s", e.Pointer)
	}
	msg += ": " + e.Message
	if e.Suggestion != "" {
		msg += "\n  Try: " + e.Suggestion
	}
	return msg
}

// ResolutionError covers failures while resolving a SecretRef to a
// plaintext value: missing env vars, sops failures, pointer misses, and
// non-string/empty resolved values (spec.md §7, "Resolution").
type ResolutionError struct {
	Ref        string // "source:id", e.g. "env:OPENAI_API_KEY"
	Message    string
	Suggestion string
	Err        error
}

func (e ResolutionError) Error() string {
	msg := fmt.Sprintf("failed to resolve %s: %s", e.Ref, e.Message)
	if e.Suggestion != "" {
		msg += "\n  Try: " + e.Suggestion
	}
	return msg
}

func (e ResolutionError) Unwrap() error {
	return e.Err
}

// ActivationError wraps a resolution or snapshot-build failure encountered
// while activating a new runtime snapshot (spec.md §7, "Activation").
type ActivationError struct {
	Trigger string // "startup", "reload", "rpc"
	Err     error
}

func (e ActivationError) Error() string {
	return fmt.Sprintf("secrets activation failed (%s): %v", e.Trigger, e.Err)
}

func (e ActivationError) Unwrap() error {
	return e.Err
}

// MigrationError wraps a failure during migration apply, naming the backup
// the system was rolled back to (spec.md §7, "Migration" and §4.6.4 step 4).
type MigrationError struct {
	BackupID string
	Err      error
}

func (e MigrationError) Error() string {
	return fmt.Sprintf("secrets migration failed and was rolled back from backup %s: %v", e.BackupID, e.Err)
}

func (e MigrationError) Unwrap() error {
	return e.Err
}

// RollbackError covers failures while restoring a backup manifest: a
// corrupt manifest or a backup entry missing from disk (spec.md §7,
// "Rollback").
type RollbackError struct {
	BackupID string
	Message  string
	Err      error
}

func (e RollbackError) Error() string {
	msg := fmt.Sprintf("rollback of backup %s failed: %s", e.BackupID, e.Message)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e RollbackError) Unwrap() error {
	return e.Err
}

// WrapSopsMissing builds the caller-supplied missingBinaryMessage error for
// the external-tool driver (spec.md §4.2, "Tool-missing").
func WrapSopsMissing(missingBinaryMessage string) error {
	return UserError{
		Message:    missingBinaryMessage,
		Suggestion: "Install sops >= 3.9.0 and ensure it is on PATH: https://github.com/getsops/sops",
	}
}

// WrapSopsTimeout builds the standard sops timeout message (spec.md §4.2).
func WrapSopsTimeout(op, path string, timeoutMs int) error {
	return UserError{
		Message:    fmt.Sprintf("sops %s timed out after %dms for %s", op, timeoutMs, path),
		Suggestion: "Increase timeoutMs in secrets.sources.file, or check that the sops binary and its KMS/PGP backend are reachable",
	}
}

// WrapSopsFailure builds the standard sops-failed-for-path message,
// preserving the underlying cause (spec.md §4.2, "All other failures").
func WrapSopsFailure(op, path string, cause error) error {
	return UserError{
		Message: fmt.Sprintf("sops %s failed for %s: %v", op, path, cause),
		Err:     cause,
	}
}
