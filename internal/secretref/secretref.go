// Package secretref models the SecretRef tagged sum (spec.md §3) and its
// validation rules.
package secretref

import (
	"fmt"
	"regexp"
	"strings"

	dserrors "github.com/openclaw/gateway/internal/errors"
)

// Source identifies which resolution path a SecretRef uses.
type Source string

const (
	// EnvSource resolves against the process environment (or a
	// caller-supplied override map).
	EnvSource Source = "env"
	// FileSource resolves against the decrypted sops payload.
	FileSource Source = "file"
)

// Ref is a SecretRef: { source, id }. The core treats it as opaque except
// for these two fields.
type Ref struct {
	Source Source
	ID     string
}

var envIDPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,127}$`)

// String renders "source:id", used in error messages and snapshot warnings.
func (r Ref) String() string {
	return fmt.Sprintf("%s:%s", r.Source, r.ID)
}

// Validate checks the shape rules for r.Source: an env ref's id must match
// ^[A-Z][A-Z0-9_]{0,127}$; a file ref's id must be an absolute RFC6901
// pointer (it starts with "/", or is the empty string addressing the
// document root).
func (r Ref) Validate() error {
	switch r.Source {
	case EnvSource:
		if !envIDPattern.MatchString(r.ID) {
			return dserrors.ValidationError{
				Message:    fmt.Sprintf("env secret ref id %q is invalid", r.ID),
				Suggestion: `env ids must match ^[A-Z][A-Z0-9_]{0,127}$, e.g. "OPENAI_API_KEY"`,
			}
		}
		return nil
	case FileSource:
		if r.ID != "" && !strings.HasPrefix(r.ID, "/") {
			return dserrors.ValidationError{
				Message:    fmt.Sprintf("file secret ref id %q is not an absolute JSON pointer", r.ID),
				Suggestion: `file ids must be empty (the document root) or start with "/", e.g. "/providers/openai/apiKey"`,
			}
		}
		return nil
	default:
		return dserrors.ValidationError{
			Message: fmt.Sprintf("unknown secret ref source %q", r.Source),
		}
	}
}

// IsRefShape reports whether value looks like a SecretRef map, i.e. it has
// a "source" key holding "env" or "file" and an "id" key. This is used to
// distinguish a SecretRef from a coincidentally similar plaintext object
// (such as a Google Chat service-account JSON blob) before calling Parse.
func IsRefShape(value any) bool {
	m, ok := value.(map[string]any)
	if !ok {
		return false
	}
	source, ok := m["source"].(string)
	if !ok {
		return false
	}
	if source != string(EnvSource) && source != string(FileSource) {
		return false
	}
	_, hasID := m["id"]
	return hasID
}

// Parse converts a decoded config value into a Ref. ok is false (with a nil
// error) when value does not have SecretRef shape at all — per spec.md §3,
// "Any other shape is not a SecretRef." Once the shape matches, a malformed
// id is a validation error, not a "not a ref" result.
func Parse(value any) (ref Ref, ok bool, err error) {
	if !IsRefShape(value) {
		return Ref{}, false, nil
	}
	m := value.(map[string]any)
	source, _ := m["source"].(string)
	id, idIsString := m["id"].(string)
	if !idIsString {
		return Ref{}, true, dserrors.ValidationError{
			Message: fmt.Sprintf("secret ref id must be a string, got %T", m["id"]),
		}
	}

	ref = Ref{Source: Source(source), ID: id}
	if err := ref.Validate(); err != nil {
		return Ref{}, true, err
	}
	return ref, true, nil
}

// ToValue renders ref back into the map shape used in decoded config, for
// the migration engine writing new refs into the config tree.
func ToValue(ref Ref) map[string]any {
	return map[string]any{
		"source": string(ref.Source),
		"id":     ref.ID,
	}
}
