// Package sopstool is the typed façade over the sops binary: decrypt and
// encrypt, both wrapping the opaque subprocess runner in pkg/exec with a
// bounded timeout and bounded output size.
package sopstool

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	dserrors "github.com/openclaw/gateway/internal/errors"
	"github.com/openclaw/gateway/internal/logging"
	"github.com/openclaw/gateway/internal/secure"
	pkgexec "github.com/openclaw/gateway/pkg/exec"
)

// MaxOutputBytes bounds decrypt stdout capture, per spec.md §4.2/§6 ("Output
// buffer bound >= 10 MiB"). Defined in terms of secure.MaxPayloadBytes so
// this check and the enclave's own size guard can't drift apart.
const MaxOutputBytes = secure.MaxPayloadBytes

// BinaryName is the external tool invoked, minimum version 3.9.0.
const BinaryName = "sops"

// Driver wraps a pkgexec.CommandExecutor with the sops argument conventions.
type Driver struct {
	executor pkgexec.CommandExecutor
}

// New constructs a Driver around executor. Pass pkgexec.DefaultExecutor() in
// production; tests inject a fake CommandExecutor.
func New(executor pkgexec.CommandExecutor) *Driver {
	return &Driver{executor: executor}
}

// Decrypt runs `sops [--config <configPath>] --decrypt --output-type json
// <path>` and parses stdout as JSON.
func (d *Driver) Decrypt(ctx context.Context, path string, timeoutMs int, missingBinaryMessage, configPath string) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, timeoutMsToDuration(timeoutMs))
	defer cancel()

	args := sopsConfigArgs(configPath)
	args = append(args, "--decrypt", "--output-type", "json", path)

	stdout, stderr, err := d.executor.Execute(ctx, BinaryName, args...)
	if err != nil {
		return nil, normalizeError("decrypt", path, timeoutMs, missingBinaryMessage, err, stderr, nil)
	}
	if len(stdout) > MaxOutputBytes {
		return nil, dserrors.WrapSopsFailure("decrypt", path, fmt.Errorf("decrypted output exceeds %d bytes", MaxOutputBytes))
	}

	// The decrypted bytes are plaintext secrets material for the brief
	// window between subprocess capture and JSON decoding; hold them in a
	// guarded enclave rather than a bare byte slice.
	buf, err := secure.NewPayloadBuffer(stdout)
	if err != nil {
		return nil, dserrors.WrapSopsFailure("decrypt", path, fmt.Errorf("secure decrypted buffer: %w", err))
	}
	locked, err := buf.Open()
	if err != nil {
		return nil, dserrors.WrapSopsFailure("decrypt", path, fmt.Errorf("open decrypted buffer: %w", err))
	}
	defer locked.Destroy()
	defer buf.Destroy()

	var value any
	if err := json.Unmarshal(locked.Bytes(), &value); err != nil {
		return nil, dserrors.WrapSopsFailure("decrypt", path, fmt.Errorf("invalid JSON from sops: %w", err))
	}
	return value, nil
}

// Encrypt writes payload to a 0600 plaintext tempfile, runs `sops [--config
// <configPath>] --encrypt --input-type json --output-type json --output
// <tmpEnc> <tmpPlain>`, and renames the encrypted tempfile over path with
// mode 0600. Both tempfiles are removed on every exit path.
func (d *Driver) Encrypt(ctx context.Context, path string, payload any, timeoutMs int, missingBinaryMessage, configPath string) error {
	ctx, cancel := context.WithTimeout(ctx, timeoutMsToDuration(timeoutMs))
	defer cancel()

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return dserrors.WrapSopsFailure("encrypt", path, fmt.Errorf("marshal payload: %w", err))
	}

	dir := filepath.Dir(path)
	token, err := randomToken()
	if err != nil {
		return dserrors.WrapSopsFailure("encrypt", path, err)
	}
	base := filepath.Base(path)
	tmpPlain := filepath.Join(dir, fmt.Sprintf(".%s.%d.%s.plain.tmp", base, os.Getpid(), token))
	tmpEnc := filepath.Join(dir, fmt.Sprintf(".%s.%d.%s.enc.tmp", base, os.Getpid(), token))

	defer os.Remove(tmpPlain)
	defer os.Remove(tmpEnc)

	if err := os.WriteFile(tmpPlain, payloadBytes, 0o600); err != nil {
		return dserrors.WrapSopsFailure("encrypt", path, fmt.Errorf("write plaintext tempfile: %w", err))
	}

	args := sopsConfigArgs(configPath)
	args = append(args, "--encrypt", "--input-type", "json", "--output-type", "json", "--output", tmpEnc, tmpPlain)

	_, stderr, err := d.executor.Execute(ctx, BinaryName, args...)
	if err != nil {
		// sops occasionally echoes fragments of the file it choked on back
		// into stderr (e.g. a JSON parse error quoting the offending
		// token); redact every plaintext string leaf in the payload we
		// just tried to encrypt before it can end up in a returned error
		// and, from there, a log line.
		return normalizeError("encrypt", path, timeoutMs, missingBinaryMessage, err, stderr, collectStringLeaves(payload))
	}

	if err := os.Rename(tmpEnc, path); err != nil {
		return dserrors.WrapSopsFailure("encrypt", path, fmt.Errorf("rename encrypted tempfile into place: %w", err))
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return dserrors.WrapSopsFailure("encrypt", path, fmt.Errorf("chmod encrypted file: %w", err))
	}
	return nil
}

func sopsConfigArgs(configPath string) []string {
	if configPath == "" {
		return nil
	}
	return []string{"--config", configPath}
}

func timeoutMsToDuration(timeoutMs int) time.Duration {
	return time.Duration(timeoutMs) * time.Millisecond
}

// normalizeError classifies a subprocess failure per spec.md §4.2: binary
// missing, context deadline exceeded, or a generic failure preserving the
// underlying cause. secrets, when non-empty, is redacted out of stderr
// before it's folded into the returned error.
func normalizeError(op, path string, timeoutMs int, missingBinaryMessage string, err error, stderr []byte, secrets []string) error {
	var execErr *exec.Error
	if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
		return dserrors.WrapSopsMissing(missingBinaryMessage)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dserrors.WrapSopsTimeout(op, path, timeoutMs)
	}
	cause := err
	if len(stderr) > 0 {
		text := string(stderr)
		if len(secrets) > 0 {
			text = logging.Redact(text, secrets)
		}
		cause = fmt.Errorf("%w: %s", err, text)
	}
	return dserrors.WrapSopsFailure(op, path, cause)
}

// collectStringLeaves walks a decoded JSON value and returns every string
// leaf it finds, for redacting a plaintext payload out of subprocess
// error output.
func collectStringLeaves(value any) []string {
	var out []string
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case map[string]any:
			for _, sub := range t {
				walk(sub)
			}
		case []any:
			for _, sub := range t {
				walk(sub)
			}
		}
	}
	walk(value)
	return out
}

func randomToken() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate tempfile token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
