// Package resolve implements the reference resolver: given a SecretRef and
// a resolution context, produces a plaintext value, memoizing the decrypted
// file payload for the duration of one resolution pass.
package resolve

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	dserrors "github.com/openclaw/gateway/internal/errors"
	"github.com/openclaw/gateway/internal/gwconfig"
	"github.com/openclaw/gateway/internal/jsonpointer"
	"github.com/openclaw/gateway/internal/secretref"
	"github.com/openclaw/gateway/internal/sopstool"
)

// MissingBinaryMessage is the caller-supplied message returned when the
// sops binary cannot be found on PATH.
const MissingBinaryMessage = "sops is not installed or not on PATH"

// Cache memoizes the decrypted file payload for one resolution pass
// (spec.md §4.3, "Caches the in-flight decrypted-payload promise"). It is
// per-call, never shared across activations (spec.md §5).
type Cache struct {
	once    sync.Once
	payload map[string]any
	err     error
}

// Context bundles the inputs a resolution needs: the config tree (for
// secrets.sources.file), an optional env override map (tests use this in
// place of the real process environment), the shared decrypt cache, and the
// sops driver.
type Context struct {
	Config  gwconfig.Tree
	Env     map[string]string // nil means fall back to process env
	Cache   *Cache
	Driver  *sopstool.Driver
	SopsCfg string // path to .sops.yaml/.sops.yml, or "" if absent
}

// ResolveValue returns the opaque JSON value a SecretRef addresses
// (spec.md §4.3, resolveSecretRefValue).
func ResolveValue(ctx context.Context, ref secretref.Ref, rctx Context) (any, error) {
	switch ref.Source {
	case secretref.EnvSource:
		return resolveEnv(ref, rctx)
	case secretref.FileSource:
		return resolveFile(ctx, ref, rctx)
	default:
		return nil, dserrors.ResolutionError{Ref: ref.String(), Message: "unknown secret ref source"}
	}
}

// ResolveString is ResolveValue plus the non-empty-string requirement
// (spec.md §4.3, resolveSecretRefString).
func ResolveString(ctx context.Context, ref secretref.Ref, rctx Context) (string, error) {
	value, err := ResolveValue(ctx, ref, rctx)
	if err != nil {
		return "", err
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", dserrors.ResolutionError{
			Ref:     ref.String(),
			Message: fmt.Sprintf("Secret reference %q resolved to a non-string or empty value.", ref.String()),
		}
	}
	return s, nil
}

func resolveEnv(ref secretref.Ref, rctx Context) (any, error) {
	var value string
	var ok bool
	if rctx.Env != nil {
		value, ok = rctx.Env[ref.ID]
	} else {
		value, ok = os.LookupEnv(ref.ID)
	}
	if !ok || value == "" {
		return nil, dserrors.ResolutionError{
			Ref:     ref.String(),
			Message: fmt.Sprintf(`Environment variable "%s" is missing or empty.`, ref.ID),
		}
	}
	return value, nil
}

func resolveFile(ctx context.Context, ref secretref.Ref, rctx Context) (any, error) {
	secretsCfg, err := gwconfig.ReadSecretsConfig(rctx.Config)
	if err != nil {
		return nil, err
	}
	fileSrc, err := secretsCfg.RequireSopsFileSource()
	if err != nil {
		return nil, err
	}

	path := expandUserPath(fileSrc.Path)

	payload, err := loadFileSecrets(ctx, rctx, path, fileSrc.TimeoutMs)
	if err != nil {
		return nil, err
	}

	value, _, err := jsonpointer.Get(map[string]any(payload), ref.ID, jsonpointer.Throw)
	if err != nil {
		return nil, dserrors.ResolutionError{Ref: ref.String(), Message: err.Error(), Err: err}
	}
	return value, nil
}

// loadFileSecrets decrypts the file source at most once per Cache, sharing
// the result (or error) across every concurrent file-ref resolution that
// uses the same Cache (spec.md §4.3, §5, §8 invariant 3).
func loadFileSecrets(ctx context.Context, rctx Context, path string, timeoutMs int) (map[string]any, error) {
	cache := rctx.Cache
	cache.once.Do(func() {
		raw, err := rctx.Driver.Decrypt(ctx, path, timeoutMs, MissingBinaryMessage, rctx.SopsCfg)
		if err != nil {
			cache.err = err
			return
		}
		obj, ok := raw.(map[string]any)
		if !ok {
			cache.err = dserrors.ResolutionError{
				Message: "sops decrypt failed: decrypted payload is not a JSON object",
			}
			return
		}
		cache.payload = obj
	})
	return cache.payload, cache.err
}

// expandUserPath expands a leading "~" to the current user's home
// directory, mirroring the user-path expansion spec.md §4.3 requires.
func expandUserPath(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}
