package gwconfig

import (
	"fmt"

	dserrors "github.com/openclaw/gateway/internal/errors"
	"github.com/openclaw/gateway/internal/jsonpointer"
)

// DefaultFileSourceTimeoutMs is the default sops subprocess timeout, used
// when secrets.sources.file.timeoutMs is absent or non-positive.
const DefaultFileSourceTimeoutMs = 5000

// FileSourceConfig is secrets.sources.file: { type = "sops", path, timeoutMs? }.
type FileSourceConfig struct {
	Type      string
	Path      string
	TimeoutMs int
}

// SecretsConfig is the secrets subtree: { sources: { env?, file? } }.
type SecretsConfig struct {
	HasEnvSource bool
	File         *FileSourceConfig // nil when secrets.sources.file is absent
}

// ReadSecretsConfig extracts and normalizes the secrets subtree from tree.
// An absent secrets key, or an absent secrets.sources key, yields a zero
// SecretsConfig (no sources configured) rather than an error: resolution
// against an env ref works without any secrets config at all (spec.md §3).
func ReadSecretsConfig(tree Tree) (SecretsConfig, error) {
	raw, _, err := jsonpointer.Get(map[string]any(tree), "/secrets/sources", jsonpointer.Undefined)
	if err != nil {
		return SecretsConfig{}, err
	}
	if raw == nil {
		return SecretsConfig{}, nil
	}
	sources, ok := raw.(map[string]any)
	if !ok {
		return SecretsConfig{}, dserrors.ValidationError{
			Pointer: "/secrets/sources",
			Message: "secrets.sources must be an object",
		}
	}

	cfg := SecretsConfig{}
	if _, hasEnv := sources["env"]; hasEnv {
		cfg.HasEnvSource = true
	}

	fileRaw, hasFile := sources["file"]
	if !hasFile {
		return cfg, nil
	}
	fileMap, ok := fileRaw.(map[string]any)
	if !ok {
		return SecretsConfig{}, dserrors.ValidationError{
			Pointer: "/secrets/sources/file",
			Message: "secrets.sources.file must be an object",
		}
	}

	typ, _ := fileMap["type"].(string)
	path, _ := fileMap["path"].(string)

	timeoutMs := DefaultFileSourceTimeoutMs
	switch raw := fileMap["timeoutMs"].(type) {
	case int:
		if raw > 0 {
			timeoutMs = raw
		}
	case float64:
		if raw > 0 {
			timeoutMs = int(raw)
		}
	}

	cfg.File = &FileSourceConfig{Type: typ, Path: path, TimeoutMs: timeoutMs}
	return cfg, nil
}

// RequireSopsFileSource returns the file source config, erroring with the
// unsupported-type or missing-source message spec.md §4.3 names when the
// subtree is absent or not a sops source.
func (c SecretsConfig) RequireSopsFileSource() (*FileSourceConfig, error) {
	if c.File == nil {
		return nil, dserrors.ResolutionError{
			Message: "secrets.sources.file is not configured",
		}
	}
	if c.File.Type != "sops" {
		return nil, dserrors.ResolutionError{
			Message: fmt.Sprintf("unsupported secrets.sources.file.type %q", c.File.Type),
		}
	}
	return c.File, nil
}

// WriteFileSource sets secrets.sources.file in tree, used by migration when
// it synthesizes a file source for a tree that had none (spec.md §4.6 step 7).
func WriteFileSource(tree Tree, src FileSourceConfig) error {
	m := map[string]any(tree)
	if err := jsonpointer.Set(m, "/secrets/sources/file/type", src.Type); err != nil {
		return err
	}
	if err := jsonpointer.Set(m, "/secrets/sources/file/path", src.Path); err != nil {
		return err
	}
	return jsonpointer.Set(m, "/secrets/sources/file/timeoutMs", src.TimeoutMs)
}
