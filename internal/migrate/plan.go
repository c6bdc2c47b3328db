package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	dserrors "github.com/openclaw/gateway/internal/errors"
	"github.com/openclaw/gateway/internal/gwconfig"
	"github.com/openclaw/gateway/internal/jsonpointer"
	"github.com/openclaw/gateway/internal/secretref"
	"github.com/openclaw/gateway/internal/sopstool"
)

// CanonicalDefaultPath is the default secrets file's path relative to the
// state directory, used when no file source is configured (spec.md §4.6
// step 2). The state directory defaults to the user's home directory, giving
// ~/.openclaw/secrets.enc.json; with a state-dir override (BuildParams.StateDir
// or OPENCLAW_STATE_DIR) the file is <stateDir>/.openclaw/secrets.enc.json,
// not <stateDir>/secrets.enc.json.
const CanonicalDefaultPath = ".openclaw/secrets.enc.json"

// StateDirEnvVar names the environment variable that, when set, relocates
// the default secrets file and backup directory (spec.md §4.6 step 2).
const StateDirEnvVar = "OPENCLAW_STATE_DIR"

// BuildParams bundles Build's inputs (spec.md §4.6, buildMigrationPlan).
type BuildParams struct {
	Config    gwconfig.Tree
	ConfigDir string
	// ConfigPath is the config file's own path, written back to disk by
	// Apply when ConfigChanged (spec.md §4.6.4 step 3). Required whenever
	// the plan may change the config, i.e. always — callers building a
	// plan purely to inspect it still need this set before --write.
	ConfigPath string
	Driver     *sopstool.Driver

	// StateDir overrides where the default secrets file and backups live.
	// Empty means "use OPENCLAW_STATE_DIR, falling back to the user's home
	// directory" (spec.md §4.6 step 2).
	StateDir string

	// AgentAuthDirs are literal auth-profile store file paths resolved
	// from config, supplementing the <stateDir>/agents/* discovery sweep.
	// Unlike that sweep, which appends authProfilesFile itself, these are
	// read as-is — callers must pass the store file, not its directory.
	AgentAuthDirs []string

	// ScrubEnv enables the env-scrub step (the CLI's --no-scrub-env flag
	// negated).
	ScrubEnv bool
	// AllowListEnvNames is the static set of known secret env-var names
	// the caller maintains (spec.md §4.6.3).
	AllowListEnvNames []string

	MissingBinaryMessage string
}

func (p BuildParams) stateDir() string {
	if p.StateDir != "" {
		return p.StateDir
	}
	if v := os.Getenv(StateDirEnvVar); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func (p BuildParams) defaultSecretsPath() string {
	return filepath.Join(p.stateDir(), CanonicalDefaultPath)
}

// Build implements buildMigrationPlan (spec.md §4.6).
func Build(ctx context.Context, params BuildParams) (*Plan, error) {
	if err := validateConfig(params.Config); err != nil {
		return nil, err
	}

	nextConfig := gwconfig.Tree(gwconfig.DeepCopy(map[string]any(params.Config)).(map[string]any))

	secretsCfg, err := gwconfig.ReadSecretsConfig(params.Config)
	if err != nil {
		return nil, err
	}

	filePath := params.defaultSecretsPath()
	hadFileSource := secretsCfg.File != nil && secretsCfg.File.Type == "sops"
	if hadFileSource {
		filePath = secretsCfg.File.Path
	}

	sopsCfg := LocateSopsConfig(params.ConfigDir)

	originalPayload, err := loadCurrentPayload(ctx, params.Driver, filePath, sopsCfg, params.MissingBinaryMessage)
	if err != nil {
		return nil, err
	}
	nextPayload := gwconfig.DeepCopy(originalPayload).(map[string]any)

	plan := &Plan{
		NextConfig:     nextConfig,
		ConfigPath:     params.ConfigPath,
		NextPayload:    nextPayload,
		FilePath:       filePath,
		SopsCfg:        sopsCfg,
		NextAuthStores: map[string]gwconfig.Tree{},
		migratedValues: map[string]struct{}{},
	}

	if err := migrateProviders(nextConfig, nextPayload, plan); err != nil {
		return nil, err
	}
	if err := migrateSkills(nextConfig, nextPayload, plan); err != nil {
		return nil, err
	}
	if err := migrateGoogleChat(nextConfig, nextPayload, plan); err != nil {
		return nil, err
	}

	defaultAuthStore := filepath.Join(params.stateDir(), "auth-profiles.json")
	authTargets, err := discoverAuthStores(params.stateDir(), defaultAuthStore, params.AgentAuthDirs)
	if err != nil {
		return nil, err
	}
	if err := migrateAuthStores(authTargets, plan); err != nil {
		return nil, err
	}
	plan.AuthStores = authTargets

	if plan.Counters.SecretsWritten > 0 && !hadFileSource {
		if err := gwconfig.WriteFileSource(nextConfig, gwconfig.FileSourceConfig{
			Type:      "sops",
			Path:      filePath,
			TimeoutMs: gwconfig.DefaultFileSourceTimeoutMs,
		}); err != nil {
			return nil, err
		}
	}

	plan.ConfigChanged = !gwconfig.StructurallyEqual(map[string]any(params.Config), map[string]any(nextConfig))
	plan.PayloadChanged = !gwconfig.StructurallyEqual(originalPayload, nextPayload)

	if params.ScrubEnv && len(plan.migratedValues) > 0 {
		envPath := filepath.Join(params.ConfigDir, ".env")
		if raw, err := os.ReadFile(envPath); err == nil {
			allowList := make(map[string]struct{}, len(params.AllowListEnvNames))
			for _, name := range params.AllowListEnvNames {
				allowList[name] = struct{}{}
			}
			scrubbed, removed := scrubEnv(string(raw), plan.migratedValues, allowList)
			if removed > 0 {
				plan.EnvPath = envPath
				plan.NextEnv = scrubbed
				plan.EnvScrubbed = true
				plan.Counters.EnvEntriesRemoved = removed
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	plan.BackupTargets = buildBackupTargets(plan)
	return plan, nil
}

// buildBackupTargets orders the targets to match applyPlan's own write
// order — payload, then config, then auth stores, then env file (spec.md
// §4.6.4 step 3) — so the backup manifest's target order documents the
// write order it protects.
func buildBackupTargets(plan *Plan) []BackupTarget {
	var targets []BackupTarget
	if plan.PayloadChanged {
		targets = append(targets, BackupTarget{Path: plan.FilePath})
	}
	if plan.ConfigChanged {
		targets = append(targets, BackupTarget{Path: plan.ConfigPath})
	}
	for path := range plan.NextAuthStores {
		targets = append(targets, BackupTarget{Path: path})
	}
	if plan.EnvScrubbed {
		targets = append(targets, BackupTarget{Path: plan.EnvPath})
	}
	return targets
}

// LocateSopsConfig checks <configDir>/.sops.yaml then .sops.yml (spec.md
// §4.6 step 3, and §8's "every sops invocation includes --config" when a
// config file is present). Callers building a sopstool.Driver invocation
// outside the migration flow (e.g. the reload/snapshot path) use this too,
// so both share the same discovery rule.
func LocateSopsConfig(configDir string) string {
	for _, name := range []string{".sops.yaml", ".sops.yml"} {
		path := filepath.Join(configDir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadCurrentPayload decrypts the existing encrypted payload; an absent
// file yields an empty object. Non-object payloads are rejected (spec.md
// §4.6 step 4).
func loadCurrentPayload(ctx context.Context, driver *sopstool.Driver, path, sopsCfg, missingBinaryMessage string) (map[string]any, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]any{}, nil
	}

	raw, err := driver.Decrypt(ctx, path, gwconfig.DefaultFileSourceTimeoutMs, missingBinaryMessage, sopsCfg)
	if err != nil {
		return nil, err
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, dserrors.ResolutionError{
			Message: "sops decrypt failed: decrypted payload is not a JSON object",
		}
	}
	return obj, nil
}

// writePayloadIfChanged sets value at pointer in nextPayload, incrementing
// secretsWritten only if the value actually changed (spec.md §4.6.1,
// §4.6.2).
func writePayloadIfChanged(nextPayload map[string]any, pointer string, value any, plan *Plan) error {
	existing, _, err := jsonpointer.Get(nextPayload, pointer, jsonpointer.Undefined)
	if err != nil {
		return err
	}
	if gwconfig.StructurallyEqual(existing, value) {
		return nil
	}
	if err := jsonpointer.Set(nextPayload, pointer, value); err != nil {
		return err
	}
	plan.Counters.SecretsWritten++
	return nil
}

func trimmedNonEmptyString(value any) (string, bool) {
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

func refAt(holder map[string]any, field string) (secretref.Ref, bool, error) {
	return secretref.Parse(holder[field])
}
