package migrate

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openclaw/gateway/internal/gwconfig"
	"github.com/openclaw/gateway/internal/sopstool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyNoopWhenPlanUnchanged(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv(StateDirEnvVar, stateDir)

	config, err := gwconfig.LoadYAML([]byte(`
models:
  providers:
    openai:
      apiKey:
        source: env
        id: OPENAI_API_KEY
`))
	require.NoError(t, err)

	driver := sopstool.New(&fakeExecutor{payload: map[string]any{}})
	plan, err := Build(context.Background(), BuildParams{Config: config, Driver: driver})
	require.NoError(t, err)
	require.False(t, plan.Changed())

	result, err := Apply(context.Background(), plan, ApplyParams{Driver: driver, StateDir: stateDir}, time.Now())
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Empty(t, result.BackupID)
}

func TestApplyWritesPayloadAndCreatesBackup(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv(StateDirEnvVar, stateDir)

	configDir := t.TempDir()
	configPath := filepath.Join(configDir, "gateway.yaml")
	originalConfig := `
models:
  providers:
    openai:
      apiKey: sk-plaintext
`
	require.NoError(t, os.WriteFile(configPath, []byte(originalConfig), 0o644))

	config, err := gwconfig.LoadYAML([]byte(originalConfig))
	require.NoError(t, err)

	fake := &fakeExecutor{payload: map[string]any{}}
	driver := sopstool.New(fake)
	plan, err := Build(context.Background(), BuildParams{Config: config, ConfigPath: configPath, Driver: driver})
	require.NoError(t, err)
	require.True(t, plan.Changed())
	require.True(t, plan.ConfigChanged)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	result, err := Apply(context.Background(), plan, ApplyParams{Driver: driver, StateDir: stateDir}, now)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.NotEmpty(t, result.BackupID)

	require.NotNil(t, fake.lastWrite)
	providers, ok := fake.lastWrite["providers"].(map[string]any)
	require.True(t, ok)
	openai, ok := providers["openai"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sk-plaintext", openai["apiKey"])

	rewrittenConfig, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.NotContains(t, string(rewrittenConfig), "sk-plaintext")
	assert.Contains(t, string(rewrittenConfig), "file")

	rollback, err := Rollback(result.BackupID, stateDir)
	require.NoError(t, err)
	assert.Contains(t, rollback.RestoredFiles, configPath)

	restoredConfig, err := os.ReadFile(configPath)
	require.NoError(t, err)
	restoredTree, err := gwconfig.LoadYAML(restoredConfig)
	require.NoError(t, err)
	assert.True(t, gwconfig.StructurallyEqual(map[string]any(config), map[string]any(restoredTree)))

	manifestPath := filepath.Join(backupsDir(stateDir), result.BackupID, "manifest.json")
	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	var manifest Manifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, 1, manifest.Version)
}

func TestApplyWritesAuthStoreAndRollbackRestoresOriginal(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv(StateDirEnvVar, stateDir)

	storeDir := t.TempDir()
	storePath := filepath.Join(storeDir, "auth-profiles.json")
	original := `{"profiles":{"svc":{"type":"api_key","key":"plain-key"}}}`
	require.NoError(t, os.WriteFile(storePath, []byte(original), 0o600))

	config, err := gwconfig.LoadYAML([]byte(`{}`))
	require.NoError(t, err)

	driver := sopstool.New(&fakeExecutor{payload: map[string]any{}})
	plan, err := Build(context.Background(), BuildParams{
		Config:        config,
		Driver:        driver,
		AgentAuthDirs: []string{storePath},
	})
	require.NoError(t, err)
	require.Equal(t, 1, plan.Counters.AuthProfileRefs)
	require.True(t, plan.Changed())

	now := time.Now()
	result, err := Apply(context.Background(), plan, ApplyParams{Driver: driver, StateDir: stateDir}, now)
	require.NoError(t, err)
	require.True(t, result.Changed)

	rewritten, err := os.ReadFile(storePath)
	require.NoError(t, err)
	assert.NotEqual(t, original, string(rewritten))
	assert.Contains(t, string(rewritten), "keyRef")

	rollback, err := Rollback(result.BackupID, stateDir)
	require.NoError(t, err)
	assert.Contains(t, rollback.RestoredFiles, storePath)

	restored, err := os.ReadFile(storePath)
	require.NoError(t, err)
	assert.JSONEq(t, original, string(restored))

	// idempotent: a second rollback of the same backup succeeds identically.
	rollback2, err := Rollback(result.BackupID, stateDir)
	require.NoError(t, err)
	assert.Contains(t, rollback2.RestoredFiles, storePath)
}

func TestRollbackUnknownBackupFails(t *testing.T) {
	t.Parallel()

	_, err := Rollback("does-not-exist", t.TempDir())
	require.Error(t, err)
}
