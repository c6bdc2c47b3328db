package migrate

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/openclaw/gateway/internal/gwconfig"
	"github.com/openclaw/gateway/internal/sopstool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	payload  map[string]any
	lastWrite map[string]any
}

func (f *fakeExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	for i, a := range args {
		if a == "--output" && i+1 < len(args) && len(args) > 0 {
			outputPath := args[i+1]
			inputPath := args[len(args)-1]

			plainBytes, err := os.ReadFile(inputPath)
			if err != nil {
				return nil, nil, err
			}
			var captured map[string]any
			if err := json.Unmarshal(plainBytes, &captured); err != nil {
				return nil, nil, err
			}
			f.lastWrite = captured

			// The real sops binary would write the encrypted form here;
			// the plaintext bytes stand in for it since this fake never
			// encrypts.
			if err := os.WriteFile(outputPath, plainBytes, 0o600); err != nil {
				return nil, nil, err
			}
			return nil, nil, nil
		}
	}
	data, _ := json.Marshal(f.payload)
	return data, nil, nil
}

func TestBuildMigratesPlaintextProviderAPIKey(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv(StateDirEnvVar, stateDir)

	config, err := gwconfig.LoadYAML([]byte(`
models:
  providers:
    openai:
      apiKey: sk-plaintext
`))
	require.NoError(t, err)

	fake := &fakeExecutor{payload: map[string]any{}}
	driver := sopstool.New(fake)

	plan, err := Build(context.Background(), BuildParams{
		Config: config,
		Driver: driver,
	})
	require.NoError(t, err)

	entry := plan.NextConfig["models"].(map[string]any)["providers"].(map[string]any)["openai"].(map[string]any)
	ref, ok := entry["apiKey"].(map[string]any)
	require.True(t, ok, "apiKey should have become a SecretRef")
	assert.Equal(t, "file", ref["source"])
	assert.Equal(t, "/providers/openai/apiKey", ref["id"])

	assert.Equal(t, 1, plan.Counters.ConfigRefs)
	assert.Equal(t, 1, plan.Counters.SecretsWritten)
	assert.True(t, plan.PayloadChanged)
	assert.True(t, plan.ConfigChanged)
	assert.True(t, plan.Changed())
}

func TestBuildSkipsAlreadyRefProvider(t *testing.T) {
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

	assert.Equal(t, 0, plan.Counters.ConfigRefs)
	assert.False(t, plan.ConfigChanged)
	assert.False(t, plan.Changed())
}

func TestBuildGoogleChatOverrideDropsPlaintext(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv(StateDirEnvVar, stateDir)

	config, err := gwconfig.LoadYAML([]byte(`
channels:
  googlechat:
    serviceAccount: leftover-plaintext
    serviceAccountRef:
      source: file
      id: /channels/googlechat/serviceAccount
`))
	require.NoError(t, err)

	driver := sopstool.New(&fakeExecutor{payload: map[string]any{}})

	plan, err := Build(context.Background(), BuildParams{Config: config, Driver: driver})
	require.NoError(t, err)

	googlechat := plan.NextConfig["channels"].(map[string]any)["googlechat"].(map[string]any)
	_, stillPlaintext := googlechat["serviceAccount"]
	assert.False(t, stillPlaintext)
	assert.Equal(t, 1, plan.Counters.PlaintextRemoved)
	assert.True(t, plan.ConfigChanged)
}

func TestBuildEnvScrubRemovesMigratedValues(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv(StateDirEnvVar, stateDir)
	configDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(configDir, ".env"), []byte("OPENAI_API_KEY=sk-plaintext\nOTHER=keep-me\n"), 0o600))

	config, err := gwconfig.LoadYAML([]byte(`
models:
  providers:
    openai:
      apiKey: sk-plaintext
`))
	require.NoError(t, err)

	driver := sopstool.New(&fakeExecutor{payload: map[string]any{}})

	plan, err := Build(context.Background(), BuildParams{
		Config:            config,
		ConfigDir:         configDir,
		Driver:            driver,
		ScrubEnv:          true,
		AllowListEnvNames: []string{"OPENAI_API_KEY"},
	})
	require.NoError(t, err)

	assert.True(t, plan.EnvScrubbed)
	assert.Contains(t, plan.NextEnv, "OTHER=keep-me")
	assert.NotContains(t, plan.NextEnv, "sk-plaintext")
	assert.Equal(t, 1, plan.Counters.EnvEntriesRemoved)
}

func TestBuildRejectsMalformedConfig(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv(StateDirEnvVar, stateDir)

	config, err := gwconfig.LoadYAML([]byte(`
models:
  providers:
    openai:
      apiKey: 12345
`))
	require.NoError(t, err)

	driver := sopstool.New(&fakeExecutor{payload: map[string]any{}})

	_, err = Build(context.Background(), BuildParams{Config: config, Driver: driver})
	require.Error(t, err)
}
