package secretref_test

import (
	"testing"

	"github.com/openclaw/gateway/internal/secretref"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRefShape(t *testing.T) {
	t.Parallel()

	assert.True(t, secretref.IsRefShape(map[string]any{"source": "env", "id": "OPENAI_API_KEY"}))
	assert.True(t, secretref.IsRefShape(map[string]any{"source": "file", "id": "/providers/openai/apiKey"}))
	assert.False(t, secretref.IsRefShape(map[string]any{"source": "vault", "id": "x"}))
	assert.False(t, secretref.IsRefShape(map[string]any{"id": "x"}))
	assert.False(t, secretref.IsRefShape("not a map"))
	assert.False(t, secretref.IsRefShape(map[string]any{"type": "service_account", "project_id": "x"}))
}

func TestParseEnvRef(t *testing.T) {
	t.Parallel()

	ref, ok, err := secretref.Parse(map[string]any{"source": "env", "id": "OPENAI_API_KEY"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, secretref.EnvSource, ref.Source)
	assert.Equal(t, "OPENAI_API_KEY", ref.ID)
}

func TestParseFileRef(t *testing.T) {
	t.Parallel()

	ref, ok, err := secretref.Parse(map[string]any{"source": "file", "id": "/providers/openai/apiKey"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, secretref.FileSource, ref.Source)
}

func TestParseNotARef(t *testing.T) {
	t.Parallel()

	_, ok, err := secretref.Parse(map[string]any{"type": "service_account"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseInvalidEnvID(t *testing.T) {
	t.Parallel()

	_, ok, err := secretref.Parse(map[string]any{"source": "env", "id": "lowercase-not-allowed"})
	require.True(t, ok)
	require.Error(t, err)
}

func TestParseInvalidFileID(t *testing.T) {
	t.Parallel()

	_, ok, err := secretref.Parse(map[string]any{"source": "file", "id": "no-leading-slash"})
	require.True(t, ok)
	require.Error(t, err)
}

func TestParseRootFileRef(t *testing.T) {
	t.Parallel()

	ref, ok, err := secretref.Parse(map[string]any{"source": "file", "id": ""})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "", ref.ID)
}

func TestToValueRoundTrip(t *testing.T) {
	t.Parallel()

	ref := secretref.Ref{Source: secretref.EnvSource, ID: "OPENAI_API_KEY"}
	value := secretref.ToValue(ref)

	roundTripped, ok, err := secretref.Parse(value)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ref, roundTripped)
}

func TestRefString(t *testing.T) {
	t.Parallel()

	ref := secretref.Ref{Source: secretref.EnvSource, ID: "OPENAI_API_KEY"}
	assert.Equal(t, "env:OPENAI_API_KEY", ref.String())
}
