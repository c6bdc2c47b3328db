package sopstool_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/openclaw/gateway/internal/sopstool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	stdout   []byte
	stderr   []byte
	err      error
	gotName  string
	gotArgs  []string
	callFunc func(args []string) ([]byte, []byte, error)
}

func (f *fakeExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.gotName = name
	f.gotArgs = args
	if f.callFunc != nil {
		return f.callFunc(args)
	}
	return f.stdout, f.stderr, f.err
}

func TestDecryptParsesJSON(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{stdout: []byte(`{"providers":{"openai":{"apiKey":"sk-x"}}}`)}
	driver := sopstool.New(fake)

	value, err := driver.Decrypt(context.Background(), "/tmp/secrets.enc.json", 5000, "sops missing", "")
	require.NoError(t, err)

	m, ok := value.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, m, "providers")
	assert.Equal(t, []string{"--decrypt", "--output-type", "json", "/tmp/secrets.enc.json"}, fake.gotArgs)
}

func TestDecryptIncludesConfigFlagFirst(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{stdout: []byte(`{}`)}
	driver := sopstool.New(fake)

	_, err := driver.Decrypt(context.Background(), "/tmp/secrets.enc.json", 5000, "", "/tmp/.sops.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"--config", "/tmp/.sops.yaml", "--decrypt", "--output-type", "json", "/tmp/secrets.enc.json"}, fake.gotArgs)
}

func TestDecryptMissingBinary(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{err: &exec.Error{Name: "sops", Err: exec.ErrNotFound}}
	driver := sopstool.New(fake)

	_, err := driver.Decrypt(context.Background(), "/tmp/secrets.enc.json", 5000, "sops is not installed", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sops is not installed")
}

func TestDecryptGenericFailurePreservesCause(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{err: assertError{"exit status 1"}, stderr: []byte("no matching creation rules")}
	driver := sopstool.New(fake)

	_, err := driver.Decrypt(context.Background(), "/tmp/secrets.enc.json", 5000, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decrypt failed for /tmp/secrets.enc.json")
	assert.Contains(t, err.Error(), "no matching creation rules")
}

func TestEncryptWritesTempfileAndRenames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "secrets.enc.json")

	fake := &fakeExecutor{
		callFunc: func(args []string) ([]byte, []byte, error) {
			outPath := args[len(args)-2]
			require.Equal(t, "--output", args[len(args)-3])
			require.NoError(t, os.WriteFile(outPath, []byte(`{"encrypted":"yes"}`), 0o600))
			return nil, nil, nil
		},
	}
	driver := sopstool.New(fake)

	err := driver.Encrypt(context.Background(), target, map[string]any{"providers": map[string]any{}}, 5000, "", "")
	require.NoError(t, err)

	written, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, `{"encrypted":"yes"}`, string(written))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "tempfiles must be removed on exit")
}

func TestEncryptRedactsPayloadFromFailureStderr(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "secrets.enc.json")

	fake := &fakeExecutor{
		err:    assertError{"exit status 1"},
		stderr: []byte(`could not parse tempfile: unexpected token near "sk-super-secret-value"`),
	}
	driver := sopstool.New(fake)

	err := driver.Encrypt(context.Background(), target,
		map[string]any{"providers": map[string]any{"openai": map[string]any{"apiKey": "sk-super-secret-value"}}},
		5000, "", "")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "sk-super-secret-value")
	assert.Contains(t, err.Error(), "[REDACTED]")
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
